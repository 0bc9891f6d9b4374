// Package pricing values arbitrary instrument amounts in the canonical
// asset. Strategies are ranked: direct rescale for the canonical asset
// itself, an external pool price feed with a configured fallback rate,
// swap quote simulation, and finally two-hop composition through a
// configured intermediate asset. All arithmetic is big integer; no
// floats touch amounts.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/detradefi/navoracle/internal/domain"
)

// Converter turns instrument amounts into canonical-asset amounts.
type Converter struct {
	canonical domain.TokenRef
	network   string

	quotes domain.QuoteService
	feed   domain.PoolPriceFeed

	cache    domain.RateCache // optional
	cacheTTL time.Duration

	// ratePools maps "SYMBOL/CANONICAL" pairs to the pool used for the
	// price feed strategy.
	ratePools map[string]string
	// fallbackRate is applied when the price feed is unreachable.
	fallbackRate *big.Rat
	// intermediates maps lowercase token addresses to the asset used
	// for two-hop composition.
	intermediates map[string]domain.TokenRef

	logger *slog.Logger
}

// Options configures a Converter beyond its required collaborators.
type Options struct {
	Cache         domain.RateCache
	CacheTTL      time.Duration
	RatePools     map[string]string
	FallbackRate  string
	Intermediates map[string]domain.TokenRef
}

// New creates a Converter valuing into canonical on the given network.
func New(canonical domain.TokenRef, network string, quotes domain.QuoteService, feed domain.PoolPriceFeed, opts Options, logger *slog.Logger) (*Converter, error) {
	fallback, ok := new(big.Rat).SetString(opts.FallbackRate)
	if !ok || fallback.Sign() <= 0 {
		return nil, fmt.Errorf("pricing: invalid fallback rate %q", opts.FallbackRate)
	}
	pools := make(map[string]string, len(opts.RatePools))
	for pair, pool := range opts.RatePools {
		pools[strings.ToUpper(pair)] = pool
	}
	inter := make(map[string]domain.TokenRef, len(opts.Intermediates))
	for addr, via := range opts.Intermediates {
		inter[strings.ToLower(addr)] = via
	}
	return &Converter{
		canonical:     canonical,
		network:       network,
		quotes:        quotes,
		feed:          feed,
		cache:         opts.Cache,
		cacheTTL:      opts.CacheTTL,
		ratePools:     pools,
		fallbackRate:  fallback,
		intermediates: inter,
		logger:        logger.With(slog.String("component", "converter")),
	}, nil
}

// Canonical returns the asset all conversions are expressed in.
func (c *Converter) Canonical() domain.TokenRef { return c.canonical }

// Convert values amount of token in the canonical asset. A quotable
// token with no route yields a zero-valued result with Source failed
// and no error; an error is returned only when every applicable
// strategy hard-fails.
func (c *Converter) Convert(ctx context.Context, token domain.TokenRef, amount *big.Int) (domain.ConversionResult, error) {
	if amount == nil || amount.Sign() == 0 {
		rate := "0"
		if c.isCanonical(token) {
			rate = "1"
		}
		return domain.ConversionResult{
			Canonical: big.NewInt(0),
			Source:    c.sourceFor(token),
			Rate:      rate,
			Note:      "zero amount",
		}, nil
	}
	if amount.Sign() < 0 {
		// Valuations run on magnitudes; netting reapplies the sign.
		res, err := c.Convert(ctx, token, new(big.Int).Neg(amount))
		if err != nil {
			return domain.ConversionResult{}, err
		}
		res.Canonical = res.Canonical.Neg(res.Canonical)
		return res, nil
	}

	if c.isCanonical(token) {
		return domain.ConversionResult{
			Canonical: domain.Rescale(amount, token.Decimals, c.canonical.Decimals),
			Source:    domain.SourceDirect,
			Rate:      "1",
		}, nil
	}

	if pool, ok := c.ratePools[c.pairKey(token)]; ok {
		return c.convertViaFeed(ctx, token, amount, pool), nil
	}

	return c.convertViaQuote(ctx, token, amount)
}

// sourceFor labels a zero-amount result with the strategy that would
// have valued it.
func (c *Converter) sourceFor(token domain.TokenRef) domain.ConversionSource {
	if c.isCanonical(token) {
		return domain.SourceDirect
	}
	if _, ok := c.ratePools[c.pairKey(token)]; ok {
		return domain.SourcePriceFeed
	}
	return domain.SourceQuote
}

func (c *Converter) isCanonical(token domain.TokenRef) bool {
	return strings.EqualFold(token.Address, c.canonical.Address)
}

func (c *Converter) pairKey(token domain.TokenRef) string {
	return strings.ToUpper(token.Symbol + "/" + c.canonical.Symbol)
}

// convertViaFeed values through the external pool rate, falling back to
// the configured conservative rate when the feed cannot be reached. It
// never hard-fails.
func (c *Converter) convertViaFeed(ctx context.Context, token domain.TokenRef, amount *big.Int, pool string) domain.ConversionResult {
	rate, fromCache, err := c.poolRate(ctx, token, pool)
	if err != nil {
		c.logger.Warn("price feed unavailable, applying fallback rate",
			slog.String("token", token.Symbol),
			slog.String("fallback", c.fallbackRate.RatString()),
			slog.String("error", err.Error()))
		return domain.ConversionResult{
			Canonical:    ApplyRate(amount, c.fallbackRate, token.Decimals, c.canonical.Decimals),
			Source:       domain.SourcePriceFeed,
			Rate:         ratDisplay(c.fallbackRate),
			FallbackUsed: true,
			Note:         "feed unavailable",
		}
	}
	res := domain.ConversionResult{
		Canonical: ApplyRate(amount, rate, token.Decimals, c.canonical.Decimals),
		Source:    domain.SourcePriceFeed,
		Rate:      ratDisplay(rate),
	}
	if fromCache {
		res.Note = "cached rate"
	}
	return res
}

// poolRate consults the rate cache inside its TTL window before asking
// the live feed, and repopulates the cache on a live read.
func (c *Converter) poolRate(ctx context.Context, token domain.TokenRef, pool string) (*big.Rat, bool, error) {
	if c.cache != nil && c.cacheTTL > 0 {
		cached, err := c.cache.Get(ctx, token.Symbol, c.canonical.Symbol)
		if err == nil && time.Since(cached.ObservedAt) <= c.cacheTTL {
			if rate, ok := new(big.Rat).SetString(cached.Rate); ok && rate.Sign() > 0 {
				return rate, true, nil
			}
		} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("rate cache read failed", slog.String("error", err.Error()))
		}
	}

	rate, err := c.feed.PoolRate(ctx, c.network, pool)
	if err != nil {
		return nil, false, err
	}

	if c.cache != nil {
		put := domain.CachedRate{Rate: rate.RatString(), ObservedAt: time.Now()}
		if err := c.cache.Put(ctx, token.Symbol, c.canonical.Symbol, put); err != nil {
			c.logger.Warn("rate cache write failed", slog.String("error", err.Error()))
		}
	}
	return rate, false, nil
}

// convertViaQuote simulates a sale through the quote service, composing
// through a configured intermediate when the direct pair has no route.
func (c *Converter) convertViaQuote(ctx context.Context, token domain.TokenRef, amount *big.Int) (domain.ConversionResult, error) {
	resp, err := c.quotes.Quote(ctx, domain.QuoteRequest{
		Network:    c.network,
		SellToken:  token.Address,
		BuyToken:   c.canonical.Address,
		SellAmount: amount,
	})
	if err == nil {
		return domain.ConversionResult{
			Canonical:    resp.BuyAmount,
			Source:       domain.SourceQuote,
			Rate:         rateOf(amount, token.Decimals, resp.BuyAmount, c.canonical.Decimals),
			PriceImpact:  resp.PriceImpact,
			FallbackUsed: resp.IsFallback,
		}, nil
	}
	if !errors.Is(err, domain.ErrNoRoute) {
		return domain.ConversionResult{}, fmt.Errorf("pricing: quote %s: %w: %w", token.Symbol, domain.ErrConversionUnavailable, err)
	}

	via, ok := c.intermediates[strings.ToLower(token.Address)]
	if !ok {
		c.logger.Warn("no route to canonical asset",
			slog.String("token", token.Symbol),
			slog.String("address", token.Address))
		return domain.ConversionResult{
			Canonical: big.NewInt(0),
			Source:    domain.SourceFailed,
			Note:      "no route",
		}, nil
	}
	return c.convertComposed(ctx, token, amount, via)
}

// convertComposed sells token for the intermediate, then values the
// intermediate leg through the full strategy chain.
func (c *Converter) convertComposed(ctx context.Context, token domain.TokenRef, amount *big.Int, via domain.TokenRef) (domain.ConversionResult, error) {
	hop, err := c.quotes.Quote(ctx, domain.QuoteRequest{
		Network:    c.network,
		SellToken:  token.Address,
		BuyToken:   via.Address,
		SellAmount: amount,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoRoute) {
			return domain.ConversionResult{
				Canonical: big.NewInt(0),
				Source:    domain.SourceFailed,
				Note:      "no route via " + via.Symbol,
			}, nil
		}
		return domain.ConversionResult{}, fmt.Errorf("pricing: quote %s via %s: %w: %w", token.Symbol, via.Symbol, domain.ErrConversionUnavailable, err)
	}

	second, err := c.Convert(ctx, via, hop.BuyAmount)
	if err != nil {
		return domain.ConversionResult{}, err
	}
	if second.Failed() {
		return domain.ConversionResult{
			Canonical: big.NewInt(0),
			Source:    domain.SourceFailed,
			Note:      "no route for intermediate " + via.Symbol,
		}, nil
	}

	return domain.ConversionResult{
		Canonical:    second.Canonical,
		Source:       domain.SourceComposed,
		Rate:         rateOf(amount, token.Decimals, second.Canonical, c.canonical.Decimals),
		FallbackUsed: hop.IsFallback || second.FallbackUsed,
		Note:         "via " + via.Symbol,
	}, nil
}

// ApplyRate multiplies a raw amount by a rate expressed in display
// units, rescaling between decimal bases. Truncates toward zero.
func ApplyRate(amount *big.Int, rate *big.Rat, from, to uint8) *big.Int {
	num := new(big.Int).Mul(amount, rate.Num())
	num.Mul(num, pow10(int(to)))
	den := new(big.Int).Mul(rate.Denom(), pow10(int(from)))
	return num.Quo(num, den)
}

// rateOf derives the display rate implied by an in/out amount pair.
func rateOf(in *big.Int, inDec uint8, out *big.Int, outDec uint8) string {
	if in == nil || in.Sign() == 0 {
		return "0"
	}
	num := new(big.Int).Mul(new(big.Int).Abs(out), pow10(int(inDec)))
	den := new(big.Int).Mul(new(big.Int).Abs(in), pow10(int(outDec)))
	return ratDisplay(new(big.Rat).SetFrac(num, den))
}

// ratDisplay renders a rate with six decimal places, trimming trailing
// zeros.
func ratDisplay(r *big.Rat) string {
	s := r.FloatString(6)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
