package pricing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detradefi/navoracle/internal/domain"
)

var (
	usdc = domain.TokenRef{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6}
	weth = domain.TokenRef{Symbol: "WETH", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18}
	gho  = domain.TokenRef{Symbol: "GHO", Address: "0x40D16FC0246aD3160Ccc09B8D0D3A2cD28aE6C2f", Decimals: 18}
	crv  = domain.TokenRef{Symbol: "CRV", Address: "0xD533a949740bb3306d119CC777fa900bA034cd52", Decimals: 18}
)

type fakeQuotes struct {
	routes    map[string]*big.Int // "sell->buy" -> buy amount
	fallbacks map[string]bool     // routes answered from the quoter's degraded path
	calls     int
	err       error
}

func (f *fakeQuotes) Quote(_ context.Context, req domain.QuoteRequest) (domain.QuoteResponse, error) {
	f.calls++
	if f.err != nil {
		return domain.QuoteResponse{}, f.err
	}
	key := strings.ToLower(req.SellToken + "->" + req.BuyToken)
	out, ok := f.routes[key]
	if !ok {
		return domain.QuoteResponse{}, fmt.Errorf("fake: %w", domain.ErrNoRoute)
	}
	return domain.QuoteResponse{
		BuyAmount:   new(big.Int).Set(out),
		PriceImpact: "0.001",
		IsFallback:  f.fallbacks[key],
	}, nil
}

type fakeFeed struct {
	rate  *big.Rat
	err   error
	calls int
}

func (f *fakeFeed) PoolRate(context.Context, string, string) (*big.Rat, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rate, nil
}

type fakeCache struct {
	entries map[string]domain.CachedRate
	puts    int
}

func (f *fakeCache) Get(_ context.Context, base, quote string) (domain.CachedRate, error) {
	e, ok := f.entries[base+"/"+quote]
	if !ok {
		return domain.CachedRate{}, domain.ErrNotFound
	}
	return e, nil
}

func (f *fakeCache) Put(_ context.Context, base, quote string, rate domain.CachedRate) error {
	if f.entries == nil {
		f.entries = map[string]domain.CachedRate{}
	}
	f.entries[base+"/"+quote] = rate
	f.puts++
	return nil
}

func route(sell, buy domain.TokenRef, out *big.Int) (string, *big.Int) {
	return strings.ToLower(sell.Address + "->" + buy.Address), out
}

func newConverter(t *testing.T, quotes domain.QuoteService, feed domain.PoolPriceFeed, opts Options) *Converter {
	t.Helper()
	if opts.FallbackRate == "" {
		opts.FallbackRate = "0.8"
	}
	conv, err := New(usdc, "ethereum", quotes, feed, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return conv
}

func TestConvertDirect(t *testing.T) {
	quotes := &fakeQuotes{}
	conv := newConverter(t, quotes, &fakeFeed{}, Options{})

	res, err := conv.Convert(context.Background(), usdc, big.NewInt(1_500_000))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDirect, res.Source)
	assert.Equal(t, "1500000", res.Canonical.String())
	assert.Equal(t, "1", res.Rate)
	assert.Zero(t, quotes.calls)
}

func TestConvertDirectRescales(t *testing.T) {
	// Same asset wrapped at 18 decimals converts by pure rescale.
	usdc18 := domain.TokenRef{Symbol: "aUSDC", Address: usdc.Address, Decimals: 18}
	conv := newConverter(t, &fakeQuotes{}, &fakeFeed{}, Options{})

	in, _ := new(big.Int).SetString("2500000000000000000", 10) // 2.5
	res, err := conv.Convert(context.Background(), usdc18, in)
	require.NoError(t, err)
	assert.Equal(t, "2500000", res.Canonical.String())
}

func TestConvertZeroAmountSkipsExternalCalls(t *testing.T) {
	quotes := &fakeQuotes{}
	feed := &fakeFeed{}
	conv := newConverter(t, quotes, feed, Options{})

	res, err := conv.Convert(context.Background(), weth, big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, "0", res.Canonical.String())
	assert.Equal(t, "0", res.Rate)
	assert.Zero(t, quotes.calls)
	assert.Zero(t, feed.calls)
}

func TestConvertZeroAmountCanonicalKeepsUnitRate(t *testing.T) {
	conv := newConverter(t, &fakeQuotes{}, &fakeFeed{}, Options{})

	res, err := conv.Convert(context.Background(), usdc, big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDirect, res.Source)
	assert.Equal(t, "0", res.Canonical.String())
	assert.Equal(t, "1", res.Rate, "the canonical asset converts 1:1 regardless of amount")
}

func TestConvertViaFeed(t *testing.T) {
	feed := &fakeFeed{rate: big.NewRat(1, 2)} // 0.5 USDC per GHO
	conv := newConverter(t, &fakeQuotes{}, feed, Options{
		RatePools: map[string]string{"GHO/USDC": "0xpool"},
	})

	in, _ := new(big.Int).SetString("10000000000000000000", 10) // 10 GHO
	res, err := conv.Convert(context.Background(), gho, in)
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePriceFeed, res.Source)
	assert.Equal(t, "5000000", res.Canonical.String())
	assert.False(t, res.FallbackUsed)
	assert.Equal(t, "0.5", res.Rate)
}

func TestConvertFeedFailureUsesFallbackRate(t *testing.T) {
	feed := &fakeFeed{err: errors.New("feed down")}
	conv := newConverter(t, &fakeQuotes{}, feed, Options{
		RatePools:    map[string]string{"GHO/USDC": "0xpool"},
		FallbackRate: "0.8",
	})

	in, _ := new(big.Int).SetString("10000000000000000000", 10)
	res, err := conv.Convert(context.Background(), gho, in)
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePriceFeed, res.Source)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, "8000000", res.Canonical.String())
}

func TestConvertFeedUsesFreshCache(t *testing.T) {
	feed := &fakeFeed{rate: big.NewRat(1, 2)}
	cache := &fakeCache{entries: map[string]domain.CachedRate{
		"GHO/USDC": {Rate: "3/4", ObservedAt: time.Now()},
	}}
	conv := newConverter(t, &fakeQuotes{}, feed, Options{
		RatePools: map[string]string{"GHO/USDC": "0xpool"},
		Cache:     cache,
		CacheTTL:  time.Minute,
	})

	in, _ := new(big.Int).SetString("10000000000000000000", 10)
	res, err := conv.Convert(context.Background(), gho, in)
	require.NoError(t, err)
	assert.Equal(t, "7500000", res.Canonical.String())
	assert.Zero(t, feed.calls, "fresh cache entry should shortcut the feed")
}

func TestConvertFeedRefreshesStaleCache(t *testing.T) {
	feed := &fakeFeed{rate: big.NewRat(1, 2)}
	cache := &fakeCache{entries: map[string]domain.CachedRate{
		"GHO/USDC": {Rate: "3/4", ObservedAt: time.Now().Add(-2 * time.Minute)},
	}}
	conv := newConverter(t, &fakeQuotes{}, feed, Options{
		RatePools: map[string]string{"GHO/USDC": "0xpool"},
		Cache:     cache,
		CacheTTL:  time.Minute,
	})

	in, _ := new(big.Int).SetString("10000000000000000000", 10)
	res, err := conv.Convert(context.Background(), gho, in)
	require.NoError(t, err)
	assert.Equal(t, "5000000", res.Canonical.String())
	assert.Equal(t, 1, feed.calls)
	assert.Equal(t, 1, cache.puts, "live read should repopulate the cache")
}

func TestConvertViaQuote(t *testing.T) {
	quotes := &fakeQuotes{routes: map[string]*big.Int{}}
	k, v := route(weth, usdc, big.NewInt(3_000_000_000)) // 1 WETH -> 3000 USDC
	quotes.routes[k] = v
	conv := newConverter(t, quotes, &fakeFeed{}, Options{})

	in, _ := new(big.Int).SetString("1000000000000000000", 10)
	res, err := conv.Convert(context.Background(), weth, in)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceQuote, res.Source)
	assert.Equal(t, "3000000000", res.Canonical.String())
	assert.Equal(t, "3000", res.Rate)
	assert.Equal(t, "0.001", res.PriceImpact)
	assert.False(t, res.FallbackUsed)
}

func TestConvertQuoteCarriesQuoterFallbackFlag(t *testing.T) {
	quotes := &fakeQuotes{routes: map[string]*big.Int{}, fallbacks: map[string]bool{}}
	k, v := route(weth, usdc, big.NewInt(3_000_000_000))
	quotes.routes[k] = v
	quotes.fallbacks[k] = true
	conv := newConverter(t, quotes, &fakeFeed{}, Options{})

	in, _ := new(big.Int).SetString("1000000000000000000", 10)
	res, err := conv.Convert(context.Background(), weth, in)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceQuote, res.Source)
	assert.True(t, res.FallbackUsed, "a degraded quote must be flagged in the result")
}

func TestConvertNoRouteReturnsFailedResult(t *testing.T) {
	conv := newConverter(t, &fakeQuotes{routes: map[string]*big.Int{}}, &fakeFeed{}, Options{})

	res, err := conv.Convert(context.Background(), crv, big.NewInt(1000))
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.Equal(t, "0", res.Canonical.String())
}

func TestConvertComposedTwoHop(t *testing.T) {
	quotes := &fakeQuotes{routes: map[string]*big.Int{}}
	// CRV routes only to WETH; WETH routes to USDC.
	k1, v1 := route(crv, weth, big.NewInt(500_000_000_000_000_000)) // 0.5 WETH
	k2, v2 := route(weth, usdc, big.NewInt(1_500_000_000))          // -> 1500 USDC
	quotes.routes[k1] = v1
	quotes.routes[k2] = v2

	conv := newConverter(t, quotes, &fakeFeed{}, Options{
		Intermediates: map[string]domain.TokenRef{crv.Address: weth},
	})

	in, _ := new(big.Int).SetString("1000000000000000000000", 10) // 1000 CRV
	res, err := conv.Convert(context.Background(), crv, in)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceComposed, res.Source)
	assert.Equal(t, "1500000000", res.Canonical.String())
	assert.Contains(t, res.Note, "WETH")
	assert.False(t, res.FallbackUsed)
}

func TestConvertComposedCarriesHopFallbackFlag(t *testing.T) {
	quotes := &fakeQuotes{routes: map[string]*big.Int{}, fallbacks: map[string]bool{}}
	k1, v1 := route(crv, weth, big.NewInt(500_000_000_000_000_000))
	k2, v2 := route(weth, usdc, big.NewInt(1_500_000_000))
	quotes.routes[k1] = v1
	quotes.routes[k2] = v2
	quotes.fallbacks[k1] = true // only the first hop is degraded

	conv := newConverter(t, quotes, &fakeFeed{}, Options{
		Intermediates: map[string]domain.TokenRef{crv.Address: weth},
	})

	in, _ := new(big.Int).SetString("1000000000000000000000", 10)
	res, err := conv.Convert(context.Background(), crv, in)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceComposed, res.Source)
	assert.True(t, res.FallbackUsed, "a degraded hop taints the composed result")
}

func TestConvertQuoteTransportErrorIsUnavailable(t *testing.T) {
	quotes := &fakeQuotes{err: errors.New("connection refused")}
	conv := newConverter(t, quotes, &fakeFeed{}, Options{})

	_, err := conv.Convert(context.Background(), weth, big.NewInt(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConversionUnavailable)
}

func TestApplyRateTruncates(t *testing.T) {
	// 1 unit at rate 1/3 truncates toward zero.
	out := ApplyRate(big.NewInt(1_000_000), big.NewRat(1, 3), 6, 6)
	assert.Equal(t, "333333", out.String())
}
