package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/detradefi/navoracle/internal/domain"
	"github.com/detradefi/navoracle/internal/pricing"
)

// Adapter reads everything one protocol knows about an address.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, address string) (domain.ProtocolResult, error)
}

// SupplyReader reads the share token's total supply.
type SupplyReader interface {
	TotalSupply(ctx context.Context, token string) (*big.Int, error)
}

// Aggregator fans out over protocol adapters, values every position,
// and assembles the snapshot. One failing adapter never takes down the
// run: its error is recorded in the snapshot and the remaining
// protocols aggregate normally.
type Aggregator struct {
	address   string
	adapters  []Adapter
	converter *pricing.Converter
	optimizer *Optimizer

	shareToken  *domain.TokenRef
	shareReader SupplyReader

	retryAttempts int
	retryBackoff  time.Duration

	logger *slog.Logger
}

// Options configures an Aggregator.
type Options struct {
	// ShareToken enables share price computation when set.
	ShareToken    *domain.TokenRef
	ShareReader   SupplyReader
	RetryAttempts int
	RetryBackoff  time.Duration
}

// New creates an Aggregator for one tracked address.
func New(address string, adapters []Adapter, converter *pricing.Converter, optimizer *Optimizer, opts Options, logger *slog.Logger) (*Aggregator, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("aggregator: %q: %w", address, domain.ErrInvalidAddress)
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	return &Aggregator{
		address:       common.HexToAddress(address).Hex(),
		adapters:      adapters,
		converter:     converter,
		optimizer:     optimizer,
		shareToken:    opts.ShareToken,
		shareReader:   opts.ShareReader,
		retryAttempts: opts.RetryAttempts,
		retryBackoff:  opts.RetryBackoff,
		logger:        logger.With(slog.String("component", "aggregator")),
	}, nil
}

// Address returns the tracked address in checksum form.
func (a *Aggregator) Address() string { return a.address }

// RunWithRetry runs the aggregation, retrying the whole run with a
// fixed backoff when it fails outright.
func (a *Aggregator) RunWithRetry(ctx context.Context) (domain.Snapshot, error) {
	attempt := 0
	op := func() (domain.Snapshot, error) {
		attempt++
		snap, err := a.Run(ctx)
		if err != nil {
			a.logger.Warn("aggregation attempt failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
		}
		return snap, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(a.retryBackoff)),
		backoff.WithMaxTries(uint(a.retryAttempts)))
}

// Run performs a single aggregation pass and returns the snapshot.
func (a *Aggregator) Run(ctx context.Context) (domain.Snapshot, error) {
	started := time.Now()

	results := make([]domain.ProtocolResult, len(a.adapters))
	fetchErrs := make([]error, len(a.adapters))

	g, gctx := errgroup.WithContext(ctx)
	for i, adapter := range a.adapters {
		i, adapter := i, adapter
		g.Go(func() error {
			res, err := adapter.Fetch(gctx, a.address)
			if err != nil {
				fetchErrs[i] = err
				return nil // isolation: a failed adapter must not cancel the others
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}

	snap, err := a.build(ctx, results, fetchErrs)
	if err != nil {
		return domain.Snapshot{}, err
	}

	a.logger.Info("aggregation complete",
		slog.String("address", a.address),
		slog.String("nav", snap.Overview.NAV),
		slog.Int("positions", len(snap.Overview.Positions)),
		slog.Duration("elapsed", time.Since(started)))
	return snap, nil
}

// build values all fetched positions and assembles the snapshot.
func (a *Aggregator) build(ctx context.Context, results []domain.ProtocolResult, fetchErrs []error) (domain.Snapshot, error) {
	var entries []domain.PositionEntry
	nav := big.NewInt(0)
	protocols := make(map[string]any)
	adapterErrs := make(map[string]any)

	for i, adapter := range a.adapters {
		if err := fetchErrs[i]; err != nil {
			a.logger.Error("adapter failed, excluding from snapshot",
				slog.String("adapter", adapter.Name()),
				slog.String("error", err.Error()))
			adapterErrs[adapter.Name()] = err.Error()
			continue
		}
		res := results[i]
		if res.Empty() {
			continue
		}

		section, sectionEntries := a.valueProtocol(ctx, res)
		protocols[res.Protocol] = section
		for _, e := range sectionEntries {
			if e.Canonical.Sign() > 0 {
				entries = append(entries, e)
			}
			nav.Add(nav, e.Canonical)
		}
	}
	if len(a.adapters) > 0 && len(adapterErrs) == len(a.adapters) {
		return domain.Snapshot{}, fmt.Errorf("aggregator: all %d adapters failed: %w",
			len(a.adapters), domain.ErrFetchUnavailable)
	}
	if len(adapterErrs) > 0 {
		protocols["errors"] = adapterErrs
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Canonical.Cmp(entries[j].Canonical) > 0
	})

	overview := domain.Overview{
		Positions: entries,
		NAVWei:    nav,
		NAV:       domain.FormatUnits(nav, a.converter.Canonical().Decimals),
	}

	if a.shareToken != nil && a.shareReader != nil {
		supply, err := a.shareReader.TotalSupply(ctx, a.shareToken.Address)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("aggregator: share supply: %w", err)
		}
		overview.TotalSupply = supply
		overview.SharePrice = SharePrice(nav, a.converter.Canonical().Decimals, supply, a.shareToken.Decimals)
	}

	return domain.Snapshot{
		ID:          uuid.NewString(),
		Address:     a.address,
		CollectedAt: time.Now().UTC(),
		Overview:    overview,
		Protocols:   protocols,
	}, nil
}

// valueOrZero converts through the canonical converter, substituting a
// zero-valued result with the reason recorded when the conversion
// itself is unavailable. One token's pricing outage must never evict
// siblings that priced fine.
func (a *Aggregator) valueOrZero(ctx context.Context, token domain.TokenRef, amount *big.Int) domain.ConversionResult {
	conv, err := a.converter.Convert(ctx, token, amount)
	if err != nil {
		a.logger.Warn("conversion unavailable, valuing position at zero",
			slog.String("token", token.Symbol),
			slog.String("error", err.Error()))
		return domain.ConversionResult{
			Canonical: big.NewInt(0),
			Source:    domain.SourceFailed,
			Note:      err.Error(),
		}
	}
	return conv
}

// valueProtocol converts one adapter's raw result into a snapshot
// section plus its overview entries. Entry order within a section is
// deterministic: spot positions, then net exposures, then the pool
// route, then rewards.
func (a *Aggregator) valueProtocol(ctx context.Context, res domain.ProtocolResult) (map[string]any, []domain.PositionEntry) {
	section := map[string]any{"network": res.Network}
	var entries []domain.PositionEntry

	// Spot balances.
	if len(res.Positions) > 0 {
		tokens := make(map[string]any, len(res.Positions))
		for _, pos := range res.Positions {
			conv := a.valueOrZero(ctx, pos.Token, pos.Amount)
			doc := map[string]any{
				"amount":    pos.Amount,
				"balance":   domain.FormatUnits(pos.Amount, pos.Token.Decimals),
				"canonical": conv.Canonical,
				"source":    string(conv.Source),
				"rate":      conv.Rate,
			}
			if conv.Note != "" {
				doc["note"] = conv.Note
			}
			tokens[pos.Token.Symbol] = doc
			entries = append(entries, domain.PositionEntry{
				Key:       res.Protocol + "." + pos.Token.Symbol,
				Canonical: conv.Canonical,
			})
		}
		section["tokens"] = tokens
	}

	// Lending supply/debt pairs.
	for _, pair := range res.Pairs {
		exp := NetPair(pair)
		conv := a.valueOrZero(ctx, exp.Underlying, exp.Net)
		exp.NetCanonical = conv.Canonical
		exp.Conversion = conv

		sectionKey := "net_position"
		if len(res.Pairs) > 1 {
			sectionKey += "_" + exp.Underlying.Symbol
		}
		section[sectionKey] = map[string]any{
			"underlying":    exp.Underlying.Symbol,
			"supplied":      exp.Positive,
			"borrowed":      exp.Negative,
			"net":           exp.Net,
			"net_canonical": exp.NetCanonical,
			"source":        string(conv.Source),
		}
		entries = append(entries, domain.PositionEntry{Key: res.Protocol + "." + sectionKey, Canonical: exp.NetCanonical})
	}

	// Pool shares via route optimization.
	for _, pool := range res.Pools {
		options := a.optimizer.Evaluate(ctx, pool.Share, pool.Sims)
		var recommended domain.WithdrawalOption
		optionDocs := make([]any, 0, len(options))
		for _, opt := range options {
			if opt.Recommended {
				recommended = opt
			}
			optionDocs = append(optionDocs, map[string]any{
				"target":       opt.Target.Symbol,
				"withdrawable": opt.Withdrawable,
				"canonical":    opt.Canonical,
				"source":       string(opt.Conversion.Source),
				"recommended":  opt.Recommended,
			})
		}
		section[pool.Name] = map[string]any{
			"lp_token": pool.Share.Token.Symbol,
			"balance":  pool.Share.Amount,
			"options":  optionDocs,
		}
		entries = append(entries, domain.PositionEntry{
			Key:       res.Protocol + "." + pool.Name,
			Canonical: recommended.Canonical,
		})
	}

	// Claimable rewards.
	if len(res.Rewards) > 0 {
		rewardDocs := make(map[string]any, len(res.Rewards))
		for _, reward := range res.Rewards {
			conv := a.valueOrZero(ctx, reward.Token, reward.Claimable)
			campaigns := make([]any, 0, len(reward.Campaigns))
			for _, cmp := range reward.Campaigns {
				campaigns = append(campaigns, map[string]any{
					"id":        cmp.ID,
					"reason":    cmp.Reason,
					"claimable": cmp.Claimable,
				})
			}
			doc := map[string]any{
				"claimable": reward.Claimable,
				"canonical": conv.Canonical,
				"source":    string(conv.Source),
				"campaigns": campaigns,
			}
			if conv.Note != "" {
				doc["note"] = conv.Note
			}
			rewardDocs[reward.Token.Symbol] = doc
			entries = append(entries, domain.PositionEntry{
				Key:       res.Protocol + "." + reward.Token.Symbol,
				Canonical: conv.Canonical,
			})
		}
		section["rewards"] = rewardDocs
	}

	return section, entries
}

// SharePrice divides NAV by the share supply, both in display units,
// rendered with six decimal places. Zero supply prices at "0".
func SharePrice(nav *big.Int, navDecimals uint8, supply *big.Int, supplyDecimals uint8) string {
	if supply == nil || supply.Sign() == 0 {
		return "0"
	}
	num := new(big.Int).Mul(nav, pow10(int(supplyDecimals)))
	den := new(big.Int).Mul(supply, pow10(int(navDecimals)))
	return new(big.Rat).SetFrac(num, den).FloatString(6)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
