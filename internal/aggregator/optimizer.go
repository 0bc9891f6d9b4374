package aggregator

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/detradefi/navoracle/internal/domain"
	"github.com/detradefi/navoracle/internal/pricing"
)

// Optimizer evaluates simulated pool exits and recommends the one with
// the highest canonical value.
type Optimizer struct {
	converter *pricing.Converter
	logger    *slog.Logger
}

// NewOptimizer creates an Optimizer valuing routes through converter.
func NewOptimizer(converter *pricing.Converter, logger *slog.Logger) *Optimizer {
	return &Optimizer{
		converter: converter,
		logger:    logger.With(slog.String("component", "optimizer")),
	}
}

// Evaluate values every successful withdrawal simulation and marks the
// best one recommended. Ties keep the first-seen option: a later route
// must be strictly better to displace the current best. An option whose
// valuation fails is kept at zero value with the reason recorded, and
// is never recommended while any sibling priced. When every route
// failed simulation or valuation, a single 1:1 estimate of the share
// balance is returned so the position never silently drops out of the
// NAV.
func (o *Optimizer) Evaluate(ctx context.Context, share domain.RawPosition, sims []domain.WithdrawalSim) []domain.WithdrawalOption {
	options := make([]domain.WithdrawalOption, 0, len(sims))
	best := -1

	for _, sim := range sims {
		if sim.Err != "" {
			o.logger.Warn("withdrawal simulation failed",
				slog.String("pool_token", share.Token.Symbol),
				slog.String("target", sim.Target.Symbol),
				slog.String("error", sim.Err))
			continue
		}
		conv, err := o.converter.Convert(ctx, sim.Target, sim.Amount)
		if err != nil {
			o.logger.Warn("route valuation unavailable, keeping option at zero",
				slog.String("pool_token", share.Token.Symbol),
				slog.String("target", sim.Target.Symbol),
				slog.String("error", err.Error()))
			conv = domain.ConversionResult{
				Canonical: big.NewInt(0),
				Source:    domain.SourceFailed,
				Note:      err.Error(),
			}
		}
		opt := domain.WithdrawalOption{
			Target:       sim.Target,
			Withdrawable: sim.Amount,
			Canonical:    conv.Canonical,
			Conversion:   conv,
		}
		options = append(options, opt)
		if conv.Failed() {
			continue
		}
		if best < 0 || opt.Canonical.Cmp(options[best].Canonical) > 0 {
			best = len(options) - 1
		}
	}

	if best < 0 {
		canonical := o.converter.Canonical()
		estimate := domain.Rescale(share.Amount, share.Token.Decimals, canonical.Decimals)
		o.logger.Warn("no route could be valued, estimating share balance 1:1",
			slog.String("pool_token", share.Token.Symbol),
			slog.String("estimate", estimate.String()))
		return []domain.WithdrawalOption{{
			Target:       canonical,
			Withdrawable: new(big.Int).Set(share.Amount),
			Canonical:    estimate,
			Conversion: domain.ConversionResult{
				Canonical: estimate,
				Source:    domain.SourceEstimated,
				Rate:      "1",
				Note:      "all routes failed",
			},
			Recommended: true,
		}}
	}

	options[best].Recommended = true
	return options
}
