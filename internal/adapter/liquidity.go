package adapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/detradefi/navoracle/internal/config"
	"github.com/detradefi/navoracle/internal/domain"
)

// Liquidity reads LP share balances for the configured pools and
// simulates withdrawing the full balance as each pool coin. A coin
// whose simulation reverts is recorded with the revert reason instead
// of failing the pool; the route optimizer skips it.
type Liquidity struct {
	readers  Readers
	protocol string
	pools    []config.PoolConfig

	meta   *metaCache
	logger *slog.Logger
}

// NewLiquidity creates the liquidity pool adapter for one protocol's
// pools.
func NewLiquidity(readers Readers, protocol string, pools []config.PoolConfig, logger *slog.Logger) *Liquidity {
	return &Liquidity{
		readers:  readers,
		protocol: protocol,
		pools:    pools,
		meta:     newMetaCache(),
		logger:   logger.With(slog.String("component", "liquidity"), slog.String("protocol", protocol)),
	}
}

// Name implements aggregator.Adapter.
func (l *Liquidity) Name() string { return l.protocol }

// Fetch reads every configured pool. Pools where the address holds no
// shares are dropped.
func (l *Liquidity) Fetch(ctx context.Context, address string) (domain.ProtocolResult, error) {
	res := domain.ProtocolResult{Protocol: l.protocol}

	for _, pool := range l.pools {
		reader, ok := l.readers[pool.Network]
		if !ok {
			return domain.ProtocolResult{}, fmt.Errorf("adapter/liquidity: network %q: %w", pool.Network, domain.ErrFetchUnavailable)
		}

		lpToken := pool.LPToken
		if lpToken == "" {
			lpToken = pool.Address
		}
		ref, err := l.meta.get(ctx, reader, pool.Network, lpToken)
		if err != nil {
			return domain.ProtocolResult{}, fmt.Errorf("adapter/liquidity: meta %s: %w: %w", pool.Name, domain.ErrFetchUnavailable, err)
		}
		bal, err := reader.BalanceOf(ctx, lpToken, address)
		if err != nil {
			return domain.ProtocolResult{}, fmt.Errorf("adapter/liquidity: balance %s: %w: %w", pool.Name, domain.ErrFetchUnavailable, err)
		}
		if bal.Sign() == 0 {
			continue
		}

		share := domain.RawPosition{
			Protocol: l.protocol,
			Network:  pool.Network,
			Token:    ref,
			Amount:   bal,
			Role:     domain.RolePoolShare,
		}
		sims, err := l.simulate(ctx, reader, pool, share)
		if err != nil {
			return domain.ProtocolResult{}, err
		}

		res.Network = pool.Network
		res.Pools = append(res.Pools, domain.PoolPosition{
			Name:  pool.Name,
			Share: share,
			Sims:  sims,
		})
	}

	l.logger.Debug("liquidity fetch complete",
		slog.String("address", address),
		slog.Int("pools", len(res.Pools)))
	return res, nil
}

// simulate quotes a full single-asset exit for every coin in the pool.
func (l *Liquidity) simulate(ctx context.Context, reader ChainReader, pool config.PoolConfig, share domain.RawPosition) ([]domain.WithdrawalSim, error) {
	n, err := reader.NCoins(ctx, pool.Address)
	if err != nil {
		return nil, fmt.Errorf("adapter/liquidity: n_coins %s: %w: %w", pool.Name, domain.ErrFetchUnavailable, err)
	}

	sims := make([]domain.WithdrawalSim, 0, n)
	for i := 0; i < n; i++ {
		coinAddr, err := reader.Coin(ctx, pool.Address, i)
		if err != nil {
			return nil, fmt.Errorf("adapter/liquidity: coin %d of %s: %w: %w", i, pool.Name, domain.ErrFetchUnavailable, err)
		}
		target, err := l.meta.get(ctx, reader, pool.Network, coinAddr)
		if err != nil {
			return nil, fmt.Errorf("adapter/liquidity: meta %s: %w: %w", coinAddr, domain.ErrFetchUnavailable, err)
		}

		amount, err := reader.CalcWithdrawOneCoin(ctx, pool.Address, share.Amount, i)
		if err != nil {
			// A reverting quote for one coin is a failed route, not a
			// failed pool.
			l.logger.Warn("withdrawal quote reverted",
				slog.String("pool", pool.Name),
				slog.String("coin", target.Symbol),
				slog.String("error", err.Error()))
			sims = append(sims, domain.WithdrawalSim{
				Target: target,
				Err:    fmt.Sprintf("%s: %v", domain.ErrRouteSimulationFailed, err),
			})
			continue
		}
		sims = append(sims, domain.WithdrawalSim{Target: target, Amount: amount})
	}
	return sims, nil
}
