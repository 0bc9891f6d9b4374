package adapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/detradefi/navoracle/internal/config"
	"github.com/detradefi/navoracle/internal/domain"
)

// Lending reads supply and debt wrapper balances for the configured
// markets and resolves each leg's underlying asset on chain.
type Lending struct {
	readers  Readers
	protocol string
	markets  []config.LendingMarket

	meta   *metaCache
	logger *slog.Logger
}

// NewLending creates the lending market adapter.
func NewLending(readers Readers, cfg config.LendingConfig, logger *slog.Logger) *Lending {
	return &Lending{
		readers:  readers,
		protocol: cfg.Protocol,
		markets:  cfg.Markets,
		meta:     newMetaCache(),
		logger:   logger.With(slog.String("component", "lending"), slog.String("protocol", cfg.Protocol)),
	}
}

// Name implements aggregator.Adapter.
func (l *Lending) Name() string { return l.protocol }

// Fetch reads both legs of every configured market. Markets where the
// address holds neither leg are dropped.
func (l *Lending) Fetch(ctx context.Context, address string) (domain.ProtocolResult, error) {
	res := domain.ProtocolResult{Protocol: l.protocol}

	for _, market := range l.markets {
		reader, ok := l.readers[market.Network]
		if !ok {
			return domain.ProtocolResult{}, fmt.Errorf("adapter/lending: network %q: %w", market.Network, domain.ErrFetchUnavailable)
		}

		supply, underlying, err := l.leg(ctx, reader, market.Network, market.SupplyToken, address, domain.RoleSupply)
		if err != nil {
			return domain.ProtocolResult{}, err
		}
		debt, debtUnderlying, err := l.leg(ctx, reader, market.Network, market.DebtToken, address, domain.RoleDebt)
		if err != nil {
			return domain.ProtocolResult{}, err
		}

		pairUnderlying := underlying
		if pairUnderlying == nil {
			pairUnderlying = debtUnderlying
		}
		if pairUnderlying == nil {
			continue // neither leg configured
		}
		if legZero(supply) && legZero(debt) {
			continue
		}

		res.Network = market.Network
		res.Pairs = append(res.Pairs, domain.SupplyDebtPair{
			Underlying: *pairUnderlying,
			Supply:     supply,
			Debt:       debt,
		})
	}

	l.logger.Debug("lending fetch complete",
		slog.String("address", address),
		slog.Int("pairs", len(res.Pairs)))
	return res, nil
}

// leg reads one wrapper token's balance and resolves what it is
// denominated in. A market with this side unset returns nils.
func (l *Lending) leg(ctx context.Context, reader ChainReader, network, token, address string, role domain.Role) (*domain.RawPosition, *domain.TokenRef, error) {
	if token == "" {
		return nil, nil, nil
	}

	ref, err := l.meta.get(ctx, reader, network, token)
	if err != nil {
		return nil, nil, fmt.Errorf("adapter/lending: meta %s: %w: %w", token, domain.ErrFetchUnavailable, err)
	}
	underlyingAddr, err := reader.UnderlyingAsset(ctx, token)
	if err != nil {
		return nil, nil, fmt.Errorf("adapter/lending: underlying of %s: %w: %w", ref.Symbol, domain.ErrFetchUnavailable, err)
	}
	underlying, err := l.meta.get(ctx, reader, network, underlyingAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("adapter/lending: meta %s: %w: %w", underlyingAddr, domain.ErrFetchUnavailable, err)
	}
	bal, err := reader.BalanceOf(ctx, token, address)
	if err != nil {
		return nil, nil, fmt.Errorf("adapter/lending: balance %s: %w: %w", ref.Symbol, domain.ErrFetchUnavailable, err)
	}

	return &domain.RawPosition{
		Protocol:   l.protocol,
		Network:    network,
		Token:      ref,
		Underlying: &underlying,
		Amount:     bal,
		Role:       role,
	}, &underlying, nil
}

func legZero(pos *domain.RawPosition) bool {
	return pos == nil || pos.Amount == nil || pos.Amount.Sign() == 0
}
