package adapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/detradefi/navoracle/internal/config"
	"github.com/detradefi/navoracle/internal/domain"
)

// Spot reads plain wallet balances: configured ERC20 tokens plus the
// native coin.
type Spot struct {
	readers Readers
	tokens  []config.SpotToken

	trackNative   bool
	nativeNetwork string

	meta   *metaCache
	logger *slog.Logger
}

// NewSpot creates the spot balance adapter.
func NewSpot(readers Readers, cfg config.SpotConfig, logger *slog.Logger) *Spot {
	return &Spot{
		readers:       readers,
		tokens:        cfg.Tokens,
		trackNative:   cfg.TrackNative,
		nativeNetwork: cfg.NativeNetwork,
		meta:          newMetaCache(),
		logger:        logger.With(slog.String("component", "spot")),
	}
}

// Name implements aggregator.Adapter.
func (s *Spot) Name() string { return "spot" }

// Fetch reads every configured balance. Zero balances are dropped.
func (s *Spot) Fetch(ctx context.Context, address string) (domain.ProtocolResult, error) {
	res := domain.ProtocolResult{Protocol: "spot"}

	for _, tok := range s.tokens {
		reader, ok := s.readers[tok.Network]
		if !ok {
			return domain.ProtocolResult{}, fmt.Errorf("adapter/spot: network %q: %w", tok.Network, domain.ErrFetchUnavailable)
		}
		ref, err := s.meta.get(ctx, reader, tok.Network, tok.Address)
		if err != nil {
			return domain.ProtocolResult{}, fmt.Errorf("adapter/spot: meta %s: %w: %w", tok.Address, domain.ErrFetchUnavailable, err)
		}
		bal, err := reader.BalanceOf(ctx, tok.Address, address)
		if err != nil {
			return domain.ProtocolResult{}, fmt.Errorf("adapter/spot: balance %s: %w: %w", ref.Symbol, domain.ErrFetchUnavailable, err)
		}
		if bal.Sign() == 0 {
			continue
		}
		res.Network = tok.Network
		res.Positions = append(res.Positions, domain.RawPosition{
			Protocol: "spot",
			Network:  tok.Network,
			Token:    ref,
			Amount:   bal,
			Role:     domain.RoleSupply,
		})
	}

	if s.trackNative && s.nativeNetwork != "" {
		reader, ok := s.readers[s.nativeNetwork]
		if !ok {
			return domain.ProtocolResult{}, fmt.Errorf("adapter/spot: network %q: %w", s.nativeNetwork, domain.ErrFetchUnavailable)
		}
		bal, err := reader.NativeBalance(ctx, address)
		if err != nil {
			return domain.ProtocolResult{}, fmt.Errorf("adapter/spot: native balance: %w: %w", domain.ErrFetchUnavailable, err)
		}
		if bal.Sign() > 0 {
			res.Network = s.nativeNetwork
			res.Positions = append(res.Positions, domain.RawPosition{
				Protocol: "spot",
				Network:  s.nativeNetwork,
				Token:    reader.NativeToken(),
				Amount:   bal,
				Role:     domain.RoleSupply,
			})
		}
	}

	s.logger.Debug("spot fetch complete",
		slog.String("address", address),
		slog.Int("positions", len(res.Positions)))
	return res, nil
}
