package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/detradefi/navoracle/internal/domain"
)

// Rewards reads claimable incentive streams from the distributor feed
// across the configured networks, merging streams of the same token.
type Rewards struct {
	feed     domain.RewardsFeed
	networks []string
	logger   *slog.Logger
}

// NewRewards creates the rewards adapter.
func NewRewards(feed domain.RewardsFeed, networks []string, logger *slog.Logger) *Rewards {
	return &Rewards{
		feed:     feed,
		networks: networks,
		logger:   logger.With(slog.String("component", "rewards")),
	}
}

// Name implements aggregator.Adapter.
func (r *Rewards) Name() string { return "rewards" }

// Fetch lists claimable rewards on every configured network.
func (r *Rewards) Fetch(ctx context.Context, address string) (domain.ProtocolResult, error) {
	res := domain.ProtocolResult{
		Protocol: "rewards",
		Network:  strings.Join(r.networks, ","),
	}

	merged := make(map[string]int) // lowercase token address -> index in res.Rewards
	for _, network := range r.networks {
		details, err := r.feed.Rewards(ctx, network, address)
		if err != nil {
			return domain.ProtocolResult{}, fmt.Errorf("adapter/rewards: %s: %w: %w", network, domain.ErrFetchUnavailable, err)
		}
		for _, d := range details {
			key := strings.ToLower(d.Token.Address)
			if i, ok := merged[key]; ok {
				prev := &res.Rewards[i]
				prev.Total.Add(prev.Total, d.Total)
				prev.Claimed.Add(prev.Claimed, d.Claimed)
				prev.Claimable.Add(prev.Claimable, d.Claimable)
				prev.Campaigns = append(prev.Campaigns, d.Campaigns...)
				continue
			}
			merged[key] = len(res.Rewards)
			res.Rewards = append(res.Rewards, d)
		}
	}

	r.logger.Debug("rewards fetch complete",
		slog.String("address", address),
		slog.Int("tokens", len(res.Rewards)))
	return res, nil
}
