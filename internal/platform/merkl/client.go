// Package merkl is the REST client for the Merkl reward distributor
// API, which reports accumulated and already-claimed incentives per
// address.
package merkl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/detradefi/navoracle/internal/domain"
)

// Client reads claimable rewards from the Merkl API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// chainIDs maps network names to Merkl chain identifiers.
	chainIDs map[string]int
}

// New creates a Merkl client.
//
// baseURL is the API root, e.g. "https://api.merkl.xyz".
func New(baseURL string, chainIDs map[string]int) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		chainIDs: chainIDs,
	}
}

// apiReward is the wire format of one reward token entry.
type apiReward struct {
	Token struct {
		Address  string `json:"address"`
		Symbol   string `json:"symbol"`
		Decimals uint8  `json:"decimals"`
	} `json:"token"`
	Amount    string `json:"amount"`
	Claimed   string `json:"claimed"`
	Breakdown []struct {
		CampaignID string `json:"campaignId"`
		Reason     string `json:"reason"`
		Amount     string `json:"amount"`
		Claimed    string `json:"claimed"`
	} `json:"breakdowns"`
}

// apiChainRewards is the wire format of the per-chain rewards response.
type apiChainRewards struct {
	Chain struct {
		ID int `json:"id"`
	} `json:"chain"`
	Rewards []apiReward `json:"rewards"`
}

// Rewards returns the claimable reward streams for an address on one
// network. Streams fully claimed already are dropped.
func (c *Client) Rewards(ctx context.Context, network, address string) ([]domain.RewardDetail, error) {
	chainID, ok := c.chainIDs[network]
	if !ok {
		return nil, fmt.Errorf("merkl: network %q has no chain id mapping: %w", network, domain.ErrNotFound)
	}

	params := url.Values{}
	params.Set("chainId", fmt.Sprintf("%d", chainID))
	path := fmt.Sprintf("/v4/users/%s/rewards?%s", url.PathEscape(address), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("merkl: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("merkl: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("merkl: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("merkl: HTTP %d: %s", resp.StatusCode, body)
	}

	var chains []apiChainRewards
	if err := json.Unmarshal(body, &chains); err != nil {
		return nil, fmt.Errorf("merkl: decode response: %w", err)
	}

	var details []domain.RewardDetail
	for _, ch := range chains {
		if ch.Chain.ID != chainID {
			continue
		}
		for _, r := range ch.Rewards {
			detail, err := toDetail(r)
			if err != nil {
				return nil, err
			}
			if detail.Claimable.Sign() > 0 {
				details = append(details, detail)
			}
		}
	}
	return details, nil
}

func toDetail(r apiReward) (domain.RewardDetail, error) {
	total, err := parseAmount(r.Amount)
	if err != nil {
		return domain.RewardDetail{}, fmt.Errorf("merkl: %s: %w", r.Token.Symbol, err)
	}
	claimed, err := parseAmount(r.Claimed)
	if err != nil {
		return domain.RewardDetail{}, fmt.Errorf("merkl: %s: %w", r.Token.Symbol, err)
	}

	detail := domain.RewardDetail{
		Token: domain.TokenRef{
			Symbol:   r.Token.Symbol,
			Address:  r.Token.Address,
			Decimals: r.Token.Decimals,
		},
		Total:     total,
		Claimed:   claimed,
		Claimable: domain.ClaimableNow(total, claimed),
	}

	for _, b := range r.Breakdown {
		bTotal, err := parseAmount(b.Amount)
		if err != nil {
			return domain.RewardDetail{}, fmt.Errorf("merkl: campaign %s: %w", b.CampaignID, err)
		}
		bClaimed, err := parseAmount(b.Claimed)
		if err != nil {
			return domain.RewardDetail{}, fmt.Errorf("merkl: campaign %s: %w", b.CampaignID, err)
		}
		claimable := domain.ClaimableNow(bTotal, bClaimed)
		if claimable.Sign() > 0 {
			detail.Campaigns = append(detail.Campaigns, domain.CampaignClaim{
				ID:        b.CampaignID,
				Reason:    b.Reason,
				Claimable: claimable,
			})
		}
	}
	return detail, nil
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}
