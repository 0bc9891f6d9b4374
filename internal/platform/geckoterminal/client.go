// Package geckoterminal is the REST client for the GeckoTerminal pool
// data API, used as the external market-rate feed.
package geckoterminal

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

// Client reads pool prices from the GeckoTerminal public API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a GeckoTerminal client.
//
// baseURL is the API root, e.g. "https://api.geckoterminal.com/api/v2".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiPool is the wire format of a pool lookup.
type apiPool struct {
	Data struct {
		Attributes struct {
			BaseTokenPriceQuoteToken string `json:"base_token_price_quote_token"`
		} `json:"attributes"`
	} `json:"data"`
}

// PoolRate returns the pool's base token price in quote token units.
func (c *Client) PoolRate(ctx context.Context, network, pool string) (*big.Rat, error) {
	path := fmt.Sprintf("/networks/%s/pools/%s", url.PathEscape(network), url.PathEscape(pool))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("geckoterminal: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geckoterminal: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("geckoterminal: read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("geckoterminal: pool %s on %s: %w", pool, network, domain.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geckoterminal: HTTP %d: %s", resp.StatusCode, body)
	}

	var out apiPool
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("geckoterminal: decode response: %w", err)
	}

	price := out.Data.Attributes.BaseTokenPriceQuoteToken
	rate, ok := new(big.Rat).SetString(price)
	if !ok || rate.Sign() <= 0 {
		return nil, fmt.Errorf("geckoterminal: pool %s: invalid rate %q", pool, price)
	}
	return rate, nil
}
