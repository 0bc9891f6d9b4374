// Package swapquote is the REST client for the swap aggregator quote
// API used to simulate market sales without executing them.
package swapquote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/detradefi/navoracle/internal/domain"
)

// Client requests sell quotes from an aggregator quote endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a quote client.
//
// baseURL is the API root, e.g. "https://api.cow.fi".
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// quoteRequest is the wire format of a sell-quote request.
type quoteRequest struct {
	SellToken           string `json:"sellToken"`
	BuyToken            string `json:"buyToken"`
	SellAmountBeforeFee string `json:"sellAmountBeforeFee"`
	Kind                string `json:"kind"`
	PriceQuality        string `json:"priceQuality"`
}

// quoteResponse is the wire format of a successful quote.
type quoteResponse struct {
	Quote struct {
		BuyAmount  string `json:"buyAmount"`
		SellAmount string `json:"sellAmount"`
		FeeAmount  string `json:"feeAmount"`
	} `json:"quote"`
	PriceImpact string `json:"priceImpact,omitempty"`
	IsFallback  bool   `json:"isFallback,omitempty"`
}

// apiError is the wire format of a quote rejection.
type apiError struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
}

// Quote simulates selling req.SellAmount of the sell token for the buy
// token. A pair the aggregator cannot route returns an error wrapping
// domain.ErrNoRoute; transport and server failures return plain errors.
func (c *Client) Quote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResponse, error) {
	if req.SellAmount == nil || req.SellAmount.Sign() <= 0 {
		return domain.QuoteResponse{}, fmt.Errorf("swapquote: sell amount must be positive")
	}

	payload, err := json.Marshal(quoteRequest{
		SellToken:           req.SellToken,
		BuyToken:            req.BuyToken,
		SellAmountBeforeFee: req.SellAmount.String(),
		Kind:                "sell",
		PriceQuality:        "fast",
	})
	if err != nil {
		return domain.QuoteResponse{}, fmt.Errorf("swapquote: encode request: %w", err)
	}

	path := fmt.Sprintf("/%s/api/v1/quote", req.Network)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return domain.QuoteResponse{}, fmt.Errorf("swapquote: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.QuoteResponse{}, fmt.Errorf("swapquote: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.QuoteResponse{}, fmt.Errorf("swapquote: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && noRouteError(resp.StatusCode, apiErr.ErrorType) {
			return domain.QuoteResponse{}, fmt.Errorf("swapquote: %s -> %s: %s: %w",
				req.SellToken, req.BuyToken, apiErr.Description, domain.ErrNoRoute)
		}
		return domain.QuoteResponse{}, fmt.Errorf("swapquote: HTTP %d: %s", resp.StatusCode, body)
	}

	var out quoteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.QuoteResponse{}, fmt.Errorf("swapquote: decode response: %w", err)
	}

	buyAmount, ok := new(big.Int).SetString(out.Quote.BuyAmount, 10)
	if !ok {
		return domain.QuoteResponse{}, fmt.Errorf("swapquote: invalid buy amount %q", out.Quote.BuyAmount)
	}

	return domain.QuoteResponse{
		BuyAmount:   buyAmount,
		PriceImpact: out.PriceImpact,
		IsFallback:  out.IsFallback,
	}, nil
}

// noRouteError reports whether a rejection means the pair has no route,
// as opposed to a malformed request or a server-side failure.
func noRouteError(status int, errorType string) bool {
	if status == http.StatusNotFound {
		return true
	}
	switch errorType {
	case "NoLiquidity", "UnsupportedToken", "SellAmountDoesNotCoverFee":
		return true
	}
	return false
}
