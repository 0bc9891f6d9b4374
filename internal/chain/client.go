// Package chain provides read-only EVM access: ERC20 balances and
// metadata, native balances, and liquidity pool queries. All calls go
// through eth_call against the latest block; nothing here signs or
// sends transactions.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/detradefi/navoracle/internal/config"
	"github.com/detradefi/navoracle/internal/domain"
)

// Client wraps an ethclient connection to a single network.
type Client struct {
	network string
	native  domain.TokenRef
	eth     *ethclient.Client
	logger  *slog.Logger
}

// Dial connects to the network's RPC endpoint and verifies the chain ID
// matches the configuration.
func Dial(ctx context.Context, network string, cfg config.NetworkConfig, logger *slog.Logger) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	eth, err := ethclient.DialContext(dialCtx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", network, err)
	}

	chainID, err := eth.ChainID(dialCtx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: chain id %s: %w", network, err)
	}
	if chainID.Int64() != int64(cfg.ChainID) {
		eth.Close()
		return nil, fmt.Errorf("chain: %s: chain id mismatch: expected %d, got %s", network, cfg.ChainID, chainID)
	}

	return &Client{
		network: network,
		native: domain.TokenRef{
			Symbol:   cfg.NativeSymbol,
			Address:  "native",
			Decimals: uint8(cfg.NativeDecimals),
		},
		eth:    eth,
		logger: logger.With(slog.String("component", "chain"), slog.String("network", network)),
	}, nil
}

// Network returns the configured network name.
func (c *Client) Network() string { return c.network }

// NativeToken returns the chain's native coin reference.
func (c *Client) NativeToken() domain.TokenRef { return c.native }

// Close releases the underlying RPC connection.
func (c *Client) Close() { c.eth.Close() }

// Registry holds one connected client per configured network.
type Registry map[string]*Client

// DialAll connects to every configured network. On any failure the
// already-opened connections are closed before returning.
func DialAll(ctx context.Context, networks map[string]config.NetworkConfig, logger *slog.Logger) (Registry, error) {
	reg := make(Registry, len(networks))
	for name, cfg := range networks {
		client, err := Dial(ctx, name, cfg, logger)
		if err != nil {
			reg.Close()
			return nil, err
		}
		reg[name] = client
	}
	return reg, nil
}

// Get returns the client for a network.
func (r Registry) Get(network string) (*Client, error) {
	c, ok := r[network]
	if !ok {
		return nil, fmt.Errorf("chain: network %q not configured: %w", network, domain.ErrNotFound)
	}
	return c, nil
}

// Close closes every connection in the registry.
func (r Registry) Close() {
	for _, c := range r {
		c.Close()
	}
}

// parseAddress validates and parses a hex contract address.
func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("chain: %q: %w", s, domain.ErrInvalidAddress)
	}
	return common.HexToAddress(s), nil
}
