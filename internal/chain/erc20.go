package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/detradefi/navoracle/internal/domain"
)

// Minimal ERC20 ABI plus the lending wrapper extension for resolving
// the asset a supply/debt token is denominated in.
const erc20ABI = `[
  {"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
  {"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
  {"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"constant":true,"inputs":[],"name":"UNDERLYING_ASSET_ADDRESS","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

var (
	parsedERC20     abi.ABI
	parseERC20Once  sync.Once
	parseERC20Error error
)

func erc20() (abi.ABI, error) {
	parseERC20Once.Do(func() {
		parsedERC20, parseERC20Error = abi.JSON(strings.NewReader(erc20ABI))
	})
	return parsedERC20, parseERC20Error
}

// call packs a method call, executes it against the latest block, and
// unpacks the single return value into out.
func (c *Client) call(ctx context.Context, parsed abi.ABI, contract common.Address, method string, out any, args ...any) error {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("chain: pack %s: %w", method, err)
	}
	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("chain: call %s on %s: %w", method, contract.Hex(), err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("chain: call %s on %s: empty result", method, contract.Hex())
	}
	if err := parsed.UnpackIntoInterface(out, method, raw); err != nil {
		return fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	return nil
}

// BalanceOf returns the raw ERC20 balance of holder.
func (c *Client) BalanceOf(ctx context.Context, token, holder string) (*big.Int, error) {
	parsed, err := erc20()
	if err != nil {
		return nil, err
	}
	tokenAddr, err := parseAddress(token)
	if err != nil {
		return nil, err
	}
	holderAddr, err := parseAddress(holder)
	if err != nil {
		return nil, err
	}
	var out *big.Int
	if err := c.call(ctx, parsed, tokenAddr, "balanceOf", &out, holderAddr); err != nil {
		return nil, err
	}
	return out, nil
}

// NativeBalance returns the chain coin balance of holder at the latest
// block.
func (c *Client) NativeBalance(ctx context.Context, holder string) (*big.Int, error) {
	addr, err := parseAddress(holder)
	if err != nil {
		return nil, err
	}
	bal, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: native balance %s: %w", holder, err)
	}
	return bal, nil
}

// TokenMeta reads a token's symbol and decimals.
func (c *Client) TokenMeta(ctx context.Context, token string) (domain.TokenRef, error) {
	parsed, err := erc20()
	if err != nil {
		return domain.TokenRef{}, err
	}
	addr, err := parseAddress(token)
	if err != nil {
		return domain.TokenRef{}, err
	}
	var symbol string
	if err := c.call(ctx, parsed, addr, "symbol", &symbol); err != nil {
		return domain.TokenRef{}, err
	}
	var decimals uint8
	if err := c.call(ctx, parsed, addr, "decimals", &decimals); err != nil {
		return domain.TokenRef{}, err
	}
	return domain.TokenRef{Symbol: symbol, Address: addr.Hex(), Decimals: decimals}, nil
}

// UnderlyingAsset resolves the asset a lending wrapper token is
// denominated in.
func (c *Client) UnderlyingAsset(ctx context.Context, token string) (string, error) {
	parsed, err := erc20()
	if err != nil {
		return "", err
	}
	addr, err := parseAddress(token)
	if err != nil {
		return "", err
	}
	var out common.Address
	if err := c.call(ctx, parsed, addr, "UNDERLYING_ASSET_ADDRESS", &out); err != nil {
		return "", err
	}
	return out.Hex(), nil
}

// TotalSupply reads a token's total supply.
func (c *Client) TotalSupply(ctx context.Context, token string) (*big.Int, error) {
	parsed, err := erc20()
	if err != nil {
		return nil, err
	}
	addr, err := parseAddress(token)
	if err != nil {
		return nil, err
	}
	var out *big.Int
	if err := c.call(ctx, parsed, addr, "totalSupply", &out); err != nil {
		return nil, err
	}
	return out, nil
}
