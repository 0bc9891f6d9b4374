package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// StableSwap pool view ABI: coin enumeration plus the single-asset
// withdrawal quote. calc_withdraw_one_coin takes the coin index as
// int128, matching the Vyper signature.
const stableSwapABI = `[
  {"inputs":[],"name":"N_COINS","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"arg0","type":"uint256"}],"name":"coins","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"_burn_amount","type":"uint256"},{"name":"i","type":"int128"}],"name":"calc_withdraw_one_coin","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var (
	parsedPool     abi.ABI
	parsePoolOnce  sync.Once
	parsePoolError error
)

func stableSwap() (abi.ABI, error) {
	parsePoolOnce.Do(func() {
		parsedPool, parsePoolError = abi.JSON(strings.NewReader(stableSwapABI))
	})
	return parsedPool, parsePoolError
}

// NCoins returns the number of coins in the pool.
func (c *Client) NCoins(ctx context.Context, pool string) (int, error) {
	parsed, err := stableSwap()
	if err != nil {
		return 0, err
	}
	addr, err := parseAddress(pool)
	if err != nil {
		return 0, err
	}
	var out *big.Int
	if err := c.call(ctx, parsed, addr, "N_COINS", &out); err != nil {
		return 0, err
	}
	n := int(out.Int64())
	if n <= 0 {
		return 0, fmt.Errorf("chain: pool %s reports %d coins", pool, n)
	}
	return n, nil
}

// Coin returns the address of coin i in the pool.
func (c *Client) Coin(ctx context.Context, pool string, i int) (string, error) {
	parsed, err := stableSwap()
	if err != nil {
		return "", err
	}
	addr, err := parseAddress(pool)
	if err != nil {
		return "", err
	}
	var out common.Address
	if err := c.call(ctx, parsed, addr, "coins", &out, big.NewInt(int64(i))); err != nil {
		return "", err
	}
	return out.Hex(), nil
}

// CalcWithdrawOneCoin quotes how much of coin i a burn of the given LP
// amount would return.
func (c *Client) CalcWithdrawOneCoin(ctx context.Context, pool string, burn *big.Int, i int) (*big.Int, error) {
	parsed, err := stableSwap()
	if err != nil {
		return nil, err
	}
	addr, err := parseAddress(pool)
	if err != nil {
		return nil, err
	}
	var out *big.Int
	if err := c.call(ctx, parsed, addr, "calc_withdraw_one_coin", &out, burn, big.NewInt(int64(i))); err != nil {
		return nil, err
	}
	return out, nil
}
