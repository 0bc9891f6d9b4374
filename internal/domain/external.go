package domain

import (
	"context"
	"math/big"
)

// QuoteRequest asks a swap quote service how much of the buy token a
// market sale of SellAmount would return.
type QuoteRequest struct {
	Network    string
	SellToken  string
	BuyToken   string
	SellAmount *big.Int
}

// QuoteResponse is a successful simulated quote. IsFallback is set when
// the quoter answered from its own degraded pricing path rather than a
// live route.
type QuoteResponse struct {
	BuyAmount   *big.Int
	PriceImpact string
	IsFallback  bool
}

// QuoteService simulates market sales via an external aggregator. A
// quotable pair with no route returns an error wrapping ErrNoRoute;
// transport failures return other errors.
type QuoteService interface {
	Quote(ctx context.Context, req QuoteRequest) (QuoteResponse, error)
}

// PoolPriceFeed reports the current base-per-quote rate of an on-chain
// pool from an external market data provider.
type PoolPriceFeed interface {
	PoolRate(ctx context.Context, network, pool string) (*big.Rat, error)
}

// RewardsFeed lists claimable reward streams for an address.
type RewardsFeed interface {
	Rewards(ctx context.Context, network, address string) ([]RewardDetail, error)
}

// ERC20Reader reads token balances and metadata from a chain node.
type ERC20Reader interface {
	BalanceOf(ctx context.Context, token, holder string) (*big.Int, error)
	NativeBalance(ctx context.Context, holder string) (*big.Int, error)
	TokenMeta(ctx context.Context, token string) (TokenRef, error)
	UnderlyingAsset(ctx context.Context, token string) (string, error)
	TotalSupply(ctx context.Context, token string) (*big.Int, error)
}

// PoolReader reads liquidity pool composition and simulates
// single-asset withdrawals.
type PoolReader interface {
	NCoins(ctx context.Context, pool string) (int, error)
	Coin(ctx context.Context, pool string, i int) (string, error)
	CalcWithdrawOneCoin(ctx context.Context, pool string, burn *big.Int, i int) (*big.Int, error)
}
