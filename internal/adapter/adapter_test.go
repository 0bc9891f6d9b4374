package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detradefi/navoracle/internal/config"
	"github.com/detradefi/navoracle/internal/domain"
)

const holder = "0x1111111111111111111111111111111111111111"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeReader struct {
	metas       map[string]domain.TokenRef
	balances    map[string]*big.Int
	native      *big.Int
	nativeRef   domain.TokenRef
	underlyings map[string]string
	supplies    map[string]*big.Int

	nCoins   map[string]int
	coins    map[string]string   // "pool:i" -> coin address
	calcOut  map[string]*big.Int // "pool:i" -> amount
	calcErrs map[string]error

	balanceErr error
}

func key(addr string) string { return strings.ToLower(addr) }

func (f *fakeReader) BalanceOf(_ context.Context, token, _ string) (*big.Int, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	if b, ok := f.balances[key(token)]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeReader) NativeBalance(context.Context, string) (*big.Int, error) {
	if f.native == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(f.native), nil
}

func (f *fakeReader) TokenMeta(_ context.Context, token string) (domain.TokenRef, error) {
	ref, ok := f.metas[key(token)]
	if !ok {
		return domain.TokenRef{}, fmt.Errorf("fake: no meta for %s", token)
	}
	return ref, nil
}

func (f *fakeReader) UnderlyingAsset(_ context.Context, token string) (string, error) {
	u, ok := f.underlyings[key(token)]
	if !ok {
		return "", fmt.Errorf("fake: no underlying for %s", token)
	}
	return u, nil
}

func (f *fakeReader) TotalSupply(_ context.Context, token string) (*big.Int, error) {
	if s, ok := f.supplies[key(token)]; ok {
		return new(big.Int).Set(s), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeReader) NCoins(_ context.Context, pool string) (int, error) {
	return f.nCoins[key(pool)], nil
}

func (f *fakeReader) Coin(_ context.Context, pool string, i int) (string, error) {
	return f.coins[fmt.Sprintf("%s:%d", key(pool), i)], nil
}

func (f *fakeReader) CalcWithdrawOneCoin(_ context.Context, pool string, _ *big.Int, i int) (*big.Int, error) {
	k := fmt.Sprintf("%s:%d", key(pool), i)
	if err := f.calcErrs[k]; err != nil {
		return nil, err
	}
	return new(big.Int).Set(f.calcOut[k]), nil
}

func (f *fakeReader) NativeToken() domain.TokenRef { return f.nativeRef }

const (
	usdcAddr  = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	wethAddr  = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	aTokAddr  = "0x0000000000000000000000000000000000000aa1"
	dTokAddr  = "0x0000000000000000000000000000000000000dd1"
	poolAddr  = "0x0000000000000000000000000000000000000cc1"
	coin0Addr = "0x0000000000000000000000000000000000000c10"
	coin1Addr = "0x0000000000000000000000000000000000000c11"
)

func baseReader() *fakeReader {
	return &fakeReader{
		metas: map[string]domain.TokenRef{
			key(usdcAddr):  {Symbol: "USDC", Address: usdcAddr, Decimals: 6},
			key(wethAddr):  {Symbol: "WETH", Address: wethAddr, Decimals: 18},
			key(aTokAddr):  {Symbol: "aUSDC", Address: aTokAddr, Decimals: 6},
			key(dTokAddr):  {Symbol: "variableDebtUSDC", Address: dTokAddr, Decimals: 6},
			key(poolAddr):  {Symbol: "poolLP", Address: poolAddr, Decimals: 18},
			key(coin0Addr): {Symbol: "USDC", Address: coin0Addr, Decimals: 6},
			key(coin1Addr): {Symbol: "GHO", Address: coin1Addr, Decimals: 18},
		},
		balances:    map[string]*big.Int{},
		underlyings: map[string]string{},
		nativeRef:   domain.TokenRef{Symbol: "ETH", Address: "native", Decimals: 18},
	}
}

func TestSpotFetch(t *testing.T) {
	reader := baseReader()
	reader.balances[key(usdcAddr)] = big.NewInt(5_000_000)
	reader.native = big.NewInt(1e18)

	spot := NewSpot(Readers{"ethereum": reader}, config.SpotConfig{
		Enabled: true,
		Tokens: []config.SpotToken{
			{Network: "ethereum", Address: usdcAddr},
			{Network: "ethereum", Address: wethAddr}, // zero balance, dropped
		},
		TrackNative:   true,
		NativeNetwork: "ethereum",
	}, discard)

	res, err := spot.Fetch(context.Background(), holder)
	require.NoError(t, err)
	require.Len(t, res.Positions, 2)
	assert.Equal(t, "USDC", res.Positions[0].Token.Symbol)
	assert.Equal(t, "ETH", res.Positions[1].Token.Symbol)
	assert.Equal(t, "1000000000000000000", res.Positions[1].Amount.String())
}

func TestSpotFetchWrapsBackendFailure(t *testing.T) {
	reader := baseReader()
	reader.balanceErr = errors.New("rpc timeout")

	spot := NewSpot(Readers{"ethereum": reader}, config.SpotConfig{
		Tokens: []config.SpotToken{{Network: "ethereum", Address: usdcAddr}},
	}, discard)

	_, err := spot.Fetch(context.Background(), holder)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchUnavailable)
}

func TestLendingFetch(t *testing.T) {
	reader := baseReader()
	reader.balances[key(aTokAddr)] = big.NewInt(100_000_000) // 100 supplied
	reader.balances[key(dTokAddr)] = big.NewInt(30_000_000)  // 30 borrowed
	reader.underlyings[key(aTokAddr)] = usdcAddr
	reader.underlyings[key(dTokAddr)] = usdcAddr

	lending := NewLending(Readers{"ethereum": reader}, config.LendingConfig{
		Enabled:  true,
		Protocol: "aave",
		Markets: []config.LendingMarket{
			{Network: "ethereum", SupplyToken: aTokAddr, DebtToken: dTokAddr},
		},
	}, discard)

	res, err := lending.Fetch(context.Background(), holder)
	require.NoError(t, err)
	require.Len(t, res.Pairs, 1)
	pair := res.Pairs[0]
	assert.Equal(t, "USDC", pair.Underlying.Symbol)
	assert.Equal(t, "100000000", pair.Supply.Amount.String())
	assert.Equal(t, "30000000", pair.Debt.Amount.String())
	assert.Equal(t, domain.RoleDebt, pair.Debt.Role)
}

func TestLendingFetchDropsEmptyMarkets(t *testing.T) {
	reader := baseReader()
	reader.underlyings[key(aTokAddr)] = usdcAddr
	reader.underlyings[key(dTokAddr)] = usdcAddr

	lending := NewLending(Readers{"ethereum": reader}, config.LendingConfig{
		Protocol: "aave",
		Markets: []config.LendingMarket{
			{Network: "ethereum", SupplyToken: aTokAddr, DebtToken: dTokAddr},
		},
	}, discard)

	res, err := lending.Fetch(context.Background(), holder)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestLiquidityFetchSimulatesEveryCoin(t *testing.T) {
	reader := baseReader()
	lpBalance, _ := new(big.Int).SetString("500000000000000000000", 10)
	reader.balances[key(poolAddr)] = lpBalance
	reader.nCoins = map[string]int{key(poolAddr): 2}
	reader.coins = map[string]string{
		key(poolAddr) + ":0": coin0Addr,
		key(poolAddr) + ":1": coin1Addr,
	}
	reader.calcOut = map[string]*big.Int{
		key(poolAddr) + ":0": big.NewInt(500_000_000),
	}
	reader.calcErrs = map[string]error{
		key(poolAddr) + ":1": errors.New("execution reverted"),
	}

	liq := NewLiquidity(Readers{"ethereum": reader}, "curve", []config.PoolConfig{
		{Name: "usdc-gho", Network: "ethereum", Address: poolAddr, Protocol: "curve"},
	}, discard)

	res, err := liq.Fetch(context.Background(), holder)
	require.NoError(t, err)
	require.Len(t, res.Pools, 1)
	pool := res.Pools[0]
	assert.Equal(t, "usdc-gho", pool.Name)
	assert.Equal(t, lpBalance.String(), pool.Share.Amount.String())
	require.Len(t, pool.Sims, 2)
	assert.Equal(t, "500000000", pool.Sims[0].Amount.String())
	assert.Empty(t, pool.Sims[0].Err)
	assert.Contains(t, pool.Sims[1].Err, "execution reverted")
}

func TestLiquidityFetchDropsZeroShares(t *testing.T) {
	reader := baseReader()
	liq := NewLiquidity(Readers{"ethereum": reader}, "curve", []config.PoolConfig{
		{Name: "usdc-gho", Network: "ethereum", Address: poolAddr},
	}, discard)

	res, err := liq.Fetch(context.Background(), holder)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

type fakeFeed struct {
	perNetwork map[string][]domain.RewardDetail
	err        error
}

func (f *fakeFeed) Rewards(_ context.Context, network, _ string) ([]domain.RewardDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.perNetwork[network], nil
}

func TestRewardsFetchMergesNetworks(t *testing.T) {
	tok := domain.TokenRef{Symbol: "MORPHO", Address: "0x9994E35Db50125E0DF82e4c2dde62496CE330999", Decimals: 18}
	feed := &fakeFeed{perNetwork: map[string][]domain.RewardDetail{
		"ethereum": {{Token: tok, Total: big.NewInt(100), Claimed: big.NewInt(40), Claimable: big.NewInt(60)}},
		"base":     {{Token: tok, Total: big.NewInt(50), Claimed: big.NewInt(0), Claimable: big.NewInt(50)}},
	}}

	rewards := NewRewards(feed, []string{"ethereum", "base"}, discard)
	res, err := rewards.Fetch(context.Background(), holder)
	require.NoError(t, err)
	require.Len(t, res.Rewards, 1)
	assert.Equal(t, "110", res.Rewards[0].Claimable.String())
	assert.Equal(t, "150", res.Rewards[0].Total.String())
}

func TestRewardsFetchWrapsFeedFailure(t *testing.T) {
	rewards := NewRewards(&fakeFeed{err: errors.New("503")}, []string{"ethereum"}, discard)
	_, err := rewards.Fetch(context.Background(), holder)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchUnavailable)
}
