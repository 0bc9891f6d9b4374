// Package domain defines the core types shared across the NAV oracle:
// raw on-chain positions, conversion results, net exposures, withdrawal
// routes, and the snapshot document that gets persisted after every
// aggregation run.
package domain

import "math/big"

// Role classifies what a raw balance economically represents.
type Role string

const (
	RoleSupply    Role = "supply"
	RoleDebt      Role = "debt"
	RolePoolShare Role = "pool_share"
	RoleReward    Role = "reward"
)

// TokenRef identifies a token on a specific network together with the
// metadata needed to rescale its raw amounts.
type TokenRef struct {
	Symbol   string
	Address  string // hex contract address, or "native" for the chain coin
	Decimals uint8
}

// RawPosition is one observed balance: an amount of a single instrument
// held by the tracked address at collection time. It is immutable once
// fetched; valuation happens later and produces a separate
// ConversionResult.
type RawPosition struct {
	Protocol string
	Network  string
	Token    TokenRef
	// Underlying is set for wrapper instruments (lending supply/debt
	// tokens) whose raw balance is denominated 1:1 in another asset.
	Underlying *TokenRef
	Amount     *big.Int
	Role       Role
}

// SupplyDebtPair couples a supply-side and a debt-side position in the
// same underlying instrument, as declared by the lending market
// configuration. Either side may be nil when the address holds only one
// leg.
type SupplyDebtPair struct {
	Underlying TokenRef
	Supply     *RawPosition
	Debt       *RawPosition
}

// WithdrawalSim is one simulated single-asset exit from a liquidity
// pool: burning the full share balance yields Amount of Target. A
// failed simulation carries the reason in Err and is excluded from
// route optimization.
type WithdrawalSim struct {
	Target TokenRef
	Amount *big.Int
	Err    string
}

// CampaignClaim is the claimable remainder of a single reward campaign.
type CampaignClaim struct {
	ID        string
	Reason    string
	Claimable *big.Int
}

// RewardDetail is one claimable reward stream reported by the rewards
// feed. Claimable is max(Total-Claimed, 0).
type RewardDetail struct {
	Token     TokenRef
	Total     *big.Int
	Claimed   *big.Int
	Claimable *big.Int
	Campaigns []CampaignClaim
}

// PoolPosition is one liquidity pool holding: the LP share balance and
// the simulated single-asset exits for it.
type PoolPosition struct {
	Name  string
	Share RawPosition
	Sims  []WithdrawalSim
}

// ProtocolResult is everything a single protocol adapter observed for
// an address in one run. Role-specific payloads are optional: a lending
// adapter fills Pairs, a liquidity adapter fills Pools, a rewards
// adapter fills Rewards, a spot adapter fills Positions only. An
// adapter that found nothing returns a zero ProtocolResult and no
// error; a genuine fetch failure is reported as an error wrapping
// ErrFetchUnavailable instead.
type ProtocolResult struct {
	Protocol  string
	Network   string
	Positions []RawPosition
	Pairs     []SupplyDebtPair
	Pools     []PoolPosition
	Rewards   []RewardDetail
}

// Empty reports whether the adapter observed no positions at all.
func (r ProtocolResult) Empty() bool {
	return len(r.Positions) == 0 && len(r.Pairs) == 0 && len(r.Pools) == 0 && len(r.Rewards) == 0
}
