package domain

import "math/big"

// WithdrawalOption is one evaluated exit route from a liquidity
// position: withdraw the full share balance as Target, yielding
// Withdrawable raw units valued at Canonical. Exactly one option per
// pool carries Recommended=true.
type WithdrawalOption struct {
	Target       TokenRef
	Withdrawable *big.Int
	Canonical    *big.Int
	Conversion   ConversionResult
	Recommended  bool
}
