package domain

import "math/big"

// NetExposure is the netted lending position in one underlying
// instrument: Net = Positive - Negative in the instrument's smallest
// unit, and NetCanonical is that net amount valued in the canonical
// asset. Net can be negative when debt exceeds supply.
type NetExposure struct {
	Underlying   TokenRef
	Positive     *big.Int
	Negative     *big.Int
	Net          *big.Int
	NetCanonical *big.Int
	Conversion   ConversionResult
}
