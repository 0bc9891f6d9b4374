package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// Rescale converts an amount between token decimal scales using pure
// integer arithmetic. Scaling down truncates toward zero.
func Rescale(amount *big.Int, from, to uint8) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Set(amount)
	if from == to {
		return out
	}
	if to > from {
		return out.Mul(out, pow10(int(to-from)))
	}
	return out.Quo(out, pow10(int(from-to)))
}

// FormatUnits renders a raw amount as a decimal string in display
// units, trimming trailing fractional zeros.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil || amount.Sign() == 0 {
		return "0"
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	quo, rem := new(big.Int).QuoRem(abs, pow10(int(decimals)), new(big.Int))
	s := quo.String()
	if rem.Sign() != 0 {
		frac := strings.TrimRight(fmt.Sprintf("%0*s", decimals, rem.String()), "0")
		s += "." + frac
	}
	if neg {
		s = "-" + s
	}
	return s
}

// ParseUnits parses a decimal string into a raw amount at the given
// scale. Excess fractional digits are an error rather than silently
// truncated.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	intPart, fracPart, _ := strings.Cut(strings.TrimSpace(s), ".")
	if len(fracPart) > int(decimals) {
		return nil, fmt.Errorf("domain: parse units: %q has more than %d fractional digits", s, decimals)
	}
	whole, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return nil, fmt.Errorf("domain: parse units: invalid amount %q", s)
	}
	whole.Mul(whole, pow10(int(decimals)))
	if fracPart != "" {
		frac, ok := new(big.Int).SetString(fracPart, 10)
		if !ok {
			return nil, fmt.Errorf("domain: parse units: invalid amount %q", s)
		}
		frac.Mul(frac, pow10(int(decimals)-len(fracPart)))
		if whole.Sign() < 0 || strings.HasPrefix(intPart, "-") {
			whole.Sub(whole, frac)
		} else {
			whole.Add(whole, frac)
		}
	}
	return whole, nil
}

// ClaimableNow returns max(total-claimed, 0). Reward distributors can
// briefly report claimed ahead of total; a negative remainder is noise,
// not a position.
func ClaimableNow(total, claimed *big.Int) *big.Int {
	if total == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Set(total)
	if claimed != nil {
		out.Sub(out, claimed)
	}
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
