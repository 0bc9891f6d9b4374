// Package aggregator assembles a portfolio snapshot: it nets lending
// exposures, picks withdrawal routes for pool positions, fans out over
// protocol adapters, and folds everything into a single NAV figure.
package aggregator

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/detradefi/navoracle/internal/domain"
)

// NetPair computes the net exposure of one supply/debt pair in its
// underlying instrument: Net = Positive - Negative.
//
// Pairing is static configuration validated at startup, so both legs
// referencing different underlyings at this point is a programming
// error and panics rather than producing a silently wrong NAV.
func NetPair(pair domain.SupplyDebtPair) domain.NetExposure {
	positive := legAmount(pair.Supply, pair.Underlying)
	negative := legAmount(pair.Debt, pair.Underlying)

	return domain.NetExposure{
		Underlying: pair.Underlying,
		Positive:   positive,
		Negative:   negative,
		Net:        new(big.Int).Sub(positive, negative),
	}
}

// legAmount extracts one leg's amount rescaled to the underlying's
// decimals, after asserting the leg really is denominated in it.
func legAmount(leg *domain.RawPosition, underlying domain.TokenRef) *big.Int {
	if leg == nil {
		return big.NewInt(0)
	}
	if leg.Underlying == nil || !strings.EqualFold(leg.Underlying.Address, underlying.Address) {
		got := "<nil>"
		if leg.Underlying != nil {
			got = leg.Underlying.Address
		}
		panic(fmt.Sprintf("aggregator: leg %s denominated in %s, pair declares underlying %s",
			leg.Token.Symbol, got, underlying.Address))
	}
	return domain.Rescale(leg.Amount, leg.Token.Decimals, underlying.Decimals)
}
