package domain

import "math/big"

// ConversionSource identifies which strategy produced a canonical
// valuation, in descending order of trust.
type ConversionSource string

const (
	// SourceDirect means the instrument is the canonical asset itself
	// and the amount was rescaled 1:1.
	SourceDirect ConversionSource = "direct"
	// SourcePriceFeed means an external pool price feed supplied the
	// rate (possibly the configured fallback rate, see FallbackUsed).
	SourcePriceFeed ConversionSource = "price_feed"
	// SourceQuote means a swap quote service simulated the sale.
	SourceQuote ConversionSource = "quote"
	// SourceComposed means two conversions were chained through an
	// intermediate asset.
	SourceComposed ConversionSource = "composed"
	// SourceEstimated marks a last-resort 1:1 estimate used when no
	// strategy could value the instrument.
	SourceEstimated ConversionSource = "estimated"
	// SourceFailed marks an instrument the quote service knows but
	// cannot route; its canonical value is zero.
	SourceFailed ConversionSource = "failed"
)

// ConversionResult is the outcome of valuing one amount of one
// instrument in the canonical asset. Canonical is expressed in the
// canonical asset's smallest unit and is never nil on a non-error
// return.
type ConversionResult struct {
	Canonical    *big.Int
	Source       ConversionSource
	Rate         string // display rate, canonical per instrument unit
	FallbackUsed bool
	PriceImpact  string // set for quote-based conversions when reported
	Note         string
}

// Failed reports whether the conversion produced no usable value.
func (c ConversionResult) Failed() bool {
	return c.Source == SourceFailed
}
