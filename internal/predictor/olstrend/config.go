package olstrend

import "github.com/shopspring/decimal"

// MinPoints is the smallest window a fit accepts. With two points the
// residual degrees of freedom is zero and the band collapses, so three is
// the floor.
const MinPoints = 3

type Config struct {
	SkipItems int             `envconfig:"SIGNALS_OLS_SKIP_ITEMS"`
	BandWidth decimal.Decimal `envconfig:"SIGNALS_OLS_BAND_WIDTH" default:"2"`
}
