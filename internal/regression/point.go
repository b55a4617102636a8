package regression

import (
	"time"

	"github.com/shopspring/decimal"
)

// Point is an immutable (x, y) observation. The explanatory variable x is
// commonly a unix timestamp, y the observed value at that time.
type Point struct {
	X decimal.Decimal
	Y decimal.Decimal
}

func NewPoint(x, y decimal.Decimal) Point {
	return Point{X: x, Y: y}
}

func NewPointFromInt64(x int64, y decimal.Decimal) Point {
	return Point{X: decimal.NewFromInt(x), Y: y}
}

func NewPointFromFloat64(x, y float64) Point {
	return Point{X: decimal.NewFromFloat(x), Y: decimal.NewFromFloat(y)}
}

func NewPointFromTime(t time.Time, y decimal.Decimal) Point {
	return Point{X: decimal.NewFromInt(t.Unix()), Y: y}
}
