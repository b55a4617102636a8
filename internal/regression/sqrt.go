package regression

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// sqrtPrecision is the number of decimal places carried through the Newton
// iteration, well past shopspring's default division precision so the
// statistics built on top stay stable.
const sqrtPrecision = 32

const sqrtMaxIterations = 24

// sqrt computes the square root of d with Newton's method on decimals,
// seeded from the float64 estimate. shopspring/decimal ships no square
// root of its own.
func sqrt(d decimal.Decimal) (decimal.Decimal, error) {
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: square root of negative value %s", ErrDegenerateInput, d)
	}
	if d.IsZero() {
		return decimal.Zero, nil
	}

	f, _ := d.Float64()
	guess := decimal.NewFromFloat(math.Sqrt(f))
	if guess.IsZero() {
		// d underflowed the float64 seed; start from 1 and let the
		// iteration walk down.
		guess = decimal.New(1, 0)
	}

	two := decimal.NewFromInt(2)
	var prev decimal.Decimal
	for i := 0; i < sqrtMaxIterations; i++ {
		next := guess.Add(d.DivRound(guess, sqrtPrecision)).DivRound(two, sqrtPrecision)
		// The iteration either converges or oscillates between two
		// adjacent rounded values once the precision floor is reached.
		if next.Equal(guess) || next.Equal(prev) {
			return next, nil
		}
		prev = guess
		guess = next
	}
	return guess, nil
}
