package regression

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSqrt(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
		exact    bool
	}{
		{name: "zero", in: "0", expected: "0", exact: true},
		{name: "one", in: "1", expected: "1", exact: true},
		{name: "perfect_square", in: "400", expected: "20", exact: true},
		{name: "fraction_square", in: "0.25", expected: "0.5", exact: true},
		{name: "two", in: "2", expected: "1.4142135623730951"},
		{name: "small", in: "0.00000001", expected: "0.0001", exact: true},
		{name: "large", in: "2595321600000000", expected: "50944298.994097465"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			in, _ := decimal.NewFromString(test.in)
			got, err := sqrt(in)
			if err != nil {
				t.Fatalf("sqrt(%s) returned an error: %v", test.in, err)
			}
			expected, _ := decimal.NewFromString(test.expected)
			if test.exact {
				if !got.Equal(expected) {
					t.Errorf("sqrt(%s) got %s, expected exactly %s", test.in, got, expected)
				}
				return
			}
			g, _ := got.Float64()
			e, _ := expected.Float64()
			if math.Abs(g/e-1) > 1e-12 {
				t.Errorf("sqrt(%s) got %s, expected about %s", test.in, got, expected)
			}
		})
	}
}

func TestSqrtNegative(t *testing.T) {
	if _, err := sqrt(decimal.NewFromInt(-4)); !errors.Is(err, ErrDegenerateInput) {
		t.Errorf("sqrt of a negative value got %v, expected ErrDegenerateInput", err)
	}
}
