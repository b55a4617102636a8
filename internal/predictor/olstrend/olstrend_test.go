package olstrend

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hjoelr/trading-signals/internal/predictor"
	"github.com/hjoelr/trading-signals/internal/regression"
)

type testPoint struct {
	value     decimal.Decimal
	createdAt time.Time
}

func (p testPoint) Point() regression.Point {
	return regression.NewPointFromTime(p.createdAt, p.value)
}

func (p testPoint) Time() time.Time {
	return p.createdAt
}

// noisyTrend builds n hourly observations around value = base + step·i with
// a small alternating wobble so the fit is non-degenerate.
func noisyTrend(n int, base, step, wobble float64) []predictor.DataPoint {
	start := time.Unix(1610856000, 0).UTC()
	data := make([]predictor.DataPoint, 0, n)
	for i := 0; i < n; i++ {
		v := base + step*float64(i)
		if i%2 == 0 {
			v += wobble
		} else {
			v -= wobble
		}
		data = append(data, testPoint{
			value:     decimal.NewFromFloat(v),
			createdAt: start.Add(time.Duration(i) * time.Hour),
		})
	}
	return data
}

func TestPredict(t *testing.T) {
	tests := []struct {
		name           string
		value          float64
		expectedSignal bool
	}{
		{name: "on_trend", value: 100.0 + 0.5*10, expectedSignal: false},
		{name: "breakout_above", value: 100.0 + 0.5*10 + 50, expectedSignal: true},
		{name: "breakout_below", value: 100.0 + 0.5*10 - 50, expectedSignal: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			alg, err := New(WithBandWidth(decimal.NewFromInt(2)))
			if err != nil {
				t.Fatalf("unable to create olstrend instance: %v", err)
			}
			alg.Build(noisyTrend(10, 100.0, 0.5, 0.05)...)

			probe := testPoint{
				value:     decimal.NewFromFloat(test.value),
				createdAt: time.Unix(1610856000, 0).UTC().Add(10 * time.Hour),
			}
			conclusion, err := alg.Predict(probe)
			if err != nil {
				t.Fatalf("predict returned an error: %v", err)
			}
			if conclusion.Signal != test.expectedSignal {
				t.Errorf("predict signal got %v, expected %v", conclusion.Signal, test.expectedSignal)
			}
			if conclusion.Lower.GreaterThan(conclusion.Expected) || conclusion.Expected.GreaterThan(conclusion.Upper) {
				t.Errorf(
					"conclusion band is not ordered: lower %s, expected %s, upper %s",
					conclusion.Lower, conclusion.Expected, conclusion.Upper,
				)
			}
		})
	}
}

func TestPredictTooFewPoints(t *testing.T) {
	alg, err := New()
	if err != nil {
		t.Fatalf("unable to create olstrend instance: %v", err)
	}
	alg.Build(noisyTrend(2, 100.0, 0.5, 0.05)...)

	probe := testPoint{value: decimal.NewFromFloat(101), createdAt: time.Unix(1610863200, 0)}
	if _, err := alg.Predict(probe); err == nil {
		t.Error("predict with fewer than the minimum points must return an error")
	}
}

func TestPredictWarmup(t *testing.T) {
	alg, err := New(WithSkipItems(20))
	if err != nil {
		t.Fatalf("unable to create olstrend instance: %v", err)
	}
	alg.Build(noisyTrend(10, 100.0, 0.5, 0.05)...)

	probe := testPoint{value: decimal.NewFromFloat(105), createdAt: time.Unix(1610892000, 0)}
	if _, err := alg.Predict(probe); err == nil {
		t.Error("predict during warm-up must return an error")
	}
}

func TestSlidingWindow(t *testing.T) {
	alg, err := New(WithMaxItems(5))
	if err != nil {
		t.Fatalf("unable to create olstrend instance: %v", err)
	}
	data := noisyTrend(12, 100.0, 0.5, 0.05)
	for _, d := range data {
		alg.Append(d)
	}
	if alg.Len() != 5 {
		t.Errorf("window length got %d, expected 5", alg.Len())
	}
}

func TestReset(t *testing.T) {
	alg, err := New()
	if err != nil {
		t.Fatalf("unable to create olstrend instance: %v", err)
	}
	alg.Build(noisyTrend(10, 100.0, 0.5, 0.05)...)
	alg.Reset()
	if alg.Len() != 0 {
		t.Errorf("length after reset got %d, expected 0", alg.Len())
	}
}

func TestInvalidBandWidth(t *testing.T) {
	if _, err := New(WithBandWidth(decimal.Zero)); err == nil {
		t.Error("a zero band width must be rejected")
	}
}
