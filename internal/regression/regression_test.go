package regression

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

// ascending1 is hourly data with a monotonically increasing value.
func ascending1() []Point {
	ys := []string{
		"0.2950", "0.2953", "0.2957", "0.2961", "0.2968",
		"0.2969", "0.2975", "0.2978", "0.2982", "0.2987",
	}
	points := make([]Point, 0, len(ys))
	for i, s := range ys {
		y, _ := decimal.NewFromString(s)
		points = append(points, NewPointFromInt64(int64(1610856000+3600*i), y))
	}
	return points
}

func relClose(got decimal.Decimal, want, tol float64) bool {
	g, _ := got.Float64()
	if want == 0 {
		return math.Abs(g) <= tol
	}
	return math.Abs(g/want-1) <= tol
}

func TestCalculateKnownFixture(t *testing.T) {
	o := New(ascending1()...)
	if err := o.Calculate(); err != nil {
		t.Fatalf("calculate over the fixture returned an error: %v", err)
	}

	intercept, slope, err := o.Coefficients()
	if err != nil {
		t.Fatalf("coefficients returned an error: %v", err)
	}
	if !relClose(intercept, -185.19757454545455, 1e-9) {
		t.Errorf("intercept got %s, expected about -185.19757454545455", intercept)
	}
	if !relClose(slope, 1.1515151515151515e-7, 1e-9) {
		t.Errorf("slope got %s, expected about 1.1515151515151515e-7", slope)
	}

	v, err := o.ValueAt(decimal.NewFromInt(1610866800))
	if err != nil {
		t.Fatalf("value at 1610866800 returned an error: %v", err)
	}
	if !relClose(v, 0.29617818181818182, 1e-6) {
		t.Errorf("value at 1610866800 got %s, expected about 0.29617818181818182", v)
	}

	res, err := o.Residual(decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("residual returned an error: %v", err)
	}
	if !relClose(res, 0.00010157845154451715, 1e-4) {
		t.Errorf("residual got %s, expected about 0.00010157845154451715", res)
	}

	r, err := o.PearsonsR()
	if err != nil {
		t.Fatalf("pearsons r returned an error: %v", err)
	}
	if !relClose(r, 0.9971014986948306, 1e-6) {
		t.Errorf("pearsons r got %s, expected about 0.9971014986948306", r)
	}
}

func TestIncrementalEqualsBatch(t *testing.T) {
	points := ascending1()

	batch := New(points...)
	incremental := New()
	for _, p := range points {
		incremental.Push(p)
	}

	if err := batch.Calculate(); err != nil {
		t.Fatalf("batch calculate returned an error: %v", err)
	}
	if err := incremental.Calculate(); err != nil {
		t.Fatalf("incremental calculate returned an error: %v", err)
	}

	if !batch.calc.intercept.Equal(incremental.calc.intercept) {
		t.Errorf("intercept differs: batch %s, incremental %s", batch.calc.intercept, incremental.calc.intercept)
	}
	if !batch.calc.slope.Equal(incremental.calc.slope) {
		t.Errorf("slope differs: batch %s, incremental %s", batch.calc.slope, incremental.calc.slope)
	}
	if !batch.calc.residual.Equal(incremental.calc.residual) {
		t.Errorf("residual differs: batch %s, incremental %s", batch.calc.residual, incremental.calc.residual)
	}
	if !batch.calc.pearsonsR.Equal(incremental.calc.pearsonsR) {
		t.Errorf("pearsons r differs: batch %s, incremental %s", batch.calc.pearsonsR, incremental.calc.pearsonsR)
	}
}

func TestShiftInverseOfPush(t *testing.T) {
	points := ascending1()
	o := New(points...)
	for range points {
		o.Shift()
	}

	if o.Len() != 0 {
		t.Fatalf("after shifting every point the length got %d, expected 0", o.Len())
	}
	for name, sum := range map[string]decimal.Decimal{
		"sum x":  o.sums.x,
		"sum y":  o.sums.y,
		"sum xy": o.sums.xy,
		"sum x2": o.sums.x2,
		"sum y2": o.sums.y2,
	} {
		if !sum.Equal(decimal.Zero) {
			t.Errorf("%s after draining got %s, expected exactly 0", name, sum)
		}
	}
}

func TestMutationInvalidatesResult(t *testing.T) {
	o := New(ascending1()...)
	if err := o.Calculate(); err != nil {
		t.Fatalf("calculate returned an error: %v", err)
	}
	if o.calc == nil {
		t.Fatal("calculated state is absent after a successful calculate")
	}

	o.Push(NewPointFromInt64(1610892000, decimal.NewFromFloat(0.2991)))
	if o.calc != nil {
		t.Error("push did not invalidate the calculated state")
	}

	if err := o.Calculate(); err != nil {
		t.Fatalf("recalculate returned an error: %v", err)
	}
	o.Shift()
	if o.calc != nil {
		t.Error("shift did not invalidate the calculated state")
	}
}

func TestNotEnoughData(t *testing.T) {
	tests := []struct {
		name   string
		points []Point
	}{
		{name: "empty", points: nil},
		{name: "single_point", points: []Point{NewPointFromFloat64(1, 1)}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			o := New(test.points...)
			if err := o.Calculate(); !errors.Is(err, ErrNotEnoughData) {
				t.Errorf("calculate got %v, expected ErrNotEnoughData", err)
			}
			if _, err := o.ValueAt(decimal.NewFromInt(3)); !errors.Is(err, ErrNotEnoughData) {
				t.Errorf("value accessor got %v, expected ErrNotEnoughData", err)
			}
		})
	}
}

func TestDegenerateGeometry(t *testing.T) {
	tests := []struct {
		name   string
		points []Point
	}{
		{
			// n-2 == 0, zero residual degrees of freedom
			name: "two_distinct_points",
			points: []Point{
				NewPointFromFloat64(1, 1),
				NewPointFromFloat64(2, 3),
			},
		},
		{
			name: "all_x_identical",
			points: []Point{
				NewPointFromFloat64(5, 1),
				NewPointFromFloat64(5, 2),
				NewPointFromFloat64(5, 3),
			},
		},
		{
			name: "zero_y_variance",
			points: []Point{
				NewPointFromFloat64(1, 7),
				NewPointFromFloat64(2, 7),
				NewPointFromFloat64(3, 7),
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			o := New(test.points...)
			if err := o.Calculate(); !errors.Is(err, ErrDegenerateInput) {
				t.Errorf("calculate got %v, expected ErrDegenerateInput", err)
			}
		})
	}
}

func TestPerfectFit(t *testing.T) {
	// y = 2x + 1 exactly
	o := New()
	for x := int64(1); x <= 5; x++ {
		o.Push(NewPointFromInt64(x, decimal.NewFromInt(2*x+1)))
	}
	if err := o.Calculate(); err != nil {
		t.Fatalf("calculate returned an error: %v", err)
	}

	intercept, slope, err := o.Coefficients()
	if err != nil {
		t.Fatalf("coefficients returned an error: %v", err)
	}
	if !intercept.Equal(decimal.NewFromInt(1)) {
		t.Errorf("intercept got %s, expected exactly 1", intercept)
	}
	if !slope.Equal(decimal.NewFromInt(2)) {
		t.Errorf("slope got %s, expected exactly 2", slope)
	}

	res, err := o.Residual(decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("residual returned an error: %v", err)
	}
	if !res.Equal(decimal.Zero) {
		t.Errorf("residual got %s, expected exactly 0", res)
	}

	r, err := o.PearsonsR()
	if err != nil {
		t.Fatalf("pearsons r returned an error: %v", err)
	}
	if !r.Equal(decimal.NewFromInt(1)) {
		t.Errorf("pearsons r got %s, expected exactly 1", r)
	}

	// A zero residual must stay a valid cached result, not be mistaken
	// for an unsolved state and recomputed on every access.
	if o.calc == nil {
		t.Fatal("calculated state is absent after a perfect fit")
	}
}

func TestBandOrdering(t *testing.T) {
	o := New(ascending1()...)
	x := decimal.NewFromInt(1610870400)
	for _, k := range []string{"0.5", "1", "2", "3"} {
		kd, _ := decimal.NewFromString(k)
		band, err := o.BandAt(x, kd)
		if err != nil {
			t.Fatalf("band at k=%s returned an error: %v", k, err)
		}
		if band.Lower.GreaterThan(band.Value) || band.Value.GreaterThan(band.Upper) {
			t.Errorf(
				"band at k=%s is not ordered: lower %s, value %s, upper %s",
				k, band.Lower, band.Value, band.Upper,
			)
		}
	}
}

func TestDeviationValueAt(t *testing.T) {
	o := New(ascending1()...)
	x := decimal.NewFromInt(1610866800)

	v, err := o.ValueAt(x)
	if err != nil {
		t.Fatalf("value returned an error: %v", err)
	}
	res, err := o.Residual(decimal.NewFromInt(2))
	if err != nil {
		t.Fatalf("residual returned an error: %v", err)
	}
	dv, err := o.DeviationValueAt(x, decimal.NewFromInt(2))
	if err != nil {
		t.Fatalf("deviation value returned an error: %v", err)
	}
	if !dv.Equal(v.Add(res)) {
		t.Errorf("deviation value got %s, expected %s", dv, v.Add(res))
	}
}

func TestShiftOnEmptyIsNoop(t *testing.T) {
	o := New()
	o.Shift()
	if o.Len() != 0 {
		t.Errorf("length after shifting an empty set got %d, expected 0", o.Len())
	}
}
