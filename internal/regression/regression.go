package regression

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotEnoughData is returned by Calculate when fewer than two points are
// stored. The caller may push more points and retry.
var ErrNotEnoughData = errors.New("regression: at least 2 data points required")

// ErrDegenerateInput is returned when the point geometry makes one of the
// closed-form divisions impossible: all x values identical, exactly two
// points (zero residual degrees of freedom), or zero variance on an axis.
// These are legitimate mathematical degeneracies, not internal failures.
var ErrDegenerateInput = errors.New("regression: degenerate input, division by zero")

// storedPoint carries a point together with its products, computed once at
// insertion so neither the running sums nor the per-point statistics pass
// repeat the multiplications.
type storedPoint struct {
	x, y, xy, x2, y2 decimal.Decimal
}

func newStoredPoint(p Point) storedPoint {
	return storedPoint{
		x:  p.X,
		y:  p.Y,
		xy: p.X.Mul(p.Y),
		x2: p.X.Mul(p.X),
		y2: p.Y.Mul(p.Y),
	}
}

// sums holds the five running accumulators Σx, Σy, Σxy, Σx², Σy². After any
// sequence of add/sub calls each accumulator equals the corresponding sum
// over the stored set exactly; updates are additive on exact decimals, so
// no floating error accumulates over long streams.
type sums struct {
	x, y, xy, x2, y2 decimal.Decimal
}

func (s *sums) add(p storedPoint) {
	s.x = s.x.Add(p.x)
	s.y = s.y.Add(p.y)
	s.xy = s.xy.Add(p.xy)
	s.x2 = s.x2.Add(p.x2)
	s.y2 = s.y2.Add(p.y2)
}

func (s *sums) sub(p storedPoint) {
	s.x = s.x.Sub(p.x)
	s.y = s.y.Sub(p.y)
	s.xy = s.xy.Sub(p.xy)
	s.x2 = s.x2.Sub(p.x2)
	s.y2 = s.y2.Sub(p.y2)
}

// result holds the solved coefficients of y = slope·x + intercept and the
// derived statistics. It is valid as a whole: either every field is present
// or the OLS holds no result at all, so a legitimately zero residual or
// Pearson's R is never mistaken for an unsolved state.
type result struct {
	intercept decimal.Decimal
	slope     decimal.Decimal
	residual  decimal.Decimal
	pearsonsR decimal.Decimal
}

// OLS maintains an incremental ordinary least-squares line fit over a
// streaming set of points. Points are kept in insertion order so the oldest
// can be removed without re-summing the rest, which makes a fixed-size
// sliding window cheap. All arithmetic runs on exact decimals.
//
// An OLS is not safe for concurrent use; callers serialize access.
type OLS struct {
	points []storedPoint
	sums   sums
	calc   *result // nil until Calculate succeeds, cleared by any mutation
}

func New(points ...Point) *OLS {
	o := &OLS{}
	o.Push(points...)
	return o
}

// Push appends points and folds them into the running sums. The cached
// result is invalidated once per call, not once per point.
func (o *OLS) Push(points ...Point) {
	for _, p := range points {
		sp := newStoredPoint(p)
		o.points = append(o.points, sp)
		o.sums.add(sp)
	}
	o.calc = nil
}

// Shift removes the oldest point and subtracts its contributions from the
// running sums. It is a no-op on an empty set.
func (o *OLS) Shift() {
	if len(o.points) == 0 {
		return
	}
	sp := o.points[0]
	o.points = o.points[1:]
	o.sums.sub(sp)
	o.calc = nil
}

// Len reports the number of stored points.
func (o *OLS) Len() int {
	return len(o.points)
}

// Calculate solves the closed-form OLS coefficients from the running sums
// and then derives the residual standard deviation and Pearson's R in a
// single pass over the stored points. Splitting that pass in two would
// double the per-point decimal arithmetic for no benefit, so both derived
// statistics always materialize together.
func (o *OLS) Calculate() error {
	if len(o.points) < 2 {
		return ErrNotEnoughData
	}

	n := decimal.NewFromInt(int64(len(o.points)))
	denom := n.Mul(o.sums.x2).Sub(o.sums.x.Mul(o.sums.x))
	if denom.IsZero() {
		return fmt.Errorf("%w: all x values are identical", ErrDegenerateInput)
	}
	a := o.sums.y.Mul(o.sums.x2).Sub(o.sums.x.Mul(o.sums.xy)).Div(denom)
	b := n.Mul(o.sums.xy).Sub(o.sums.x.Mul(o.sums.y)).Div(denom)

	meanX := o.sums.x.Div(n)
	meanY := o.sums.y.Div(n)

	var residualSq, cross, dxSq, dySq decimal.Decimal
	for i := range o.points {
		p := &o.points[i]
		yHat := b.Mul(p.x).Add(a)
		res := p.y.Sub(yHat)
		residualSq = residualSq.Add(res.Mul(res))
		dx := p.x.Sub(meanX)
		dy := p.y.Sub(meanY)
		cross = cross.Add(dx.Mul(dy))
		dxSq = dxSq.Add(dx.Mul(dx))
		dySq = dySq.Add(dy.Mul(dy))
	}

	df := n.Sub(decimal.NewFromInt(2))
	if df.IsZero() {
		return fmt.Errorf("%w: zero residual degrees of freedom with exactly 2 points", ErrDegenerateInput)
	}
	residual, err := sqrt(residualSq.Div(df))
	if err != nil {
		return err
	}

	varProduct := dxSq.Mul(dySq)
	if varProduct.IsZero() {
		return fmt.Errorf("%w: zero variance on the x or y axis", ErrDegenerateInput)
	}
	sd, err := sqrt(varProduct)
	if err != nil {
		return err
	}
	pearsonsR := cross.Div(sd)

	o.calc = &result{intercept: a, slope: b, residual: residual, pearsonsR: pearsonsR}
	return nil
}

func (o *OLS) ensure() error {
	if o.calc == nil {
		return o.Calculate()
	}
	return nil
}

// ValueAt returns the fitted value slope·x + intercept. x does not need to
// be a stored point.
func (o *OLS) ValueAt(x decimal.Decimal) (decimal.Decimal, error) {
	if err := o.ensure(); err != nil {
		return decimal.Decimal{}, err
	}
	return o.calc.slope.Mul(x).Add(o.calc.intercept), nil
}

// Coefficients returns the solved intercept and slope of y = slope·x + intercept.
func (o *OLS) Coefficients() (intercept, slope decimal.Decimal, err error) {
	if err := o.ensure(); err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	return o.calc.intercept, o.calc.slope, nil
}

// Residual returns the standard error of the estimate scaled by k.
func (o *OLS) Residual(k decimal.Decimal) (decimal.Decimal, error) {
	if err := o.ensure(); err != nil {
		return decimal.Decimal{}, err
	}
	return o.calc.residual.Mul(k), nil
}

// StandardDeviation is an alias for Residual.
func (o *OLS) StandardDeviation(k decimal.Decimal) (decimal.Decimal, error) {
	return o.Residual(k)
}

// PearsonsR returns the correlation coefficient of the stored set.
func (o *OLS) PearsonsR() (decimal.Decimal, error) {
	if err := o.ensure(); err != nil {
		return decimal.Decimal{}, err
	}
	return o.calc.pearsonsR, nil
}

// DeviationValueAt returns the fitted value at x offset by k residual
// standard deviations, the building block for confidence bands.
func (o *OLS) DeviationValueAt(x, k decimal.Decimal) (decimal.Decimal, error) {
	v, err := o.ValueAt(x)
	if err != nil {
		return decimal.Decimal{}, err
	}
	dev, err := o.Residual(k)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v.Add(dev), nil
}

// Band bundles the fitted value at some x with its ±k standard deviation
// bounds.
type Band struct {
	Lower decimal.Decimal
	Value decimal.Decimal
	Upper decimal.Decimal
}

// BandAt returns the confidence band at x using ±k standard deviations.
func (o *OLS) BandAt(x, k decimal.Decimal) (Band, error) {
	v, err := o.ValueAt(x)
	if err != nil {
		return Band{}, err
	}
	dev, err := o.Residual(k)
	if err != nil {
		return Band{}, err
	}
	return Band{Lower: v.Sub(dev), Value: v, Upper: v.Add(dev)}, nil
}

// BandAt2 returns the band at the conventional two standard deviations.
func (o *OLS) BandAt2(x decimal.Decimal) (Band, error) {
	return o.BandAt(x, decimal.NewFromInt(2))
}
