package olstrend

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hjoelr/trading-signals/internal/predictor"
	"github.com/hjoelr/trading-signals/internal/regression"
)

var _ predictor.Predictor = (*olsTrend)(nil)

type Option func(*olsTrend)

func WithSkipItems(n int) Option {
	return func(t *olsTrend) {
		t.opts.skipItems = n
	}
}

func WithMaxItems(n int) Option {
	return func(t *olsTrend) {
		t.opts.maxItemsStored = n
	}
}

func WithBandWidth(k decimal.Decimal) Option {
	return func(t *olsTrend) {
		t.opts.bandWidth = k
	}
}

var defaultOptions = Options{bandWidth: decimal.NewFromInt(2)}

type Options struct {
	skipItems      int
	maxItemsStored int
	bandWidth      decimal.Decimal
}

func New(opts ...Option) (*olsTrend, error) {
	t := &olsTrend{
		opts: defaultOptions,
		fit:  regression.New(),
	}
	for _, f := range opts {
		f(t)
	}
	if !t.opts.bandWidth.IsPositive() {
		return nil, fmt.Errorf("unable to create olstrend instance, band width %s is not positive", t.opts.bandWidth)
	}
	return t, nil
}

// olsTrend fits an ordinary least-squares line over a sliding window of
// observations and flags any observation outside the ±k standard deviation
// band around the fitted value at its timestamp.
type olsTrend struct {
	opts Options
	fit  *regression.OLS
}

func (t *olsTrend) Len() int {
	return t.fit.Len()
}

func (t *olsTrend) Reset() {
	t.fit = regression.New()
}

func (t *olsTrend) Build(data ...predictor.DataPoint) {
	points := make([]regression.Point, 0, len(data))
	for _, d := range data {
		points = append(points, d.Point())
	}
	t.fit.Push(points...)
	t.trim()
}

func (t *olsTrend) Append(data ...predictor.DataPoint) {
	t.Build(data...)
}

// trim drops the oldest points until the window fits, without re-summing
// the points that stay.
func (t *olsTrend) trim() {
	if t.opts.maxItemsStored <= 0 {
		return
	}
	for t.fit.Len() > t.opts.maxItemsStored {
		t.fit.Shift()
	}
}

func (t *olsTrend) Predict(data predictor.DataPoint) (*predictor.Conclusion, error) {
	if t.fit.Len() < MinPoints {
		return nil, fmt.Errorf("unable to predict, %d points stored, at least %d required", t.fit.Len(), MinPoints)
	}
	if t.fit.Len() < t.opts.skipItems {
		return nil, fmt.Errorf("unable to predict, still warming up: %d of %d points", t.fit.Len(), t.opts.skipItems)
	}

	p := data.Point()
	band, err := t.fit.BandAt(p.X, t.opts.bandWidth)
	if err != nil {
		return nil, fmt.Errorf("unable to fit trend: %w", err)
	}
	res, err := t.fit.Residual(decimal.NewFromInt(1))
	if err != nil {
		return nil, fmt.Errorf("unable to read residual: %w", err)
	}
	pearsons, err := t.fit.PearsonsR()
	if err != nil {
		return nil, fmt.Errorf("unable to read pearsons r: %w", err)
	}

	return &predictor.Conclusion{
		Signal:    p.Y.LessThan(band.Lower) || p.Y.GreaterThan(band.Upper),
		Expected:  band.Value,
		Lower:     band.Lower,
		Upper:     band.Upper,
		Residual:  res,
		PearsonsR: pearsons,
	}, nil
}
