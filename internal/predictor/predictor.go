package predictor

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hjoelr/trading-signals/internal/regression"
)

type ProvideFn func() (Predictor, error)

// DataPoint is a single observation handed to a predictor: a value on a
// timeline, convertible to a regression point.
type DataPoint interface {
	Point() regression.Point
	Time() time.Time
}

// Predictor accumulates the observation stream of one entity and decides
// whether a new observation breaks out of the fitted trend.
type Predictor interface {
	Reset()
	Len() int
	Build(data ...DataPoint)
	Append(data ...DataPoint)
	Predict(data DataPoint) (*Conclusion, error)
}

// Conclusion is the verdict for one observation: whether it signals a
// breakout, plus the fitted value, the confidence band it was checked
// against, and the fit quality statistics.
type Conclusion struct {
	Signal    bool            `json:"signal"`
	Expected  decimal.Decimal `json:"expected"`
	Lower     decimal.Decimal `json:"lower"`
	Upper     decimal.Decimal `json:"upper"`
	Residual  decimal.Decimal `json:"residual"`
	PearsonsR decimal.Decimal `json:"pearsonsR"`
}
