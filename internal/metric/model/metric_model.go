package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hjoelr/trading-signals/internal/predictor"
	"github.com/hjoelr/trading-signals/internal/regression"
)

type Status uint8

const (
	StatusNew Status = iota
	StatusProcessed
)

func NewMetric(entityID string, value decimal.Decimal, createdAt time.Time, extra interface{}) Metric {
	return Metric{
		ID:        uuid.New(),
		EntityID:  entityID,
		Status:    StatusNew,
		Value:     value,
		CreatedAt: createdAt,
		Extra:     extra,
	}
}

var _ predictor.DataPoint = (*Metric)(nil)

// Metric is one observed value of an entity's series. Expected is filled in
// after processing with the fitted value the observation was checked
// against; Signal marks a trend breakout.
type Metric struct {
	ID        uuid.UUID       `json:"id"`
	EntityID  string          `json:"entityId"`
	Value     decimal.Decimal `json:"value"`
	Expected  decimal.Decimal `json:"expected"`
	Signal    bool            `json:"signal"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	Extra     interface{}     `json:"extra"`
}

func (m Metric) IsProcessed() bool {
	return m.Status == StatusProcessed
}

func (m Metric) IsNew() bool {
	return m.Status == StatusNew
}

func (m Metric) Point() regression.Point {
	return regression.NewPointFromTime(m.CreatedAt, m.Value)
}

func (m Metric) Time() time.Time {
	return m.CreatedAt
}
