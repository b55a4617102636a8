package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/hjoelr/trading-signals/internal/metric/model"
)

func NewAlert(entityID string, metrics []model.Metric) Alert {
	return Alert{
		ID:        uuid.New(),
		EntityID:  entityID,
		Metrics:   metrics,
		CreatedAt: time.Now(),
	}
}

// Alert is a batch of breakout metrics pending delivery to one target.
type Alert struct {
	ID        uuid.UUID      `json:"id"`
	EntityID  string         `json:"entityId"`
	Metrics   []model.Metric `json:"metrics"`
	CreatedAt time.Time      `json:"createdAt"`
}
