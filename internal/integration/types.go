package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	Value     decimal.Decimal `json:"value"`
	Extra     interface{}     `json:"extra"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Request struct {
	EntityID string `json:"entity"`
	Data     []Item `json:"data"`
}
