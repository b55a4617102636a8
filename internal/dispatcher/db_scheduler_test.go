package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	metricDb "github.com/hjoelr/trading-signals/internal/metric/database"
	"github.com/hjoelr/trading-signals/internal/metric/model"
)

func testMetrics(entityID string, n int) []model.Metric {
	metrics := make([]model.Metric, 0, n)
	for i := 0; i < n; i++ {
		m := model.NewMetric(entityID, decimal.NewFromInt(int64(100+i)), time.Now().Add(time.Duration(i)*time.Second), "test")
		m.Status = model.StatusProcessed
		metrics = append(metrics, m)
	}
	return metrics
}

func TestProcessOverSizeMetrics(t *testing.T) {
	tests := []struct {
		name           string
		maxItemsStored int
		fetchErr       error
		batch          []model.Metric
		expectedDel    int
	}{
		{
			name:           "deletes_oldest_over_window",
			maxItemsStored: 3,
			batch:          testMetrics("btc-usd", 5),
			expectedDel:    2,
		},
		{
			name:           "under_window_no_delete",
			maxItemsStored: 5,
			batch:          testMetrics("btc-usd", 3),
			expectedDel:    0,
		},
		{
			name:           "fetch_error_propagates",
			maxItemsStored: 3,
			batch:          testMetrics("btc-usd", 5),
			fetchErr:       errors.New("test error"),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var deleted []model.Metric
			scheduler := newDBScheduler(dbSchedulerConfig{maxItemsStored: test.maxItemsStored})
			err := scheduler.processOverSizeMetrics(
				"btc-usd",
				func(s string, fn metricDb.FilterFn) ([]model.Metric, error) {
					return test.batch, test.fetchErr
				},
				func(ctx context.Context, metrics []model.Metric) error {
					deleted = metrics
					return nil
				},
			)
			if test.fetchErr != nil {
				if err == nil {
					t.Error("processOverSizeMetrics must propagate the fetch error")
				}
				return
			}
			if err != nil {
				t.Fatalf("processOverSizeMetrics returned an error: %v", err)
			}
			if len(deleted) != test.expectedDel {
				t.Errorf("deleted metrics got %d, expected %d", len(deleted), test.expectedDel)
			}
		})
	}
}

func TestProcessOutdatedMetrics(t *testing.T) {
	var deleted []model.Metric
	scheduler := newDBScheduler(dbSchedulerConfig{maxStorageTime: time.Hour})
	batch := testMetrics("eth-usd", 4)

	err := scheduler.processOutdatedMetrics(
		"eth-usd",
		func(s string, fn metricDb.FilterFn) ([]model.Metric, error) {
			var old []model.Metric
			for i := range batch {
				stale := batch[i]
				stale.CreatedAt = time.Now().Add(-2 * time.Hour)
				if fn(stale) {
					old = append(old, stale)
				}
			}
			return old, nil
		},
		func(ctx context.Context, metrics []model.Metric) error {
			deleted = metrics
			return nil
		},
	)
	if err != nil {
		t.Fatalf("processOutdatedMetrics returned an error: %v", err)
	}
	if len(deleted) != len(batch) {
		t.Errorf("deleted metrics got %d, expected %d", len(deleted), len(batch))
	}
}
