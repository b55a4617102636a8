package dispatcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hjoelr/trading-signals/internal/logging"
	"github.com/hjoelr/trading-signals/internal/metric/model"
)

type dbSchedulerConfig struct {
	maxItemsStored int
	maxStorageTime time.Duration
	rebuildDBTime  time.Duration
	deps           pullDependencies
}

func newDBScheduler(config dbSchedulerConfig) *dbScheduler {
	return &dbScheduler{opts: config}
}

// dbScheduler keeps the storage bounded: it prunes observations past the
// retention period and trims each entity down to the window size.
type dbScheduler struct {
	opts dbSchedulerConfig
}

// processOutdatedMetrics deletes processed observations older than the
// retention period for one entity.
func (s *dbScheduler) processOutdatedMetrics(
	entityID string,
	fetchFn fetchMetricsByEntityFn,
	deleteFn deleteMetricsFn,
) error {
	metrics, err := fetchFn(entityID, func(metric model.Metric) bool {
		return metric.Status == model.StatusProcessed && time.Since(metric.CreatedAt) > s.opts.maxStorageTime
	})
	if err != nil {
		return fmt.Errorf("unable to find metrics by entity %s: %w", entityID, err)
	}

	if err := deleteFn(context.Background(), metrics); err != nil {
		return fmt.Errorf("unable to delete outdated metrics for entity %s: %w", entityID, err)
	}
	return nil
}

// processOverSizeMetrics sorts one entity's processed observations by age
// and deletes everything past the window size, oldest first.
func (s *dbScheduler) processOverSizeMetrics(
	entityID string,
	fetchFn fetchMetricsByEntityFn,
	deleteFn deleteMetricsFn,
) error {
	metrics, err := fetchFn(entityID, func(metric model.Metric) bool {
		return metric.Status == model.StatusProcessed
	})
	if err != nil {
		return fmt.Errorf("unable to find metrics by entity %s: %w", entityID, err)
	}

	if len(metrics) <= s.opts.maxItemsStored {
		return nil
	}

	sort.Slice(metrics, func(i, j int) bool {
		return metrics[i].CreatedAt.UnixNano() < metrics[j].CreatedAt.UnixNano()
	})

	if err := deleteFn(context.Background(), metrics[:len(metrics)-s.opts.maxItemsStored]); err != nil {
		return fmt.Errorf("unable to delete oversize metrics for entity %s: %w", entityID, err)
	}
	return nil
}

func (s *dbScheduler) rebuildOutdated() error {
	keys, err := s.opts.deps.fetchKeys()
	if err != nil {
		return fmt.Errorf("unable to fetch metric keys: %w", err)
	}
	for i := range keys {
		if err := s.processOutdatedMetrics(keys[i], s.opts.deps.fetchMetricsByEntity, s.opts.deps.deleteMetrics); err != nil {
			return fmt.Errorf("unable to process metrics: %w", err)
		}
	}
	return nil
}

func (s *dbScheduler) rebuildSize() error {
	keys, err := s.opts.deps.fetchKeys()
	if err != nil {
		return fmt.Errorf("unable to fetch keys: %w", err)
	}
	for i := range keys {
		length, err := s.opts.deps.countByEntity(keys[i])
		if err != nil {
			return fmt.Errorf("unable to count by entity %s: %w", keys[i], err)
		}
		if length > s.opts.maxItemsStored {
			if err := s.processOverSizeMetrics(keys[i], s.opts.deps.fetchMetricsByEntity, s.opts.deps.deleteMetrics); err != nil {
				return fmt.Errorf("unable to process metrics: %w", err)
			}
		}
	}

	return nil
}

// schedule runs the maintenance passes on a timer until the context closes.
func (s *dbScheduler) schedule(ctx context.Context) {
	logger := logging.FromContext(ctx)
	ticker := time.NewTicker(s.opts.rebuildDBTime)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if s.opts.maxItemsStored > 0 {
				if err := s.rebuildSize(); err != nil {
					logger.Errorf("unable to rebuild db size: %v", err)
				}
			}
			if s.opts.maxStorageTime > 0 {
				if err := s.rebuildOutdated(); err != nil {
					logger.Errorf("unable to rebuild outdated db data: %v", err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
