package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hjoelr/trading-signals/internal/logging"
	"github.com/hjoelr/trading-signals/internal/metric/model"
)

func newDBTxExecutor(opts dbTxExecutorOptions, shutdownCh chan<- error) *dbTxExecutor {
	return &dbTxExecutor{opts: opts, shutdownCh: shutdownCh}
}

type dbTxExecutorOptions struct {
	flushSize int
	flushTime time.Duration
	deps      pullDependencies
}

// dbTxExecutor accumulates observations and inserts them into persistent
// storage in bulk, either when the buffer fills or on a timer.
type dbTxExecutor struct {
	mtx sync.RWMutex

	opts       dbTxExecutorOptions
	buf        []model.Metric
	shutdownCh chan<- error
}

// shutdown urgently flushes everything still buffered.
func (tx *dbTxExecutor) shutdown() error {
	tx.mtx.Lock()
	defer tx.mtx.Unlock()
	if err := tx.opts.deps.appendMetrics(context.Background(), tx.buf); err != nil {
		return fmt.Errorf("txExecutor: append many operation failed: %w", err)
	}
	tx.buf = tx.buf[:0]
	return nil
}

// write buffers one observation and triggers a bulk flush when the buffer
// is full.
func (tx *dbTxExecutor) write(ctx context.Context, data model.Metric) {
	tx.mtx.Lock()
	tx.buf = append(tx.buf, data)
	bufLen := len(tx.buf)
	tx.mtx.Unlock()

	if bufLen >= tx.opts.flushSize {
		go tx.bulkAppend(ctx)
	}
}

func (tx *dbTxExecutor) bulkAppend(ctx context.Context) {
	logger := logging.FromContext(ctx)

	tx.mtx.Lock()
	tmpBuf := make([]model.Metric, len(tx.buf))
	copy(tmpBuf, tx.buf)
	tx.buf = tx.buf[:0]
	tx.mtx.Unlock()

	if err := tx.opts.deps.appendMetrics(context.Background(), tmpBuf); err != nil {
		logger.Errorf("txExecutor: append many operation failed: %v", err)
	}
}

// flusher periodically pushes buffered observations to storage until the
// context closes, then performs the final flush.
func (tx *dbTxExecutor) flusher(ctx context.Context) {
	defer func() {
		tx.shutdownCh <- tx.shutdown()
	}()
	ticker := time.NewTicker(tx.opts.flushTime)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			tx.bulkAppend(ctx)
		case <-ctx.Done():
			return
		}
	}
}
