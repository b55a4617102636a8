package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hjoelr/trading-signals/internal/alert"
	"github.com/hjoelr/trading-signals/internal/database"
	"github.com/hjoelr/trading-signals/internal/logging"
	metricDb "github.com/hjoelr/trading-signals/internal/metric/database"
	"github.com/hjoelr/trading-signals/internal/metric/model"
	"github.com/hjoelr/trading-signals/internal/o11y"
	"github.com/hjoelr/trading-signals/internal/predictor"
	"github.com/hjoelr/trading-signals/pkg/iqueue"
)

// ProvideFn is the contract for returning a Manager instance.
type ProvideFn func(alert.Manager, chan<- error) (Manager, error)

// Manager is the background service: it collects observations, runs them
// through the per-entity trend predictors and raises alerts on breakouts.
type Manager interface {
	CollectPredictor
	Run(context.Context) error
	Stop()
}

// Collector accepts observations from outside and queues them.
type Collector interface {
	Collect(in ...model.Metric) error
}

// Predictor checks a single observation against an entity's fitted trend
// without feeding it into the fit.
type Predictor interface {
	Predict(entityID string, in predictor.DataPoint) (*predictor.Conclusion, error)
}

type CollectPredictor interface {
	Collector
	Predictor
}

// SnapshotPublisher receives the latest conclusion per entity; nil disables
// publishing.
type SnapshotPublisher interface {
	Publish(ctx context.Context, entityID string, c *predictor.Conclusion) error
}

// Abstractions over the storage layer, injected so the schedulers and the
// tx executor can be exercised without a real db.
type (
	fetchMetricsFn         func(context.Context, metricDb.FilterFn) ([]model.Metric, error)
	fetchMetricsByEntityFn func(string, metricDb.FilterFn) ([]model.Metric, error)
	deleteMetricFn         func(context.Context, model.Metric) error
	deleteMetricsFn        func(context.Context, []model.Metric) error
	appendMetricsFn        func(context.Context, []model.Metric) error
	fetchKeysFn            func() ([]string, error)
	countByEntityFn        func(string) (int, error)
)

type pullDependencies struct {
	fetchMetrics         fetchMetricsFn
	fetchMetricsByEntity fetchMetricsByEntityFn
	deleteMetric         deleteMetricFn
	deleteMetrics        deleteMetricsFn
	appendMetrics        appendMetricsFn
	fetchKeys            fetchKeysFn
	countByEntity        countByEntityFn
}

type Options struct {
	skipItems         int
	maxItemsStored    int
	maxStorageTime    time.Duration
	allowAppendData   bool
	allowAppendSignal bool
	dbFlushTime       time.Duration
	dbFlushSize       int
	rebuildDBTime     time.Duration
	deps              pullDependencies
}

type Option func(*manager)

func WithDBFlushTime(t time.Duration) Option {
	return func(o *manager) {
		o.opts.dbFlushTime = t
	}
}

func WithDBFlushSize(n int) Option {
	return func(o *manager) {
		o.opts.dbFlushSize = n
	}
}

func WithRebuildDBTime(t time.Duration) Option {
	return func(o *manager) {
		o.opts.rebuildDBTime = t
	}
}

func WithSkipItems(n int) Option {
	return func(o *manager) {
		o.opts.skipItems = n
	}
}

func WithMaxItemsStored(n int) Option {
	return func(o *manager) {
		o.opts.maxItemsStored = n
	}
}

func WithMaxStorageTime(t time.Duration) Option {
	return func(o *manager) {
		o.opts.maxStorageTime = t
	}
}

func WithAllowAppendData(t bool) Option {
	return func(o *manager) {
		o.opts.allowAppendData = t
	}
}

func WithAllowAppendSignal(t bool) Option {
	return func(o *manager) {
		o.opts.allowAppendSignal = t
	}
}

func WithSnapshot(p SnapshotPublisher) Option {
	return func(o *manager) {
		o.snapshot = p
	}
}

func New(
	db *database.DB,
	providePredictorFn predictor.ProvideFn,
	notifier alert.Manager,
	shutdownCh chan<- error,
	opts ...Option,
) (*manager, error) {
	if notifier == nil {
		return nil, fmt.Errorf("notifier instance is not created")
	}
	if providePredictorFn == nil {
		return nil, fmt.Errorf("predictor provider is not created")
	}

	d := &manager{
		metricDB:           metricDb.New(db),
		collectCh:          make(chan model.Metric, 1),
		shutDownCh:         shutdownCh,
		predictorProvideFn: providePredictorFn,
		predictors:         map[string]predictor.Predictor{},
		queue:              map[string]*iqueue.Queue{},
		notifier:           notifier,
	}

	for _, f := range opts {
		f(d)
	}

	d.opts.deps = pullDependencies{
		fetchMetrics:         d.metricDB.FindAll,
		fetchMetricsByEntity: d.metricDB.FindByEntity,
		deleteMetric:         d.metricDB.Delete,
		deleteMetrics:        d.metricDB.DeleteMany,
		appendMetrics:        d.metricDB.AppendMany,
		fetchKeys:            d.metricDB.Keys,
		countByEntity:        d.metricDB.CountByEntity,
	}

	d.dbScheduler = newDBScheduler(dbSchedulerConfig{
		deps:           d.opts.deps,
		maxItemsStored: d.opts.maxItemsStored,
		maxStorageTime: d.opts.maxStorageTime,
		rebuildDBTime:  d.opts.rebuildDBTime,
	})

	d.dbTxExecutor = newDBTxExecutor(
		dbTxExecutorOptions{
			deps:      d.opts.deps,
			flushTime: d.opts.dbFlushTime,
			flushSize: d.opts.dbFlushSize,
		},
		shutdownCh,
	)

	return d, nil
}

// manager owns the per-entity queues, the trend predictors behind them, and
// the storage maintenance services.
type manager struct {
	mtx sync.RWMutex

	opts Options

	metricDB     *metricDb.DB
	notifier     alert.Manager
	snapshot     SnapshotPublisher
	dbTxExecutor *dbTxExecutor
	dbScheduler  *dbScheduler

	// queueMtx guards the queue map alone: collector writes it while
	// receivers read it during shutdown. It is separate from mtx because
	// Collect blocks on collectCh while holding mtx.
	queueMtx   sync.RWMutex
	queue      map[string]*iqueue.Queue
	collectCh  chan model.Metric
	shutDownCh chan<- error

	closed bool

	predictorProvideFn predictor.ProvideFn
	predictors         map[string]predictor.Predictor

	cancelNotifier func()
	cancel         func()
}

func (d *manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	c, cancelNotifier := context.WithCancel(context.Background())
	d.cancelNotifier = cancelNotifier

	go d.collector(ctx)
	go d.dbTxExecutor.flusher(ctx)
	go d.dbScheduler.schedule(ctx)

	if err := d.bulkLoad(ctx); err != nil {
		return fmt.Errorf("can not start dispatcher manager: %w", err)
	}
	if err := d.notifier.Run(c); err != nil {
		return fmt.Errorf("alert.Run: %w", err)
	}

	return nil
}

func (d *manager) Stop() {
	d.cancel()
}

// Predict checks the observation against the entity's current fit. It does
// not mutate the fit.
func (d *manager) Predict(entityID string, data predictor.DataPoint) (*predictor.Conclusion, error) {
	d.mtx.Lock()
	if d.closed {
		d.mtx.Unlock()
		return nil, fmt.Errorf("error to predict, shutting down")
	}
	entityPredictor, ok := d.predictors[entityID]
	if !ok {
		newPredictor, err := d.predictorProvideFn()
		if err != nil {
			d.mtx.Unlock()
			return nil, fmt.Errorf("can not create predictor instance: %w", err)
		}
		entityPredictor = newPredictor
		d.predictors[entityID] = newPredictor
	}
	d.mtx.Unlock()

	started := time.Now()
	result, err := entityPredictor.Predict(data)
	if err != nil {
		return nil, err
	}
	o11y.Record(context.Background(), entityID, o11y.PredictLatencyMs.M(float64(time.Since(started).Microseconds())/1000.0))
	return result, nil
}

// Collect queues observations for processing.
func (d *manager) Collect(data ...model.Metric) error {
	d.mtx.RLock()
	if d.closed {
		d.mtx.RUnlock()
		return fmt.Errorf("error send to collect, shutting down")
	}
	for i := range data {
		d.collectCh <- data[i]
	}
	d.mtx.RUnlock()
	return nil
}

// bulkLoad restores predictor state from storage on startup: processed
// observations rebuild the fits, new ones re-enter the queue.
func (d *manager) bulkLoad(ctx context.Context) error {
	var newMetrics []model.Metric

	data, err := d.opts.deps.fetchMetrics(ctx, nil)
	if err != nil {
		return fmt.Errorf("error fetching all metrics: %w", err)
	}

	processedMetrics := map[string][]predictor.DataPoint{}
	for _, dat := range data {
		if dat.IsProcessed() {
			processedMetrics[dat.EntityID] = append(processedMetrics[dat.EntityID], dat)
		}
		if dat.IsNew() {
			newMetrics = append(newMetrics, dat)
		}
	}

	for k, list := range processedMetrics {
		loadPredictor, ok := d.predictors[k]
		if !ok {
			newPredictorFn, err := d.predictorProvideFn()
			if err != nil {
				return fmt.Errorf("can not create predictor instance: %w", err)
			}
			d.predictors[k] = newPredictorFn
			loadPredictor = newPredictorFn
		}
		loadPredictor.Build(list...)
	}
	for i := range newMetrics {
		d.collectCh <- newMetrics[i]
	}

	return nil
}

func (d *manager) process(ctx context.Context, metric model.Metric) error {
	logger := logging.FromContext(ctx)
	d.mtx.RLock()
	entityPredictor, ok := d.predictors[metric.EntityID]
	d.mtx.RUnlock()

	if !ok {
		newPredictor, err := d.predictorProvideFn()
		if err != nil {
			return fmt.Errorf("can not create predictor instance: %w", err)
		}
		entityPredictor = newPredictor
		d.mtx.Lock()
		d.predictors[metric.EntityID] = newPredictor
		d.mtx.Unlock()
	}

	o11y.Record(ctx, metric.EntityID, o11y.MetricsCollected.M(1))

	// Warm-up: feed the fit until it has enough points for a band check.
	// Two points always fit perfectly, so three is the hard floor.
	if entityPredictor.Len() < d.opts.skipItems || entityPredictor.Len() < 3 {
		metric.Status = model.StatusProcessed
		d.dbTxExecutor.write(ctx, metric)
		entityPredictor.Append(&metric)
		return nil
	}

	metric.Status = model.StatusNew
	d.dbTxExecutor.write(ctx, metric)

	result, predictErr := d.Predict(metric.EntityID, &metric)
	if predictErr != nil {
		if err := d.opts.deps.deleteMetric(context.Background(), metric); err != nil {
			return fmt.Errorf("unable to predict: %w", err)
		}
		return fmt.Errorf("unable to predict: %w", predictErr)
	}

	metric.Signal = result.Signal
	metric.Expected = result.Expected

	if result.Signal {
		logger.Infof("trend breakout for entity %s: value %s outside [%s, %s]",
			metric.EntityID, metric.Value, result.Lower, result.Upper)
		o11y.Record(ctx, metric.EntityID, o11y.SignalsDetected.M(1))
		d.alert(metric)
	}

	if d.snapshot != nil {
		if err := d.snapshot.Publish(ctx, metric.EntityID, result); err != nil {
			logger.Errorf("unable to publish snapshot: %v", err)
		}
	}

	if !d.opts.allowAppendData {
		if err := d.opts.deps.deleteMetric(ctx, metric); err != nil {
			return fmt.Errorf("delete transaction error: %w", err)
		}
		return nil
	}

	if !result.Signal || d.opts.allowAppendSignal {
		entityPredictor.Append(&metric)
	}

	metric.Status = model.StatusProcessed
	d.dbTxExecutor.write(ctx, metric)

	return nil
}

func (d *manager) alert(in ...model.Metric) {
	d.mtx.RLock()
	if !d.closed {
		d.mtx.RUnlock()
		d.notifier.Notify(in...)
		return
	}
	d.mtx.RUnlock()
}

func (d *manager) shutdown(ctx context.Context, q *iqueue.Queue) error {
	for {
		front := q.Queue().Front()
		if front == nil {
			if !d.recvShutdown() {
				return fmt.Errorf("dispatcher shutdown: closed num receivers not equal created")
			}
			d.cancelNotifier()
			break
		}

		if err := d.process(ctx, front.Value.(model.Metric)); err != nil {
			return fmt.Errorf("dispatcher shutdown: unable to process data: %w", err)
		}

		q.Queue().Remove(front)
	}
	return nil
}

func (d *manager) recvShutdown() bool {
	d.queueMtx.RLock()
	defer d.queueMtx.RUnlock()
	finishedNum, predictorsNum := 0, len(d.queue)
	for _, q := range d.queue {
		if q.Queue().Len() == 0 {
			finishedNum++
		}
	}

	return finishedNum == predictorsNum
}

func (d *manager) receive(ctx context.Context, q *iqueue.Queue) {
	logger := logging.FromContext(ctx)
	defer func() {
		d.shutDownCh <- d.shutdown(ctx, q)
	}()

	for {
		select {
		case recv := <-q.Receive():
			if err := d.process(ctx, recv.(model.Metric)); err != nil {
				logger.Errorf("unable to process data: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (d *manager) collector(ctx context.Context) {
	defer close(d.collectCh)
	for {
		select {
		case in := <-d.collectCh:
			d.queueMtx.Lock()
			q, ok := d.queue[in.EntityID]
			if !ok {
				q = iqueue.New()
				go q.Loop()
				// One receiver per entity: the fit behind each queue is
				// mutated only from that receiver, so no lock guards it.
				go d.receive(ctx, q)
				d.queue[in.EntityID] = q
			}
			d.queueMtx.Unlock()
			q.Send(in)
		case <-ctx.Done():
			d.mtx.Lock()
			d.closed = true
			d.mtx.Unlock()
			return
		}
	}
}
