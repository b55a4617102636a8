package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	alertDb "github.com/hjoelr/trading-signals/internal/alert/database"
	"github.com/hjoelr/trading-signals/internal/alert/model"
	"github.com/hjoelr/trading-signals/internal/byteutil"
	"github.com/hjoelr/trading-signals/internal/database"
	"github.com/hjoelr/trading-signals/internal/httputil"
	"github.com/hjoelr/trading-signals/internal/logging"
	metricModel "github.com/hjoelr/trading-signals/internal/metric/model"
	"github.com/hjoelr/trading-signals/pkg/rworker"
)

type ProvideFn = func(chan<- error) (Manager, error)

const UserAgent = "SIGNALS/0.1"

type Options struct {
	allowAlerts          bool
	maxConcurrentRequest int
	requestTimeout       time.Duration
	alertInterval        time.Duration
	targets              Targets
}

type Option func(*manager)

func WithAllowAlerts(allow bool) Option {
	return func(o *manager) {
		o.opts.allowAlerts = allow
	}
}

func WithMaxConcurrentRequest(n int) Option {
	return func(o *manager) {
		o.opts.maxConcurrentRequest = n
	}
}

func WithInterval(t time.Duration) Option {
	return func(o *manager) {
		o.opts.alertInterval = t
	}
}

func WithTargets(m Targets) Option {
	return func(o *manager) {
		o.opts.targets = m
	}
}

type data struct {
	Value     decimal.Decimal `json:"value"`
	Expected  decimal.Decimal `json:"expected"`
	CreatedAt time.Time       `json:"createdAt"`
	Extra     interface{}     `json:"extra"`
}

type request struct {
	EntityID string `json:"entityId"`
	Data     []data `json:"data"`
}

func New(db *database.DB, shutdownCh chan<- error, opts ...Option) (*manager, error) {
	m := &manager{
		alertDb:    alertDb.New(db),
		shutdownCh: shutdownCh,
		clients:    map[string]*http.Client{},
		alerts:     map[string][]metricModel.Metric{},
	}
	m.opts.allowAlerts = true
	m.opts.requestTimeout = 30 * time.Second
	for _, f := range opts {
		f(m)
	}
	for _, target := range m.opts.targets {
		if _, ok := m.clients[target.EntityID]; !ok {
			client, err := httputil.NewClientFromConfig(target.HTTPConfig, true)
			if err != nil {
				return nil, fmt.Errorf("unable to create client for entity %s: %w", target.EntityID, err)
			}
			m.clients[target.EntityID] = client
		}
	}
	return m, nil
}

type Notifier interface {
	Notify(metrics ...metricModel.Metric)
}

type Manager interface {
	Notifier
	Run(context.Context) error
	Stop()
}

// manager batches breakout metrics per entity and delivers them to the
// configured HTTP targets on a ticker, persisting undelivered batches
// across restarts.
type manager struct {
	mtx        sync.RWMutex
	opts       Options
	alertDb    *alertDb.DB
	shutdownCh chan<- error
	clients    map[string]*http.Client
	alerts     map[string][]metricModel.Metric
	cancel     func()
}

func (m *manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.notifier(ctx)
	if err := m.initialize(ctx); err != nil {
		return fmt.Errorf("can not start alert manager: %w", err)
	}
	return nil
}

func (m *manager) Stop() {
	m.cancel()
}

func (m *manager) Notify(metrics ...metricModel.Metric) {
	if !m.opts.allowAlerts {
		return
	}
	m.mtx.Lock()
	for i := range metrics {
		m.alerts[metrics[i].EntityID] = append(m.alerts[metrics[i].EntityID], metrics[i])
	}
	m.mtx.Unlock()
}

// initialize requeues alert batches left over from the previous run.
func (m *manager) initialize(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	alerts, err := m.alertDb.FindAll(ctx, nil)
	if err != nil {
		logger.Errorf("error fetching stored alerts: %v", err)
	}
	for i := range alerts {
		m.Notify(alerts[i].Metrics...)
		if err := m.alertDb.Delete(context.Background(), alerts[i]); err != nil {
			return fmt.Errorf("unable to delete alert on initialize: %w", err)
		}
	}
	return nil
}

// shutdown persists every pending batch before the process exits.
func (m *manager) shutdown() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for entityID, metrics := range m.alerts {
		if len(metrics) == 0 {
			continue
		}
		alert := model.NewAlert(entityID, metrics)
		if err := m.alertDb.Store(context.Background(), alert); err != nil {
			return fmt.Errorf("alert shutdown: unable to store alert: %w", err)
		}
	}
	return nil
}

func (m *manager) notifier(ctx context.Context) {
	logger := logging.FromContext(ctx)
	errCh := make(chan error, 1)
	rateCh := make(chan struct{}, m.opts.maxConcurrentRequest)
	defer close(errCh)
	defer close(rateCh)
	go func() {
		for err := range errCh {
			logger.Errorf("alert error: %v", err)
		}
	}()
	defer func() {
		m.shutdownCh <- m.shutdown()
	}()
	wg := sync.WaitGroup{}
	ticker := time.NewTicker(m.opts.alertInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, target := range m.opts.targets {
				target := target
				m.mtx.RLock()
				metrics := m.alerts[target.EntityID]
				m.mtx.RUnlock()
				if len(metrics) == 0 {
					continue
				}
				rworker.Job(&wg, func() error {
					return m.deliver(target, metrics)
				}, rateCh, errCh)
			}
			wg.Wait()
		case <-ctx.Done():
			return
		}
	}
}

// deliver stores the batch, posts it, and drops both the stored copy and
// the in-memory queue only after the target accepted it.
func (m *manager) deliver(target Target, metrics []metricModel.Metric) error {
	alertModel := model.NewAlert(target.EntityID, metrics)
	if err := m.alertDb.Store(context.Background(), alertModel); err != nil {
		return fmt.Errorf("unable to store alert: %w", err)
	}
	if err := m.do(context.Background(), target, func() request {
		items := make([]data, len(metrics))
		for i := range metrics {
			items[i] = data{
				Value:     metrics[i].Value,
				Expected:  metrics[i].Expected,
				CreatedAt: metrics[i].CreatedAt,
				Extra:     metrics[i].Extra,
			}
		}
		return request{EntityID: target.EntityID, Data: items}
	}); err != nil {
		return fmt.Errorf("alert request error: %w", err)
	}
	if err := m.alertDb.Delete(context.Background(), alertModel); err != nil {
		return fmt.Errorf("unable to delete delivered alert: %w", err)
	}
	m.ack(target.EntityID, len(metrics))
	return nil
}

// ack drops the delivered prefix of the entity's queue. Metrics notified
// while the delivery was in flight stay queued for the next tick.
func (m *manager) ack(entityID string, delivered int) {
	m.mtx.Lock()
	pending := m.alerts[entityID]
	if delivered >= len(pending) {
		m.alerts[entityID] = pending[:0]
	} else {
		m.alerts[entityID] = append([]metricModel.Metric(nil), pending[delivered:]...)
	}
	m.mtx.Unlock()
}

type makeRequestFn func() request

func (m *manager) do(ctx context.Context, target Target, fn makeRequestFn) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.requestTimeout)
	defer cancel()

	buf := byteutil.GetBytesBuf()
	defer byteutil.PutBytesBuf(buf)
	defer buf.Reset()
	if err := json.NewEncoder(buf).Encode(fn()); err != nil {
		return fmt.Errorf("unable to encode alert request: %w", err)
	}

	link, err := url.Parse(target.URL)
	if err != nil {
		return fmt.Errorf("url parsing error: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, link.String(), buf)
	if err != nil {
		return fmt.Errorf("creating request error: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Add("User-Agent", UserAgent)

	client, ok := m.clients[target.EntityID]
	if !ok {
		return fmt.Errorf("client for entity %s not defined", target.EntityID)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request error: %w", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("failed to drain response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("target %s response was not 200 OK: %s", target.EntityID, resp.Status)
	}
	return nil
}
