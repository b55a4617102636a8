package scrape

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/valyala/fastrand"

	"github.com/hjoelr/trading-signals/internal/dispatcher"
	"github.com/hjoelr/trading-signals/internal/logging"
	"github.com/hjoelr/trading-signals/internal/metric/model"
	"github.com/hjoelr/trading-signals/pkg/rworker"
)

type response struct {
	EntityID string `json:"entity"`
	Data     []struct {
		Value     decimal.Decimal `json:"value"`
		Extra     interface{}     `json:"extra"`
		CreatedAt time.Time       `json:"createdAt"`
	} `json:"data"`
}

type Manager interface {
	Run(context.Context) error
	Stop()
}

type ProvideFn = func(dispatcher.Manager, chan<- error) (Manager, error)

const UserAgent = "SIGNALS/0.1"

type Options struct {
	maxConcurrentRequest  int
	requestTimeout        time.Duration
	tlsHandshakeTimeout   time.Duration
	responseHeaderTimeout time.Duration
	scrapeInterval        time.Duration
}

type Option func(*manager)

func WithMaxConcurrentRequest(n int) Option {
	return func(o *manager) {
		o.opts.maxConcurrentRequest = n
	}
}

func WithInterval(t time.Duration) Option {
	return func(o *manager) {
		o.opts.scrapeInterval = t
	}
}

func WithRequestTimeout(t time.Duration) Option {
	return func(o *manager) {
		o.opts.requestTimeout = t
	}
}

func WithTargetUrls(m Targets) Option {
	return func(o *manager) {
		o.targets = m
	}
}

func New(collector dispatcher.Manager, shutdownCh chan<- error, opts ...Option) (*manager, error) {
	if collector == nil {
		return nil, fmt.Errorf("dispatcher instance is not defined")
	}
	m := &manager{
		targets:    Targets{},
		shutdownCh: shutdownCh,
		collector:  collector,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.opts.requestTimeout == 0 {
		m.opts.requestTimeout = 30 * time.Second
	}
	m.client = &http.Client{
		Transport: &http.Transport{
			TLSHandshakeTimeout:   m.opts.tlsHandshakeTimeout,
			ResponseHeaderTimeout: m.opts.responseHeaderTimeout,
		},
	}
	return m, nil
}

type manager struct {
	opts            Options
	targets         Targets
	collector       dispatcher.Manager
	client          *http.Client
	shutdownCh      chan<- error
	cancelCollector func()
	cancel          func()
}

func (s *manager) Stop() {
	s.cancel()
}

func (s *manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	c, cancel := context.WithCancel(context.Background())
	s.cancelCollector = cancel
	if err := s.collector.Run(c); err != nil {
		return fmt.Errorf("dispatcher.Run: %w", err)
	}
	go func() {
		defer func() {
			s.shutdownCh <- nil
			s.cancelCollector()
		}()
		for {
			select {
			case <-time.After(s.jitteredInterval()):
				s.scrapping(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// jitteredInterval spreads polls over [interval, 1.25*interval) so that a
// fleet of daemons does not hit the same targets in lockstep.
func (s *manager) jitteredInterval() time.Duration {
	interval := s.opts.scrapeInterval
	if interval <= 0 {
		interval = time.Second
	}
	spread := uint32(interval / 4 / time.Millisecond)
	if spread == 0 {
		return interval
	}
	return interval + time.Duration(fastrand.Uint32n(spread))*time.Millisecond
}

func (s *manager) scrape(url string) (response, error) {
	var response response
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return response, fmt.Errorf("creating request error: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Add("User-Agent", UserAgent)
	req.Header.Add("Accept-Encoding", "gzip")
	resp, err := s.client.Do(req)
	if err != nil {
		return response, fmt.Errorf("sending request error: %w", err)
	}

	defer resp.Body.Close()

	var reader io.ReadCloser
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		reader, err = gzip.NewReader(resp.Body)
		if err != nil {
			return response, fmt.Errorf("unable create gzip.NewReader: %w", err)
		}
		defer reader.Close()
	default:
		reader = resp.Body
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return response, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return response, fmt.Errorf("response was not 200 OK: %s", body)
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&response); err != nil {
		return response, fmt.Errorf("decoding response error: %w", err)
	}

	return response, nil
}

func (s *manager) scrapping(ctx context.Context) {
	wg := sync.WaitGroup{}
	logger := logging.FromContext(ctx)
	errCh := make(chan error, len(s.targets))
	rateCh := make(chan struct{}, s.opts.maxConcurrentRequest)
	for _, link := range s.targets {
		link := link
		urlData, err := url.Parse(link.URL)
		if err != nil {
			logger.Errorf("url parsing error: %v", err)
			continue
		}
		rworker.Job(&wg, func() error {
			resp, err := s.scrape(urlData.String())
			if err != nil {
				return fmt.Errorf("scrape error: %w", err)
			}
			entityID := resp.EntityID
			if link.EntityID != "" {
				entityID = link.EntityID
			}
			sort.Slice(resp.Data, func(i, j int) bool {
				return resp.Data[i].CreatedAt.Before(resp.Data[j].CreatedAt)
			})
			for _, dat := range resp.Data {
				if err := s.collector.Collect(model.NewMetric(entityID, dat.Value, dat.CreatedAt, dat.Extra)); err != nil {
					return fmt.Errorf("send to collect error: %w", err)
				}
			}
			return nil
		}, rateCh, errCh)
	}
	wg.Wait()
	close(errCh)
	close(rateCh)
	for err := range errCh {
		logger.Errorf("scrape manager error: %v", err)
	}
}
