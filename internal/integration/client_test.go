package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hjoelr/trading-signals/internal/collect"
	"github.com/hjoelr/trading-signals/internal/forecast"
	"github.com/hjoelr/trading-signals/internal/metric/model"
	"github.com/hjoelr/trading-signals/internal/predictor"
	"github.com/hjoelr/trading-signals/internal/server"
)

type recordingCollector struct {
	mtx     sync.Mutex
	metrics []model.Metric
}

func (c *recordingCollector) Collect(data ...model.Metric) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.metrics = append(c.metrics, data...)
	return nil
}

func (c *recordingCollector) collected() []model.Metric {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return append([]model.Metric(nil), c.metrics...)
}

type cannedPredictor struct {
	conclusion *predictor.Conclusion
}

func (p *cannedPredictor) Predict(string, predictor.DataPoint) (*predictor.Conclusion, error) {
	return p.conclusion, nil
}

func newTestServer(t *testing.T, collector *recordingCollector, pred *cannedPredictor) *httptest.Server {
	t.Helper()

	collectHandler, err := collect.NewHandler(&collect.Config{RequestTimeout: time.Minute}, collector)
	if err != nil {
		t.Fatalf("collect.NewHandler returned an error: %v", err)
	}
	forecastHandler, err := forecast.NewHandler(&forecast.Config{RequestTimeout: time.Minute, MaxDataItemsLen: 10}, pred)
	if err != nil {
		t.Fatalf("forecast.NewHandler returned an error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/collect", collectHandler)
	mux.Handle("/forecast", forecastHandler)
	mux.Handle("/health", server.HandleHealth(context.Background()))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientHealth(t *testing.T) {
	srv := newTestServer(t, &recordingCollector{}, &cannedPredictor{conclusion: &predictor.Conclusion{}})
	client := NewClient(srv.Listener.Addr().String())

	resp, err := client.Health()
	if err != nil {
		t.Fatalf("Health returned an error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status got %d, expected %d", resp.StatusCode, http.StatusOK)
	}
}

func TestClientCollect(t *testing.T) {
	collector := &recordingCollector{}
	srv := newTestServer(t, collector, &cannedPredictor{conclusion: &predictor.Conclusion{}})
	client := NewClient(srv.Listener.Addr().String())

	resp, err := client.Collect(Request{
		EntityID: "btc-usd",
		Data: []Item{
			{Value: decimal.RequireFromString("0.2950"), CreatedAt: time.Now()},
			{Value: decimal.RequireFromString("0.2953"), CreatedAt: time.Now().Add(time.Hour)},
		},
	})
	if err != nil {
		t.Fatalf("Collect returned an error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("collect status got %d, expected %d", resp.StatusCode, http.StatusOK)
	}

	// The handler hands the payload to the collector asynchronously.
	deadline := time.After(2 * time.Second)
	for len(collector.collected()) != 2 {
		select {
		case <-deadline:
			t.Fatalf("collected metrics got %d, expected 2", len(collector.collected()))
		case <-time.After(10 * time.Millisecond):
		}
	}
	for _, metric := range collector.collected() {
		if metric.EntityID != "btc-usd" {
			t.Errorf("collected entity got %s, expected btc-usd", metric.EntityID)
		}
	}
}

func TestClientForecast(t *testing.T) {
	pred := &cannedPredictor{conclusion: &predictor.Conclusion{
		Signal:   true,
		Expected: decimal.RequireFromString("0.2960"),
		Lower:    decimal.RequireFromString("0.2955"),
		Upper:    decimal.RequireFromString("0.2965"),
	}}
	srv := newTestServer(t, &recordingCollector{}, pred)
	client := NewClient(srv.Listener.Addr().String())

	resp, err := client.Forecast(Request{
		EntityID: "btc-usd",
		Data:     []Item{{Value: decimal.RequireFromString("0.3100"), CreatedAt: time.Now()}},
	})
	if err != nil {
		t.Fatalf("Forecast returned an error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("forecast status got %d, expected %d", resp.StatusCode, http.StatusOK)
	}

	var out struct {
		EntityID string `json:"entity"`
		Data     []struct {
			Signal   bool            `json:"signal"`
			Expected decimal.Decimal `json:"expected"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("unable to decode forecast response: %v", err)
	}
	if out.EntityID != "btc-usd" {
		t.Errorf("response entity got %s, expected btc-usd", out.EntityID)
	}
	if len(out.Data) != 1 {
		t.Fatalf("response data got %d items, expected 1", len(out.Data))
	}
	if !out.Data[0].Signal {
		t.Error("response signal got false, expected true")
	}
	if !out.Data[0].Expected.Equal(pred.conclusion.Expected) {
		t.Errorf("response expected got %s, expected %s", out.Data[0].Expected, pred.conclusion.Expected)
	}
}
