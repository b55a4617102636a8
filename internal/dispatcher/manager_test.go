package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hjoelr/trading-signals/internal/alert"
	"github.com/hjoelr/trading-signals/internal/database"
	"github.com/hjoelr/trading-signals/internal/metric/model"
	"github.com/hjoelr/trading-signals/internal/predictor"
	"github.com/hjoelr/trading-signals/internal/regression"
)

type fakeDataPoint struct {
	value     decimal.Decimal
	createdAt time.Time
}

func (p fakeDataPoint) Point() regression.Point {
	return regression.NewPointFromTime(p.createdAt, p.value)
}

func (p fakeDataPoint) Time() time.Time {
	return p.createdAt
}

type fakePredictor struct {
	conclusion *predictor.Conclusion
	appended   int
}

func (f *fakePredictor) Reset()   { f.appended = 0 }
func (f *fakePredictor) Len() int { return f.appended }

func (f *fakePredictor) Build(data ...predictor.DataPoint) { f.appended = len(data) }

func (f *fakePredictor) Append(data ...predictor.DataPoint) { f.appended += len(data) }

func (f *fakePredictor) Predict(predictor.DataPoint) (*predictor.Conclusion, error) {
	return f.conclusion, nil
}

func TestManagerPredict(t *testing.T) {
	tests := []struct {
		name       string
		conclusion *predictor.Conclusion
		expected   bool
	}{
		{
			name:       "breakout",
			conclusion: &predictor.Conclusion{Signal: true},
			expected:   true,
		},
		{
			name:       "on_trend",
			conclusion: &predictor.Conclusion{Signal: false},
			expected:   false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			db := &database.DB{}
			shutdownCh := make(chan error, 1)
			notifier, err := alert.New(db, shutdownCh)
			if err != nil {
				t.Fatalf("alert.New returned an error: %v", err)
			}

			pred := &fakePredictor{conclusion: test.conclusion}
			m, err := New(db, func() (predictor.Predictor, error) {
				return pred, nil
			}, notifier, shutdownCh)
			if err != nil {
				t.Fatalf("New returned an error: %v", err)
			}

			conclusion, err := m.Predict("test-entity", fakeDataPoint{
				value:     decimal.NewFromInt(100),
				createdAt: time.Now(),
			})
			if err != nil {
				t.Fatalf("Predict returned an error: %v", err)
			}
			if conclusion.Signal != test.expected {
				t.Errorf("Predict signal got %v, expected %v", conclusion.Signal, test.expected)
			}
		})
	}
}

func TestManagerPredictReusesEntityPredictor(t *testing.T) {
	db := &database.DB{}
	shutdownCh := make(chan error, 1)
	notifier, err := alert.New(db, shutdownCh)
	if err != nil {
		t.Fatalf("alert.New returned an error: %v", err)
	}

	created := 0
	m, err := New(db, func() (predictor.Predictor, error) {
		created++
		return &fakePredictor{conclusion: &predictor.Conclusion{}}, nil
	}, notifier, shutdownCh)
	if err != nil {
		t.Fatalf("New returned an error: %v", err)
	}

	point := fakeDataPoint{value: decimal.NewFromInt(1), createdAt: time.Now()}
	for i := 0; i < 3; i++ {
		if _, err := m.Predict("test-entity", point); err != nil {
			t.Fatalf("Predict returned an error: %v", err)
		}
	}
	if _, err := m.Predict("other-entity", point); err != nil {
		t.Fatalf("Predict returned an error: %v", err)
	}
	if created != 2 {
		t.Errorf("predictor instances created got %d, expected one per entity (2)", created)
	}
}

func TestCollectRoutesPerEntityQueue(t *testing.T) {
	db := &database.DB{}
	shutdownCh := make(chan error, 8)
	notifier, err := alert.New(db, shutdownCh)
	if err != nil {
		t.Fatalf("alert.New returned an error: %v", err)
	}

	m, err := New(db, func() (predictor.Predictor, error) {
		return &fakePredictor{conclusion: &predictor.Conclusion{}}, nil
	}, notifier, shutdownCh, WithSkipItems(100), WithDBFlushSize(100))
	if err != nil {
		t.Fatalf("New returned an error: %v", err)
	}

	go m.collector(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			metric := model.NewMetric(fmt.Sprintf("entity-%d", i%2), decimal.NewFromInt(int64(i)), time.Now(), "test")
			if err := m.Collect(metric); err != nil {
				t.Errorf("Collect returned an error: %v", err)
			}
		}()
	}
	wg.Wait()

	deadline := time.After(2 * time.Second)
	for {
		m.queueMtx.RLock()
		queues := len(m.queue)
		m.queueMtx.RUnlock()
		if queues == 2 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("entity queues got %d, expected 2", queues)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
