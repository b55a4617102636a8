package o11y

import (
	"context"

	"contrib.go.opencensus.io/exporter/prometheus"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var KeyEntity = tag.MustNewKey("entity")

var (
	MetricsCollected = stats.Int64(
		"signals/metrics_collected",
		"Number of observations accepted for processing",
		stats.UnitDimensionless,
	)
	SignalsDetected = stats.Int64(
		"signals/signals_detected",
		"Number of trend breakout signals detected",
		stats.UnitDimensionless,
	)
	PredictLatencyMs = stats.Float64(
		"signals/predict_latency",
		"Latency of one trend fit and band check",
		stats.UnitMilliseconds,
	)
)

func RegisterViews() error {
	return view.Register(
		&view.View{
			Name:        "signals/metrics_collected",
			Measure:     MetricsCollected,
			Description: "Observations accepted, by entity",
			Aggregation: view.Count(),
			TagKeys:     []tag.Key{KeyEntity},
		},
		&view.View{
			Name:        "signals/signals_detected",
			Measure:     SignalsDetected,
			Description: "Breakout signals, by entity",
			Aggregation: view.Count(),
			TagKeys:     []tag.Key{KeyEntity},
		},
		&view.View{
			Name:        "signals/predict_latency",
			Measure:     PredictLatencyMs,
			Description: "Predict latency distribution",
			Aggregation: view.Distribution(0.1, 0.5, 1, 2, 5, 10, 50, 100, 500),
		},
	)
}

// NewPrometheusExporter builds the exporter serving the registered views;
// it implements http.Handler.
func NewPrometheusExporter(namespace string) (*prometheus.Exporter, error) {
	return prometheus.NewExporter(prometheus.Options{Namespace: namespace})
}

// Record tags the measurements with the entity and records them.
func Record(ctx context.Context, entityID string, ms ...stats.Measurement) {
	_ = stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(KeyEntity, entityID)}, ms...)
}
