// Package metrics exposes FuelGuard's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fuelguard/fuelguard/internal/domain"
)

var (
	// TransactionsEvaluated counts transactions scored by the engine,
	// labeled by evaluation path.
	TransactionsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelguard_transactions_evaluated_total",
			Help: "Total number of transactions scored by the detection engine",
		},
		[]string{"source"},
	)

	// TransactionsRejected counts malformed transactions excluded from
	// evaluation.
	TransactionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fuelguard_transactions_rejected_total",
			Help: "Total number of malformed transactions excluded from evaluation",
		},
	)

	// AnomaliesDetected counts anomalous results by severity tier.
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelguard_anomalies_detected_total",
			Help: "Total number of anomalous transactions by severity",
		},
		[]string{"severity"},
	)

	// RuleFirings counts individual rule firings by rule id.
	RuleFirings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelguard_rule_firings_total",
			Help: "Total number of rule firings by rule id",
		},
		[]string{"rule_id"},
	)

	// BatchDuration tracks batch detection latency.
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fuelguard_batch_duration_seconds",
			Help:    "Duration of batch detection runs in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	// AlertsPublished counts results escalated by the alert policy.
	AlertsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fuelguard_alerts_published_total",
			Help: "Total number of detection results escalated to the alert topic",
		},
	)
)

// Evaluation path labels.
const (
	SourceBatch  = "batch"
	SourceStream = "stream"
)

// RecordBatch records the outcome of one batch detection run.
func RecordBatch(resp *domain.DetectResponse, elapsed time.Duration) {
	TransactionsRejected.Add(float64(len(resp.Errors)))
	BatchDuration.Observe(elapsed.Seconds())

	for i := range resp.Results {
		RecordResult(&resp.Results[i], SourceBatch)
	}
}

// RecordResult records one detection result.
func RecordResult(result *domain.AnomalyResult, source string) {
	TransactionsEvaluated.WithLabelValues(source).Inc()
	if !result.IsAnomalous {
		return
	}
	AnomaliesDetected.WithLabelValues(string(result.Severity)).Inc()
	for _, id := range result.RuleIDs {
		RuleFirings.WithLabelValues(id).Inc()
	}
}
