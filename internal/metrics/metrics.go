package metrics

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Model service metrics
	modelRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exambank_model_request_duration_seconds",
			Help:    "Model service call duration in seconds by backend",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s to ~2m
		},
		[]string{"backend", "status"},
	)

	rateLimiterWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exambank_rate_limiter_wait_duration_seconds",
			Help:    "Rate limiter wait duration in seconds by backend",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
		[]string{"backend"},
	)

	modelRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exambank_model_retries_total",
			Help: "Retried model service calls by backend",
		},
		[]string{"backend"},
	)

	// Pipeline metrics
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exambank_stage_duration_seconds",
			Help:    "Stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17m
		},
		[]string{"stage", "status"},
	)

	batchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exambank_batches_total",
			Help: "Batches processed by stage and outcome",
		},
		[]string{"stage", "status"}, // status: "success"/"error"
	)

	questionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exambank_questions_total",
			Help: "Questions handled by stage and outcome",
		},
		[]string{"stage", "outcome"}, // outcome: "kept"/"removed"/"solved"/"failed"/"extracted"/"packed"
	)

	jsonRepairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exambank_json_repairs_total",
			Help: "Model responses by the repair strategy that recovered them",
		},
		[]string{"strategy"}, // "strict"/"escape-markup-braces"/"escape-newlines"/"failed"
	)

	markupDiagnostics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exambank_markup_diagnostics_total",
			Help: "Markup problems reported by the validator",
		},
	)

	nodesEmitted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "exambank_nodes_emitted",
			Help: "Nodes written by the last formatting run",
		},
	)
)

// Collector provides convenience methods for recording metrics
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a new metrics collector
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordModelRequest records a model service call duration
func (c *Collector) RecordModelRequest(backend string, duration time.Duration, success bool) {
	modelRequestDuration.WithLabelValues(backend, statusLabel(success)).Observe(duration.Seconds())
}

// RecordRateLimiterWait records rate limiter wait time
func (c *Collector) RecordRateLimiterWait(backend string, duration time.Duration) {
	rateLimiterWaitDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// IncrementRetry counts one retried model call
func (c *Collector) IncrementRetry(backend string) {
	modelRetries.WithLabelValues(backend).Inc()
}

// RecordStage records a stage duration and outcome
func (c *Collector) RecordStage(stage string, duration time.Duration, success bool) {
	stageDuration.WithLabelValues(stage, statusLabel(success)).Observe(duration.Seconds())
}

// IncrementBatch counts one processed batch
func (c *Collector) IncrementBatch(stage string, success bool) {
	batchesProcessed.WithLabelValues(stage, statusLabel(success)).Inc()
}

// AddQuestions counts questions handled by a stage
func (c *Collector) AddQuestions(stage, outcome string, n int) {
	questionsProcessed.WithLabelValues(stage, outcome).Add(float64(n))
}

// RecordRepair counts a model response by the strategy that parsed it
func (c *Collector) RecordRepair(strategy string) {
	if strategy == "" {
		strategy = "failed"
	}
	jsonRepairs.WithLabelValues(strategy).Inc()
}

// AddMarkupDiagnostics counts validator findings
func (c *Collector) AddMarkupDiagnostics(n int) {
	markupDiagnostics.Add(float64(n))
}

// SetNodesEmitted records the node count of the last formatting run
func (c *Collector) SetNodesEmitted(n int) {
	nodesEmitted.Set(float64(n))
}

// WriteTextfile dumps every registered metric in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	c.logger.Debug("Metrics written", "path", path)
	return nil
}
