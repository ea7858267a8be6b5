// Package metrics provides Prometheus collectors for the capuchin-go components.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ClassifierMetrics contains metrics for classifier inference.
type ClassifierMetrics struct {
	InferenceDuration *prometheus.HistogramVec
	InferenceTotal    *prometheus.CounterVec
	InferenceErrors   *prometheus.CounterVec
	ModelLoadTotal    *prometheus.CounterVec
	ModelLoadedGauge  prometheus.Gauge
}

// NewClassifierMetrics creates and registers classifier metrics.
func NewClassifierMetrics(registry *prometheus.Registry) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register classifier metrics: %w", err)
	}
	return m, nil
}

func (m *ClassifierMetrics) initMetrics() {
	m.InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capuchin_inference_duration_seconds",
			Help:    "Time taken by a single classifier invocation",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
		},
		[]string{"stage"},
	)

	m.InferenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capuchin_inferences_total",
			Help: "Total number of classifier invocations",
		},
		[]string{"stage", "status"},
	)

	m.InferenceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capuchin_inference_errors_total",
			Help: "Total number of failed classifier invocations",
		},
		[]string{"stage", "error_type"},
	)

	m.ModelLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capuchin_model_load_total",
			Help: "Total number of model load attempts",
		},
		[]string{"status"},
	)

	m.ModelLoadedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capuchin_model_loaded",
		Help: "Whether the classifier model is loaded (1) or not (0)",
	})
}

// RecordInference records the outcome of one classifier call.
func (m *ClassifierMetrics) RecordInference(stage string, durationSeconds float64, err error) {
	if err != nil {
		m.InferenceTotal.WithLabelValues(stage, StatusError).Inc()
		m.InferenceErrors.WithLabelValues(stage, categorizeError(err)).Inc()
		return
	}
	m.InferenceTotal.WithLabelValues(stage, StatusSuccess).Inc()
	m.InferenceDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordModelLoad records a model load attempt.
func (m *ClassifierMetrics) RecordModelLoad(err error) {
	if err != nil {
		m.ModelLoadTotal.WithLabelValues(StatusError).Inc()
		m.ModelLoadedGauge.Set(0)
		return
	}
	m.ModelLoadTotal.WithLabelValues(StatusSuccess).Inc()
	m.ModelLoadedGauge.Set(1)
}

// Describe implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.InferenceDuration.Describe(ch)
	m.InferenceTotal.Describe(ch)
	m.InferenceErrors.Describe(ch)
	m.ModelLoadTotal.Describe(ch)
	ch <- m.ModelLoadedGauge.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Collect(ch chan<- prometheus.Metric) {
	m.InferenceDuration.Collect(ch)
	m.InferenceTotal.Collect(ch)
	m.InferenceErrors.Collect(ch)
	m.ModelLoadTotal.Collect(ch)
	ch <- m.ModelLoadedGauge
}
