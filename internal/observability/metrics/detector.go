package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ScanCounts summarises one completed or aborted scan.
type ScanCounts struct {
	Windows                int
	Stage1Positives        int
	Stage2Invocations      int
	Calls                  int
	SkippedChunks          int
	FeatureFailures        int
	ClassificationFailures int
}

// DetectorMetrics contains metrics for two-stage scans.
type DetectorMetrics struct {
	WindowsScanned         prometheus.Counter
	Stage1Positives        prometheus.Counter
	Stage2Invocations      prometheus.Counter
	CallsDetected          prometheus.Counter
	SkippedChunks          prometheus.Counter
	FeatureFailures        prometheus.Counter
	ClassificationFailures prometheus.Counter
	ScansTotal             *prometheus.CounterVec
	ScanDuration           prometheus.Histogram
	ActiveScans            prometheus.Gauge
}

// NewDetectorMetrics creates and registers detector metrics.
func NewDetectorMetrics(registry *prometheus.Registry) (*DetectorMetrics, error) {
	m := &DetectorMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register detector metrics: %w", err)
	}
	return m, nil
}

func (m *DetectorMetrics) initMetrics() {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}

	m.WindowsScanned = counter("capuchin_outer_windows_total", "Total number of outer windows scanned")
	m.Stage1Positives = counter("capuchin_stage1_positive_total", "Outer windows whose Stage 1 triage indicated a call")
	m.Stage2Invocations = counter("capuchin_stage2_invocations_total", "Inner chunks classified by Stage 2")
	m.CallsDetected = counter("capuchin_calls_detected_total", "Confirmed call events")
	m.SkippedChunks = counter("capuchin_skipped_chunks_total", "Inner chunks skipped for being too short")
	m.FeatureFailures = counter("capuchin_feature_failures_total", "Segments skipped after a feature extraction failure")
	m.ClassificationFailures = counter("capuchin_classification_failures_total", "Segments skipped after a classification failure")

	m.ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capuchin_scans_total",
			Help: "Total number of scans by outcome",
		},
		[]string{"status"},
	)

	m.ScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "capuchin_scan_duration_seconds",
		Help:    "Wall time of a complete two-stage scan",
		Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount15),
	})

	m.ActiveScans = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capuchin_active_scans",
		Help: "Number of scans currently running",
	})
}

// ScanStarted marks a scan as running.
func (m *DetectorMetrics) ScanStarted() {
	m.ActiveScans.Inc()
}

// RecordScan records the counters of a finished scan and its outcome.
func (m *DetectorMetrics) RecordScan(counts ScanCounts, status string, durationSeconds float64) {
	m.ActiveScans.Dec()
	m.WindowsScanned.Add(float64(counts.Windows))
	m.Stage1Positives.Add(float64(counts.Stage1Positives))
	m.Stage2Invocations.Add(float64(counts.Stage2Invocations))
	m.CallsDetected.Add(float64(counts.Calls))
	m.SkippedChunks.Add(float64(counts.SkippedChunks))
	m.FeatureFailures.Add(float64(counts.FeatureFailures))
	m.ClassificationFailures.Add(float64(counts.ClassificationFailures))
	m.ScansTotal.WithLabelValues(status).Inc()
	if status == StatusSuccess {
		m.ScanDuration.Observe(durationSeconds)
	}
}

func (m *DetectorMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.WindowsScanned, m.Stage1Positives, m.Stage2Invocations, m.CallsDetected,
		m.SkippedChunks, m.FeatureFailures, m.ClassificationFailures,
		m.ScansTotal, m.ScanDuration, m.ActiveScans,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *DetectorMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *DetectorMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}
