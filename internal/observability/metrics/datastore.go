package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains metrics for run persistence.
type DatastoreMetrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec
	RunsStored        prometheus.Counter
}

// NewDatastoreMetrics creates and registers datastore metrics.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capuchin_db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "capuchin_db_operation_duration_seconds",
				Help:    "Duration of database operations",
				Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
			},
			[]string{"operation"},
		),
		OperationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capuchin_db_operation_errors_total",
				Help: "Total number of failed database operations",
			},
			[]string{"operation", "error_type"},
		),
		RunsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capuchin_db_runs_stored_total",
			Help: "Detection runs written to the database",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

// RecordOperation records a database operation with its duration and outcome.
func (m *DatastoreMetrics) RecordOperation(operation string, durationSeconds float64, err error) {
	m.OperationDuration.WithLabelValues(operation).Observe(durationSeconds)
	if err != nil {
		m.OperationsTotal.WithLabelValues(operation, StatusError).Inc()
		m.OperationErrors.WithLabelValues(operation, categorizeError(err)).Inc()
		return
	}
	m.OperationsTotal.WithLabelValues(operation, StatusSuccess).Inc()
	if operation == OpSaveRun {
		m.RunsStored.Inc()
	}
}

// Describe implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.OperationsTotal.Describe(ch)
	m.OperationDuration.Describe(ch)
	m.OperationErrors.Describe(ch)
	ch <- m.RunsStored.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.OperationsTotal.Collect(ch)
	m.OperationDuration.Collect(ch)
	m.OperationErrors.Collect(ch)
	ch <- m.RunsStored
}
