package datastore

import (
	"time"

	"github.com/tphakala/capuchin-go/internal/observability/metrics"
)

// Metrics is a type alias for the metrics.DatastoreMetrics
type Metrics = metrics.DatastoreMetrics

// observe records one operation when metrics are enabled.
func (ds *DataStore) observe(operation string, start time.Time, err error) {
	if ds.metrics != nil {
		ds.metrics.RecordOperation(operation, time.Since(start).Seconds(), err)
	}
}
