package metrics

import (
	"time"

	"github.com/tphakala/capuchin-go/internal/errors"
)

// Stage label values.
const (
	StageOne = "stage1"
	StageTwo = "stage2"
)

// Status label values.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusPartial   = "partial"
	StatusCancelled = "cancelled"
)

// Datastore operation label values.
const (
	OpSaveRun  = "save_run"
	OpGetRun   = "get_run"
	OpListRuns = "list_runs"
	OpMigrate  = "migrate"
)

// Histogram bucket parameters.
const (
	BucketStart100us = 0.0001
	BucketStart1ms   = 0.001
	BucketStart100ms = 0.1
	BucketStart64B   = 64.0
	BucketFactor2    = 2
	BucketCount10    = 10
	BucketCount12    = 12
	BucketCount15    = 15
)

// ShutdownTimeout bounds the graceful shutdown of the metrics endpoint.
const ShutdownTimeout = 5 * time.Second

// categorizeError returns the error category label for err.
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.GetCategory()
	}
	return string(errors.CategoryGeneric)
}
