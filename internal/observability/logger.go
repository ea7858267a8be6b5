// Package observability wires the Prometheus collectors and exposes them.
package observability

import "github.com/tphakala/capuchin-go/internal/logger"

// Package-level cached logger instance.
var log = logger.Global().Module("telemetry")
