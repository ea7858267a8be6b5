package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/tphakala/capuchin-go/internal/logger"
	metricspkg "github.com/tphakala/capuchin-go/internal/observability/metrics"
)

const readHeaderTimeout = 10 * time.Second

// Endpoint serves /metrics over HTTP while a run is active.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	boundAddr     string
	done          chan struct{}
}

// NewEndpoint creates an endpoint for the given listen address.
func NewEndpoint(listenAddress string, metrics *Metrics) (*Endpoint, error) {
	if listenAddress == "" {
		return nil, fmt.Errorf("metrics listen address is empty")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics are not initialized")
	}
	return &Endpoint{listenAddress: listenAddress, metrics: metrics}, nil
}

// Start binds the listen address and serves in the background. Call Stop to
// shut the server down.
func (e *Endpoint) Start() error {
	ln, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", e.listenAddress, err)
	}

	e.boundAddr = ln.Addr().String()

	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	e.server = &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		log.Info("metrics endpoint starting", logger.String("address", e.boundAddr))
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics HTTP server error", logger.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound address once started, otherwise the configured one.
func (e *Endpoint) Addr() string {
	if e.boundAddr != "" {
		return e.boundAddr
	}
	return e.listenAddress
}

// Stop shuts the server down and waits for it to exit.
func (e *Endpoint) Stop() {
	if e.server == nil {
		return
	}
	log.Info("stopping metrics endpoint")
	ctx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		log.Error("metrics server shutdown error", logger.Error(err))
	}
	<-e.done
	e.server = nil
}
