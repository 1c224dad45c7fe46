// Package metrics exposes the Prometheus metrics of the API client.
// All metrics are defined in their respective packages (client, pagination,
// throttle) to maintain modularity and avoid circular dependencies.
//
// This package serves them over HTTP and documents the catalogue.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by the API client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// shutdownTimeout bounds the graceful shutdown of the metrics server.
const shutdownTimeout = 5 * time.Second

// Handler returns the handler serving the registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewMux returns a mux serving /metrics and /health.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	return mux
}

// Serve runs a metrics server on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	}
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - mwapi_requests_total{action, status} (Counter): HTTP exchanges by API action and status
//   - mwapi_request_duration_seconds{action} (Histogram): Exchange duration by API action
//   - mwapi_errors_total{class} (Counter): Transport errors by class (client, server, network)
//
// Retry Metrics (pkg/client):
//   - mwapi_retries_total{error_class} (Counter): Retry attempts by error class
//   - mwapi_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - mwapi_retry_exhausted_total{error_class} (Counter): Calls that reached the backoff ceiling
//
// Response Metrics (pkg/client):
//   - mwapi_invalid_json_total (Counter): Responses requested again because the body was not JSON
//   - mwapi_maxlag_total (Counter): maxlag responses
//   - mwapi_maxlag_sleep_seconds (Histogram): Time slept after maxlag responses
//   - mwapi_api_errors_total{code} (Counter): API error objects by code
//   - mwapi_lag_gate_waits_total (Counter): Calls held back by a shared lag window
//
// Lag Metrics (pkg/throttle):
//   - mwapi_server_lag_seconds (Gauge): Last reported replication lag
//   - mwapi_lag_observations_total (Counter): Lag observations recorded
//
// Continuation Metrics (pkg/pagination):
//   - mwapi_continuation_pages_total{protocol} (Counter): Follow-up pages by protocol (legacy, modern)
//
// Example Prometheus Queries:
//
//   # Retry Rate
//   sum(rate(mwapi_retries_total[5m])) / sum(rate(mwapi_requests_total[5m]))
//
//   # Server Lag
//   mwapi_server_lag_seconds > 5
//
//   # Request Error Rate
//   rate(mwapi_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(mwapi_request_duration_seconds_bucket[5m]))
//
//   # Pages per Legacy Query
//   rate(mwapi_continuation_pages_total{protocol="legacy"}[5m])
