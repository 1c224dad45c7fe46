package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for API client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mwapi_requests_total",
		Help: "Total HTTP exchanges by API action and status",
	}, []string{"action", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mwapi_request_duration_seconds",
		Help:    "HTTP exchange duration in seconds by API action",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"action"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mwapi_errors_total",
		Help: "Total transport errors by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mwapi_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mwapi_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{5, 10, 20, 30, 60, 120},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mwapi_retry_exhausted_total",
		Help: "Total number of times the backoff ceiling was reached by error class",
	}, []string{"error_class"})

	invalidJSONTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mwapi_invalid_json_total",
		Help: "Total responses re-requested because the body was not valid JSON",
	})

	maxlagTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mwapi_maxlag_total",
		Help: "Total maxlag responses",
	})

	maxlagSleepSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mwapi_maxlag_sleep_seconds",
		Help:    "Time slept after maxlag responses",
		Buckets: []float64{1, 2, 5, 10, 30, 60, 120},
	})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mwapi_api_errors_total",
		Help: "Total API error responses by error code",
	}, []string{"code"})

	lagGateWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mwapi_lag_gate_waits_total",
		Help: "Total calls held back by a lag window recorded in the shared lag store",
	})
)
