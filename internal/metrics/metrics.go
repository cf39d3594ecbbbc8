// Package metrics records Prometheus metrics for calls to the remote backend.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is what the API client reports to. A nil *APIRecorder is valid
// and records nothing, so tests and the CLI can skip metrics entirely.
type Recorder interface {
	ObserveRequest(method, route string, status int, outcome string, duration time.Duration)
}

// APIRecorder implements Recorder with Prometheus collectors.
type APIRecorder struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var _ Recorder = (*APIRecorder)(nil)

// NewAPIRecorder registers the collectors on reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewAPIRecorder(reg prometheus.Registerer) *APIRecorder {
	factory := promauto.With(reg)
	return &APIRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "red_api_requests_total",
				Help: "Total number of requests sent to the backend API by route, status and outcome",
			},
			[]string{"method", "route", "status", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "red_api_request_duration_seconds",
				Help:    "Duration of backend API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// ObserveRequest records one completed request. status is 0 when no
// response arrived; outcome is "ok" or the error kind ("unauthorized", ...).
func (r *APIRecorder) ObserveRequest(method, route string, status int, outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status), outcome).Inc()
	r.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
