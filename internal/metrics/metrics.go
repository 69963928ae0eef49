// Package metrics exposes the orchestrator's own Prometheus collectors:
// per-service phase, restart counts, probe outcomes, proxy throughput,
// and control API request instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ServiceState is 1 for the service's current phase, 0 for every
	// other phase label — set via SetServiceState, which clears the
	// other phase labels for that service first.
	ServiceState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "a3s_service_state",
			Help: "Current phase of a supervised service (1 = current, 0 = other)",
		},
		[]string{"service", "phase"},
	)

	ServiceRestartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "a3s_service_restarts_total",
			Help: "Total number of times a service has been restarted",
		},
		[]string{"service"},
	)

	ServiceGeneration = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "a3s_service_generation",
			Help: "Current spawn generation number for a service",
		},
		[]string{"service"},
	)

	ProbeOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "a3s_probe_outcomes_total",
			Help: "Total health probe verdicts, by service and verdict",
		},
		[]string{"service", "verdict"},
	)

	ProxyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "a3s_proxy_requests_total",
			Help: "Total requests handled by the reverse proxy, by subdomain and outcome",
		},
		[]string{"subdomain", "outcome"},
	)

	ProxyRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "a3s_proxy_request_duration_seconds",
			Help:    "Duration of proxied requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subdomain"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "a3s_api_requests_total",
			Help: "Total control API requests, by method, path, and status code",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "a3s_api_request_duration_seconds",
			Help:    "Duration of control API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "a3s_api_active_requests",
			Help: "Number of control API requests currently being handled",
		},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "a3s_build_info",
			Help: "Build information, constant 1 labeled with version",
		},
		[]string{"version"},
	)
)

var servicePhases = []string{
	"pending", "starting", "running", "restarting", "unhealthy", "failed", "stopped",
}

// SetServiceState records service's current phase, zeroing every other
// phase label so the gauge vector reflects exactly one active state per
// service at a time.
func SetServiceState(service, phase string) {
	for _, p := range servicePhases {
		v := 0.0
		if p == phase {
			v = 1.0
		}
		ServiceState.WithLabelValues(service, p).Set(v)
	}
}

// RecordRestart increments the restart counter for service.
func RecordRestart(service string) {
	ServiceRestartsTotal.WithLabelValues(service).Inc()
}

// SetGeneration records service's current spawn generation.
func SetGeneration(service string, generation uint64) {
	ServiceGeneration.WithLabelValues(service).Set(float64(generation))
}

// RecordProbeOutcome increments the probe-verdict counter for service.
func RecordProbeOutcome(service, verdict string) {
	ProbeOutcomesTotal.WithLabelValues(service, verdict).Inc()
}

// RecordProxyRequest records one proxied request's outcome and latency.
func RecordProxyRequest(subdomain, outcome string, duration time.Duration) {
	ProxyRequestsTotal.WithLabelValues(subdomain, outcome).Inc()
	ProxyRequestDuration.WithLabelValues(subdomain).Observe(duration.Seconds())
}

// RecordAPIRequest records one control API request's outcome and latency.
func RecordAPIRequest(method, path, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight API request
// gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// SetBuildInfo records a constant build-info sample labeled by version.
func SetBuildInfo(version string) {
	AppInfo.WithLabelValues(version).Set(1)
}

// StatusCodeLabel converts an HTTP status code to its Prometheus label
// form, matching the teacher's strconv.Itoa convention for status labels.
func StatusCodeLabel(code int) string {
	return strconv.Itoa(code)
}
