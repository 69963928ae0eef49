/*
Package metrics provides Prometheus metrics collection and export for the
orchestrator's own observability.

# Overview

The package provides metrics for:
  - Supervised service phase and restart counts
  - Spawn generation tracking
  - Health probe verdicts
  - Reverse proxy request throughput and latency
  - Control API request instrumentation

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8090/metrics

# Available Metrics

Service Metrics:
  - a3s_service_state: Current phase of a supervised service (gauge)
    Labels: service, phase
    1 for the active phase, 0 for every other phase label
  - a3s_service_restarts_total: Total restarts (counter)
    Labels: service
  - a3s_service_generation: Current spawn generation (gauge)
    Labels: service

Health Metrics:
  - a3s_probe_outcomes_total: Total health probe verdicts (counter)
    Labels: service, verdict

Proxy Metrics:
  - a3s_proxy_requests_total: Total proxied requests (counter)
    Labels: subdomain, outcome
  - a3s_proxy_request_duration_seconds: Proxied request latency (histogram)
    Labels: subdomain

Control API Metrics:
  - a3s_api_requests_total: Total control API requests (counter)
    Labels: method, path, status
  - a3s_api_request_duration_seconds: Control API request latency (histogram)
    Labels: method, path
  - a3s_api_active_requests: In-flight control API requests (gauge)

Build Metrics:
  - a3s_build_info: Constant 1, labeled by version (gauge)

# Usage Example

Recording a service phase transition:

	metrics.SetServiceState("web", "running")
	metrics.SetGeneration("web", rec.Generation)

Recording a restart:

	metrics.RecordRestart("web")

Recording a proxied request:

	start := time.Now()
	// ... forward request ...
	metrics.RecordProxyRequest("web", "ok", time.Since(start))

Recording an API request with middleware:

	func MetricsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	    return func(w http.ResponseWriter, r *http.Request) {
	        metrics.TrackActiveRequest(true)
	        defer metrics.TrackActiveRequest(false)
	        start := time.Now()
	        rw := &metricsResponseWriter{ResponseWriter: w, statusCode: 200}
	        next(rw, r)
	        metrics.RecordAPIRequest(r.Method, r.URL.Path, metrics.StatusCodeLabel(rw.statusCode), time.Since(start))
	    }
	}

# Prometheus Configuration

Example prometheus.yml configuration:

	scrape_configs:
	  - job_name: 'a3s'
	    static_configs:
	      - targets: ['localhost:8090']
	    metrics_path: '/metrics'
	    scrape_interval: 15s

# Cardinality Management

Service and subdomain labels are bounded by the number of services declared
in config; phase and verdict labels are drawn from small fixed enums.

# Thread Safety

All metric recording functions are thread-safe; the Prometheus client
library handles synchronization internally.

# See Also

  - internal/middleware: HTTP middleware with metrics integration
  - internal/supervisor: Loop that drives service/restart/generation metrics
  - internal/proxy: Reverse proxy that drives proxy request metrics
  - internal/api: Control API that drives API request metrics
*/
package metrics
