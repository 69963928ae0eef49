/*
Package middleware provides HTTP middleware components for the control API.

This package implements infrastructure middleware for compression, performance
monitoring, request ID tracking, and Prometheus metrics integration, used by
the control API's chi router.

Key Components:

  - Compression: Gzip compression for clients that accept it
  - Performance Monitor: Request latency tracking with percentile calculations
  - Request ID: UUID-based request tracking for distributed tracing
  - Prometheus Metrics: HTTP request/response instrumentation

Middleware Stack:

The typical middleware stack for an endpoint is:

	http.HandleFunc("/api/status",
	    middleware.PrometheusMetrics(  // Layer 1: Metrics
	        middleware.Compression(    // Layer 2: Gzip
	            middleware.RequestID(  // Layer 3: Request tracking
	                handler,           // Layer 4: Business logic
	            ),
	        ),
	    ),
	)

Usage Example - Compression:

	import "github.com/a3s-lab/dev/internal/middleware"

	// Wrap handler with gzip compression
	http.HandleFunc("/api/status",
	    middleware.Compression(handler),
	)

	// Responses of any size are compressed
	// Accept-Encoding: gzip header is required

Usage Example - Performance Monitoring:

	// Create performance monitor
	perfMon := middleware.NewPerformanceMonitor(1000)

	// Wrap handler
	http.Handle("/api/status",
	    perfMon.Middleware(handler),
	)

	// Get performance statistics
	stats := perfMon.GetStats()

Usage Example - Request ID:

	// Request ID middleware
	http.HandleFunc("/api/logs",
	    middleware.RequestID(handler),
	)

	// Access request ID in handler
	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := middleware.GetRequestID(r.Context())
	    log.Printf("[%s] Processing request", requestID)
	}

Compression Details:

The compression middleware:
  - Only compresses for clients sending Accept-Encoding: gzip
  - Skips WebSocket upgrade requests
  - Pools gzip.Writer instances to reduce allocations
  - Automatically sets Content-Encoding and clears Content-Length

Performance Monitor:

The performance monitor tracks:
  - Request count and latency percentiles (p50, p95, p99) per endpoint
  - A sliding window of the most recent requests
  - Thread-safe concurrent access with RWMutex

Thread Safety:

All middleware components are thread-safe:
  - Compression uses pooled, per-request gzip writers
  - Performance monitor uses sync.RWMutex
  - Request ID uses context.Context (immutable)
  - Prometheus metrics use atomic operations

See Also:

  - internal/api: Control API handlers wrapped by this middleware
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
