/*
Package api implements the orchestrator's control API: the HTTP surface
operators and the embedded dashboard use to observe and drive the
supervisor loop.

Routes:

	GET  /api/status             current phase/pid/port/uptime for every service
	GET  /api/services/{name}    single-service detail
	GET  /api/history?service=   oldest-first log ring for one service
	GET  /api/logs?service=      live tail over Server-Sent Events
	POST /api/restart/{name}     request a restart
	POST /api/stop/{name}        request a stop
	GET  /                       embedded static dashboard (disabled by dev.no_ui)

Every JSON response is wrapped in the APIResponse envelope from
response.go, matching the success/error/meta shape the teacher's own
handlers used. Routing is chi; this project's own
RequestID/PrometheusMetrics/Compression middleware is outermost, with CORS
and per-IP rate limiting (go-chi/cors, go-chi/httprate) layered inside it.
*/
package api
