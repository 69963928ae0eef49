package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/a3s-lab/dev/internal/logbus"
	"github.com/a3s-lab/dev/internal/supervisor"
)

// Handler holds the dependencies every control API route needs: the
// supervisor loop it reports on and drives, and the log bus it reads
// history and live tails from.
type Handler struct {
	loop *supervisor.Loop
	bus  *logbus.Bus
}

// NewHandler constructs a Handler bound to loop and bus.
func NewHandler(loop *supervisor.Loop, bus *logbus.Bus) *Handler {
	return &Handler{loop: loop, bus: bus}
}

// handleStatus serves GET /api/status: the full status array.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(h.loop.Status())
}

// handleServiceDetail serves GET /api/services/{name}, a supplemented
// single-service view not in the original endpoint list.
func (h *Handler) handleServiceDetail(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	name := chi.URLParam(r, "name")
	for _, st := range h.loop.Status() {
		if st.Name == name {
			rw.Success(st)
			return
		}
	}
	rw.NotFound("no such service: " + name)
}

// handleHistory serves GET /api/history?service=<name>: the oldest-first
// contents of that service's log ring. The service query parameter is
// required — logbus.History does not treat an empty name as a wildcard.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	service := r.URL.Query().Get("service")
	if service == "" {
		rw.BadRequest("service query parameter is required")
		return
	}
	rw.Success(h.bus.History(service))
}

// handleRestart serves POST /api/restart/{name}. Idempotent: a restart
// of a stopped service simply starts it, handled identically by the
// supervisor loop's own restart logic.
func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	name := chi.URLParam(r, "name")
	if !h.serviceExists(name) {
		rw.NotFound("no such service: " + name)
		return
	}
	h.loop.Restart(name)
	rw.Accepted(map[string]string{"name": name, "action": "restart"})
}

// handleStop serves POST /api/stop/{name}. Idempotent: stopping an
// already-stopped service is a no-op 202, matching Down's semantics.
func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	name := chi.URLParam(r, "name")
	if !h.serviceExists(name) {
		rw.NotFound("no such service: " + name)
		return
	}
	h.loop.Down([]string{name})
	rw.Accepted(map[string]string{"name": name, "action": "stop"})
}

func (h *Handler) serviceExists(name string) bool {
	for _, st := range h.loop.Status() {
		if st.Name == name {
			return true
		}
	}
	return false
}
