package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/a3s-lab/dev/internal/config"
)

// envelope mirrors internal/api's APIResponse wire shape, decoded
// client-side without importing the api package (it pulls in chi,
// the supervisor loop, and the embedded dashboard — more than a thin
// HTTP client needs).
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *envelopeError  `json:"error,omitempty"`
}

type envelopeError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

// apiCall issues method against path on the running daemon's control API
// and decodes the envelope. A non-2xx or success:false response is
// surfaced as an error carrying the daemon's own message.
func apiCall(ctx context.Context, cfg *config.Config, method, path string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, apiBase(cfg)+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("a3s up not reachable at %s: %w", apiBase(cfg), err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding response from %s: %w", path, err)
	}
	if !env.Success {
		if env.Error != nil {
			return nil, fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
		}
		return nil, fmt.Errorf("%s returned an unsuccessful response", path)
	}
	return &env, nil
}

// streamLines opens path as a long-lived SSE connection and calls fn for
// every "data: " line received, until ctx is cancelled or the connection
// closes.
func streamLines(ctx context.Context, cfg *config.Config, path string, fn func(line string)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase(cfg)+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("a3s up not reachable at %s: %w", apiBase(cfg), err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			fn(data)
		}
	}
	return scanner.Err()
}
