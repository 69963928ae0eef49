// Package health runs the bounded probe loop the supervisor starts
// whenever a service enters `starting`: HTTP or TCP checks on an
// interval, with a retry budget before giving up.
//
// The consecutive-failure bookkeeping is wired directly onto
// sony/gobreaker/v2's CircuitBreaker rather than a hand-rolled counter:
// ReadyToTrip fires exactly at the configured retry budget, and
// OnStateChange is where the gave-up verdict's structured log line comes
// from — the same shape the teacher's circuit breaker client uses to log
// and count state transitions for its upstream HTTP calls.
package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/a3s-lab/dev/internal/config"
	"github.com/a3s-lab/dev/internal/logging"
	"github.com/a3s-lab/dev/internal/supervisor/errkind"
)

// Verdict is one of the three events the prober reports to the
// supervisor.
type Verdict int

const (
	Healthy Verdict = iota
	Unhealthy
	GaveUp
)

func (v Verdict) String() string {
	switch v {
	case Healthy:
		return "healthy"
	case Unhealthy:
		return "unhealthy"
	case GaveUp:
		return "gave_up"
	default:
		return "unknown"
	}
}

// Event is one verdict emitted onto the prober's output channel.
type Event struct {
	Verdict Verdict
	Reason  string
}

// Prober runs the probe loop for one service generation. Construct with
// New and start with Run on its own goroutine; Run returns when the
// context is cancelled, when there is no health spec (after emitting one
// Healthy event), or after emitting GaveUp.
type Prober struct {
	service string
	port    int
	spec    *config.HealthSpec
	events  chan Event
	client  *http.Client
}

// New constructs a Prober for service listening on port. spec may be nil,
// meaning "no health checking".
func New(service string, port int, spec *config.HealthSpec) *Prober {
	return &Prober{
		service: service,
		port:    port,
		spec:    spec,
		events:  make(chan Event, 8),
		client:  &http.Client{},
	}
}

// Events returns the channel Run publishes verdicts to.
func (p *Prober) Events() <-chan Event { return p.events }

// Run drives the probe loop until ctx is cancelled or a terminal verdict
// (GaveUp) is reached. It closes the events channel on return.
func (p *Prober) Run(ctx context.Context) {
	defer close(p.events)

	if p.spec == nil {
		p.emit(ctx, Event{Verdict: Healthy})
		return
	}

	p.client.Timeout = p.spec.Timeout

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("probe:%s", p.service),
		MaxRequests: 1,
		Interval:    0,
		Timeout:     365 * 24 * time.Hour, // the loop owns recovery, not gobreaker's half-open timer
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(p.spec.Retries)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("service", p.service).Str("probe", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("health prober circuit state changed")
		},
	}
	cb := gobreaker.NewCircuitBreaker[bool](settings)

	everHealthy := false
	lastHealthy := false

	timer := time.NewTimer(p.spec.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		_, err := cb.Execute(func() (bool, error) {
			return true, p.probe(ctx)
		})

		if err == nil {
			if !everHealthy || !lastHealthy {
				p.emit(ctx, Event{Verdict: Healthy})
			}
			everHealthy = true
			lastHealthy = true
		} else if cb.State() == gobreaker.StateOpen {
			p.emit(ctx, Event{Verdict: GaveUp, Reason: err.Error()})
			return
		} else {
			lastHealthy = false
			p.emit(ctx, Event{Verdict: Unhealthy, Reason: err.Error()})
		}

		timer.Reset(p.spec.Interval)
	}
}

func (p *Prober) emit(ctx context.Context, e Event) {
	select {
	case p.events <- e:
	case <-ctx.Done():
	}
}

func (p *Prober) probe(ctx context.Context) error {
	switch p.spec.Kind {
	case config.HealthHTTP:
		return p.probeHTTP(ctx)
	case config.HealthTCP:
		return p.probeTCP(ctx)
	default:
		return fmt.Errorf("%s: unknown health kind %q", errkind.ProbeBadStatus, p.spec.Kind)
	}
}

func (p *Prober) probeHTTP(ctx context.Context) error {
	url := fmt.Sprintf("http://127.0.0.1:%d%s", p.port, p.spec.Path)
	reqCtx, cancel := context.WithTimeout(ctx, p.spec.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", errkind.ProbeRefused, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return fmt.Errorf("%s: %w", errkind.ProbeTimeout, err)
		}
		return fmt.Errorf("%s: %w", errkind.ProbeRefused, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return nil
	}
	return fmt.Errorf("%s: %d", errkind.ProbeBadStatus, resp.StatusCode)
}

func (p *Prober) probeTCP(ctx context.Context) error {
	dialer := net.Dialer{Timeout: p.spec.Timeout}
	addr := fmt.Sprintf("127.0.0.1:%d", p.port)

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%s: %w", errkind.ProbeRefused, err)
	}
	_ = conn.Close()
	return nil
}
