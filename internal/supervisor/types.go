package supervisor

import (
	"time"

	"github.com/a3s-lab/dev/internal/health"
	"github.com/a3s-lab/dev/internal/runner"
)

// Phase is one of the seven labels a service's lifecycle is a closed sum
// over. Components switch on this value, never on object identity.
type Phase string

const (
	Pending    Phase = "pending"
	Starting   Phase = "starting"
	Running    Phase = "running"
	Restarting Phase = "restarting"
	Unhealthy  Phase = "unhealthy"
	Failed     Phase = "failed"
	Stopped    Phase = "stopped"
)

// Routable reports whether a service in this phase should receive proxy
// traffic.
func (p Phase) Routable() bool { return p == Running || p == Unhealthy }

// ServiceStatus is the read-only snapshot view of one service, as
// surfaced by /api/status and consumed by the proxy's routing map.
type ServiceStatus struct {
	Name        string            `json:"name"`
	Phase       Phase             `json:"state"`
	PID         int               `json:"pid,omitempty"`
	Port        int               `json:"port,omitempty"`
	Subdomain   string            `json:"subdomain,omitempty"`
	UptimeSecs  *float64          `json:"uptime_secs,omitempty"`
	Generation  uint64            `json:"generation"`
	Diagnostic  string            `json:"diagnostic,omitempty"`
	LastExit    string            `json:"last_exit,omitempty"`
	RestartedAt *time.Time        `json:"restarted_at,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// event is the sealed set of things that can arrive on the supervisor
// loop's single inbound queue. Every cross-component decision is
// serialized through handle() in loop.go — no component outside this
// package ever mutates a serviceRecord directly.
type event interface{ isEvent() }

type upCmd struct{ names []string }
type downCmd struct{ names []string }
type restartCmd struct{ name string }
type shutdownCmd struct{ done chan struct{} }

type runnerExitedEvent struct {
	name   string
	gen    uint64
	result runner.ExitResult
}

type proberVerdictEvent struct {
	name string
	gen  uint64
	ev   health.Event
}

type watcherChangedEvent struct {
	name string
	gen  uint64
}

type portDiscoveredEvent struct {
	name string
	gen  uint64
	port int
	err  error
}

type stopCompleteEvent struct {
	name string
	gen  uint64
}

func (upCmd) isEvent()               {}
func (downCmd) isEvent()             {}
func (restartCmd) isEvent()          {}
func (shutdownCmd) isEvent()         {}
func (runnerExitedEvent) isEvent()   {}
func (proberVerdictEvent) isEvent()  {}
func (watcherChangedEvent) isEvent() {}
func (portDiscoveredEvent) isEvent() {}
func (stopCompleteEvent) isEvent()   {}
