// Package supervisor's Loop is the single-owner event loop the spec
// calls the "supervisor loop": the only goroutine that ever mutates a
// service's recorded phase. Every other task — runner, prober, watcher,
// port scan — only ever sends events onto Loop's inbound queue; nothing
// outside handle() touches a serviceRecord, so no lock is needed on the
// service table itself (the published snapshot is a separate, copied,
// atomically-swapped value readers use instead).
//
// Grounding note: the map-of-named-services-behind-one-lock shape this
// generalizes is adapted from ServerSupervisor in the teacher's original
// server_supervisor.go (since removed — its domain was media-platform
// sync wrappers that don't translate here); the part kept is the shape,
// not the code: a factory that turns one declared unit into a live
// supervised task, tracked in a map keyed by name.
package supervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/a3s-lab/dev/internal/config"
	"github.com/a3s-lab/dev/internal/logbus"
	"github.com/a3s-lab/dev/internal/logging"
	"github.com/a3s-lab/dev/internal/metrics"
	"github.com/a3s-lab/dev/internal/runner"
	"github.com/a3s-lab/dev/internal/supervisor/errkind"
)

// serviceRecord is the loop's private, mutable view of one declared
// service. Only handle() (running on the loop goroutine) ever reads or
// writes its fields after construction.
type serviceRecord struct {
	spec config.ServiceSpec

	phase      Phase
	generation uint64
	wanted     bool // true while an "up" request for this service is outstanding
	rearm      bool // a restart is requested while one is already in flight
	stopping   bool // this generation's teardown was requested by down/restart/shutdown

	rnr    *runner.Runner
	cancel context.CancelFunc // cancels this generation's prober/watcher context
	stopCh chan time.Duration // buffered 1; send to request this generation's child stop

	pid         int
	port        int
	startedAt   time.Time
	lastExit    string
	diagnostic  string
	restartedAt *time.Time

	// failReason, when non-empty, overrides the next runnerExitedEvent's
	// phase decision to Failed regardless of how the child actually
	// exited — set when the prober gives up or port discovery times out
	// and the loop asks the reaper to tear the generation down.
	failReason string

	// finalizing is true from the moment a generation's teardown is
	// requested (deliberate stop, restart, or failure-triggered) until
	// its runnerExitedEvent is processed. evaluateStarts must not spawn
	// a new generation for a service whose previous one hasn't finished
	// exiting yet.
	finalizing bool
}

// Loop drives every declared service through its phase machine. Add it
// to a ResilienceTree's core layer as a suture.Service.
type Loop struct {
	cfg         *config.Config
	bus         *logbus.Bus
	defaultStop time.Duration

	events chan event

	// services is only ever read or written from the Serve goroutine;
	// no lock is needed.
	services map[string]*serviceRecord

	snapshot atomic.Pointer[[]ServiceStatus]
	routes   atomic.Pointer[map[string]int]

	shutdownOnce sync.Once
	shuttingDown atomic.Bool
}

// NewLoop constructs a Loop for cfg. Every declared service starts
// recorded as Pending; nothing is spawned until Up is called.
func NewLoop(cfg *config.Config, bus *logbus.Bus) *Loop {
	l := &Loop{
		cfg:         cfg,
		bus:         bus,
		defaultStop: cfg.Dev.StopTimeout,
		events:      make(chan event, 256),
		services:    make(map[string]*serviceRecord, len(cfg.Services)),
	}
	if l.defaultStop <= 0 {
		l.defaultStop = runner.DefaultGrace
	}
	for _, spec := range cfg.Services {
		l.services[spec.Name] = &serviceRecord{spec: spec, phase: Pending}
	}
	empty := map[string]int{}
	l.routes.Store(&empty)
	l.publishSnapshot()
	return l
}

// String identifies this service in suture's logs.
func (l *Loop) String() string { return "supervisor-loop" }

// Serve drains the inbound event queue until ctx is cancelled, at which
// point it runs the same terminal drain as an explicit shutdown.
func (l *Loop) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.runShutdown(context.Background())
			return ctx.Err()
		case ev := <-l.events:
			l.handle(ctx, ev)
		}
	}
}

// Up requests that names (and their transitive dependencies) reach
// running. An empty names list means every declared service.
func (l *Loop) Up(names []string) { l.send(upCmd{names: names}) }

// Down requests that names be stopped. An empty names list means every
// currently wanted service.
func (l *Loop) Down(names []string) { l.send(downCmd{names: names}) }

// Restart requests a single named service restart.
func (l *Loop) Restart(name string) { l.send(restartCmd{name: name}) }

// Shutdown requests the terminal drain and blocks until it completes or
// ctx is done.
func (l *Loop) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	l.send(shutdownCmd{done: done})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current status snapshot.
func (l *Loop) Status() []ServiceStatus {
	if p := l.snapshot.Load(); p != nil {
		return *p
	}
	return nil
}

// Routes returns the current subdomain->port map, as of the latest
// mutation. Callers must not mutate the returned map.
func (l *Loop) Routes() map[string]int {
	if p := l.routes.Load(); p != nil {
		return *p
	}
	return nil
}

func (l *Loop) send(ev event) {
	select {
	case l.events <- ev:
	default:
		// queue is saturated; block rather than drop a command — commands
		// are rare compared to runner/prober/watcher traffic.
		l.events <- ev
	}
}

// handle is the sole place service phases change. It never blocks on
// child I/O: every long-running operation it starts happens on its own
// goroutine that reports back as a later event.
func (l *Loop) handle(ctx context.Context, ev event) {
	switch e := ev.(type) {
	case upCmd:
		l.handleUp(ctx, e.names)
	case downCmd:
		l.handleDown(e.names)
	case restartCmd:
		l.handleRestart(ctx, e.name)
	case shutdownCmd:
		l.runShutdown(ctx)
		close(e.done)
	case runnerExitedEvent:
		l.handleRunnerExited(ctx, e)
	case proberVerdictEvent:
		l.handleProberVerdict(e)
	case watcherChangedEvent:
		l.handleWatcherChanged(ctx, e)
	case portDiscoveredEvent:
		l.handlePortDiscovered(ctx, e)
	case stopCompleteEvent:
		l.handleStopComplete(ctx, e)
	}
}

func (l *Loop) handleUp(ctx context.Context, names []string) {
	if l.shuttingDown.Load() {
		return
	}
	for _, name := range l.transitiveClosure(names) {
		rec, ok := l.services[name]
		if !ok {
			continue
		}
		rec.wanted = true
		if rec.phase == Stopped || rec.phase == Failed {
			rec.phase = Pending
			rec.diagnostic = ""
		}
	}
	l.evaluateStarts(ctx)
}

func (l *Loop) handleDown(names []string) {
	targets := names
	if len(targets) == 0 {
		targets = l.cfg.Names()
	}
	for _, name := range targets {
		rec, ok := l.services[name]
		if !ok {
			continue
		}
		rec.wanted = false
	}
	l.evaluateStops()
}

func (l *Loop) handleRestart(ctx context.Context, name string) {
	rec, ok := l.services[name]
	if !ok {
		return
	}
	switch rec.phase {
	case Starting, Running, Unhealthy:
		if rec.stopping {
			rec.rearm = true
			return
		}
		rec.stopping = true
		rec.finalizing = true
		rec.phase = Restarting
		metrics.RecordRestart(rec.spec.Name)
		l.requestGenerationStop(rec, rec.effectiveStopTimeout())
		l.recomputeRoutes()
	case Restarting:
		rec.rearm = true
	case Stopped, Failed, Pending:
		if rec.finalizing {
			// previous generation hasn't finished tearing down yet; its
			// runnerExitedEvent will re-evaluate starts once it lands.
			rec.wanted = true
			return
		}
		rec.wanted = true
		rec.phase = Pending
		rec.diagnostic = ""
		metrics.RecordRestart(rec.spec.Name)
		l.evaluateStarts(ctx)
	}
	l.publishSnapshot()
}

// evaluateStarts advances every Pending, wanted service whose
// dependencies are all Running or Unhealthy.
func (l *Loop) evaluateStarts(ctx context.Context) {
	changed := false
	for _, name := range l.cfg.Names() {
		rec := l.services[name]
		if rec.phase != Pending || !rec.wanted || rec.finalizing {
			continue
		}
		ready := true
		blocked := ""
		for _, dep := range rec.spec.DependsOn {
			depRec, ok := l.services[dep]
			if !ok {
				continue
			}
			if depRec.phase == Failed {
				rec.diagnostic = fmt.Sprintf("%s: %s", errkind.DependencyFailed, dep)
				ready = false
				blocked = dep
				break
			}
			if depRec.phase != Running && depRec.phase != Unhealthy {
				ready = false
				blocked = dep
				break
			}
		}
		if !ready {
			if blocked != "" && rec.diagnostic == "" {
				rec.diagnostic = fmt.Sprintf("waiting on dependency %s", blocked)
			}
			continue
		}
		rec.diagnostic = ""
		l.spawnGeneration(ctx, rec)
		changed = true
	}
	if changed {
		l.publishSnapshot()
	}
}

// evaluateStops stops every live service whose dependents are all
// stopped and which is no longer wanted.
func (l *Loop) evaluateStops() {
	changed := false
	for _, name := range l.cfg.Names() {
		rec := l.services[name]
		if rec.wanted || rec.finalizing {
			continue
		}
		if !isLive(rec.phase) {
			continue
		}
		blocked := false
		for _, dependentName := range l.dependents(name) {
			dep := l.services[dependentName]
			if dep.wanted || isLive(dep.phase) {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}
		rec.stopping = true
		rec.finalizing = true
		l.requestGenerationStop(rec, rec.effectiveStopTimeout())
		changed = true
	}
	if changed {
		l.recomputeRoutes()
		l.publishSnapshot()
	}
}

func isLive(p Phase) bool {
	switch p {
	case Starting, Running, Unhealthy, Restarting:
		return true
	default:
		return false
	}
}

func (l *Loop) dependents(name string) []string {
	var out []string
	for _, spec := range l.cfg.Services {
		for _, dep := range spec.DependsOn {
			if dep == name {
				out = append(out, spec.Name)
			}
		}
	}
	sort.Strings(out)
	return out
}

// transitiveClosure expands names to include every transitive
// dependency, defaulting to every declared service when names is empty.
func (l *Loop) transitiveClosure(names []string) []string {
	if len(names) == 0 {
		return l.cfg.Names()
	}
	seen := map[string]bool{}
	var walk func(string)
	walk = func(n string) {
		if seen[n] {
			return
		}
		seen[n] = true
		rec, ok := l.services[n]
		if !ok {
			return
		}
		for _, dep := range rec.spec.DependsOn {
			walk(dep)
		}
	}
	for _, n := range names {
		walk(n)
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *serviceRecord) effectiveStopTimeout() time.Duration {
	if r.spec.StopTimeout > 0 {
		return r.spec.StopTimeout
	}
	return 0 // signals "use loop default" to requestGenerationStop's caller
}

// runShutdown stops every non-terminal service in one pass (dependency
// order is already enforced by evaluateStops being dependent-aware) and
// blocks until every generation has finished tearing down or the
// context is done. Re-entrant: calling it twice is a no-op on the
// second call.
func (l *Loop) runShutdown(ctx context.Context) {
	l.shutdownOnce.Do(func() {
		l.shuttingDown.Store(true)
		for _, rec := range l.services {
			rec.wanted = false
		}
		l.evaluateStops()
	})

	deadline := time.After(30 * time.Second)
	for {
		if l.allStopped() {
			return
		}
		select {
		case ev := <-l.events:
			l.handle(ctx, ev)
		case <-deadline:
			logging.Warn().Str("kind", string(errkind.ShutdownTimeout)).Msg("some services did not reap before the drain deadline")
			return
		}
	}
}

func (l *Loop) allStopped() bool {
	for _, rec := range l.services {
		if isLive(rec.phase) {
			return false
		}
	}
	return true
}

func (l *Loop) publishSnapshot() {
	out := make([]ServiceStatus, 0, len(l.cfg.Services))
	now := time.Now()
	for _, name := range l.cfg.Names() {
		rec := l.services[name]
		st := ServiceStatus{
			Name:       rec.spec.Name,
			Phase:      rec.phase,
			PID:        rec.pid,
			Port:       rec.port,
			Subdomain:  rec.spec.Subdomain,
			Generation: rec.generation,
			Diagnostic: rec.diagnostic,
			LastExit:   rec.lastExit,
			Labels:     rec.spec.Labels,
		}
		if rec.phase == Running || rec.phase == Unhealthy {
			secs := now.Sub(rec.startedAt).Seconds()
			st.UptimeSecs = &secs
		}
		if rec.restartedAt != nil {
			st.RestartedAt = rec.restartedAt
		}
		out = append(out, st)

		metrics.SetServiceState(rec.spec.Name, string(rec.phase))
		metrics.SetGeneration(rec.spec.Name, rec.generation)
	}
	l.snapshot.Store(&out)
}

func (l *Loop) recomputeRoutes() {
	routes := make(map[string]int)
	for _, rec := range l.services {
		if rec.spec.Subdomain == "" || rec.port == 0 {
			continue
		}
		if rec.phase.Routable() {
			routes[rec.spec.Subdomain] = rec.port
		}
	}
	l.routes.Store(&routes)
}
