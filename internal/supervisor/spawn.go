package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/a3s-lab/dev/internal/config"
	"github.com/a3s-lab/dev/internal/health"
	"github.com/a3s-lab/dev/internal/metrics"
	"github.com/a3s-lab/dev/internal/runner"
	"github.com/a3s-lab/dev/internal/supervisor/errkind"
	"github.com/a3s-lab/dev/internal/watcher"
)

// spawnGeneration starts a new generation for rec: launches the runner,
// a reaper goroutine that is the sole consumer of its Exited() channel,
// a health prober, and — if the service declares watched paths — a file
// watcher. Every task forwards its output onto l.events tagged with
// rec.spec.Name and this generation's number, so stale events from a
// superseded generation are cheap to discard in handle().
func (l *Loop) spawnGeneration(ctx context.Context, rec *serviceRecord) {
	rec.generation++
	gen := rec.generation
	rec.phase = Starting
	rec.stopping = false
	rec.rearm = false
	rec.diagnostic = ""
	rec.lastExit = ""

	genCtx, cancel := context.WithCancel(ctx)
	rec.cancel = cancel
	rec.stopCh = make(chan time.Duration, 1)

	rnr := runner.New(rec.spec, l.bus)
	rec.rnr = rnr

	if err := rnr.Start(); err != nil {
		rec.phase = Failed
		rec.diagnostic = fmt.Sprintf("%s: %s", errkind.SpawnFailed, err)
		rec.lastExit = err.Error()
		cancel()
		return
	}
	rec.pid = rnr.PID()
	rec.startedAt = time.Now()

	go l.reapGeneration(genCtx, rec.spec.Name, gen, rnr, rec.stopCh)

	if rec.spec.Port != 0 {
		rec.port = rec.spec.Port
		go l.runProber(genCtx, rec.spec.Name, gen, rec.spec.Port, rec.spec.Health)
		l.maybeStartWatcher(genCtx, rec, gen)
	} else {
		go l.discoverThenProbe(genCtx, rec.spec.Name, gen, rec.pid, rec.spec.Health)
	}
}

// reapGeneration is the single goroutine allowed to read rnr.Exited()
// for this generation. It also owns the grace/kill race when a stop is
// requested, via Runner's non-blocking RequestStop/ForceKill, so no
// second reader of Exited() is ever needed.
func (l *Loop) reapGeneration(ctx context.Context, name string, gen uint64, rnr *runner.Runner, stopCh <-chan time.Duration) {
	select {
	case result := <-rnr.Exited():
		l.send(runnerExitedEvent{name: name, gen: gen, result: result})
		return
	case grace := <-stopCh:
		_ = rnr.RequestStop()
		select {
		case result := <-rnr.Exited():
			l.send(runnerExitedEvent{name: name, gen: gen, result: result})
		case <-time.After(grace):
			_ = rnr.ForceKill()
			result := <-rnr.Exited()
			l.send(runnerExitedEvent{name: name, gen: gen, result: result})
		}
	}
}

// discoverThenProbe is used for ephemeral-port services (declared port
// 0): it blocks on discoverPort before the prober can start, then
// forwards both a portDiscoveredEvent and, on success, starts the
// prober itself.
func (l *Loop) discoverThenProbe(ctx context.Context, name string, gen uint64, pid int, healthSpec *config.HealthSpec) {
	port, err := discoverPort(ctx, pid)
	l.send(portDiscoveredEvent{name: name, gen: gen, port: port, err: err})
	if err != nil {
		return
	}
	l.runProber(ctx, name, gen, port, healthSpec)
}

func (l *Loop) runProber(ctx context.Context, name string, gen uint64, port int, healthSpec *config.HealthSpec) {
	p := health.New(name, port, healthSpec)
	go p.Run(ctx)
	for ev := range p.Events() {
		l.send(proberVerdictEvent{name: name, gen: gen, ev: ev})
	}
}

// maybeStartWatcher starts rec's file watcher goroutine, if the service
// declares one.
func (l *Loop) maybeStartWatcher(ctx context.Context, rec *serviceRecord, gen uint64) {
	ws := rec.spec.Watch
	if ws == nil || len(ws.Paths) == 0 || !ws.Restart {
		return
	}
	w := watcher.New(rec.spec.Name, ws.Paths, ws.Ignore, ws.Debounce)
	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			return
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-w.Changed():
				if !ok {
					return
				}
				l.send(watcherChangedEvent{name: rec.spec.Name, gen: gen})
			}
		}
	}()
}

// requestGenerationStop asks the current generation's reaper to begin
// tearing down the child, using grace (or the loop default if zero).
// Safe to call at most once per generation; the reaper's stopCh is
// buffered 1 and never read twice.
func (l *Loop) requestGenerationStop(rec *serviceRecord, grace time.Duration) {
	if grace <= 0 {
		grace = l.defaultStop
	}
	if rec.stopCh == nil {
		return
	}
	select {
	case rec.stopCh <- grace:
	default:
	}
}

func (l *Loop) handleRunnerExited(ctx context.Context, e runnerExitedEvent) {
	rec, ok := l.services[e.name]
	if !ok || e.gen != rec.generation {
		return
	}
	if rec.cancel != nil {
		rec.cancel()
	}
	rec.pid = 0
	rec.lastExit = exitSummary(e.result)

	wasDeliberate := rec.stopping
	rearm := rec.rearm
	failReason := rec.failReason
	rec.stopping = false
	rec.rearm = false
	rec.failReason = ""
	rec.finalizing = false

	switch {
	case failReason != "":
		rec.phase = Failed
		rec.diagnostic = failReason
	case wasDeliberate:
		rec.phase = Stopped
		if !rec.wanted {
			rec.port = 0
		}
	case !e.result.Normal():
		rec.phase = Failed
		rec.diagnostic = fmt.Sprintf("%s: %s", errkind.UnexpectedExit, rec.lastExit)
	default:
		rec.phase = Stopped
	}

	l.recomputeRoutes()

	if rearm && rec.wanted {
		rec.phase = Pending
		now := time.Now()
		rec.restartedAt = &now
		rec.diagnostic = ""
	}

	l.evaluateStarts(ctx)
	l.evaluateStops()
	l.publishSnapshot()
}

func (l *Loop) handleProberVerdict(e proberVerdictEvent) {
	rec, ok := l.services[e.name]
	if !ok || e.gen != rec.generation {
		return
	}
	metrics.RecordProbeOutcome(e.name, e.ev.Verdict.String())
	switch e.ev.Verdict {
	case health.Healthy:
		if rec.phase == Starting || rec.phase == Unhealthy {
			rec.phase = Running
			rec.diagnostic = ""
		}
	case health.Unhealthy:
		if rec.phase == Running || rec.phase == Starting {
			rec.phase = Unhealthy
			rec.diagnostic = e.ev.Reason
		}
	case health.GaveUp:
		rec.phase = Failed
		rec.diagnostic = fmt.Sprintf("%s: %s", errkind.GaveUp, e.ev.Reason)
		if rec.stopCh != nil && rec.failReason == "" {
			rec.failReason = rec.diagnostic
			rec.finalizing = true
			l.requestGenerationStop(rec, rec.effectiveStopTimeout())
		}
	}
	l.recomputeRoutes()
	l.publishSnapshot()
}

func (l *Loop) handleWatcherChanged(ctx context.Context, e watcherChangedEvent) {
	rec, ok := l.services[e.name]
	if !ok || e.gen != rec.generation {
		return
	}
	l.handleRestart(ctx, rec.spec.Name)
}

func (l *Loop) handlePortDiscovered(ctx context.Context, e portDiscoveredEvent) {
	rec, ok := l.services[e.name]
	if !ok || e.gen != rec.generation {
		return
	}
	if e.err != nil {
		rec.phase = Failed
		rec.diagnostic = e.err.Error()
		if rec.stopCh != nil && rec.failReason == "" {
			rec.failReason = rec.diagnostic
			rec.finalizing = true
			l.requestGenerationStop(rec, rec.effectiveStopTimeout())
		}
		l.publishSnapshot()
		return
	}
	rec.port = e.port
	l.maybeStartWatcher(ctx, rec, e.gen)
	l.recomputeRoutes()
	l.publishSnapshot()
}

// handleStopComplete is currently unused by spawnGeneration/reapGeneration
// directly — runnerExitedEvent already carries generation teardown to
// completion — but is kept as an extension point for a future explicit
// "child reaped, resources released" signal distinct from the exit result
// itself (e.g. once log-bus draining is tracked independently of process
// exit).
func (l *Loop) handleStopComplete(ctx context.Context, e stopCompleteEvent) {
	_ = ctx
	_ = e
}

func exitSummary(r runner.ExitResult) string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.Signal != "":
		return fmt.Sprintf("signal: %s", r.Signal)
	default:
		return fmt.Sprintf("exit code %d", r.Code)
	}
}
