/*
Package supervisor owns the orchestrator's service table and the outer
resilience tree both live under.

# Two distinct responsibilities

This package contains two things that share a name but not a mechanism:

  - ResilienceTree (tree.go): a suture.Supervisor tree giving the
    long-running process-level tasks (the supervisor loop itself, the
    log bus, the proxy listener, the control API server) independent
    crash isolation and restart-with-backoff. It restarts a crashed task
    wholesale; it has no notion of individual declared services.

  - Loop (loop.go): the single-owner event loop that actually drives
    each declared service through its state machine (pending, starting,
    running, restarting, unhealthy, failed, stopped), coordinating one
    runner, one prober, and one watcher per service. This is hand-rolled
    rather than delegated to suture, because suture's restart-a-crashed-
    Service model has no notion of a multi-phase per-service state
    machine, dependency ordering, or debounced restart coalescing.

The tree supervises the loop; the loop does not supervise anything via
suture.

# Resilience tree layers

	RootSupervisor ("a3s")
	├── CoreSupervisor ("core-layer")
	│   ├── supervisor loop
	│   └── log bus
	└── EdgeSupervisor ("edge-layer")
	    ├── proxy listener
	    └── control API server

A crash in the edge layer (say, the proxy listener panics on a malformed
request) does not take down the supervisor loop or the log bus; a crash
in the core layer is isolated from the edge layer the same way.

# Usage Example

	logger := slog.Default()
	config := supervisor.DefaultTreeConfig()

	tree, err := supervisor.NewResilienceTree(logger, config)
	if err != nil {
	    log.Fatal(err)
	}

	tree.AddCoreService(loop)
	tree.AddCoreService(bus)
	tree.AddEdgeService(services.NewHTTPServerService(proxyServer, 10*time.Second))
	tree.AddEdgeService(services.NewHTTPServerService(apiServer, 10*time.Second))

	if err := tree.Serve(ctx); err != nil {
	    log.Printf("tree stopped: %v", err)
	}

# Configuration

	config := supervisor.TreeConfig{
	    FailureThreshold: 5.0,             // Failures before backoff
	    FailureDecay:     30.0,            // Seconds for failures to decay
	    FailureBackoff:   15 * time.Second, // Backoff duration
	    ShutdownTimeout:  10 * time.Second, // Per-service shutdown timeout
	}

Default values match suture's own built-in defaults.

# Debugging Shutdown Issues

	report, err := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    log.Printf("service didn't stop: %v", svc)
	}

# See Also

  - internal/supervisor/services: suture.Service wrappers for *http.Server
  - github.com/thejerf/suture/v4: underlying supervision library
*/
package supervisor
