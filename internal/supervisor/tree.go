package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds outer resilience tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns production-ready defaults, matching suture's
// own built-in defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// ResilienceTree is the outer suture.Supervisor tree the orchestrator
// runs under. It does not know about services, runners, or the state
// machine — those live in the supervisor loop (Loop), which is itself
// one suture.Service added to the core layer. This tree exists only to
// give each long-running task (the loop, the proxy listener, the
// control API server, the log bus) independent crash isolation and
// restart-with-backoff, per the spec's "no process exits without a
// graceful shutdown attempt" testable property.
//
// The tree is organized into two layers:
//   - core: the supervisor loop and log bus — must stay up for the
//     process table to mean anything.
//   - edge: the proxy listener and control API server — can restart
//     independently without disturbing supervised child processes.
type ResilienceTree struct {
	root   *suture.Supervisor
	core   *suture.Supervisor
	edge   *suture.Supervisor
	logger *slog.Logger
	config TreeConfig
}

// NewResilienceTree creates a new resilience tree with the given
// configuration.
func NewResilienceTree(logger *slog.Logger, config TreeConfig) (*ResilienceTree, error) {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logger}
	eventHook := handler.MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("a3s", rootSpec)
	core := suture.New("core-layer", childSpec)
	edge := suture.New("edge-layer", childSpec)

	root.Add(core)
	root.Add(edge)

	return &ResilienceTree{
		root:   root,
		core:   core,
		edge:   edge,
		logger: logger,
		config: config,
	}, nil
}

// Root returns the root supervisor for direct access if needed.
func (t *ResilienceTree) Root() *suture.Supervisor {
	return t.root
}

// AddCoreService adds a service to the core layer supervisor. Use this
// for the supervisor loop and log bus.
func (t *ResilienceTree) AddCoreService(svc suture.Service) suture.ServiceToken {
	return t.core.Add(svc)
}

// AddEdgeService adds a service to the edge layer supervisor. Use this
// for the proxy listener and control API server.
func (t *ResilienceTree) AddEdgeService(svc suture.Service) suture.ServiceToken {
	return t.edge.Add(svc)
}

// Serve starts the resilience tree and blocks until the context is
// canceled.
func (t *ResilienceTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the tree in a background goroutine. Returns a
// channel that receives the error (or nil) when the tree stops.
func (t *ResilienceTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport returns information about services that failed
// to stop within the configured shutdown timeout.
func (t *ResilienceTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
