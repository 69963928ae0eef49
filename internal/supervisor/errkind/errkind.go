// Package errkind names the closed set of error kinds the supervisor
// distinguishes when it decides the user-visible consequence of a
// failure. Components never switch on Go error types or identity; they
// tag an event with one of these kinds and the supervisor loop is the
// sole authority on what happens next.
package errkind

// Kind is a closed string enum. Values outside this set are never
// produced by this module; the type exists for documentation and
// exhaustive-switch discipline, not runtime validation.
type Kind string

const (
	// ConfigInvalid is returned by the config loader. Fatal for the
	// session — the process never reaches the supervisor loop.
	ConfigInvalid Kind = "config-invalid"

	// SpawnFailed means the runner could not launch the child at all
	// (bad working directory, shell error). The service enters failed.
	SpawnFailed Kind = "spawn-failed"

	// ProbeTimeout, ProbeRefused, and ProbeBadStatus are transient
	// health-probe outcomes that contribute to the retry counter.
	// Crossing the retry limit promotes to GaveUp.
	ProbeTimeout   Kind = "probe-timeout"
	ProbeRefused   Kind = "probe-refused"
	ProbeBadStatus Kind = "probe-bad-status"

	// GaveUp marks the retry limit crossed: fatal for the generation,
	// not for the process.
	GaveUp Kind = "gave-up"

	// UnexpectedExit means the child exited while the supervisor
	// expected it to be running. The service enters failed; the exit
	// code or signal is recorded and surfaced via status and logs.
	UnexpectedExit Kind = "unexpected-exit"

	// DependencyFailed blocks a pending service from progressing.
	DependencyFailed Kind = "dependency-failed"

	// ShutdownTimeout means the stop grace was exceeded and the child
	// was hard-killed. Logged, not fatal.
	ShutdownTimeout Kind = "shutdown-timeout"

	// RouteMiss is a proxy request for a subdomain with no routable
	// service. Surfaced as HTTP 404, never as a process-level failure.
	RouteMiss Kind = "route-miss"
)

// Fatal reports whether kind aborts the whole process rather than just
// the one service or request it's attached to. Only ConfigInvalid does;
// everything else is contained by the supervisor loop's per-service
// state machine or the control API's per-request error response.
func (k Kind) Fatal() bool {
	return k == ConfigInvalid
}

// String satisfies fmt.Stringer.
func (k Kind) String() string { return string(k) }
