// Package config holds the validated, immutable model the supervisor is
// built from: the declared services, global dev options, and proxy/UI
// ports. It is produced once per process lifetime by Load, adjusted only by
// the CLI's flag overrides before startup, and not mutated after that — the
// supervisor copies out of it at startup and then
// owns its own mutable service table.
package config

import "time"

// HealthKind selects the probe strategy for a service's health spec.
type HealthKind string

const (
	HealthHTTP HealthKind = "http"
	HealthTCP  HealthKind = "tcp"
)

// HealthSpec configures the health prober for one service. A nil
// *HealthSpec on a ServiceSpec means "no health checking" — the prober
// reports healthy immediately on spawn.
type HealthSpec struct {
	Kind     HealthKind    `koanf:"type"`
	Path     string        `koanf:"path"`
	Interval time.Duration `koanf:"interval"`
	Timeout  time.Duration `koanf:"timeout"`
	Retries  int           `koanf:"retries"`
}

// WatchSpec configures the file watcher for one service. A nil
// *WatchSpec means the service has no watched paths.
type WatchSpec struct {
	Paths   []string `koanf:"paths"`
	Ignore  []string `koanf:"ignore"`
	Restart bool     `koanf:"restart"`
	// Debounce is the quiet period required before a burst of filesystem
	// events collapses into a single changed signal. Zero means use the
	// package default (300ms).
	Debounce time.Duration `koanf:"debounce"`
}

// ServiceSpec is the immutable declaration of one supervised service.
// Field names mirror the project's `A3sfile.hcl` vocabulary.
type ServiceSpec struct {
	// Name uniquely identifies the service across the whole config.
	Name string `koanf:"name"`
	// Command is run through a shell (`sh -c <Command>`).
	Command string `koanf:"command"`
	// Dir is the working directory, resolved relative to the config file.
	Dir string `koanf:"dir"`
	// Port is the declared listen port; 0 means "ephemeral, discover it".
	Port int `koanf:"port"`
	// Subdomain is the optional Host label the proxy routes to this
	// service. Empty means the service is not reachable through the proxy.
	Subdomain string `koanf:"subdomain"`
	// DependsOn lists the names of services that must be running before
	// this one is allowed to leave `pending`.
	DependsOn []string `koanf:"depends_on"`
	// Env overlays the parent process environment; overlay wins on key
	// collision.
	Env map[string]string `koanf:"env"`
	// Watch is nil when the service has no watched source tree.
	Watch *WatchSpec `koanf:"watch"`
	// Health is nil when the service has no health spec.
	Health *HealthSpec `koanf:"health"`
	// Labels is free-form metadata surfaced in status for UI grouping; it
	// has no effect on supervisor behavior.
	Labels map[string]string `koanf:"labels"`
	// StopTimeout overrides the global stop grace for this service. Zero
	// means "use dev.stop_timeout".
	StopTimeout time.Duration `koanf:"stop_timeout"`
}

// DevOptions holds process-wide knobs that are not per-service.
type DevOptions struct {
	// ProxyPort is the L7 proxy's listen port.
	ProxyPort int `koanf:"proxy_port"`
	// UIPort is the control API / embedded UI's listen port.
	UIPort int `koanf:"ui_port"`
	// StopTimeout is the default grace window between a soft stop signal
	// and an unconditional kill.
	StopTimeout time.Duration `koanf:"stop_timeout"`
	// RingSize is the number of log lines retained per service.
	RingSize int `koanf:"ring_size"`
	// NoUI disables serving the embedded static UI bundle from the
	// control API's `/` route.
	NoUI bool `koanf:"no_ui"`
}

// LoggingConfig mirrors logging.Config's shape so it can be populated by
// the same layered loader before logging.Init is called.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Config is the fully loaded and validated orchestrator configuration.
type Config struct {
	Services []ServiceSpec `koanf:"services"`
	Dev      DevOptions    `koanf:"dev"`
	Logging  LoggingConfig `koanf:"logging"`
}

// ByName returns the ServiceSpec with the given name, and whether it was
// found.
func (c *Config) ByName(name string) (ServiceSpec, bool) {
	for _, s := range c.Services {
		if s.Name == name {
			return s, true
		}
	}
	return ServiceSpec{}, false
}

// Names returns the names of every declared service, in declaration order.
func (c *Config) Names() []string {
	names := make([]string, len(c.Services))
	for i, s := range c.Services {
		names[i] = s.Name
	}
	return names
}
