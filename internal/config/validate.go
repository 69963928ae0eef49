package config

import "fmt"

// Validate checks the loaded Config for the structural problems the
// supervisor refuses to run with: duplicate service names, unknown
// dependency references, dependency cycles, non-positive health
// interval/timeout values, and negative debounce values (zero selects the
// default). Every diagnostic names the offending
// service so a user can find it in their config file.
func (c *Config) Validate() error {
	if err := c.validateNames(); err != nil {
		return err
	}
	if err := c.validateDependencies(); err != nil {
		return err
	}
	if err := c.validateCycles(); err != nil {
		return err
	}
	if err := c.validateTimings(); err != nil {
		return err
	}
	return c.validateDev()
}

func (c *Config) validateNames() error {
	seen := make(map[string]bool, len(c.Services))
	for _, s := range c.Services {
		if s.Name == "" {
			return fmt.Errorf("service has an empty name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate service name %q", s.Name)
		}
		seen[s.Name] = true
		if s.Command == "" {
			return fmt.Errorf("service %q: command is required", s.Name)
		}
	}
	return nil
}

func (c *Config) validateDependencies() error {
	names := make(map[string]bool, len(c.Services))
	for _, s := range c.Services {
		names[s.Name] = true
	}
	for _, s := range c.Services {
		for _, dep := range s.DependsOn {
			if !names[dep] {
				return fmt.Errorf("service %q: unknown dependency %q", s.Name, dep)
			}
			if dep == s.Name {
				return fmt.Errorf("service %q: depends on itself", s.Name)
			}
		}
	}
	return nil
}

// validateCycles runs a DFS over the dependency graph, coloring each node
// white/gray/black, rejecting the config the moment a gray node is
// revisited (a back edge, i.e. a cycle).
func (c *Config) validateCycles() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(c.Services))
	byName := make(map[string]ServiceSpec, len(c.Services))
	for _, s := range c.Services {
		byName[s.Name] = s
	}

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch color[name] {
		case gray:
			return fmt.Errorf("dependency cycle detected: %s -> %s", joinPath(path), name)
		case black:
			return nil
		}
		color[name] = gray
		for _, dep := range byName[name].DependsOn {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}

	for _, s := range c.Services {
		if color[s.Name] == white {
			if err := visit(s.Name, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += " -> "
		}
		out += p
	}
	return out
}

func (c *Config) validateTimings() error {
	for _, s := range c.Services {
		if s.Port < 0 {
			return fmt.Errorf("service %q: port must be >= 0, got %d", s.Name, s.Port)
		}
		if s.StopTimeout < 0 {
			return fmt.Errorf("service %q: stop_timeout must be >= 0", s.Name)
		}
		if s.Watch != nil && s.Watch.Debounce < 0 {
			return fmt.Errorf("service %q: watch.debounce must be >= 0", s.Name)
		}
		if h := s.Health; h != nil {
			if h.Kind != HealthHTTP && h.Kind != HealthTCP {
				return fmt.Errorf("service %q: health.type must be %q or %q, got %q", s.Name, HealthHTTP, HealthTCP, h.Kind)
			}
			if h.Interval <= 0 {
				return fmt.Errorf("service %q: health.interval must be positive", s.Name)
			}
			if h.Timeout <= 0 {
				return fmt.Errorf("service %q: health.timeout must be positive", s.Name)
			}
			if h.Retries <= 0 {
				return fmt.Errorf("service %q: health.retries must be positive", s.Name)
			}
			if h.Kind == HealthHTTP && h.Path == "" {
				return fmt.Errorf("service %q: health.path is required for type=http", s.Name)
			}
		}
	}
	return nil
}

func (c *Config) validateDev() error {
	if c.Dev.ProxyPort <= 0 {
		return fmt.Errorf("dev.proxy_port must be positive, got %d", c.Dev.ProxyPort)
	}
	if c.Dev.UIPort <= 0 {
		return fmt.Errorf("dev.ui_port must be positive, got %d", c.Dev.UIPort)
	}
	if c.Dev.ProxyPort == c.Dev.UIPort {
		return fmt.Errorf("dev.proxy_port and dev.ui_port must differ, both are %d", c.Dev.ProxyPort)
	}
	if c.Dev.StopTimeout <= 0 {
		return fmt.Errorf("dev.stop_timeout must be positive")
	}
	if c.Dev.RingSize <= 0 {
		return fmt.Errorf("dev.ring_size must be positive, got %d", c.Dev.RingSize)
	}
	return nil
}
