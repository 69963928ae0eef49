package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// confmapProvider adapts a plain map[string]interface{} into a koanf
// Provider so FromMap can reuse the same Load/Unmarshal/Validate pipeline
// as the file-backed path.
func confmapProvider(doc map[string]interface{}) koanf.Provider {
	return confmap.Provider(doc, ".")
}

// DefaultConfigPaths lists the paths searched for a project config in
// order of priority. The first file found is used. `A3sfile.hcl` is the
// real front door (parsed by an external collaborator into this same
// shape); `.a3s.yaml`/`.a3s.yml` are the native layered-document formats
// this loader reads directly.
var DefaultConfigPaths = []string{
	".a3s.yaml",
	".a3s.yml",
	"a3sfile.yaml",
}

// ConfigPathEnvVar overrides the config file search with an explicit path.
const ConfigPathEnvVar = "A3S_CONFIG_PATH"

// defaultConfig returns a Config with every field at its documented
// default. Defaults are applied first, then overridden by the config file
// and finally by environment variables.
func defaultConfig() *Config {
	return &Config{
		Services: nil,
		Dev: DevOptions{
			ProxyPort:   7080,
			UIPort:      10350,
			StopTimeout: 5 * time.Second,
			RingSize:    500,
			NoUI:        false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load reads the layered configuration document: built-in defaults, then
// the file at path (or the first of DefaultConfigPaths/ConfigPathEnvVar
// if path is empty), then A3S_-prefixed environment variable overrides.
// The returned Config has already passed Validate.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	resolved := path
	if resolved == "" {
		resolved = findConfigFile()
	}
	if resolved != "" {
		if err := k.Load(file.Provider(resolved), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", resolved, err)
		}
	}

	envProvider := env.Provider("A3S_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// FromMap builds a Config directly from an already-decoded document,
// skipping the file/env layering entirely. This is the seam a real
// `A3sfile.hcl` front end plugs into: parse the HCL into a
// map[string]interface{} with the same shape as the YAML documents this
// loader accepts, then hand it here instead of going through Load.
func FromMap(doc map[string]interface{}) (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(confmapProvider(doc), nil); err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps A3S_-prefixed environment variable names to koanf
// config paths, e.g. A3S_DEV_PROXY_PORT -> dev.proxy_port.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "A3S_"))
	return strings.Replace(key, "_", ".", 1)
}

// WatchConfigFile sets up a file watcher for hot-reload of the config
// document itself (distinct from internal/watcher, which watches service
// source trees). The caller is responsible for re-running Load and
// swapping in the result under its own mutex.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
