package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/a3s-lab/dev/internal/config"
)

// exitError carries the process exit code spec.md §6 assigns to a
// failure class: 1 for a bad config, 2 for a supervisor-fatal error.
// SIGINT's 130 is handled directly in up's RunE, not through this path.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func exitCodeFor(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

var configPath string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "a3s",
		Short:         "a3s runs and proxies a project's declared local services",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the project config file (default: search .a3s.yaml, .a3s.yml, a3sfile.yaml)")

	root.AddCommand(newUpCommand())
	root.AddCommand(newDownCommand())
	root.AddCommand(newRestartCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newLogsCommand())
	root.AddCommand(newValidateCommand())
	return root
}

// loadConfig loads and validates the project config, wrapping any
// failure as a config-invalid exit-1 error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, withExitCode(1, fmt.Errorf("config: %w", err))
	}
	return cfg, nil
}

// apiBase returns the control API's base URL for the loaded config.
func apiBase(cfg *config.Config) string {
	return fmt.Sprintf("http://127.0.0.1:%d", cfg.Dev.UIPort)
}
