package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/a3s-lab/dev/internal/api"
	"github.com/a3s-lab/dev/internal/config"
	"github.com/a3s-lab/dev/internal/logbus"
	"github.com/a3s-lab/dev/internal/logging"
	"github.com/a3s-lab/dev/internal/proxy"
	"github.com/a3s-lab/dev/internal/supervisor"
	"github.com/a3s-lab/dev/internal/supervisor/services"
)

func newUpCommand() *cobra.Command {
	var detach, noUI bool
	var uiPort int

	cmd := &cobra.Command{
		Use:   "up [names...]",
		Short: "Start declared services, the reverse proxy, and the control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if noUI {
				cfg.Dev.NoUI = true
			}
			if uiPort != 0 {
				cfg.Dev.UIPort = uiPort
			}
			if detach {
				// --detach is a documented no-op: the PID-file/log-redirect
				// behavior belongs to the launcher collaborator, out of
				// scope for this module.
				logging.Warn().Msg("--detach is a no-op in this build; running in the foreground")
			}
			return runUp(cfg, args)
		},
	}
	cmd.Flags().BoolVar(&detach, "detach", false, "documented no-op (launcher collaborator out of scope)")
	cmd.Flags().BoolVar(&noUI, "no-ui", false, "disable the embedded static dashboard")
	cmd.Flags().IntVar(&uiPort, "ui-port", 0, "override the control API/UI port")
	return cmd
}

func runUp(cfg *config.Config, names []string) error {
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("a3s starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewResilienceTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return withExitCode(2, fmt.Errorf("supervisor: %w", err))
	}

	bus := logbus.New(cfg.Dev.RingSize)
	loop := supervisor.NewLoop(cfg, bus)

	tree.AddCoreService(bus)
	tree.AddCoreService(loop)

	proxySrv := proxy.NewServer(fmt.Sprintf(":%d", cfg.Dev.ProxyPort), proxy.New(loop))
	proxySvc := services.NewHTTPServerService(proxySrv, cfg.Dev.StopTimeout)
	proxySvc.SetName("proxy")
	tree.AddEdgeService(proxySvc)

	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Dev.UIPort),
		Handler:           api.NewRouter(loop, bus, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	apiSvc := services.NewHTTPServerService(apiSrv, cfg.Dev.StopTimeout)
	apiSvc.SetName("control-api")
	tree.AddEdgeService(apiSvc)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	interrupted := make(chan struct{})
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		close(interrupted)
		cancel()
	}()

	logging.Info().Int("proxy_port", cfg.Dev.ProxyPort).Int("ui_port", cfg.Dev.UIPort).Msg("control plane listening")
	errCh := tree.ServeBackground(ctx)

	loop.Up(names)

	treeErr := <-errCh

	select {
	case <-interrupted:
		logging.Info().Msg("shutdown complete")
		os.Exit(130)
	default:
	}

	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		return withExitCode(2, fmt.Errorf("supervisor: %w", treeErr))
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop within the shutdown timeout")
		}
	}

	logging.Info().Msg("shutdown complete")
	return nil
}
