package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/agentbroker/pkg/config"
	"github.com/cuemby/agentbroker/pkg/dispatcher"
	"github.com/cuemby/agentbroker/pkg/events"
	"github.com/cuemby/agentbroker/pkg/fanout"
	"github.com/cuemby/agentbroker/pkg/log"
	"github.com/cuemby/agentbroker/pkg/metrics"
	"github.com/cuemby/agentbroker/pkg/registry"
	"github.com/cuemby/agentbroker/pkg/rpc"
	brokersignal "github.com/cuemby/agentbroker/pkg/signal"
	"github.com/cuemby/agentbroker/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the broker, reading JSON-RPC tool calls from stdin",
	Long: `serve starts the broker's full request lifecycle: it loads
configuration, starts the live dashboard (unless disabled), and reads
line-delimited JSON-RPC requests from stdin until stdin closes or a
shutdown signal is handled.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("dashboard-host", "", "override the dashboard bind host")
	serveCmd.Flags().Int("dashboard-port", 0, "override the dashboard bind port (0 = ephemeral)")
	serveCmd.Flags().Bool("no-dashboard", false, "disable the live dashboard and metrics endpoint")
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if host, _ := cmd.Flags().GetString("dashboard-host"); host != "" {
		cfg.DashboardHost = host
	}
	if port, _ := cmd.Flags().GetInt("dashboard-port"); port != 0 {
		cfg.DashboardPort = port
	}
	if disable, _ := cmd.Flags().GetBool("no-dashboard"); disable {
		cfg.DashboardEnabled = false
	}

	logger := log.WithComponent("main")

	reg := registry.New()

	var server *events.Server
	var bus *events.Bus
	if cfg.DashboardEnabled {
		server = events.NewServer(events.ServerConfig{
			Host:  cfg.DashboardHost,
			Port:  cfg.DashboardPort,
			Title: "Agent Broker",
		})
		server.Mux().Handle("/metrics", metrics.Handler())

		url, err := server.Start()
		if err != nil {
			return fmt.Errorf("start dashboard: %w", err)
		}
		bus = server.Bus()
		logger.Info().Str("url", url).Msg("dashboard started")
	}

	disp, err := dispatcher.New(cfg, reg, bus)
	if err != nil {
		return fmt.Errorf("build dispatcher: %w", err)
	}

	var allowed []types.AgentKind
	for _, kind := range types.AgentKinds() {
		if cfg.IsToolAllowed(kind) {
			allowed = append(allowed, kind)
		}
	}
	fan, err := fanout.New(bus, allowed)
	if err != nil {
		return fmt.Errorf("build fanout coordinator: %w", err)
	}

	b := &broker{
		dispatcher: disp,
		fanout:     fan,
		dashboard: func() (string, bool) {
			if server == nil {
				return "", false
			}
			return server.URL(), true
		},
	}

	mgr := brokersignal.New(cfg.SigintMode, cfg.DoubleTapWindow, reg)
	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGTERM:
				mgr.HandleTerminate()
			default:
				mgr.HandleInterrupt()
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-mgr.ShutdownRequested()
		logger.Warn().Msg("shutdown requested")
		cancel()
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- rpc.Serve(ctx, os.Stdin, os.Stdout, b)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("rpc loop exited with error")
		}
	case <-ctx.Done():
	}

	if server != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		if err := server.Stop(stopCtx); err != nil {
			logger.Warn().Err(err).Msg("dashboard shutdown error")
		}
	}

	if mgr.IsForceExit() {
		os.Exit(128 + int(syscall.SIGINT))
	}
	return nil
}
