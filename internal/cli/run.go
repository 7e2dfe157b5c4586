package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/localstackws/wsgateway/internal/config"
	"github.com/localstackws/wsgateway/internal/dashboard"
	"github.com/localstackws/wsgateway/internal/gatewaysvc"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [config-file]",
		Short: "Start the gateway (default when no subcommand is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRun,
	}
	cmd.Flags().Bool("dashboard", false, "show a live terminal dashboard instead of plain logs")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	configPath := resolveConfigPath(cmd, args, "wsgateway.json")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("error: %w", err)
	}

	logLevel := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	showDashboard, _ := cmd.Flags().GetBool("dashboard")

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	var ring *dashboard.RingHandler
	if showDashboard {
		ring = dashboard.NewRingHandler(nil, 512)
		handler = ring
	}
	logger := slog.New(handler)

	gw := gatewaysvc.New(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	runErrCh := make(chan error, 1)
	go func() {
		logger.Info("gateway starting", "version", version, "config", configPath)
		runErrCh <- gw.Run(ctx)
	}()

	if showDashboard {
		if err := dashboard.RunInline(gw.Port(), gw.Stage(), gw.Manager(), ring); err != nil {
			logger.Warn("dashboard exited", "error", err)
		}
		cancel()
	}

	if err := <-runErrCh; err != nil && err != context.Canceled {
		logger.Error("gateway error", "error", err)
		os.Exit(1)
	}

	logger.Info("gateway stopped")
	return nil
}
