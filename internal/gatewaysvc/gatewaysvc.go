// Package gatewaysvc is the main orchestrator tying the gateway's config,
// session manager, and management API together behind one listener.
package gatewaysvc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/localstackws/wsgateway/internal/config"
	"github.com/localstackws/wsgateway/internal/dispatch"
	"github.com/localstackws/wsgateway/internal/mgmtapi"
	"github.com/localstackws/wsgateway/internal/session"
)

// Gateway is the main gateway process.
type Gateway struct {
	cfg     *config.Config
	manager *session.Manager
	logger  *slog.Logger
}

// New creates a new gateway from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Gateway {
	d := dispatch.New(cfg, logger)
	manager := session.NewManager(cfg, d, logger)

	return &Gateway{
		cfg:     cfg,
		manager: manager,
		logger:  logger.With("component", "gateway"),
	}
}

// Manager exposes the session manager, e.g. for the dashboard to poll directly.
func (g *Gateway) Manager() *session.Manager {
	return g.manager
}

// Port returns the configured listen port.
func (g *Gateway) Port() int { return g.cfg.Server.Port }

// Stage returns the configured stage name.
func (g *Gateway) Stage() string { return g.cfg.Server.Stage }

// Run starts the gateway's HTTP/WebSocket listener and blocks until the
// context is canceled.
func (g *Gateway) Run(ctx context.Context) error {
	identity := mgmtapi.Identity{Port: g.cfg.Server.Port, Stage: g.cfg.Server.Stage}
	mux := mgmtapi.NewMux(g.manager, g.manager.HandleWebSocket, identity, g.logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", g.cfg.Server.Port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("gateway listening", "port", g.cfg.Server.Port, "stage", g.cfg.Server.Stage)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		g.logger.Info("shutting down gateway gracefully")

		g.manager.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			g.logger.Warn("graceful shutdown failed, forcing close", "error", err)
			_ = srv.Close()
		} else {
			g.logger.Info("http server stopped gracefully")
		}

		g.logger.Info("shutdown complete")
		return ctx.Err()

	case err := <-errCh:
		return err
	}
}
