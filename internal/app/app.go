package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/liveboard-server/internal/auth"
	"github.com/vovakirdan/liveboard-server/internal/config"
	"github.com/vovakirdan/liveboard-server/internal/core"
	"github.com/vovakirdan/liveboard-server/internal/proto"
	transporthttp "github.com/vovakirdan/liveboard-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	authority, err := auth.NewAuthority(cfg.AdminPassword, cfg.AdminPasswordHash)
	if err != nil {
		return nil, fmt.Errorf("init admin secret: %w", err)
	}
	if cfg.UsesDefaultPassword() {
		logger.Warn().Msg("admin password is the built-in default; set ADMIN_PASSWORD before exposing this server")
	}

	hub := core.NewHub(authority, core.Options{
		IdleTimeout:   cfg.IdleTimeout,
		ClearOnRotate: cfg.ClearOnRotate,
		Logger:        logger,
	})
	server := transporthttp.NewServer(hub, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		log:             logger,
	}, nil
}

// Run starts the hub and the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	a.log.Info().Str("addr", a.server.Addr).Msg("liveboard listening")
	a.announce(ctx)

	select {
	case err := <-serverErr:
		stopHub()
		<-a.hub.Done()
		return err
	case <-ctx.Done():
		// Sockets are hijacked and invisible to Shutdown; stopping the hub closes them.
		a.log.Info().Msg("stopping hub")
		stopHub()
		<-a.hub.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}

// announce logs the current viewer path so the operator can share it.
func (a *App) announce(ctx context.Context) {
	snapCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	snap, err := a.hub.Snapshot(snapCtx)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to read room state")
		return
	}
	a.log.Info().Str("path", proto.LivePath(snap.Token)).Msg("room ready")
}
