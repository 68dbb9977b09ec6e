// Package app wires the server components together and owns their
// lifecycle. Every component takes its dependencies explicitly; nothing
// reaches for process-global state.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"threadcast/internal/retention"
	"threadcast/pkg/api"
	"threadcast/pkg/auth"
	"threadcast/pkg/banner"
	"threadcast/pkg/config"
	"threadcast/pkg/fanout"
	"threadcast/pkg/logger"
	"threadcast/pkg/push"
	"threadcast/pkg/state"
	"threadcast/pkg/store"
	"threadcast/pkg/threadlog"
	"threadcast/pkg/threads"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg     *config.Config
	version string

	store *store.Store
	hub   *push.Hub
	srv   *http.Server
}

// New opens the store and builds the component graph. Call Run to start
// serving and block until shutdown.
func New(cfg *config.Config, version string) (*App, error) {
	ttl, err := cfg.FollowTTL()
	if err != nil {
		return nil, err
	}

	if err := state.EnsureStateDirs(cfg.Storage.DBPath); err != nil {
		return nil, fmt.Errorf("prepare data dir %s: %w", cfg.Storage.DBPath, err)
	}
	s, err := store.Open(state.StorePath(cfg.Storage.DBPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", cfg.Storage.DBPath, err)
	}

	hub := push.NewHub()
	log := threadlog.New(s)
	fan := fanout.New(log, hub)
	svc := threads.NewService(log, fan, threads.Options{
		ReplayLimit: cfg.Threads.ReplayLimit,
		FollowTTL:   ttl,
	})
	gw := auth.NewGateway(cfg.Security.SigningSecret)
	limits := auth.NewLimiterPool(cfg.Security.RateLimit.RPS, cfg.Security.RateLimit.Burst)

	a := &App{
		cfg:     cfg,
		version: version,
		store:   s,
		hub:     hub,
		srv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           api.New(svc, hub, gw, limits).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	return a, nil
}

// Run starts the retention scheduler and the HTTP server, and blocks
// until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	stopRetention, err := retention.Start(ctx, a.cfg, a.store)
	if err != nil {
		return err
	}
	defer stopRetention()

	banner.Print(a.cfg.Addr(), a.cfg.Storage.DBPath, a.version)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listening", "addr", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errCh:
		return err
	}
}

func (a *App) shutdown() error {
	logger.Info("shutting_down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(sctx); err != nil {
		logger.Warn("http_shutdown_failed", "error", err)
	}
	a.hub.Close()
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
