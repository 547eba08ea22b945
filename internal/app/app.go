// Package app provides the top-level application lifecycle: it wires
// stores, caches, external clients, and services together and runs the
// HTTP server until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deqrypt/yieldrouter/internal/config"
	"github.com/deqrypt/yieldrouter/internal/ledger"
	"github.com/deqrypt/yieldrouter/internal/server"
	"github.com/deqrypt/yieldrouter/internal/server/handler"
	"github.com/deqrypt/yieldrouter/internal/service"
)

// shutdownGrace bounds how long in-flight requests may run after a stop
// signal.
const shutdownGrace = 10 * time.Second

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, builds the services and handlers, and serves
// HTTP until the context is cancelled. On return it runs all registered
// cleanup functions via Close.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Int("port", a.cfg.Server.Port),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// Core ledger.
	ldg := ledger.New(deps.PositionStore, deps.LockManager, deps.SignalBus, ledger.Config{
		DefaultAPY:    a.cfg.Lending.DefaultAPY,
		StrictAmounts: a.cfg.Lending.StrictAmounts,
	}, a.logger)

	// Services.
	lendingSvc := service.NewLendingService(
		ldg,
		deps.PositionStore,
		deps.TransactionStore,
		deps.Yields,
		deps.Rates,
		deps.Advisor,
		deps.Chain,
		deps.Notifier,
		a.logger,
	)
	profileSvc := service.NewProfileService(deps.ProfileStore, deps.BlobWriter, a.logger)
	txSvc := service.NewTransactionService(deps.TransactionStore)

	// Handlers.
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": handler.PingerFunc(deps.PostgresPing),
			"redis":    handler.PingerFunc(deps.RedisPing),
		}, a.logger),
		Lending:      handler.NewLendingHandler(lendingSvc, a.logger),
		Profiles:     handler.NewProfileHandler(profileSvc, a.logger),
		Transactions: handler.NewTransactionHandler(txSvc, a.logger),
		Rates:        handler.NewRateHandler(deps.Rates, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, deps.RateLimiter, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
