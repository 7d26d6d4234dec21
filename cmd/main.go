// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/app"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/capacity"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/clock"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/config"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/handler"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/logging"
	"github.com/Shivanand-hulikatti/eph-competitions/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// ── 1. Configuration and logging ──────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// ── 2. Open the store ─────────────────────────────────────────────────
	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// ── 3. Wire up layers ────────────────────────────────────────────────
	clk := clock.System{}
	seats := capacity.NewManager(store, logger.Named("capacity"))
	comps := service.NewCompetitionService(store, clk, logger.Named("competitions"))
	regs := service.NewRegistrationService(store, seats, app.NewNotifier(cfg, logger), clk, logger.Named("registrations"))
	regs.SetNotifyTimeout(cfg.Mail.SendTimeout)
	h := handler.NewCompetitionHandler(comps, regs, store, logger.Named("http"))

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      h.Routes(cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.String("mail", cfg.Mail.Provider),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	regs.Wait()
	logger.Info("server stopped")
	return nil
}
