package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telhawk-systems/alarm-console/common/config"
	"github.com/telhawk-systems/alarm-console/common/logging"
	"github.com/telhawk-systems/alarm-console/console/internal/app"
	"github.com/telhawk-systems/alarm-console/console/internal/handlers"
	"github.com/telhawk-systems/alarm-console/console/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to esconfig.json")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	boot := logging.New(logging.ParseLevel("info"), "json")

	path := config.Path(*configPath)
	cfg, err := config.LoadWithRetry(ctx, path, config.DefaultRetryInterval, func(err error, wait time.Duration) {
		boot.Error(fmt.Sprintf("Fail to read or parse %s: %v. Will retry every %s ..", config.DefaultFileName, err, wait))
	})
	if err != nil {
		boot.Error("console not started", logging.Error(err))
		os.Exit(1)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("console stopped with error", logging.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("closing integrations", logging.Error(err))
		}
	}()

	if err := a.List.Start(ctx); err != nil {
		return fmt.Errorf("start alarm list: %w", err)
	}
	defer func() {
		_ = a.List.Stop()
		a.List.Wait()
	}()

	sub, err := a.FollowChanges()
	if err != nil {
		logger.Warn("not following changes from other consoles", logging.Error(err))
	}
	if sub != nil {
		defer func() { _ = sub.Unsubscribe() }()
	}

	router := server.NewRouter(server.RouterConfig{
		AlarmsHandler: handlers.NewAlarmsHandler(a.List, logger),
		DetailHandler: handlers.NewDetailHandler(a.Details, logger),
		StatusHandler: handlers.NewStatusHandler(a.Health, a.Alerts),
		ConfigHandler: handlers.NewConfigHandler(handlers.ConsoleConfig{
			KibanaURL: cfg.Kibana,
			Statuses:  cfg.Statuses,
			Tags:      cfg.Tags,
		}),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
		IdleTimeout:  cfg.Server.IdleTimeoutDuration(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("alarm console listening",
			"addr", srv.Addr,
			logging.Store(a.Health.Label()),
			"notifications", a.Notifier.Enabled(),
			"count_cache", a.Counts.IsEnabled(),
			"audit_trail", a.AuditLog != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeoutDuration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
