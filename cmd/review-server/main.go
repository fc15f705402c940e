package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Lllllllleong/engineeringdocumentreview/internal/config"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/gcp"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/httpapi"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/logging"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/metrics"
	"github.com/Lllllllleong/engineeringdocumentreview/internal/services"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := services.Build(ctx, cfg, services.BuildOptions{
		Local:   gcp.GetEnv("LOCAL_MODE", "") == "true",
		Metrics: metrics.New(prometheus.DefaultRegisterer),
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Failed to close clients", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + gcp.GetEnv("PORT", "8080"),
		Handler:           httpapi.NewRouter(httpapi.New(app.Service, logger), prometheus.DefaultGatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Review server listening.", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
