package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/verif/internal/app"
	"github.com/okian/verif/internal/config"
	"github.com/okian/verif/internal/server"
	"github.com/okian/verif/pkg/logger"
	"github.com/okian/verif/pkg/metrics"
	"github.com/okian/verif/pkg/score"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input).
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Load guarantees the estimator name parses.
	estimator, err := score.ParseEstimator(cfg.DefaultEstimator)
	if err != nil {
		os.Stderr.WriteString("invalid default estimator: " + err.Error() + "\n")
		return
	}

	manager := metrics.New(
		metrics.WithRegistry(metrics.GetRegistry()),
		metrics.WithEnabled(cfg.MetricsEnabled),
	)

	svc := app.New(
		app.WithLogger(log.Named("app")),
		app.WithMetrics(manager),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithChunkSize(cfg.ChunkSize),
		app.WithMaxBatchSize(cfg.MaxBatchSize),
		app.WithDefaultEstimator(estimator),
	)

	mux := http.NewServeMux()
	server.New(svc, server.WithLogger(log.Named("http"))).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}
