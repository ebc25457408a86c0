package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/taskflow-dev/todo-backend/pkg/config"
	"github.com/taskflow-dev/todo-backend/pkg/database"
	"github.com/taskflow-dev/todo-backend/pkg/handlers"
	"github.com/taskflow-dev/todo-backend/pkg/logging"
	"github.com/taskflow-dev/todo-backend/pkg/metrics"
	"github.com/taskflow-dev/todo-backend/pkg/middleware"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Debug, cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("backend_url", cfg.BackendURL),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.URL)),
		zap.Bool("debug", cfg.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	db, err := database.NewConnection(startCtx, &database.Config{
		URL:             cfg.Database.URL,
		SSLMode:         cfg.Database.SSLMode,
		RecycleInterval: cfg.Database.PoolRecycle,
		PrePing:         cfg.Database.PoolPrePing,
		PoolSize:        cfg.Database.PoolSize,
		MaxOverflow:     cfg.Database.MaxOverflow,
		AcquireTimeout:  cfg.Database.PoolTimeout,
		Metrics:         m,
	}, logger)
	cancel()
	if err != nil {
		// NewConnection already logged the cause.
		_ = logger.Sync()
		os.Exit(1)
	}
	defer db.Close()

	reg.MustRegister(metrics.NewPoolCollector(db))

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewConfigHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewMetricsHandler(reg, logger).RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = middleware.CORS(cfg.FrontendURL)(handler)
	handler = middleware.Recoverer(logger)(handler)
	handler = middleware.RequestLogger(logger)(handler)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting todo-backend",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	logger.Info("Server stopped")
}
