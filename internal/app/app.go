package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/sundayezeilo/repocatalog/internal/config"
	"github.com/sundayezeilo/repocatalog/internal/idgen"
	"github.com/sundayezeilo/repocatalog/internal/repository"
	"github.com/sundayezeilo/repocatalog/internal/server"
	"github.com/sundayezeilo/repocatalog/internal/telemetry"
)

// App holds the application dependencies and configuration.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   *repository.MemoryStore
	Server  *server.Server
	Handler *repository.Handler

	shutdownTracer telemetry.ShutdownFunc
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel, os.Stdout)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.Observability.ServiceVersion,
	)

	return build(ctx, cfg, logger)
}

// build wires every component from an already loaded configuration.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		Enabled:        cfg.Observability.Enabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.App.Environment,
		Endpoint:       cfg.Observability.OTelEndpoint,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRate:     cfg.Observability.TracingSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if cfg.Observability.Enabled {
		logger.Info("tracing enabled",
			"endpoint", cfg.Observability.OTelEndpoint,
			"sample_rate", cfg.Observability.TracingSampleRate,
		)
	}

	store := repository.NewMemoryStore(&repository.StoreConfig{
		IDGenerator: idgen.New(idgen.Version(cfg.App.IDVersion)),
	})
	svc := repository.NewService(store)
	handler := repository.NewHandler(repository.HandlerConfig{
		Service: svc,
		Logger:  logger,
	})

	srv := server.New(cfg, logger, handler, store)

	logger.Info("application initialized",
		"addr", cfg.Server.Addr(),
		"id_version", cfg.App.IDVersion,
	)

	return &App{
		Config:         cfg,
		Logger:         logger,
		Store:          store,
		Server:         srv,
		Handler:        handler,
		shutdownTracer: shutdownTracer,
	}, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("server starting", "addr", a.Config.Server.Addr())

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application and flushes pending spans.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application", "repositories", a.Store.Len())

	if a.shutdownTracer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.shutdownTracer(ctx); err != nil {
		return fmt.Errorf("failed to shut down tracer: %w", err)
	}
	a.Logger.Info("tracer stopped")

	return nil
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured JSON logger based on the log level.
func setupLogger(level string, out io.Writer) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(out, opts)
	return slog.New(handler)
}
