// Package cli provides common initialization utilities shared by
// cmd/rentbook, cmd/rentbook-worker and cmd/rentbook-admin.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rentbook/internal/amqp"
	"rentbook/internal/config"
	"rentbook/internal/log"
	"rentbook/internal/storage"
	"rentbook/internal/storage/memory"
)

// SetupLogger installs a default text logger. It is used until the
// configuration has been read and ConfigureLogger replaces it.
func SetupLogger() *log.Logger {
	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)
	return logger
}

// ConfigureLogger rebuilds the default logger from LOG_LEVEL and LOG_FORMAT.
func ConfigureLogger(cfg *config.Config) *log.Logger {
	logger := log.New(log.Config{
		Level:     cfg.Level(),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// Store is a document store with a release function.
type Store struct {
	storage.DocumentStore
	close func() error
}

func (s *Store) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// Ping checks the backing database where there is one.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.DocumentStore.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// InitStore opens the configured document store. The caller decides whether
// a failure is fatal; the web server keeps running and reports it.
func InitStore(logger *log.Logger, cfg *config.Config) (*Store, error) {
	logger = logger.WithComponent(log.ComponentStorage)

	switch cfg.DataBackend {
	case config.BackendMemory:
		if cfg.SeedFile == "" {
			logger.Info("Using in-memory store")
			return &Store{DocumentStore: memory.New()}, nil
		}
		st, err := memory.NewFromFile(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("load seed file %s: %w", cfg.SeedFile, err)
		}
		logger.Info("Using in-memory store", "seed_file", cfg.SeedFile)
		return &Store{DocumentStore: st}, nil

	case config.BackendSQLite:
		st, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store %s: %w", cfg.SQLiteDBPath, err)
		}
		logger.Info("Using SQLite store", "path", cfg.SQLiteDBPath)
		return &Store{DocumentStore: st, close: st.Close}, nil

	default:
		return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
	}
}

// InitAMQP connects the change feed client when AMQP_URL is set. A nil
// client with a nil error means the feed is disabled.
func InitAMQP(logger *log.Logger, cfg *config.Config) (*amqp.Client, error) {
	logger = logger.WithComponent(log.ComponentAMQP)
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP change feed disabled")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	logger.Info("AMQP change feed connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
