package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"rentbook/internal/auth"
	"rentbook/internal/cache"
	"rentbook/internal/cli"
	apphttp "rentbook/internal/http"
	"rentbook/internal/log"
	"rentbook/internal/middleware/ratelimit"
	"rentbook/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.ConfigureLogger(cfg)

	logger.Info("Starting rentbook server", "port", cfg.Port, "backend", cfg.DataBackend)

	// A store failure keeps the server up; pages show the error and /readyz fails.
	store, storeErr := cli.InitStore(logger, cfg)
	if storeErr != nil {
		logger.Error("Failed to initialize data store", log.FieldError, storeErr, "backend", cfg.DataBackend)
	}

	amqpClient, err := cli.InitAMQP(logger, cfg)
	if err != nil {
		// Mirroring is optional; the worker resync catches up later.
		logger.Warn("AMQP change feed unavailable, continuing without it", log.FieldError, err)
	}
	var publisher services.ChangePublisher
	if amqpClient != nil {
		publisher = amqpClient
	}

	authenticator, err := auth.New(auth.Credentials{
		Username: cfg.AdminUsername,
		Password: cfg.AdminPassword,
	}, []byte(cfg.SessionSecret), cfg.SessionTTL)
	if err != nil {
		logger.Error("Failed to initialize authenticator", log.FieldError, err)
		os.Exit(1)
	}
	if !authenticator.Configured() {
		logger.Warn("Admin credentials not configured, every login will be refused")
	}
	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}

	cacheManager := cache.NewManager()
	var sessions *services.Sessions
	var ready func(ctx context.Context) error
	if storeErr == nil {
		sessions = services.NewSessions(func() *services.Repository {
			return services.NewRepository(store, publisher)
		}, cfg.SessionCacheSize, cfg.SessionIdle)
		cacheManager.Register(sessions)
		cacheManager.StartCleanup(10 * time.Minute)
		ready = store.Ping
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Auth:         authenticator,
		Sessions:     sessions,
		StoreErr:     storeErr,
		Ready:        ready,
		Currency:     cfg.Currency,
		SecureCookie: cfg.SecureCookie,
		Logger:       logger,
		LoginLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := store.Close(); err != nil {
			logger.Warn("Store close error", log.FieldError, err)
		}
	})

	logger.Info("Listening", "addr", srv.Addr, "currency", cfg.Currency)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
