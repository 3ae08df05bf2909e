package main

import (
	"context"
	"os"
	"time"

	"rentbook/internal/cli"
	"rentbook/internal/log"
	"rentbook/internal/sheets"
	gsheet "rentbook/internal/sheets/google"
	memsheet "rentbook/internal/sheets/memory"
	"rentbook/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.ConfigureLogger(cfg).WithComponent(log.ComponentWorker)

	logger.Info("Starting rentbook-worker")

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	// Resync needs the store; live changes are still mirrored without it.
	store, err := cli.InitStore(logger, cfg)
	if err != nil {
		logger.Warn("Data store unavailable, resync disabled", log.FieldError, err)
	}

	var mirror sheets.Mirror
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, gsheet.Credentials{
			JSON: cfg.GoogleServiceAccountJSON,
			File: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		if err := client.EnsureTabs(context.Background()); err != nil {
			logger.Error("Failed to prepare spreadsheet tabs", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		mirror = client
	} else {
		logger.Info("Google Sheets disabled, mirroring into memory")
		mirror = memsheet.New()
	}

	amqpClient, err := cli.InitAMQP(logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	// A nil *cli.Store must not reach the worker as a non-nil interface.
	syncWorker := worker.NewSyncWorker(nil, mirror)
	if store != nil {
		syncWorker = worker.NewSyncWorker(store, mirror)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err)
		}
		if err := store.Close(); err != nil {
			logger.Warn("Store close error", log.FieldError, err)
		}
	})

	if cfg.SheetsResyncOnStartup && store != nil {
		logger.Info("Performing startup resync")
		if err := syncWorker.Resync(ctx); err != nil {
			logger.Error("Startup resync failed", log.FieldError, err)
		}
	}

	interval := cfg.SheetsResyncInterval
	if store == nil {
		interval = 0
	}
	if err := syncWorker.Run(ctx, amqpClient, interval); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
