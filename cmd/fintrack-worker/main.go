package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	sheetsmem "fintrack/internal/sheets/memory"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, applog.ComponentWorker)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	logger.InfoContext(ctx, "Starting fintrack-worker",
		applog.FieldOperation, applog.OpStartup,
		"backend", cfg.DataBackend,
		"sheets_enabled", cfg.SheetsEnabled(),
		"events_enabled", cfg.EventsEnabled())

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	// The worker only reads the ledger; it never publishes events.
	backendCfg.AMQPURL = ""
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create backend",
			applog.FieldErrorType, applog.ErrorTypeDatabase,
			applog.FieldError, err)
		os.Exit(1)
	}

	exporter, err := newExporter(ctx, cfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize Google Sheets client",
			applog.FieldErrorType, applog.ErrorTypeConfiguration,
			applog.FieldError, err)
		os.Exit(1)
	}

	exportWorker := worker.NewExportWorker(result.Ledger, exporter)
	loop := worker.NewRefreshLoop(exportWorker, worker.RefreshConfig{
		Interval:   cfg.RefreshInterval,
		RunOnStart: true,
	})

	var consumer *amqp.Client
	if cfg.EventsEnabled() {
		consumer, err = amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqp.DefaultDialPolicy())
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize AMQP client",
				applog.FieldErrorType, applog.ErrorTypeNetwork,
				applog.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.WarnContext(ctx, "AMQP not configured, relying on periodic refresh only",
			"interval", cfg.RefreshInterval)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeLedgerEvents(gctx, exportWorker.HandleEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.ErrorContext(ctx, "Worker stopped with error", applog.FieldError, runErr)
	}

	cli.RunCleanup(logger, cfg.ShutdownTimeout, func(context.Context) error {
		var errs []error
		if consumer != nil {
			errs = append(errs, consumer.Close())
		}
		errs = append(errs, result.Cleanup())
		return errors.Join(errs...)
	})

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
}

// newExporter writes to Google Sheets when a spreadsheet is configured and
// otherwise keeps exports in memory, which only makes the worker observable
// through its logs.
func newExporter(ctx context.Context, cfg *config.Config, logger *applog.Logger) (sheets.LedgerExporter, error) {
	if !cfg.SheetsEnabled() {
		logger.WarnContext(ctx, "Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting to memory")
		return sheetsmem.New(cfg.ExportSheetPrefix), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		TabPrefix:       cfg.ExportSheetPrefix,
	})
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Google Sheets client initialized", applog.FieldSheet, cfg.GoogleSpreadsheetID)
	return client, nil
}
