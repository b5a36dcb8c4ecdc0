package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MelodyDuplaix/Projet-OCR/internal/bootstrap"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/pipeline"
	"github.com/MelodyDuplaix/Projet-OCR/internal/infrastructure/queue"
	"github.com/MelodyDuplaix/Projet-OCR/internal/pkg/config"
	"github.com/MelodyDuplaix/Projet-OCR/internal/pkg/logger"
)

func main() {
	var (
		dryRun  = flag.Bool("dry-run", false, "extract and validate without writing to the database; results go to stdout")
		enqueue = flag.Bool("enqueue", false, "enqueue one invoice:extract task per image instead of processing inline")
		source  = flag.String("source", "", "directory of invoice images (overrides SOURCE_DIR)")
		file    = flag.String("file", "", "extract a single image and print the result")
		archive = flag.Bool("archive", false, "write a JSON export of the ingested entities")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *source != "" {
		cfg.SourceDir = *source
	}
	appLogger := logger.Initialize(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, appLogger, bootstrap.Options{DryRun: *dryRun || *file != ""})
	if err != nil {
		appLogger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	switch {
	case *file != "":
		res := app.Service.ExtractFile(ctx, *file)
		printJSON(res)
		if !res.OK() {
			os.Exit(2)
		}
	case *enqueue:
		if err := enqueueAll(ctx, app); err != nil {
			appLogger.Error("enqueue failed", "error", err)
			os.Exit(1)
		}
	default:
		report, err := app.BatchRunner(*archive).Run(ctx, app.Source)
		if err != nil {
			appLogger.Error("batch failed", "error", err)
			os.Exit(1)
		}
		if *dryRun {
			results := make([]pipeline.Result, 0, len(report.Outcomes))
			for _, o := range report.Outcomes {
				results = append(results, o.Result)
			}
			printJSON(results)
		}
		appLogger.Info("ingestion summary",
			slog.Int("total_files", report.Batch.TotalFiles),
			slog.Int("succeeded", report.Batch.Succeeded),
			slog.Int("failed", report.Batch.Failed),
			slog.Int("duplicates_skipped", report.Batch.DuplicatesSkipped),
			slog.Int("already_ingested", report.Batch.AlreadyIngested),
			slog.Any("rows_inserted", report.Inserted))

		totals, err := app.RowCounts(context.WithoutCancel(ctx))
		if err != nil {
			appLogger.Warn("failed to count rows", "error", err)
		} else {
			appLogger.Info("table totals", slog.Any("rows", totals))
		}
	}
}

func enqueueAll(ctx context.Context, app *bootstrap.App) error {
	client, err := queue.NewAsynqClient(app.Config.Queue(), app.Logger)
	if err != nil {
		return err
	}
	defer client.Close()

	names, err := app.Source.List(ctx)
	if err != nil {
		return err
	}
	timeout := app.Config.Pipeline().FileTimeout
	for _, name := range names {
		task, err := queue.NewExtractInvoiceTask(queue.ExtractInvoicePayload{SourceFile: name}, app.Config.WorkerMaxRetries, 2*timeout)
		if err != nil {
			return err
		}
		if _, err := client.EnqueueContext(ctx, task); err != nil {
			return err
		}
	}
	app.Logger.Info("tasks enqueued", slog.Int("count", len(names)))
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
