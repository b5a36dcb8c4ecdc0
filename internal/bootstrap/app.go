package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/deduplication"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/extraction"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/ingestion"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/pipeline"
	"github.com/MelodyDuplaix/Projet-OCR/internal/infrastructure/cache"
	"github.com/MelodyDuplaix/Projet-OCR/internal/infrastructure/database"
	"github.com/MelodyDuplaix/Projet-OCR/internal/infrastructure/database/repositories"
	"github.com/MelodyDuplaix/Projet-OCR/internal/infrastructure/layouts"
	"github.com/MelodyDuplaix/Projet-OCR/internal/infrastructure/ocr"
	"github.com/MelodyDuplaix/Projet-OCR/internal/infrastructure/qrcode"
	"github.com/MelodyDuplaix/Projet-OCR/internal/infrastructure/storage"
	"github.com/MelodyDuplaix/Projet-OCR/internal/pkg/config"
)

// Options selects which dependencies are opened
type Options struct {
	// DryRun keeps entities in memory and skips Postgres entirely
	DryRun bool
}

// Source is an image source that can also store export archives
type Source interface {
	pipeline.Source
	pipeline.ArchiveWriter
}

// App holds the wired pipeline and the resources to release on exit
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Service *pipeline.Service
	Source  Source
	Uploads *storage.LocalStorage

	// nil in dry runs
	DB       *database.PostgresDB
	Invoices *repositories.InvoiceStore
	Batches  *repositories.BatchRepository
	Dedup    deduplication.Deduplicator
	// nil when locks are held in memory
	Cache *cache.RedisCache

	// Memory is set in dry runs
	Memory *ingestion.MemoryStore

	closers []func() error
}

// New wires every component from cfg
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (app *App, err error) {
	app = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	pcfg := cfg.Pipeline()
	layout, err := layouts.NewLoaderFactory().LoadFile(ctx, pcfg.LayoutPath)
	if err != nil {
		return app, fmt.Errorf("failed to load layout: %w", err)
	}

	recognizer, err := ocr.NewRecognizer(cfg.OCR())
	if err != nil {
		return app, err
	}
	extractor := extraction.NewExtractor(layout, extraction.Config{
		ScaleFactor:   pcfg.ScaleFactor,
		QRScaleFactor: pcfg.QRScaleFactor,
		Languages:     cfg.OCRLanguages,
	}, recognizer, qrcode.NewDecoder(), logger.With(slog.String("component", "extraction")))

	locker, err := app.openLocker(pcfg)
	if err != nil {
		return app, err
	}

	var store ingestion.Store
	if opts.DryRun {
		app.Memory = ingestion.NewMemoryStore()
		store = app.Memory
	} else {
		if err := app.openDatabase(ctx); err != nil {
			return app, err
		}
		app.Invoices = repositories.NewInvoiceStore(app.DB.DB, logger)
		store = app.Invoices
		app.Batches = repositories.NewBatchRepository(app.DB.DB, logger)
		app.Dedup = deduplication.NewService(deduplication.Config{
			EnableLevel2: pcfg.DedupEnableLevel2,
			StoreHashes:  true,
		}, repositories.NewDocumentHashRepository(app.DB.DB, logger), logger.With(slog.String("component", "dedup")))
	}

	writer := ingestion.NewWriter(store, locker, logger.With(slog.String("component", "ingestion")))
	app.Service = pipeline.NewService(extractor, writer, pcfg.FileTimeout, logger)

	scfg := cfg.Storage()
	app.Uploads, err = storage.NewLocalStorage(&storage.LocalStorageConfig{
		SourceDir: scfg.SourceDir,
		BasePath:  scfg.TempDir,
	}, logger)
	if err != nil {
		return app, err
	}
	app.Source, err = app.openSource(ctx, scfg)
	if err != nil {
		return app, err
	}

	return app, nil
}

func (a *App) openLocker(pcfg *config.PipelineConfig) (ingestion.KeyLocker, error) {
	if pcfg.LockBackend != "redis" {
		return ingestion.NewMemoryLocker(), nil
	}
	c, err := cache.NewRedisCache(a.Config.Cache(), a.Logger)
	if err != nil {
		return nil, err
	}
	a.Cache = c
	a.closers = append(a.closers, c.Close)
	return cache.NewRedisLocker(c, pcfg.LockTTL, a.Logger), nil
}

func (a *App) openDatabase(ctx context.Context) error {
	if err := a.Config.ValidateDatabase(); err != nil {
		return err
	}
	db, err := database.Open(ctx, a.Config.Database(), a.Logger)
	if err != nil {
		return err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	return db.Migrate(ctx)
}

func (a *App) openSource(ctx context.Context, scfg *config.StorageConfig) (Source, error) {
	if scfg.Source != "minio" {
		return a.Uploads, nil
	}
	return storage.NewMinioStorage(ctx, &storage.MinioConfig{
		Endpoint:  scfg.MinioEndpoint,
		AccessKey: scfg.MinioAccessKey,
		SecretKey: scfg.MinioSecretKey,
		Bucket:    scfg.MinioBucket,
		Prefix:    scfg.MinioPrefix,
		UseSSL:    scfg.MinioUseSSL,
	}, a.Logger)
}

// PurgeUploads removes upload directories older than the configured
// retention; a failure is logged and startup continues.
func (a *App) PurgeUploads(ctx context.Context) {
	retention := a.Config.Storage().UploadRetention
	if retention <= 0 || a.Uploads == nil {
		return
	}
	if err := a.Uploads.CleanupOldFiles(ctx, retention); err != nil {
		a.Logger.Warn("failed to purge stale uploads", "error", err)
	}
}

// RowCounts reports how many rows each entity table holds
func (a *App) RowCounts(ctx context.Context) (map[string]int64, error) {
	if a.Invoices != nil {
		return a.Invoices.CountRows(ctx)
	}
	counts := make(map[string]int64)
	if a.Memory != nil {
		for table, n := range a.Memory.Counts() {
			counts[table] = int64(n)
		}
	}
	return counts, nil
}

// BatchRunner builds a runner over the wired service
func (a *App) BatchRunner(archive bool) *pipeline.BatchRunner {
	cfg := pipeline.DefaultBatchConfig()
	cfg.Workers = a.Config.Pipeline().BatchWorkers
	cfg.Archive = archive

	var batches pipeline.BatchStore
	if a.Batches != nil {
		batches = a.Batches
	}
	return pipeline.NewBatchRunner(a.Service, a.Dedup, batches, a.Source, cfg, a.Logger)
}

// Close releases opened resources in reverse order
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("failed to release resource", "error", err)
		}
	}
	a.closers = nil
}
