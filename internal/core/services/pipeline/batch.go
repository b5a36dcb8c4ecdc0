package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/domain"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/deduplication"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/export"
)

// Source lists and opens the images of a batch
type Source interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Describe() string
}

// BatchStore persists batch summaries
type BatchStore interface {
	Create(ctx context.Context, batch *domain.IngestionBatch) error
	Update(ctx context.Context, batch *domain.IngestionBatch) error
}

// ArchiveWriter stores export archives
type ArchiveWriter interface {
	SaveProcessedFile(ctx context.Context, runID string, fileType string, filename string, data []byte) (string, error)
}

// BatchConfig tunes a batch run
type BatchConfig struct {
	Workers          int
	ProgressEvery    int
	Archive          bool
	ArchiveChunkSize int
}

// DefaultBatchConfig processes files one at a time and logs every 100 files
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Workers:          1,
		ProgressEvery:    100,
		ArchiveChunkSize: export.DefaultGeneratorConfig().ChunkSize,
	}
}

// BatchReport summarizes a batch run
type BatchReport struct {
	Batch        *domain.IngestionBatch   `json:"batch"`
	Outcomes     []FileOutcome            `json:"outcomes"`
	Skipped      []deduplication.Document `json:"skipped,omitempty"`
	Inserted     map[string]int           `json:"inserted"`
	ArchivePaths []string                 `json:"archive_paths,omitempty"`
}

// BatchRunner processes every image of a source
type BatchRunner struct {
	service  *Service
	dedup    deduplication.Deduplicator
	batches  BatchStore
	archive  ArchiveWriter
	exporter *export.Generator
	config   BatchConfig
	logger   *slog.Logger
}

// NewBatchRunner creates a runner; batches and archive may be nil.
func NewBatchRunner(service *Service, dedup deduplication.Deduplicator, batches BatchStore, archive ArchiveWriter, config BatchConfig, logger *slog.Logger) *BatchRunner {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = DefaultBatchConfig().ProgressEvery
	}
	if config.ArchiveChunkSize <= 0 {
		config.ArchiveChunkSize = DefaultBatchConfig().ArchiveChunkSize
	}
	if dedup == nil {
		dedup = deduplication.NewService(deduplication.Config{}, nil, logger)
	}
	return &BatchRunner{
		service:  service,
		dedup:    dedup,
		batches:  batches,
		archive:  archive,
		exporter: export.NewGenerator(logger),
		config:   config,
		logger:   logger,
	}
}

// Run lists the source, drops duplicate images, processes the rest and
// records the batch. Once ctx is done no new file is started; files already
// running finish on their own timeout.
func (r *BatchRunner) Run(ctx context.Context, src Source) (*BatchReport, error) {
	batch := &domain.IngestionBatch{Source: src.Describe(), Status: domain.BatchStatusRunning}
	if r.batches != nil {
		if err := r.batches.Create(ctx, batch); err != nil {
			return nil, err
		}
	} else {
		batch.ID = uuid.New()
	}
	logger := r.logger.With(slog.String("batch_id", batch.ID.String()))

	names, err := src.List(ctx)
	if err != nil {
		r.finish(ctx, batch, domain.BatchStatusFailed)
		return nil, fmt.Errorf("failed to list source: %w", err)
	}
	batch.TotalFiles = len(names)
	logger.Info("batch started",
		slog.String("source", batch.Source),
		slog.Int("files", len(names)),
		slog.Int("workers", r.config.Workers))

	docs := r.hashAll(ctx, src, names)
	dedupResult, err := r.dedup.Deduplicate(ctx, batch.ID, docs)
	if err != nil {
		r.finish(ctx, batch, domain.BatchStatusFailed)
		return nil, fmt.Errorf("deduplication failed: %w", err)
	}
	batch.DuplicatesSkipped = dedupResult.Stats.Level1Duplicates
	batch.AlreadyIngested = dedupResult.Stats.Level2Duplicates

	report := &BatchReport{
		Batch:    batch,
		Outcomes: make([]FileOutcome, len(dedupResult.Documents)),
		Skipped:  dedupResult.Removed,
		Inserted: make(map[string]int),
	}
	processed := r.processAll(ctx, src, dedupResult.Documents, report.Outcomes, logger)
	report.Outcomes = report.Outcomes[:processed]

	ingested := make(map[string]bool, len(report.Outcomes))
	var archived []export.Document
	for _, o := range report.Outcomes {
		if o.OK() {
			batch.Succeeded++
			ingested[o.SourceFile] = true
			archived = append(archived, export.DocumentFromSet(o.Entities, o.Inserted.PerTable()))
			for table, n := range o.Inserted.PerTable() {
				report.Inserted[table] += n
			}
		} else {
			batch.Failed++
		}
	}

	// bookkeeping is written even when the run was interrupted
	bgCtx := context.WithoutCancel(ctx)
	if err := r.dedup.Record(bgCtx, batch.ID, dedupResult.Documents[:processed], ingested); err != nil {
		logger.Error("failed to record document hashes", "error", err)
	}
	if r.config.Archive && r.archive != nil && len(archived) > 0 {
		report.ArchivePaths = r.writeArchive(bgCtx, batch.ID.String(), archived, logger)
	}

	status := domain.BatchStatusCompleted
	if ctx.Err() != nil {
		status = domain.BatchStatusCancelled
	}
	r.finish(bgCtx, batch, status)

	logger.Info("batch finished",
		slog.String("status", batch.Status),
		slog.Int("succeeded", batch.Succeeded),
		slog.Int("failed", batch.Failed),
		slog.Int("duplicates_skipped", batch.DuplicatesSkipped),
		slog.Int("already_ingested", batch.AlreadyIngested))

	return report, nil
}

// hashAll computes the content hash of every file; a file that cannot be read
// keeps an empty hash and fails later in processing.
func (r *BatchRunner) hashAll(ctx context.Context, src Source, names []string) []deduplication.Document {
	docs := make([]deduplication.Document, len(names))
	g := new(errgroup.Group)
	g.SetLimit(r.config.Workers)

	for i, name := range names {
		docs[i] = deduplication.Document{Index: i, Name: name}
		if ctx.Err() != nil {
			continue
		}
		i, name := i, name
		g.Go(func() error {
			rc, err := src.Open(ctx, name)
			if err != nil {
				r.logger.Warn("failed to open file for hashing", slog.String("file", name), "error", err)
				return nil
			}
			defer rc.Close()

			hash, err := deduplication.HashContent(rc)
			if err != nil {
				r.logger.Warn("failed to hash file", slog.String("file", name), "error", err)
				return nil
			}
			docs[i].Hash = hash
			return nil
		})
	}
	_ = g.Wait()
	return docs
}

// processAll runs ProcessDocument over docs with a bounded pool and returns
// how many leading docs were started.
func (r *BatchRunner) processAll(ctx context.Context, src Source, docs []deduplication.Document, outcomes []FileOutcome, logger *slog.Logger) int {
	g := new(errgroup.Group)
	g.SetLimit(r.config.Workers)

	var mu sync.Mutex
	done, failed := 0, 0
	started := 0
	begin := time.Now()

	for i, doc := range docs {
		if ctx.Err() != nil {
			logger.Warn("batch interrupted", slog.Int("remaining", len(docs)-i))
			break
		}
		started++

		i, doc := i, doc
		g.Go(func() error {
			outcome := r.processOne(ctx, src, doc.Name)
			outcomes[i] = outcome

			mu.Lock()
			done++
			if !outcome.OK() {
				failed++
			}
			if done%r.config.ProgressEvery == 0 {
				logger.Info("batch progress",
					slog.Int("processed", done),
					slog.Int("total", len(docs)),
					slog.Int("failed", failed),
					slog.Duration("elapsed", time.Since(begin)))
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return started
}

func (r *BatchRunner) processOne(ctx context.Context, src Source, name string) FileOutcome {
	rc, err := src.Open(ctx, name)
	if err != nil {
		msg := err.Error()
		if recErr := r.service.RecordError(context.WithoutCancel(ctx), name, msg); recErr != nil {
			r.logger.Error("failed to record document failure", slog.String("file", name), "error", recErr)
		}
		return FileOutcome{Result: failure(name, msg)}
	}
	defer rc.Close()
	return r.service.ProcessDocument(ctx, name, rc)
}

func (r *BatchRunner) writeArchive(ctx context.Context, runID string, docs []export.Document, logger *slog.Logger) []string {
	cfg := export.DefaultGeneratorConfig().WithChunkSize(r.config.ArchiveChunkSize)
	chunks, err := r.exporter.GenerateChunks(runID, docs, cfg)
	if err != nil {
		logger.Error("failed to build export archive", "error", err)
		return nil
	}

	paths := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if err := r.exporter.ValidateArchive(chunk); err != nil {
			logger.Error("invalid export archive", "error", err)
			continue
		}
		data, err := r.exporter.ToJSON(chunk, cfg.CompactMode)
		if err != nil {
			logger.Error("failed to encode export archive", "error", err)
			continue
		}
		path, err := r.archive.SaveProcessedFile(ctx, runID, "export", export.FileName(chunk), data)
		if err != nil {
			logger.Error("failed to store export archive", "error", err)
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

func (r *BatchRunner) finish(ctx context.Context, batch *domain.IngestionBatch, status string) {
	batch.Finish(status, time.Now().UTC())
	if r.batches == nil {
		return
	}
	if err := r.batches.Update(ctx, batch); err != nil {
		r.logger.Error("failed to update batch",
			slog.String("batch_id", batch.ID.String()),
			"error", err)
	}
}
