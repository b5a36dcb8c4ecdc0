package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/hibiken/asynq"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/pipeline"
	"github.com/MelodyDuplaix/Projet-OCR/internal/infrastructure/queue"
	"github.com/MelodyDuplaix/Projet-OCR/internal/infrastructure/storage"
	apperrors "github.com/MelodyDuplaix/Projet-OCR/internal/pkg/errors"
	"github.com/MelodyDuplaix/Projet-OCR/internal/pkg/logger"
)

// DocumentProcessor extracts and ingests one image
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, name string, r io.Reader) pipeline.FileOutcome
}

// Opener reads images from the configured source
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Handler consumes invoice:extract tasks
type Handler struct {
	processor DocumentProcessor
	source    Opener
	logger    *slog.Logger
}

// NewHandler creates a task handler
func NewHandler(processor DocumentProcessor, source Opener, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{processor: processor, source: source, logger: logger}
}

// Register binds the handler to the server mux
func (h *Handler) Register(srv *queue.AsynqServer) {
	srv.HandleFunc(queue.TaskTypeExtractInvoice, h.HandleExtractInvoice)
}

// HandleExtractInvoice processes one image. A rejected document is a final
// outcome: its IngestionError row is already written, so the task succeeds.
// Only failures to reach the image are retried; a task naming a file that is
// not an image never will succeed and is dropped.
func (h *Handler) HandleExtractInvoice(ctx context.Context, t *asynq.Task) error {
	payload, err := queue.ParseExtractInvoicePayload(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	log := logger.ForFile(h.logger, payload.SourceFile).With(slog.String("batch_id", payload.BatchID))

	rc, err := h.open(ctx, payload.SourceFile)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeUnsupportedFormat) {
			log.Warn("task dropped", "error", err)
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	defer rc.Close()

	outcome := h.processor.ProcessDocument(ctx, payload.SourceFile, rc)
	if outcome.OK() {
		log.Info("invoice ingested",
			slog.Int("rows_inserted", outcome.Inserted.Total()),
			slog.Duration("duration", outcome.Duration))
	} else {
		log.Warn("invoice rejected", slog.String("error", outcome.ErrorMessage()))
	}

	if w := t.ResultWriter(); w != nil {
		data, err := json.Marshal(outcome)
		if err == nil {
			_, err = w.Write(data)
		}
		if err != nil {
			log.Warn("failed to write task result", "error", err)
		}
	}
	return nil
}

func (h *Handler) open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !storage.IsImage(name) {
		return nil, apperrors.UnsupportedFormat(filepath.Ext(name))
	}
	rc, err := h.source.Open(ctx, name)
	if err != nil {
		return nil, apperrors.StorageError(err, "failed to open "+name)
	}
	return rc, nil
}
