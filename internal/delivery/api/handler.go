package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/domain"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/pipeline"
	"github.com/MelodyDuplaix/Projet-OCR/internal/infrastructure/storage"
	apperrors "github.com/MelodyDuplaix/Projet-OCR/internal/pkg/errors"
)

// DocumentProcessor extracts, and optionally ingests, a single image
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, name string, r io.Reader) pipeline.FileOutcome
	Preview(ctx context.Context, sourceFile string, r io.Reader) pipeline.Result
}

// UploadStore keeps uploaded images while they are processed
type UploadStore interface {
	SaveUpload(ctx context.Context, fileID string, filename string, reader io.Reader) (*storage.FileMetadata, error)
	DeleteUpload(ctx context.Context, fileID string) error
}

// BatchReader exposes recorded batch runs
type BatchReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.IngestionBatch, error)
	ListRecent(ctx context.Context, limit int) ([]domain.IngestionBatch, error)
}

// HealthCheck reports the state of one dependency
type HealthCheck func(ctx context.Context) map[string]interface{}

// Handler serves the invoice API
type Handler struct {
	processor   DocumentProcessor
	uploads     UploadStore
	batches     BatchReader
	checks      map[string]HealthCheck
	maxFileSize int64
	logger      *slog.Logger
}

// NewHandler creates a handler; batches may be nil when no database is configured.
func NewHandler(processor DocumentProcessor, uploads UploadStore, batches BatchReader, maxFileSizeMB int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxFileSizeMB <= 0 {
		maxFileSizeMB = 20
	}
	return &Handler{
		processor:   processor,
		uploads:     uploads,
		batches:     batches,
		checks:      make(map[string]HealthCheck),
		maxFileSize: maxFileSizeMB,
		logger:      logger,
	}
}

// AddHealthCheck registers a dependency shown by GET /health
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// Register mounts the routes on r
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	v1.POST("/invoices", h.UploadInvoice)
	v1.GET("/batches", h.ListBatches)
	v1.GET("/batches/:id", h.GetBatch)
}

// UploadInvoice processes the multipart "file" field. With dry_run=true the
// entities are returned without touching the database.
func (h *Handler) UploadInvoice(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		h.fail(c, apperrors.BadRequest("missing multipart field \"file\""))
		return
	}
	if !storage.IsImage(header.Filename) {
		h.fail(c, apperrors.UnsupportedFormat(header.Filename))
		return
	}
	if header.Size > h.maxFileSize*1024*1024 {
		h.fail(c, apperrors.FileTooLarge(h.maxFileSize))
		return
	}
	dryRun, _ := strconv.ParseBool(c.DefaultQuery("dry_run", "false"))

	src, err := header.Open()
	if err != nil {
		h.fail(c, apperrors.InvalidFile("uploaded file could not be read"))
		return
	}
	defer src.Close()

	ctx := c.Request.Context()
	fileID := uuid.NewString()
	meta, err := h.uploads.SaveUpload(ctx, fileID, header.Filename, src)
	if err != nil {
		h.fail(c, apperrors.StorageError(err, "failed to store upload"))
		return
	}
	defer func() {
		if err := h.uploads.DeleteUpload(context.WithoutCancel(ctx), fileID); err != nil {
			h.logger.Warn("failed to delete upload", slog.String("file_id", fileID), "error", err)
		}
	}()

	stored, err := os.Open(meta.StoredPath)
	if err != nil {
		h.fail(c, apperrors.StorageError(err, "failed to reopen upload"))
		return
	}
	defer stored.Close()

	if dryRun {
		res := h.processor.Preview(ctx, meta.OriginalName, stored)
		c.JSON(statusFor(res), res)
		return
	}

	outcome := h.processor.ProcessDocument(ctx, meta.OriginalName, stored)
	h.logger.Info("invoice processed",
		slog.String("file", meta.OriginalName),
		slog.String("status", string(outcome.Status)),
		slog.Duration("duration", outcome.Duration))
	c.JSON(statusFor(outcome.Result), outcome)
}

// ListBatches returns the latest batch runs
func (h *Handler) ListBatches(c *gin.Context) {
	if h.batches == nil {
		h.fail(c, apperrors.NotFound("batch history is not available"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	batches, err := h.batches.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

// GetBatch returns one batch run
func (h *Handler) GetBatch(c *gin.Context) {
	if h.batches == nil {
		h.fail(c, apperrors.NotFound("batch history is not available"))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.fail(c, apperrors.BadRequest("invalid batch id"))
		return
	}
	batch, err := h.batches.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// Health reports every registered dependency; any unhealthy one yields 503
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]interface{}, len(h.checks))
	for name, check := range h.checks {
		report := check(ctx)
		if report["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		deps[name] = report
	}

	overall := "up"
	if status != http.StatusOK {
		overall = "down"
	}
	c.JSON(status, gin.H{"status": overall, "dependencies": deps})
}

func (h *Handler) fail(c *gin.Context, err error) {
	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		appErr = apperrors.InternalWrap(err, "unexpected error")
	}
	if appErr.StatusCode >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", c.FullPath()),
			"error", err)
	}
	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{"error": appErr})
}

// statusFor maps a rejected document to 422 so clients can tell it from transport errors
func statusFor(res pipeline.Result) int {
	if res.OK() {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}
