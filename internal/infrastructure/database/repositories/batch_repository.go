package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/domain"
	apperrors "github.com/MelodyDuplaix/Projet-OCR/internal/pkg/errors"
)

// BatchRepository stores ingestion batch summaries
type BatchRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewBatchRepository(db *gorm.DB, logger *slog.Logger) *BatchRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchRepository{db: db, logger: logger}
}

// Create inserts a new batch; the id is assigned by the BeforeCreate hook
func (r *BatchRepository) Create(ctx context.Context, batch *domain.IngestionBatch) error {
	if err := r.db.WithContext(ctx).Create(batch).Error; err != nil {
		r.logger.Error("failed to create batch",
			slog.String("source", batch.Source),
			"error", err)
		return fmt.Errorf("failed to create batch: %w", err)
	}
	return nil
}

// Update saves the counters and status of a batch
func (r *BatchRepository) Update(ctx context.Context, batch *domain.IngestionBatch) error {
	err := r.db.WithContext(ctx).
		Model(batch).
		Select("status", "total_files", "succeeded", "failed", "duplicates_skipped", "already_ingested", "completed_at").
		Updates(batch).
		Error
	if err != nil {
		r.logger.Error("failed to update batch",
			slog.String("batch_id", batch.ID.String()),
			"error", err)
		return fmt.Errorf("failed to update batch: %w", err)
	}
	return nil
}

// Get returns a batch by id
func (r *BatchRepository) Get(ctx context.Context, id uuid.UUID) (*domain.IngestionBatch, error) {
	var batch domain.IngestionBatch
	err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.RecordNotFound("batch")
	}
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return &batch, nil
}

// ListRecent returns the latest batches, newest first
func (r *BatchRepository) ListRecent(ctx context.Context, limit int) ([]domain.IngestionBatch, error) {
	if limit <= 0 {
		limit = 20
	}
	var batches []domain.IngestionBatch
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&batches).
		Error
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return batches, nil
}
