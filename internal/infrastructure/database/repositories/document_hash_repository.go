package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/domain"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/deduplication"
)

// DocumentHashRepository implements deduplication.HashRepository using GORM
type DocumentHashRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewDocumentHashRepository creates a new repository instance
func NewDocumentHashRepository(db *gorm.DB, logger *slog.Logger) *DocumentHashRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &DocumentHashRepository{
		db:     db,
		logger: logger,
	}
}

// CheckHashExists reports whether any batch ingested a document with this hash
func (r *DocumentHashRepository) CheckHashExists(ctx context.Context, hash string) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&domain.DocumentHash{}).
		Where("hash = ? AND kept = ?", hash, true).
		Count(&count).
		Error

	if err != nil {
		r.logger.Error("failed to check hash existence",
			slog.String("hash", hash),
			"error", err)
		return false, fmt.Errorf("database query failed: %w", err)
	}

	return count > 0, nil
}

// SaveHashes stores document hashes for a batch
func (r *DocumentHashRepository) SaveHashes(ctx context.Context, batchID uuid.UUID, hashes []deduplication.HashEntry) error {
	if len(hashes) == 0 {
		return nil
	}

	rows := make([]domain.DocumentHash, 0, len(hashes))
	for _, entry := range hashes {
		rows = append(rows, domain.DocumentHash{
			ID:         uuid.New(),
			BatchID:    batchID,
			Hash:       entry.Hash,
			SourceFile: entry.SourceFile,
			Kept:       entry.Kept,
		})
	}

	err := r.db.WithContext(ctx).
		CreateInBatches(rows, 1000).
		Error

	if err != nil {
		r.logger.Error("failed to save hashes",
			slog.String("batch_id", batchID.String()),
			slog.Int("hash_count", len(hashes)),
			"error", err)
		return fmt.Errorf("failed to insert hashes: %w", err)
	}

	r.logger.Info("saved document hashes",
		slog.String("batch_id", batchID.String()),
		slog.Int("hash_count", len(hashes)))

	return nil
}

// GetBatchHashes retrieves all hashes for a specific batch
func (r *DocumentHashRepository) GetBatchHashes(ctx context.Context, batchID uuid.UUID) ([]deduplication.HashEntry, error) {
	var rows []domain.DocumentHash

	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("source_file ASC").
		Find(&rows).
		Error

	if err != nil {
		r.logger.Error("failed to get batch hashes",
			slog.String("batch_id", batchID.String()),
			"error", err)
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	entries := make([]deduplication.HashEntry, 0, len(rows))
	for _, dh := range rows {
		entries = append(entries, deduplication.HashEntry{
			Hash:       dh.Hash,
			SourceFile: dh.SourceFile,
			Kept:       dh.Kept,
		})
	}

	return entries, nil
}

// GetDuplicateCount returns how many documents of a batch were not ingested
func (r *DocumentHashRepository) GetDuplicateCount(ctx context.Context, batchID uuid.UUID) (int64, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&domain.DocumentHash{}).
		Where("batch_id = ? AND kept = ?", batchID, false).
		Count(&count).
		Error

	if err != nil {
		return 0, fmt.Errorf("database query failed: %w", err)
	}

	return count, nil
}
