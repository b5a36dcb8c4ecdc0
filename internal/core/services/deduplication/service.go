package deduplication

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service implements the Deduplicator interface
type Service struct {
	config   Config
	hashRepo HashRepository
	logger   *slog.Logger
}

// NewService creates a new deduplication service
func NewService(config Config, hashRepo HashRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		config:   config,
		hashRepo: hashRepo,
		logger:   logger,
	}
}

// Deduplicate performs two-level deduplication
func (s *Service) Deduplicate(ctx context.Context, batchID uuid.UUID, docs []Document) (*DeduplicationResult, error) {
	startTime := time.Now()

	s.logger.Info("starting deduplication",
		slog.String("batch_id", batchID.String()),
		slog.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return &DeduplicationResult{Documents: []Document{}}, nil
	}

	// Level 1: Within-batch deduplication
	unique, removed := s.deduplicateLevel1(docs)
	level1Duplicates := len(removed)

	s.logger.Info("level 1 deduplication completed",
		slog.Int("duplicates_removed", level1Duplicates))

	// Level 2: Cross-batch deduplication (if enabled)
	level2Duplicates := 0
	if s.config.EnableLevel2 && s.hashRepo != nil {
		var level2Removed []Document
		unique, level2Removed = s.deduplicateLevel2(ctx, unique)
		level2Duplicates = len(level2Removed)
		removed = append(removed, level2Removed...)

		s.logger.Info("level 2 deduplication completed",
			slog.Int("duplicates_removed", level2Duplicates))
	}

	processingTime := time.Since(startTime).Milliseconds()

	result := &DeduplicationResult{
		OriginalCount:     len(docs),
		DeduplicatedCount: len(unique),
		RemovedCount:      len(docs) - len(unique),
		Documents:         unique,
		Removed:           removed,
		Stats: DeduplicationStats{
			Level1Duplicates: level1Duplicates,
			Level2Duplicates: level2Duplicates,
			UniqueDocuments:  len(unique),
			ProcessingTimeMs: processingTime,
		},
	}

	s.logger.Info("deduplication completed",
		slog.Int("original_count", result.OriginalCount),
		slog.Int("final_count", result.DeduplicatedCount),
		slog.Int("removed_count", result.RemovedCount),
		slog.Int64("processing_time_ms", processingTime))

	return result, nil
}

// deduplicateLevel1 keeps the first document of every hash within the batch
func (s *Service) deduplicateLevel1(docs []Document) (unique, removed []Document) {
	seen := make(map[string]bool)
	unique = make([]Document, 0, len(docs))

	for _, doc := range docs {
		if doc.Hash == "" {
			s.logger.Warn("document without hash, keeping",
				slog.String("file", doc.Name))
			unique = append(unique, doc)
			continue
		}

		if !seen[doc.Hash] {
			seen[doc.Hash] = true
			unique = append(unique, doc)
		} else {
			removed = append(removed, doc)
			s.logger.Debug("level 1 duplicate found",
				slog.String("hash", doc.Hash),
				slog.String("file", doc.Name))
		}
	}

	return unique, removed
}

// deduplicateLevel2 drops documents that an earlier batch already ingested
func (s *Service) deduplicateLevel2(ctx context.Context, docs []Document) (unique, removed []Document) {
	unique = make([]Document, 0, len(docs))

	for _, doc := range docs {
		if doc.Hash == "" {
			unique = append(unique, doc)
			continue
		}

		exists, err := s.hashRepo.CheckHashExists(ctx, doc.Hash)
		if err != nil {
			s.logger.Error("failed to check hash existence",
				slog.String("hash", doc.Hash),
				"error", err)
			// On error, keep the document (fail-open); ingestion is idempotent anyway
			unique = append(unique, doc)
			continue
		}

		if !exists {
			unique = append(unique, doc)
		} else {
			removed = append(removed, doc)
			s.logger.Debug("level 2 duplicate found (cross-batch)",
				slog.String("hash", doc.Hash),
				slog.String("file", doc.Name))
		}
	}

	return unique, removed
}

// Record stores the hashes of processed documents. Only documents present in
// ingested are marked kept, so failed files are retried by the next batch.
func (s *Service) Record(ctx context.Context, batchID uuid.UUID, docs []Document, ingested map[string]bool) error {
	if !s.config.StoreHashes || s.hashRepo == nil || len(docs) == 0 {
		return nil
	}

	entries := make([]HashEntry, 0, len(docs))
	for _, doc := range docs {
		if doc.Hash == "" {
			continue
		}
		entries = append(entries, HashEntry{
			Hash:       doc.Hash,
			SourceFile: doc.Name,
			Kept:       ingested[doc.Name],
		})
	}

	if err := s.hashRepo.SaveHashes(ctx, batchID, entries); err != nil {
		s.logger.Error("failed to store hashes",
			slog.String("batch_id", batchID.String()),
			"error", err)
		return err
	}
	return nil
}

// GetConfig returns the current configuration
func (s *Service) GetConfig() Config {
	return s.config
}
