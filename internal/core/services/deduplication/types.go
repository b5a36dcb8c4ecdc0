package deduplication

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Document is one source image identified by the hash of its bytes
type Document struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Hash  string `json:"hash"`
}

// DeduplicationResult contains the result of deduplication
type DeduplicationResult struct {
	OriginalCount     int                `json:"original_count"`
	DeduplicatedCount int                `json:"deduplicated_count"`
	RemovedCount      int                `json:"removed_count"`
	Documents         []Document         `json:"documents"`
	Removed           []Document         `json:"removed,omitempty"`
	Stats             DeduplicationStats `json:"stats"`
}

// DeduplicationStats provides detailed statistics
type DeduplicationStats struct {
	Level1Duplicates int   `json:"level1_duplicates"` // Same bytes twice in one batch
	Level2Duplicates int   `json:"level2_duplicates"` // Already ingested by an earlier batch
	UniqueDocuments  int   `json:"unique_documents"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// Config for deduplication service
type Config struct {
	EnableLevel2 bool `json:"enable_level2"` // Skip documents a previous batch already ingested
	StoreHashes  bool `json:"store_hashes"`  // Persist hashes after processing
}

// DefaultConfig returns default deduplication configuration
func DefaultConfig() Config {
	return Config{
		EnableLevel2: true,
		StoreHashes:  true,
	}
}

// HashRepository defines the interface for hash storage
type HashRepository interface {
	// CheckHashExists reports whether any batch kept (ingested) this hash
	CheckHashExists(ctx context.Context, hash string) (bool, error)

	// SaveHashes stores document hashes for a batch
	SaveHashes(ctx context.Context, batchID uuid.UUID, hashes []HashEntry) error

	// GetBatchHashes retrieves all hashes for a specific batch
	GetBatchHashes(ctx context.Context, batchID uuid.UUID) ([]HashEntry, error)
}

// HashEntry represents a hash entry to be stored
type HashEntry struct {
	Hash       string
	SourceFile string
	Kept       bool
}

// Deduplicator defines the interface for deduplication operations
type Deduplicator interface {
	// Deduplicate drops repeated documents before processing
	Deduplicate(ctx context.Context, batchID uuid.UUID, docs []Document) (*DeduplicationResult, error)

	// Record persists the outcome of processing; ingested marks kept hashes
	Record(ctx context.Context, batchID uuid.UUID, docs []Document, ingested map[string]bool) error

	// GetConfig returns the current configuration
	GetConfig() Config
}

// HashContent returns the hex SHA-256 of everything read from r
func HashContent(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
