package export

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/domain"
)

// Document is one ingested invoice and what its ingestion wrote
type Document struct {
	SourceFile string            `json:"source_file"`
	Entities   *domain.EntitySet `json:"entities"`
	Inserted   map[string]int    `json:"inserted,omitempty"`
}

// GeneratorConfig controls archive generation
type GeneratorConfig struct {
	// Maximum documents per archive file
	ChunkSize int `json:"chunk_size"`

	// Drop the raw OCR text of each invoice
	OmitRawText bool `json:"omit_raw_text"`

	// Compact mode: minimal whitespace
	CompactMode bool `json:"compact_mode"`
}

// DefaultGeneratorConfig returns the configuration used by batch runs
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		ChunkSize:   100,
		CompactMode: false,
	}
}

// WithChunkSize creates a config with custom chunk size
func (c GeneratorConfig) WithChunkSize(size int) GeneratorConfig {
	c.ChunkSize = size
	return c
}

// Archive is the JSON record of a set of successfully ingested invoices
type Archive struct {
	Metadata  ArchiveMetadata `json:"metadata"`
	Documents []Document      `json:"documents"`
	Stats     ArchiveStats    `json:"stats"`
}

// ArchiveMetadata identifies the run and chunk
type ArchiveMetadata struct {
	RunID          string    `json:"run_id"`
	TotalDocuments int       `json:"total_documents"`
	ChunkNumber    int       `json:"chunk_number,omitempty"`
	TotalChunks    int       `json:"total_chunks,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
	Version        string    `json:"version"`
}

// ArchiveStats summarizes the documents of an archive
type ArchiveStats struct {
	Documents   int             `json:"documents"`
	Clients     int             `json:"distinct_clients"`
	Products    int             `json:"distinct_products"`
	Purchases   int             `json:"purchases"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}
