package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/domain"
)

const archiveVersion = "1.0"

// Generator builds JSON archives of ingested invoices
type Generator struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewGenerator creates a new archive generator
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GenerateArchive builds one archive holding every document
func (g *Generator) GenerateArchive(runID string, docs []Document, config GeneratorConfig) (*Archive, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents provided")
	}

	records := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Entities == nil {
			g.logger.Warn("skipping document without entities",
				slog.String("file", doc.SourceFile))
			continue
		}
		if config.OmitRawText {
			set := *doc.Entities
			set.Invoice.RawText = ""
			doc.Entities = &set
		}
		records = append(records, doc)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no documents with entities")
	}

	archive := &Archive{
		Metadata: ArchiveMetadata{
			RunID:          runID,
			TotalDocuments: len(records),
			GeneratedAt:    g.now(),
			Version:        archiveVersion,
		},
		Documents: records,
		Stats:     summarize(records),
	}

	g.logger.Debug("archive generated",
		slog.String("run_id", runID),
		slog.Int("documents", archive.Stats.Documents),
		slog.String("total_amount", archive.Stats.TotalAmount.StringFixed(2)))

	return archive, nil
}

// GenerateChunks splits documents into archives of at most config.ChunkSize
func (g *Generator) GenerateChunks(runID string, docs []Document, config GeneratorConfig) ([]*Archive, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk_size must be greater than 0")
	}

	total := len(docs)
	totalChunks := (total + config.ChunkSize - 1) / config.ChunkSize
	chunks := make([]*Archive, 0, totalChunks)

	for i := 0; i < totalChunks; i++ {
		start := i * config.ChunkSize
		end := start + config.ChunkSize
		if end > total {
			end = total
		}

		archive, err := g.GenerateArchive(runID, docs[start:end], config)
		if err != nil {
			return nil, fmt.Errorf("failed to generate chunk %d: %w", i, err)
		}
		archive.Metadata.ChunkNumber = i + 1
		archive.Metadata.TotalChunks = totalChunks
		chunks = append(chunks, archive)
	}

	g.logger.Info("archives generated",
		slog.String("run_id", runID),
		slog.Int("chunk_count", len(chunks)))

	return chunks, nil
}

// ToJSON serializes the archive
func (g *Generator) ToJSON(archive *Archive, compact bool) ([]byte, error) {
	if compact {
		return json.Marshal(archive)
	}
	return json.MarshalIndent(archive, "", "  ")
}

// FileName returns the name an archive chunk is stored under
func FileName(archive *Archive) string {
	if archive.Metadata.ChunkNumber > 0 {
		return fmt.Sprintf("entities_%04d.json", archive.Metadata.ChunkNumber)
	}
	return "entities.json"
}

// ValidateArchive checks an archive before it is stored
func (g *Generator) ValidateArchive(archive *Archive) error {
	if archive == nil {
		return fmt.Errorf("archive is nil")
	}
	if len(archive.Documents) == 0 {
		return fmt.Errorf("no documents in archive")
	}

	seen := make(map[string]bool, len(archive.Documents))
	for _, doc := range archive.Documents {
		if seen[doc.SourceFile] {
			return fmt.Errorf("duplicate source file: %s", doc.SourceFile)
		}
		seen[doc.SourceFile] = true

		if doc.Entities == nil || doc.Entities.Invoice.ID == "" {
			return fmt.Errorf("document %s has no invoice", doc.SourceFile)
		}
	}
	return nil
}

func summarize(docs []Document) ArchiveStats {
	clients := make(map[string]bool)
	products := make(map[string]bool)
	stats := ArchiveStats{Documents: len(docs), TotalAmount: decimal.Zero}

	for _, doc := range docs {
		set := doc.Entities
		clients[set.Client.ID] = true
		for _, p := range set.Products {
			products[p.ID] = true
		}
		stats.Purchases += len(set.Purchases)
		stats.TotalAmount = stats.TotalAmount.Add(set.Invoice.Total)
	}
	stats.Clients = len(clients)
	stats.Products = len(products)
	return stats
}

// DocumentFromSet wraps an entity set with per-table insert counts
func DocumentFromSet(set *domain.EntitySet, inserted map[string]int) Document {
	return Document{
		SourceFile: set.SourceFile,
		Entities:   set,
		Inserted:   inserted,
	}
}
