package layouts

import (
	"context"
	"io"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/extraction"
)

// LayoutLoader reads a zone layout from one file format
type LayoutLoader interface {
	// Load reads and validates the layout stored at filePath
	Load(ctx context.Context, filePath string) (extraction.Layout, error)

	// LoadStream reads a layout from r; name is used when the file has none
	LoadStream(ctx context.Context, name string, r io.Reader) (extraction.Layout, error)

	// SupportedFormats returns the file extensions this loader supports
	SupportedFormats() []string
}

// maxLayoutFileSize bounds layout files; a template has a handful of zones
const maxLayoutFileSize = 1 << 20
