package layouts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/extraction"
)

// JSONLoader reads either {"name": ..., "zones": [...]} or a bare zone array
type JSONLoader struct{}

func NewJSONLoader() *JSONLoader {
	return &JSONLoader{}
}

// Load reads a JSON layout file from disk
func (l *JSONLoader) Load(ctx context.Context, filePath string) (extraction.Layout, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return extraction.Layout{}, fmt.Errorf("failed to open layout file: %w", err)
	}
	defer file.Close()

	name := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	return l.LoadStream(ctx, name, file)
}

// LoadStream decodes a JSON layout
func (l *JSONLoader) LoadStream(ctx context.Context, name string, r io.Reader) (extraction.Layout, error) {
	if err := ctx.Err(); err != nil {
		return extraction.Layout{}, err
	}

	data, err := io.ReadAll(io.LimitReader(r, maxLayoutFileSize+1))
	if err != nil {
		return extraction.Layout{}, fmt.Errorf("failed to read layout: %w", err)
	}
	if len(data) > maxLayoutFileSize {
		return extraction.Layout{}, fmt.Errorf("layout file exceeds %d bytes", maxLayoutFileSize)
	}

	var layout extraction.Layout
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &layout.Zones); err != nil {
			return extraction.Layout{}, fmt.Errorf("failed to decode layout zones: %w", err)
		}
	} else if err := json.Unmarshal(data, &layout); err != nil {
		return extraction.Layout{}, fmt.Errorf("failed to decode layout: %w", err)
	}

	if layout.Name == "" {
		layout.Name = name
	}
	if err := layout.Validate(); err != nil {
		return extraction.Layout{}, err
	}
	return layout, nil
}

// SupportedFormats returns the file extensions this loader supports
func (l *JSONLoader) SupportedFormats() []string {
	return []string{".json"}
}
