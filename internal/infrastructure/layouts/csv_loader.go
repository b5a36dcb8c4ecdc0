package layouts

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/extraction"
)

var requiredColumns = []string{"name", "role", "x", "y", "width", "height"}

// CSVLoader reads one zone per row under a header naming the columns:
// name, role, x, y, width, height and an optional whitelist.
type CSVLoader struct{}

func NewCSVLoader() *CSVLoader {
	return &CSVLoader{}
}

// Load reads a CSV layout file from disk
func (l *CSVLoader) Load(ctx context.Context, filePath string) (extraction.Layout, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return extraction.Layout{}, fmt.Errorf("failed to open layout file: %w", err)
	}
	defer file.Close()

	name := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	return l.LoadStream(ctx, name, file)
}

// LoadStream parses CSV rows into zones, in file order
func (l *CSVLoader) LoadStream(ctx context.Context, name string, r io.Reader) (extraction.Layout, error) {
	csvReader := csv.NewReader(io.LimitReader(r, maxLayoutFileSize))
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if err != nil {
		return extraction.Layout{}, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return extraction.Layout{}, fmt.Errorf("layout CSV is missing column %q", col)
		}
	}

	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		if col == "whitelist" {
			// spaces are meaningful characters of a whitelist
			return row[i]
		}
		return strings.TrimSpace(row[i])
	}

	layout := extraction.Layout{Name: name}
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return extraction.Layout{}, err
		}

		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return extraction.Layout{}, fmt.Errorf("line %d: %w", line, err)
		}
		if isEmptyRow(row) {
			continue
		}

		zone := extraction.Zone{
			Name:      cell(row, "name"),
			Role:      extraction.Role(strings.ToLower(cell(row, "role"))),
			Whitelist: cell(row, "whitelist"),
		}
		for col, dst := range map[string]*int{"x": &zone.X, "y": &zone.Y, "width": &zone.Width, "height": &zone.Height} {
			v, err := strconv.Atoi(cell(row, col))
			if err != nil {
				return extraction.Layout{}, fmt.Errorf("line %d: invalid %s: %w", line, col, err)
			}
			*dst = v
		}
		layout.Zones = append(layout.Zones, zone)
	}

	if err := layout.Validate(); err != nil {
		return extraction.Layout{}, err
	}
	return layout, nil
}

// SupportedFormats returns the file extensions this loader supports
func (l *CSVLoader) SupportedFormats() []string {
	return []string{".csv"}
}

// isEmptyRow checks if a row contains only empty strings
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
