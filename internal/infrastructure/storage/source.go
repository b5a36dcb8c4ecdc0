package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"
)

// Source lists and opens invoice images
type Source interface {
	// List returns image names, sorted
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Describe names the source for batch records
	Describe() string
}

// ArchiveWriter stores generated files such as export archives
type ArchiveWriter interface {
	SaveProcessedFile(ctx context.Context, runID string, fileType string, filename string, data []byte) (string, error)
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// IsImage reports whether name has a supported image extension
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// getContentType returns the content type based on file extension
func getContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".json":
		return "application/json"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
