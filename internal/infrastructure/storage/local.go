package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// LocalStorage reads invoice images from a directory and stores uploads and
// processed files under a working directory.
type LocalStorage struct {
	sourceDir string
	basePath  string
	logger    *slog.Logger
}

// LocalStorageConfig for local storage
type LocalStorageConfig struct {
	SourceDir string // Directory scanned for invoice images
	BasePath  string // Working directory for uploads and exports
}

// FileMetadata contains information about stored files
type FileMetadata struct {
	ID           string
	OriginalName string
	StoredPath   string
	Size         int64
	Hash         string
	ContentType  string
	CreatedAt    time.Time
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(cfg *LocalStorageConfig, logger *slog.Logger) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &LocalStorage{
		sourceDir: cfg.SourceDir,
		basePath:  cfg.BasePath,
		logger:    logger,
	}, nil
}

// Describe returns the source directory
func (s *LocalStorage) Describe() string {
	return s.sourceDir
}

// List returns the image files of the source directory, sorted by name
func (s *LocalStorage) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsImage(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Open opens an image of the source directory
func (s *LocalStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(s.sourceDir, filepath.Base(name)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", name)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// SaveUpload saves an uploaded image and returns metadata
func (s *LocalStorage) SaveUpload(ctx context.Context, fileID string, filename string, reader io.Reader) (*FileMetadata, error) {
	uploadDir := filepath.Join(s.basePath, "uploads", fileID)
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	safeName := filepath.Base(filename)
	destPath := filepath.Join(uploadDir, safeName)

	destFile, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destFile.Close()

	// Calculate hash while copying
	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(destFile, hash), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to copy file: %w", err)
	}

	fileHash := hex.EncodeToString(hash.Sum(nil))

	metadata := &FileMetadata{
		ID:           fileID,
		OriginalName: safeName,
		StoredPath:   destPath,
		Size:         size,
		Hash:         fileHash,
		ContentType:  getContentType(filename),
		CreatedAt:    time.Now(),
	}

	s.logger.Info("file uploaded successfully",
		slog.String("file_id", fileID),
		slog.String("filename", safeName),
		slog.Int64("size", size),
		slog.String("hash", fileHash))

	return metadata, nil
}

// DeleteUpload removes an uploaded image once it has been processed
func (s *LocalStorage) DeleteUpload(ctx context.Context, fileID string) error {
	uploadDir := filepath.Join(s.basePath, "uploads", fileID)
	if err := os.RemoveAll(uploadDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete upload directory: %w", err)
	}
	return nil
}

// SaveProcessedFile saves a generated file such as an export archive
func (s *LocalStorage) SaveProcessedFile(ctx context.Context, runID string, fileType string, filename string, data []byte) (string, error) {
	processedDir := filepath.Join(s.basePath, "processed", runID, fileType)
	if err := os.MkdirAll(processedDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create processed directory: %w", err)
	}

	filePath := filepath.Join(processedDir, filepath.Base(filename))
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write processed file: %w", err)
	}

	s.logger.Info("processed file saved",
		slog.String("run_id", runID),
		slog.String("type", fileType),
		slog.String("filename", filename),
		slog.Int("size", len(data)))

	return filePath, nil
}

// CleanupOldFiles removes upload directories older than the specified duration
func (s *LocalStorage) CleanupOldFiles(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	dir := filepath.Join(s.basePath, "uploads")

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to cleanup uploads: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirPath := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("failed to get file info",
				slog.String("path", dirPath),
				slog.Any("error", err))
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(dirPath); err != nil {
				s.logger.Warn("failed to remove directory",
					slog.String("path", dirPath),
					slog.Any("error", err))
			}
		}
	}

	s.logger.Info("cleanup completed",
		slog.Duration("older_than", olderThan))

	return nil
}
