package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig for object storage
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string // Object prefix holding the invoice images
	UseSSL    bool
}

// MinioStorage reads invoice images from a bucket and stores exports next to them
type MinioStorage struct {
	client *minio.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewMinioStorage connects to the bucket, creating it when missing
func NewMinioStorage(ctx context.Context, cfg *MinioConfig, logger *slog.Logger) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("bucket created", slog.String("bucket", cfg.Bucket))
	}

	logger.Info("minio connection established",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("bucket", cfg.Bucket))

	return &MinioStorage{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger,
	}, nil
}

// Describe returns the bucket URL
func (s *MinioStorage) Describe() string {
	return "minio://" + path.Join(s.bucket, s.prefix)
}

func (s *MinioStorage) objectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// List returns the image objects directly under the prefix
func (s *MinioStorage) List(ctx context.Context) ([]string, error) {
	listPrefix := ""
	if s.prefix != "" {
		listPrefix = s.prefix + "/"
	}

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: listPrefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, listPrefix)
		if name == "" || strings.Contains(name, "/") || !IsImage(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Open streams one image object
func (s *MinioStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", name, err)
	}
	return obj, nil
}

// SaveProcessedFile uploads a generated file under processed/<runID>/<fileType>/
func (s *MinioStorage) SaveProcessedFile(ctx context.Context, runID string, fileType string, filename string, data []byte) (string, error) {
	objectName := path.Join("processed", runID, fileType, path.Base(filename))
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: getContentType(filename),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	s.logger.Info("processed file uploaded",
		slog.String("bucket", s.bucket),
		slog.String("object", objectName),
		slog.Int("size", len(data)))

	return "minio://" + s.bucket + "/" + objectName, nil
}
