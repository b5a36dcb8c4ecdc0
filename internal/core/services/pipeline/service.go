package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/domain"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/extraction"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/ingestion"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/normalization"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/parsing"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/validation"
	apperrors "github.com/MelodyDuplaix/Projet-OCR/internal/pkg/errors"
	"github.com/MelodyDuplaix/Projet-OCR/internal/pkg/logger"
)

// Status tags an extraction result
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the outcome of extracting one image: entities on success,
// the joined error message otherwise. Never both.
type Result struct {
	Status     Status            `json:"status"`
	SourceFile string            `json:"source_file"`
	Entities   *domain.EntitySet `json:"entities"`
	Error      *string           `json:"error"`
}

// OK reports whether entities were produced
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// ErrorMessage returns the error text or ""
func (r Result) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

func success(sourceFile string, set *domain.EntitySet) Result {
	return Result{Status: StatusSuccess, SourceFile: sourceFile, Entities: set}
}

func failure(sourceFile, message string) Result {
	return Result{Status: StatusError, SourceFile: sourceFile, Error: &message}
}

// ZoneExtractor reads the zone texts of an image
type ZoneExtractor interface {
	Extract(ctx context.Context, img image.Image) (*extraction.Result, error)
}

// FileOutcome is the result of ProcessDocument
type FileOutcome struct {
	Result
	Inserted *ingestion.InsertedCounts `json:"inserted,omitempty"`
	Duration time.Duration             `json:"duration"`
}

// Service chains extraction, parsing, validation, normalization and ingestion
type Service struct {
	extractor   ZoneExtractor
	parser      *parsing.Parser
	validator   *validation.Validator
	normalizer  *normalization.Normalizer
	writer      *ingestion.Writer
	fileTimeout time.Duration
	logger      *slog.Logger
}

// NewService wires the stages; fileTimeout <= 0 disables the per-file deadline.
func NewService(extractor ZoneExtractor, writer *ingestion.Writer, fileTimeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		extractor:   extractor,
		parser:      parsing.NewParser(logger),
		validator:   validation.NewValidator(logger),
		normalizer:  normalization.NewNormalizer(logger),
		writer:      writer,
		fileTimeout: fileTimeout,
		logger:      logger,
	}
}

// Extract runs every stage up to normalization on img. It never returns an
// error: failures are reported in the Result.
func (s *Service) Extract(ctx context.Context, sourceFile string, img image.Image) Result {
	zones, err := s.extractor.Extract(ctx, img)
	if err != nil {
		return failure(sourceFile, err.Error())
	}

	fields := s.parser.Parse(sourceFile, zones)
	outcome := s.validator.Validate(fields)
	if !outcome.OK() {
		s.logger.Info("document rejected",
			slog.String("file", sourceFile),
			slog.String("errors", outcome.Message()))
		return failure(sourceFile, outcome.Message())
	}

	return success(sourceFile, s.normalizer.Normalize(outcome.Bundle))
}

// ExtractReader decodes an image stream, honouring EXIF orientation
func (s *Service) ExtractReader(ctx context.Context, sourceFile string, r io.Reader) Result {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return failure(sourceFile, apperrors.InvalidImage(err).Error())
	}
	return s.Extract(ctx, sourceFile, img)
}

// ExtractFile opens and extracts an image on disk
func (s *Service) ExtractFile(ctx context.Context, path string) Result {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return failure(path, apperrors.InvalidImage(err).Error())
	}
	return s.Extract(ctx, path, img)
}

// Ingest writes a successful extraction's entities
func (s *Service) Ingest(ctx context.Context, set *domain.EntitySet) (*ingestion.InsertedCounts, error) {
	return s.writer.Ingest(ctx, set)
}

// RecordError stores an IngestionError row for a rejected document
func (s *Service) RecordError(ctx context.Context, sourceFile, message string) error {
	return s.writer.RecordError(ctx, sourceFile, message)
}

// ProcessDocument extracts and ingests one image within the file timeout.
// A document that fails at any stage gets an IngestionError row.
func (s *Service) ProcessDocument(ctx context.Context, name string, r io.Reader) FileOutcome {
	start := time.Now()
	fileCtx, cancel := s.withFileTimeout(ctx)
	defer cancel()

	result := s.extractWithDeadline(fileCtx, name, r)
	outcome := FileOutcome{Result: result}

	if result.OK() {
		counts, err := s.Ingest(fileCtx, result.Entities)
		if err != nil {
			outcome.Result = failure(name, s.describeFailure(fileCtx, name, err))
		} else {
			outcome.Inserted = counts
		}
	}

	if !outcome.OK() {
		// the error row must be written even when the file ran out of time
		recordCtx, cancelRecord := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if err := s.RecordError(recordCtx, name, outcome.ErrorMessage()); err != nil {
			logger.ForFile(s.logger, name).Error("failed to record document failure", "error", err)
		}
		cancelRecord()
	}

	outcome.Duration = time.Since(start)
	return outcome
}

// Preview extracts without ingesting, bounded by the same file timeout as
// ProcessDocument. Nothing is written, not even an IngestionError row.
func (s *Service) Preview(ctx context.Context, name string, r io.Reader) Result {
	fileCtx, cancel := s.withFileTimeout(ctx)
	defer cancel()
	return s.extractWithDeadline(fileCtx, name, r)
}

func (s *Service) withFileTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.fileTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.fileTimeout)
}

// extractWithDeadline runs extraction in its own goroutine because OCR engines
// cannot be interrupted; the goroutine stops at the next zone once ctx is done.
func (s *Service) extractWithDeadline(ctx context.Context, name string, r io.Reader) Result {
	done := make(chan Result, 1)
	go func() {
		done <- s.ExtractReader(ctx, name, r)
	}()

	select {
	case res := <-done:
		if !res.OK() && ctx.Err() != nil {
			return failure(name, s.describeFailure(ctx, name, ctx.Err()))
		}
		return res
	case <-ctx.Done():
		return failure(name, s.describeFailure(ctx, name, ctx.Err()))
	}
}

func (s *Service) describeFailure(ctx context.Context, name string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		return apperrors.ExtractionTimeout(name, err).Error()
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Sprintf("processing of %s cancelled", name)
	}
	return err.Error()
}
