package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/deduplication"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/extraction"
)

const (
	whitakerProducts   = "Shirt Blue Cotton Large\nCoffee Mug\nNotebook A5 Lined\nDesk Lamp LED\nTOTAL\n"
	whitakerQuantities = "2 x 15.50 Euro\n1 x 8.99 Euro\n3 x 4.21 Euro\n1 x 39.00 Euro\n91.62 Euro\n"
)

// invoiceResult builds the zone texts of invoice number n, issued on issueDay.
func invoiceResult(n int, issueDay string, total string) *extraction.Result {
	header := fmt.Sprintf("INVOICE FAC/2023/%04d-118\nIssue date %s\nBill to Ryan Whitaker\n"+
		"Email ryan.whitaker@example.com\nAddress 12 Elm Street\nLeeds\n", n, issueDay)
	quantities := whitakerQuantities
	if total != "" {
		quantities = "2 x 15.50 Euro\n1 x 8.99 Euro\n3 x 4.21 Euro\n1 x 39.00 Euro\n" + total + " Euro\n"
	}
	return &extraction.Result{
		Layout: extraction.DefaultLayout(),
		Texts: map[string]string{
			"Products":              whitakerProducts,
			"Quantities_and_prices": quantities,
			"Qrcode":                "",
			"bloc":                  header,
		},
		QR: &extraction.QRPayload{
			InvoiceReference: fmt.Sprintf("2023-%04d-118", n),
			IssuedAtText:     "2023-05-01 10:12:00",
			Gender:           "M",
			BirthdateText:    "1985-03-14",
		},
	}
}

func invoiceName(n int) string {
	return fmt.Sprintf("FAC_2023_%04d-118.png", n)
}

// fakeExtractor returns canned zone texts keyed by image width
type fakeExtractor struct {
	byWidth map[int]*extraction.Result
	delay   time.Duration
	err     error
}

func (f *fakeExtractor) Extract(ctx context.Context, img image.Image) (*extraction.Result, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	res, ok := f.byWidth[img.Bounds().Dx()]
	if !ok {
		return nil, fmt.Errorf("no fixture for width %d", img.Bounds().Dx())
	}
	return res, nil
}

// pngOfWidth encodes a 1-pixel-high image; the width identifies the fixture
func pngOfWidth(t testing.TB, w int) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, 1))))
	return buf.Bytes()
}

// memSource is an in-memory Source
type memSource struct {
	files map[string][]byte
}

func (m *memSource) List(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memSource) Describe() string { return "memory" }

// memHashRepo is an in-memory deduplication.HashRepository
type memHashRepo struct {
	mu      sync.Mutex
	batches map[uuid.UUID][]deduplication.HashEntry
}

func newMemHashRepo() *memHashRepo {
	return &memHashRepo{batches: make(map[uuid.UUID][]deduplication.HashEntry)}
}

func (m *memHashRepo) CheckHashExists(ctx context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entries := range m.batches {
		for _, e := range entries {
			if e.Hash == hash && e.Kept {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *memHashRepo) SaveHashes(ctx context.Context, batchID uuid.UUID, hashes []deduplication.HashEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[batchID] = append(m.batches[batchID], hashes...)
	return nil
}

func (m *memHashRepo) GetBatchHashes(ctx context.Context, batchID uuid.UUID) ([]deduplication.HashEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches[batchID], nil
}

// memArchive records saved archives
type memArchive struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memArchive) SaveProcessedFile(ctx context.Context, runID, fileType, filename string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	path := runID + "/" + fileType + "/" + filename
	m.files[path] = data
	return path, nil
}
