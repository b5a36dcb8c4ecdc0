package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/domain"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/deduplication"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/export"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/extraction"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/ingestion"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/validation"
)

// buildCorpus creates n invoices; every tenth one carries a wrong total.
func buildCorpus(t testing.TB, n int) (*memSource, *fakeExtractor) {
	src := &memSource{files: make(map[string][]byte, n)}
	ex := &fakeExtractor{byWidth: make(map[int]*extraction.Result, n)}
	for i := 1; i <= n; i++ {
		total := ""
		if i%10 == 0 {
			total = "99.99"
		}
		ex.byWidth[i] = invoiceResult(i, "2023-05-01", total)
		src.files[invoiceName(i)] = pngOfWidth(t, i)
	}
	return src, ex
}

// memBatches is an in-memory BatchStore
type memBatches struct {
	mu      sync.Mutex
	created int
	last    domain.IngestionBatch
}

func (m *memBatches) Create(ctx context.Context, batch *domain.IngestionBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	m.created++
	m.last = *batch
	return nil
}

func (m *memBatches) Update(ctx context.Context, batch *domain.IngestionBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = *batch
	return nil
}

func TestBatchRunner_ThousandDocuments(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large batch in short mode")
	}
	src, ex := buildCorpus(t, 1000)
	store := ingestion.NewMemoryStore()
	locker := ingestion.NewMemoryLocker()
	svc := NewService(ex, ingestion.NewWriter(store, locker, nil), 5*time.Second, nil)
	batches := &memBatches{}

	runner := NewBatchRunner(svc, nil, batches, nil, BatchConfig{Workers: 8, ProgressEvery: 250}, nil)
	report, err := runner.Run(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStatusCompleted, report.Batch.Status)
	assert.Equal(t, 1000, report.Batch.TotalFiles)
	assert.Equal(t, 900, report.Batch.Succeeded)
	assert.Equal(t, 100, report.Batch.Failed)
	assert.Len(t, report.Outcomes, 1000)
	require.NotNil(t, report.Batch.CompletedAt)

	counts := store.Counts()
	assert.Equal(t, 1, counts[domain.TableClients])
	assert.Equal(t, 900, counts[domain.TableInvoices])
	assert.Equal(t, 4, counts[domain.TableProducts])
	assert.Equal(t, 3600, counts[domain.TablePurchases])
	assert.Equal(t, 100, counts["ingestion_errors"])

	assert.Equal(t, 900, report.Inserted[domain.TableInvoices])
	assert.Equal(t, 1, report.Inserted[domain.TableClients])

	for _, rec := range store.Errors() {
		assert.Contains(t, rec.Message, validation.MsgTotalIncorrect)
	}
	assert.Zero(t, locker.Held())
	assert.Equal(t, 1, batches.created)
	assert.Equal(t, domain.BatchStatusCompleted, batches.last.Status)
}

func TestBatchRunner_SkipsIdenticalImages(t *testing.T) {
	src, ex := buildCorpus(t, 3)
	src.files["copy_of_first.png"] = src.files[invoiceName(1)]
	store := ingestion.NewMemoryStore()
	svc := NewService(ex, ingestion.NewWriter(store, nil, nil), 0, nil)

	report, err := NewBatchRunner(svc, nil, nil, nil, DefaultBatchConfig(), nil).Run(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Batch.TotalFiles)
	assert.Equal(t, 1, report.Batch.DuplicatesSkipped)
	assert.Equal(t, 3, report.Batch.Succeeded)
	require.Len(t, report.Skipped, 1)
	// names are listed sorted, so the original is seen first and kept
	assert.Equal(t, "copy_of_first.png", report.Skipped[0].Name)
	for _, o := range report.Outcomes {
		assert.NotEqual(t, "copy_of_first.png", o.SourceFile)
	}
	assert.Equal(t, 3, store.Counts()[domain.TableInvoices])
}

func TestBatchRunner_SecondRunSkipsIngestedFiles(t *testing.T) {
	src, ex := buildCorpus(t, 20)
	store := ingestion.NewMemoryStore()
	svc := NewService(ex, ingestion.NewWriter(store, nil, nil), 0, nil)
	dedup := deduplication.NewService(deduplication.DefaultConfig(), newMemHashRepo(), nil)
	runner := NewBatchRunner(svc, dedup, nil, nil, BatchConfig{Workers: 4}, nil)

	first, err := runner.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 18, first.Batch.Succeeded)
	assert.Equal(t, 2, first.Batch.Failed)

	second, err := runner.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 18, second.Batch.AlreadyIngested)
	// rejected files are retried
	assert.Equal(t, 2, second.Batch.Failed)
	assert.Zero(t, second.Batch.Succeeded)

	assert.Equal(t, 18, store.Counts()[domain.TableInvoices])
	assert.Equal(t, 4, store.Counts()["ingestion_errors"])
}

func TestBatchRunner_CancelledBeforeStart(t *testing.T) {
	src, ex := buildCorpus(t, 5)
	store := ingestion.NewMemoryStore()
	svc := NewService(ex, ingestion.NewWriter(store, nil, nil), 0, nil)
	batches := &memBatches{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewBatchRunner(svc, nil, batches, nil, DefaultBatchConfig(), nil).Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCancelled, report.Batch.Status)
	assert.Empty(t, report.Outcomes)
	assert.Zero(t, store.Counts()[domain.TableInvoices])
	assert.Equal(t, domain.BatchStatusCancelled, batches.last.Status)
}

func TestBatchRunner_CancelledMidRun(t *testing.T) {
	src, ex := buildCorpus(t, 50)
	ex.delay = 20 * time.Millisecond
	store := ingestion.NewMemoryStore()
	svc := NewService(ex, ingestion.NewWriter(store, nil, nil), time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	report, err := NewBatchRunner(svc, nil, nil, nil, DefaultBatchConfig(), nil).Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCancelled, report.Batch.Status)
	assert.Less(t, len(report.Outcomes), 50)

	// every processed file is either ingested or recorded
	counts := store.Counts()
	assert.Equal(t, len(report.Outcomes), counts[domain.TableInvoices]+counts["ingestion_errors"])
}

func TestBatchRunner_WritesArchive(t *testing.T) {
	src, ex := buildCorpus(t, 5)
	store := ingestion.NewMemoryStore()
	svc := NewService(ex, ingestion.NewWriter(store, nil, nil), 0, nil)
	archive := &memArchive{}

	cfg := BatchConfig{Archive: true, ArchiveChunkSize: 3}
	report, err := NewBatchRunner(svc, nil, nil, archive, cfg, nil).Run(context.Background(), src)
	require.NoError(t, err)

	// five invoices in chunks of three
	require.Len(t, report.ArchivePaths, 2)
	data, ok := archive.files[report.ArchivePaths[0]]
	require.True(t, ok)

	var decoded export.Archive
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.Batch.ID.String(), decoded.Metadata.RunID)
	assert.Len(t, decoded.Documents, 3)
	assert.Equal(t, 2, decoded.Metadata.TotalChunks)
}
