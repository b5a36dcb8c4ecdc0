package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/domain"
	apperrors "github.com/MelodyDuplaix/Projet-OCR/internal/pkg/errors"
)

func carolSet(invoiceID string, products ...string) *domain.EntitySet {
	set := &domain.EntitySet{
		SourceFile: "FAC_" + invoiceID + ".png",
		Client: domain.Client{
			ID:        "CLT_Carol_Potter",
			Name:      "Carol Potter",
			Email:     "carol@example.com",
			Birthdate: time.Date(1980, 5, 20, 0, 0, 0, 0, time.UTC),
			Gender:    "F",
		},
		Invoice: domain.Invoice{
			ID:       invoiceID,
			IssuedAt: time.Date(2018, 10, 13, 3, 27, 0, 0, time.UTC),
			Total:    decimal.RequireFromString("10.00"),
		},
	}
	for _, name := range products {
		id := "PROD_" + name
		set.Products = append(set.Products, domain.Product{ID: id, Name: name, UnitPrice: decimal.RequireFromString("5.00")})
		set.Purchases = append(set.Purchases, domain.Purchase{
			ProductID: id, ClientID: set.Client.ID, InvoiceID: invoiceID, Quantity: 1,
		})
	}
	return set
}

func TestWriter_IngestInsertsEveryTable(t *testing.T) {
	store := NewMemoryStore()
	w := NewWriter(store, nil, nil)

	counts, err := w.Ingest(context.Background(), carolSet("2018-0001-654", "mug", "lamp"))
	require.NoError(t, err)

	assert.Equal(t, 1, counts.Clients.Inserted)
	assert.Equal(t, 1, counts.Invoices.Inserted)
	assert.Equal(t, 2, counts.Products.Inserted)
	assert.Equal(t, 2, counts.Purchases.Inserted)
	assert.Equal(t, 6, counts.Total())
	assert.Equal(t, map[string]int{"clients": 1, "invoices": 1, "products": 2, "purchases": 2}, counts.PerTable())

	stored := store.Counts()
	assert.Equal(t, 2, stored[domain.TablePurchases])
}

func TestWriter_IngestIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	w := NewWriter(store, nil, nil)
	set := carolSet("2018-0001-654", "mug", "lamp")

	_, err := w.Ingest(context.Background(), set)
	require.NoError(t, err)

	counts, err := w.Ingest(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total())
	assert.Equal(t, 1, counts.Clients.Skipped)
	assert.Equal(t, 1, counts.Invoices.Skipped)
	assert.Equal(t, 2, counts.Products.Skipped)
	assert.Equal(t, 2, counts.Purchases.Skipped)

	assert.Equal(t, map[string]int{
		"clients": 1, "invoices": 1, "products": 2, "purchases": 2, "ingestion_errors": 0,
	}, store.Counts())
}

func TestWriter_SharedClientAcrossInvoices(t *testing.T) {
	store := NewMemoryStore()
	w := NewWriter(store, nil, nil)

	_, err := w.Ingest(context.Background(), carolSet("2018-0001-1", "mug"))
	require.NoError(t, err)
	counts, err := w.Ingest(context.Background(), carolSet("2018-0002-1", "mug"))
	require.NoError(t, err)

	assert.Equal(t, 0, counts.Clients.Inserted)
	assert.Equal(t, 1, counts.Invoices.Inserted)
	assert.Equal(t, 1, counts.Products.Skipped)
	assert.Equal(t, 1, counts.Purchases.Inserted)
	assert.Len(t, store.Purchases(), 2)
}

func TestWriter_FailedPurchaseIsSkipped(t *testing.T) {
	store := NewMemoryStore()
	w := NewWriter(store, nil, nil)

	set := carolSet("2018-0001-654", "mug")
	set.Purchases = append(set.Purchases, domain.Purchase{
		ProductID: "PROD_ghost", ClientID: set.Client.ID, InvoiceID: set.Invoice.ID, Quantity: 2,
	})

	counts, err := w.Ingest(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Purchases.Inserted)
	assert.Equal(t, 1, counts.Purchases.Failed)
	assert.Len(t, store.Purchases(), 1)
}

func TestWriter_DuplicateProductsInOneSet(t *testing.T) {
	store := NewMemoryStore()
	w := NewWriter(store, nil, nil)

	set := carolSet("2018-0001-654", "mug")
	set.Products = append(set.Products, set.Products[0])

	counts, err := w.Ingest(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Products.Inserted)
	assert.Equal(t, 1, counts.Products.Skipped)
}

// failingStore wraps MemoryStore and fails one table's insert
type failingStore struct {
	*MemoryStore
	failTable string
}

func (f *failingStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return f.MemoryStore.WithinTx(ctx, func(tx Tx) error {
		return fn(&failingTx{Tx: tx, failTable: f.failTable})
	})
}

type failingTx struct {
	Tx
	failTable string
}

func (f *failingTx) InsertProducts(ctx context.Context, rows []domain.Product) (int64, error) {
	if f.failTable == domain.TableProducts {
		return 0, errors.New("connection reset")
	}
	return f.Tx.InsertProducts(ctx, rows)
}

func (f *failingTx) PurchaseExists(ctx context.Context, key domain.PurchaseKey) (bool, error) {
	if f.failTable == domain.TablePurchases {
		return false, errors.New("connection reset")
	}
	return f.Tx.PurchaseExists(ctx, key)
}

func TestWriter_FailureRollsBackDocument(t *testing.T) {
	for _, table := range []string{domain.TableProducts, domain.TablePurchases} {
		t.Run(table, func(t *testing.T) {
			store := &failingStore{MemoryStore: NewMemoryStore(), failTable: table}
			w := NewWriter(store, nil, nil)

			counts, err := w.Ingest(context.Background(), carolSet("2018-0001-654", "mug"))
			require.Error(t, err)
			assert.Nil(t, counts)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseError))

			for name, n := range store.Counts() {
				assert.Zero(t, n, "table %s should be empty after rollback", name)
			}
		})
	}
}

func TestWriter_CancelledContext(t *testing.T) {
	w := NewWriter(NewMemoryStore(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Ingest(ctx, carolSet("2018-0001-654", "mug"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriter_NilSet(t *testing.T) {
	w := NewWriter(NewMemoryStore(), nil, nil)
	_, err := w.Ingest(context.Background(), nil)
	assert.Error(t, err)
}

func TestWriter_ConcurrentSameClient(t *testing.T) {
	store := NewMemoryStore()
	locker := NewMemoryLocker()
	w := NewWriter(store, locker, nil)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := w.Ingest(context.Background(), carolSet(fmt.Sprintf("2018-%04d-1", i), "mug", "lamp"))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	counts := store.Counts()
	assert.Equal(t, 1, counts[domain.TableClients])
	assert.Equal(t, n, counts[domain.TableInvoices])
	assert.Equal(t, 2, counts[domain.TableProducts])
	assert.Equal(t, 2*n, counts[domain.TablePurchases])
	assert.Zero(t, locker.Held())
}

func TestWriter_RecordError(t *testing.T) {
	store := NewMemoryStore()
	w := NewWriter(store, nil, nil)

	require.NoError(t, w.RecordError(context.Background(), "FAC_2018_0001-654.png", "dates do not match"))

	recs := store.Errors()
	require.Len(t, recs, 1)
	assert.Equal(t, "FAC_2018_0001-654.png", recs[0].SourceFile)
	assert.Equal(t, "dates do not match", recs[0].Message)
	assert.False(t, recs[0].OccurredAt.IsZero())
}
