package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/domain"
	apperrors "github.com/MelodyDuplaix/Projet-OCR/internal/pkg/errors"
)

// TableCounts is the outcome for one table
type TableCounts struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// InsertedCounts is the per-table outcome of one Ingest call
type InsertedCounts struct {
	Clients   TableCounts `json:"clients"`
	Invoices  TableCounts `json:"invoices"`
	Products  TableCounts `json:"products"`
	Purchases TableCounts `json:"purchases"`
}

// PerTable returns inserted rows keyed by table name
func (c InsertedCounts) PerTable() map[string]int {
	return map[string]int{
		domain.TableClients:   c.Clients.Inserted,
		domain.TableInvoices:  c.Invoices.Inserted,
		domain.TableProducts:  c.Products.Inserted,
		domain.TablePurchases: c.Purchases.Inserted,
	}
}

// Total returns the number of rows written
func (c InsertedCounts) Total() int {
	return c.Clients.Inserted + c.Invoices.Inserted + c.Products.Inserted + c.Purchases.Inserted
}

// Writer persists entity sets idempotently
type Writer struct {
	store  Store
	locker KeyLocker
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter creates a writer; a nil locker uses in-process locks.
func NewWriter(store Store, locker KeyLocker, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = NewMemoryLocker()
	}
	return &Writer{
		store:  store,
		locker: locker,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ingest writes the set in one transaction: clients, invoices and products
// are inserted when absent, then each purchase is checked and inserted on
// its own. A purchase that fails is logged and skipped; any other failure
// rolls the whole document back.
func (w *Writer) Ingest(ctx context.Context, set *domain.EntitySet) (*InsertedCounts, error) {
	if set == nil {
		return nil, apperrors.BadRequest("nothing to ingest")
	}

	unlock, err := LockAll(ctx, w.locker, set.LockKeys())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to acquire entity locks", http.StatusServiceUnavailable)
	}
	defer unlock()

	logger := w.logger.With(slog.String("file", set.SourceFile), slog.String("invoice_id", set.Invoice.ID))
	counts := &InsertedCounts{}

	err = w.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		counts.Clients, err = insertMissing(ctx, tx, domain.TableClients, []domain.Client{set.Client},
			func(c domain.Client) string { return c.ID }, tx.InsertClients)
		if err != nil {
			return err
		}

		counts.Invoices, err = insertMissing(ctx, tx, domain.TableInvoices, []domain.Invoice{set.Invoice},
			func(i domain.Invoice) string { return i.ID }, tx.InsertInvoices)
		if err != nil {
			return err
		}

		counts.Products, err = insertMissing(ctx, tx, domain.TableProducts, set.Products,
			func(p domain.Product) string { return p.ID }, tx.InsertProducts)
		if err != nil {
			return err
		}

		for _, purchase := range set.Purchases {
			if err := ctx.Err(); err != nil {
				return err
			}

			exists, err := tx.PurchaseExists(ctx, purchase.Key())
			if err != nil {
				return fmt.Errorf("purchases: %w", err)
			}
			if exists {
				counts.Purchases.Skipped++
				continue
			}

			if err := tx.InsertPurchase(ctx, purchase); err != nil {
				counts.Purchases.Failed++
				logger.Warn("purchase row skipped",
					slog.String("product_id", purchase.ProductID),
					"error", err)
				continue
			}
			counts.Purchases.Inserted++
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, apperrors.DatabaseError(err)
	}

	logger.Debug("entity set ingested",
		slog.Int("clients", counts.Clients.Inserted),
		slog.Int("invoices", counts.Invoices.Inserted),
		slog.Int("products", counts.Products.Inserted),
		slog.Int("purchases", counts.Purchases.Inserted),
		slog.Int("purchases_skipped", counts.Purchases.Skipped),
		slog.Int("purchases_failed", counts.Purchases.Failed))

	return counts, nil
}

// RecordError stores an IngestionError row for sourceFile.
func (w *Writer) RecordError(ctx context.Context, sourceFile, message string) error {
	rec := &domain.IngestionError{
		OccurredAt: w.now(),
		SourceFile: sourceFile,
		Message:    message,
	}
	if err := w.store.InsertError(ctx, rec); err != nil {
		w.logger.Error("failed to record ingestion error",
			slog.String("file", sourceFile),
			"error", err)
		return apperrors.DatabaseError(err)
	}
	return nil
}

// insertMissing drops rows whose id exists (or repeats) and inserts the rest.
func insertMissing[T any](
	ctx context.Context,
	tx Tx,
	table string,
	rows []T,
	id func(T) string,
	insert func(context.Context, []T) (int64, error),
) (TableCounts, error) {
	var counts TableCounts
	if len(rows) == 0 {
		return counts, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, id(r))
	}
	existing, err := tx.ExistingIDs(ctx, table, ids)
	if err != nil {
		return counts, fmt.Errorf("%s: %w", table, err)
	}

	seen := make(map[string]bool, len(rows))
	missing := make([]T, 0, len(rows))
	for _, r := range rows {
		key := id(r)
		if existing[key] || seen[key] {
			counts.Skipped++
			continue
		}
		seen[key] = true
		missing = append(missing, r)
	}
	if len(missing) == 0 {
		return counts, nil
	}

	n, err := insert(ctx, missing)
	if err != nil {
		return counts, fmt.Errorf("%s: %w", table, err)
	}
	counts.Inserted = int(n)
	// rows a concurrent writer committed between the check and the insert
	counts.Skipped += len(missing) - int(n)
	return counts, nil
}
