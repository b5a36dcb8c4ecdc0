package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/domain"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/ingestion"
)

const purchaseSavepoint = "purchase_row"

// InvoiceStore implements ingestion.Store on PostgreSQL
type InvoiceStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewInvoiceStore(db *gorm.DB, logger *slog.Logger) *InvoiceStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceStore{db: db, logger: logger}
}

// WithinTx runs fn in a database transaction
func (s *InvoiceStore) WithinTx(ctx context.Context, fn func(tx ingestion.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&invoiceTx{db: tx})
	})
}

// InsertError records a failed document outside any transaction
func (s *InvoiceStore) InsertError(ctx context.Context, rec *domain.IngestionError) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to insert ingestion error: %w", err)
	}
	return nil
}

// CountRows returns the number of rows in each entity table
func (s *InvoiceStore) CountRows(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 4)
	for _, table := range []string{domain.TableClients, domain.TableInvoices, domain.TableProducts, domain.TablePurchases} {
		var n int64
		if err := s.db.WithContext(ctx).Table(table).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

type invoiceTx struct {
	db *gorm.DB
}

func (t *invoiceTx) ExistingIDs(ctx context.Context, table string, ids []string) (map[string]bool, error) {
	switch table {
	case domain.TableClients, domain.TableInvoices, domain.TableProducts:
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}

	var found []string
	err := t.db.WithContext(ctx).
		Table(table).
		Where("id IN ?", ids).
		Pluck("id", &found).
		Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(found))
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

func (t *invoiceTx) InsertClients(ctx context.Context, rows []domain.Client) (int64, error) {
	return createIgnoringConflicts(ctx, t.db, &rows)
}

func (t *invoiceTx) InsertInvoices(ctx context.Context, rows []domain.Invoice) (int64, error) {
	return createIgnoringConflicts(ctx, t.db, &rows)
}

func (t *invoiceTx) InsertProducts(ctx context.Context, rows []domain.Product) (int64, error) {
	return createIgnoringConflicts(ctx, t.db, &rows)
}

func (t *invoiceTx) PurchaseExists(ctx context.Context, key domain.PurchaseKey) (bool, error) {
	var count int64
	err := t.db.WithContext(ctx).
		Model(&domain.Purchase{}).
		Where("product_id = ? AND client_id = ? AND invoice_id = ?", key.ProductID, key.ClientID, key.InvoiceID).
		Count(&count).
		Error
	return count > 0, err
}

// InsertPurchase wraps the insert in a savepoint so a rejected row does not
// abort the surrounding transaction.
func (t *invoiceTx) InsertPurchase(ctx context.Context, row domain.Purchase) error {
	db := t.db.WithContext(ctx)
	if err := db.SavePoint(purchaseSavepoint).Error; err != nil {
		return err
	}
	if err := db.Omit(clause.Associations).Create(&row).Error; err != nil {
		if rbErr := db.RollbackTo(purchaseSavepoint).Error; rbErr != nil {
			return fmt.Errorf("%w (rollback to savepoint: %v)", err, rbErr)
		}
		return err
	}
	return nil
}

func createIgnoringConflicts[T any](ctx context.Context, db *gorm.DB, rows *[]T) (int64, error) {
	res := db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rows)
	return res.RowsAffected, res.Error
}
