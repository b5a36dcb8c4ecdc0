package ingestion

import (
	"context"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/domain"
)

// Store persists entity sets and ingestion errors
type Store interface {
	// WithinTx runs fn in one transaction; an error from fn rolls it back
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// InsertError records a document that produced no entities
	InsertError(ctx context.Context, rec *domain.IngestionError) error
}

// Tx is the set of writes available inside a transaction
type Tx interface {
	// ExistingIDs returns which of ids already exist in table
	ExistingIDs(ctx context.Context, table string, ids []string) (map[string]bool, error)

	// Insert* skip rows whose primary key exists and return how many were written
	InsertClients(ctx context.Context, rows []domain.Client) (int64, error)
	InsertInvoices(ctx context.Context, rows []domain.Invoice) (int64, error)
	InsertProducts(ctx context.Context, rows []domain.Product) (int64, error)

	PurchaseExists(ctx context.Context, key domain.PurchaseKey) (bool, error)

	// InsertPurchase writes one row; a failure must leave the transaction usable
	InsertPurchase(ctx context.Context, row domain.Purchase) error
}
