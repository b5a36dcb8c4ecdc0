package ingestion

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/domain"
)

// MemoryStore is an in-process Store used for dry runs. It enforces primary
// keys and the purchase foreign keys; transactions are serialized.
type MemoryStore struct {
	mu        sync.Mutex
	clients   map[string]domain.Client
	invoices  map[string]domain.Invoice
	products  map[string]domain.Product
	purchases map[domain.PurchaseKey]domain.Purchase
	errors    []domain.IngestionError
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:   make(map[string]domain.Client),
		invoices:  make(map[string]domain.Invoice),
		products:  make(map[string]domain.Product),
		purchases: make(map[domain.PurchaseKey]domain.Purchase),
	}
}

// WithinTx stages writes and applies them only if fn succeeds
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:     s,
		clients:   make(map[string]domain.Client),
		invoices:  make(map[string]domain.Invoice),
		products:  make(map[string]domain.Product),
		purchases: make(map[domain.PurchaseKey]domain.Purchase),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for k, v := range tx.clients {
		s.clients[k] = v
	}
	for k, v := range tx.invoices {
		s.invoices[k] = v
	}
	for k, v := range tx.products {
		s.products[k] = v
	}
	for k, v := range tx.purchases {
		s.purchases[k] = v
	}
	return nil
}

// InsertError appends an ingestion error
func (s *MemoryStore) InsertError(ctx context.Context, rec *domain.IngestionError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, *rec)
	return nil
}

// Counts returns the number of rows per table
func (s *MemoryStore) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int{
		domain.TableClients:   len(s.clients),
		domain.TableInvoices:  len(s.invoices),
		domain.TableProducts:  len(s.products),
		domain.TablePurchases: len(s.purchases),
		"ingestion_errors":    len(s.errors),
	}
}

// Errors returns the recorded ingestion errors in insertion order
func (s *MemoryStore) Errors() []domain.IngestionError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.IngestionError(nil), s.errors...)
}

// Client returns a stored client
func (s *MemoryStore) Client(id string) (domain.Client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	return c, ok
}

// Purchases returns every stored purchase sorted by key
func (s *MemoryStore) Purchases() []domain.Purchase {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key(), out[j].Key()
		if a.InvoiceID != b.InvoiceID {
			return a.InvoiceID < b.InvoiceID
		}
		if a.ClientID != b.ClientID {
			return a.ClientID < b.ClientID
		}
		return a.ProductID < b.ProductID
	})
	return out
}

type memoryTx struct {
	store     *MemoryStore
	clients   map[string]domain.Client
	invoices  map[string]domain.Invoice
	products  map[string]domain.Product
	purchases map[domain.PurchaseKey]domain.Purchase
}

func (t *memoryTx) has(table, id string) bool {
	switch table {
	case domain.TableClients:
		_, a := t.store.clients[id]
		_, b := t.clients[id]
		return a || b
	case domain.TableInvoices:
		_, a := t.store.invoices[id]
		_, b := t.invoices[id]
		return a || b
	case domain.TableProducts:
		_, a := t.store.products[id]
		_, b := t.products[id]
		return a || b
	}
	return false
}

func (t *memoryTx) ExistingIDs(ctx context.Context, table string, ids []string) (map[string]bool, error) {
	switch table {
	case domain.TableClients, domain.TableInvoices, domain.TableProducts:
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}
	found := make(map[string]bool)
	for _, id := range ids {
		if t.has(table, id) {
			found[id] = true
		}
	}
	return found, nil
}

func (t *memoryTx) InsertClients(ctx context.Context, rows []domain.Client) (int64, error) {
	var n int64
	for _, r := range rows {
		if !t.has(domain.TableClients, r.ID) {
			t.clients[r.ID] = r
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) InsertInvoices(ctx context.Context, rows []domain.Invoice) (int64, error) {
	var n int64
	for _, r := range rows {
		if !t.has(domain.TableInvoices, r.ID) {
			t.invoices[r.ID] = r
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) InsertProducts(ctx context.Context, rows []domain.Product) (int64, error) {
	var n int64
	for _, r := range rows {
		if !t.has(domain.TableProducts, r.ID) {
			t.products[r.ID] = r
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) PurchaseExists(ctx context.Context, key domain.PurchaseKey) (bool, error) {
	_, a := t.store.purchases[key]
	_, b := t.purchases[key]
	return a || b, nil
}

func (t *memoryTx) InsertPurchase(ctx context.Context, row domain.Purchase) error {
	if !t.has(domain.TableProducts, row.ProductID) {
		return fmt.Errorf("purchase references unknown product %q", row.ProductID)
	}
	if !t.has(domain.TableClients, row.ClientID) {
		return fmt.Errorf("purchase references unknown client %q", row.ClientID)
	}
	if !t.has(domain.TableInvoices, row.InvoiceID) {
		return fmt.Errorf("purchase references unknown invoice %q", row.InvoiceID)
	}
	if exists, _ := t.PurchaseExists(ctx, row.Key()); exists {
		return fmt.Errorf("duplicate purchase %v", row.Key())
	}
	t.purchases[row.Key()] = row
	return nil
}
