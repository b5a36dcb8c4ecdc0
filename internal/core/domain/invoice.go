package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Table names, in the order the ingestion writer fills them.
const (
	TableClients   = "clients"
	TableInvoices  = "invoices"
	TableProducts  = "products"
	TablePurchases = "purchases"
)

// Client is the invoice recipient. ID is "CLT_" + name with spaces replaced by "_".
type Client struct {
	ID        string    `gorm:"type:varchar(255);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255)" json:"email"`
	Address   string    `gorm:"type:text" json:"address"`
	Birthdate time.Time `gorm:"type:date" json:"birthdate"`
	Gender    string    `gorm:"type:varchar(20)" json:"gender"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Client) TableName() string {
	return TableClients
}

// Invoice holds the issue datetime and the concatenated zone texts.
type Invoice struct {
	ID        string          `gorm:"type:varchar(255);primaryKey" json:"id"`
	RawText   string          `gorm:"type:text" json:"raw_text"`
	IssuedAt  time.Time       `gorm:"not null" json:"issued_at"`
	Total     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Invoice) TableName() string {
	return TableInvoices
}

// Product is keyed by its lower-cased name; the first price seen wins.
type Product struct {
	ID        string          `gorm:"type:varchar(255);primaryKey" json:"id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Product) TableName() string {
	return TableProducts
}

// Purchase links a product to a client on one invoice.
type Purchase struct {
	ProductID string    `gorm:"type:varchar(255);primaryKey" json:"product_id"`
	ClientID  string    `gorm:"type:varchar(255);primaryKey" json:"client_id"`
	InvoiceID string    `gorm:"type:varchar(255);primaryKey" json:"invoice_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Product *Product `gorm:"foreignKey:ProductID;references:ID;constraint:OnDelete:RESTRICT" json:"-"`
	Client  *Client  `gorm:"foreignKey:ClientID;references:ID;constraint:OnDelete:RESTRICT" json:"-"`
	Invoice *Invoice `gorm:"foreignKey:InvoiceID;references:ID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (Purchase) TableName() string {
	return TablePurchases
}

// PurchaseKey is the composite primary key of a purchase row.
type PurchaseKey struct {
	ProductID string
	ClientID  string
	InvoiceID string
}

func (p Purchase) Key() PurchaseKey {
	return PurchaseKey{ProductID: p.ProductID, ClientID: p.ClientID, InvoiceID: p.InvoiceID}
}

// EntitySet is the normalized output for one document.
type EntitySet struct {
	SourceFile string     `json:"source_file"`
	Client     Client     `json:"client"`
	Invoice    Invoice    `json:"invoice"`
	Products   []Product  `json:"products"`
	Purchases  []Purchase `json:"purchases"`
}

// LockKeys lists every entity id the set writes, prefixed by table.
func (s *EntitySet) LockKeys() []string {
	keys := make([]string, 0, 2+len(s.Products))
	keys = append(keys, TableClients+":"+s.Client.ID, TableInvoices+":"+s.Invoice.ID)
	for _, p := range s.Products {
		keys = append(keys, TableProducts+":"+p.ID)
	}
	return keys
}

// AllModels returns every model to migrate, parents first.
func AllModels() []interface{} {
	return []interface{}{
		&Client{},
		&Invoice{},
		&Product{},
		&Purchase{},
		&IngestionError{},
		&IngestionBatch{},
		&DocumentHash{},
	}
}
