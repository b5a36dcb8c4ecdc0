package parsing

import (
	"time"

	"github.com/shopspring/decimal"
)

// QRFields are the typed QR payload values.
type QRFields struct {
	Reference string     `json:"reference"`
	Gender    string     `json:"gender"`
	Birthdate *time.Time `json:"birthdate,omitempty"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
}

// Fields is everything the parser read from one document. Any value may be
// missing; the validator decides what that means.
type Fields struct {
	SourceFile   string            `json:"source_file"`
	ClientName   string            `json:"client_name"`
	Email        string            `json:"email"`
	Address      string            `json:"address"`
	InvoiceDate  *time.Time        `json:"invoice_date,omitempty"`
	InvoiceToken string            `json:"invoice_token"`
	Products     []string          `json:"products"`
	Quantities   []int             `json:"quantities"`
	Prices       []decimal.Decimal `json:"prices"`
	TotalText    string            `json:"total_text"`
	QR           *QRFields         `json:"qr,omitempty"`
	RawText      string            `json:"raw_text"`

	// Issues lists quantity/price lines that could not be read.
	Issues []string `json:"issues,omitempty"`
}
