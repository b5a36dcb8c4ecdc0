package normalization

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/domain"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/cleanup"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/validation"
)

const (
	clientPrefix   = "CLT_"
	productPrefix  = "PROD_"
	productIDWords = 3
)

// Normalizer maps a validated bundle to the entity set of one document
type Normalizer struct {
	product cleanup.Cleaner
	logger  *slog.Logger
}

// NewNormalizer creates a normalizer
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		product: cleanup.MustCreate(cleanup.ProfileProduct),
		logger:  logger,
	}
}

// ClientID is "CLT_" followed by the name with spaces replaced by "_".
func ClientID(name string) string {
	return clientPrefix + strings.ReplaceAll(name, " ", "_")
}

// ProductID is "PROD_" followed by the first three words of the
// lower-cased name joined by "_".
func ProductID(normalizedName string) string {
	words := strings.Fields(normalizedName)
	if len(words) > productIDWords {
		words = words[:productIDWords]
	}
	return productPrefix + strings.Join(words, "_")
}

type productLine struct {
	name     string
	price    decimal.Decimal
	quantity int
}

// Normalize builds client, invoice, products and purchases. Lines whose names
// share a product id collapse into one product (first name and price win) and
// one purchase whose quantity is the sum of the mentions.
func (n *Normalizer) Normalize(b *validation.Bundle) *domain.EntitySet {
	client := domain.Client{
		ID:        ClientID(b.ClientName),
		Name:      b.ClientName,
		Email:     b.Email,
		Address:   b.Address,
		Birthdate: b.Birthdate,
		Gender:    b.Gender,
	}

	invoiceID := b.InvoiceReference
	if invoiceID == "" {
		invoiceID = b.InvoiceToken
	}
	invoice := domain.Invoice{
		ID:       invoiceID,
		RawText:  b.RawText,
		IssuedAt: b.IssuedAt,
		Total:    b.Total.Round(2),
	}

	// keyed by product id, in first-seen order; names sharing an id merge
	// into the first one seen so no quantity is dropped at ingestion
	var order []string
	lines := make(map[string]*productLine)
	count := min(len(b.Products), len(b.Quantities), len(b.Prices))
	for i := 0; i < count; i++ {
		name := n.product.Process(b.Products[i])
		if name == "" {
			continue
		}
		id := ProductID(name)
		if existing, ok := lines[id]; ok {
			existing.quantity += b.Quantities[i]
			if !existing.price.Equal(b.Prices[i]) {
				n.logger.Debug("conflicting price for repeated product, keeping first",
					slog.String("file", b.SourceFile),
					slog.String("product", id))
			}
			continue
		}
		lines[id] = &productLine{name: name, price: b.Prices[i], quantity: b.Quantities[i]}
		order = append(order, id)
	}

	set := &domain.EntitySet{
		SourceFile: b.SourceFile,
		Client:     client,
		Invoice:    invoice,
		Products:   make([]domain.Product, 0, len(order)),
		Purchases:  make([]domain.Purchase, 0, len(order)),
	}
	for _, id := range order {
		line := lines[id]
		set.Products = append(set.Products, domain.Product{
			ID:        id,
			Name:      line.name,
			UnitPrice: line.price,
		})
		set.Purchases = append(set.Purchases, domain.Purchase{
			ProductID: id,
			ClientID:  client.ID,
			InvoiceID: invoice.ID,
			Quantity:  line.quantity,
		})
	}

	return set
}
