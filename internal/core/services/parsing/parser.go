package parsing

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/cleanup"
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/extraction"
)

const (
	invoiceLinePrefix = "INVOICE FAC"
	totalLabel        = "TOTAL"
	multiplication    = "x"
)

var (
	issueDatePattern = regexp.MustCompile(`(?mi)Issue date\s*:?\s*(.+)$`)
	billToPattern    = regexp.MustCompile(`(?m)Bill to\s*:?\s*(.+)$`)
	emailPattern     = regexp.MustCompile(`(?m)Email\s*:?\s*(.+@.+\..+)$`)
	addressMarker    = "Address"
)

// Parser turns zone texts into typed fields
type Parser struct {
	text   cleanup.Cleaner
	email  cleanup.Cleaner
	amount cleanup.Cleaner
	token  cleanup.Cleaner
	logger *slog.Logger
}

// NewParser creates a parser with the built-in cleaning profiles
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		text:   cleanup.MustCreate(cleanup.ProfileText),
		email:  cleanup.MustCreate(cleanup.ProfileEmail),
		amount: cleanup.MustCreate(cleanup.ProfileAmount),
		token:  cleanup.MustCreate(cleanup.ProfileToken),
		logger: logger,
	}
}

// Parse reads every field it can from result; sourceFile supplies the
// invoice token when the header line is unreadable.
func (p *Parser) Parse(sourceFile string, result *extraction.Result) *Fields {
	fields := &Fields{
		SourceFile: sourceFile,
		RawText:    result.Concatenated(),
	}

	p.parseHeader(fields, result.TextFor(extraction.RoleHeader))
	if fields.InvoiceToken == "" {
		fields.InvoiceToken = TokenFromFileName(sourceFile)
	}

	fields.Products = p.parseProducts(result.TextFor(extraction.RoleProducts))
	p.parseQuantitiesAndPrices(fields, result.TextFor(extraction.RoleQuantitiesPrices))

	if result.QR != nil {
		fields.QR = p.parseQR(result.QR)
	}

	if len(fields.Issues) > 0 {
		p.logger.Debug("line items skipped",
			slog.String("file", sourceFile),
			slog.Int("issues", len(fields.Issues)))
	}
	return fields
}

func (p *Parser) parseHeader(fields *Fields, header string) {
	if strings.TrimSpace(header) == "" {
		return
	}

	for _, line := range strings.Split(header, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), invoiceLinePrefix) {
			fields.InvoiceToken = p.tokenFromInvoiceLine(line)
			break
		}
	}

	if m := issueDatePattern.FindStringSubmatch(header); m != nil {
		if t, ok := ParseDate(m[1]); ok {
			fields.InvoiceDate = &t
		}
	}
	if m := billToPattern.FindStringSubmatch(header); m != nil {
		fields.ClientName = p.text.Process(m[1])
	}
	if m := emailPattern.FindStringSubmatch(header); m != nil {
		fields.Email = p.email.Process(m[1])
	}
	if idx := strings.Index(header, addressMarker); idx >= 0 {
		fields.Address = p.text.Process(header[idx+len(addressMarker):])
	}
}

// tokenFromInvoiceLine joins the last two "/" parts of "INVOICE FAC/2018/0001-654".
func (p *Parser) tokenFromInvoiceLine(line string) string {
	parts := strings.Split(line, "/")
	if len(parts) < 3 {
		return ""
	}
	tail := parts[len(parts)-2:]
	for i := range tail {
		tail[i] = p.token.Process(tail[i])
	}
	if tail[0] == "" || tail[1] == "" {
		return ""
	}
	return strings.Join(tail, "-")
}

// TokenFromFileName maps "FAC_2018_0001-654.png" to "2018-0001-654".
func TokenFromFileName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	parts := strings.Split(base, "_")
	if len(parts) < 3 || !strings.EqualFold(parts[0], "FAC") {
		return ""
	}
	return strings.Join(parts[1:], "-")
}

func (p *Parser) parseProducts(text string) []string {
	var products []string
	for _, line := range nonEmptyLines(text) {
		label := p.text.Process(line)
		if label == "" || strings.EqualFold(label, totalLabel) {
			continue
		}
		products = append(products, label)
	}
	return products
}

// parseQuantitiesAndPrices reads "qty x price" lines; the last line is the total.
func (p *Parser) parseQuantitiesAndPrices(fields *Fields, text string) {
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return
	}

	totalLine := p.amount.Process(lines[len(lines)-1])
	if !strings.Contains(totalLine, multiplication) {
		fields.TotalText = totalLine
	}

	for i, line := range lines[:len(lines)-1] {
		qty, price, err := p.parseLineItem(line)
		if err != nil {
			fields.Issues = append(fields.Issues, fmt.Sprintf("line item %d unreadable (%q): %v", i+1, strings.TrimSpace(line), err))
			continue
		}
		fields.Quantities = append(fields.Quantities, qty)
		fields.Prices = append(fields.Prices, price)
	}
}

func (p *Parser) parseLineItem(line string) (int, decimal.Decimal, error) {
	normalized := strings.ReplaceAll(line, "×", multiplication)
	if n := strings.Count(normalized, multiplication); n != 1 {
		return 0, decimal.Zero, fmt.Errorf("expected one %q, found %d", multiplication, n)
	}

	qtyPart, pricePart, _ := strings.Cut(normalized, multiplication)

	qty, err := strconv.Atoi(strings.TrimSpace(qtyPart))
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("quantity: %w", err)
	}
	if qty <= 0 {
		return 0, decimal.Zero, fmt.Errorf("quantity must be positive, got %d", qty)
	}

	price, err := decimal.NewFromString(p.amount.Process(pricePart))
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("price: %w", err)
	}
	return qty, price, nil
}

func (p *Parser) parseQR(payload *extraction.QRPayload) *QRFields {
	qr := &QRFields{
		Reference: payload.InvoiceReference,
		Gender:    payload.Gender,
	}
	if t, ok := ParseDate(payload.BirthdateText); ok {
		qr.Birthdate = &t
	}
	if t, ok := ParseDate(payload.IssuedAtText); ok {
		qr.IssuedAt = &t
	}
	return qr
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
