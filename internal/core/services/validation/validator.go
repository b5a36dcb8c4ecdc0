package validation

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/parsing"
)

// Validator cross-checks OCR fields against the QR payload and the
// arithmetic of the line items. Every check runs; failures accumulate.
type Validator struct {
	logger *slog.Logger
}

// NewValidator creates a validator
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger}
}

// Validate never returns a partial bundle.
func (v *Validator) Validate(f *parsing.Fields) Outcome {
	var errs []string
	qr := f.QR
	if qr == nil {
		qr = &parsing.QRFields{}
	}

	// 1. identifier consistency
	if qr.Reference != "" && f.InvoiceToken != "" && qr.Reference != f.InvoiceToken {
		errs = append(errs, MsgIdentifierMismatch)
	}

	// 2. presence
	missing := []struct {
		name    string
		present bool
	}{
		{"client name", f.ClientName != ""},
		{"email", f.Email != ""},
		{"address", f.Address != ""},
		{"invoice date", f.InvoiceDate != nil || qr.IssuedAt != nil},
		{"products", len(f.Products) > 0},
		{"quantities", len(f.Quantities) > 0},
		{"prices", len(f.Prices) > 0},
		{"birthdate", qr.Birthdate != nil},
		{"gender", qr.Gender != ""},
		{"total", f.TotalText != ""},
	}
	for _, m := range missing {
		if !m.present {
			errs = append(errs, fmt.Sprintf(msgNotDetected, m.name))
		}
	}

	// 3. date consistency
	if f.InvoiceDate != nil && qr.IssuedAt != nil && !parsing.SameDay(*f.InvoiceDate, *qr.IssuedAt) {
		errs = append(errs, MsgDateMismatch)
	}

	// 4. line items
	errs = append(errs, f.Issues...)
	if len(f.Products) > 0 && len(f.Quantities) > 0 && len(f.Products) != len(f.Quantities) {
		errs = append(errs, MsgItemCountMismatch)
	}

	// 5. arithmetic
	total, err := CheckTotal(f.Quantities, f.Prices, f.TotalText)
	if err != nil {
		errs = append(errs, fmt.Sprintf(msgTotalComputation, err))
	} else if total != nil && !total.OK {
		errs = append(errs, MsgTotalIncorrect)
	}

	if len(errs) > 0 {
		v.logger.Debug("document rejected",
			slog.String("file", f.SourceFile),
			slog.Int("errors", len(errs)))
		return Outcome{Errors: errs}
	}

	return Outcome{Bundle: &Bundle{
		SourceFile:       f.SourceFile,
		ClientName:       f.ClientName,
		Email:            f.Email,
		Address:          f.Address,
		Gender:           qr.Gender,
		Birthdate:        *qr.Birthdate,
		InvoiceReference: qr.Reference,
		InvoiceToken:     f.InvoiceToken,
		IssuedAt:         issuedAt(f.InvoiceDate, qr.IssuedAt),
		Products:         f.Products,
		Quantities:       f.Quantities,
		Prices:           f.Prices,
		Total:            total.Declared,
		RawText:          f.RawText,
	}}
}

// issuedAt prefers the QR datetime; it only reaches here when both agree on
// the day or one of them is missing.
func issuedAt(ocr, qr *time.Time) time.Time {
	if qr != nil {
		return *qr
	}
	return *ocr
}

// TotalCheck is the result of the arithmetic check
type TotalCheck struct {
	Declared decimal.Decimal
	Computed decimal.Decimal
	OK       bool
}

// CheckTotal compares round(Σ price×qty, 2) with round(total, 2). A nil
// result with nil error means there was nothing to compare.
func CheckTotal(quantities []int, prices []decimal.Decimal, totalText string) (*TotalCheck, error) {
	if totalText == "" {
		return nil, nil
	}
	declared, err := decimal.NewFromString(totalText)
	if err != nil {
		return nil, fmt.Errorf("invalid total %q", totalText)
	}

	n := min(len(quantities), len(prices))
	computed := decimal.Zero
	for i := 0; i < n; i++ {
		computed = computed.Add(prices[i].Mul(decimal.NewFromInt(int64(quantities[i]))))
	}

	return &TotalCheck{
		Declared: declared,
		Computed: computed,
		OK:       computed.Round(2).Equal(declared.Round(2)),
	}, nil
}
