package extraction

import (
	"strings"
)

// QRPayload is the decoded content of the invoice QR code:
//
//	INVOICE:FAC/2018/0001-654
//	DATE:2018-10-13 03:27:00
//	CUST:F, birth 1980-05-20
type QRPayload struct {
	InvoiceReference string `json:"invoice_reference"`
	IssuedAtText     string `json:"issued_at"`
	Gender           string `json:"gender"`
	BirthdateText    string `json:"birthdate"`
}

// ParseQRPayload splits a raw QR string into its fields. It returns nil when
// the payload does not have the three expected lines.
func ParseQRPayload(raw string) *QRPayload {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 3 {
		return nil
	}

	invoice, ok := valueAfterKey(lines[0])
	if !ok {
		return nil
	}
	issued, ok := valueAfterKey(lines[1])
	if !ok {
		return nil
	}
	customer, ok := valueAfterKey(lines[2])
	if !ok {
		return nil
	}

	gender, birth, found := strings.Cut(customer, ",")
	if !found {
		return nil
	}
	birth = strings.TrimSpace(birth)
	birth = strings.TrimSpace(strings.TrimPrefix(birth, "birth"))

	ref := strings.TrimPrefix(strings.TrimSpace(invoice), "FAC/")
	ref = strings.ReplaceAll(ref, "/", "-")

	payload := &QRPayload{
		InvoiceReference: ref,
		IssuedAtText:     strings.TrimSpace(issued),
		Gender:           strings.TrimSpace(gender),
		BirthdateText:    birth,
	}
	if payload.InvoiceReference == "" {
		return nil
	}
	return payload
}

func valueAfterKey(line string) (string, bool) {
	_, value, found := strings.Cut(line, ":")
	if !found {
		return "", false
	}
	return strings.TrimSpace(value), true
}
