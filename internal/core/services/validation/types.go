package validation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Failure messages. Order in Outcome.Errors follows the order checks run.
const (
	MsgIdentifierMismatch = "invoice identifiers do not match"
	MsgDateMismatch       = "dates do not match"
	MsgTotalIncorrect     = "total is incorrect"
	MsgItemCountMismatch  = "line item counts do not match"
	msgNotDetected        = "%s not detected"
	msgTotalComputation   = "total computation failed: %v"
)

// Bundle is a fully validated document, ready for normalization.
type Bundle struct {
	SourceFile       string
	ClientName       string
	Email            string
	Address          string
	Gender           string
	Birthdate        time.Time
	InvoiceReference string
	InvoiceToken     string
	IssuedAt         time.Time
	Products         []string
	Quantities       []int
	Prices           []decimal.Decimal
	Total            decimal.Decimal
	RawText          string
}

// Outcome is either a bundle or a non-empty list of failure messages.
type Outcome struct {
	Bundle *Bundle
	Errors []string
}

// OK reports whether validation produced a bundle.
func (o Outcome) OK() bool {
	return o.Bundle != nil && len(o.Errors) == 0
}

// Message joins the failure messages the way they are stored.
func (o Outcome) Message() string {
	return strings.Join(o.Errors, ", ")
}
