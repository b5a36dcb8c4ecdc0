package parsing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/extraction"
)

func TestParser_WhitakerInvoice(t *testing.T) {
	fields := NewParser(nil).Parse("FAC_2023_0042-118.png", whitakerResult())

	assert.Equal(t, "Ryan Whitaker", fields.ClientName)
	assert.Equal(t, "ryan.whitaker@example.com", fields.Email)
	assert.Equal(t, "12 Elm Street Leeds", fields.Address)
	assert.Equal(t, "2023-0042-118", fields.InvoiceToken)
	require.NotNil(t, fields.InvoiceDate)
	assert.Equal(t, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), *fields.InvoiceDate)

	assert.Equal(t, []string{"Shirt Blue Cotton Large", "Coffee Mug", "Notebook A5 Lined", "Desk Lamp LED"}, fields.Products)
	assert.Equal(t, []int{2, 1, 3, 1}, fields.Quantities)
	require.Len(t, fields.Prices, 4)
	assert.True(t, fields.Prices[0].Equal(decimal.RequireFromString("15.50")))
	assert.True(t, fields.Prices[3].Equal(decimal.RequireFromString("39")))
	assert.Equal(t, "91.62", fields.TotalText)
	assert.Empty(t, fields.Issues)

	require.NotNil(t, fields.QR)
	assert.Equal(t, "2023-0042-118", fields.QR.Reference)
	assert.Equal(t, "M", fields.QR.Gender)
	require.NotNil(t, fields.QR.Birthdate)
	assert.Equal(t, time.Date(1985, 3, 14, 0, 0, 0, 0, time.UTC), *fields.QR.Birthdate)
	require.NotNil(t, fields.QR.IssuedAt)
	assert.Equal(t, time.Date(2023, 5, 1, 10, 12, 0, 0, time.UTC), *fields.QR.IssuedAt)

	assert.Contains(t, fields.RawText, "Shirt Blue Cotton Large")
	assert.Contains(t, fields.RawText, "Bill to Ryan Whitaker")
}

func TestParser_MalformedLineItemsBecomeIssues(t *testing.T) {
	res := whitakerResult()
	res.Texts["Quantities_and_prices"] = "2 x 15.50 Euro\n1 8.99 Euro\n3 x 4 x 21\nabc x 1.00\n91.62 Euro"

	fields := NewParser(nil).Parse("FAC_2023_0042-118.png", res)

	assert.Equal(t, []int{2}, fields.Quantities)
	assert.Len(t, fields.Prices, 1)
	assert.Len(t, fields.Issues, 3)
	assert.Contains(t, fields.Issues[0], "line item 2")
}

func TestParser_CommaDecimalsAndFuroTotal(t *testing.T) {
	res := whitakerResult()
	res.Texts["Quantities_and_prices"] = "2 x 15,50 Euro\n1 x 8,99 Furo\n39,99 Furo"

	fields := NewParser(nil).Parse("x.png", res)

	require.Len(t, fields.Prices, 2)
	assert.True(t, fields.Prices[0].Equal(decimal.RequireFromString("15.5")))
	assert.True(t, fields.Prices[1].Equal(decimal.RequireFromString("8.99")))
	assert.Equal(t, "39.99", fields.TotalText)
}

func TestParser_TotalLineWithMultiplicationIsNotATotal(t *testing.T) {
	res := whitakerResult()
	res.Texts["Quantities_and_prices"] = "2 x 15.50 Euro\n1 x 8.99 Euro"

	fields := NewParser(nil).Parse("x.png", res)

	assert.Equal(t, "", fields.TotalText)
	assert.Equal(t, []int{2}, fields.Quantities)
}

func TestParser_EmptyZones(t *testing.T) {
	res := &extraction.Result{Layout: extraction.DefaultLayout(), Texts: map[string]string{}}

	fields := NewParser(nil).Parse("scan.png", res)

	assert.Empty(t, fields.ClientName)
	assert.Empty(t, fields.Email)
	assert.Empty(t, fields.Address)
	assert.Nil(t, fields.InvoiceDate)
	assert.Empty(t, fields.InvoiceToken)
	assert.Empty(t, fields.Products)
	assert.Empty(t, fields.Quantities)
	assert.Empty(t, fields.TotalText)
	assert.Nil(t, fields.QR)
}

func TestParser_TokenFallsBackToFileName(t *testing.T) {
	res := whitakerResult()
	res.Texts["bloc"] = "Bill to Ryan Whitaker\n"

	fields := NewParser(nil).Parse("data/files/2023/FAC_2023_0042-118.png", res)
	assert.Equal(t, "2023-0042-118", fields.InvoiceToken)
}

func TestParser_EmailArtifacts(t *testing.T) {
	res := whitakerResult()
	res.Texts["bloc"] = "Email | ryan.whitaker@example.com\n"

	fields := NewParser(nil).Parse("x.png", res)
	assert.Equal(t, "ryan.whitaker@example.com", fields.Email)
}

func TestParser_UnparseableQRDates(t *testing.T) {
	res := whitakerResult()
	res.QR.BirthdateText = "not a date"

	fields := NewParser(nil).Parse("x.png", res)
	require.NotNil(t, fields.QR)
	assert.Nil(t, fields.QR.Birthdate)
	assert.NotNil(t, fields.QR.IssuedAt)
}

func TestTokenFromFileName(t *testing.T) {
	assert.Equal(t, "2018-0001-654", TokenFromFileName("FAC_2018_0001-654.png"))
	assert.Equal(t, "2018-0001-654", TokenFromFileName("/tmp/x/fac_2018_0001-654.jpg"))
	assert.Equal(t, "", TokenFromFileName("scan.png"))
	assert.Equal(t, "", TokenFromFileName("INV_2018.png"))
}
