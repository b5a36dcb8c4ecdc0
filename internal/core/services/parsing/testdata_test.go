package parsing

import (
	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/extraction"
)

const (
	whitakerHeader     = "INVOICE FAC/2023/0042-118\nIssue date 2023-05-01\nBill to Ryan Whitaker\nEmail ryan.whitaker@example.com\nAddress 12 Elm Street\nLeeds\n"
	whitakerProducts   = "Shirt Blue Cotton Large\nCoffee Mug\nNotebook A5 Lined\nDesk Lamp LED\nTOTAL\n"
	whitakerQuantities = "2 x 15.50 Euro\n1 x 8.99 Euro\n\n3 x 4.21 Euro\n1 x 39.00 Euro\n91.62 Euro\n"
)

func whitakerResult() *extraction.Result {
	return &extraction.Result{
		Layout: extraction.DefaultLayout(),
		Texts: map[string]string{
			"Products":              whitakerProducts,
			"Quantities_and_prices": whitakerQuantities,
			"Qrcode":                "",
			"bloc":                  whitakerHeader,
		},
		QR: &extraction.QRPayload{
			InvoiceReference: "2023-0042-118",
			IssuedAtText:     "2023-05-01 10:12:00",
			Gender:           "M",
			BirthdateText:    "1985-03-14",
		},
	}
}
