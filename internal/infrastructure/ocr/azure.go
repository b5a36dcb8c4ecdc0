package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
	"github.com/disintegration/imaging"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/extraction"
)

// AzureRecognizer sends zones to the Azure Computer Vision OCR endpoint.
// The service has no character whitelist, so it is applied to the result.
type AzureRecognizer struct {
	client   computervision.BaseClient
	language computervision.OcrLanguages
}

func NewAzureRecognizer(endpoint, apiKey string, languages []string) *AzureRecognizer {
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)

	return &AzureRecognizer{
		client:   client,
		language: azureLanguage(languages),
	}
}

func (a *AzureRecognizer) Recognize(ctx context.Context, img image.Image, opts extraction.RecognizeOptions) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("encode zone: %w", err)
	}

	language := a.language
	if len(opts.Languages) > 0 {
		language = azureLanguage(opts.Languages)
	}

	result, err := a.client.RecognizePrintedTextInStream(ctx, false, io.NopCloser(&buf), language)
	if err != nil {
		return "", fmt.Errorf("azure ocr: %w", err)
	}

	return applyWhitelist(flattenOCRResult(result), opts.Whitelist), nil
}

// flattenOCRResult joins words with spaces and lines with newlines, region by region
func flattenOCRResult(result computervision.OcrResult) string {
	if result.Regions == nil {
		return ""
	}

	var lines []string
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			words := make([]string, 0, len(*line.Words))
			for _, word := range *line.Words {
				if word.Text != nil {
					words = append(words, *word.Text)
				}
			}
			if len(words) > 0 {
				lines = append(lines, strings.Join(words, " "))
			}
		}
	}
	return strings.Join(lines, "\n")
}

// applyWhitelist drops every rune not in whitelist, keeping line breaks
func applyWhitelist(text, whitelist string) string {
	if whitelist == "" {
		return text
	}
	return strings.Map(func(r rune) rune {
		if r == '\n' || strings.ContainsRune(whitelist, r) {
			return r
		}
		return -1
	}, text)
}

// azureLanguage maps Tesseract language codes onto the service's codes
func azureLanguage(languages []string) computervision.OcrLanguages {
	if len(languages) != 1 {
		return computervision.OcrLanguagesUnk
	}
	switch strings.ToLower(languages[0]) {
	case "eng", "en":
		return computervision.OcrLanguagesEn
	case "fra", "fr":
		return computervision.OcrLanguagesFr
	case "deu", "de":
		return computervision.OcrLanguagesDe
	case "spa", "es":
		return computervision.OcrLanguagesEs
	default:
		return computervision.OcrLanguagesUnk
	}
}
