package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/extraction"
)

// TesseractRecognizer runs the local Tesseract engine in single-block mode.
// A gosseract client is not safe for concurrent use, so each call owns one.
type TesseractRecognizer struct {
	languages []string
}

func NewTesseractRecognizer(languages []string) *TesseractRecognizer {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractRecognizer{languages: languages}
}

// Recognize returns the text of img. The engine cannot be interrupted, so
// ctx is only checked before it starts.
func (t *TesseractRecognizer) Recognize(ctx context.Context, img image.Image, opts extraction.RecognizeOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("encode zone: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	langs := t.languages
	if len(opts.Languages) > 0 {
		langs = opts.Languages
	}
	if err := client.SetLanguage(langs...); err != nil {
		return "", fmt.Errorf("set language %s: %w", strings.Join(langs, "+"), err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", err
	}
	if opts.Whitelist != "" {
		if err := client.SetWhitelist(opts.Whitelist); err != nil {
			return "", err
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", err
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}
