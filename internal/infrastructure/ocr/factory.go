package ocr

import (
	"fmt"

	"github.com/MelodyDuplaix/Projet-OCR/internal/core/services/extraction"
	"github.com/MelodyDuplaix/Projet-OCR/internal/pkg/config"
)

// NewRecognizer returns the engine named by cfg.Engine
func NewRecognizer(cfg *config.OCRConfig) (extraction.Recognizer, error) {
	switch cfg.Engine {
	case "", "tesseract":
		return NewTesseractRecognizer(cfg.Languages), nil
	case "azure":
		if cfg.AzureEndpoint == "" || cfg.AzureKey == "" {
			return nil, fmt.Errorf("azure OCR requires an endpoint and a key")
		}
		return NewAzureRecognizer(cfg.AzureEndpoint, cfg.AzureKey, cfg.Languages), nil
	default:
		return nil, fmt.Errorf("unsupported OCR engine %q", cfg.Engine)
	}
}
