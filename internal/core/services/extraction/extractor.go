package extraction

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"

	apperrors "github.com/MelodyDuplaix/Projet-OCR/internal/pkg/errors"
)

// NumericWhitelist restricts OCR of the quantities/prices zone.
const NumericWhitelist = "0123456789.,xEuro "

var errEmptyZone = errors.New("zone lies outside the image")

// RecognizeOptions tune one OCR call
type RecognizeOptions struct {
	Whitelist string
	Languages []string
}

// Recognizer turns a preprocessed zone image into text
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, opts RecognizeOptions) (string, error)
}

// QRDecoder reads the raw text of a QR symbol in img
type QRDecoder interface {
	Decode(img image.Image) (string, error)
}

// Config holds preprocessing parameters
type Config struct {
	ScaleFactor   float64  `json:"scale_factor"`
	QRScaleFactor float64  `json:"qr_scale_factor"`
	ClipLimit     float64  `json:"clip_limit"`
	TileGrid      int      `json:"tile_grid"`
	Languages     []string `json:"languages"`
}

// DefaultConfig returns the preprocessing used for the generated invoices
func DefaultConfig() Config {
	return Config{
		ScaleFactor:   2,
		QRScaleFactor: 3,
		ClipLimit:     2.0,
		TileGrid:      10,
	}
}

// Result is the per-zone text of one image plus its QR payload
type Result struct {
	Layout Layout            `json:"layout"`
	Texts  map[string]string `json:"texts"`
	QR     *QRPayload        `json:"qr,omitempty"`
	QRRaw  string            `json:"qr_raw,omitempty"`
}

// TextFor returns the text of the first zone carrying role, or "".
func (r *Result) TextFor(role Role) string {
	if z, ok := r.Layout.ZoneByRole(role); ok {
		return r.Texts[z.Name]
	}
	return ""
}

// Concatenated joins every zone text in layout order.
func (r *Result) Concatenated() string {
	parts := make([]string, 0, len(r.Layout.Zones))
	for _, z := range r.Layout.Zones {
		parts = append(parts, r.Texts[z.Name])
	}
	return strings.Join(parts, " ")
}

// Extractor reads every zone of a layout from an invoice image
type Extractor struct {
	layout     Layout
	config     Config
	recognizer Recognizer
	qr         QRDecoder
	logger     *slog.Logger
}

// NewExtractor creates an extractor; a nil qr decoder disables QR reading.
func NewExtractor(layout Layout, config Config, recognizer Recognizer, qr QRDecoder, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if config.ScaleFactor <= 0 {
		config.ScaleFactor = defaults.ScaleFactor
	}
	if config.QRScaleFactor <= 0 {
		config.QRScaleFactor = defaults.QRScaleFactor
	}
	if config.ClipLimit <= 0 {
		config.ClipLimit = defaults.ClipLimit
	}
	if config.TileGrid <= 0 {
		config.TileGrid = defaults.TileGrid
	}

	return &Extractor{
		layout:     layout,
		config:     config,
		recognizer: recognizer,
		qr:         qr,
		logger:     logger,
	}
}

// Layout returns the zone layout in use
func (e *Extractor) Layout() Layout {
	return e.layout
}

// ExtractFile opens path, honouring EXIF orientation, and extracts it.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Result, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.InvalidImage(err)
	}
	return e.Extract(ctx, img)
}

// Extract runs OCR on every zone and decodes the QR zone. An unreadable zone
// yields "" and an unreadable QR yields a nil payload; only a nil image or a
// cancelled context are returned as errors.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (*Result, error) {
	if img == nil {
		return nil, apperrors.InvalidImage(errors.New("nil image"))
	}

	result := &Result{
		Layout: e.layout,
		Texts:  make(map[string]string, len(e.layout.Zones)),
	}

	for _, zone := range e.layout.Zones {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := e.readZone(ctx, img, zone)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			e.logger.Warn("zone unreadable",
				slog.String("zone", zone.Name),
				"error", err)
			text = ""
		}
		result.Texts[zone.Name] = text
	}

	if zone, ok := e.layout.ZoneByRole(RoleQRCode); ok && e.qr != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.QRRaw, result.QR = e.decodeQR(img, zone)
	}

	return result, nil
}

func (e *Extractor) readZone(ctx context.Context, img image.Image, zone Zone) (string, error) {
	crop := cropZone(img, zone)
	if crop == nil {
		return "", errEmptyZone
	}

	gray := toGray(upscale(crop, e.config.ScaleFactor))
	enhanced := CLAHE(gray, e.config.ClipLimit, e.config.TileGrid)
	binary := Binarize(enhanced, OtsuThreshold(enhanced))

	opts := RecognizeOptions{
		Whitelist: zone.Whitelist,
		Languages: e.config.Languages,
	}
	if opts.Whitelist == "" && zone.Role == RoleQuantitiesPrices {
		opts.Whitelist = NumericWhitelist
	}

	text, err := e.recognizer.Recognize(ctx, binary, opts)
	if err != nil {
		return "", apperrors.OCRFailed(err)
	}
	return text, nil
}

// decodeQR tries the contrast-enhanced zone first, then a larger raw upscale.
func (e *Extractor) decodeQR(img image.Image, zone Zone) (string, *QRPayload) {
	crop := cropZone(img, zone)
	if crop == nil {
		return "", nil
	}

	gray := toGray(crop)
	enhanced := CLAHE(gray, e.config.ClipLimit, e.config.TileGrid)

	raw, err := e.qr.Decode(upscale(enhanced, e.config.QRScaleFactor))
	if err != nil {
		e.logger.Debug("qr decode failed on enhanced zone, retrying", "error", err)
		raw, err = e.qr.Decode(upscale(gray, e.config.QRScaleFactor*2))
	}
	if err != nil {
		e.logger.Warn("qr code unreadable", slog.String("zone", zone.Name), "error", err)
		return "", nil
	}

	payload := ParseQRPayload(raw)
	if payload == nil {
		e.logger.Warn("qr payload malformed", slog.String("zone", zone.Name))
	}
	return raw, payload
}
