package extraction

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	size image.Point
	opts RecognizeOptions
}

// fakeRecognizer answers zone texts in call order and records what it saw
type fakeRecognizer struct {
	mu      sync.Mutex
	answers []string
	errs    []error
	calls   []recordedCall
}

func (f *fakeRecognizer) Recognize(ctx context.Context, img image.Image, opts RecognizeOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.calls)
	f.calls = append(f.calls, recordedCall{size: img.Bounds().Size(), opts: opts})
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.answers) {
		return f.answers[i], nil
	}
	return "", nil
}

type fakeQRDecoder struct {
	failFirst int
	payload   string
	sizes     []image.Point
}

func (f *fakeQRDecoder) Decode(img image.Image) (string, error) {
	f.sizes = append(f.sizes, img.Bounds().Size())
	if len(f.sizes) <= f.failFirst {
		return "", errors.New("no symbol found")
	}
	return f.payload, nil
}

const validPayload = "INVOICE:FAC/2023/0042-118\nDATE:2023-05-01 10:12:00\nCUST:M, birth 1985-03-14"

func invoiceImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 800, 1100))
}

func TestExtractor_ReadsEveryZoneInLayoutOrder(t *testing.T) {
	rec := &fakeRecognizer{answers: []string{"products", "qty", "qr-noise", "header"}}
	qr := &fakeQRDecoder{payload: validPayload}
	ex := NewExtractor(DefaultLayout(), DefaultConfig(), rec, qr, nil)

	res, err := ex.Extract(context.Background(), invoiceImage())
	require.NoError(t, err)

	assert.Equal(t, "products", res.TextFor(RoleProducts))
	assert.Equal(t, "qty", res.TextFor(RoleQuantitiesPrices))
	assert.Equal(t, "header", res.TextFor(RoleHeader))
	assert.Equal(t, "products qty qr-noise header", res.Concatenated())

	require.Len(t, rec.calls, 4)
	// zones are upscaled by the scale factor
	assert.Equal(t, image.Pt(840, 1800), rec.calls[0].size)
	// the quantities zone is restricted to the numeric whitelist
	assert.Equal(t, "", rec.calls[0].opts.Whitelist)
	assert.Equal(t, NumericWhitelist, rec.calls[1].opts.Whitelist)

	require.NotNil(t, res.QR)
	assert.Equal(t, "2023-0042-118", res.QR.InvoiceReference)
	assert.Len(t, qr.sizes, 1)
	assert.Equal(t, image.Pt(540, 540), qr.sizes[0])
}

func TestExtractor_UnreadableZoneBecomesEmpty(t *testing.T) {
	rec := &fakeRecognizer{
		answers: []string{"products", "", "", "header"},
		errs:    []error{nil, errors.New("tesseract crashed")},
	}
	ex := NewExtractor(DefaultLayout(), DefaultConfig(), rec, &fakeQRDecoder{payload: validPayload}, nil)

	res, err := ex.Extract(context.Background(), invoiceImage())
	require.NoError(t, err)
	assert.Equal(t, "", res.TextFor(RoleQuantitiesPrices))
	assert.Equal(t, "header", res.TextFor(RoleHeader))
}

func TestExtractor_ZoneOutsideImage(t *testing.T) {
	rec := &fakeRecognizer{answers: []string{"a"}}
	layout := Layout{Name: "tiny", Zones: []Zone{
		{Name: "far", Role: RoleHeader, X: 5000, Y: 5000, Width: 10, Height: 10},
	}}
	ex := NewExtractor(layout, DefaultConfig(), rec, nil, nil)

	res, err := ex.Extract(context.Background(), invoiceImage())
	require.NoError(t, err)
	assert.Equal(t, "", res.Texts["far"])
	assert.Empty(t, rec.calls)
	assert.Nil(t, res.QR)
}

func TestExtractor_QRFallbackUpscale(t *testing.T) {
	qr := &fakeQRDecoder{failFirst: 1, payload: validPayload}
	ex := NewExtractor(DefaultLayout(), DefaultConfig(), &fakeRecognizer{}, qr, nil)

	res, err := ex.Extract(context.Background(), invoiceImage())
	require.NoError(t, err)

	require.Len(t, qr.sizes, 2)
	assert.Equal(t, image.Pt(1080, 1080), qr.sizes[1])
	require.NotNil(t, res.QR)
}

func TestExtractor_QRFailureYieldsNilPayload(t *testing.T) {
	qr := &fakeQRDecoder{failFirst: 2}
	ex := NewExtractor(DefaultLayout(), DefaultConfig(), &fakeRecognizer{}, qr, nil)

	res, err := ex.Extract(context.Background(), invoiceImage())
	require.NoError(t, err)
	assert.Nil(t, res.QR)
}

func TestExtractor_MalformedQRPayload(t *testing.T) {
	qr := &fakeQRDecoder{payload: "hello"}
	ex := NewExtractor(DefaultLayout(), DefaultConfig(), &fakeRecognizer{}, qr, nil)

	res, err := ex.Extract(context.Background(), invoiceImage())
	require.NoError(t, err)
	assert.Nil(t, res.QR)
	assert.Equal(t, "hello", res.QRRaw)
}

func TestExtractor_NilImage(t *testing.T) {
	ex := NewExtractor(DefaultLayout(), DefaultConfig(), &fakeRecognizer{}, nil, nil)
	_, err := ex.Extract(context.Background(), nil)
	assert.Error(t, err)
}

func TestExtractor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := NewExtractor(DefaultLayout(), DefaultConfig(), &fakeRecognizer{}, nil, nil)
	_, err := ex.Extract(ctx, invoiceImage())
	assert.ErrorIs(t, err, context.Canceled)
}
