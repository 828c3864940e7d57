package image

import (
	"bytes"
	"context"
	"crypto/rand"
	goimage "image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lazy-lister/internal/platform/config"
	"lazy-lister/internal/platform/errors"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := goimage.NewRGBA(goimage.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	img := goimage.NewRGBA(goimage.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	random := make([]byte, 4096)
	_, err := rand.Read(random)
	require.NoError(t, err)

	for name, raw := range map[string][]byte{
		"empty":  {},
		"single": {0x00},
		"text":   []byte("Title: Blue Mug\nPrice: ₦2000"),
		"random": random,
	} {
		t.Run(name, func(t *testing.T) {
			decoded, err := Decode(Encode(raw))
			require.NoError(t, err)
			assert.True(t, bytes.Equal(raw, decoded))
		})
	}
	assert.Equal(t, "", Encode(nil))
}

func TestPipeline_ProcessPNG(t *testing.T) {
	raw := encodePNG(t, 8, 6)
	p := NewPipeline(Options{Limits: config.DefaultConfig().Image})

	out, err := p.Process(context.Background(), Input{
		Reader:         bytes.NewReader(raw),
		DeclaredFormat: "image/png",
		Source:         "test",
	})
	require.NoError(t, err)
	assert.Equal(t, "png", out.Format)
	assert.Equal(t, "image/png", out.MIMEType)
	assert.Equal(t, raw, out.Bytes)
	assert.Equal(t, Encode(raw), out.Base64)
	assert.Equal(t, len(raw), out.Size())
	assert.True(t, strings.HasPrefix(out.DataURL(), "data:image/png;base64,"))
}

func TestPipeline_DetectsFormatOverDeclared(t *testing.T) {
	raw := encodeJPEG(t)
	p := NewPipeline(Options{})

	out, err := p.Process(context.Background(), Input{
		Reader:         bytes.NewReader(raw),
		DeclaredFormat: "application/octet-stream",
	})
	require.NoError(t, err)
	assert.Equal(t, "jpeg", out.Format)
	assert.Equal(t, "image/jpeg", out.MIMEType)
}

func TestPipeline_UnknownContentKeepsDeclaredType(t *testing.T) {
	p := NewPipeline(Options{})

	out, err := p.Process(context.Background(), Input{
		Reader:         strings.NewReader("not really an image"),
		DeclaredFormat: "image/heic",
	})
	require.NoError(t, err)
	assert.Equal(t, "heic", out.Format)
	assert.Equal(t, "image/heic", out.MIMEType)
}

func TestPipeline_EmptyInput(t *testing.T) {
	p := NewPipeline(Options{})

	_, err := p.Process(context.Background(), Input{Reader: bytes.NewReader(nil)})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInput))
	assert.Equal(t, ErrEmptyImage, err)

	_, err = p.Process(context.Background(), Input{})
	assert.Equal(t, ErrEmptyImage, err)
}

func TestPipeline_TooLarge(t *testing.T) {
	p := NewPipeline(Options{Limits: config.ImageConfig{MaxFileSize: 16}})

	_, err := p.Process(context.Background(), Input{Reader: bytes.NewReader(make([]byte, 17))})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInput))
	assert.Contains(t, err.Error(), "Image too large")

	_, err = p.Process(context.Background(), Input{Reader: bytes.NewReader(make([]byte, 16))})
	assert.NoError(t, err)
}

func TestPipeline_AllowedFormats(t *testing.T) {
	p := NewPipeline(Options{Limits: config.ImageConfig{AllowedFormats: []string{"png", "jpg"}}})

	_, err := p.Process(context.Background(), Input{Reader: bytes.NewReader(encodeJPEG(t))})
	assert.NoError(t, err)

	gif := []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
	_, err = p.Process(context.Background(), Input{Reader: bytes.NewReader(gif), DeclaredFormat: "image/gif"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInput))
}

func TestPipeline_DeepScan(t *testing.T) {
	limits := config.DefaultConfig().Image
	limits.EnableDeepScan = true
	limits.MaxWidth = 10
	p := NewPipeline(Options{Limits: limits})

	_, err := p.Process(context.Background(), Input{Reader: bytes.NewReader(encodePNG(t, 4, 4))})
	assert.NoError(t, err)

	_, err = p.Process(context.Background(), Input{Reader: bytes.NewReader(encodePNG(t, 20, 4))})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions exceed limit")

	_, err = p.Process(context.Background(), Input{
		Reader:         strings.NewReader("%PDF-1.7 pretending"),
		DeclaredFormat: "image/png",
	})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInput))
}

func TestPipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(Options{}).Process(ctx, Input{Reader: bytes.NewReader(encodePNG(t, 2, 2))})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeFormat(t *testing.T) {
	tests := map[string]string{
		"image/jpeg":                "jpeg",
		"image/jpg":                 "jpeg",
		".JPG":                      "jpeg",
		"image/png; charset=binary": "png",
		"tif":                       "tiff",
		"webp":                      "webp",
		"":                          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeFormat(in), "input %q", in)
	}
	assert.Equal(t, "image/heic", MIMEFor("heic"))
	assert.Equal(t, "image/avif", MIMEFor("avif"))
	assert.Equal(t, "application/octet-stream", MIMEFor(""))
}
