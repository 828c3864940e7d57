package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"

	"lazy-lister/internal/platform/config"
	"lazy-lister/internal/platform/errors"
	"lazy-lister/internal/platform/logging"
)

const defaultMaxFileSize = 20 * 1024 * 1024

// ErrEmptyImage is returned for a zero-byte upload.
var ErrEmptyImage = errors.New(errors.KindInput, "image.process", "No image found")

// Pipeline orchestrates streaming ingestion, validation, and encoding of image payloads.
type Pipeline struct {
	validator *SecurityValidator
	logger    *logging.Logger
	limits    config.ImageConfig
}

// Options configures the pipeline behaviour.
type Options struct {
	Limits config.ImageConfig
	Logger *logging.Logger
}

// Input describes a streaming image payload.
type Input struct {
	Reader io.Reader
	// DeclaredFormat is the client-supplied content type or extension.
	DeclaredFormat string
	Source         string
}

// NewPipeline constructs a streaming image pipeline.
func NewPipeline(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Limits.MaxFileSize <= 0 {
		opts.Limits.MaxFileSize = defaultMaxFileSize
	}

	p := &Pipeline{
		logger: opts.Logger,
		limits: opts.Limits,
	}
	p.validator = NewSecurityValidator(&p.limits, opts.Logger)
	return p
}

// Process streams the input through validation and base64 encoding. All
// rejections are tagged as input errors.
func (p *Pipeline) Process(ctx context.Context, input Input) (*Payload, error) {
	const op = "image.process"
	if input.Reader == nil {
		return nil, ErrEmptyImage
	}
	if ctx == nil {
		ctx = context.Background()
	}

	maxSize := p.limits.MaxFileSize
	limited := &io.LimitedReader{R: input.Reader, N: maxSize + 1}

	rawBuf := bytes.NewBuffer(make([]byte, 0, 32*1024))
	base64Buf := bytes.NewBuffer(make([]byte, 0, 64*1024))

	encoder := base64.NewEncoder(base64.StdEncoding, base64Buf)
	writer := io.MultiWriter(rawBuf, encoder)

	if _, err := io.Copy(writer, contextReader{ctx: ctx, r: limited}); err != nil {
		return nil, errors.Wrap(errors.KindInput, op, "failed to read image", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, errors.Wrap(errors.KindInput, op, "failed to encode image", err)
	}

	if limited.N <= 0 {
		return nil, errors.New(errors.KindInput, op, "Image too large")
	}
	if rawBuf.Len() == 0 {
		return nil, ErrEmptyImage
	}

	raw := rawBuf.Bytes()
	validation := p.validator.ValidateBytes(raw, input.DeclaredFormat)
	if !validation.IsValid {
		if validation.Error == nil {
			return nil, errors.New(errors.KindInput, op, "Invalid image")
		}
		return nil, errors.Wrap(errors.KindInput, op, "Invalid image", validation.Error)
	}

	p.logger.DebugTag("Image", "image accepted: source=%s format=%s size=%d",
		input.Source, validation.Format, validation.FileSize)

	return &Payload{
		Bytes:    raw,
		Base64:   base64Buf.String(),
		MIMEType: mimeType(validation.Format, input.DeclaredFormat),
		Format:   validation.Format,
	}, nil
}

// mimeType prefers the detected format and falls back to the declared type.
func mimeType(format, declared string) string {
	if format != "" {
		return MIMEFor(format)
	}
	return MIMEFor(NormalizeFormat(declared))
}

// Encode returns the standard base64 text of raw. Zero-length input yields "".
func Encode(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// Decode reverses Encode.
func Decode(data string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(data)
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
