package image

import (
	"bytes"
	"fmt"
	"image"
	"net/http"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"lazy-lister/internal/platform/config"
	"lazy-lister/internal/platform/logging"
)

// SecurityValidator performs layered checks against incoming image payloads.
// Without deep scan it only enforces size and format allow-lists, so anything
// the provider can read is forwarded.
type SecurityValidator struct {
	config *config.ImageConfig
	logger *logging.Logger
}

// NewSecurityValidator constructs a new validator instance.
func NewSecurityValidator(cfg *config.ImageConfig, logger *logging.Logger) *SecurityValidator {
	return &SecurityValidator{
		config: cfg,
		logger: logger,
	}
}

var imageSignatures = map[string][]byte{
	"jpeg": {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"gif":  {0x47, 0x49, 0x46, 0x38},
	"webp": {0x52, 0x49, 0x46, 0x46},
	"bmp":  {0x42, 0x4D},
}

var formatMIME = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"heic": "image/heic",
	"heif": "image/heif",
}

// NormalizeFormat maps a MIME type or file extension to a short format name.
func NormalizeFormat(declared string) string {
	f := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(f, ';'); i >= 0 {
		f = strings.TrimSpace(f[:i])
	}
	f = strings.TrimPrefix(f, "image/")
	f = strings.TrimPrefix(f, ".")
	switch f {
	case "jpg", "pjpeg":
		return "jpeg"
	case "tif":
		return "tiff"
	}
	return f
}

// MIMEFor returns the MIME type for a short format name, falling back to
// image/<format>.
func MIMEFor(format string) string {
	if mime, ok := formatMIME[format]; ok {
		return mime
	}
	if format == "" {
		return "application/octet-stream"
	}
	return "image/" + format
}

// ValidateBytes validates raw bytes directly.
func (v *SecurityValidator) ValidateBytes(raw []byte, declaredFormat string) ValidationResult {
	result := ValidationResult{IsValid: false}
	declared := NormalizeFormat(declaredFormat)

	if len(raw) == 0 {
		result.Error = fmt.Errorf("empty image payload")
		return result
	}

	if v.config.MaxFileSize > 0 && int64(len(raw)) > v.config.MaxFileSize {
		result.Error = fmt.Errorf(
			"file size exceeds limit: %d bytes (max %d bytes)",
			len(raw),
			v.config.MaxFileSize,
		)
		result.SecurityRisk = "file too large"
		v.logger.WarnTag("Image", "detected oversized image: size=%d max_size=%d format=%s",
			len(raw), v.config.MaxFileSize, declared)
		return result
	}

	format := v.detectFormat(raw, declared)
	if !v.isFormatAllowed(format) {
		result.Error = fmt.Errorf("unsupported format: %s", format)
		result.SecurityRisk = "unapproved format"
		return result
	}

	if !v.config.EnableDeepScan {
		result.IsValid = true
		result.Format = format
		result.FileSize = int64(len(raw))
		return result
	}

	decodeResult := v.validateImageDecoding(raw, format)
	if !decodeResult.IsValid {
		if declared != "" && !v.validateFileSignature(raw, declared) {
			v.logger.WarnTag("Image", "file signature mismatch: declared_format=%s actual_header=%x",
				declared, raw[:min(len(raw), 16)])
		}
		return decodeResult
	}
	return decodeResult
}

// detectFormat prefers the content itself over the declared type. Unknown
// content keeps the declared format so the provider can decide.
func (v *SecurityValidator) detectFormat(raw []byte, declared string) string {
	if _, sniffed, err := image.DecodeConfig(bytes.NewReader(raw)); err == nil && sniffed != "" {
		return sniffed
	}
	// Non-image sniff results keep their "type/subtype" form.
	if sniffed := NormalizeFormat(http.DetectContentType(raw)); sniffed != "" && !strings.Contains(sniffed, "/") {
		return sniffed
	}
	return declared
}

func (v *SecurityValidator) isFormatAllowed(format string) bool {
	if v.config == nil || len(v.config.AllowedFormats) == 0 {
		return true
	}
	if format == "" {
		return false
	}
	for _, allowed := range v.config.AllowedFormats {
		if NormalizeFormat(allowed) == format {
			return true
		}
	}
	return false
}

func (v *SecurityValidator) validateFileSignature(raw []byte, format string) bool {
	signature, ok := imageSignatures[format]
	if !ok || len(signature) == 0 {
		return true
	}
	if len(raw) < len(signature) {
		return false
	}
	return bytes.Equal(signature, raw[:len(signature)])
}

func (v *SecurityValidator) scanForMaliciousContent(raw []byte) bool {
	suspicious := [][]byte{
		{0x4D, 0x5A},             // PE
		{0x25, 0x50, 0x44, 0x46}, // PDF
		{0x50, 0x4B, 0x03, 0x04}, // zip
		{0x1F, 0x8B, 0x08},       // gzip
	}
	for _, signature := range suspicious {
		if bytes.HasPrefix(raw, signature) {
			v.logger.WarnTag("Image", "detected non-image signature: signature_hex=%x", signature)
			return true
		}
	}

	lower := strings.ToLower(string(raw))
	if !strings.Contains(lower, "<svg") {
		return false
	}
	for _, token := range []string{"<script", "javascript:", "onload=", "onerror=", "<iframe", "<object", "<embed"} {
		if strings.Contains(lower, token) {
			v.logger.WarnTag("Image", "detected suspicious SVG content: token=%s", token)
			return true
		}
	}
	return false
}

func (v *SecurityValidator) validateImageDecoding(raw []byte, format string) ValidationResult {
	result := ValidationResult{Format: format}

	if v.scanForMaliciousContent(raw) {
		result.Error = fmt.Errorf("potential malicious content detected")
		result.SecurityRisk = "suspicious content"
		return result
	}

	cfg, actualFormat, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		result.Error = fmt.Errorf("decode image config: %w", err)
		result.SecurityRisk = "corrupted image data"
		return result
	}
	if actualFormat != "" {
		result.Format = actualFormat
	}

	if (v.config.MaxWidth > 0 && cfg.Width > v.config.MaxWidth) ||
		(v.config.MaxHeight > 0 && cfg.Height > v.config.MaxHeight) {
		result.Error = fmt.Errorf("dimensions exceed limit: %dx%d (max %dx%d)",
			cfg.Width, cfg.Height, v.config.MaxWidth, v.config.MaxHeight)
		result.SecurityRisk = "dimensions too large"
		return result
	}

	totalPixels := int64(cfg.Width) * int64(cfg.Height)
	if v.config.MaxPixels > 0 && totalPixels > v.config.MaxPixels {
		result.Error = fmt.Errorf("pixel count exceeds limit: %d (max %d)", totalPixels, v.config.MaxPixels)
		result.SecurityRisk = "pixel count too high"
		return result
	}

	result.IsValid = true
	result.Width = cfg.Width
	result.Height = cfg.Height
	result.FileSize = int64(len(raw))

	v.logger.DebugTag("Image", "image validation success: format=%s width=%d height=%d size=%d",
		result.Format, result.Width, result.Height, result.FileSize)
	return result
}
