package image

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"ar-scan-go/internal/platform/logging"
)

// Validator sniffs and bounds a raw capture before it is decoded.
type Validator struct {
	maxBytes  int64
	maxPixels int64
	logger    *logging.Logger
}

func NewValidator(maxBytes int64, logger *logging.Logger) *Validator {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &Validator{
		maxBytes:  maxBytes,
		maxPixels: 64 * 1024 * 1024,
		logger:    logger,
	}
}

var imageSignatures = []struct {
	format string
	sig    []byte
}{
	{"jpeg", []byte{0xFF, 0xD8}},
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{"gif", []byte{0x47, 0x49, 0x46, 0x38}},
	{"webp", []byte{0x52, 0x49, 0x46, 0x46}},
}

// executables and archives masquerading as captures
var suspiciousSignatures = [][]byte{
	{0x4D, 0x5A},
	{0x25, 0x50, 0x44, 0x46},
	{0x50, 0x4B, 0x03, 0x04},
	{0x1F, 0x8B, 0x08},
}

// Validate checks size, signature and decodable header of raw.
func (v *Validator) Validate(raw []byte) ValidationResult {
	result := ValidationResult{FileSize: int64(len(raw))}

	if len(raw) == 0 {
		result.Error = fmt.Errorf("empty image payload")
		return result
	}
	if int64(len(raw)) > v.maxBytes {
		result.Error = fmt.Errorf("image size %d exceeds limit %d", len(raw), v.maxBytes)
		result.SecurityRisk = "file too large"
		return result
	}

	for _, sig := range suspiciousSignatures {
		if bytes.HasPrefix(raw, sig) {
			v.logger.WarnTag(logging.TagVision, "rejected capture with signature %x", sig)
			result.Error = fmt.Errorf("payload is not an image")
			result.SecurityRisk = "suspicious content"
			return result
		}
	}

	sniffed := sniffFormat(raw)
	if sniffed == "" {
		result.Error = fmt.Errorf("unrecognised image signature %x", raw[:min(len(raw), 8)])
		return result
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		result.Error = fmt.Errorf("decode %s header: %w", sniffed, err)
		result.SecurityRisk = "corrupted image data"
		return result
	}
	if int64(cfg.Width)*int64(cfg.Height) > v.maxPixels {
		result.Error = fmt.Errorf("pixel count %dx%d exceeds limit", cfg.Width, cfg.Height)
		result.SecurityRisk = "pixel count too high"
		return result
	}

	result.IsValid = true
	result.Format = format
	result.Width = cfg.Width
	result.Height = cfg.Height

	v.logger.DebugTag(logging.TagVision, "capture validated: format=%s width=%d height=%d size=%d",
		result.Format, result.Width, result.Height, result.FileSize)
	return result
}

func sniffFormat(raw []byte) string {
	for _, s := range imageSignatures {
		if bytes.HasPrefix(raw, s.sig) {
			return s.format
		}
	}
	return ""
}
