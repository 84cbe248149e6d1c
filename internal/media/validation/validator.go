// Package validation decides whether uploaded bytes are an acceptable image
// for a purpose. It never fails with an error: every outcome is a Verdict.
package validation

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
	"unicode"

	"musicaldb_backend/internal/media/domain"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

// RejectReason is a machine-readable rejection cause.
type RejectReason string

const (
	ReasonNone            RejectReason = ""
	ReasonEmpty           RejectReason = "empty"
	ReasonTooLarge        RejectReason = "too_large"
	ReasonUnsupportedType RejectReason = "unsupported_type"
	ReasonMalformed       RejectReason = "malformed"
	ReasonDimensions      RejectReason = "dimensions"
)

const maxFilenameLength = 255

// Verdict is the outcome of Validate. Width and Height are the intrinsic
// dimensions of the source when Valid.
type Verdict struct {
	Valid     bool
	MimeType  string
	Extension string
	Width     int
	Height    int
	Reason    RejectReason
	Message   string
}

func reject(reason RejectReason, format string, args ...interface{}) Verdict {
	return Verdict{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Validator checks payloads against the purpose policy table.
type Validator struct {
	policies  domain.Policies
	maxPixels int64
}

// New creates a Validator. maxPixels guards against decompression bombs.
func New(policies domain.Policies, maxPixels int64) *Validator {
	return &Validator{policies: policies, maxPixels: maxPixels}
}

// Validate inspects data. The declared filename is never trusted for type
// detection; content is sniffed.
func (v *Validator) Validate(data []byte, declaredFilename string, purpose domain.Purpose) Verdict {
	policy, ok := v.policies.For(purpose)
	if !ok {
		return reject(ReasonUnsupportedType, "Unsupported image purpose %q", purpose)
	}

	if len(data) == 0 {
		return reject(ReasonEmpty, "File is empty")
	}
	if policy.MaxBytes > 0 && int64(len(data)) > policy.MaxBytes {
		return reject(ReasonTooLarge, "File exceeds the %d byte limit for %s images", policy.MaxBytes, purpose)
	}

	detected := mimetype.Detect(data)
	mime := detected.String()
	if !policy.Allows(mime) {
		return reject(ReasonUnsupportedType, "File type %s is not allowed for %s images", mime, purpose)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return reject(ReasonMalformed, "File could not be read as an image")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return reject(ReasonDimensions, "Image has no visible area")
	}
	if v.maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > v.maxPixels {
		return reject(ReasonDimensions, "Image dimensions %dx%d exceed the pixel limit", cfg.Width, cfg.Height)
	}

	return Verdict{
		Valid:     true,
		MimeType:  mime,
		Extension: detected.Extension(),
		Width:     cfg.Width,
		Height:    cfg.Height,
	}
}

// SanitizeFilename reduces a client-declared name to a printable base name
// fit for display. It is never used to build storage keys.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		return "upload"
	}
	if runes := []rune(name); len(runes) > maxFilenameLength {
		name = string(runes[:maxFilenameLength])
	}
	return name
}
