// Package transcode normalizes validated images into the canonical stored
// form for their purpose.
package transcode

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/png"

	"musicaldb_backend/internal/media/domain"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	FormatJPEG    = "jpeg"
	MimeTypeJPEG  = "image/jpeg"
	ExtensionJPEG = ".jpg"
)

// Result is the transcoded image.
type Result struct {
	Data      []byte
	Format    string
	MimeType  string
	Extension string
	Width     int
	Height    int
	Size      int64
}

// TranscodeError reports that the source could not be decoded or encoded.
type TranscodeError struct {
	Purpose domain.Purpose
	Err     error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode %s: %v", e.Purpose, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// Transcoder applies the purpose geometry and re-encodes as JPEG.
type Transcoder struct {
	policies domain.Policies
	quality  int
}

// New creates a Transcoder with the given JPEG quality (1-100).
func New(policies domain.Policies, quality int) *Transcoder {
	return &Transcoder{policies: policies, quality: quality}
}

// Process decodes data, applies EXIF orientation and the purpose geometry,
// flattens transparency onto white and encodes JPEG. Same input, same output.
func (t *Transcoder) Process(data []byte, purpose domain.Purpose) (Result, error) {
	policy, ok := t.policies.For(purpose)
	if !ok {
		return Result{}, &TranscodeError{Purpose: purpose, Err: fmt.Errorf("no policy")}
	}

	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, &TranscodeError{Purpose: purpose, Err: err}
	}
	src = applyOrientation(src, readOrientation(data))

	var shaped image.Image
	switch policy.Geometry.Mode {
	case domain.GeometrySquare:
		edge := policy.Geometry.Edge
		shaped = imaging.Fill(src, edge, edge, imaging.Center, imaging.Lanczos)
	default:
		shaped = imaging.Fit(src, policy.Geometry.MaxWidth, policy.Geometry.MaxHeight, imaging.Lanczos)
	}

	bounds := shaped.Bounds()
	flat := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	flat = imaging.Overlay(flat, shaped, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(t.quality)); err != nil {
		return Result{}, &TranscodeError{Purpose: purpose, Err: err}
	}

	return Result{
		Data:      buf.Bytes(),
		Format:    FormatJPEG,
		MimeType:  MimeTypeJPEG,
		Extension: ExtensionJPEG,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Size:      int64(buf.Len()),
	}, nil
}
