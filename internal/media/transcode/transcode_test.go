package transcode

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"musicaldb_backend/internal/media/domain"
	"musicaldb_backend/platform/config"
)

func testTranscoder() *Transcoder {
	return New(domain.NewPolicies(config.MediaPolicy{
		Poster:  config.PosterPolicy{MaxWidth: 1200, MaxHeight: 1800, MaxBytes: 10 << 20},
		Profile: config.ProfilePolicy{SquareSize: 400, MaxBytes: 5 << 20},
	}), 85)
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 7 {
		for x := 0; x < w; x += 7 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("expected jpeg output, got %s", format)
	}
	return cfg.Width, cfg.Height
}

func TestPosterFitsInsideBoundsPreservingAspect(t *testing.T) {
	res, err := testTranscoder().Process(encodeJPEG(t, 2400, 3600), domain.PurposePoster)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Width != 1200 || res.Height != 1800 {
		t.Fatalf("expected 1200x1800, got %dx%d", res.Width, res.Height)
	}
	w, h := decodeSize(t, res.Data)
	if w != res.Width || h != res.Height {
		t.Fatalf("reported %dx%d but encoded %dx%d", res.Width, res.Height, w, h)
	}
	if res.Size != int64(len(res.Data)) || res.MimeType != MimeTypeJPEG || res.Extension != ExtensionJPEG {
		t.Fatalf("unexpected metadata: %+v", res)
	}
}

func TestPosterNeverUpscales(t *testing.T) {
	res, err := testTranscoder().Process(encodeJPEG(t, 300, 200), domain.PurposePoster)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Width != 300 || res.Height != 200 {
		t.Fatalf("expected original 300x200, got %dx%d", res.Width, res.Height)
	}
}

func TestProfileIsSquare(t *testing.T) {
	res, err := testTranscoder().Process(encodeJPEG(t, 900, 600), domain.PurposeProfile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Width != 400 || res.Height != 400 {
		t.Fatalf("expected 400x400, got %dx%d", res.Width, res.Height)
	}
}

func TestProcessIsDeterministic(t *testing.T) {
	src := encodeJPEG(t, 640, 480)
	tr := testTranscoder()

	a, err := tr.Process(src, domain.PurposeProfile)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := tr.Process(src, domain.PurposeProfile)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !bytes.Equal(a.Data, b.Data) {
		t.Fatalf("expected identical output bytes")
	}
}

func TestTransparentPNGIsFlattened(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	res, err := testTranscoder().Process(buf.Bytes(), domain.PurposePoster)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := jpeg.Decode(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, g, b, _ := out.At(5, 5).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Fatalf("expected white background, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestGarbageYieldsTranscodeError(t *testing.T) {
	_, err := testTranscoder().Process([]byte("nope"), domain.PurposePoster)
	var terr *TranscodeError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TranscodeError, got %v", err)
	}
}

func TestApplyOrientationSwapsAxes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 10))
	rotated := applyOrientation(img, 6)
	if rotated.Bounds().Dx() != 10 || rotated.Bounds().Dy() != 40 {
		t.Fatalf("expected 10x40 after orientation 6, got %v", rotated.Bounds())
	}
	if applyOrientation(img, 1) != image.Image(img) {
		t.Fatalf("orientation 1 must be a no-op")
	}
	if readOrientation([]byte("no exif here")) != 1 {
		t.Fatalf("missing exif must default to 1")
	}
}

func TestPaletteReturnsHexColors(t *testing.T) {
	colors, err := Palette(encodeJPEG(t, 64, 64), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(colors) == 0 || len(colors) > 3 {
		t.Fatalf("expected 1-3 colors, got %v", colors)
	}
	for _, c := range colors {
		if len(c) != 7 || c[0] != '#' {
			t.Fatalf("expected #rrggbb, got %q", c)
		}
	}
}
