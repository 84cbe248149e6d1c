package validation

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"musicaldb_backend/internal/media/domain"
	"musicaldb_backend/platform/config"
)

func testPolicies() domain.Policies {
	return domain.NewPolicies(config.MediaPolicy{
		Poster: config.PosterPolicy{
			MaxWidth: 1200, MaxHeight: 1800, MaxBytes: 1 << 20,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/webp"},
		},
		Profile: config.ProfilePolicy{
			SquareSize: 400, MaxBytes: 1 << 20,
			AllowedTypes: []string{"image/jpeg", "image/png"},
		},
	})
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestValidateAcceptsPNGAndReportsDimensions(t *testing.T) {
	v := New(testPolicies(), 50_000_000)

	verdict := v.Validate(encodePNG(t, 30, 20), "poster.jpg", domain.PurposePoster)
	if !verdict.Valid {
		t.Fatalf("expected valid verdict, got %+v", verdict)
	}
	if verdict.MimeType != "image/png" || verdict.Extension != ".png" {
		t.Fatalf("expected sniffed png regardless of declared name, got %s %s", verdict.MimeType, verdict.Extension)
	}
	if verdict.Width != 30 || verdict.Height != 20 {
		t.Fatalf("unexpected dimensions %dx%d", verdict.Width, verdict.Height)
	}
}

func TestValidateRejectsTextDisguisedAsImage(t *testing.T) {
	v := New(testPolicies(), 50_000_000)

	verdict := v.Validate([]byte("definitely not an image, just some text"), "poster.jpg", domain.PurposePoster)
	if verdict.Valid || verdict.Reason != ReasonUnsupportedType {
		t.Fatalf("expected unsupported_type, got %+v", verdict)
	}
}

func TestValidateRejectsEmptyAndOversized(t *testing.T) {
	v := New(testPolicies(), 50_000_000)

	if verdict := v.Validate(nil, "x.png", domain.PurposeProfile); verdict.Reason != ReasonEmpty {
		t.Fatalf("expected empty, got %+v", verdict)
	}

	big := make([]byte, (1<<20)+1)
	if verdict := v.Validate(big, "x.png", domain.PurposeProfile); verdict.Reason != ReasonTooLarge {
		t.Fatalf("expected too_large, got %+v", verdict)
	}
}

func TestValidateRejectsTruncatedImage(t *testing.T) {
	v := New(testPolicies(), 50_000_000)
	data := encodePNG(t, 10, 10)

	// Keep the signature so sniffing still says PNG, but cut the header chunk.
	verdict := v.Validate(data[:12], "x.png", domain.PurposePoster)
	if verdict.Valid || verdict.Reason != ReasonMalformed {
		t.Fatalf("expected malformed, got %+v", verdict)
	}
}

func TestValidateRejectsPixelBomb(t *testing.T) {
	v := New(testPolicies(), 100)

	verdict := v.Validate(encodePNG(t, 20, 20), "x.png", domain.PurposePoster)
	if verdict.Reason != ReasonDimensions {
		t.Fatalf("expected dimensions, got %+v", verdict)
	}
}

func TestValidateUsesPerPurposeAllowList(t *testing.T) {
	policies := testPolicies()
	profile := policies[domain.PurposeProfile]
	profile.AllowedTypes = []string{"image/jpeg"}
	policies[domain.PurposeProfile] = profile
	v := New(policies, 50_000_000)

	if verdict := v.Validate(encodePNG(t, 5, 5), "me.png", domain.PurposeProfile); verdict.Reason != ReasonUnsupportedType {
		t.Fatalf("expected png to be rejected for profile, got %+v", verdict)
	}
	if verdict := v.Validate(encodePNG(t, 5, 5), "p.png", domain.PurposePoster); !verdict.Valid {
		t.Fatalf("expected png to stay valid for poster, got %+v", verdict)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd":      "passwd",
		"C:\\Users\\me\\a.png":  "a.png",
		"  spaced name.jpg  ":   "spaced name.jpg",
		"":                      "upload",
		"bad\x00name\n.png":     "badname.png",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
