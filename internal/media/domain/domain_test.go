package domain

import (
	"testing"

	"musicaldb_backend/platform/config"

	"github.com/google/uuid"
)

func TestParsePosterTargetRejectsUser(t *testing.T) {
	if _, ok := ParsePosterTarget("user"); ok {
		t.Fatalf("user must not be a poster target")
	}
	if got, ok := ParsePosterTarget(" Musical "); !ok || got != EntityMusical {
		t.Fatalf("expected musical, got %q (%v)", got, ok)
	}
	if _, ok := ParsePosterTarget("theatre"); ok {
		t.Fatalf("unknown type must be rejected")
	}
}

func TestPrincipalOwnership(t *testing.T) {
	owner := uuid.New()
	stranger := Principal{ID: uuid.New(), Role: RoleUser}
	admin := Principal{ID: uuid.New(), Role: RoleAdmin}

	if stranger.Owns(owner) {
		t.Fatalf("stranger must not own the asset")
	}
	if !admin.Owns(owner) {
		t.Fatalf("admin must be allowed")
	}
	if !(Principal{ID: owner}).Owns(owner) {
		t.Fatalf("uploader must be allowed")
	}
}

func TestPoliciesFromConfig(t *testing.T) {
	policies := NewPolicies(config.MediaPolicy{
		Poster:  config.PosterPolicy{MaxWidth: 1200, MaxHeight: 1800, MaxBytes: 10, AllowedTypes: []string{"image/jpeg"}},
		Profile: config.ProfilePolicy{SquareSize: 400, MaxBytes: 5, AllowedTypes: []string{"image/png"}},
	})

	poster, ok := policies.For(PurposePoster)
	if !ok || poster.Geometry.Mode != GeometryFit || poster.SelfTargeted || poster.SingleInstance {
		t.Fatalf("unexpected poster policy: %+v", poster)
	}
	if !poster.Allows("IMAGE/JPEG") || poster.Allows("image/png") {
		t.Fatalf("poster allow-list mismatch")
	}

	profile, ok := policies.For(PurposeProfile)
	if !ok || profile.Geometry.Mode != GeometrySquare || profile.Geometry.Edge != 400 {
		t.Fatalf("unexpected profile geometry: %+v", profile.Geometry)
	}
	if !profile.SelfTargeted || !profile.SingleInstance {
		t.Fatalf("profile must be self targeted and single instance")
	}
}

func TestEntityTypeLabel(t *testing.T) {
	if EntityPerformance.Label() != "Performance" {
		t.Fatalf("unexpected label %q", EntityPerformance.Label())
	}
}
