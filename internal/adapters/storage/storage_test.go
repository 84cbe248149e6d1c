package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"musicaldb_backend/platform/config"

	"github.com/google/uuid"
)

func TestObjectKeyIsDeterministic(t *testing.T) {
	in := KeyInput{
		Purpose:    "poster",
		EntityType: "musical",
		EntityID:   uuid.MustParse("7b1c9a52-3e1f-4d55-9f0a-2f8b1c7e6d10"),
		AssetID:    uuid.MustParse("0d4f1e6a-8b9c-4a2d-b3e4-5f6a7b8c9d0e"),
		Extension:  ".JPG",
	}

	first := ObjectKey(in)
	second := ObjectKey(in)
	if first != second {
		t.Fatalf("expected identical keys, got %q and %q", first, second)
	}

	want := "posters/musical/7b1c9a52-3e1f-4d55-9f0a-2f8b1c7e6d10/0d4f1e6a-8b9c-4a2d-b3e4-5f6a7b8c9d0e.jpg"
	if first != want {
		t.Fatalf("expected %q, got %q", want, first)
	}
}

func TestObjectKeyChangesWithEveryInput(t *testing.T) {
	base := KeyInput{
		Purpose:    "profile",
		EntityType: "user",
		EntityID:   uuid.New(),
		AssetID:    uuid.New(),
		Extension:  "jpg",
	}
	baseKey := ObjectKey(base)

	variants := map[string]KeyInput{}
	v := base
	v.Purpose = "poster"
	variants["purpose"] = v
	v = base
	v.EntityType = "musical"
	variants["entityType"] = v
	v = base
	v.EntityID = uuid.New()
	variants["entityId"] = v
	v = base
	v.AssetID = uuid.New()
	variants["assetId"] = v
	v = base
	v.Extension = "png"
	variants["extension"] = v

	for field, variant := range variants {
		if ObjectKey(variant) == baseKey {
			t.Fatalf("changing %s did not change the key %q", field, baseKey)
		}
	}
}

func TestFaultIsDistinguishable(t *testing.T) {
	cause := errors.New("503")
	err := fmt.Errorf("upload: %w", &Fault{Op: "put", Key: "k", Err: cause})
	var fault *Fault
	if !errors.As(err, &fault) || fault.Op != "put" {
		t.Fatalf("expected wrapped fault to be detected")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("fault must unwrap to its cause")
	}
}

func TestMissingObjectFaultMatchesNotFound(t *testing.T) {
	cause := errors.New("NoSuchKey")
	err := getFault("posters/k.jpg", cause, true)
	if !errors.Is(err, ErrObjectNotFound) || !errors.Is(err, cause) {
		t.Fatalf("expected fault to match ErrObjectNotFound and its cause, got %v", err)
	}
	var fault *Fault
	if !errors.As(err, &fault) || fault.Op != "get" {
		t.Fatalf("expected a get fault, got %v", err)
	}

	if errors.Is(getFault("k", cause, false), ErrObjectNotFound) {
		t.Fatalf("transient failures must not match ErrObjectNotFound")
	}
}

func TestNewReportsMissingSettingsByName(t *testing.T) {
	cfg := &config.Config{StorageProvider: config.StorageProviderMinIO, StorageSecretKey: "do-not-leak"}

	_, err := New(context.Background(), cfg)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if msg := err.Error(); strings.Contains(msg, "do-not-leak") {
		t.Fatalf("error leaked a secret value: %s", msg)
	}
}

func TestJoinLocatorTrimsSlashes(t *testing.T) {
	if got := joinLocator("https://cdn.example.com/media/", "/posters/a.jpg"); got != "https://cdn.example.com/media/posters/a.jpg" {
		t.Fatalf("unexpected locator %q", got)
	}
}
