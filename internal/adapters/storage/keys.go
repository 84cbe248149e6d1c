package storage

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// KeyInput is everything that determines an object key.
type KeyInput struct {
	Purpose    string
	EntityType string
	EntityID   uuid.UUID
	AssetID    uuid.UUID
	Extension  string
}

// ObjectKey derives the storage key for an asset as
// <purpose>s/<entityType>/<entityId>/<assetId><ext>.
// It is pure: equal inputs give equal keys and any differing input gives a
// different key. The asset id segment keeps keys unique across re-uploads.
func ObjectKey(in KeyInput) string {
	ext := strings.ToLower(strings.TrimSpace(in.Extension))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(
		in.Purpose+"s",
		in.EntityType,
		in.EntityID.String(),
		in.AssetID.String()+ext,
	)
}
