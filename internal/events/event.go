// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"musicaldb_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Media Domain Events
// =============================================================================

// MediaAssetUploaded is published once an asset is stored and registered.
// StorageKey is internal and must not be forwarded to clients.
type MediaAssetUploaded struct {
	BaseEvent
	AssetID    uuid.UUID `json:"assetId"`
	Purpose    string    `json:"purpose"`
	EntityType string    `json:"entityType"`
	EntityID   uuid.UUID `json:"entityId"`
	UploadedBy uuid.UUID `json:"uploadedBy"`
	StorageKey string    `json:"storageKey"`
	ByteSize   int64     `json:"byteSize"`
	Replaced   int       `json:"replaced"`
}

func (e MediaAssetUploaded) EventName() string { return "media.asset.uploaded" }

// MediaAssetDeleted is published after an explicit delete or a profile replacement.
type MediaAssetDeleted struct {
	BaseEvent
	AssetID    uuid.UUID `json:"assetId"`
	Purpose    string    `json:"purpose"`
	EntityType string    `json:"entityType"`
	EntityID   uuid.UUID `json:"entityId"`
	DeletedBy  uuid.UUID `json:"deletedBy"`
	Reason     string    `json:"reason"`
}

func (e MediaAssetDeleted) EventName() string { return "media.asset.deleted" }

const (
	DeleteReasonExplicit    = "explicit"
	DeleteReasonReplacement = "replacement"
)
