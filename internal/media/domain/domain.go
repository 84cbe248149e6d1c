// Package domain holds the closed vocabularies of the media pipeline and the
// per-purpose policy table that drives validation, transcoding and ownership.
package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Purpose is the business role of an image.
type Purpose string

const (
	PurposePoster  Purpose = "poster"
	PurposeProfile Purpose = "profile"
)

// EntityType is the kind of entity an asset is attached to.
type EntityType string

const (
	EntityMusical     EntityType = "musical"
	EntityPerformance EntityType = "performance"
	EntityUser        EntityType = "user"
)

// Role values understood by the delete authorization check.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Principal is the authenticated caller, passed explicitly into every operation.
type Principal struct {
	ID   uuid.UUID
	Role string
}

// IsAdmin reports whether the principal may act on any asset.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Owns reports whether the principal may delete an asset uploaded by uploader.
func (p Principal) Owns(uploader uuid.UUID) bool {
	return p.ID == uploader || p.IsAdmin()
}

// ParsePurpose accepts "poster" or "profile", case-insensitively.
func ParsePurpose(raw string) (Purpose, bool) {
	switch Purpose(strings.ToLower(strings.TrimSpace(raw))) {
	case PurposePoster:
		return PurposePoster, true
	case PurposeProfile:
		return PurposeProfile, true
	}
	return "", false
}

// ParseEntityType accepts any listable entity type.
func ParseEntityType(raw string) (EntityType, bool) {
	switch EntityType(strings.ToLower(strings.TrimSpace(raw))) {
	case EntityMusical:
		return EntityMusical, true
	case EntityPerformance:
		return EntityPerformance, true
	case EntityUser:
		return EntityUser, true
	}
	return "", false
}

// ParsePosterTarget accepts only the entity types a poster may be attached to.
func ParsePosterTarget(raw string) (EntityType, bool) {
	t, ok := ParseEntityType(raw)
	if !ok || t == EntityUser {
		return "", false
	}
	return t, true
}

// Label returns a capitalized display name, e.g. for "Musical not found".
func (t EntityType) Label() string {
	if t == "" {
		return ""
	}
	s := string(t)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Stage names a step of the upload state machine.
type Stage string

const (
	StageReceived         Stage = "received"
	StageAuthorized       Stage = "authorized"
	StageTargetValidated  Stage = "target_validated"
	StageContentValidated Stage = "content_validated"
	StageTranscoded       Stage = "transcoded"
	StageStored           Stage = "stored"
	StageRegistered       Stage = "registered"
	StageProfileReplaced  Stage = "profile_replaced"
	StageComplete         Stage = "complete"
	StageFailed           Stage = "failed"
)
