package repository

import (
	"context"
	"time"

	"musicaldb_backend/internal/media/domain"

	"github.com/google/uuid"
)

// Asset is one registry row.
type Asset struct {
	ID               uuid.UUID
	OriginalFilename string
	StorageKey       string
	StorageLocator   string
	ByteSize         int64
	MimeType         string
	Width            int
	Height           int
	UploadedBy       uuid.UUID
	EntityType       domain.EntityType
	EntityID         uuid.UUID
	Purpose          domain.Purpose
	Palette          []string
	CreatedAt        time.Time
}

// CreateAssetParams carries a fully populated row; the id is chosen by the caller.
type CreateAssetParams struct {
	ID               uuid.UUID
	OriginalFilename string
	StorageKey       string
	StorageLocator   string
	ByteSize         int64
	MimeType         string
	Width            int
	Height           int
	UploadedBy       uuid.UUID
	EntityType       domain.EntityType
	EntityID         uuid.UUID
	Purpose          domain.Purpose
}

// ListAssetsParams filters ListByEntity. A nil Purpose matches all purposes.
type ListAssetsParams struct {
	EntityType domain.EntityType
	EntityID   uuid.UUID
	Purpose    *domain.Purpose
}

// AssetRegistry is the metadata store for uploaded assets.
type AssetRegistry interface {
	Create(ctx context.Context, params CreateAssetParams) (Asset, error)
	GetByID(ctx context.Context, id uuid.UUID) (Asset, error)
	ListByEntity(ctx context.Context, params ListAssetsParams) ([]Asset, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdatePalette(ctx context.Context, id uuid.UUID, palette []string) error
}

// PaletteBacklog finds posters the palette worker has not reached yet.
type PaletteBacklog interface {
	ListMissingPalette(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

// EntityChecker answers whether a poster target exists.
type EntityChecker interface {
	EntityExists(ctx context.Context, entityType domain.EntityType, id uuid.UUID) (bool, error)
}

// Repository is everything the media module persists.
type Repository interface {
	AssetRegistry
	EntityChecker
	PaletteBacklog
}
