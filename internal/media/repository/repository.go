// Package repository persists media asset metadata in PostgreSQL.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"musicaldb_backend/internal/media/domain"
	"musicaldb_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const assetNotFoundMessage = "Image not found"

const assetColumns = `id, original_filename, storage_key, storage_locator, byte_size, mime_type,
            width, height, uploaded_by, entity_type, entity_id, purpose, palette, created_at`

const (
	createAssetQuery = `
        INSERT INTO media_assets (
            id, original_filename, storage_key, storage_locator, byte_size, mime_type,
            width, height, uploaded_by, entity_type, entity_id, purpose
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING ` + assetColumns

	getAssetByIDQuery = `SELECT ` + assetColumns + ` FROM media_assets WHERE id = $1`

	listAssetsByEntityQuery = `
        SELECT ` + assetColumns + `
        FROM media_assets
        WHERE entity_type = $1 AND entity_id = $2
          AND ($3::text IS NULL OR purpose = $3::text)
        ORDER BY created_at DESC, id`

	listMissingPaletteQuery = `
        SELECT id
        FROM media_assets
        WHERE purpose = 'poster' AND palette IS NULL AND created_at < $1
        ORDER BY created_at
        LIMIT $2`

	deleteAssetQuery       = `DELETE FROM media_assets WHERE id = $1`
	updatePaletteQuery     = `UPDATE media_assets SET palette = $2 WHERE id = $1`
	musicalExistsQuery     = `SELECT EXISTS (SELECT 1 FROM musicals WHERE id = $1)`
	performanceExistsQuery = `SELECT EXISTS (SELECT 1 FROM performances WHERE id = $1)`
)

// Repo implements Repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new media repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

// Create inserts an asset row.
func (r *Repo) Create(ctx context.Context, params CreateAssetParams) (Asset, error) {
	asset, err := scanAsset(r.pool.QueryRow(ctx, createAssetQuery,
		params.ID,
		params.OriginalFilename,
		params.StorageKey,
		params.StorageLocator,
		params.ByteSize,
		params.MimeType,
		params.Width,
		params.Height,
		params.UploadedBy,
		string(params.EntityType),
		params.EntityID,
		string(params.Purpose),
	))
	if err != nil {
		return Asset{}, fmt.Errorf("create media asset: %w", err)
	}
	return asset, nil
}

// GetByID returns apperr.NotFound when no row matches.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Asset, error) {
	asset, err := scanAsset(r.pool.QueryRow(ctx, getAssetByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Asset{}, apperr.NotFound(assetNotFoundMessage)
		}
		return Asset{}, fmt.Errorf("get media asset by id: %w", err)
	}
	return asset, nil
}

// ListByEntity returns assets for an entity, newest first.
func (r *Repo) ListByEntity(ctx context.Context, params ListAssetsParams) ([]Asset, error) {
	var purpose *string
	if params.Purpose != nil {
		p := string(*params.Purpose)
		purpose = &p
	}

	rows, err := r.pool.Query(ctx, listAssetsByEntityQuery, string(params.EntityType), params.EntityID, purpose)
	if err != nil {
		return nil, fmt.Errorf("list media assets: %w", err)
	}
	defer rows.Close()

	items := make([]Asset, 0)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media asset: %w", err)
		}
		items = append(items, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media assets: %w", err)
	}
	return items, nil
}

// Delete removes an asset row; apperr.NotFound when it is already gone.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, deleteAssetQuery, id)
	if err != nil {
		return fmt.Errorf("delete media asset: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(assetNotFoundMessage)
	}
	return nil
}

// UpdatePalette stores the dominant colors computed by the background worker.
func (r *Repo) UpdatePalette(ctx context.Context, id uuid.UUID, palette []string) error {
	raw, err := json.Marshal(palette)
	if err != nil {
		return fmt.Errorf("encode palette: %w", err)
	}

	result, err := r.pool.Exec(ctx, updatePaletteQuery, id, raw)
	if err != nil {
		return fmt.Errorf("update media asset palette: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(assetNotFoundMessage)
	}
	return nil
}

// ListMissingPalette returns poster ids created before cutoff that still have
// no palette, oldest first.
func (r *Repo) ListMissingPalette(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, listMissingPaletteQuery, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list posters missing palette: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan poster id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posters missing palette: %w", err)
	}
	return ids, nil
}

// EntityExists checks the musicals or performances table.
func (r *Repo) EntityExists(ctx context.Context, entityType domain.EntityType, id uuid.UUID) (bool, error) {
	var query string
	switch entityType {
	case domain.EntityMusical:
		query = musicalExistsQuery
	case domain.EntityPerformance:
		query = performanceExistsQuery
	default:
		return false, fmt.Errorf("entity existence not tracked for %q", entityType)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s exists: %w", entityType, err)
	}
	return exists, nil
}

func scanAsset(row pgx.Row) (Asset, error) {
	var (
		asset      Asset
		entityType string
		purpose    string
		palette    []byte
	)
	if err := row.Scan(
		&asset.ID,
		&asset.OriginalFilename,
		&asset.StorageKey,
		&asset.StorageLocator,
		&asset.ByteSize,
		&asset.MimeType,
		&asset.Width,
		&asset.Height,
		&asset.UploadedBy,
		&entityType,
		&asset.EntityID,
		&purpose,
		&palette,
		&asset.CreatedAt,
	); err != nil {
		return Asset{}, err
	}

	asset.EntityType = domain.EntityType(entityType)
	asset.Purpose = domain.Purpose(purpose)
	if len(palette) > 0 {
		if err := json.Unmarshal(palette, &asset.Palette); err != nil {
			return Asset{}, fmt.Errorf("decode palette: %w", err)
		}
	}
	return asset, nil
}
