// Package transport defines the request and response shapes of the upload API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// PosterUploadForm holds the non-file multipart fields of POST /upload/poster.
type PosterUploadForm struct {
	Type     string `form:"type" validate:"required,poster_target"`
	EntityID string `form:"entityId" validate:"required,uuid"`
}

// ListImagesRequest binds GET /upload/entity/:entityType/:entityId?imageType=.
type ListImagesRequest struct {
	EntityType string `uri:"entityType" form:"-" validate:"required,entity_type"`
	EntityID   string `uri:"entityId" form:"-" validate:"required,uuid"`
	ImageType  string `uri:"-" form:"imageType" validate:"omitempty,image_purpose"`
}

// UploadResponse is returned with 201 after a successful ingest.
type UploadResponse struct {
	Success  bool      `json:"success"`
	ImageID  uuid.UUID `json:"imageId"`
	URL      string    `json:"url"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	FileSize int64     `json:"fileSize"`
}

// ImageResponse is the public projection of an asset. It never carries the storage key.
type ImageResponse struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	ImageType string    `json:"imageType"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	FileSize  int64     `json:"fileSize"`
	Palette   []string  `json:"palette,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ListImagesResponse struct {
	Success bool            `json:"success"`
	Images  []ImageResponse `json:"images"`
}

type GetImageResponse struct {
	Success bool          `json:"success"`
	Image   ImageResponse `json:"image"`
}

type DeleteImageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
