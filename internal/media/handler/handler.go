package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	playground "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"musicaldb_backend/internal/media/domain"
	"musicaldb_backend/internal/media/service"
	"musicaldb_backend/internal/media/transport"
	"musicaldb_backend/platform/apperr"
	"musicaldb_backend/platform/httpkit"
	"musicaldb_backend/platform/validator"
)

// Handler handles HTTP requests for media uploads.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	formFileField       = "file"
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidImageID   = "invalid image id"
	msgNoFile           = "No file uploaded"
	msgFileTooLarge     = "File exceeds the upload size limit"
	msgImageDeleted     = "Image deleted successfully"
)

// New creates a new media handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterValidations adds the poster_target, entity_type and image_purpose tags.
func RegisterValidations(val *validator.Validator) error {
	tags := map[string]func(string) bool{
		"poster_target": func(s string) bool { _, ok := domain.ParsePosterTarget(s); return ok },
		"entity_type":   func(s string) bool { _, ok := domain.ParseEntityType(s); return ok },
		"image_purpose": func(s string) bool { _, ok := domain.ParsePurpose(s); return ok },
	}
	for tag, accept := range tags {
		if err := val.RegisterValidation(tag, func(fl playground.FieldLevel) bool {
			return accept(fl.Field().String())
		}); err != nil {
			return err
		}
	}
	return nil
}

// UploadPoster ingests a poster for a musical or performance.
// POST /api/v1/upload/poster
func (h *Handler) UploadPoster(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	file, ok := readUpload(c)
	if !ok {
		return
	}

	var form transport.PosterUploadForm
	if err := c.ShouldBind(&form); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(form); err != nil {
		httpkit.ValidationError(c, msgValidationFailed, err)
		return
	}

	result, err := h.svc.UploadPoster(c.Request.Context(), principalOf(identity), file, form.Type, form.EntityID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// UploadProfile replaces the caller's profile picture.
// POST /api/v1/upload/profile
func (h *Handler) UploadProfile(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	file, ok := readUpload(c)
	if !ok {
		return
	}

	result, err := h.svc.UploadProfile(c.Request.Context(), principalOf(identity), file)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// DeleteImage removes an image owned by the caller.
// DELETE /api/v1/upload/:imageId
func (h *Handler) DeleteImage(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, err := uuid.Parse(c.Param("imageId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidImageID, nil)
		return
	}

	if err := h.svc.Delete(c.Request.Context(), principalOf(identity), id); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.DeleteImageResponse{Success: true, Message: msgImageDeleted})
}

// GetImage returns one image.
// GET /api/v1/upload/:imageId
func (h *Handler) GetImage(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, err := uuid.Parse(c.Param("imageId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidImageID, nil)
		return
	}

	image, err := h.svc.Get(c.Request.Context(), principalOf(identity), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.GetImageResponse{Success: true, Image: image})
}

// ListEntityImages lists an entity's images, newest first.
// GET /api/v1/upload/entity/:entityType/:entityId
func (h *Handler) ListEntityImages(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.ListImagesRequest
	if err := c.ShouldBindUri(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.ValidationError(c, msgValidationFailed, err)
		return
	}

	images, err := h.svc.ListByEntity(c.Request.Context(), principalOf(identity), req.EntityType, req.EntityID, req.ImageType)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ListImagesResponse{Success: true, Images: images})
}

// readUpload pulls the "file" part out of the multipart body. It writes the
// error response itself and reports whether the caller should continue.
func readUpload(c *gin.Context) (*service.FileInput, bool) {
	header, err := c.FormFile(formFileField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpkit.HandleError(c, apperr.Validation(msgFileTooLarge).WithDetails(map[string]string{"reason": "too_large"}))
			return nil, false
		}
		httpkit.HandleError(c, apperr.BadRequest(msgNoFile))
		return nil, false
	}

	data, err := readPart(header)
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgNoFile))
		return nil, false
	}
	return &service.FileInput{Filename: header.Filename, Data: data}, true
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func principalOf(identity httpkit.Identity) *domain.Principal {
	role := domain.RoleUser
	if identity.HasRole(httpkit.RoleAdmin) {
		role = domain.RoleAdmin
	}
	return &domain.Principal{ID: identity.UserID(), Role: role}
}
