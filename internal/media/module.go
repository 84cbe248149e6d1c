// Package media provides the upload bounded context: poster and profile
// ingest, listing and deletion of catalog images.
package media

import (
	apphttp "musicaldb_backend/internal/http"
	"musicaldb_backend/internal/media/handler"
	"musicaldb_backend/internal/media/service"
	"musicaldb_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Module is the media bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule wires the handler onto svc and registers the media validation tags.
func NewModule(svc *service.Service, val *validator.Validator) (*Module, error) {
	if err := handler.RegisterValidations(val); err != nil {
		return nil, err
	}
	return &Module{
		handler: handler.New(svc, val),
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "media"
}

// RegisterRoutes mounts upload routes on the protected group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	upload := ctx.Protected.Group("/upload")

	var ingest []gin.HandlerFunc
	if ctx.UploadRateLimiter != nil {
		ingest = append(ingest, ctx.UploadRateLimiter.RateLimit())
	}
	if ctx.UploadBodyLimit != nil {
		ingest = append(ingest, ctx.UploadBodyLimit)
	}

	upload.POST("/poster", withIngest(ingest, m.handler.UploadPoster)...)
	upload.POST("/profile", withIngest(ingest, m.handler.UploadProfile)...)
	upload.GET("/entity/:entityType/:entityId", m.handler.ListEntityImages)
	upload.GET("/:imageId", m.handler.GetImage)
	upload.DELETE("/:imageId", m.handler.DeleteImage)
}

func withIngest(middleware []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(middleware)+1)
	chain = append(chain, middleware...)
	return append(chain, h)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
