package handlers

import (
	"net/http"

	"github.com/andresuchdata/mediastore/internal/api/middleware"
	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/andresuchdata/mediastore/internal/service"
	"github.com/gin-gonic/gin"
)

// PrivateHandler serves content behind the access cascade and issues
// presigned URLs.
type PrivateHandler struct {
	access  *service.AccessService
	presign *service.PresignService
	media   *MediaHandler
}

func NewPrivateHandler(access *service.AccessService, presign *service.PresignService, media *MediaHandler) *PrivateHandler {
	return &PrivateHandler{access: access, presign: presign, media: media}
}

// Get serves a private object once the caller passes the access check.
func (h *PrivateHandler) Get(c *gin.Context) {
	key := wildcardKey(c)
	if !h.authorize(c, key) {
		return
	}
	h.media.serveBuffered(c, key)
}

// Access reports the caller's grant for a key without serving it.
func (h *PrivateHandler) Access(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.access.Decide(c.Request.Context(), identity.ID, wildcardKey(c)))
}

type presignUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// PresignUpload mints a PUT URL under the caller's own prefix.
func (h *PrivateHandler) PresignUpload(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req presignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, domain.WrapError(domain.KindBadRequest, err, "filename and content_type are required"))
		return
	}

	signed, err := h.presign.UploadURL(c.Request.Context(), identity.Username, req.Filename, req.ContentType)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, signed)
}

// PresignDownload mints a GET URL once the caller passes the access check.
func (h *PrivateHandler) PresignDownload(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		middleware.AbortWithError(c, domain.NewError(domain.KindBadRequest, "key is required"))
		return
	}
	if !h.authorize(c, key) {
		return
	}

	signed, err := h.presign.DownloadURL(c.Request.Context(), key)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, signed)
}

func (h *PrivateHandler) authorize(c *gin.Context, key string) bool {
	identity, ok := requireIdentity(c)
	if !ok {
		return false
	}
	if _, err := h.access.Authorize(c.Request.Context(), identity.ID, key); err != nil {
		middleware.AbortWithError(c, err)
		return false
	}
	return true
}

func requireIdentity(c *gin.Context) (*domain.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		middleware.AbortWithError(c, domain.NewError(domain.KindUnauthorized, "authentication required"))
	}
	return identity, ok
}
