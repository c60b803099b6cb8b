package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andresuchdata/mediastore/internal/api/middleware"
	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/andresuchdata/mediastore/internal/service"
	"github.com/gin-gonic/gin"
)

type MediaHandler struct {
	media       *service.MediaService
	retrieval   *service.RetrievalService
	cacheHeader string
}

func NewMediaHandler(media *service.MediaService, retrieval *service.RetrievalService, cacheHeader string) *MediaHandler {
	return &MediaHandler{media: media, retrieval: retrieval, cacheHeader: cacheHeader}
}

// Upload stores the multipart "file" field under the caller's prefix.
func (h *MediaHandler) Upload(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		if middleware.BodyTooLarge(c) {
			middleware.AbortWithError(c, domain.NewError(domain.KindPayloadTooLarge, "request body too large"))
			return
		}
		middleware.AbortWithError(c, domain.NewError(domain.KindBadRequest, "file is required"))
		return
	}
	if err := h.media.Admit(fh.Header.Get("Content-Type"), fh.Size); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		middleware.AbortWithError(c, domain.WrapError(domain.KindBadRequest, err, "could not read upload"))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		middleware.AbortWithError(c, domain.WrapError(domain.KindBadRequest, err, "could not read upload"))
		return
	}

	result, err := h.media.Upload(c.Request.Context(), service.UploadRequest{
		Owner:       identity.Username,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Data:        data,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type deleteRequest struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Delete removes one of the caller's own objects by key or public URL.
func (h *MediaHandler) Delete(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, domain.WrapError(domain.KindBadRequest, err, "invalid request body"))
		return
	}
	target := req.Key
	if target == "" {
		target = req.URL
	}

	key, err := h.media.Delete(c.Request.Context(), identity.Username, target)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "key": key})
}

// Get serves a whole object from the cache or the primary backend.
func (h *MediaHandler) Get(c *gin.Context) {
	h.serveBuffered(c, wildcardKey(c))
}

func (h *MediaHandler) serveBuffered(c *gin.Context, key string) {
	obj, err := h.retrieval.Retrieve(c.Request.Context(), key)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	if !obj.LastModified.IsZero() {
		c.Header("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	}
	if h.cacheHeader != "" {
		c.Header("Cache-Control", h.cacheHeader)
	}
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}

// Stream pipes /files/:username/:filename straight from the primary backend.
func (h *MediaHandler) Stream(c *gin.Context) {
	key := domain.BuildKey(c.Param("username"), c.Param("filename"))

	obj, err := h.retrieval.Stream(c.Request.Context(), key)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	defer obj.Body.Close()

	headers := map[string]string{}
	if !obj.Meta.LastModified.IsZero() {
		headers["Last-Modified"] = obj.Meta.LastModified.UTC().Format(http.TimeFormat)
	}
	if h.cacheHeader != "" {
		headers["Cache-Control"] = h.cacheHeader
	}
	c.DataFromReader(http.StatusOK, obj.Meta.ContentLength, obj.Meta.ContentType, obj.Body, headers)
}

// Info answers HEAD with headers only and GET with the metadata as JSON.
func (h *MediaHandler) Info(c *gin.Context) {
	meta, err := h.retrieval.Probe(c.Request.Context(), wildcardKey(c))
	if err != nil {
		if c.Request.Method == http.MethodHead {
			c.AbortWithStatus(domain.HTTPStatus(domain.KindOf(err)))
			return
		}
		middleware.AbortWithError(c, err)
		return
	}

	if c.Request.Method == http.MethodHead {
		c.Header("Content-Type", meta.ContentType)
		c.Header("Content-Length", strconv.FormatInt(meta.ContentLength, 10))
		if !meta.LastModified.IsZero() {
			c.Header("Last-Modified", meta.LastModified.UTC().Format(http.TimeFormat))
		}
		if meta.ETag != "" {
			c.Header("ETag", meta.ETag)
		}
		c.Status(http.StatusOK)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func wildcardKey(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("key"), "/")
}
