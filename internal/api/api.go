package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/mediastore/internal/api/handlers"
	"github.com/andresuchdata/mediastore/internal/api/middleware"
	"github.com/andresuchdata/mediastore/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// multipartOverhead is the slack allowed on top of the largest upload
// ceiling for multipart boundaries and part headers.
const multipartOverhead = 1 << 20

type Services struct {
	Media       *service.MediaService
	Retrieval   *service.RetrievalService
	Access      *service.AccessService
	Presign     *service.PresignService
	Identity    middleware.IdentityResolver
	CacheHeader string
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Last-Modified", "ETag"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if services == nil {
		return router
	}

	apiGroup := router.Group("/api/v1")
	mediaHandler := handlers.NewMediaHandler(services.Media, services.Retrieval, services.CacheHeader)
	{
		apiGroup.GET("/media/*key", mediaHandler.Get)
		apiGroup.GET("/files/:username/:filename", mediaHandler.Stream)
		apiGroup.HEAD("/media-info/*key", mediaHandler.Info)
		apiGroup.GET("/media-info/*key", mediaHandler.Info)
	}

	authed := apiGroup.Group("")
	authed.Use(middleware.RequireIdentity(services.Identity))
	{
		var uploadLimit int64
		if ceiling := services.Media.MaxUploadBytes(); ceiling > 0 {
			uploadLimit = ceiling + multipartOverhead
		}
		authed.POST("/media", middleware.LimitBody(uploadLimit), mediaHandler.Upload)
		authed.DELETE("/media", mediaHandler.Delete)

		privateHandler := handlers.NewPrivateHandler(services.Access, services.Presign, mediaHandler)
		authed.POST("/presign/upload", privateHandler.PresignUpload)
		authed.GET("/presign/download", privateHandler.PresignDownload)
		authed.GET("/private/*key", privateHandler.Get)
		authed.GET("/access/*key", privateHandler.Access)
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
