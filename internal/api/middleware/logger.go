package middleware

import (
	"net/http"
	"time"

	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Logger is a middleware that logs the request details
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Start timer
		start := time.Now()
		path := c.Request.URL.Path

		// Process request
		c.Next()

		// Query strings may carry presigned signatures; log the path only.
		event := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("ip", c.ClientIP()).
			Str("user-agent", c.Request.UserAgent()).
			Int("status", c.Writer.Status()).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Msg("Request processed")
	}
}

// Recovery recovers from panics and logs the error
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("path", c.Request.URL.Path).
					Msg("Recovered from panic")
				AbortWithError(c, domain.NewError(domain.KindServiceError, "panic"))
			}
		}()
		c.Next()
	}
}

// AbortWithError writes the {"code", "error"} body for err and stops the
// handler chain. Server errors are logged with their cause and answered
// with a generic message.
func AbortWithError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := domain.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{
		"code":  kind,
		"error": domain.PublicMessage(err),
	})
}
