package middleware

import (
	"errors"
	"io"
	"net/http"

	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/gin-gonic/gin"
)

const bodyLimitKey = "body_limit"

type limitedBody struct {
	io.ReadCloser
	exceeded bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		b.exceeded = true
	}
	return n, err
}

// LimitBody caps the request body at maxBytes. A declared Content-Length
// over the cap is refused before anything is read; otherwise reads stop at
// the cap and BodyTooLarge reports it. A cap of 0 disables the limit.
func LimitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			AbortWithError(c, domain.NewError(domain.KindPayloadTooLarge, "request body too large"))
			return
		}
		body := &limitedBody{ReadCloser: http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)}
		c.Request.Body = body
		c.Set(bodyLimitKey, body)
		c.Next()
	}
}

// BodyTooLarge reports whether a read hit the LimitBody cap.
func BodyTooLarge(c *gin.Context) bool {
	v, ok := c.Get(bodyLimitKey)
	if !ok {
		return false
	}
	body, ok := v.(*limitedBody)
	return ok && body.exceeded
}
