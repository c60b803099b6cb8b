package middleware

import (
	"context"

	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// IdentityResolver maps an Authorization header to the caller.
type IdentityResolver interface {
	Resolve(ctx context.Context, authHeader string) (*domain.Identity, error)
}

// RequireIdentity rejects requests without a valid bearer token and stores
// the resolved identity on the gin context.
func RequireIdentity(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := resolver.Resolve(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the identity set by RequireIdentity.
func IdentityFrom(c *gin.Context) (*domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*domain.Identity)
	return identity, ok && identity != nil
}
