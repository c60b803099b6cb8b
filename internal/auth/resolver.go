package auth

import (
	"context"
	"strings"
	"time"

	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// ProfileLookup loads the profile behind an authenticated user id.
type ProfileLookup interface {
	ByID(ctx context.Context, userID string) (*domain.Identity, error)
}

// Resolver turns an Authorization header into an Identity. Tokens are HS256
// JWTs whose subject is the user id.
type Resolver struct {
	secret   []byte
	profiles ProfileLookup
}

func NewResolver(secret string, profiles ProfileLookup) *Resolver {
	return &Resolver{secret: []byte(secret), profiles: profiles}
}

// Resolve validates the bearer token and looks up the caller's profile.
func (r *Resolver) Resolve(ctx context.Context, authHeader string) (*domain.Identity, error) {
	if strings.TrimSpace(authHeader) == "" {
		return nil, domain.NewError(domain.KindUnauthorized, "authorization header required")
	}
	scheme, raw, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return nil, domain.NewError(domain.KindUnauthorized, "invalid authorization header format")
	}

	userID, err := r.subject(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}

	identity, err := r.profiles.ByID(ctx, userID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, err
		}
		return nil, domain.WrapError(domain.KindServiceError, err, "could not load user profile")
	}
	return identity, nil
}

func (r *Resolver) subject(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", domain.WrapError(domain.KindInvalidToken, err, "invalid or expired token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", domain.NewError(domain.KindInvalidToken, "token has no subject")
	}
	return sub, nil
}

// Sign issues an HS256 token for userID. mediactl uses it to mint tokens
// for local testing.
func Sign(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
