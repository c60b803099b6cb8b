package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type fakeProfiles map[string]string

func (f fakeProfiles) ByID(ctx context.Context, userID string) (*domain.Identity, error) {
	if userID == "explode" {
		return nil, errors.New("db down")
	}
	username, ok := f[userID]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "user profile not found")
	}
	return &domain.Identity{ID: userID, Username: username}, nil
}

func newTestResolver() *Resolver {
	return NewResolver(testSecret, fakeProfiles{"u-1": "alice"})
}

func TestResolver_Resolve(t *testing.T) {
	token, err := Sign(testSecret, "u-1", time.Hour)
	require.NoError(t, err)

	identity, err := newTestResolver().Resolve(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, &domain.Identity{ID: "u-1", Username: "alice"}, identity)
}

func TestResolver_Errors(t *testing.T) {
	expired, err := Sign(testSecret, "u-1", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := Sign("other-secret", "u-1", time.Hour)
	require.NoError(t, err)
	unknown, err := Sign(testSecret, "u-404", time.Hour)
	require.NoError(t, err)
	broken, err := Sign(testSecret, "explode", time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "u-1"}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   domain.ErrorKind
	}{
		{"missing header", "", domain.KindUnauthorized},
		{"wrong scheme", "Basic abc", domain.KindUnauthorized},
		{"empty bearer", "Bearer ", domain.KindUnauthorized},
		{"garbage", "Bearer not-a-jwt", domain.KindInvalidToken},
		{"expired", "Bearer " + expired, domain.KindInvalidToken},
		{"wrong key", "Bearer " + wrongKey, domain.KindInvalidToken},
		{"no subject", "Bearer " + noSubject, domain.KindInvalidToken},
		{"other algorithm", "Bearer " + hs512, domain.KindInvalidToken},
		{"unknown profile", "Bearer " + unknown, domain.KindNotFound},
		{"profile store down", "Bearer " + broken, domain.KindServiceError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestResolver().Resolve(context.Background(), tt.header)
			assert.Equal(t, tt.want, domain.KindOf(err))
		})
	}
}
