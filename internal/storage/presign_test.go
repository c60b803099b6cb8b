package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/mediastore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedHeaders(t *testing.T, raw string) []string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return strings.Split(u.Query().Get("X-Amz-SignedHeaders"), ";")
}

func testBackendConfig() config.BackendConfig {
	return config.BackendConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "access",
		SecretKey: "secret",
		Region:    "us-east-1",
	}
}

func TestPresignPut_SignsContentType(t *testing.T) {
	ctx := context.Background()

	primary, err := NewMinioStore(PrimaryName, testBackendConfig())
	require.NoError(t, err)
	secondary, err := NewS3Store(ctx, SecondaryName, testBackendConfig())
	require.NoError(t, err)

	for _, p := range []Presigner{primary, secondary, NewMemoryStore("memory")} {
		raw, err := p.PresignPut(ctx, "media-prod", "alice/a.png", "image/png", time.Hour)
		require.NoError(t, err)
		assert.Contains(t, signedHeaders(t, raw), "content-type", "%T", p)
	}
}

func TestPresignGet_DoesNotSignContentType(t *testing.T) {
	primary, err := NewMinioStore(PrimaryName, testBackendConfig())
	require.NoError(t, err)

	raw, err := primary.PresignGet(context.Background(), "media-prod", "alice/a.png", time.Hour)
	require.NoError(t, err)
	assert.NotContains(t, signedHeaders(t, raw), "content-type")
}
