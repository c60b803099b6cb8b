package service

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/mediastore/internal/cache"
	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaService_UploadWritesBothBackends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	data := bytes.Repeat([]byte{0x42}, 2_000_000)

	res, err := f.media.Upload(ctx, UploadRequest{
		Owner:       "alice",
		Filename:    "holiday.png",
		ContentType: "image/png",
		Size:        int64(len(data)),
		Data:        data,
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^alice/[0-9a-f-]{36}\.png$`), res.Key)
	assert.Equal(t, "https://cdn.example.com/"+res.Key, res.URL)
	assert.Equal(t, "image/png", res.ContentType)
	assert.False(t, res.Compressed)

	assert.True(t, f.primary.Has("media-prod", res.Key))
	assert.True(t, f.secondary.Has("media-prod", res.Key))

	obj, err := f.retrieval.Retrieve(ctx, res.Key)
	require.NoError(t, err)
	assert.Equal(t, data, obj.Data)
	assert.Equal(t, "image/png", obj.ContentType)
}

func TestMediaService_UploadTooLargeMakesNoBackendCall(t *testing.T) {
	f := newFixture(t)

	for _, ct := range []string{"image/png", "video/mp4"} {
		_, err := f.media.Upload(context.Background(), UploadRequest{
			Owner:       "alice",
			Filename:    "big",
			ContentType: ct,
			Size:        200_000_000,
			Data:        []byte("declared size is what counts"),
		})
		require.Error(t, err)
		assert.Equal(t, domain.KindPayloadTooLarge, domain.KindOf(err), ct)
	}

	assert.Zero(t, f.primary.TotalCalls())
	assert.Zero(t, f.secondary.TotalCalls())
}

func TestMediaService_UploadRejectsUnknownType(t *testing.T) {
	f := newFixture(t)

	_, err := f.media.Upload(context.Background(), UploadRequest{
		Owner:       "alice",
		ContentType: "application/x-msdownload",
		Data:        []byte("MZ"),
	})
	assert.Equal(t, domain.KindUnsupportedMediaType, domain.KindOf(err))

	_, err = f.media.Upload(context.Background(), UploadRequest{
		ContentType: "image/png",
		Data:        []byte("x"),
	})
	assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))

	assert.Zero(t, f.primary.TotalCalls())
}

func TestMediaService_UploadSniffsGenericType(t *testing.T) {
	f := newFixture(t)
	pdf := []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")

	res, err := f.media.Upload(context.Background(), UploadRequest{
		Owner:       "alice",
		ContentType: "application/octet-stream",
		Data:        pdf,
	})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.True(t, strings.HasSuffix(res.Key, ".pdf"))
}

func TestMediaService_UploadPartialFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.secondary.Inject("put", errors.New("secondary unavailable"))

	_, err := f.media.Upload(context.Background(), UploadRequest{
		Owner:       "alice",
		ContentType: "image/gif",
		Data:        []byte("GIF89a"),
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindServiceError, domain.KindOf(err))

	// No rollback: the primary keeps its copy.
	assert.Equal(t, 1, f.primary.Calls("put"))
	assert.Zero(t, f.primary.Calls("delete"))
}

func TestMediaService_UploadWritesConcurrently(t *testing.T) {
	f := newFixture(t)
	f.primary.Slow("put", 200*time.Millisecond)
	f.secondary.Slow("put", 200*time.Millisecond)

	start := time.Now()
	_, err := f.media.Upload(context.Background(), UploadRequest{
		Owner:       "alice",
		ContentType: "image/gif",
		Data:        []byte("GIF89a"),
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 390*time.Millisecond)
}

func TestMediaService_DeleteIsIdempotent(t *testing.T) {
	f := newFixture(t)

	key, err := f.media.Delete(context.Background(), "alice", "alice/never-existed.png")
	require.NoError(t, err)
	assert.Equal(t, "alice/never-existed.png", key)
	assert.Equal(t, 1, f.primary.Calls("delete"))
	assert.Equal(t, 1, f.secondary.Calls("delete"))
}

func TestMediaService_DeleteRejectsForeignPrefix(t *testing.T) {
	f := newFixture(t)

	tests := []string{
		"bob/photo.png",
		"alicex/photo.png",
		"alice",
		"https://cdn.example.com/bob/photo.png",
	}
	for _, key := range tests {
		_, err := f.media.Delete(context.Background(), "alice", key)
		assert.Equal(t, domain.KindAccessDenied, domain.KindOf(err), key)
	}
	assert.Zero(t, f.primary.TotalCalls())
	assert.Zero(t, f.secondary.TotalCalls())
}

func TestMediaService_DeleteRejectsTraversal(t *testing.T) {
	f := newFixture(t)

	_, err := f.media.Delete(context.Background(), "alice", "alice/../bob/x.png")
	assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))
	assert.Zero(t, f.primary.TotalCalls())
	assert.Zero(t, f.secondary.TotalCalls())
}

// slowPopulateCache delays every cache write so a delete can overtake it.
type slowPopulateCache struct {
	cache.ObjectCache
	delay time.Duration
}

func (s *slowPopulateCache) Populate(ctx context.Context, key string, obj *domain.CachedObject, ttl time.Duration) error {
	time.Sleep(s.delay)
	return s.ObjectCache.Populate(ctx, key, obj, ttl)
}

func TestMediaService_DeleteWinsOverPendingPopulate(t *testing.T) {
	slow := &slowPopulateCache{ObjectCache: cache.NewMemoryObjectCache(64, time.Hour), delay: 50 * time.Millisecond}
	f := newFixtureWithCache(t, slow)
	ctx := context.Background()

	res, err := f.media.Upload(ctx, UploadRequest{Owner: "alice", ContentType: "image/gif", Data: []byte("GIF89a-secret")})
	require.NoError(t, err)

	// Two cold reads: the first write is in flight, the second is queued
	// behind it when the delete lands.
	_, err = f.retrieval.Retrieve(ctx, res.Key)
	require.NoError(t, err)
	_, err = f.retrieval.Retrieve(ctx, res.Key)
	require.NoError(t, err)

	_, err = f.media.Delete(ctx, "alice", res.Key)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	f.populator.Close()

	_, ok, _ := f.cache.Lookup(ctx, res.Key)
	assert.False(t, ok, "deleted object must not be cached")
	_, err = f.retrieval.Retrieve(ctx, res.Key)
	assert.Equal(t, domain.KindFileNotFound, domain.KindOf(err))
}

func TestMediaService_DeleteByURLEvictsCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.media.Upload(ctx, UploadRequest{Owner: "alice", ContentType: "image/gif", Data: []byte("GIF89a-1")})
	require.NoError(t, err)

	// Warm the cache.
	_, err = f.retrieval.Retrieve(ctx, res.Key)
	require.NoError(t, err)
	f.populator.Close()
	_, ok, _ := f.cache.Lookup(ctx, res.Key)
	require.True(t, ok)

	_, err = f.media.Delete(ctx, "alice", res.URL)
	require.NoError(t, err)

	_, ok, _ = f.cache.Lookup(ctx, res.Key)
	assert.False(t, ok)
	assert.False(t, f.primary.Has("media-prod", res.Key))
	assert.False(t, f.secondary.Has("media-prod", res.Key))

	_, err = f.retrieval.Retrieve(ctx, res.Key)
	assert.Equal(t, domain.KindFileNotFound, domain.KindOf(err))
}

func TestMediaService_DeleteBackendFailureStillEvicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.media.Upload(ctx, UploadRequest{Owner: "alice", ContentType: "image/gif", Data: []byte("GIF89a")})
	require.NoError(t, err)
	_, err = f.retrieval.Retrieve(ctx, res.Key)
	require.NoError(t, err)
	f.populator.Close()

	f.secondary.Inject("delete", errors.New("timeout"))
	_, err = f.media.Delete(ctx, "alice", res.Key)
	assert.Equal(t, domain.KindServiceError, domain.KindOf(err))

	_, ok, _ := f.cache.Lookup(ctx, res.Key)
	assert.False(t, ok)
}
