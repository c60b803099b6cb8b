package migration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/andresuchdata/mediastore/internal/cache"
	"github.com/andresuchdata/mediastore/internal/config"
	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/andresuchdata/mediastore/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucket = "media-prod"

func seed(t *testing.T, store *storage.MemoryStore, keys ...string) {
	t.Helper()
	for _, key := range keys {
		require.NoError(t, store.Put(context.Background(), bucket, key, []byte("data:"+key), storage.PutOptions{
			ContentType:  "image/png",
			CacheControl: "public, max-age=60",
			Metadata:     map[string]string{"owner": domain.OwnerOf(key)},
		}))
	}
}

func TestRenamer_MovesEveryPage(t *testing.T) {
	primary := storage.NewMemoryStore(storage.PrimaryName)
	secondary := storage.NewMemoryStore(storage.SecondaryName)
	var keys []string
	for i := range 7 {
		keys = append(keys, fmt.Sprintf("alice/%02d.png", i))
	}
	seed(t, primary, keys...)
	seed(t, secondary, keys...)
	seed(t, primary, "alicex/keep.png", "bob/keep.png")

	objectCache := cache.NewMemoryObjectCache(16, time.Hour)
	require.NoError(t, objectCache.Populate(context.Background(), "alice/00.png", &domain.CachedObject{Data: []byte("x"), ContentType: "image/png"}, time.Hour))

	r := NewRenamer(
		[]Target{{Store: primary, Bucket: bucket}, {Store: secondary, Bucket: bucket}},
		objectCache,
		config.MigrationConfig{Workers: 3, PageSize: 2},
	)
	report, err := r.Rename(context.Background(), "alice", "alice2")
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 14, report.Processed)

	for _, key := range keys {
		moved := "alice2/" + key[len("alice/"):]
		assert.False(t, primary.Has(bucket, key))
		assert.True(t, primary.Has(bucket, moved))
		assert.True(t, secondary.Has(bucket, moved))
	}
	assert.True(t, primary.Has(bucket, "alicex/keep.png"))
	assert.True(t, primary.Has(bucket, "bob/keep.png"))

	meta, err := primary.Head(context.Background(), bucket, "alice2/03.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", meta.ContentType)
	assert.Equal(t, "public, max-age=60", meta.CacheControl)
	assert.Equal(t, "alice", meta.Metadata["owner"])

	_, ok, _ := objectCache.Lookup(context.Background(), "alice/00.png")
	assert.False(t, ok)
}

func TestRenamer_CollectsFailuresWithoutAborting(t *testing.T) {
	primary := storage.NewMemoryStore(storage.PrimaryName)
	secondary := storage.NewMemoryStore(storage.SecondaryName)
	seed(t, primary, "alice/a.png", "alice/b.png")
	seed(t, secondary, "alice/a.png", "alice/b.png")
	secondary.Inject("copy", errors.New("quota exceeded"))

	r := NewRenamer(
		[]Target{{Store: primary, Bucket: bucket}, {Store: secondary, Bucket: bucket}},
		nil,
		config.MigrationConfig{Workers: 2, PageSize: 10},
	)
	report, err := r.Rename(context.Background(), "alice", "carol")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Len(t, report.Errors["secondary/"+bucket], 2)
	assert.Empty(t, report.Errors["primary/"+bucket])
	assert.Equal(t, 2, report.Failed())
	assert.ErrorContains(t, report.Err(), "quota exceeded")

	// Source survives when its copy failed.
	assert.True(t, secondary.Has(bucket, "alice/a.png"))
}

func TestRenamer_ListFailureIsReported(t *testing.T) {
	primary := storage.NewMemoryStore(storage.PrimaryName)
	primary.Inject("list", errors.New("forbidden"))

	r := NewRenamer([]Target{{Store: primary, Bucket: bucket}}, nil, config.MigrationConfig{})
	report, err := r.Rename(context.Background(), "alice", "carol")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed())
}

func TestRenamer_RejectsInvalidOwners(t *testing.T) {
	r := NewRenamer(nil, nil, config.MigrationConfig{})
	ctx := context.Background()

	for _, pair := range [][2]string{{"", "bob"}, {"alice", ""}, {"a/b", "bob"}, {"alice", "alice"}} {
		_, err := r.Rename(ctx, pair[0], pair[1])
		assert.Equal(t, domain.KindBadRequest, domain.KindOf(err), pair)
	}
}

func TestSyncer_FillsGaps(t *testing.T) {
	primary := storage.NewMemoryStore(storage.PrimaryName)
	secondary := storage.NewMemoryStore(storage.SecondaryName)
	seed(t, primary, "alice/a.png", "alice/b.png", "alice/c.png", "bob/d.png")
	seed(t, secondary, "alice/a.png")
	require.NoError(t, secondary.Put(context.Background(), bucket, "alice/b.png", []byte("short"), storage.PutOptions{}))

	s := NewSyncer(config.MigrationConfig{Workers: 2, PageSize: 2}, false)
	report := s.Sync(context.Background(),
		Target{Store: primary, Bucket: bucket},
		Target{Store: secondary, Bucket: bucket},
		"alice/")

	require.NoError(t, report.Err())
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.True(t, secondary.Has(bucket, "alice/c.png"))
	assert.False(t, secondary.Has(bucket, "bob/d.png"))

	obj, err := secondary.Get(context.Background(), bucket, "alice/b.png")
	require.NoError(t, err)
	data, err := storage.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, []byte("data:alice/b.png"), data)
	assert.Equal(t, "image/png", obj.Meta.ContentType)
}

func TestSyncer_DryRunWritesNothing(t *testing.T) {
	primary := storage.NewMemoryStore(storage.PrimaryName)
	secondary := storage.NewMemoryStore(storage.SecondaryName)
	seed(t, primary, "alice/a.png")

	report := NewSyncer(config.MigrationConfig{}, true).Sync(context.Background(),
		Target{Store: primary, Bucket: bucket},
		Target{Store: secondary, Bucket: bucket},
		"")

	assert.Equal(t, 1, report.Processed)
	assert.Zero(t, secondary.Calls("put"))
}

func TestSyncer_HeadErrorIsNotTreatedAsMissing(t *testing.T) {
	primary := storage.NewMemoryStore(storage.PrimaryName)
	secondary := storage.NewMemoryStore(storage.SecondaryName)
	seed(t, primary, "alice/a.png")
	secondary.Inject("head", errors.New("timeout"))

	report := NewSyncer(config.MigrationConfig{}, false).Sync(context.Background(),
		Target{Store: primary, Bucket: bucket},
		Target{Store: secondary, Bucket: bucket},
		"")

	assert.Equal(t, 1, report.Failed())
	assert.Zero(t, secondary.Calls("put"))
}
