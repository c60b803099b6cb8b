package service

import (
	"testing"
	"time"

	"github.com/andresuchdata/mediastore/internal/cache"
	"github.com/andresuchdata/mediastore/internal/config"
	"github.com/andresuchdata/mediastore/internal/storage"
	"github.com/andresuchdata/mediastore/internal/transform"
)

type fixture struct {
	primary   *storage.MemoryStore
	secondary *storage.MemoryStore
	storage   config.StorageConfig
	cache     cache.ObjectCache
	populator *cache.Populator
	media     *MediaService
	retrieval *RetrievalService
}

func testStorageConfig() config.StorageConfig {
	return config.StorageConfig{
		Driver:      "memory",
		Environment: "production",
		Buckets:     map[string]string{"production": "media-prod", "development": "media-dev"},
		CDNHosts:    map[string]string{"production": "https://cdn.example.com"},
		CacheHeader: "public, max-age=31536000",
	}
}

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		ImageMaxBytes:    100 * 1000 * 1000,
		VideoMaxBytes:    100 * 1000 * 1000,
		AudioMaxBytes:    50 * 1000 * 1000,
		DocumentMaxBytes: 25 * 1000 * 1000,
		AllowedTypes:     config.DefaultAllowedTypes,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithCache(t, cache.NewMemoryObjectCache(64, time.Hour))
}

func newFixtureWithCache(t *testing.T, objectCache cache.ObjectCache) *fixture {
	t.Helper()

	primary := storage.NewMemoryStore(storage.PrimaryName)
	secondary := storage.NewMemoryStore(storage.SecondaryName)
	backends := storage.Backends{Primary: primary, Secondary: secondary, Presigner: primary}
	storageCfg := testStorageConfig()
	populator := cache.NewPopulator(objectCache, 16, 1)
	t.Cleanup(populator.Close)

	policy := NewUploadPolicy(testUploadConfig())
	return &fixture{
		primary:   primary,
		secondary: secondary,
		storage:   storageCfg,
		cache:     objectCache,
		populator: populator,
		media:     NewMediaService(backends, storageCfg, objectCache, populator, policy, transform.NewRecompressor(true, 80)),
		retrieval: NewRetrievalService(primary, storageCfg, objectCache, populator),
	}
}
