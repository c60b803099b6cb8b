package service

import (
	"context"
	"errors"
	"strings"

	"github.com/andresuchdata/mediastore/internal/cache"
	"github.com/andresuchdata/mediastore/internal/config"
	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/andresuchdata/mediastore/internal/metrics"
	"github.com/andresuchdata/mediastore/internal/storage"
	"github.com/rs/zerolog/log"
)

// RetrievalService serves reads from the cache and falls back to the
// primary backend. The secondary backend is a write replica and is never
// read from here.
type RetrievalService struct {
	primary   storage.ObjectStore
	bucket    string
	cache     cache.ObjectCache
	populator *cache.Populator
}

func NewRetrievalService(primary storage.ObjectStore, storageCfg config.StorageConfig, cacheImpl cache.ObjectCache, populator *cache.Populator) *RetrievalService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopObjectCache()
	}
	return &RetrievalService{
		primary:   primary,
		bucket:    storageCfg.Bucket(),
		cache:     cacheImpl,
		populator: populator,
	}
}

// Retrieve returns the full object, populating the cache in the background
// on a miss.
func (s *RetrievalService) Retrieve(ctx context.Context, key string) (*domain.CachedObject, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	if obj, ok, err := s.cache.Lookup(ctx, key); err == nil && ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return obj, nil
	} else if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("key", key).Msg("retrieval: cache lookup failed")
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	// Read the version before storage so a delete that lands in between
	// turns this populate stale.
	var version uint64
	if s.populator != nil {
		version = s.populator.Version(key)
	}

	obj, err := s.primary.Get(ctx, s.bucket, key)
	if err != nil {
		return nil, translateStorageError(err, key)
	}
	data, err := storage.ReadAll(obj)
	if err != nil {
		return nil, domain.WrapError(domain.KindServiceError, err, "could not read file")
	}

	result := &domain.CachedObject{
		Data:          data,
		ContentType:   normalizedType(obj.Meta.ContentType),
		ContentLength: int64(len(data)),
		LastModified:  obj.Meta.LastModified,
	}
	if s.populator != nil {
		s.populator.Enqueue(key, result, version)
	}
	return result, nil
}

// Stream opens the object on the primary backend without buffering or
// caching it. The caller must close the body.
func (s *RetrievalService) Stream(ctx context.Context, key string) (*storage.Object, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	obj, err := s.primary.Get(ctx, s.bucket, key)
	if err != nil {
		return nil, translateStorageError(err, key)
	}
	obj.Meta.ContentType = normalizedType(obj.Meta.ContentType)
	return obj, nil
}

// Probe returns object metadata without the body.
func (s *RetrievalService) Probe(ctx context.Context, key string) (*domain.ObjectMeta, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	meta, err := s.primary.Head(ctx, s.bucket, key)
	if err != nil {
		return nil, translateStorageError(err, key)
	}
	meta.ContentType = normalizedType(meta.ContentType)
	return meta, nil
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return domain.NewError(domain.KindBadRequest, "file key is required")
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return domain.NewError(domain.KindBadRequest, "invalid file key")
		}
	}
	return nil
}

func translateStorageError(err error, key string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return domain.NewError(domain.KindFileNotFound, "file %s not found", key)
	}
	return domain.WrapError(domain.KindServiceError, err, "storage request failed")
}

func normalizedType(ct string) string {
	if strings.TrimSpace(ct) == "" {
		return domain.DefaultContentType
	}
	return ct
}
