package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/andresuchdata/mediastore/internal/cache"
	"github.com/andresuchdata/mediastore/internal/config"
	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/andresuchdata/mediastore/internal/metrics"
	"github.com/andresuchdata/mediastore/internal/storage"
	"github.com/andresuchdata/mediastore/internal/transform"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// UploadRequest is one logical upload. Size is the size the client declared;
// the larger of Size and len(Data) is checked against the ceiling.
type UploadRequest struct {
	Owner       string
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// MediaService performs replicated writes: every upload and delete goes to
// both backends concurrently. There is no cross-backend transaction; when
// one backend fails after the other committed, the object is left on one
// side and the failure is returned as is.
type MediaService struct {
	backends    storage.Backends
	storage     config.StorageConfig
	cache       cache.ObjectCache
	populator   *cache.Populator
	policy      *UploadPolicy
	transformer transform.Transformer
	newName     func() string
}

func NewMediaService(
	backends storage.Backends,
	storageCfg config.StorageConfig,
	cacheImpl cache.ObjectCache,
	populator *cache.Populator,
	policy *UploadPolicy,
	transformer transform.Transformer,
) *MediaService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopObjectCache()
	}
	if transformer == nil {
		transformer = transform.NewRecompressor(false, 0)
	}
	return &MediaService{
		backends:    backends,
		storage:     storageCfg,
		cache:       cacheImpl,
		populator:   populator,
		policy:      policy,
		transformer: transformer,
		newName:     uuid.NewString,
	}
}

// Admit checks a declared type and size before any upload body is read.
// A missing or generic type is only held to the largest ceiling, since the
// real type is not known until the content is sniffed.
func (s *MediaService) Admit(contentType string, size int64) error {
	contentType = normalizeContentType(contentType)
	if contentType == "" || contentType == domain.DefaultContentType {
		if limit := s.policy.MaxBytes(); limit > 0 && size > limit {
			return domain.NewError(domain.KindPayloadTooLarge, "file exceeds the largest upload limit")
		}
		return nil
	}
	return s.policy.Check(contentType, size)
}

// MaxUploadBytes is the largest ceiling of any media class.
func (s *MediaService) MaxUploadBytes() int64 {
	return s.policy.MaxBytes()
}

func (s *MediaService) Upload(ctx context.Context, req UploadRequest) (*domain.UploadResult, error) {
	owner := strings.TrimSpace(req.Owner)
	if owner == "" || strings.Contains(owner, "/") {
		return nil, domain.NewError(domain.KindBadRequest, "owner identity is required")
	}

	size := req.Size
	if int64(len(req.Data)) > size {
		size = int64(len(req.Data))
	}
	contentType := DetectContentType(req.ContentType, req.Data)
	if err := s.policy.Check(contentType, size); err != nil {
		return nil, err
	}

	out, err := s.transformer.Transform(ctx, req.Data, contentType)
	if err != nil {
		return nil, domain.WrapError(domain.KindServiceError, err, "could not process upload")
	}

	key := domain.BuildKey(owner, s.newName()+out.Ext)
	opts := storage.PutOptions{
		ContentType:  out.ContentType,
		CacheControl: s.storage.CacheHeader,
		Metadata: map[string]string{
			"owner":      owner,
			"compressed": strconv.FormatBool(!out.UsedOriginal),
		},
	}

	bucket := s.storage.Bucket()
	if err := s.replicate(ctx, "upload", key, func(ctx context.Context, store storage.ObjectStore) error {
		return store.Put(ctx, bucket, key, out.Data, opts)
	}); err != nil {
		return nil, domain.WrapError(domain.KindServiceError, err, "upload failed")
	}

	log.Info().
		Str("key", key).
		Str("owner", owner).
		Str("content_type", out.ContentType).
		Int("bytes", len(out.Data)).
		Bool("compressed", !out.UsedOriginal).
		Msg("media: uploaded")

	return &domain.UploadResult{
		Key:         key,
		URL:         s.storage.PublicURL(key),
		ContentType: out.ContentType,
		Size:        int64(len(out.Data)),
		Compressed:  !out.UsedOriginal,
	}, nil
}

// Delete removes keyOrURL from both backends after checking it lives under
// owner's prefix, then evicts the cache entry. Deleting a missing key
// succeeds.
func (s *MediaService) Delete(ctx context.Context, owner, keyOrURL string) (string, error) {
	key, err := domain.KeyFromURL(keyOrURL, s.storage.Bucket())
	if err != nil {
		return "", err
	}
	if err := validateKey(key); err != nil {
		return "", err
	}
	if !domain.HasOwner(key, owner) {
		return "", domain.NewError(domain.KindAccessDenied, "you can only delete your own files")
	}

	bucket := s.storage.Bucket()
	deleteErr := s.replicate(ctx, "delete", key, func(ctx context.Context, store storage.ObjectStore) error {
		return store.Delete(ctx, bucket, key)
	})

	// Evict even after a partial failure: the primary may already be gone.
	if s.populator != nil {
		s.populator.Invalidate(key)
	}
	evictCtx := context.WithoutCancel(ctx)
	if err := s.cache.Evict(evictCtx, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("media: cache evict failed after delete")
		if deleteErr == nil {
			return "", domain.WrapError(domain.KindServiceError, err, "delete could not be completed")
		}
	}

	if deleteErr != nil {
		return "", domain.WrapError(domain.KindServiceError, deleteErr, "delete failed")
	}

	log.Info().Str("key", key).Str("owner", owner).Msg("media: deleted")
	return key, nil
}

// replicate runs op against both backends in parallel and waits for both.
func (s *MediaService) replicate(ctx context.Context, op, key string, fn func(context.Context, storage.ObjectStore) error) error {
	stores := s.backends.All()
	errs := make([]error, len(stores))

	var g errgroup.Group
	for i, store := range stores {
		g.Go(func() error {
			errs[i] = fn(ctx, store)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			log.Error().Err(err).Str("op", op).Str("backend", stores[i].Name()).Str("key", key).Msg("media: backend write failed")
		}
	}

	switch {
	case failed == 0:
		metrics.ReplicatedWrites.WithLabelValues(op, "ok").Inc()
		return nil
	case failed < len(stores):
		metrics.ReplicatedWrites.WithLabelValues(op, "partial").Inc()
		log.Warn().Str("op", op).Str("key", key).Msg("media: backends diverged, run mediactl sync to repair")
	default:
		metrics.ReplicatedWrites.WithLabelValues(op, "failed").Inc()
	}
	return errors.Join(errs...)
}
