package migration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/mediastore/internal/cache"
	"github.com/andresuchdata/mediastore/internal/config"
	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/andresuchdata/mediastore/internal/metrics"
	"github.com/andresuchdata/mediastore/internal/storage"
	"github.com/rs/zerolog/log"
)

// Renamer moves every object under one owner prefix to another, used when a
// user changes their username. Each object is copied then deleted, so the
// move is atomic per object but not per batch.
type Renamer struct {
	targets  []Target
	cache    cache.ObjectCache
	workers  int
	pageSize int
}

func NewRenamer(targets []Target, objectCache cache.ObjectCache, cfg config.MigrationConfig) *Renamer {
	if objectCache == nil {
		objectCache = cache.NewNoopObjectCache()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = defaultWorkers
	}
	pageSize := cfg.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return &Renamer{targets: targets, cache: objectCache, workers: workers, pageSize: pageSize}
}

// Rename relocates <oldOwner>/* to <newOwner>/* on every target.
func (r *Renamer) Rename(ctx context.Context, oldOwner, newOwner string) (*Report, error) {
	if err := validOwner(oldOwner); err != nil {
		return nil, err
	}
	if err := validOwner(newOwner); err != nil {
		return nil, err
	}
	if oldOwner == newOwner {
		return nil, domain.NewError(domain.KindBadRequest, "old and new owner are the same")
	}

	report := newReport()
	oldPrefix := oldOwner + "/"
	start := time.Now()

	for _, target := range r.targets {
		name := target.String()
		logger := log.With().Str("target", name).Str("from", oldOwner).Str("to", newOwner).Logger()
		logger.Info().Msg("rename: starting target")

		err := walk(ctx, target, oldPrefix, r.pageSize, r.workers, func(ctx context.Context, obj storage.ObjectInfo) {
			dst := domain.BuildKey(newOwner, strings.TrimPrefix(obj.Key, oldPrefix))
			if err := moveObject(ctx, target, obj.Key, dst); err != nil {
				metrics.MigratedObjects.WithLabelValues("rename", target.Store.Name(), "error").Inc()
				logger.Error().Err(err).Str("key", obj.Key).Msg("rename: object failed")
				report.fail(name, err)
				return
			}
			metrics.MigratedObjects.WithLabelValues("rename", target.Store.Name(), "ok").Inc()
			report.success()
		})
		if err != nil {
			logger.Error().Err(err).Msg("rename: listing failed, target incomplete")
			report.fail(name, err)
		}
	}

	if err := r.cache.EvictPrefix(context.WithoutCancel(ctx), oldPrefix); err != nil {
		log.Warn().Err(err).Str("prefix", oldPrefix).Msg("rename: cache evict failed")
	}

	log.Info().
		Int("renamed", report.Processed).
		Int("failed", report.Failed()).
		Dur("elapsed", time.Since(start)).
		Msg("rename: finished")
	return report, nil
}

func moveObject(ctx context.Context, target Target, src, dst string) error {
	meta, err := target.Store.Head(ctx, target.Bucket, src)
	if err != nil {
		return fmt.Errorf("head %s: %w", src, err)
	}
	if err := target.Store.Copy(ctx, target.Bucket, src, dst, storage.OptionsFromMeta(meta)); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := target.Store.Delete(ctx, target.Bucket, src); err != nil {
		return fmt.Errorf("delete %s: %w", src, err)
	}
	return nil
}

func validOwner(owner string) error {
	if strings.TrimSpace(owner) == "" || strings.Contains(owner, "/") {
		return domain.NewError(domain.KindBadRequest, "invalid owner %q", owner)
	}
	return nil
}
