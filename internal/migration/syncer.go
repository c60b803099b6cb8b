package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresuchdata/mediastore/internal/config"
	"github.com/andresuchdata/mediastore/internal/metrics"
	"github.com/andresuchdata/mediastore/internal/storage"
	"github.com/rs/zerolog/log"
)

// Syncer copies objects that are missing (or differ in size) on one backend
// from another. It repairs the divergence a partially failed replicated
// write leaves behind.
type Syncer struct {
	workers  int
	pageSize int
	dryRun   bool
}

func NewSyncer(cfg config.MigrationConfig, dryRun bool) *Syncer {
	workers := cfg.Workers
	if workers < 1 {
		workers = defaultWorkers
	}
	pageSize := cfg.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return &Syncer{workers: workers, pageSize: pageSize, dryRun: dryRun}
}

// Sync walks src under prefix and fills the gaps on dst. Objects already
// present on dst with the same size are skipped. Nothing is ever deleted.
func (s *Syncer) Sync(ctx context.Context, src, dst Target, prefix string) *Report {
	report := newReport()
	name := dst.String()
	logger := log.With().Str("src", src.String()).Str("dst", name).Str("prefix", prefix).Logger()

	err := walk(ctx, src, prefix, s.pageSize, s.workers, func(ctx context.Context, obj storage.ObjectInfo) {
		copied, err := s.syncObject(ctx, src, dst, obj)
		switch {
		case err != nil:
			metrics.MigratedObjects.WithLabelValues("sync", dst.Store.Name(), "error").Inc()
			logger.Error().Err(err).Str("key", obj.Key).Msg("sync: object failed")
			report.fail(name, err)
		case copied:
			metrics.MigratedObjects.WithLabelValues("sync", dst.Store.Name(), "ok").Inc()
			report.success()
		default:
			report.skip()
		}
	})
	if err != nil {
		logger.Error().Err(err).Msg("sync: listing failed")
		report.fail(src.String(), err)
	}

	logger.Info().
		Int("copied", report.Processed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed()).
		Bool("dry_run", s.dryRun).
		Msg("sync: finished")
	return report
}

func (s *Syncer) syncObject(ctx context.Context, src, dst Target, obj storage.ObjectInfo) (bool, error) {
	existing, err := dst.Store.Head(ctx, dst.Bucket, obj.Key)
	switch {
	case err == nil && existing.ContentLength == obj.Size:
		return false, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return false, fmt.Errorf("head %s: %w", obj.Key, err)
	}
	if s.dryRun {
		return true, nil
	}

	body, err := src.Store.Get(ctx, src.Bucket, obj.Key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", obj.Key, err)
	}
	data, err := storage.ReadAll(body)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", obj.Key, err)
	}
	if err := dst.Store.Put(ctx, dst.Bucket, obj.Key, data, storage.OptionsFromMeta(&body.Meta)); err != nil {
		return false, fmt.Errorf("put %s: %w", obj.Key, err)
	}
	return true, nil
}
