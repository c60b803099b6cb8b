package main

import (
	"fmt"
	"time"

	"github.com/andresuchdata/mediastore/internal/auth"
	"github.com/andresuchdata/mediastore/internal/cache"
	"github.com/andresuchdata/mediastore/internal/config"
	"github.com/andresuchdata/mediastore/internal/migration"
	"github.com/andresuchdata/mediastore/internal/storage"
	"github.com/andresuchdata/mediastore/pkg/logger"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

const defaultTokenTTL = time.Hour

// environment holds what every command needs, built once in Before.
type environment struct {
	cfg      *config.Config
	backends storage.Backends
	cache    cache.ObjectCache
}

func (e *environment) load(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Configure(c.String("log-format"))
	logger.SetLevel(cfg.Log.Level)
	e.cfg = cfg

	// token needs only the secret
	if c.Args().First() == "token" {
		return nil
	}

	e.backends, err = storage.NewBackends(c.Context, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage backends: %w", err)
	}
	e.cache, err = cache.NewObjectCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("cache unavailable, stale entries will expire on their own")
		e.cache = cache.NewNoopObjectCache()
	}
	return nil
}

func (e *environment) targets(names []string) ([]migration.Target, error) {
	bucket := e.cfg.Storage.Bucket()
	targets := make([]migration.Target, 0, len(names))
	for _, name := range names {
		store, err := e.backends.Lookup(name)
		if err != nil {
			return nil, err
		}
		targets = append(targets, migration.Target{Store: store, Bucket: bucket})
	}
	return targets, nil
}

func (e *environment) rename(c *cli.Context) error {
	targets, err := e.targets(c.StringSlice("backend"))
	if err != nil {
		return err
	}

	renamer := migration.NewRenamer(targets, e.cache, e.cfg.Migration)
	report, err := renamer.Rename(c.Context, c.String("from"), c.String("to"))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "renamed %s objects, %d failures\n", humanize.Comma(int64(report.Processed)), report.Failed())
	for target, errs := range report.Errors {
		for _, err := range errs {
			fmt.Fprintf(c.App.ErrWriter, "  %s: %v\n", target, err)
		}
	}
	if report.Failed() > 0 {
		return cli.Exit("rename finished with failures; rerun to retry the remaining objects", 2)
	}
	return nil
}

func (e *environment) sync(c *cli.Context) error {
	targets, err := e.targets([]string{c.String("from"), c.String("to")})
	if err != nil {
		return err
	}

	syncer := migration.NewSyncer(e.cfg.Migration, c.Bool("dry-run"))
	report := syncer.Sync(c.Context, targets[0], targets[1], c.String("prefix"))

	verb := "copied"
	if c.Bool("dry-run") {
		verb = "would copy"
	}
	fmt.Fprintf(c.App.Writer, "%s %s objects, %s already in sync, %d failures\n",
		verb, humanize.Comma(int64(report.Processed)), humanize.Comma(int64(report.Skipped)), report.Failed())
	if err := report.Err(); err != nil {
		fmt.Fprintln(c.App.ErrWriter, err)
		return cli.Exit("sync finished with failures", 2)
	}
	return nil
}

func (e *environment) token(c *cli.Context) error {
	signed, err := auth.Sign(e.cfg.Auth.JWTSecret, c.String("user"), c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, signed)
	return nil
}
