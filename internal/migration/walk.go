package migration

import (
	"context"
	"fmt"

	"github.com/andresuchdata/mediastore/internal/storage"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers  = 8
	defaultPageSize = 1000
)

// walk lists every key under prefix and runs fn on each one, at most
// workers at a time within a page. fn reports its own failures; walk only
// returns listing errors, which end the walk for that target.
func walk(ctx context.Context, target Target, prefix string, pageSize, workers int, fn func(ctx context.Context, obj storage.ObjectInfo)) error {
	token := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := target.Store.List(ctx, target.Bucket, prefix, token, pageSize)
		if err != nil {
			return fmt.Errorf("list %q: %w", prefix, err)
		}

		var g errgroup.Group
		g.SetLimit(workers)
		for _, obj := range page.Objects {
			g.Go(func() error {
				fn(ctx, obj)
				return nil
			})
		}
		_ = g.Wait()

		if page.NextToken == "" {
			return nil
		}
		token = page.NextToken
	}
}
