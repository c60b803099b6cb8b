package storage

import (
	"context"
	"time"

	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/andresuchdata/mediastore/internal/metrics"
)

// instrumented records call durations for an ObjectStore.
type instrumented struct {
	ObjectStore
}

// Instrument wraps s so every call is observed in the backend histogram.
func Instrument(s ObjectStore) ObjectStore {
	return &instrumented{ObjectStore: s}
}

func observe(backend, op string, start time.Time) {
	metrics.BackendDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

func (i *instrumented) Put(ctx context.Context, bucket, key string, data []byte, opts PutOptions) error {
	defer observe(i.Name(), "put", time.Now())
	return i.ObjectStore.Put(ctx, bucket, key, data, opts)
}

func (i *instrumented) Get(ctx context.Context, bucket, key string) (*Object, error) {
	defer observe(i.Name(), "get", time.Now())
	return i.ObjectStore.Get(ctx, bucket, key)
}

func (i *instrumented) Head(ctx context.Context, bucket, key string) (*domain.ObjectMeta, error) {
	defer observe(i.Name(), "head", time.Now())
	return i.ObjectStore.Head(ctx, bucket, key)
}

func (i *instrumented) Delete(ctx context.Context, bucket, key string) error {
	defer observe(i.Name(), "delete", time.Now())
	return i.ObjectStore.Delete(ctx, bucket, key)
}

func (i *instrumented) List(ctx context.Context, bucket, prefix, token string, limit int) (*ListPage, error) {
	defer observe(i.Name(), "list", time.Now())
	return i.ObjectStore.List(ctx, bucket, prefix, token, limit)
}

func (i *instrumented) Copy(ctx context.Context, bucket, srcKey, dstKey string, opts PutOptions) error {
	defer observe(i.Name(), "copy", time.Now())
	return i.ObjectStore.Copy(ctx, bucket, srcKey, dstKey, opts)
}
