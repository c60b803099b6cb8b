package storage

import (
	"context"
	"fmt"

	"github.com/andresuchdata/mediastore/internal/config"
)

const (
	PrimaryName   = "primary"
	SecondaryName = "secondary"
)

// Backends are the two replicas every write goes to. Reads and presigned
// URLs are served from Primary only.
type Backends struct {
	Primary   ObjectStore
	Secondary ObjectStore
	Presigner Presigner
}

// All returns both backends in a stable order.
func (b Backends) All() []ObjectStore {
	return []ObjectStore{b.Primary, b.Secondary}
}

// Lookup returns the backend with the given name.
func (b Backends) Lookup(name string) (ObjectStore, error) {
	for _, s := range b.All() {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown backend %q", name)
}

// NewBackends builds both replicas for the configured driver.
func NewBackends(ctx context.Context, cfg config.StorageConfig) (Backends, error) {
	switch cfg.Driver {
	case "memory":
		primary := NewMemoryStore(PrimaryName)
		return Backends{Primary: primary, Secondary: NewMemoryStore(SecondaryName), Presigner: primary}, nil
	case "s3", "":
		primary, err := NewMinioStore(PrimaryName, cfg.Primary)
		if err != nil {
			return Backends{}, err
		}
		if err := primary.EnsureBucket(ctx, cfg.Bucket()); err != nil {
			return Backends{}, err
		}
		secondary, err := NewS3Store(ctx, SecondaryName, cfg.Secondary)
		if err != nil {
			return Backends{}, err
		}
		return Backends{Primary: Instrument(primary), Secondary: Instrument(secondary), Presigner: primary}, nil
	default:
		return Backends{}, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
