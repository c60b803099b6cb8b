package cache

import (
	"context"
	"strings"
	"time"

	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMemoryEntries = 512

type memoryEntry struct {
	obj       domain.CachedObject
	expiresAt time.Time
}

// memoryObjectCache is a per-process LRU used when redis is not configured.
type memoryObjectCache struct {
	lru *expirable.LRU[string, memoryEntry]
	ttl time.Duration
	now func() time.Time
}

func NewMemoryObjectCache(size int, ttl time.Duration) ObjectCache {
	if size <= 0 {
		size = defaultMemoryEntries
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &memoryObjectCache{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, ttl),
		ttl: ttl,
		now: time.Now,
	}
}

func (c *memoryObjectCache) TTL() time.Duration { return c.ttl }

func (c *memoryObjectCache) Lookup(ctx context.Context, key string) (*domain.CachedObject, bool, error) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	if entry.obj.ContentType == "" {
		return nil, false, nil
	}
	obj := entry.obj
	return &obj, true, nil
}

func (c *memoryObjectCache) Populate(ctx context.Context, key string, obj *domain.CachedObject, ttl time.Duration) error {
	if ttl <= 0 || ttl > c.ttl {
		ttl = c.ttl
	}
	c.lru.Add(key, memoryEntry{obj: *obj, expiresAt: c.now().Add(ttl)})
	return nil
}

func (c *memoryObjectCache) Evict(ctx context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

func (c *memoryObjectCache) EvictPrefix(ctx context.Context, prefix string) error {
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
	return nil
}
