package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andresuchdata/mediastore/internal/config"
	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	objectDataKeyPrefix = "media:data:"
	objectMetaKeyPrefix = "media:meta:"
	scanBatchSize       = 100
)

// ObjectCache holds object bytes and their headers as two entries per key.
// A lookup is only a hit when both entries are present and the metadata
// carries a content type.
type ObjectCache interface {
	Lookup(ctx context.Context, key string) (*domain.CachedObject, bool, error)
	Populate(ctx context.Context, key string, obj *domain.CachedObject, ttl time.Duration) error
	Evict(ctx context.Context, key string) error
	EvictPrefix(ctx context.Context, prefix string) error
	TTL() time.Duration
}

type redisObjectCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopObjectCache struct{}

// NewObjectCache builds the cache selected by cfg.Driver: redis, memory or none.
func NewObjectCache(cfg config.CacheConfig) (ObjectCache, error) {
	switch cfg.Driver {
	case "redis":
		client, ttl, err := newRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		return NewRedisObjectCache(client, ttl), nil
	case "memory", "":
		return NewMemoryObjectCache(cfg.MemoryEntries, objectTTL(cfg)), nil
	case "none":
		return NewNoopObjectCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

func NewRedisObjectCache(client *redis.Client, ttl time.Duration) ObjectCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisObjectCache{client: client, ttl: ttl}
}

func NewNoopObjectCache() ObjectCache {
	return &noopObjectCache{}
}

func (c *redisObjectCache) TTL() time.Duration { return c.ttl }

func (c *redisObjectCache) Lookup(ctx context.Context, key string) (*domain.CachedObject, bool, error) {
	values, err := c.client.MGet(ctx, objectDataKeyPrefix+key, objectMetaKeyPrefix+key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis mget failed: %w", err)
	}

	data, dataOK := values[0].(string)
	rawMeta, metaOK := values[1].(string)
	if !dataOK || !metaOK {
		return nil, false, nil
	}

	var obj domain.CachedObject
	if err := json.Unmarshal([]byte(rawMeta), &obj); err != nil {
		return nil, false, fmt.Errorf("decode object cache metadata: %w", err)
	}
	if obj.ContentType == "" {
		return nil, false, nil
	}

	obj.Data = []byte(data)
	if obj.ContentLength == 0 {
		obj.ContentLength = int64(len(obj.Data))
	}
	return &obj, true, nil
}

func (c *redisObjectCache) Populate(ctx context.Context, key string, obj *domain.CachedObject, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	meta, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode object cache metadata: %w", err)
	}

	_, err = c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, objectDataKeyPrefix+key, obj.Data, ttl)
		pipe.Set(ctx, objectMetaKeyPrefix+key, meta, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisObjectCache) Evict(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, objectDataKeyPrefix+key, objectMetaKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *redisObjectCache) EvictPrefix(ctx context.Context, prefix string) error {
	if err := deleteKeysWithPrefix(ctx, c.client, objectDataKeyPrefix+prefix, scanBatchSize); err != nil {
		return err
	}
	return deleteKeysWithPrefix(ctx, c.client, objectMetaKeyPrefix+prefix, scanBatchSize)
}

func (n *noopObjectCache) TTL() time.Duration { return 0 }

func (n *noopObjectCache) Lookup(ctx context.Context, key string) (*domain.CachedObject, bool, error) {
	return nil, false, nil
}

func (n *noopObjectCache) Populate(ctx context.Context, key string, obj *domain.CachedObject, ttl time.Duration) error {
	return nil
}

func (n *noopObjectCache) Evict(ctx context.Context, key string) error {
	return nil
}

func (n *noopObjectCache) EvictPrefix(ctx context.Context, prefix string) error {
	return nil
}
