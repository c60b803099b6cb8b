package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/mediastore/internal/domain"
)

type memoryObject struct {
	data []byte
	meta domain.ObjectMeta
}

// MemoryStore is an in-process ObjectStore for local development and tests.
// It counts calls per operation and can be told to fail an operation.
type MemoryStore struct {
	name string

	mu      sync.RWMutex
	objects map[string]memoryObject
	calls   map[string]int
	faults  map[string]error
	delay   map[string]time.Duration
}

func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name:    name,
		objects: make(map[string]memoryObject),
		calls:   make(map[string]int),
		faults:  make(map[string]error),
		delay:   make(map[string]time.Duration),
	}
}

func (s *MemoryStore) Name() string { return s.name }

// Inject makes every subsequent call of op ("put", "get", ...) return err.
// A nil err clears the fault.
func (s *MemoryStore) Inject(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// Slow delays op by d, honoring context cancellation.
func (s *MemoryStore) Slow(op string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay[op] = d
}

// Calls returns how many times op was invoked.
func (s *MemoryStore) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (s *MemoryStore) TotalCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Has reports whether bucket/key exists.
func (s *MemoryStore) Has(bucket, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[bucket+"/"+key]
	return ok
}

func (s *MemoryStore) enter(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls[op]++
	err := s.faults[op]
	d := s.delay[op]
	s.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (s *MemoryStore) Put(ctx context.Context, bucket, key string, data []byte, opts PutOptions) error {
	if err := s.enter(ctx, "put"); err != nil {
		return fmt.Errorf("%s put object %q: %w", s.name, key, err)
	}
	sum := md5.Sum(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = memoryObject{
		data: bytes.Clone(data),
		meta: domain.ObjectMeta{
			Key:           key,
			ContentType:   opts.ContentType,
			CacheControl:  opts.CacheControl,
			ContentLength: int64(len(data)),
			LastModified:  time.Now().UTC().Truncate(time.Second),
			ETag:          hex.EncodeToString(sum[:]),
			Metadata:      maps.Clone(opts.Metadata),
		},
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, bucket, key string) (*Object, error) {
	if err := s.enter(ctx, "get"); err != nil {
		return nil, fmt.Errorf("%s get %q: %w", s.name, key, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%s get %q: %w", s.name, key, ErrNotFound)
	}
	return &Object{Body: io.NopCloser(bytes.NewReader(obj.data)), Meta: obj.meta}, nil
}

func (s *MemoryStore) Head(ctx context.Context, bucket, key string) (*domain.ObjectMeta, error) {
	if err := s.enter(ctx, "head"); err != nil {
		return nil, fmt.Errorf("%s head %q: %w", s.name, key, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%s head %q: %w", s.name, key, ErrNotFound)
	}
	meta := obj.meta
	return &meta, nil
}

func (s *MemoryStore) Delete(ctx context.Context, bucket, key string) error {
	if err := s.enter(ctx, "delete"); err != nil {
		return fmt.Errorf("%s delete object %q: %w", s.name, key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, bucket+"/"+key)
	return nil
}

// List pages through keys in lexical order; the token is the last key returned.
func (s *MemoryStore) List(ctx context.Context, bucket, prefix, token string, limit int) (*ListPage, error) {
	if err := s.enter(ctx, "list"); err != nil {
		return nil, fmt.Errorf("%s list %q: %w", s.name, prefix, err)
	}
	limit = listLimit(limit)

	s.mu.RLock()
	keys := make([]string, 0)
	for full := range s.objects {
		key, ok := strings.CutPrefix(full, bucket+"/")
		if ok && strings.HasPrefix(key, prefix) && key > token {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	page := &ListPage{}
	for _, key := range keys {
		if len(page.Objects) == limit {
			page.NextToken = page.Objects[limit-1].Key
			break
		}
		obj := s.objects[bucket+"/"+key]
		page.Objects = append(page.Objects, ObjectInfo{
			Key:          key,
			Size:         obj.meta.ContentLength,
			LastModified: obj.meta.LastModified,
			ETag:         obj.meta.ETag,
		})
	}
	s.mu.RUnlock()
	return page, nil
}

func (s *MemoryStore) Copy(ctx context.Context, bucket, srcKey, dstKey string, opts PutOptions) error {
	if err := s.enter(ctx, "copy"); err != nil {
		return fmt.Errorf("%s copy %q: %w", s.name, srcKey, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.objects[bucket+"/"+srcKey]
	if !ok {
		return fmt.Errorf("%s copy %q: %w", s.name, srcKey, ErrNotFound)
	}
	meta := src.meta
	meta.Key = dstKey
	meta.ContentType = opts.ContentType
	meta.CacheControl = opts.CacheControl
	meta.Metadata = maps.Clone(opts.Metadata)
	s.objects[bucket+"/"+dstKey] = memoryObject{data: bytes.Clone(src.data), meta: meta}
	return nil
}

func (s *MemoryStore) PresignPut(ctx context.Context, bucket, key, contentType string, expiry time.Duration) (string, error) {
	return s.presign(ctx, "PUT", bucket, key, contentType, expiry)
}

func (s *MemoryStore) PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	return s.presign(ctx, "GET", bucket, key, "", expiry)
}

func (s *MemoryStore) presign(ctx context.Context, method, bucket, key, contentType string, expiry time.Duration) (string, error) {
	if err := s.enter(ctx, "presign"); err != nil {
		return "", fmt.Errorf("%s presign %q: %w", s.name, key, err)
	}
	sum := md5.Sum([]byte(method + bucket + key + contentType))
	q := url.Values{}
	q.Set("X-Amz-Expires", strconv.Itoa(int(expiry.Seconds())))
	q.Set("X-Amz-SignedHeaders", "host")
	if contentType != "" {
		q.Set("X-Amz-SignedHeaders", "content-type;host")
	}
	q.Set("X-Amz-Signature", hex.EncodeToString(sum[:]))
	return "http://" + s.name + ".storage.local/" + bucket + "/" + key + "?" + q.Encode(), nil
}

var (
	_ ObjectStore = (*MemoryStore)(nil)
	_ Presigner   = (*MemoryStore)(nil)
)
