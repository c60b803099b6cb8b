package storage

import (
	"context"
	"errors"
	"io"
	"maps"
	"time"

	"github.com/andresuchdata/mediastore/internal/domain"
)

// ErrNotFound is returned when the bucket has no object under the key.
var ErrNotFound = errors.New("storage: object not found")

// PutOptions carries the headers stored alongside an object.
type PutOptions struct {
	ContentType  string
	CacheControl string
	Metadata     map[string]string
}

// Object is an open object body. Callers must close Body.
type Object struct {
	Body io.ReadCloser
	Meta domain.ObjectMeta
}

// ObjectInfo represents one entry of a listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// ListPage is one page of a prefix listing. NextToken is empty on the last page.
type ListPage struct {
	Objects   []ObjectInfo
	NextToken string
}

// ObjectStore captures the S3-compatible operations against a single
// endpoint. Implementations make exactly one backend call per operation and
// never retry.
type ObjectStore interface {
	Name() string
	Put(ctx context.Context, bucket, key string, data []byte, opts PutOptions) error
	Get(ctx context.Context, bucket, key string) (*Object, error)
	Head(ctx context.Context, bucket, key string) (*domain.ObjectMeta, error)
	Delete(ctx context.Context, bucket, key string) error
	List(ctx context.Context, bucket, prefix, token string, limit int) (*ListPage, error)
	Copy(ctx context.Context, bucket, srcKey, dstKey string, opts PutOptions) error
}

// Presigner mints time boxed URLs for direct client access.
type Presigner interface {
	PresignPut(ctx context.Context, bucket, key, contentType string, expiry time.Duration) (string, error)
	PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

// ReadAll drains and closes an object body.
func ReadAll(obj *Object) ([]byte, error) {
	defer obj.Body.Close()
	return io.ReadAll(obj.Body)
}

// OptionsFromMeta keeps the headers of an existing object for a copy.
func OptionsFromMeta(meta *domain.ObjectMeta) PutOptions {
	if meta == nil {
		return PutOptions{}
	}
	return PutOptions{
		ContentType:  meta.ContentType,
		CacheControl: meta.CacheControl,
		Metadata:     maps.Clone(meta.Metadata),
	}
}

const defaultListLimit = 1000

func listLimit(limit int) int {
	if limit <= 0 || limit > defaultListLimit {
		return defaultListLimit
	}
	return limit
}
