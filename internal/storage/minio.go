package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andresuchdata/mediastore/internal/config"
	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinioStore implements ObjectStore and Presigner on top of minio-go. It is
// used for the primary backend; any S3-compatible provider works.
type MinioStore struct {
	name   string
	client *minio.Client
}

// NewMinioStore creates a MinIO client for one endpoint.
func NewMinioStore(name string, cfg config.BackendConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%s endpoint must be provided", name)
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%s credentials must be provided", name)
	}

	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioStore{name: name, client: client}, nil
}

func (s *MinioStore) Name() string { return s.name }

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %q: %w", bucket, err)
	}
	log.Info().Str("backend", s.name).Str("bucket", bucket).Msg("storage: created bucket")
	return nil
}

func (s *MinioStore) Put(ctx context.Context, bucket, key string, data []byte, opts PutOptions) error {
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		UserMetadata: opts.Metadata,
	})
	if err != nil {
		return fmt.Errorf("%s put object %q: %w", s.name, key, err)
	}
	return nil
}

func (s *MinioStore) Get(ctx context.Context, bucket, key string) (*Object, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap("get", key, err)
	}
	// GetObject is lazy; Stat issues the request and surfaces NoSuchKey.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, s.wrap("get", key, err)
	}
	return &Object{Body: obj, Meta: metaFromMinio(key, info)}, nil
}

func (s *MinioStore) Head(ctx context.Context, bucket, key string) (*domain.ObjectMeta, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, s.wrap("head", key, err)
	}
	meta := metaFromMinio(key, info)
	return &meta, nil
}

func (s *MinioStore) Delete(ctx context.Context, bucket, key string) error {
	err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isMinioNotFound(err) {
		return fmt.Errorf("%s delete object %q: %w", s.name, key, err)
	}
	return nil
}

// List uses the last key of the previous page as the continuation token.
func (s *MinioStore) List(ctx context.Context, bucket, prefix, token string, limit int) (*ListPage, error) {
	limit = listLimit(limit)

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	page := &ListPage{}
	for info := range s.client.ListObjects(listCtx, bucket, minio.ListObjectsOptions{
		Prefix:     prefix,
		Recursive:  true,
		StartAfter: token,
		MaxKeys:    limit,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("%s list %q: %w", s.name, prefix, info.Err)
		}
		if len(page.Objects) == limit {
			// There is at least one more object.
			page.NextToken = page.Objects[limit-1].Key
			break
		}
		page.Objects = append(page.Objects, ObjectInfo{
			Key:          info.Key,
			Size:         info.Size,
			LastModified: info.LastModified,
			ETag:         info.ETag,
		})
	}
	return page, nil
}

func (s *MinioStore) Copy(ctx context.Context, bucket, srcKey, dstKey string, opts PutOptions) error {
	md := make(map[string]string, len(opts.Metadata)+2)
	for k, v := range opts.Metadata {
		md[k] = v
	}
	if opts.ContentType != "" {
		md["Content-Type"] = opts.ContentType
	}
	if opts.CacheControl != "" {
		md["Cache-Control"] = opts.CacheControl
	}

	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: bucket, Object: dstKey, UserMetadata: md, ReplaceMetadata: true},
		minio.CopySrcOptions{Bucket: bucket, Object: srcKey},
	)
	if err != nil {
		return s.wrap("copy", srcKey, err)
	}
	return nil
}

// PresignPut signs Content-Type into the URL, so the upload must carry the
// same header.
func (s *MinioStore) PresignPut(ctx context.Context, bucket, key, contentType string, expiry time.Duration) (string, error) {
	var headers http.Header
	if contentType != "" {
		headers = http.Header{"Content-Type": {contentType}}
	}
	u, err := s.client.PresignHeader(ctx, http.MethodPut, bucket, key, expiry, nil, headers)
	if err != nil {
		return "", fmt.Errorf("%s presign put %q: %w", s.name, key, err)
	}
	return u.String(), nil
}

func (s *MinioStore) PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("%s presign get %q: %w", s.name, key, err)
	}
	return u.String(), nil
}

func (s *MinioStore) wrap(op, key string, err error) error {
	if isMinioNotFound(err) {
		return fmt.Errorf("%s %s %q: %w", s.name, op, key, ErrNotFound)
	}
	return fmt.Errorf("%s %s %q: %w", s.name, op, key, err)
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
		return true
	}
	return resp.StatusCode == http.StatusNotFound && !errors.Is(err, context.Canceled)
}

func metaFromMinio(key string, info minio.ObjectInfo) domain.ObjectMeta {
	md := make(map[string]string, len(info.UserMetadata))
	for k, v := range info.UserMetadata {
		md[k] = v
	}
	return domain.ObjectMeta{
		Key:           key,
		ContentType:   info.ContentType,
		CacheControl:  info.Metadata.Get("Cache-Control"),
		ContentLength: info.Size,
		LastModified:  info.LastModified,
		ETag:          info.ETag,
		Metadata:      md,
	}
}

var (
	_ ObjectStore = (*MinioStore)(nil)
	_ Presigner   = (*MinioStore)(nil)
)
