package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/andresuchdata/mediastore/internal/config"
	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Store implements ObjectStore and Presigner with the AWS SDK. It backs
// the secondary replica (R2, Spaces, AWS, ...).
type S3Store struct {
	name    string
	client  *s3.Client
	presign *s3.PresignClient
}

// NewS3Store builds a path-style S3 client for an S3-compatible endpoint.
func NewS3Store(ctx context.Context, name string, cfg config.BackendConfig) (*S3Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%s endpoint must be provided", name)
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%s credentials must be provided", name)
	}

	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		scheme := "https"
		if !cfg.UseSSL {
			scheme = "http"
		}
		endpoint = fmt.Sprintf("%s://%s", scheme, strings.TrimPrefix(cfg.Endpoint, "//"))
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		name:    name,
		client:  client,
		presign: s3.NewPresignClient(client),
	}, nil
}

func (s *S3Store) Name() string { return s.name }

func (s *S3Store) Put(ctx context.Context, bucket, key string, data []byte, opts PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata:      opts.Metadata,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String(opts.CacheControl)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("%s put object %q: %w", s.name, key, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, bucket, key string) (*Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.wrap("get", key, err)
	}

	return &Object{
		Body: out.Body,
		Meta: domain.ObjectMeta{
			Key:           key,
			ContentType:   aws.ToString(out.ContentType),
			CacheControl:  aws.ToString(out.CacheControl),
			ContentLength: aws.ToInt64(out.ContentLength),
			LastModified:  aws.ToTime(out.LastModified),
			ETag:          strings.Trim(aws.ToString(out.ETag), `"`),
			Metadata:      out.Metadata,
		},
	}, nil
}

func (s *S3Store) Head(ctx context.Context, bucket, key string) (*domain.ObjectMeta, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.wrap("head", key, err)
	}

	return &domain.ObjectMeta{
		Key:           key,
		ContentType:   aws.ToString(out.ContentType),
		CacheControl:  aws.ToString(out.CacheControl),
		ContentLength: aws.ToInt64(out.ContentLength),
		LastModified:  aws.ToTime(out.LastModified),
		ETag:          strings.Trim(aws.ToString(out.ETag), `"`),
		Metadata:      out.Metadata,
	}, nil
}

func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("%s delete object %q: %w", s.name, key, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, bucket, prefix, token string, limit int) (*ListPage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(int32(listLimit(limit))),
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%s list %q: %w", s.name, prefix, err)
	}

	page := &ListPage{Objects: make([]ObjectInfo, 0, len(out.Contents))}
	for _, obj := range out.Contents {
		page.Objects = append(page.Objects, ObjectInfo{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
		})
	}
	if aws.ToBool(out.IsTruncated) {
		page.NextToken = aws.ToString(out.NextContinuationToken)
	}
	return page, nil
}

func (s *S3Store) Copy(ctx context.Context, bucket, srcKey, dstKey string, opts PutOptions) error {
	input := &s3.CopyObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(dstKey),
		CopySource:        aws.String(bucket + "/" + strings.ReplaceAll(url.PathEscape(srcKey), "%2F", "/")),
		MetadataDirective: types.MetadataDirectiveReplace,
		Metadata:          opts.Metadata,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String(opts.CacheControl)
	}

	if _, err := s.client.CopyObject(ctx, input); err != nil {
		return s.wrap("copy", srcKey, err)
	}
	return nil
}

func (s *S3Store) PresignPut(ctx context.Context, bucket, key, contentType string, expiry time.Duration) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	req, err := s.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("%s presign put %q: %w", s.name, key, err)
	}
	return req.URL, nil
}

func (s *S3Store) PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("%s presign get %q: %w", s.name, key, err)
	}
	return req.URL, nil
}

func (s *S3Store) wrap(op, key string, err error) error {
	if isS3NotFound(err) {
		return fmt.Errorf("%s %s %q: %w", s.name, op, key, ErrNotFound)
	}
	return fmt.Errorf("%s %s %q: %w", s.name, op, key, err)
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

var (
	_ ObjectStore = (*S3Store)(nil)
	_ Presigner   = (*S3Store)(nil)
)
