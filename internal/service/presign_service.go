package service

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andresuchdata/mediastore/internal/config"
	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/andresuchdata/mediastore/internal/storage"
	"github.com/andresuchdata/mediastore/internal/transform"
	"github.com/google/uuid"
)

// PresignTTL is how long every presigned URL stays valid.
const PresignTTL = time.Hour

// PresignService mints presigned URLs on the primary backend and rewrites
// them onto the public CDN host.
type PresignService struct {
	presigner storage.Presigner
	storage   config.StorageConfig
	policy    *UploadPolicy
	newName   func() string
	now       func() time.Time
}

func NewPresignService(presigner storage.Presigner, storageCfg config.StorageConfig, policy *UploadPolicy) *PresignService {
	return &PresignService{
		presigner: presigner,
		storage:   storageCfg,
		policy:    policy,
		newName:   uuid.NewString,
		now:       time.Now,
	}
}

// UploadURL returns a PUT capability for a new object under owner's prefix.
// The upload must send contentType as its Content-Type header.
func (s *PresignService) UploadURL(ctx context.Context, owner, filename, contentType string) (*domain.PresignedURL, error) {
	if strings.TrimSpace(owner) == "" || strings.Contains(owner, "/") {
		return nil, domain.NewError(domain.KindBadRequest, "owner identity is required")
	}
	if strings.TrimSpace(filename) == "" {
		return nil, domain.NewError(domain.KindBadRequest, "filename is required")
	}
	contentType = normalizeContentType(contentType)
	if !s.policy.Allowed(contentType) {
		return nil, domain.NewError(domain.KindUnsupportedMediaType, "content type %s is not allowed", contentType)
	}

	// The client's filename never reaches the key; the extension follows
	// the signed content type.
	key := domain.BuildKey(owner, s.newName()+transform.ExtensionFor(contentType))

	signed, err := s.presigner.PresignPut(ctx, s.storage.Bucket(), key, contentType, PresignTTL)
	if err != nil {
		return nil, domain.WrapError(domain.KindServiceError, err, "could not create upload url")
	}
	return s.publish(signed, key, http.MethodPut)
}

// DownloadURL returns a GET capability for key.
func (s *PresignService) DownloadURL(ctx context.Context, key string) (*domain.PresignedURL, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	signed, err := s.presigner.PresignGet(ctx, s.storage.Bucket(), key, PresignTTL)
	if err != nil {
		return nil, domain.WrapError(domain.KindServiceError, err, "could not create download url")
	}
	return s.publish(signed, key, http.MethodGet)
}

func (s *PresignService) publish(signed, key, method string) (*domain.PresignedURL, error) {
	public, err := RewriteToCDN(signed, s.storage.CDNHost(), s.storage.Bucket())
	if err != nil {
		return nil, domain.WrapError(domain.KindServiceError, err, "could not create signed url")
	}
	return &domain.PresignedURL{
		URL:       public,
		Key:       key,
		Method:    method,
		ExpiresAt: s.now().Add(PresignTTL).UTC(),
	}, nil
}

// RewriteToCDN moves a signed URL onto the CDN host. The object path is
// kept (minus a leading path-style bucket segment) and the raw query, which
// carries the signature, is copied byte for byte.
func RewriteToCDN(signed, cdnHost, bucket string) (string, error) {
	u, err := url.Parse(signed)
	if err != nil {
		return "", err
	}
	path := strings.TrimPrefix(u.EscapedPath(), "/")
	if bucket != "" {
		path = strings.TrimPrefix(path, bucket+"/")
	}

	out := strings.TrimRight(cdnHost, "/") + "/" + path
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out, nil
}
