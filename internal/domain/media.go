// internal/domain/media.go
package domain

import (
	"net/url"
	"strings"
	"time"
)

const DefaultContentType = "application/octet-stream"

// ObjectMeta is what a backend knows about a stored object.
type ObjectMeta struct {
	Key           string            `json:"key"`
	ContentType   string            `json:"content_type"`
	CacheControl  string            `json:"cache_control,omitempty"`
	ContentLength int64             `json:"content_length"`
	LastModified  time.Time         `json:"last_modified"`
	ETag          string            `json:"etag,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// CachedObject is a cache entry: object bytes plus the headers needed to
// serve them.
type CachedObject struct {
	Data          []byte    `json:"-"`
	ContentType   string    `json:"content_type"`
	ContentLength int64     `json:"content_length"`
	LastModified  time.Time `json:"last_modified"`
}

// UploadResult is returned after a replicated write.
type UploadResult struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Compressed  bool   `json:"compressed"`
}

// PresignedURL is a time boxed capability for a single storage operation.
type PresignedURL struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BuildKey joins an owner identity and a filename into an object key.
func BuildKey(owner, filename string) string {
	return strings.Trim(owner, "/") + "/" + strings.TrimLeft(filename, "/")
}

// OwnerOf returns the prefix before the first slash, or "" when the key
// has no owner segment.
func OwnerOf(key string) string {
	idx := strings.Index(key, "/")
	if idx <= 0 {
		return ""
	}
	return key[:idx]
}

// HasOwner reports whether key lives under owner's prefix.
func HasOwner(key, owner string) bool {
	if owner == "" || strings.Contains(owner, "/") {
		return false
	}
	rest, ok := strings.CutPrefix(key, owner+"/")
	return ok && rest != ""
}

// KeyFromURL extracts an object key from either a bare key or a full public
// URL. For path style URLs the leading bucket segment is dropped.
func KeyFromURL(raw, bucket string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", NewError(KindBadRequest, "key or url is required")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return strings.TrimPrefix(raw, "/"), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", WrapError(KindBadRequest, err, "invalid url")
	}
	path, err := url.PathUnescape(u.EscapedPath())
	if err != nil {
		return "", WrapError(KindBadRequest, err, "invalid url path")
	}
	key := strings.TrimPrefix(path, "/")
	if bucket != "" {
		key = strings.TrimPrefix(key, bucket+"/")
	}
	if key == "" {
		return "", NewError(KindBadRequest, "url does not reference an object")
	}
	return key, nil
}
