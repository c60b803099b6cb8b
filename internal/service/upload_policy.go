package service

import (
	"strings"

	"github.com/andresuchdata/mediastore/internal/config"
	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

const (
	ClassImage    = "image"
	ClassVideo    = "video"
	ClassAudio    = "audio"
	ClassDocument = "document"
)

// UploadPolicy enforces the mimetype allow-list and per-class size ceilings.
// It runs before any backend call.
type UploadPolicy struct {
	limits  map[string]int64
	allowed map[string]bool
}

func NewUploadPolicy(cfg config.UploadConfig) *UploadPolicy {
	allowedTypes := cfg.AllowedTypes
	if len(allowedTypes) == 0 {
		allowedTypes = config.DefaultAllowedTypes
	}
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		// viper hands env lists over as one comma separated string
		for _, part := range strings.Split(t, ",") {
			if part = normalizeContentType(part); part != "" {
				allowed[part] = true
			}
		}
	}

	return &UploadPolicy{
		limits: map[string]int64{
			ClassImage:    cfg.ImageMaxBytes,
			ClassVideo:    cfg.VideoMaxBytes,
			ClassAudio:    cfg.AudioMaxBytes,
			ClassDocument: cfg.DocumentMaxBytes,
		},
		allowed: allowed,
	}
}

// Check validates a declared mimetype and size.
func (p *UploadPolicy) Check(contentType string, size int64) error {
	contentType = normalizeContentType(contentType)
	if contentType == "" {
		return domain.NewError(domain.KindBadRequest, "content type is required")
	}
	if !p.allowed[contentType] {
		return domain.NewError(domain.KindUnsupportedMediaType, "content type %s is not allowed", contentType)
	}
	if size <= 0 {
		return domain.NewError(domain.KindBadRequest, "file is empty")
	}

	limit := p.limits[MediaClass(contentType)]
	if limit > 0 && size > limit {
		return domain.NewError(domain.KindPayloadTooLarge,
			"file of %s exceeds the %s limit for %s uploads",
			humanize.Bytes(uint64(size)), humanize.Bytes(uint64(limit)), MediaClass(contentType))
	}
	return nil
}

// MaxBytes returns the largest configured class ceiling, or 0 when none is set.
func (p *UploadPolicy) MaxBytes() int64 {
	var largest int64
	for _, limit := range p.limits {
		largest = max(largest, limit)
	}
	return largest
}

// Allowed reports whether a mimetype is on the allow-list.
func (p *UploadPolicy) Allowed(contentType string) bool {
	return p.allowed[normalizeContentType(contentType)]
}

// MediaClass buckets a mimetype into the class its size ceiling is looked up by.
func MediaClass(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return ClassImage
	case strings.HasPrefix(contentType, "video/"):
		return ClassVideo
	case strings.HasPrefix(contentType, "audio/"):
		return ClassAudio
	default:
		return ClassDocument
	}
}

// DetectContentType trusts the declared type unless it is missing or
// generic, in which case the content is sniffed.
func DetectContentType(declared string, data []byte) string {
	declared = normalizeContentType(declared)
	if declared != "" && declared != domain.DefaultContentType {
		return declared
	}
	if len(data) == 0 {
		return declared
	}
	return normalizeContentType(mimetype.Detect(data).String())
}

func normalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	return ct
}
