package service

import (
	"testing"

	"github.com/andresuchdata/mediastore/internal/config"
	"github.com/andresuchdata/mediastore/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestUploadPolicy_Check(t *testing.T) {
	policy := NewUploadPolicy(testUploadConfig())

	tests := []struct {
		name        string
		contentType string
		size        int64
		want        domain.ErrorKind
	}{
		{"image within limit", "image/png", 2_000_000, ""},
		{"parameters ignored", "image/JPEG; charset=binary", 10, ""},
		{"image too large", "image/png", 200_000_000, domain.KindPayloadTooLarge},
		{"audio ceiling is lower", "audio/mpeg", 60_000_000, domain.KindPayloadTooLarge},
		{"document ceiling", "application/pdf", 26_000_000, domain.KindPayloadTooLarge},
		{"not allowed", "text/html", 10, domain.KindUnsupportedMediaType},
		{"missing type", "", 10, domain.KindBadRequest},
		{"empty file", "image/png", 0, domain.KindBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Check(tt.contentType, tt.size)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, domain.KindOf(err))
		})
	}
}

func TestUploadPolicy_CommaSeparatedAllowList(t *testing.T) {
	cfg := testUploadConfig()
	cfg.AllowedTypes = []string{"image/png, text/plain"}
	policy := NewUploadPolicy(cfg)

	assert.True(t, policy.Allowed("text/plain"))
	assert.True(t, policy.Allowed("image/png"))
	assert.False(t, policy.Allowed("image/jpeg"))
}

func TestUploadPolicy_DefaultsWhenEmpty(t *testing.T) {
	policy := NewUploadPolicy(config.UploadConfig{})
	assert.True(t, policy.Allowed("video/mp4"))
}

func TestMediaClass(t *testing.T) {
	assert.Equal(t, ClassImage, MediaClass("image/webp"))
	assert.Equal(t, ClassVideo, MediaClass("video/quicktime"))
	assert.Equal(t, ClassAudio, MediaClass("audio/ogg"))
	assert.Equal(t, ClassDocument, MediaClass("application/pdf"))
}

func TestDetectContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	assert.Equal(t, "image/jpeg", DetectContentType("image/jpeg", png), "declared type wins")
	assert.Equal(t, "image/png", DetectContentType("", png))
	assert.Equal(t, "image/png", DetectContentType("application/octet-stream", png))
	assert.Equal(t, "", DetectContentType("", nil))
}
