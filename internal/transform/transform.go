// Package transform recompresses uploaded images before they are stored.
package transform

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"mime"
	"strings"

	"github.com/rs/zerolog/log"
)

// Result is the output of a transform. When UsedOriginal is set, Data and
// ContentType are the caller's input unchanged.
type Result struct {
	Data         []byte
	ContentType  string
	Ext          string
	UsedOriginal bool
}

// Transformer turns uploaded bytes into the bytes that get stored.
type Transformer interface {
	Transform(ctx context.Context, data []byte, contentType string) (Result, error)
}

// Recompressor re-encodes JPEG and PNG images and keeps whichever of the
// original and the re-encoded output is smaller.
type Recompressor struct {
	JPEGQuality int
	Enabled     bool
}

func NewRecompressor(enabled bool, jpegQuality int) *Recompressor {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 80
	}
	return &Recompressor{JPEGQuality: jpegQuality, Enabled: enabled}
}

func (r *Recompressor) Transform(ctx context.Context, data []byte, contentType string) (Result, error) {
	original := Result{
		Data:         data,
		ContentType:  contentType,
		Ext:          ExtensionFor(contentType),
		UsedOriginal: true,
	}
	if !r.Enabled {
		return original, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var encoded []byte
	switch contentType {
	case "image/jpeg":
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			log.Debug().Err(err).Msg("transform: jpeg decode failed, keeping original")
			return original, nil
		}
		encoded, err = encodeJPEG(img, r.JPEGQuality)
		if err != nil {
			return original, nil
		}
	case "image/png":
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			log.Debug().Err(err).Msg("transform: png decode failed, keeping original")
			return original, nil
		}
		encoded, err = encodePNG(img)
		if err != nil {
			return original, nil
		}
	default:
		return original, nil
	}

	if len(encoded) >= len(data) {
		return original, nil
	}
	return Result{
		Data:        encoded,
		ContentType: contentType,
		Ext:         original.Ext,
	}, nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
	"audio/mpeg":      ".mp3",
	"audio/wav":       ".wav",
	"audio/ogg":       ".ogg",
	"audio/mp4":       ".m4a",
	"application/pdf": ".pdf",
}

// ExtensionFor returns the file extension (with dot) for a mimetype.
func ExtensionFor(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if ext, ok := extensions[contentType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
