package transform

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	return img
}

func TestRecompressor_ShrinksJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, flatImage(256, 256), &jpeg.Options{Quality: 100}))

	r := NewRecompressor(true, 50)
	res, err := r.Transform(context.Background(), buf.Bytes(), "image/jpeg")
	require.NoError(t, err)

	assert.False(t, res.UsedOriginal)
	assert.Less(t, len(res.Data), buf.Len())
	assert.Equal(t, "image/jpeg", res.ContentType)
	assert.Equal(t, ".jpg", res.Ext)
}

func TestRecompressor_KeepsOriginalWhenNotSmaller(t *testing.T) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	require.NoError(t, enc.Encode(&buf, flatImage(8, 8)))

	r := NewRecompressor(true, 80)
	res, err := r.Transform(context.Background(), buf.Bytes(), "image/png")
	require.NoError(t, err)

	assert.True(t, res.UsedOriginal)
	assert.Equal(t, buf.Bytes(), res.Data)
	assert.Equal(t, "image/png", res.ContentType)
}

func TestRecompressor_UndecodableInputPassesThrough(t *testing.T) {
	r := NewRecompressor(true, 80)
	data := []byte("definitely not a png")

	res, err := r.Transform(context.Background(), data, "image/png")
	require.NoError(t, err)
	assert.True(t, res.UsedOriginal)
	assert.Equal(t, data, res.Data)
	assert.Equal(t, ".png", res.Ext)
}

func TestRecompressor_Disabled(t *testing.T) {
	r := NewRecompressor(false, 80)
	res, err := r.Transform(context.Background(), []byte("x"), "video/mp4")
	require.NoError(t, err)
	assert.True(t, res.UsedOriginal)
	assert.Equal(t, ".mp4", res.Ext)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".png", ExtensionFor("IMAGE/PNG"))
	assert.Equal(t, ".pdf", ExtensionFor("application/pdf"))
	assert.Equal(t, ".bin", ExtensionFor("application/x-unknown-thing"))
}
