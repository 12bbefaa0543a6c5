package raster

import (
	"testing"

	"github.com/gabriel-vasile/mimetype"
	"github.com/h2non/bimg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_PreservesMIMEType(t *testing.T) {
	r := newTestRasterizer()
	img := patternImage(16, 16)

	tests := []struct {
		in   string
		want string
	}{
		{"image/jpeg", "image/jpeg"},
		{"image/jpg", "image/jpeg"},
		{"image/png", "image/png"},
		{"image/gif", "image/gif"},
		{"image/bmp", "image/bmp"},
		{"image/tiff", "image/tiff"},
		{"IMAGE/PNG; charset=binary", "image/png"},
		{"image/svg+xml", "image/png"}, // no encoder: canvas falls back to PNG
		{"", "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			data, got, err := r.Encode(img, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, mimetype.Detect(data).Is(tt.want), "detected %s", mimetype.Detect(data))
		})
	}
}

func TestEncode_WebP(t *testing.T) {
	r := newTestRasterizer()

	data, got, err := r.Encode(patternImage(32, 24), "image/webp")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", got)

	size, err := bimg.NewImage(data).Size()
	require.NoError(t, err)
	assert.Equal(t, 32, size.Width)
	assert.Equal(t, 24, size.Height)
}
