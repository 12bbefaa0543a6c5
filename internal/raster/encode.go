package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/h2non/bimg"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// DefaultJPEGQuality is the quality a canvas uses when none is given (0.92).
const DefaultJPEGQuality = 92

// Encode serializes img in the given MIME type. Types with no encoder fall
// back to PNG, like canvas.toBlob does; the returned MIME type says which
// one was used.
func (r *Rasterizer) Encode(img image.Image, mimeType string) ([]byte, string, error) {
	var buf bytes.Buffer

	switch normalizeMIME(mimeType) {
	case "image/jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.opts.JPEGQuality}); err != nil {
			return nil, "", fmt.Errorf("jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil

	case "image/gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, "", fmt.Errorf("gif: %w", err)
		}
		return buf.Bytes(), "image/gif", nil

	case "image/bmp":
		if err := bmp.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("bmp: %w", err)
		}
		return buf.Bytes(), "image/bmp", nil

	case "image/tiff":
		if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
			return nil, "", fmt.Errorf("tiff: %w", err)
		}
		return buf.Bytes(), "image/tiff", nil

	case "image/webp":
		data, err := encodeWebP(img)
		if err != nil {
			return nil, "", err
		}
		return data, "image/webp", nil

	default:
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	}
}

// encodeWebP goes through PNG because the standard library and x/image can
// only decode WebP. bimg (libvips) does the conversion.
func encodeWebP(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("webp: intermediate png: %w", err)
	}

	data, err := bimg.NewImage(buf.Bytes()).Convert(bimg.WEBP)
	if err != nil {
		return nil, fmt.Errorf("webp: %w", err)
	}
	return data, nil
}

func normalizeMIME(mimeType string) string {
	// mimetype.Detect may return parameters, e.g. "image/png; charset=binary".
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))

	switch mimeType {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/x-ms-bmp", "image/x-bmp":
		return "image/bmp"
	default:
		return mimeType
	}
}
