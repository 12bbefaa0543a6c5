// Package model defines the core data types for the crop-and-upload pipeline.
// In Go, we use structs instead of classes. Struct tags (the `json:"..."` and
// `db:"..."` annotations) tell serialization libraries how to map fields.
package model

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // Blank imports register decoders with image.DecodeConfig.
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrInvalidArea is returned when a crop rectangle has a non-positive side.
var ErrInvalidArea = errors.New("crop area must be finite and at least 1x1 pixel")

// RawImage is an in-memory handle to user-selected image bytes.
// It is created on selection and dropped once rasterized or cancelled.
type RawImage struct {
	Name     string
	MIMEType string
	Size     int64
	Data     []byte

	// Natural dimensions are read lazily: decoding the header is cheap,
	// but there's no reason to do it until a crop session actually loads.
	dimsOnce sync.Once
	width    int
	height   int
	dimsErr  error
}

// NewRawImage wraps image bytes. When mimeType is empty it is sniffed from
// the content, the same way a browser fills File.type from the extension.
func NewRawImage(name, mimeType string, data []byte) *RawImage {
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}
	return &RawImage{
		Name:     name,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		Data:     data,
	}
}

// Dimensions returns the natural pixel size of the image.
func (r *RawImage) Dimensions() (int, int, error) {
	r.dimsOnce.Do(func() {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(r.Data))
		if err != nil {
			r.dimsErr = fmt.Errorf("reading image header of %q: %w", r.Name, err)
			return
		}
		r.width, r.height = cfg.Width, cfg.Height
	})
	return r.width, r.height, r.dimsErr
}

// Point is a 2D offset in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CropArea is the selected region in output pixels, measured in the
// rotated frame of the source image.
type CropArea struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate checks that every coordinate is finite and both sides cover at
// least one whole pixel, so the rounded output is never empty.
func (a CropArea) Validate() error {
	for _, v := range []float64{a.X, a.Y, a.Width, a.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: got %g,%g %gx%g", ErrInvalidArea, a.X, a.Y, a.Width, a.Height)
		}
	}
	if !(a.Width >= 1) || !(a.Height >= 1) {
		return fmt.Errorf("%w: got %gx%g", ErrInvalidArea, a.Width, a.Height)
	}
	return nil
}

// Rect rounds the area to integer pixel bounds.
func (a CropArea) Rect() image.Rectangle {
	x := int(math.Round(a.X))
	y := int(math.Round(a.Y))
	return image.Rect(x, y, x+int(math.Round(a.Width)), y+int(math.Round(a.Height)))
}

// CropResult is the snapshot taken when the user presses Save.
// Changes made to the session afterwards never touch it.
type CropResult struct {
	Area     CropArea `json:"area"`
	Zoom     float64  `json:"zoom"`
	Rotation float64  `json:"rotation"`
}
