// Package raster flattens a crop session into a new image: the source is
// drawn rotated into an oversized square surface, and the crop window is
// copied out of it.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // Blank imports register decoders for image.Decode.
	_ "image/jpeg"
	_ "image/png"
	"math"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/fleveque/crop-uploader/internal/crop"
	"github.com/fleveque/crop-uploader/internal/model"
)

// DefaultMaxSurfaceDimension matches the largest canvas side most browsers
// allow. Above it there is no drawing surface to render into.
const DefaultMaxSurfaceDimension = 16384

// ErrSurfaceUnavailable means the safe-area surface could not be allocated.
var ErrSurfaceUnavailable = errors.New("drawing surface unavailable")

// Options tune the rasterizer. Zero values pick the defaults.
type Options struct {
	JPEGQuality         int
	MaxSurfaceDimension int
}

// Rasterizer turns a source image plus a committed crop into a new file.
type Rasterizer struct {
	opts   Options
	logger *zap.Logger
}

// New creates a Rasterizer.
func New(opts Options, logger *zap.Logger) *Rasterizer {
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	if opts.MaxSurfaceDimension <= 0 {
		opts.MaxSurfaceDimension = DefaultMaxSurfaceDimension
	}
	return &Rasterizer{opts: opts, logger: logger}
}

// SafeArea returns the side of a square that holds a w×h image at any
// rotation. It is rounded up, so it's never smaller than the diagonal.
func SafeArea(w, h int) int {
	maxSize := math.Max(float64(w), float64(h))
	return int(math.Ceil(2 * (maxSize / 2) * math.Sqrt2))
}

// Rasterize decodes img, renders the crop and encodes the result with the
// source's MIME type and file name.
func (r *Rasterizer) Rasterize(ctx context.Context, img *model.RawImage, res model.CropResult) (*model.RawImage, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("decoding %q: %w", img.Name, err)
	}

	out, err := r.Render(src, res)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, mimeType, err := r.Encode(out, img.MIMEType)
	if err != nil {
		return nil, fmt.Errorf("encoding %q: %w", img.Name, err)
	}

	r.logger.Debug("rasterized crop",
		zap.String("file", img.Name),
		zap.String("mime_type", mimeType),
		zap.Int("width", out.Bounds().Dx()),
		zap.Int("height", out.Bounds().Dy()),
		zap.Float64("rotation", res.Rotation),
		zap.Duration("took", time.Since(start)),
	)

	return model.NewRawImage(img.Name, mimeType, data), nil
}

// Render draws src rotated into a safe-area surface and copies the crop
// window out of it. The output is exactly Area.Width×Area.Height; anything
// outside the rotated image stays transparent.
func (r *Rasterizer) Render(src image.Image, res model.CropResult) (*image.RGBA, error) {
	if err := res.Area.Validate(); err != nil {
		return nil, err
	}

	// The output surface is bounded like the working one, and the origin
	// must stay within int range once rounded.
	limit := r.opts.MaxSurfaceDimension
	a := res.Area
	if math.Abs(a.X) > float64(limit) || math.Abs(a.Y) > float64(limit) ||
		a.Width > float64(limit) || a.Height > float64(limit) {
		return nil, fmt.Errorf("%w: crop %g,%g %gx%g exceeds %d", ErrSurfaceUnavailable, a.X, a.Y, a.Width, a.Height, limit)
	}
	window := a.Rect()
	if window.Dx() <= 0 || window.Dy() <= 0 {
		return nil, fmt.Errorf("%w: crop %gx%g rounds to an empty output", ErrSurfaceUnavailable, a.Width, a.Height)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	safe := SafeArea(w, h)
	if safe > r.opts.MaxSurfaceDimension {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d", ErrSurfaceUnavailable, safe, safe, r.opts.MaxSurfaceDimension)
	}

	surface := image.NewRGBA(image.Rect(0, 0, safe, safe))
	rotation := crop.WrapRotation(res.Rotation)

	// origin is where the top-left of the rotated bounding box lands on the
	// surface. Crop coordinates are measured from there.
	var origin image.Point
	if turns, ok := quarterTurns(rotation); ok {
		bw, bh := w, h
		if turns%2 == 1 {
			bw, bh = h, w
		}
		origin = image.Pt((safe-bw)/2, (safe-bh)/2)
		drawQuarterTurn(surface, src, turns, origin)
	} else {
		origin = drawRotated(surface, src, rotation)
	}

	out := image.NewRGBA(image.Rect(0, 0, window.Dx(), window.Dy()))
	draw.Draw(out, out.Bounds(), surface, origin.Add(window.Min), draw.Src)

	return out, nil
}

// quarterTurns reports whether deg is a whole number of 90° turns.
func quarterTurns(deg float64) (int, bool) {
	t := deg / 90
	rt := math.Round(t)
	if math.Abs(t-rt) > 1e-9 {
		return 0, false
	}
	return int(rt) % 4, true
}

// drawQuarterTurn rotates src clockwise by turns×90° with an exact pixel
// remap, placing the result's top-left at off.
func drawQuarterTurn(dst *image.RGBA, src image.Image, turns int, off image.Point) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	if turns == 0 {
		draw.Draw(dst, image.Rect(off.X, off.Y, off.X+w, off.Y+h), src, b.Min, draw.Src)
		return
	}

	flat := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(flat, flat.Bounds(), src, b.Min, draw.Src)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch turns {
			case 1:
				dx, dy = h-1-y, x
			case 2:
				dx, dy = w-1-x, h-1-y
			case 3:
				dx, dy = y, w-1-x
			}
			si := flat.PixOffset(x, y)
			di := dst.PixOffset(off.X+dx, off.Y+dy)
			copy(dst.Pix[di:di+4], flat.Pix[si:si+4])
		}
	}
}

// drawRotated draws src rotated clockwise by deg about the surface centre
// and returns the top-left of its rotated bounding box.
func drawRotated(dst *image.RGBA, src image.Image, deg float64) image.Point {
	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	cx := float64(dst.Bounds().Dx()) / 2
	cy := float64(dst.Bounds().Dy()) / 2

	// Source centre in source coordinates.
	sx := float64(b.Min.X) + w/2
	sy := float64(b.Min.Y) + h/2

	rad := crop.Radians(deg)
	c, s := math.Cos(rad), math.Sin(rad)

	// src→dst: translate to origin, rotate, translate to surface centre.
	m := f64.Aff3{
		c, -s, cx - c*sx + s*sy,
		s, c, cy - s*sx - c*sy,
	}
	xdraw.BiLinear.Transform(dst, m, src, b, xdraw.Over, nil)

	bbox := crop.RotatedSize(model.Size{Width: w, Height: h}, deg)
	return image.Pt(int(math.Round(cx-bbox.Width/2)), int(math.Round(cy-bbox.Height/2)))
}
