package crop

import (
	"math"

	"github.com/fleveque/crop-uploader/internal/model"
)

// ClampZoom limits z to [MinZoom, MaxZoom]. NaN falls back to MinZoom.
func ClampZoom(z float64) float64 {
	if math.IsNaN(z) {
		return MinZoom
	}
	return math.Min(MaxZoom, math.Max(MinZoom, z))
}

// WrapRotation maps any angle in degrees into [0, 360).
func WrapRotation(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	// math.Mod(-1e-17, 360) + 360 rounds to exactly 360.
	if r >= 360 {
		r = 0
	}
	return r
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// RotatedSize returns the bounding box of a w×h rectangle rotated by deg.
func RotatedSize(s model.Size, deg float64) model.Size {
	rad := Radians(deg)
	c, sn := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	return model.Size{
		Width:  c*s.Width + sn*s.Height,
		Height: sn*s.Width + c*s.Height,
	}
}

// FrameSize returns the largest rectangle of the given aspect ratio that fits
// inside bbox. The crop frame never changes with zoom; zoom scales the media.
func FrameSize(bbox model.Size, aspect float64) model.Size {
	if bbox.Width > bbox.Height*aspect {
		return model.Size{Width: bbox.Height * aspect, Height: bbox.Height}
	}
	return model.Size{Width: bbox.Width, Height: bbox.Width / aspect}
}

// restrictPosition keeps the frame inside the zoomed media.
func restrictPosition(p model.Point, bbox, frame model.Size, zoom float64) model.Point {
	return model.Point{
		X: restrictCoord(p.X, bbox.Width, frame.Width, zoom),
		Y: restrictCoord(p.Y, bbox.Height, frame.Height, zoom),
	}
}

func restrictCoord(v, media, frame, zoom float64) float64 {
	maxOffset := math.Max(0, (media*zoom-frame)/2)
	return math.Min(maxOffset, math.Max(-maxOffset, v))
}

// ComputeArea converts the view state into a crop area in natural pixels of
// the rotated media. Pan is in frame pixels; the media is shown at its
// natural size before zoom.
func ComputeArea(pos model.Point, bbox, frame model.Size, aspect, zoom float64) model.CropArea {
	xFrac := limit(1, ((bbox.Width-frame.Width/zoom)/2-pos.X/zoom)/bbox.Width)
	yFrac := limit(1, ((bbox.Height-frame.Height/zoom)/2-pos.Y/zoom)/bbox.Height)
	wFrac := limit(1, frame.Width/bbox.Width/zoom)
	hFrac := limit(1, frame.Height/bbox.Height/zoom)

	widthPx := math.Round(limit(bbox.Width, wFrac*bbox.Width))
	heightPx := math.Round(limit(bbox.Height, hFrac*bbox.Height))

	var size model.Size
	if bbox.Width >= bbox.Height*aspect {
		size = model.Size{Width: math.Round(heightPx * aspect), Height: heightPx}
	} else {
		size = model.Size{Width: widthPx, Height: math.Round(widthPx / aspect)}
	}

	return model.CropArea{
		X:      math.Round(limit(bbox.Width-size.Width, xFrac*bbox.Width)),
		Y:      math.Round(limit(bbox.Height-size.Height, yFrac*bbox.Height)),
		Width:  size.Width,
		Height: size.Height,
	}
}

// limit clamps v to [0, hi].
func limit(hi, v float64) float64 {
	return math.Min(hi, math.Max(0, v))
}
