// Package crop implements the interactive crop stage: pan, zoom and rotation
// of a source image under a fixed crop frame, and the pixel-space crop area
// derived from them.
package crop

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/fleveque/crop-uploader/internal/model"
)

const (
	MinZoom = 1.0
	MaxZoom = 3.0
)

// ErrCropNotReady is returned by Commit when no crop area has been computed
// yet. Callers treat it as "Save does nothing".
var ErrCropNotReady = errors.New("crop area not computed yet")

// Session holds the transient state of one crop dialog. It's owned by a
// single uploader and thrown away on close.
type Session struct {
	mu sync.Mutex

	img    *model.RawImage
	aspect float64 // 0 = follow the media's own aspect ratio

	natural  model.Size
	loaded   bool
	position model.Point
	zoom     float64
	rotation float64
	area     *model.CropArea

	onAreaChange func(model.CropArea)
}

// NewSession creates a session for img. aspect is width/height; pass 0 for
// an unconstrained crop.
func NewSession(img *model.RawImage, aspect float64) *Session {
	if aspect < 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		aspect = 0
	}
	return &Session{
		img:    img,
		aspect: aspect,
		zoom:   MinZoom,
	}
}

// Image returns the source image of the session.
func (s *Session) Image() *model.RawImage {
	return s.img
}

// OnAreaChange registers a callback fired with the latest crop area after
// every change. Only one callback is kept.
func (s *Session) OnAreaChange(fn func(model.CropArea)) {
	s.mu.Lock()
	s.onAreaChange = fn
	s.mu.Unlock()
}

// Load reads the natural dimensions of the image and computes the initial
// crop area: the largest frame of the target aspect, centred.
func (s *Session) Load() error {
	w, h, err := s.img.Dimensions()
	if err != nil {
		return fmt.Errorf("loading crop media: %w", err)
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("loading crop media: empty image %dx%d", w, h)
	}

	s.mu.Lock()
	s.natural = model.Size{Width: float64(w), Height: float64(h)}
	s.loaded = true
	area := s.recomputeLocked()
	s.mu.Unlock()

	s.emit(area)
	return nil
}

// SetCrop sets the pixel-space crop area directly. With an aspect ratio the
// rectangle is conformed to it by shrinking the longer side, origin kept.
func (s *Session) SetCrop(area model.CropArea) error {
	if err := area.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.aspect > 0 {
		area = conformAspect(area, s.aspect)
	}
	s.area = &area
	s.mu.Unlock()

	s.emit(&area)
	return nil
}

// Pan moves the media under the crop frame. The offset is relative to the
// centred position and is restricted so the frame never leaves the media.
func (s *Session) Pan(p model.Point) {
	s.mu.Lock()
	s.position = p
	area := s.recomputeLocked()
	s.mu.Unlock()

	s.emit(area)
}

// SetZoom sets the zoom factor, clamped to [MinZoom, MaxZoom].
func (s *Session) SetZoom(z float64) {
	s.mu.Lock()
	s.zoom = ClampZoom(z)
	area := s.recomputeLocked()
	s.mu.Unlock()

	s.emit(area)
}

// SetRotation sets the rotation in degrees, wrapped into [0, 360).
func (s *Session) SetRotation(deg float64) {
	s.mu.Lock()
	s.rotation = WrapRotation(deg)
	area := s.recomputeLocked()
	s.mu.Unlock()

	s.emit(area)
}

// Zoom returns the current zoom factor.
func (s *Session) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// Rotation returns the current rotation in degrees.
func (s *Session) Rotation() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotation
}

// Position returns the current (restricted) pan offset.
func (s *Session) Position() model.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Area returns the latest crop area, if one has been computed.
func (s *Session) Area() (model.CropArea, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.area == nil {
		return model.CropArea{}, false
	}
	return *s.area, true
}

// Commit snapshots the crop parameters at the moment Save is pressed.
func (s *Session) Commit() (model.CropResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.area == nil {
		return model.CropResult{}, ErrCropNotReady
	}
	return model.CropResult{
		Area:     *s.area,
		Zoom:     s.zoom,
		Rotation: s.rotation,
	}, nil
}

// recomputeLocked derives the crop area from pan/zoom/rotation. It returns
// nil before the media is loaded. s.mu must be held.
func (s *Session) recomputeLocked() *model.CropArea {
	if !s.loaded {
		return nil
	}

	aspect := s.aspect
	bbox := RotatedSize(s.natural, s.rotation)
	if aspect == 0 {
		aspect = bbox.Width / bbox.Height
	}
	frame := FrameSize(bbox, aspect)

	s.position = restrictPosition(s.position, bbox, frame, s.zoom)
	area := ComputeArea(s.position, bbox, frame, aspect, s.zoom)
	s.area = &area
	return s.area
}

func (s *Session) emit(area *model.CropArea) {
	if area == nil {
		return
	}
	s.mu.Lock()
	fn := s.onAreaChange
	a := *area
	s.mu.Unlock()

	if fn != nil {
		fn(a)
	}
}

func conformAspect(a model.CropArea, aspect float64) model.CropArea {
	if a.Width/a.Height > aspect {
		a.Width = math.Max(1, math.Round(a.Height*aspect))
	} else {
		a.Height = math.Max(1, math.Round(a.Width/aspect))
	}
	return a
}
