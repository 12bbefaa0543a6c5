package crop

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fleveque/crop-uploader/internal/model"
)

// Params are scripted crop adjustments, the non-interactive stand-in for
// dragging and scrolling in the crop dialog.
//
// Rotation and zoom are applied first, then the pan. Rect, when set,
// replaces the derived area outright.
type Params struct {
	Rect     *model.CropArea `yaml:"rect,omitempty"`
	Zoom     float64         `yaml:"zoom,omitempty"`
	Rotation float64         `yaml:"rotation,omitempty"`
	Pan      model.Point     `yaml:"pan,omitempty"`
}

// Apply loads the session's media if needed and applies p to it.
func (p Params) Apply(s *Session) error {
	if _, ok := s.Area(); !ok {
		if err := s.Load(); err != nil {
			return err
		}
	}

	if p.Rotation != 0 {
		s.SetRotation(p.Rotation)
	}
	if p.Zoom != 0 {
		s.SetZoom(p.Zoom)
	}
	if p.Pan != (model.Point{}) {
		s.Pan(p.Pan)
	}
	if p.Rect != nil {
		if err := s.SetCrop(*p.Rect); err != nil {
			return fmt.Errorf("applying crop rect: %w", err)
		}
	}
	return nil
}

// ParseRect parses "x,y,w,h".
func ParseRect(s string) (model.CropArea, error) {
	v, err := parseFloats(s, 4)
	if err != nil {
		return model.CropArea{}, fmt.Errorf("parsing rect %q: %w", s, err)
	}
	area := model.CropArea{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if err := area.Validate(); err != nil {
		return model.CropArea{}, fmt.Errorf("parsing rect %q: %w", s, err)
	}
	return area, nil
}

// ParsePoint parses "x,y".
func ParsePoint(s string) (model.Point, error) {
	v, err := parseFloats(s, 2)
	if err != nil {
		return model.Point{}, fmt.Errorf("parsing point %q: %w", s, err)
	}
	return model.Point{X: v[0], Y: v[1]}, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated numbers, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
