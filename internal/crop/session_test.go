package crop

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleveque/crop-uploader/internal/model"
)

func testImage(t *testing.T, w, h int) *model.RawImage {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return model.NewRawImage("banner.png", "", buf.Bytes())
}

func loadedSession(t *testing.T, w, h int, aspect float64) *Session {
	t.Helper()
	s := NewSession(testImage(t, w, h), aspect)
	require.NoError(t, s.Load())
	return s
}

func TestCommit_BeforeLoadIsNotReady(t *testing.T) {
	s := NewSession(testImage(t, 10, 10), 1)
	_, err := s.Commit()
	assert.ErrorIs(t, err, ErrCropNotReady)

	// Pan/zoom before the media loads can't produce an area either.
	s.SetZoom(2)
	s.Pan(model.Point{X: 3})
	_, ok := s.Area()
	assert.False(t, ok)
}

func TestLoad_InitialAreaIsCentredFrame(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		aspect float64
		want   model.CropArea
	}{
		{"square on landscape", 1920, 1080, 1, model.CropArea{X: 420, Y: 0, Width: 1080, Height: 1080}},
		{"square on portrait", 600, 900, 1, model.CropArea{X: 0, Y: 150, Width: 600, Height: 600}},
		{"banner on square", 800, 800, 4, model.CropArea{X: 0, Y: 300, Width: 800, Height: 200}},
		{"free-form keeps everything", 640, 480, 0, model.CropArea{X: 0, Y: 0, Width: 640, Height: 480}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := loadedSession(t, tt.w, tt.h, tt.aspect)
			got, ok := s.Area()
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_UndecodableImage(t *testing.T) {
	s := NewSession(model.NewRawImage("x.png", "image/png", []byte("garbage")), 1)
	assert.Error(t, s.Load())
	_, err := s.Commit()
	assert.ErrorIs(t, err, ErrCropNotReady)
}

func TestSetZoom_ClampsAndShrinksArea(t *testing.T) {
	s := loadedSession(t, 1920, 1080, 1)

	s.SetZoom(2)
	got, _ := s.Area()
	assert.Equal(t, model.CropArea{X: 690, Y: 270, Width: 540, Height: 540}, got)

	s.SetZoom(10)
	assert.Equal(t, MaxZoom, s.Zoom())

	s.SetZoom(0.2)
	assert.Equal(t, MinZoom, s.Zoom())
	got, _ = s.Area()
	assert.Equal(t, 1080.0, got.Width)
}

func TestSetRotation_Wraps(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0}, {90, 90}, {360, 0}, {450, 90}, {-90, 270}, {-360, 0}, {359.5, 359.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WrapRotation(tt.in), "WrapRotation(%v)", tt.in)
	}
}

func TestSetRotation_UsesRotatedBoundingBox(t *testing.T) {
	s := loadedSession(t, 400, 200, 0)

	s.SetRotation(90)
	got, _ := s.Area()
	assert.Equal(t, model.CropArea{X: 0, Y: 0, Width: 200, Height: 400}, got)
	assert.Equal(t, 90.0, s.Rotation())
}

func TestPan_IsRestrictedToMedia(t *testing.T) {
	s := loadedSession(t, 1920, 1080, 1)

	// At zoom 1 the frame spans the full height: it may slide 420px sideways
	// and not at all vertically.
	s.Pan(model.Point{X: 10000, Y: 50})
	assert.Equal(t, model.Point{X: 420, Y: 0}, s.Position())
	got, _ := s.Area()
	assert.Equal(t, 0.0, got.X, "panning the media right reveals its left edge")

	s.Pan(model.Point{X: -10000})
	got, _ = s.Area()
	assert.Equal(t, 840.0, got.X)
	assert.Equal(t, 1080.0, got.Width, "panning never resizes the area")
}

func TestSetCrop_ConformsToAspect(t *testing.T) {
	s := loadedSession(t, 1920, 1080, 1)

	require.NoError(t, s.SetCrop(model.CropArea{X: 560, Y: 140, Width: 900, Height: 800}))
	got, _ := s.Area()
	assert.Equal(t, model.CropArea{X: 560, Y: 140, Width: 800, Height: 800}, got)

	require.NoError(t, s.SetCrop(model.CropArea{X: 0, Y: 0, Width: 300, Height: 500}))
	got, _ = s.Area()
	assert.Equal(t, model.CropArea{X: 0, Y: 0, Width: 300, Height: 300}, got)
}

func TestSetCrop_FreeForm(t *testing.T) {
	s := loadedSession(t, 100, 100, 0)
	area := model.CropArea{X: 1, Y: 2, Width: 30, Height: 70}
	require.NoError(t, s.SetCrop(area))
	got, _ := s.Area()
	assert.Equal(t, area, got)
}

func TestSetCrop_RejectsEmptyArea(t *testing.T) {
	s := loadedSession(t, 100, 100, 1)
	before, _ := s.Area()

	err := s.SetCrop(model.CropArea{Width: 0, Height: 10})
	assert.ErrorIs(t, err, model.ErrInvalidArea)

	after, _ := s.Area()
	assert.Equal(t, before, after)
}

func TestSetCrop_RejectsUnusableAreas(t *testing.T) {
	s := loadedSession(t, 100, 100, 0)
	before, _ := s.Area()

	for _, area := range []model.CropArea{
		{Width: math.Inf(1), Height: 10},
		{X: math.NaN(), Width: 10, Height: 10},
		{Width: 0.4, Height: 0.4},
		{Width: 10, Height: -3},
	} {
		assert.ErrorIs(t, s.SetCrop(area), model.ErrInvalidArea, "area %+v", area)
	}

	after, _ := s.Area()
	assert.Equal(t, before, after)
}

func TestOnAreaChange_FiresOnEveryChange(t *testing.T) {
	s := NewSession(testImage(t, 300, 200), 1)

	var seen []model.CropArea
	s.OnAreaChange(func(a model.CropArea) { seen = append(seen, a) })

	require.NoError(t, s.Load())
	s.SetZoom(1.5)
	s.Pan(model.Point{X: 5})
	s.SetRotation(90)
	require.NoError(t, s.SetCrop(model.CropArea{Width: 10, Height: 10}))

	require.Len(t, seen, 5)
	last, _ := s.Area()
	assert.Equal(t, last, seen[len(seen)-1])
}

func TestCommit_SnapshotIsIsolated(t *testing.T) {
	s := loadedSession(t, 1920, 1080, 1)
	s.SetRotation(180)

	res, err := s.Commit()
	require.NoError(t, err)

	s.SetZoom(3)
	s.SetRotation(10)

	assert.Equal(t, 1.0, res.Zoom)
	assert.Equal(t, 180.0, res.Rotation)
	assert.Equal(t, 1080.0, res.Area.Width)
}

func TestRotatedSize(t *testing.T) {
	got := RotatedSize(model.Size{Width: 100, Height: 100}, 45)
	assert.InDelta(t, 100*math.Sqrt2, got.Width, 1e-9)
	assert.InDelta(t, 100*math.Sqrt2, got.Height, 1e-9)

	got = RotatedSize(model.Size{Width: 4, Height: 2}, 90)
	assert.InDelta(t, 2, got.Width, 1e-9)
	assert.InDelta(t, 4, got.Height, 1e-9)
}
