package raster

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/crop-uploader/internal/model"
)

// patternImage fills every pixel with a colour derived from its coordinates,
// so a misplaced pixel shows up as a wrong value.
func patternImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestRasterizer() *Rasterizer {
	return New(Options{}, zap.NewNop())
}

// directCrop is the reference: a plain sub-image copy with no rotation.
func directCrop(src image.Image, r image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), src, r.Min, draw.Src)
	return out
}

func TestSafeArea_CoversDiagonal(t *testing.T) {
	sizes := [][2]int{
		{1, 1}, {1, 1000}, {1000, 1}, {3, 2}, {640, 480},
		{1920, 1080}, {1080, 1920}, {4000, 3000}, {7, 9999},
	}
	for _, s := range sizes {
		safe := SafeArea(s[0], s[1])
		diag := math.Sqrt(float64(s[0]*s[0] + s[1]*s[1]))
		assert.GreaterOrEqualf(t, float64(safe), diag, "SafeArea(%d, %d)", s[0], s[1])
	}

	// Exhaustive over small sizes, every aspect ratio.
	for w := 1; w <= 64; w++ {
		for h := 1; h <= 64; h++ {
			diag := math.Sqrt(float64(w*w + h*h))
			if float64(SafeArea(w, h)) < diag {
				t.Fatalf("SafeArea(%d, %d) = %d < diagonal %.3f", w, h, SafeArea(w, h), diag)
			}
		}
	}
}

func TestRender_OutputMatchesCropSize(t *testing.T) {
	r := newTestRasterizer()
	src := patternImage(120, 80)

	tests := []struct {
		name     string
		area     model.CropArea
		rotation float64
	}{
		{"full", model.CropArea{X: 0, Y: 0, Width: 120, Height: 80}, 0},
		{"inner", model.CropArea{X: 10, Y: 5, Width: 33, Height: 47}, 0},
		{"single pixel", model.CropArea{X: 119, Y: 79, Width: 1, Height: 1}, 0},
		{"quarter turn", model.CropArea{X: 0, Y: 0, Width: 80, Height: 120}, 90},
		{"arbitrary angle", model.CropArea{X: 12, Y: 9, Width: 50, Height: 40}, 33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render(src, model.CropResult{Area: tt.area, Zoom: 1, Rotation: tt.rotation})
			require.NoError(t, err)
			assert.Equal(t, int(tt.area.Width), out.Bounds().Dx())
			assert.Equal(t, int(tt.area.Height), out.Bounds().Dy())
		})
	}
}

func TestRender_ZeroRotationIsDirectCrop(t *testing.T) {
	r := newTestRasterizer()

	// Odd and even sizes: the centring must stay integral either way.
	for _, size := range [][2]int{{64, 48}, {63, 47}, {17, 90}} {
		src := patternImage(size[0], size[1])
		area := model.CropArea{X: 3, Y: 4, Width: float64(size[0] - 10), Height: float64(size[1] - 9)}

		out, err := r.Render(src, model.CropResult{Area: area, Zoom: 1})
		require.NoError(t, err)

		want := directCrop(src, area.Rect())
		assert.Equal(t, want.Pix, out.Pix, "size %v", size)
	}
}

func TestRender_QuarterTurnIsExact(t *testing.T) {
	r := newTestRasterizer()
	src := patternImage(5, 3)
	w, h := 5, 3

	out, err := r.Render(src, model.CropResult{
		Area:     model.CropArea{Width: float64(h), Height: float64(w)},
		Rotation: 90,
	})
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, h, w), out.Bounds())

	// Clockwise: source (x, y) lands at (h-1-y, x).
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			assert.Equal(t, src.RGBAAt(x, y), out.RGBAAt(h-1-y, x), "source pixel (%d,%d)", x, y)
		}
	}
}

func TestRender_HalfTurnIsExact(t *testing.T) {
	r := newTestRasterizer()
	src := patternImage(6, 4)

	out, err := r.Render(src, model.CropResult{
		Area:     model.CropArea{Width: 6, Height: 4},
		Rotation: 180,
	})
	require.NoError(t, err)

	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			assert.Equal(t, src.RGBAAt(x, y), out.RGBAAt(5-x, 3-y))
		}
	}
}

func TestRender_NegativeRotationWraps(t *testing.T) {
	r := newTestRasterizer()
	src := patternImage(5, 3)
	area := model.CropArea{Width: 3, Height: 5}

	a, err := r.Render(src, model.CropResult{Area: area, Rotation: -90})
	require.NoError(t, err)
	b, err := r.Render(src, model.CropResult{Area: area, Rotation: 270})
	require.NoError(t, err)

	assert.Equal(t, b.Pix, a.Pix)
}

func TestRender_ArbitraryAngleKeepsCentre(t *testing.T) {
	r := newTestRasterizer()
	red := color.RGBA{R: 255, A: 255}
	src := image.NewRGBA(image.Rect(0, 0, 100, 100))
	draw.Draw(src, src.Bounds(), &image.Uniform{C: red}, image.Point{}, draw.Src)

	// The rotated bounding box of a 100px square at 45° is ~141.4px.
	side := math.Round(100 * math.Sqrt2)
	out, err := r.Render(src, model.CropResult{
		Area:     model.CropArea{Width: side, Height: side},
		Rotation: 45,
	})
	require.NoError(t, err)

	c := out.RGBAAt(out.Bounds().Dx()/2, out.Bounds().Dy()/2)
	assert.Equal(t, red, c, "centre pixel")
	assert.Equal(t, uint8(0), out.RGBAAt(0, 0).A, "corner outside the rotated square is transparent")
}

// The affine path must place an off-centre crop where the exact path does.
// A rotation a hair away from 90° takes the affine path; interior pixels
// agree within bilinear tolerance.
func TestRender_OffCentreAffineMatchesQuarterTurn(t *testing.T) {
	r := newTestRasterizer()
	area := model.CropArea{X: 20, Y: 30, Width: 30, Height: 25}

	for _, size := range [][2]int{{120, 80}, {121, 81}, {60, 60}} {
		src := smoothImage(size[0], size[1])

		exact, err := r.Render(src, model.CropResult{Area: area, Rotation: 90})
		require.NoError(t, err)
		affine, err := r.Render(src, model.CropResult{Area: area, Rotation: 90.0001})
		require.NoError(t, err)
		require.Equal(t, exact.Bounds(), affine.Bounds())

		// Skip a one-pixel border where bilinear edges blend with transparency.
		b := exact.Bounds().Inset(1)
		mismatched := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if !closeRGBA(exact.RGBAAt(x, y), affine.RGBAAt(x, y), 3) {
					mismatched++
				}
			}
		}
		assert.Zerof(t, mismatched, "size %v: %d of %d interior pixels differ", size, mismatched, b.Dx()*b.Dy())
	}
}

// smoothImage is a gradient with small steps between neighbours, so a
// sub-pixel sampling offset stays within tolerance while a whole-pixel
// misplacement does not.
func smoothImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(2 * x), G: uint8(2 * y), B: 128, A: 255})
		}
	}
	return img
}

func closeRGBA(a, b color.RGBA, tol int) bool {
	d := func(x, y uint8) bool {
		diff := int(x) - int(y)
		return diff <= tol && diff >= -tol
	}
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B) && d(a.A, b.A)
}

func TestRender_AreaOutsideImageIsTransparent(t *testing.T) {
	r := newTestRasterizer()
	src := patternImage(10, 10)

	out, err := r.Render(src, model.CropResult{Area: model.CropArea{X: 5, Y: 5, Width: 10, Height: 10}})
	require.NoError(t, err)

	assert.Equal(t, src.RGBAAt(5, 5), out.RGBAAt(0, 0))
	assert.Equal(t, uint8(0), out.RGBAAt(9, 9).A)
}

func TestRender_InvalidArea(t *testing.T) {
	r := newTestRasterizer()
	_, err := r.Render(patternImage(4, 4), model.CropResult{Area: model.CropArea{Width: 0, Height: 3}})
	assert.ErrorIs(t, err, model.ErrInvalidArea)
}

func TestRender_RejectsUnrenderableAreas(t *testing.T) {
	r := newTestRasterizer()
	src := patternImage(10, 10)

	tests := []struct {
		name string
		area model.CropArea
		want error
	}{
		{"huge sides", model.CropArea{Width: 1e10, Height: 1e10}, ErrSurfaceUnavailable},
		{"wider than any surface", model.CropArea{Width: DefaultMaxSurfaceDimension + 1, Height: 10}, ErrSurfaceUnavailable},
		{"origin far away", model.CropArea{X: 1e300, Y: 0, Width: 5, Height: 5}, ErrSurfaceUnavailable},
		{"infinite width", model.CropArea{Width: math.Inf(1), Height: 5}, model.ErrInvalidArea},
		{"NaN origin", model.CropArea{X: math.NaN(), Width: 5, Height: 5}, model.ErrInvalidArea},
		{"sub-pixel sides", model.CropArea{Width: 0.4, Height: 0.4}, model.ErrInvalidArea},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				out *image.RGBA
				err error
			)
			require.NotPanics(t, func() {
				out, err = r.Render(src, model.CropResult{Area: tt.area})
			})
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, out)
		})
	}
}

func TestRender_SurfaceUnavailable(t *testing.T) {
	r := New(Options{MaxSurfaceDimension: 16}, zap.NewNop())
	_, err := r.Render(patternImage(20, 20), model.CropResult{Area: model.CropArea{Width: 5, Height: 5}})
	assert.ErrorIs(t, err, ErrSurfaceUnavailable)
}

// A seller picks a 1920×1080 JPEG and crops the centred 800×800 square.
func TestRasterize_CentredSquareFromJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, patternImage(1920, 1080), &jpeg.Options{Quality: 90}))
	img := model.NewRawImage("storefront.jpg", "image/jpeg", buf.Bytes())

	res := model.CropResult{
		Area: model.CropArea{X: 560, Y: 140, Width: 800, Height: 800},
		Zoom: 1,
	}

	r := newTestRasterizer()

	// Pixel content: compare against the decoded source, before re-encoding.
	decoded, err := jpeg.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	rendered, err := r.Render(decoded, res)
	require.NoError(t, err)
	assert.Equal(t, directCrop(decoded, image.Rect(560, 140, 1360, 940)).Pix, rendered.Pix)

	out, err := r.Rasterize(context.Background(), img, res)
	require.NoError(t, err)
	assert.Equal(t, "storefront.jpg", out.Name)
	assert.Equal(t, "image/jpeg", out.MIMEType)
	assert.Equal(t, int64(len(out.Data)), out.Size)

	w, h, err := out.Dimensions()
	require.NoError(t, err)
	assert.Equal(t, 800, w)
	assert.Equal(t, 800, h)
}

func TestRasterize_PNGRoundTripIsLossless(t *testing.T) {
	src := patternImage(40, 30)
	img := model.NewRawImage("logo.png", "", encodePNG(t, src))

	area := model.CropArea{X: 7, Y: 2, Width: 20, Height: 20}
	out, err := newTestRasterizer().Rasterize(context.Background(), img, model.CropResult{Area: area, Zoom: 1})
	require.NoError(t, err)
	assert.Equal(t, "image/png", out.MIMEType)

	decoded, err := png.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, directCrop(src, area.Rect()).Pix, directCrop(decoded, decoded.Bounds()).Pix)
}

func TestRasterize_UndecodableSource(t *testing.T) {
	img := model.NewRawImage("notes.txt", "text/plain", []byte("not an image"))
	_, err := newTestRasterizer().Rasterize(context.Background(), img, model.CropResult{Area: model.CropArea{Width: 1, Height: 1}})
	assert.Error(t, err)
}

func TestRasterize_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	img := model.NewRawImage("logo.png", "image/png", encodePNG(t, patternImage(4, 4)))
	_, err := newTestRasterizer().Rasterize(ctx, img, model.CropResult{Area: model.CropArea{Width: 2, Height: 2}})
	assert.ErrorIs(t, err, context.Canceled)
}
