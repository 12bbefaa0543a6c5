package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/crop-uploader/internal/crop"
	"github.com/fleveque/crop-uploader/internal/model"
)

// cropFlags are shared by crop and upload.
type cropFlags struct {
	in       string
	rect     string
	pan      string
	zoom     float64
	rotation float64
	aspect   float64
}

func (f *cropFlags) register(cmd *cobra.Command, defaultAspect float64) {
	cmd.Flags().StringVar(&f.in, "in", "", "input image (required)")
	cmd.Flags().StringVar(&f.rect, "rect", "", "explicit crop area x,y,w,h (overrides zoom/pan)")
	cmd.Flags().StringVar(&f.pan, "pan", "", "pan offset x,y from the centred position")
	cmd.Flags().Float64Var(&f.zoom, "zoom", crop.MinZoom, "zoom factor (1-3)")
	cmd.Flags().Float64Var(&f.rotation, "rotation", 0, "rotation in degrees")
	cmd.Flags().Float64Var(&f.aspect, "aspect", defaultAspect, "crop aspect ratio width/height, 0 for free-form")
	_ = cmd.MarkFlagRequired("in")
}

func (f *cropFlags) params() (crop.Params, error) {
	p := crop.Params{Zoom: f.zoom, Rotation: f.rotation}
	if f.pan != "" {
		pan, err := crop.ParsePoint(f.pan)
		if err != nil {
			return p, err
		}
		p.Pan = pan
	}
	if f.rect != "" {
		rect, err := crop.ParseRect(f.rect)
		if err != nil {
			return p, err
		}
		p.Rect = &rect
	}
	return p, nil
}

func (f *cropFlags) readInput() (*model.RawImage, error) {
	data, err := os.ReadFile(f.in)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return model.NewRawImage(filepath.Base(f.in), "", data), nil
}

func cropCmd() *cobra.Command {
	var flags cropFlags
	var out string

	cmd := &cobra.Command{
		Use:   "crop",
		Short: "Crop, zoom and rotate an image into a new file",
		// RunE returns an error (vs Run which doesn't). Cobra prints the error automatically.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrop(&flags, out)
		},
	}

	flags.register(cmd, 0)
	cmd.Flags().StringVar(&out, "out", "", "output file (required); written in the input's format")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runCrop(flags *cropFlags, out string) error {
	e, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	img, err := flags.readInput()
	if err != nil {
		return err
	}
	params, err := flags.params()
	if err != nil {
		return err
	}

	session := crop.NewSession(img, flags.aspect)
	if err := params.Apply(session); err != nil {
		return err
	}
	res, err := session.Commit()
	if err != nil {
		return err
	}

	result, err := e.rasterizer().Rasterize(e.ctx, img, res)
	if err != nil {
		return fmt.Errorf("rasterizing: %w", err)
	}
	if err := os.WriteFile(out, result.Data, 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	e.logger.Info("crop written",
		zap.String("out", out),
		zap.String("mime_type", result.MIMEType),
		zap.Any("area", res.Area),
		zap.Float64("zoom", res.Zoom),
		zap.Float64("rotation", res.Rotation),
	)
	return nil
}
