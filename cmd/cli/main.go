// Package main provides crop-cli: crop images, upload them through an
// uploader instance, and manage the local file catalog.
// Uses Cobra for command parsing.
//
// Run with: go run ./cmd/cli upload --in logo.jpg --purpose profile_logo
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/crop-uploader/internal/config"
	"github.com/fleveque/crop-uploader/internal/raster"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootCmd creates the root command. Cobra builds a tree of commands:
//
//	crop-cli crop --in a.jpg --out b.jpg --zoom 2
//	crop-cli upload --in a.jpg --purpose review_image
//	crop-cli files list --parent-id seller-42
//	crop-cli batch --manifest jobs.yaml
func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "crop-cli",
		Short:        "Crop and upload images",
		SilenceUsage: true,
	}

	root.AddCommand(cropCmd())
	root.AddCommand(uploadCmd())
	root.AddCommand(filesCmd())
	root.AddCommand(batchCmd())
	return root
}

// env is what every command needs: configuration, a logger and a context
// that Ctrl+C cancels.
type env struct {
	ctx    context.Context
	cfg    *config.Config
	logger *zap.Logger
}

func setup() (*env, func(), error) {
	cfg, err := config.Load(os.Getenv("CROP_CONFIG_PATH"))
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	// Always use development mode for the CLI
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	cleanup := func() {
		stop()
		_ = logger.Sync()
	}
	return &env{ctx: ctx, cfg: cfg, logger: logger}, cleanup, nil
}

func (e *env) rasterizer() *raster.Rasterizer {
	return raster.New(raster.Options{
		JPEGQuality:         e.cfg.Raster.JPEGQuality,
		MaxSurfaceDimension: e.cfg.Raster.MaxSurfaceDimension,
	}, e.logger.Named("raster"))
}
