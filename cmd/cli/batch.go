package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/crop-uploader/internal/batch"
	"github.com/fleveque/crop-uploader/internal/model"
	"github.com/fleveque/crop-uploader/internal/storage"
	"github.com/fleveque/crop-uploader/internal/upload"
	"github.com/fleveque/crop-uploader/internal/uploader"
)

func batchCmd() *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Crop and upload every job in a YAML manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(manifestPath)
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "path to the jobs manifest (required)")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func runBatch(manifestPath string) error {
	e, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	manifest, err := batch.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	service, closeService, err := upload.New(e.cfg, e.logger.Named("upload"))
	if err != nil {
		return err
	}
	defer closeService()

	runner := &batch.Runner{
		Raster:   e.rasterizer(),
		Service:  service,
		Notifier: uploader.NewZapNotifier(e.logger),
		Logger:   e.logger.Named("batch"),
	}
	if local, ok := service.(*upload.LocalService); ok {
		runner.Existing = func(ctx context.Context, meta model.FileMetadata) ([]model.UploadedFile, error) {
			return local.List(ctx, storage.FileFilter{ParentID: meta.ParentID, Purpose: meta.Purpose})
		}
	}

	// The callback reports each job as it finishes.
	stats, err := runner.Run(e.ctx, manifest, func(r batch.Result) {
		if r.Err != nil {
			e.logger.Warn("job failed", zap.String("job", r.Job.Label()), zap.Error(r.Err))
			return
		}
		for _, f := range r.Files {
			e.logger.Info("job uploaded", zap.String("job", r.Job.Label()), zap.String("id", f.ID), zap.String("src", f.Src))
		}
	})
	if err != nil {
		return fmt.Errorf("batch interrupted: %w", err)
	}

	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d job(s) failed", stats.Failed, stats.Total)
	}
	return nil
}
