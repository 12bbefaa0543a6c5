package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fleveque/crop-uploader/internal/model"
	"github.com/fleveque/crop-uploader/internal/uploader"
)

// Stats tracks the results of a batch run.
type Stats struct {
	Total    int
	Uploaded int
	Skipped  int // gallery already full
	Failed   int
	Errors   []string
}

// Result is reported for every finished job.
type Result struct {
	Job   Job
	Files []model.UploadedFile
	Err   error
}

// ExistingFunc returns the files already stored for a job's metadata, so
// max_files counts them. It may be nil.
type ExistingFunc func(ctx context.Context, meta model.FileMetadata) ([]model.UploadedFile, error)

// Runner executes manifests. Jobs run one after another; each gets a fresh
// uploader and gallery.
type Runner struct {
	Raster   uploader.Rasterizer
	Service  uploader.UploadService
	Notifier uploader.Notifier
	Existing ExistingFunc
	Logger   *zap.Logger
}

// Run processes every job in m and calls callback (if non-nil) after each
// one. Job failures are recorded in Stats, not returned; the error is only
// non-nil when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, m *Manifest, callback func(Result)) (*Stats, error) {
	stats := &Stats{}

	for _, job := range m.Jobs {
		// Check for cancellation between jobs (Ctrl+C stops after the current one)
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		stats.Total++
		files, err := r.runJob(ctx, m.Defaults, job)
		switch {
		case errors.Is(err, uploader.ErrMaxFilesReached):
			stats.Skipped++
		case err != nil:
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", job.Label(), err))
		default:
			stats.Uploaded++
		}

		if callback != nil {
			callback(Result{Job: job, Files: files, Err: err})
		}
	}

	r.Logger.Info("batch complete",
		zap.Int("total", stats.Total),
		zap.Int("uploaded", stats.Uploaded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (r *Runner) runJob(ctx context.Context, defaults model.UploaderConfig, job Job) ([]model.UploadedFile, error) {
	cfg := job.Config(defaults)
	logger := r.Logger.With(zap.String("job", job.Label()))

	gallery := uploader.NewGallery()
	if r.Existing != nil {
		existing, err := r.Existing(ctx, cfg.FileMetadata)
		if err != nil {
			return nil, fmt.Errorf("listing existing files: %w", err)
		}
		gallery.Append(existing...)
	}

	up := uploader.New(cfg, gallery, r.Raster, r.Service, r.Notifier, logger)
	if err := up.Open(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(job.In)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if err := up.Select(model.NewRawImage(filepath.Base(job.In), "", data)); err != nil {
		return nil, err
	}

	if err := job.Crop.Apply(up.Session()); err != nil {
		_ = up.Cancel()
		return nil, err
	}

	return up.Save(ctx)
}
