// Package upload implements the upload service behind an uploader: either
// a local store (files on disk, descriptors in SQLite) or a client for a
// running uploadd.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleveque/crop-uploader/internal/model"
	"github.com/fleveque/crop-uploader/internal/storage"
)

// ErrNotImage is returned when stored content doesn't sniff as an image.
var ErrNotImage = errors.New("content is not an image")

// LocalService stores uploads on the local filesystem and records their
// descriptors in the file catalog. uploadd serves HTTP from one of these;
// crop-cli uses one directly when upload.backend is "local".
type LocalService struct {
	repo   storage.FileRepository
	fs     *storage.FileSystem
	logger *zap.Logger
}

// NewLocalService creates a LocalService over an existing catalog and
// filesystem.
func NewLocalService(repo storage.FileRepository, fs *storage.FileSystem, logger *zap.Logger) *LocalService {
	return &LocalService{repo: repo, fs: fs, logger: logger}
}

// Upload stores a rasterized crop. One file in, one descriptor out.
func (s *LocalService) Upload(ctx context.Context, file *model.RawImage, meta model.FileMetadata) ([]model.UploadedFile, error) {
	stored, err := s.Store(ctx, file.Name, file.Data, meta)
	if err != nil {
		return nil, err
	}
	return []model.UploadedFile{*stored}, nil
}

// Store writes data to disk, then records it. The MIME type is always
// sniffed from the bytes; the client-supplied type is not trusted.
func (s *LocalService) Store(ctx context.Context, name string, data []byte, meta model.FileMetadata) (*model.UploadedFile, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("storing %q (%s): %w", name, mt.String(), ErrNotImage)
	}

	id := uuid.NewString()
	rel := s.fs.RelPath(meta.Purpose, id, mt.Extension())
	if err := s.fs.Write(rel, data); err != nil {
		return nil, fmt.Errorf("storing %q: %w", name, err)
	}

	file := &model.UploadedFile{
		ID:       id,
		Src:      rel,
		Meta:     model.FileMeta{FileName: name, FileSize: int64(len(data))},
		MIMEType: mt.String(),
		Purpose:  meta.Purpose,
		ParentID: meta.ParentID,
	}
	if err := s.repo.Create(ctx, file); err != nil {
		// Don't leave orphaned bytes behind a failed insert.
		if delErr := s.fs.Delete(rel); delErr != nil {
			s.logger.Warn("removing orphaned file", zap.String("src", rel), zap.Error(delErr))
		}
		return nil, fmt.Errorf("recording %q: %w", name, err)
	}

	s.logger.Info("file stored",
		zap.String("id", id),
		zap.String("src", rel),
		zap.String("purpose", meta.Purpose),
		zap.String("parent_id", meta.ParentID),
		zap.Int("bytes", len(data)),
	)
	return file, nil
}

// Get returns one descriptor.
func (s *LocalService) Get(ctx context.Context, id string) (*model.UploadedFile, error) {
	return s.repo.Get(ctx, id)
}

// Open returns a descriptor together with the stored bytes.
func (s *LocalService) Open(ctx context.Context, id string) (*model.UploadedFile, []byte, error) {
	file, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.fs.Read(file.Src)
	if err != nil {
		return nil, nil, err
	}
	return file, data, nil
}

// List returns descriptors in upload order.
func (s *LocalService) List(ctx context.Context, filter storage.FileFilter) ([]model.UploadedFile, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes the record first, then the bytes.
func (s *LocalService) Delete(ctx context.Context, id string) error {
	file, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.fs.Delete(file.Src); err != nil {
		s.logger.Warn("deleting file bytes", zap.String("id", id), zap.Error(err))
	}
	s.logger.Info("file deleted", zap.String("id", id))
	return nil
}

// Stats summarizes the catalog.
type Stats struct {
	Total     int64                `json:"total"`
	ByPurpose []model.PurposeCount `json:"by_purpose"`
}

// Stats returns totals per purpose.
func (s *LocalService) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting files: %w", err)
	}
	byPurpose, err := s.repo.CountByPurpose(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Total: total, ByPurpose: byPurpose}, nil
}
