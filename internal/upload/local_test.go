package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/fleveque/crop-uploader/internal/config"
	"github.com/fleveque/crop-uploader/internal/model"
	"github.com/fleveque/crop-uploader/internal/storage"
)

func setupLocal(t *testing.T) *LocalService {
	t.Helper()
	dir := t.TempDir()
	svc, db, err := OpenLocal(config.StorageConfig{
		DatabasePath: filepath.Join(dir, "test.db"),
		UploadDir:    filepath.Join(dir, "files"),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("opening local service: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return svc
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func TestLocalService_UploadAndOpen(t *testing.T) {
	svc := setupLocal(t)
	ctx := context.Background()

	data := pngBytes(t, 4, 4)
	meta := model.FileMetadata{Purpose: model.PurposeProfileLogo, ParentID: "seller-7"}
	files, err := svc.Upload(ctx, model.NewRawImage("logo.png", "image/png", data), meta)
	if err != nil {
		t.Fatalf("uploading: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(files))
	}

	f := files[0]
	if f.ID == "" {
		t.Error("expected an id")
	}
	if !strings.HasPrefix(f.Src, "profile_logo/") || !strings.HasSuffix(f.Src, ".png") {
		t.Errorf("unexpected src %q", f.Src)
	}
	if f.Meta.FileName != "logo.png" || f.Meta.FileSize != int64(len(data)) {
		t.Errorf("unexpected meta %+v", f.Meta)
	}
	if f.ParentID != "seller-7" {
		t.Errorf("expected parent seller-7, got %s", f.ParentID)
	}

	got, raw, err := svc.Open(ctx, f.ID)
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	if got.MIMEType != "image/png" {
		t.Errorf("expected image/png, got %s", got.MIMEType)
	}
	if !bytes.Equal(raw, data) {
		t.Error("stored bytes differ from uploaded bytes")
	}
}

func TestLocalService_RejectsNonImage(t *testing.T) {
	svc := setupLocal(t)

	_, err := svc.Store(context.Background(), "notes.txt", []byte("just text"), model.FileMetadata{})
	if !errors.Is(err, ErrNotImage) {
		t.Errorf("expected ErrNotImage, got %v", err)
	}

	files, err := svc.List(context.Background(), storage.FileFilter{})
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected nothing recorded, got %d files", len(files))
	}
}

func TestLocalService_DeleteRemovesRecordAndBytes(t *testing.T) {
	svc := setupLocal(t)
	ctx := context.Background()

	f, err := svc.Store(ctx, "a.png", pngBytes(t, 2, 2), model.FileMetadata{Purpose: "review_image"})
	if err != nil {
		t.Fatalf("storing: %v", err)
	}
	if err := svc.Delete(ctx, f.ID); err != nil {
		t.Fatalf("deleting: %v", err)
	}

	if _, err := svc.Get(ctx, f.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if svc.fs.Exists(f.Src) {
		t.Error("expected bytes to be removed")
	}
	if err := svc.Delete(ctx, f.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestLocalService_Stats(t *testing.T) {
	svc := setupLocal(t)
	ctx := context.Background()

	for _, purpose := range []string{"review_image", "review_image", "profile_logo"} {
		if _, err := svc.Store(ctx, "x.png", pngBytes(t, 1, 1), model.FileMetadata{Purpose: purpose}); err != nil {
			t.Fatalf("storing: %v", err)
		}
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("expected total 3, got %d", stats.Total)
	}
	if len(stats.ByPurpose) != 2 {
		t.Fatalf("expected 2 purposes, got %d", len(stats.ByPurpose))
	}
	// Ordered by purpose name.
	if stats.ByPurpose[0].Purpose != "profile_logo" || stats.ByPurpose[1].Count != 2 {
		t.Errorf("unexpected per-purpose counts %+v", stats.ByPurpose)
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath: filepath.Join(dir, "t.db"),
			UploadDir:    filepath.Join(dir, "files"),
		},
		Upload: config.UploadConfig{Backend: config.BackendLocal},
	}

	svc, closeFn, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("local backend: %v", err)
	}
	if _, ok := svc.(*LocalService); !ok {
		t.Errorf("expected *LocalService, got %T", svc)
	}
	if err := closeFn(); err != nil {
		t.Errorf("closing local backend: %v", err)
	}

	cfg.Upload = config.UploadConfig{Backend: config.BackendHTTP, Endpoint: "http://example.invalid"}
	svc, closeFn, err = New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("http backend: %v", err)
	}
	if _, ok := svc.(*HTTPService); !ok {
		t.Errorf("expected *HTTPService, got %T", svc)
	}
	_ = closeFn()

	cfg.Upload.Backend = "ftp"
	if _, _, err := New(cfg, zap.NewNop()); err == nil {
		t.Error("expected error for unknown backend")
	}
}
