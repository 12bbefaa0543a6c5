package upload

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fleveque/crop-uploader/internal/config"
	"github.com/fleveque/crop-uploader/internal/storage"
	"github.com/fleveque/crop-uploader/internal/uploader"
)

// Compile-time interface checks: these fail to build if a backend stops
// satisfying uploader.UploadService.
var (
	_ uploader.UploadService = (*LocalService)(nil)
	_ uploader.UploadService = (*HTTPService)(nil)
)

// OpenLocal opens the catalog and file store named in cfg.
// The caller owns the returned *sqlx.DB and must close it.
func OpenLocal(cfg config.StorageConfig, logger *zap.Logger) (*LocalService, *sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := storage.NewDatabase(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening catalog: %w", err)
	}
	fs, err := storage.NewFileSystem(cfg.UploadDir)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("opening file store: %w", err)
	}
	return NewLocalService(storage.NewFileRepository(db), fs, logger), db, nil
}

// New picks the upload backend from cfg.Upload.Backend. The returned close
// function releases whatever the backend opened.
func New(cfg *config.Config, logger *zap.Logger) (uploader.UploadService, func() error, error) {
	switch cfg.Upload.Backend {
	case config.BackendHTTP:
		logger.Info("using http upload backend", zap.String("endpoint", cfg.Upload.Endpoint))
		svc := NewHTTPService(cfg.Upload.Endpoint, cfg.Upload.APIKey, cfg.Upload.Timeout, cfg.Upload.RequestsPerMinute, logger)
		return svc, func() error { return nil }, nil
	case config.BackendLocal, "":
		svc, db, err := OpenLocal(cfg.Storage, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using local upload backend", zap.String("database", cfg.Storage.DatabasePath))
		return svc, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown upload backend %q", cfg.Upload.Backend)
	}
}
