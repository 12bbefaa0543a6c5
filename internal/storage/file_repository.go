package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/crop-uploader/internal/model"
)

// ErrNotFound is returned when a file doesn't exist in the catalog or on disk.
// Go uses sentinel errors (predefined error values) instead of exception types.
// Callers check with errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("file not found")

// FileFilter narrows List. Empty fields match everything.
type FileFilter struct {
	ParentID string
	Purpose  string
}

// FileRepository defines the interface for the uploaded-file catalog.
// Go interfaces are implicit — any struct that has these methods satisfies it.
type FileRepository interface {
	Create(ctx context.Context, file *model.UploadedFile) error
	Get(ctx context.Context, id string) (*model.UploadedFile, error)
	List(ctx context.Context, filter FileFilter) ([]model.UploadedFile, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	CountByPurpose(ctx context.Context) ([]model.PurposeCount, error)
}

// fileRow is the flat database shape of an UploadedFile.
type fileRow struct {
	ID        string    `db:"id"`
	Src       string    `db:"src"`
	FileName  string    `db:"file_name"`
	FileSize  int64     `db:"file_size"`
	MIMEType  string    `db:"mime_type"`
	Purpose   string    `db:"purpose"`
	ParentID  string    `db:"parent_id"`
	CreatedAt time.Time `db:"created_at"`
}

func toRow(f *model.UploadedFile) fileRow {
	return fileRow{
		ID:        f.ID,
		Src:       f.Src,
		FileName:  f.Meta.FileName,
		FileSize:  f.Meta.FileSize,
		MIMEType:  f.MIMEType,
		Purpose:   f.Purpose,
		ParentID:  f.ParentID,
		CreatedAt: f.CreatedAt,
	}
}

func (r fileRow) toModel() model.UploadedFile {
	return model.UploadedFile{
		ID:        r.ID,
		Src:       r.Src,
		Meta:      model.FileMeta{FileName: r.FileName, FileSize: r.FileSize},
		MIMEType:  r.MIMEType,
		Purpose:   r.Purpose,
		ParentID:  r.ParentID,
		CreatedAt: r.CreatedAt,
	}
}

// sqliteFileRepository is the SQLite implementation of FileRepository.
// The struct is unexported — only the interface is public.
type sqliteFileRepository struct {
	db *sqlx.DB
}

// NewFileRepository creates a new SQLite-backed FileRepository.
func NewFileRepository(db *sqlx.DB) FileRepository {
	return &sqliteFileRepository{db: db}
}

const fileColumns = "id, src, file_name, file_size, mime_type, purpose, parent_id, created_at"

func (r *sqliteFileRepository) Create(ctx context.Context, file *model.UploadedFile) error {
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	// NamedExecContext uses the struct's `db:` tags to map fields to :named placeholders.
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO files (id, src, file_name, file_size, mime_type, purpose, parent_id, created_at)
		VALUES (:id, :src, :file_name, :file_size, :mime_type, :purpose, :parent_id, :created_at)
	`, toRow(file))
	if err != nil {
		return fmt.Errorf("creating file %s: %w", file.ID, err)
	}
	return nil
}

func (r *sqliteFileRepository) Get(ctx context.Context, id string) (*model.UploadedFile, error) {
	var row fileRow
	err := r.db.GetContext(ctx, &row, "SELECT "+fileColumns+" FROM files WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting file %s: %w", id, err)
	}
	f := row.toModel()
	return &f, nil
}

// List returns files in upload order.
func (r *sqliteFileRepository) List(ctx context.Context, filter FileFilter) ([]model.UploadedFile, error) {
	query := "SELECT " + fileColumns + " FROM files WHERE 1 = 1"
	var args []interface{}
	if filter.ParentID != "" {
		query += " AND parent_id = ?"
		args = append(args, filter.ParentID)
	}
	if filter.Purpose != "" {
		query += " AND purpose = ?"
		args = append(args, filter.Purpose)
	}
	query += " ORDER BY seq ASC"

	var rows []fileRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	files := make([]model.UploadedFile, 0, len(rows))
	for _, row := range rows {
		files = append(files, row.toModel())
	}
	return files, nil
}

func (r *sqliteFileRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM files WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting file %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting file %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteFileRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM files")
	return count, err
}

func (r *sqliteFileRepository) CountByPurpose(ctx context.Context) ([]model.PurposeCount, error) {
	var counts []model.PurposeCount
	err := r.db.SelectContext(ctx, &counts,
		"SELECT purpose, COUNT(*) AS count FROM files GROUP BY purpose ORDER BY purpose")
	if err != nil {
		return nil, fmt.Errorf("counting files by purpose: %w", err)
	}
	return counts, nil
}
