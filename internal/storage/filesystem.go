package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem handles reading and writing uploaded files on disk.
// Files are stored at: {baseDir}/{purpose}/{id}{ext}
// The relative part is what descriptors carry as Src.
type FileSystem struct {
	baseDir string
}

// NewFileSystem creates a new FileSystem storage, ensuring the base directory exists.
func NewFileSystem(baseDir string) (*FileSystem, error) {
	// MkdirAll creates the directory and all parents (like mkdir -p).
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &FileSystem{baseDir: baseDir}, nil
}

// RelPath returns the storage path for a file, relative to the base directory.
// Empty or unsafe purposes land in "misc".
func (fs *FileSystem) RelPath(purpose, id, ext string) string {
	return filepath.ToSlash(filepath.Join(sanitizeSegment(purpose), sanitizeSegment(id)+ext))
}

// FullPath resolves a relative storage path under the base directory.
func (fs *FileSystem) FullPath(rel string) (string, error) {
	full := filepath.Join(fs.baseDir, filepath.FromSlash(rel))
	// Reject anything that escapes the base directory ("../../etc/passwd").
	within, err := filepath.Rel(fs.baseDir, full)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage path: %s", rel)
	}
	return full, nil
}

// Read returns the bytes stored at rel.
func (fs *FileSystem) Read(rel string) ([]byte, error) {
	path, err := fs.FullPath(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s: %w", rel, ErrNotFound)
		}
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Write saves data at rel, creating the purpose directory if needed.
func (fs *FileSystem) Write(rel string, data []byte) error {
	path, err := fs.FullPath(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating purpose directory: %w", err)
	}
	// 0644: owner rw, group r, others r — standard for non-executable files.
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// Exists checks if a file exists on disk.
func (fs *FileSystem) Exists(rel string) bool {
	path, err := fs.FullPath(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Delete removes the file at rel. Deleting a missing file is not an error.
func (fs *FileSystem) Delete(rel string) error {
	path, err := fs.FullPath(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

func sanitizeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if strings.Trim(s, "_") == "" {
		return "misc"
	}
	return s
}
