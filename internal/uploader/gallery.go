package uploader

import (
	"sync"

	"github.com/fleveque/crop-uploader/internal/model"
)

// Gallery is the caller-owned list of attached files (a seller's logo,
// banner or review images). The uploader appends to it on success; the
// form removes from it. Neither operation talks to the network.
type Gallery struct {
	mu    sync.RWMutex
	files []model.UploadedFile
}

// NewGallery creates a gallery seeded with existing files, in order.
func NewGallery(files ...model.UploadedFile) *Gallery {
	return &Gallery{files: append([]model.UploadedFile(nil), files...)}
}

// Files returns a copy of the current list.
func (g *Gallery) Files() []model.UploadedFile {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]model.UploadedFile(nil), g.files...)
}

// Len returns the number of attached files.
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.files)
}

// Append adds files at the end. The previous slice is never written to, so
// a list handed out by Files stays valid.
func (g *Gallery) Append(files ...model.UploadedFile) {
	if len(files) == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	next := make([]model.UploadedFile, 0, len(g.files)+len(files))
	next = append(next, g.files...)
	next = append(next, files...)
	g.files = next
}

// Remove filters id out of the list, keeping the order of the rest.
// It reports whether anything was removed.
func (g *Gallery) Remove(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := make([]model.UploadedFile, 0, len(g.files))
	for _, f := range g.files {
		if f.ID != id {
			next = append(next, f)
		}
	}
	removed := len(next) != len(g.files)
	g.files = next
	return removed
}
