package uploader

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleveque/crop-uploader/internal/model"
)

func galleryOf(n int) *Gallery {
	files := make([]model.UploadedFile, n)
	for i := range files {
		files[i] = model.UploadedFile{ID: fmt.Sprintf("f%d", i)}
	}
	return NewGallery(files...)
}

func TestGallery_RemoveKeepsOrder(t *testing.T) {
	for n := 1; n <= 6; n++ {
		for k := 0; k < n; k++ {
			g := galleryOf(n)
			target := fmt.Sprintf("f%d", k)

			assert.True(t, g.Remove(target))

			got := ids(g.Files())
			assert.Len(t, got, n-1)
			assert.NotContains(t, got, target)

			var want []string
			for i := 0; i < n; i++ {
				if i != k {
					want = append(want, fmt.Sprintf("f%d", i))
				}
			}
			assert.Equal(t, want, append([]string{}, got...), "n=%d remove f%d", n, k)
		}
	}
}

func TestGallery_RemoveUnknownID(t *testing.T) {
	g := galleryOf(3)
	assert.False(t, g.Remove("nope"))
	assert.Equal(t, []string{"f0", "f1", "f2"}, ids(g.Files()))
}

func TestGallery_AppendIsOrderPreserving(t *testing.T) {
	g := galleryOf(2)
	before := g.Files()

	g.Append(model.UploadedFile{ID: "x"}, model.UploadedFile{ID: "y"})
	g.Append(model.UploadedFile{ID: "z"})

	assert.Equal(t, []string{"f0", "f1", "x", "y", "z"}, ids(g.Files()))
	// Earlier snapshots are untouched.
	assert.Equal(t, []string{"f0", "f1"}, ids(before))
}

func TestGallery_FilesReturnsCopy(t *testing.T) {
	g := galleryOf(2)
	files := g.Files()
	files[0].ID = "mutated"
	assert.Equal(t, "f0", g.Files()[0].ID)
}
