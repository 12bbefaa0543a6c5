package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/crop-uploader/internal/model"
	"github.com/fleveque/crop-uploader/internal/storage"
	"github.com/fleveque/crop-uploader/internal/upload"
)

// FilesHandler serves the upload API: store, list, fetch and delete files.
type FilesHandler struct {
	files    *upload.LocalService
	maxBytes int64
	logger   *zap.Logger
}

// NewFilesHandler creates a FilesHandler. Uploads larger than maxBytes are
// refused with 413; maxBytes <= 0 means no limit.
func NewFilesHandler(files *upload.LocalService, maxBytes int64, logger *zap.Logger) *FilesHandler {
	return &FilesHandler{files: files, maxBytes: maxBytes, logger: logger}
}

// Upload stores one multipart file.
// Route: POST /api/v1/files  (fields: file, purpose, parent_id)
//
// Responds 201 with a JSON array of descriptors, the shape the uploader's
// HTTP backend expects.
func (h *FilesHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := header.Open()
	if err != nil {
		h.logger.Error("opening multipart file", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.logger.Error("reading multipart file", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}

	meta := model.FileMetadata{
		Purpose:  c.PostForm("purpose"),
		ParentID: c.PostForm("parent_id"),
	}
	stored, err := h.files.Store(c.Request.Context(), header.Filename, data, meta)
	if errors.Is(err, upload.ErrNotImage) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "content is not an image"})
		return
	}
	if err != nil {
		h.logger.Error("storing upload", zap.String("file", header.Filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, []model.UploadedFile{*stored})
}

// List returns descriptors in upload order.
// Route: GET /api/v1/files?parent_id=&purpose=
func (h *FilesHandler) List(c *gin.Context) {
	files, err := h.files.List(c.Request.Context(), storage.FileFilter{
		ParentID: c.Query("parent_id"),
		Purpose:  c.Query("purpose"),
	})
	if err != nil {
		h.logger.Error("listing files", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, files)
}

// Get returns one descriptor.
// Route: GET /api/v1/files/:id
func (h *FilesHandler) Get(c *gin.Context) {
	file, err := h.files.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.notFoundOr500(c, "getting file", err)
		return
	}
	c.JSON(http.StatusOK, file)
}

// Raw serves the stored bytes.
// Route: GET /api/v1/files/:id/raw
func (h *FilesHandler) Raw(c *gin.Context) {
	file, data, err := h.files.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.notFoundOr500(c, "reading file", err)
		return
	}
	// Stored files never change; a new crop is a new id.
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, file.MIMEType, data)
}

// Delete removes the record and its bytes.
// Route: DELETE /api/v1/files/:id
func (h *FilesHandler) Delete(c *gin.Context) {
	if err := h.files.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.notFoundOr500(c, "deleting file", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FilesHandler) notFoundOr500(c *gin.Context, action string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	h.logger.Error(action, zap.String("id", c.Param("id")), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
