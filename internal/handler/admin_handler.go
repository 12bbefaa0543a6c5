package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/crop-uploader/internal/upload"
)

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	files  *upload.LocalService
	logger *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(files *upload.LocalService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{files: files, logger: logger}
}

// Stats returns file counts, in total and per purpose.
// Route: GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.files.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("computing stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
