// Package server configures uploadd's HTTP server and routes.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fleveque/crop-uploader/internal/config"
	"github.com/fleveque/crop-uploader/internal/handler"
	"github.com/fleveque/crop-uploader/internal/middleware"
	"github.com/fleveque/crop-uploader/internal/upload"
)

// Deps are the resources the handlers need. The caller opens and closes them.
type Deps struct {
	DB    *sqlx.DB
	Files *upload.LocalService
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
// In Go, we pass dependencies explicitly — no DI container, no magic.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler(deps.DB)
	filesHandler := handler.NewFilesHandler(deps.Files, cfg.Upload.MaxBytes, logger)
	adminHandler := handler.NewAdminHandler(deps.Files, logger)

	// Public endpoints (no auth)
	r.GET("/healthz", healthHandler.Healthz)

	// CORS middleware applies to the entire API group.
	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	// Preflights need a route to match, or group middleware never runs.
	// CORS answers them before this handler is reached.
	api.OPTIONS("/*path", func(c *gin.Context) {})

	authed := api.Group("")
	authed.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys, cfg.Auth.AdminKeys...))
	authed.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		authed.POST("/files", middleware.MaxBodyBytes(bodyLimit(cfg.Upload.MaxBytes)), filesHandler.Upload)
		authed.GET("/files", filesHandler.List)
		authed.GET("/files/:id", filesHandler.Get)
		authed.GET("/files/:id/raw", filesHandler.Raw)
		authed.DELETE("/files/:id", filesHandler.Delete)
	}

	// Admin endpoints (separate auth with admin keys)
	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", adminHandler.Stats)
	}
}

// bodyLimit leaves room for multipart overhead on top of the file itself.
func bodyLimit(maxBytes int64) int64 {
	if maxBytes <= 0 {
		return 0
	}
	return maxBytes + 1<<20
}
