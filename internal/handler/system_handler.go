package handler

import (
	"net/http"
	"time"

	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/middleware"
	"github.com/dev7ch/api/internal/schema"
	"github.com/dev7ch/api/pkg/cache"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SystemHandler serves schema reload and health
type SystemHandler struct {
	registry *schema.Registry
	db       *gorm.DB
	cache    cache.Service
	started  time.Time
}

func NewSystemHandler(registry *schema.Registry, db *gorm.DB, cacheSvc cache.Service) *SystemHandler {
	return &SystemHandler{registry: registry, db: db, cache: cacheSvc, started: time.Now()}
}

// ReloadSchema - POST /schema/reload
// Schema mutations only become visible to readers through this call.
func (h *SystemHandler) ReloadSchema(c *gin.Context) {
	if !middleware.IsAdmin(c) {
		common.ErrorResponse(c, common.ErrForbidden)
		return
	}
	if err := h.registry.Reload(c.Request.Context()); err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{
		"collections": h.registry.CollectionCount(),
		"reloaded_at": time.Now().UTC(),
	}, nil)
}

// Health - GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	status := http.StatusOK
	dbState := "up"
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.Ping() != nil {
		dbState = "down"
		status = http.StatusServiceUnavailable
	}

	cacheState := "disabled"
	if h.cache != nil && h.cache.IsAvailable() {
		cacheState = "up"
	}

	c.JSON(status, gin.H{
		"status":   dbState,
		"database": dbState,
		"cache":    cacheState,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
	})
}
