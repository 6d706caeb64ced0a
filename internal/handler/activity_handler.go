package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dev7ch/api/internal/analytics"
	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/middleware"
	"github.com/dev7ch/api/internal/repository"
	"github.com/dev7ch/api/internal/service"
	"github.com/gin-gonic/gin"
)

// ActivityHandler exposes the activity stream and item comments
type ActivityHandler struct {
	activity service.ActivityService
	mirror   *analytics.Mirror
}

func NewActivityHandler(activity service.ActivityService, mirror *analytics.Mirror) *ActivityHandler {
	return &ActivityHandler{activity: activity, mirror: mirror}
}

// ListActivity - GET /activity
func (h *ActivityHandler) ListActivity(c *gin.Context) {
	q := parseQueryOptions(c)

	entries, err := h.activity.FindAll(c.Request.Context(), repository.ActivityQuery{
		Fields: q.Fields,
		Action: c.Query("filter[action]"),
		Limit:  q.Limit,
	})
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, entries, metaFor(c, "dev7_activity", "collection", len(entries)))
}

// GetActivity - GET /activity/:id
func (h *ActivityHandler) GetActivity(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.ErrorResponse(c, common.ErrActivityNotFound)
		return
	}

	entry, err := h.activity.Find(c.Request.Context(), id)
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, entry, metaFor(c, "dev7_activity", "item", 1))
}

type commentRequest struct {
	Collection string `json:"collection" binding:"required"`
	Item       string `json:"item" binding:"required"`
	Comment    string `json:"comment" binding:"required"`
}

// CreateComment - POST /activity/comment
func (h *ActivityHandler) CreateComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.APIResponse{
			Error: &common.ErrorInfo{Code: common.CodeBadRequest, Message: "collection, item and comment are required"},
		})
		return
	}

	actor := middleware.GetActor(c)
	if actor == 0 {
		common.ErrorResponse(c, common.ErrUnauthorized)
		return
	}

	entry, err := h.activity.Comment(c.Request.Context(), actor, req.Collection, req.Item, req.Comment)
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.CreatedResponse(c, entry, metaFor(c, "dev7_activity", "item", 1))
}

// UpdateComment - PATCH /activity/comment/:id
func (h *ActivityHandler) UpdateComment(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.ErrorResponse(c, common.ErrActivityNotFound)
		return
	}

	var req struct {
		Comment string `json:"comment" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.APIResponse{
			Error: &common.ErrorInfo{Code: common.CodeBadRequest, Message: "comment is required"},
		})
		return
	}

	entry, err := h.activity.UpdateComment(c.Request.Context(), id, middleware.GetActor(c), req.Comment)
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, entry, nil)
}

// DeleteComment - DELETE /activity/comment/:id
func (h *ActivityHandler) DeleteComment(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.ErrorResponse(c, common.ErrActivityNotFound)
		return
	}

	if err := h.activity.SoftDeleteComment(c.Request.Context(), id, middleware.GetActor(c)); err != nil {
		common.ErrorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ActivityStats - GET /activity/stats
// Served from the analytics mirror; unavailable without one.
func (h *ActivityHandler) ActivityStats(c *gin.Context) {
	if h.mirror == nil || !h.mirror.Enabled() {
		c.JSON(http.StatusServiceUnavailable, common.APIResponse{
			Error: &common.ErrorInfo{Code: common.CodeInternal, Message: "analytics not configured"},
		})
		return
	}

	days := 7
	if d := c.Query("days"); d != "" {
		if n, err := strconv.Atoi(d); err == nil && n > 0 && n <= 365 {
			days = n
		}
	}

	counts, err := h.mirror.ActionCounts(c.Request.Context(), time.Now().AddDate(0, 0, -days))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, counts, nil)
}
