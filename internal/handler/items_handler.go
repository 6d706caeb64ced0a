package handler

import (
	"net/http"

	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/domain"
	"github.com/dev7ch/api/internal/middleware"
	"github.com/dev7ch/api/internal/service"
	"github.com/gin-gonic/gin"
)

// ItemsHandler exposes generic CRUD over any managed collection
type ItemsHandler struct {
	items    service.ItemService
	activity service.ActivityService
}

func NewItemsHandler(items service.ItemService, activity service.ActivityService) *ItemsHandler {
	return &ItemsHandler{items: items, activity: activity}
}

// CreateItem - POST /items/:collection
func (h *ItemsHandler) CreateItem(c *gin.Context) {
	collection := c.Param("collection")

	var payload domain.Record
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, common.APIResponse{
			Error: &common.ErrorInfo{Code: common.CodeBadRequest, Message: "invalid request body"},
		})
		return
	}

	record, err := h.items.Create(c.Request.Context(), collection, payload, middleware.MutationOptions(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.CreatedResponse(c, record, metaFor(c, collection, "item", 1))
}

// GetItem - GET /items/:collection/:id
func (h *ItemsHandler) GetItem(c *gin.Context) {
	collection := c.Param("collection")

	record, err := h.items.Find(c.Request.Context(), collection, c.Param("id"), parseQueryOptions(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, record, metaFor(c, collection, "item", 1))
}

// ListItems - GET /items/:collection
func (h *ItemsHandler) ListItems(c *gin.Context) {
	collection := c.Param("collection")

	records, err := h.items.FindAll(c.Request.Context(), collection, parseQueryOptions(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, records, metaFor(c, collection, "collection", len(records)))
}

// UpdateItem - PATCH /items/:collection/:id
func (h *ItemsHandler) UpdateItem(c *gin.Context) {
	collection := c.Param("collection")

	var payload domain.Record
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, common.APIResponse{
			Error: &common.ErrorInfo{Code: common.CodeBadRequest, Message: "invalid request body"},
		})
		return
	}

	record, err := h.items.Update(c.Request.Context(), collection, c.Param("id"), payload, middleware.MutationOptions(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, record, metaFor(c, collection, "item", 1))
}

// DeleteItem - DELETE /items/:collection/:id
func (h *ItemsHandler) DeleteItem(c *gin.Context) {
	collection := c.Param("collection")

	if err := h.items.Delete(c.Request.Context(), collection, c.Param("id"), middleware.MutationOptions(c)); err != nil {
		common.ErrorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetItemHistory - GET /items/:collection/:id/revisions
func (h *ItemsHandler) GetItemHistory(c *gin.Context) {
	collection := c.Param("collection")

	entries, err := h.activity.History(c.Request.Context(), collection, c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, entries, metaFor(c, collection, "collection", len(entries)))
}

func metaFor(c *gin.Context, collection, kind string, count int) *common.Meta {
	if !wantsMeta(c) {
		return nil
	}
	if kind == "item" {
		return common.ItemMeta(collection)
	}
	return common.CollectionMeta(collection, count)
}
