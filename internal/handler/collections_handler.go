package handler

import (
	"net/http"

	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/domain"
	"github.com/dev7ch/api/internal/middleware"
	"github.com/dev7ch/api/internal/service"
	"github.com/gin-gonic/gin"
)

// CollectionsHandler manages collection and field metadata
type CollectionsHandler struct {
	schema service.SchemaService
}

func NewCollectionsHandler(schema service.SchemaService) *CollectionsHandler {
	return &CollectionsHandler{schema: schema}
}

// ListCollections - GET /collections
func (h *CollectionsHandler) ListCollections(c *gin.Context) {
	collections, err := h.schema.ListCollections(c.Request.Context())
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, collections, metaFor(c, "dev7_collections", "collection", len(collections)))
}

// GetCollection - GET /collections/:name
func (h *CollectionsHandler) GetCollection(c *gin.Context) {
	collection, err := h.schema.GetCollection(c.Request.Context(), c.Param("name"))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, collection, metaFor(c, "dev7_collections", "item", 1))
}

// CreateCollection - POST /collections
func (h *CollectionsHandler) CreateCollection(c *gin.Context) {
	var in service.CollectionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, common.APIResponse{
			Error: &common.ErrorInfo{Code: common.CodeBadRequest, Message: "collection name and at least one field are required"},
		})
		return
	}

	collection, err := h.schema.CreateCollection(c.Request.Context(), in, middleware.MutationOptions(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.CreatedResponse(c, collection, nil)
}

// DeleteCollection - DELETE /collections/:name
func (h *CollectionsHandler) DeleteCollection(c *gin.Context) {
	if err := h.schema.DeleteCollection(c.Request.Context(), c.Param("name"), middleware.MutationOptions(c)); err != nil {
		common.ErrorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListFields - GET /fields/:collection
func (h *CollectionsHandler) ListFields(c *gin.Context) {
	collection := c.Param("collection")

	fields, err := h.schema.ListFields(c.Request.Context(), collection)
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, fields, metaFor(c, collection, "collection", len(fields)))
}

// CreateField - POST /fields/:collection
func (h *CollectionsHandler) CreateField(c *gin.Context) {
	var in service.FieldInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, common.APIResponse{
			Error: &common.ErrorInfo{Code: common.CodeBadRequest, Message: "field name and type are required"},
		})
		return
	}

	field, err := h.schema.AddField(c.Request.Context(), c.Param("collection"), in, middleware.MutationOptions(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.CreatedResponse(c, field, nil)
}

// UpdateField - PATCH /fields/:collection/:field
func (h *CollectionsHandler) UpdateField(c *gin.Context) {
	var values domain.Record
	if err := c.ShouldBindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, common.APIResponse{
			Error: &common.ErrorInfo{Code: common.CodeBadRequest, Message: "invalid request body"},
		})
		return
	}

	if err := h.schema.UpdateField(c.Request.Context(), c.Param("collection"), c.Param("field"), values, middleware.MutationOptions(c)); err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"collection": c.Param("collection"), "field": c.Param("field")}, nil)
}

// DeleteField - DELETE /fields/:collection/:field
func (h *CollectionsHandler) DeleteField(c *gin.Context) {
	if err := h.schema.DeleteField(c.Request.Context(), c.Param("collection"), c.Param("field"), middleware.MutationOptions(c)); err != nil {
		common.ErrorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
