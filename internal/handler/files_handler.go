package handler

import (
	"net/http"

	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/domain"
	"github.com/dev7ch/api/internal/middleware"
	"github.com/dev7ch/api/internal/service"
	"github.com/gin-gonic/gin"
)

// FilesHandler manages file descriptors and their virtual folders
type FilesHandler struct {
	files service.FileService
}

func NewFilesHandler(files service.FileService) *FilesHandler {
	return &FilesHandler{files: files}
}

// UploadFile - POST /files
func (h *FilesHandler) UploadFile(c *gin.Context) {
	var in service.UploadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, common.APIResponse{
			Error: &common.ErrorInfo{Code: common.CodeBadRequest, Message: "filename and data are required"},
		})
		return
	}

	record, err := h.files.Upload(c.Request.Context(), in, middleware.MutationOptions(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.CreatedResponse(c, record, metaFor(c, "dev7_files", "item", 1))
}

// GetFile - GET /files/:id
func (h *FilesHandler) GetFile(c *gin.Context) {
	record, err := h.files.Find(c.Request.Context(), c.Param("id"), parseQueryOptions(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, record, metaFor(c, "dev7_files", "item", 1))
}

// ListFiles - GET /files
func (h *FilesHandler) ListFiles(c *gin.Context) {
	records, err := h.files.FindAll(c.Request.Context(), parseQueryOptions(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, records, metaFor(c, "dev7_files", "collection", len(records)))
}

// UpdateFile - PATCH /files/:id
func (h *FilesHandler) UpdateFile(c *gin.Context) {
	var payload domain.Record
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, common.APIResponse{
			Error: &common.ErrorInfo{Code: common.CodeBadRequest, Message: "invalid request body"},
		})
		return
	}

	record, err := h.files.Update(c.Request.Context(), c.Param("id"), payload, middleware.MutationOptions(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, record, metaFor(c, "dev7_files", "item", 1))
}

// DeleteFile - DELETE /files/:id
func (h *FilesHandler) DeleteFile(c *gin.Context) {
	if err := h.files.Delete(c.Request.Context(), c.Param("id"), middleware.MutationOptions(c)); err != nil {
		common.ErrorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateFolder - POST /files/folders
func (h *FilesHandler) CreateFolder(c *gin.Context) {
	var payload domain.Record
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, common.APIResponse{
			Error: &common.ErrorInfo{Code: common.CodeBadRequest, Message: "invalid request body"},
		})
		return
	}

	record, err := h.files.CreateFolder(c.Request.Context(), payload, middleware.MutationOptions(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.CreatedResponse(c, record, metaFor(c, "dev7_folders", "item", 1))
}

// GetFolder - GET /files/folders/:id
func (h *FilesHandler) GetFolder(c *gin.Context) {
	record, err := h.files.FindFolder(c.Request.Context(), c.Param("id"), parseQueryOptions(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, record, metaFor(c, "dev7_folders", "item", 1))
}

// ListFolders - GET /files/folders
func (h *FilesHandler) ListFolders(c *gin.Context) {
	records, err := h.files.FindFolders(c.Request.Context(), parseQueryOptions(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, records, metaFor(c, "dev7_folders", "collection", len(records)))
}

// UpdateFolder - PATCH /files/folders/:id
func (h *FilesHandler) UpdateFolder(c *gin.Context) {
	var payload domain.Record
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, common.APIResponse{
			Error: &common.ErrorInfo{Code: common.CodeBadRequest, Message: "invalid request body"},
		})
		return
	}

	record, err := h.files.UpdateFolder(c.Request.Context(), c.Param("id"), payload, middleware.MutationOptions(c))
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}
	common.SuccessResponse(c, record, metaFor(c, "dev7_folders", "item", 1))
}

// DeleteFolder - DELETE /files/folders/:id
func (h *FilesHandler) DeleteFolder(c *gin.Context) {
	if err := h.files.DeleteFolder(c.Request.Context(), c.Param("id"), middleware.MutationOptions(c)); err != nil {
		common.ErrorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
