package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIResponse standard API response structure
type APIResponse struct {
	Data  interface{} `json:"data"`
	Meta  *Meta       `json:"meta,omitempty"`
	Error *ErrorInfo  `json:"error,omitempty"`
}

// Meta response metadata: result shape plus optional paging info
type Meta struct {
	Collection  string `json:"collection,omitempty"`
	Type        string `json:"type,omitempty"` // "item" or "collection"
	ResultCount int    `json:"result_count,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Total       int64  `json:"total,omitempty"`
}

// ErrorInfo error details with a stable machine code. Violations carry
// per-field detail for aggregated validation/relation failures.
type ErrorInfo struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Violations []Violation `json:"violations,omitempty"`
}

// ItemMeta returns meta for a single-item response
func ItemMeta(collection string) *Meta {
	return &Meta{Collection: collection, Type: "item"}
}

// CollectionMeta returns meta for a list response
func CollectionMeta(collection string, count int) *Meta {
	return &Meta{Collection: collection, Type: "collection", ResultCount: count}
}

// SuccessResponse returns a successful JSON response
func SuccessResponse(c *gin.Context, data interface{}, meta *Meta) {
	c.JSON(http.StatusOK, APIResponse{
		Data: data,
		Meta: meta,
	})
}

// CreatedResponse returns a 201 JSON response
func CreatedResponse(c *gin.Context, data interface{}, meta *Meta) {
	c.JSON(http.StatusCreated, APIResponse{
		Data: data,
		Meta: meta,
	})
}

// ErrorResponse maps a business error onto the response envelope.
// Stack-level detail is never included; only the stable code, the
// message and any collected violations reach the client.
func ErrorResponse(c *gin.Context, err error) {
	code := CodeOf(err)
	info := &ErrorInfo{
		Code:    code,
		Message: err.Error(),
	}

	var ve *ValidationError
	var re *RelationError
	if errors.As(err, &ve) {
		info.Violations = ve.Violations
	} else if errors.As(err, &re) {
		info.Violations = re.Violations
	}

	if code == CodeInternal {
		// Never leak driver/storage errors to clients
		info.Message = "internal server error"
	}

	c.JSON(statusOf(code), APIResponse{Error: info})
}

// statusOf maps a machine code to its HTTP status
func statusOf(code string) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeValidationFailed, CodeBadRequest, CodeNotARelation, CodeNotAComment, CodeDepthExceeded:
		return http.StatusBadRequest
	case CodeRelationError, CodeNotManaged:
		return http.StatusUnprocessableEntity
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
