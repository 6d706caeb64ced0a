package common

import (
	"errors"
	"fmt"
	"strings"
)

// Business logic errors
var (
	// General errors
	ErrNotFound            = errors.New("resource not found")
	ErrForbidden           = errors.New("forbidden")
	ErrCollectionProtected = errors.New("collection does not accept direct writes")

	// Schema errors
	ErrCollectionNotFound = errors.New("collection not found")
	ErrFieldNotFound      = errors.New("field not found")
	ErrNotManaged         = errors.New("collection is not managed")
	ErrCollectionNotEmpty = errors.New("collection still has items")

	// Relation errors
	ErrNotARelation  = errors.New("field is not relational")
	ErrDepthExceeded = errors.New("relation expansion depth exceeded")

	// Activity errors
	ErrActivityNotFound = errors.New("activity entry not found")
	ErrNotAComment      = errors.New("activity entry is not a comment")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// Violation is one field-level payload problem. Violations are collected
// across the whole payload and returned together so a client can fix
// everything in one round trip.
type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError aggregates all violations found in one payload
type ValidationError struct {
	Collection string      `json:"collection"`
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Collection, strings.Join(msgs, "; "))
}

// Add appends a violation and returns the error for chaining
func (e *ValidationError) Add(field, code, message string) *ValidationError {
	e.Violations = append(e.Violations, Violation{Field: field, Code: code, Message: message})
	return e
}

// HasViolations reports whether any violation was collected
func (e *ValidationError) HasViolations() bool { return len(e.Violations) > 0 }

// RelationError reports dangling or unresolvable relations. Non-fatal
// for reads (logged, field treated as unset), fatal for writes that
// would persist a dangling reference.
type RelationError struct {
	Collection string      `json:"collection"`
	Violations []Violation `json:"violations"`
}

func (e *RelationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return fmt.Sprintf("relation error for %s: %s", e.Collection, strings.Join(msgs, "; "))
}

// Add appends a violation and returns the error for chaining
func (e *RelationError) Add(field, code, message string) *RelationError {
	e.Violations = append(e.Violations, Violation{Field: field, Code: code, Message: message})
	return e
}

// HasViolations reports whether any violation was collected
func (e *RelationError) HasViolations() bool { return len(e.Violations) > 0 }

// Stable machine-readable error codes exposed to clients
const (
	CodeNotFound         = "NOT_FOUND"
	CodeForbidden        = "FORBIDDEN"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeRelationError    = "RELATION_ERROR"
	CodeNotManaged       = "NOT_MANAGED"
	CodeDepthExceeded    = "DEPTH_EXCEEDED"
	CodeNotARelation     = "NOT_A_RELATION"
	CodeNotAComment      = "NOT_A_COMMENT"
	CodeConflict         = "CONFLICT"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
	CodeBadRequest       = "BAD_REQUEST"
)

// CodeOf maps an error to its stable machine code
func CodeOf(err error) string {
	var ve *ValidationError
	var re *RelationError
	switch {
	case errors.As(err, &ve):
		return CodeValidationFailed
	case errors.As(err, &re):
		return CodeRelationError
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrCollectionNotFound),
		errors.Is(err, ErrFieldNotFound),
		errors.Is(err, ErrActivityNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrCollectionProtected):
		return CodeForbidden
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrExpiredToken):
		return CodeUnauthorized
	case errors.Is(err, ErrNotManaged):
		return CodeNotManaged
	case errors.Is(err, ErrDepthExceeded):
		return CodeDepthExceeded
	case errors.Is(err, ErrNotARelation):
		return CodeNotARelation
	case errors.Is(err, ErrNotAComment):
		return CodeNotAComment
	case errors.Is(err, ErrCollectionNotEmpty):
		return CodeConflict
	}
	return CodeInternal
}
