package middleware

import (
	"errors"
	"strings"

	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/domain"
	"github.com/dev7ch/api/internal/service"
	"github.com/dev7ch/api/pkg/jwt"
	"github.com/gin-gonic/gin"
)

const (
	ctxActorKey = "actor_id"
	ctxAdminKey = "actor_admin"
)

// Auth resolves the acting user from a Bearer token. Requests without a
// token pass through anonymously; a token that is present but invalid
// is rejected outright.
func Auth(manager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			common.ErrorResponse(c, common.ErrInvalidToken)
			c.Abort()
			return
		}
		claims, err := manager.Verify(token)
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				common.ErrorResponse(c, common.ErrExpiredToken)
			} else {
				common.ErrorResponse(c, common.ErrInvalidToken)
			}
			c.Abort()
			return
		}
		c.Set(ctxActorKey, claims.UserID)
		c.Set(ctxAdminKey, claims.Admin)
		c.Next()
	}
}

// GetActor returns the authenticated user id, or 0 for anonymous
func GetActor(c *gin.Context) int64 {
	if v, ok := c.Get(ctxActorKey); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// IsAdmin reports whether the actor carries the admin claim
func IsAdmin(c *gin.Context) bool {
	if v, ok := c.Get(ctxAdminKey); ok {
		if admin, ok := v.(bool); ok {
			return admin
		}
	}
	return false
}

// Capability builds the per-request permission check the services run
// before persisting. Anonymous requests read only; authenticated users
// mutate user collections; system schema tables take an admin.
func Capability(c *gin.Context) service.CapabilityFunc {
	actor := GetActor(c)
	admin := IsAdmin(c)
	return func(collection, action string) bool {
		if action == domain.ActionCreate || action == domain.ActionUpdate || action == domain.ActionDelete {
			if actor == 0 {
				return false
			}
			if collection == "dev7_collections" || collection == "dev7_fields" {
				return admin
			}
		}
		return true
	}
}

// MutationOptions assembles the per-call mutation context from a request
func MutationOptions(c *gin.Context) service.MutationOptions {
	return service.MutationOptions{
		Actor:     GetActor(c),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Comment:   c.Query("comment"),
		Can:       Capability(c),
	}
}
