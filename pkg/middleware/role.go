package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Role orders callers by privilege; larger is stronger.
type Role int

const (
	RoleUser Role = iota + 1
	RoleAdmin
)

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}

	return "user"
}

type roleKey struct{}

// parseRole maps unknown values to RoleUser.
func parseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), "admin") {
		return RoleAdmin
	}

	return RoleUser
}

// RoleMiddleware reads the role header set by the proxy. The default is user.
func RoleMiddleware(header string) gin.HandlerFunc {
	if header == "" {
		header = "X-Role"
	}

	return func(c *gin.Context) {
		r := parseRole(c.GetHeader(header))
		c.Set("role", r)

		ctx := context.WithValue(c.Request.Context(), roleKey{}, r)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetRole returns the caller's role.
func GetRole(c *gin.Context) Role {
	if v, ok := c.Get("role"); ok {
		if r, ok2 := v.(Role); ok2 {
			return r
		}
	}

	if r, ok := c.Request.Context().Value(roleKey{}).(Role); ok {
		return r
	}

	return RoleUser
}

// RequireMinRole answers 403 below minRole.
func RequireMinRole(minRole Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) < minRole {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden: insufficient role"})
			return
		}

		c.Next()
	}
}
