package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/configs"
)

// Identity is the caller as asserted by the fronting identity proxy.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

type identityKey struct{}

const identityGinKey = "identity"

// AuthMiddleware trusts the identity headers injected by the proxy. Requests
// under a skip path pass without one; everything else gets 401 when the user
// header is missing. With auth disabled the headers are still read when present.
func AuthMiddleware(conf configs.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := Identity{
			UserID: strings.TrimSpace(c.GetHeader(conf.UserHeader)),
			Email:  strings.TrimSpace(c.GetHeader(conf.EmailHeader)),
			Name:   strings.TrimSpace(c.GetHeader(conf.NameHeader)),
		}

		if id.UserID == "" && conf.DevAllowQuery {
			id.UserID = strings.TrimSpace(c.Query("user"))
		}

		if id.UserID != "" {
			c.Set(identityGinKey, id)
			c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), identityKey{}, id))
		}

		if id.UserID == "" && conf.Enabled && !isSkippedPath(c.Request.URL.Path, conf.SkipPaths) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Next()
	}
}

// GetIdentity returns the caller, ok is false for anonymous requests.
func GetIdentity(c *gin.Context) (Identity, bool) {
	if v, ok := c.Get(identityGinKey); ok {
		if id, ok := v.(Identity); ok {
			return id, true
		}
	}

	id, ok := c.Request.Context().Value(identityKey{}).(Identity)

	return id, ok
}

// RequireUser rejects anonymous requests on routes that need an owner even
// when the global auth check is off.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetIdentity(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Next()
	}
}

func isSkippedPath(path string, skips []string) bool {
	if path == "" || len(skips) == 0 {
		return false
	}

	for _, p := range skips {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}
