// Package middleware holds the gin middleware chain of the HTTP server:
// identity, roles, rate limits, circuit breaking, caching, tracing, metrics
// and request logging.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/internal/service"
)

// ServicesMiddleware injects the process services into the request context.
func ServicesMiddleware(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(service.WithServices(c.Request.Context(), svcs))
		c.Next()
	}
}
