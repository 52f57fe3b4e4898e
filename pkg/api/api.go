// Package api mounts every route group of the HTTP server.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/router"
	"github.com/yeisme/sharevault/pkg/middleware"
)

// APIPrefix is the versioned root of the management API.
const APIPrefix = "/api/v1"

// RegisterGroup mounts /api/v1, the capability endpoints and, in debug mode,
// swagger.
func RegisterGroup(e *gin.Engine, cfg *configs.AppConfig) *gin.Engine {
	v1 := e.Group(APIPrefix, middleware.RateLimitMiddleware(cfg.RateLimit))

	router.RegisterHealthCheckRoute(v1)
	router.RegisterQuotaRoutes(v1)
	router.RegisterSharesRoutes(v1)
	router.RegisterAdminRoutes(v1)
	router.RegisterSchedulerRoutes(v1)

	router.RegisterCapabilityRoutes(e, middleware.CapabilityRateLimit(cfg.RateLimit))
	router.RegisterSwaggerRoute(e, cfg.Server)

	return e
}
