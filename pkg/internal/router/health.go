package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/internal/handle"
)

// RegisterHealthCheckRoute binds liveness and per-component checks.
func RegisterHealthCheckRoute(g *gin.RouterGroup) {
	healthRoutes := g.Group("/health")
	{
		healthRoutes.GET("", handle.Health)
		healthRoutes.GET("/db", handle.HealthDB)
		healthRoutes.GET("/storage", handle.HealthStorage)
		healthRoutes.GET("/mq", handle.HealthMQ)
		healthRoutes.GET("/kv", handle.HealthKV)
	}
}
