// Package router binds URL paths to the handlers of pkg/internal/handle.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/internal/handle"
	"github.com/yeisme/sharevault/pkg/middleware"
)

// RegisterQuotaRoutes binds the plan catalog and the caller's usage.
func RegisterQuotaRoutes(g *gin.RouterGroup) {
	g.GET("/plans", handle.ListPlans)
	g.GET("/quota", middleware.RequireUser(), handle.GetQuota)
}

// RegisterAdminRoutes binds the provisioning endpoints used by the identity
// and billing providers. Every route needs the admin role.
func RegisterAdminRoutes(g *gin.RouterGroup) {
	admin := g.Group("/admin", middleware.RequireMinRole(middleware.RoleAdmin))
	{
		admin.POST("/users", handle.UpsertUser)
		admin.PUT("/users/:userId/plan", handle.SetUserPlan)
		admin.POST("/plans", handle.UpsertPlan)
		admin.POST("/sweep", handle.TriggerSweep)
	}
}
