package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/internal/handle"
	"github.com/yeisme/sharevault/pkg/middleware"
)

// RegisterSharesRoutes binds share management, upload intents and file deletion.
func RegisterSharesRoutes(g *gin.RouterGroup) {
	owner := g.Group("", middleware.RequireUser())

	sharesRoutes := owner.Group("/shares")
	{
		sharesRoutes.POST("", handle.CreateShare)
		sharesRoutes.GET("", handle.ListShares)
		sharesRoutes.GET("/:shareId", handle.GetShare)
		sharesRoutes.PATCH("/:shareId/settings", handle.UpdateShareSettings)
		sharesRoutes.DELETE("/:shareId", handle.DeleteShare)
		sharesRoutes.POST("/:shareId/upload-intents", handle.CreateUploadIntent)
		sharesRoutes.POST("/:shareId/download-links", handle.CreateDownloadLink)
	}

	owner.GET("/upload-intents/:signatureId", handle.GetUploadIntent)
	owner.DELETE("/files/:fileId", handle.DeleteFile)
}

// RegisterCapabilityRoutes binds the signature-bearing endpoints at the root.
// They need no identity; the signature or the share policy is the credential.
func RegisterCapabilityRoutes(e *gin.Engine, limit gin.HandlerFunc) {
	e.POST("/u/:signature", limit, handle.Upload)
	e.GET("/d/:signature", limit, handle.Download)
	e.GET("/s/:slug", limit, handle.Visit)
}
