package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/context"
	"github.com/yeisme/sharevault/pkg/internal/storage"
)

// StorageMiddleware injects the storage manager for the health handlers.
func StorageMiddleware(manager *storage.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithStorageManager(c.Request.Context(), manager)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
