package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/configs"
)

// CORSMiddleware lets browser clients call the API and the capability endpoints.
func CORSMiddleware(server configs.ServerConfig, auth configs.AuthConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowFiles = true
	config.AddAllowHeaders("Authorization", "X-Share-Password")

	for _, h := range []string{auth.UserHeader, auth.EmailHeader, auth.NameHeader, auth.RoleHeader} {
		if h != "" {
			config.AddAllowHeaders(h)
		}
	}

	config.AddAllowMethods("PATCH")
	config.AddExposeHeaders("Content-Disposition", "Content-Length", "X-Cache")

	if server.Debug {
		config.AllowWebSockets = true
	}

	return cors.New(config)
}
