package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/middleware"
)

func newEngine(conf configs.AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(middleware.RoleMiddleware(conf.RoleHeader), middleware.AuthMiddleware(conf))

	whoami := func(c *gin.Context) {
		id, ok := middleware.GetIdentity(c)
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}

		c.String(http.StatusOK, id.UserID+"/"+id.Email+"/"+middleware.GetRole(c).String())
	}

	e.GET("/api/v1/me", whoami)
	e.GET("/public/me", whoami)
	e.GET("/owner", middleware.RequireUser(), whoami)
	e.GET("/admin", middleware.RequireMinRole(middleware.RoleAdmin), whoami)

	return e
}

func serve(e *gin.Engine, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec
}

func TestAuthMiddleware(t *testing.T) {
	conf := configs.Defaults().Auth
	conf.SkipPaths = []string{"/public"}

	e := newEngine(conf)

	rec := serve(e, "/api/v1/me")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, "/api/v1/me", "X-User-ID", " alice ", "X-User-Email", "alice@example.com")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice/alice@example.com/user", rec.Body.String())

	rec = serve(e, "/public/me")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())

	rec = serve(e, "/api/v1/me?user=bob")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "query identities need dev mode")
}

func TestAuthDisabledStillReadsHeaders(t *testing.T) {
	conf := configs.Defaults().Auth
	conf.Enabled = false
	conf.DevAllowQuery = true

	e := newEngine(conf)

	assert.Equal(t, "anonymous", serve(e, "/api/v1/me").Body.String())
	assert.Equal(t, "bob//user", serve(e, "/api/v1/me?user=bob").Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(e, "/owner").Code)
	assert.Equal(t, http.StatusOK, serve(e, "/owner", "X-User-ID", "bob").Code)
}

func TestRequireMinRole(t *testing.T) {
	conf := configs.Defaults().Auth
	conf.Enabled = false

	e := newEngine(conf)

	assert.Equal(t, http.StatusForbidden, serve(e, "/admin").Code)
	assert.Equal(t, http.StatusForbidden, serve(e, "/admin", "X-Role", "superuser").Code)

	rec := serve(e, "/admin", "X-Role", "Admin", "X-User-ID", "ops")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops//admin", rec.Body.String())
}
