package handle

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/configs"
	ctxPkg "github.com/yeisme/sharevault/pkg/context"
)

const timeout = 2 * time.Second

// healthProbeKey is read from the kv store; a miss is a healthy answer.
const healthProbeKey = "health:probe"

func unhealthy(c *gin.Context, component, msg string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"component": component, "status": "unhealthy", "error": msg})
}

// Health reports liveness and the version.
//
//	@Summary	Health
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/api/v1/health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": configs.AppName, "version": configs.AppVersion})
}

// HealthDB pings the database.
//
//	@Summary	Database health
//	@Tags		health
//	@Router		/api/v1/health/db [get]
func HealthDB(c *gin.Context) {
	dbc := ctxPkg.GetDBClient(c.Request.Context())
	if dbc == nil || dbc.DB == nil {
		unhealthy(c, "db", "db client not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	if err := dbc.Ping(ctx); err != nil {
		unhealthy(c, "db", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "db", "status": "ok"})
}

// HealthStorage pings the object store.
//
//	@Summary	Object store health
//	@Tags		health
//	@Router		/api/v1/health/storage [get]
func HealthStorage(c *gin.Context) {
	store := ctxPkg.GetObjectStore(c.Request.Context())
	if store == nil {
		unhealthy(c, "storage", "object store not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	if err := store.Ping(ctx); err != nil {
		unhealthy(c, "storage", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "storage", "status": "ok", "backend": store.Name()})
}

// HealthMQ reports whether the event bus is connected. A disabled bus is healthy.
//
//	@Summary	Event bus health
//	@Tags		health
//	@Router		/api/v1/health/mq [get]
func HealthMQ(c *gin.Context) {
	mqc := ctxPkg.GetMQClient(c.Request.Context())
	if mqc == nil {
		c.JSON(http.StatusOK, gin.H{"component": "mq", "status": "disabled"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "mq", "status": "ok", "backend": mqc.Type()})
}

// HealthKV probes the key/value store.
//
//	@Summary	KV health
//	@Tags		health
//	@Router		/api/v1/health/kv [get]
func HealthKV(c *gin.Context) {
	kvc := ctxPkg.GetKVClient(c.Request.Context())
	if kvc == nil {
		unhealthy(c, "kv", "kv client not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	if _, err := kvc.Exists(ctx, healthProbeKey); err != nil {
		unhealthy(c, "kv", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "kv", "status": "ok", "backend": kvc.Type()})
}
