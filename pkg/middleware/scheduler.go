package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/scheduler"
)

type schedulerKey struct{}

// SchedulerMiddleware injects sched into the request context.
func SchedulerMiddleware(sched *scheduler.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), schedulerKey{}, sched)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetScheduler returns the injected scheduler, or nil.
func GetScheduler(c *gin.Context) *scheduler.Scheduler {
	if sched, ok := c.Request.Context().Value(schedulerKey{}).(*scheduler.Scheduler); ok {
		return sched
	}

	return nil
}
