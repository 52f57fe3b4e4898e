package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/middleware"
)

// SchedulerJobs lists the periodic jobs and their last outcome.
//
//	@Summary	Scheduled jobs
//	@Tags		scheduler
//	@Produce	json
//	@Success	200	{object}	map[string][]scheduler.JobInfo
//	@Router		/api/v1/scheduler/jobs [get]
func SchedulerJobs(c *gin.Context) {
	sched := middleware.GetScheduler(c)
	if sched == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "scheduler not running"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": sched.GetJobInfos()})
}
