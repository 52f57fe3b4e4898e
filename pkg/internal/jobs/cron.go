package jobs

import (
	"context"
	"time"

	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/log"
	"github.com/yeisme/sharevault/pkg/scheduler"
)

// RegisterCronJobs adds every periodic job to sched.
func RegisterCronJobs(ctx context.Context, sched *scheduler.Scheduler, svcs *service.Services, cfg *configs.AppConfig) error {
	return sched.AddCron(ctx, JobSweep, cfg.Transfer.SweepCron, SweepJob(svcs.Sweeper))
}

// SweepJob runs one sweep pass against the wall clock.
func SweepJob(sweeper *service.SweepService) scheduler.Job {
	return func(ctx context.Context) error {
		started := time.Now()

		if _, err := sweeper.Sweep(ctx, started.UTC()); err != nil {
			return err
		}

		log.Logger().Debug().Dur("took", time.Since(started)).Str("job", JobSweep).Msg("job done")

		return nil
	}
}
