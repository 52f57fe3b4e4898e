// Package app wires configuration, storage, services, the scheduler and the
// HTTP server into one process and runs them until the context ends.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/sharevault/pkg/api"
	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/jobs"
	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/storage"
	"github.com/yeisme/sharevault/pkg/log"
	"github.com/yeisme/sharevault/pkg/metrics"
	"github.com/yeisme/sharevault/pkg/middleware"
	"github.com/yeisme/sharevault/pkg/rule"
	"github.com/yeisme/sharevault/pkg/scheduler"
	"github.com/yeisme/sharevault/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

// EngineDeps are the collaborators of the HTTP engine. Manager and
// Scheduler may be nil, e.g. in handler tests.
type EngineDeps struct {
	Manager   *storage.Manager
	Services  *service.Services
	Scheduler *scheduler.Scheduler
}

// NewEngine builds the gin engine with the full middleware chain and routes.
func NewEngine(cfg *configs.AppConfig, deps EngineDeps) *gin.Engine {
	// switches gin binding to the rule tags
	rule.Engine()

	engine := gin.New()

	chain := []gin.HandlerFunc{
		gin.Recovery(),
		middleware.GinLoggerMiddleware(),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.CORSMiddleware(cfg.Server, cfg.Auth),
		// downloads stream zip or already compressed bytes with a fixed length
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/d/", "/u/", "/metrics"})),
		middleware.CircuitBreakerMiddleware(cfg.CircuitBreaker),
		middleware.ServicesMiddleware(deps.Services),
	}

	if deps.Manager != nil {
		chain = append(chain, middleware.StorageMiddleware(deps.Manager))
	}

	if deps.Scheduler != nil {
		chain = append(chain, middleware.SchedulerMiddleware(deps.Scheduler))
	}

	chain = append(chain,
		middleware.RoleMiddleware(cfg.Auth.RoleHeader),
		middleware.AuthMiddleware(cfg.Auth),
	)

	engine.Use(chain...)

	return api.RegisterGroup(engine, cfg)
}

// App is the running process.
type App struct {
	Engine   *gin.Engine
	config   *configs.AppConfig
	manager  *storage.Manager
	services *service.Services
	sched    *scheduler.Scheduler
}

// NewApp initializes tracing, metrics and storage, migrates the schema and
// builds the services from the loaded configuration.
func NewApp(ctx context.Context) (*App, error) {
	config := configs.GetConfig()

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	if err := tracing.InitTracer(config.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if err := metrics.InitMetrics(config.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	manager, err := storage.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	if err := Migrate(manager, config); err != nil {
		_ = manager.Close()
		return nil, err
	}

	svcs := service.New(service.DepsFromManager(manager, config))

	sched, err := scheduler.NewScheduler()
	if err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	if err := jobs.RegisterCronJobs(ctx, sched, svcs, config); err != nil {
		_ = sched.Stop()
		_ = manager.Close()

		return nil, err
	}

	engine := NewEngine(config, EngineDeps{
		Manager:   manager,
		Services:  svcs,
		Scheduler: sched,
	})

	return &App{
		Engine:   engine,
		config:   config,
		manager:  manager,
		services: svcs,
		sched:    sched,
	}, nil
}

// Migrate creates the schema and seeds the baseline plan.
func Migrate(manager *storage.Manager, config *configs.AppConfig) error {
	gdb := manager.GetDBClient().GetDB()

	if err := model.Migrate(gdb); err != nil {
		return err
	}

	return model.SeedBaselinePlan(gdb, int64(config.Transfer.BaselinePlanID), config.Transfer.BaselineQuotaMB)
}

// Run serves until ctx ends, then shuts every part down in reverse order.
func (a *App) Run(ctx context.Context) error {
	l := log.Logger()

	metricsSrv, err := metrics.StartMetricsServer(a.config.Metrics, a.Engine)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port),
		Handler:           a.Engine,
		ReadHeaderTimeout: a.config.Server.GetTimeoutDuration(),
		ReadTimeout:       a.config.Server.GetTransferTimeout(),
		WriteTimeout:      a.config.Server.GetTransferTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.Info().Str("addr", srv.Addr).Msg("http server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	})

	a.sched.Start()

	if mqc := a.manager.GetMQClient(); mqc != nil && a.config.Events.Enabled && a.config.Events.Analytics.Consume {
		g.Go(func() error {
			return a.services.Analytics.ConsumeAnalytics(gctx, mqc)
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		l.Info().Msg("shutting down")

		err := srv.Shutdown(shutdownCtx)

		if metricsSrv != nil {
			err = errors.Join(err, metricsSrv.Shutdown(shutdownCtx))
		}

		return err
	})

	err = g.Wait()

	return errors.Join(err, a.Close(context.WithoutCancel(ctx)))
}

// Close stops the scheduler, drains background analytics writes and
// releases storage.
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err := a.sched.Stop()

	a.services.Analytics.Wait()

	err = errors.Join(err, tracing.ShutdownTracer(ctx))

	return errors.Join(err, a.manager.Close())
}
