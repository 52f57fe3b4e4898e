// Package service implements quota-bounded file sharing: the quota ledger,
// signature issuance and redemption, the share access gate and the
// upload/download orchestration that ties them together.
//
// Services are built once per process from Deps and reach handlers through
// the request context:
//
//	svcs := service.New(service.DepsFromManager(mgr, configs.GetConfig()))
//	ctx = service.WithServices(ctx, svcs)
//	...
//	info, err := service.FromContext(ctx).Shares.CreateShare(ctx, owner, &req)
package service

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/yeisme/sharevault/pkg/cache"
	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/storage"
	"github.com/yeisme/sharevault/pkg/internal/storage/kv"
	"github.com/yeisme/sharevault/pkg/internal/storage/objstore"
)

var tracer = otel.Tracer("github.com/yeisme/sharevault/pkg/internal/service")

// Deps are the collaborators of every service. KV, Publisher and Geo may be nil.
type Deps struct {
	DB        *gorm.DB
	Objects   objstore.Store
	KV        kv.KVStore
	Publisher message.Publisher
	Geo       GeoLocator
	// Spool holds uploads before they reach the object store.
	Spool  afero.Fs
	Config configs.AppConfig
	// Now is the clock; tests pin it.
	Now func() time.Time
	// Verifier checks share passwords, bcrypt when nil.
	Verifier PasswordVerifier
	// Hasher hashes share passwords, bcrypt when nil.
	Hasher PasswordHasher
}

// DepsFromManager wires Deps to the process storage manager.
func DepsFromManager(mgr *storage.Manager, cfg *configs.AppConfig) Deps {
	deps := Deps{
		DB:      mgr.GetDBClient().GetDB(),
		Objects: mgr.GetObjectStore(),
		Spool:   afero.NewOsFs(),
		Config:  *cfg,
	}

	if kvc := mgr.GetKVClient(); kvc != nil {
		deps.KV = kvc
	}

	if mqc := mgr.GetMQClient(); mqc != nil {
		deps.Publisher = mqc.Publisher()
	}

	if cfg.Geo.Enabled {
		deps.Geo = NewHTTPGeoLocator(cfg.Geo, deps.KV)
	}

	return deps
}

// Services bundles every service built from one Deps.
type Services struct {
	Plans     *PlanService
	Users     *UserService
	Ledger    *QuotaLedger
	Tokens    *TokenService
	Shares    *ShareService
	Files     *FileService
	Uploads   *UploadService
	Downloads *DownloadService
	Visits    *VisitService
	Analytics *AnalyticsRecorder
	Sweeper   *SweepService
}

// New builds the services.
func New(deps Deps) *Services {
	deps = deps.withDefaults()

	var slugs, catalog *cache.Cache
	if deps.KV != nil {
		slugs = cache.NewCache(deps.KV, "slug")
		catalog = cache.NewCache(deps.KV, "plans")
	}

	events := newEventBus(deps.Publisher, deps.Config.Events)
	plans := NewPlanService(deps.DB, int64(deps.Config.Transfer.BaselinePlanID), deps.Now, catalog)
	ledger := NewQuotaLedger(deps.DB, plans, deps.Now)
	tokens := NewTokenService(deps.DB, ledger,
		WithClock(deps.Now),
		WithLimits(deps.Config.Transfer.MaxFilesPerIntent, deps.Config.Transfer.MaxSignatureTTL),
	)
	analytics := NewAnalyticsRecorder(deps.DB, events, deps.Geo, deps.Now)
	files := NewFileService(deps.DB, deps.Objects, ledger)
	shares := NewShareService(deps, ledger, tokens, files, slugs)

	return &Services{
		Plans:     plans,
		Users:     NewUserService(deps.DB),
		Ledger:    ledger,
		Tokens:    tokens,
		Shares:    shares,
		Files:     files,
		Uploads:   NewUploadService(deps, ledger, tokens, events),
		Downloads: NewDownloadService(deps, tokens, analytics),
		Visits:    NewVisitService(deps, shares, tokens, analytics),
		Analytics: analytics,
		Sweeper:   NewSweepService(deps.DB, ledger, deps.Config.Transfer.SweepBatchSize, deps.Config.Transfer.StaleUploadAfter),
	}
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}

	if d.Verifier == nil {
		d.Verifier = BcryptVerifier
	}

	if d.Hasher == nil {
		d.Hasher = BcryptHasher
	}

	if d.Spool == nil {
		d.Spool = afero.NewOsFs()
	}

	return d
}

type servicesKey struct{}

// WithServices stores s in ctx.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// FromContext returns the services stored by WithServices, or nil.
func FromContext(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}
