package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/types"
	"github.com/yeisme/sharevault/pkg/metrics"
	"github.com/yeisme/sharevault/pkg/queue"
)

// VisitRequest opens a share page by custom slug or share id.
type VisitRequest struct {
	SlugOrID    string
	Password    string
	RequesterID string
	Requester   queue.Requester
}

// VisitService serves share pages: it runs the gate, counts the view and
// hands the visitor a fresh download signature.
type VisitService struct {
	db        *gorm.DB
	shares    *ShareService
	tokens    *TokenService
	analytics *AnalyticsRecorder
	verify    PasswordVerifier
	ttl       time.Duration
	now       func() time.Time
}

func NewVisitService(deps Deps, shares *ShareService, tokens *TokenService, analytics *AnalyticsRecorder) *VisitService {
	return &VisitService{
		db:        deps.DB,
		shares:    shares,
		tokens:    tokens,
		analytics: analytics,
		verify:    deps.Verifier,
		ttl:       deps.Config.Transfer.DownloadTTL,
		now:       deps.Now,
	}
}

// Visit evaluates access without a signature grant; the owner passes the
// visibility check through RequesterID.
func (s *VisitService) Visit(ctx context.Context, req VisitRequest) (resp *types.VisitResponse, err error) {
	ctx, span := tracer.Start(ctx, "visit")
	defer func() {
		result := "allowed"
		if err != nil {
			result = "denied"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		metrics.VisitsTotal.WithLabelValues(result).Inc()
		span.End()
	}()

	shareID, err := s.shares.ResolveShareID(ctx, req.SlugOrID)
	if err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx)

	share, settings, err := loadShareForGate(tx, shareID)
	if err != nil {
		return nil, err
	}

	creds := Credentials{Password: req.Password, RequesterID: req.RequesterID}
	if decision := EvaluateAccess(share, settings, creds, s.now(), s.verify); !decision.Allowed {
		return nil, decision.Err()
	}

	res := tx.Model(&model.Share{}).Where("id = ?", share.ID).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	if res.Error != nil {
		return nil, fmt.Errorf("count view: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return nil, ErrDeniedNotFound
	}

	var files []model.File
	if err := tx.Where("share_id = ?", share.ID).Order("created_at, id").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	s.analytics.RecordVisit(ctx, queue.VisitRecordedPayload{ShareID: share.ID, Timestamp: s.now(), Requester: req.Requester})

	sig, err := s.tokens.IssueDownload(ctx, share.ID, nil, s.ttl)
	if err != nil {
		return nil, err
	}

	resp = &types.VisitResponse{
		Share: types.PublicShareInfo{
			ID:          share.ID,
			Title:       share.Title,
			Description: share.Description,
			FileCount:   share.FileCount,
			Size:        share.Size,
		},
		Files:    toFileInfos(files),
		Download: *s.shares.downloadLink(sig),
	}

	if settings != nil {
		resp.Share.ExpiresAt = settings.ExpiresAt
	}

	return resp, nil
}
