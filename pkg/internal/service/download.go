package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/storage/objstore"
	"github.com/yeisme/sharevault/pkg/metrics"
	"github.com/yeisme/sharevault/pkg/queue"
)

// DownloadRequest is a download signature presented by a client.
type DownloadRequest struct {
	Signature string
	Password  string
	// FileID narrows a share-wide signature to one file.
	FileID    string
	Requester queue.Requester
}

// DownloadGrant is an allowed download. One file streams as is, several as a zip.
type DownloadGrant struct {
	Share model.Share
	Files []model.File
}

// Archive reports whether the grant is served as a zip.
func (g *DownloadGrant) Archive() bool {
	return len(g.Files) > 1
}

// FileName is the name offered to the client.
func (g *DownloadGrant) FileName() string {
	if !g.Archive() {
		return g.Files[0].FileName
	}

	name := strings.TrimSpace(g.Share.Title)
	if name == "" {
		name = g.Share.ID
	}

	return sanitizeFilename(name) + ".zip"
}

// ContentType of the response body.
func (g *DownloadGrant) ContentType() string {
	if g.Archive() {
		return "application/zip"
	}

	return g.Files[0].Mimetype
}

// ContentLength is known for single files only.
func (g *DownloadGrant) ContentLength() int64 {
	if g.Archive() {
		return -1
	}

	return g.Files[0].Size
}

// DownloadService redeems download signatures and streams the granted files.
type DownloadService struct {
	db        *gorm.DB
	objects   objstore.Store
	tokens    *TokenService
	analytics *AnalyticsRecorder
	verify    PasswordVerifier
	now       func() time.Time
}

func NewDownloadService(deps Deps, tokens *TokenService, analytics *AnalyticsRecorder) *DownloadService {
	return &DownloadService{
		db:        deps.DB,
		objects:   deps.Objects,
		tokens:    tokens,
		analytics: analytics,
		verify:    deps.Verifier,
		now:       deps.Now,
	}
}

// Authorize consumes the signature, runs the access gate against the current
// share state and claims one download. The signature is spent even when access
// is denied; counters only move on an allow.
func (s *DownloadService) Authorize(ctx context.Context, req DownloadRequest) (grant *DownloadGrant, err error) {
	ctx, span := tracer.Start(ctx, "download.authorize")
	defer func() {
		result := "granted"
		if err != nil {
			result = "denied"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		metrics.DownloadsTotal.WithLabelValues(result).Inc()
		span.End()
	}()

	sig, err := s.tokens.RedeemDownload(ctx, req.Signature)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("share.id", sig.ShareID))

	tx := s.db.WithContext(ctx)

	share, settings, err := loadShareForGate(tx, sig.ShareID)
	if err != nil {
		return nil, err
	}

	decision := EvaluateAccess(share, settings, Credentials{Password: req.Password, SignatureGrant: true}, s.now(), s.verify)
	if !decision.Allowed {
		return nil, decision.Err()
	}

	fileID := req.FileID
	if sig.FileID != nil {
		if fileID != "" && fileID != *sig.FileID {
			return nil, fmt.Errorf("%w: signature does not cover file %s", ErrFileNotFound, fileID)
		}

		fileID = *sig.FileID
	}

	q := tx.Where("share_id = ?", share.ID)
	if fileID != "" {
		q = q.Where("id = ?", fileID)
	}

	var files []model.File
	if err := q.Order("created_at, id").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	if len(files) == 0 {
		return nil, ErrFileNotFound
	}

	if err := s.claim(tx, share, settings); err != nil {
		return nil, err
	}

	share.DownloadCount++

	payload := queue.DownloadRecordedPayload{ShareID: share.ID, Timestamp: s.now(), Requester: req.Requester}
	if len(files) == 1 {
		payload.FileID = files[0].ID
	}

	s.analytics.RecordDownload(ctx, payload)

	return &DownloadGrant{Share: *share, Files: files}, nil
}

// claim increments download_count unless the share was deleted or hit its
// limit since the gate ran.
func (s *DownloadService) claim(tx *gorm.DB, share *model.Share, settings *model.ShareSettings) error {
	q := tx.Model(&model.Share{}).Where("id = ?", share.ID)
	if settings != nil && settings.DownloadLimit != nil {
		q = q.Where("download_count < ?", *settings.DownloadLimit)
	}

	res := q.UpdateColumn("download_count", gorm.Expr("download_count + 1"))
	if res.Error != nil {
		return fmt.Errorf("claim download: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return ErrDeniedLimit
	}

	return nil
}

// Write streams the grant to w. Object reads go through the store's retry policy.
func (s *DownloadService) Write(ctx context.Context, w io.Writer, grant *DownloadGrant) error {
	if !grant.Archive() {
		return s.copyObject(ctx, w, &grant.Files[0])
	}

	zw := zip.NewWriter(w)
	names := make(map[string]int, len(grant.Files))

	for i := range grant.Files {
		f := &grant.Files[i]

		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     uniqueName(names, f.FileName),
			Method:   zip.Deflate,
			Modified: f.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("zip entry: %w", err)
		}

		if err := s.copyObject(ctx, entry, f); err != nil {
			return err
		}
	}

	return zw.Close()
}

func (s *DownloadService) copyObject(ctx context.Context, w io.Writer, f *model.File) error {
	body, _, err := s.objects.Get(ctx, f.ObjectKey)
	if err != nil {
		return fmt.Errorf("%w: get %s: %v", ErrStorage, f.ObjectKey, err)
	}
	defer body.Close()

	if _, err := io.Copy(w, body); err != nil {
		return fmt.Errorf("stream %s: %w", f.ObjectKey, err)
	}

	return nil
}

// uniqueName suffixes repeated names inside one archive: a.txt, a (1).txt, ...
func uniqueName(seen map[string]int, name string) string {
	n, ok := seen[name]
	seen[name] = n + 1

	if !ok {
		return name
	}

	ext := path.Ext(name)
	candidate := strings.TrimSuffix(name, ext) + " (" + strconv.Itoa(n) + ")" + ext

	return uniqueName(seen, candidate)
}
