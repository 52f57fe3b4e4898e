package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/storage/objstore"
	"github.com/yeisme/sharevault/pkg/internal/types"
	nlog "github.com/yeisme/sharevault/pkg/log"
	"github.com/yeisme/sharevault/pkg/metrics"
	"github.com/yeisme/sharevault/pkg/queue"
)

const defaultContentType = "application/octet-stream"

// FilePart is one incoming file of an upload.
type FilePart struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// PartReader yields the files of an upload and returns io.EOF after the last one.
type PartReader interface {
	NextPart() (*FilePart, error)
}

// SliceParts serves a fixed list of parts.
type SliceParts []*FilePart

func (p *SliceParts) NextPart() (*FilePart, error) {
	if len(*p) == 0 {
		return nil, io.EOF
	}

	part := (*p)[0]
	*p = (*p)[1:]

	return part, nil
}

// UploadService runs an upload from redemption to commit or release.
type UploadService struct {
	db        *gorm.DB
	objects   objstore.Store
	ledger    *QuotaLedger
	tokens    *TokenService
	events    *eventBus
	spool     afero.Fs
	spoolDir  string
	server    configs.ServerConfig
	uploadTTL time.Duration
	now       func() time.Time
}

func NewUploadService(deps Deps, ledger *QuotaLedger, tokens *TokenService, events *eventBus) *UploadService {
	dir := deps.Config.Transfer.SpoolDir
	if dir == "" {
		dir = os.TempDir()
	}

	return &UploadService{
		db:        deps.DB,
		objects:   deps.Objects,
		ledger:    ledger,
		tokens:    tokens,
		events:    events,
		spool:     deps.Spool,
		spoolDir:  dir,
		server:    deps.Config.Server,
		uploadTTL: deps.Config.Transfer.UploadTTL,
		now:       deps.Now,
	}
}

// CreateIntent issues an upload signature for the owner's share.
func (s *UploadService) CreateIntent(ctx context.Context, owner, shareID string, req *types.CreateUploadIntentRequest) (*types.UploadIntentResponse, error) {
	ttl := s.uploadTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	sig, err := s.tokens.IssueUpload(ctx, IssueUploadParams{
		OwnerID:            owner,
		ShareID:            shareID,
		ExpectedFileCount:  req.ExpectedFileCount,
		ExpectedFileSizeMB: req.ExpectedFileSizeMB,
		TTL:                ttl,
	})
	if err != nil {
		return nil, err
	}

	return &types.UploadIntentResponse{
		ID:                 sig.ID,
		ShareID:            sig.ShareID,
		Signature:          sig.Signature,
		URL:                s.server.PublicURL("/u/" + sig.Signature),
		ExpiresAt:          sig.Expiry,
		ExpectedFileCount:  sig.ExpectedFileCount,
		ExpectedFileSizeMB: sig.ExpectedFileSize,
	}, nil
}

// IntentStatus derives the state of an upload intent from its signature and reservation.
func (s *UploadService) IntentStatus(ctx context.Context, owner, intentID string) (*types.UploadIntentStatus, error) {
	sig, err := s.tokens.UploadSignature(ctx, intentID)
	if err != nil {
		return nil, err
	}

	if sig.UserID != owner {
		return nil, ErrNotOwner
	}

	res, err := s.ledger.Reservation(ctx, sig.ReservationID)
	if err != nil {
		return nil, err
	}

	out := &types.UploadIntentStatus{
		ID:         sig.ID,
		ShareID:    sig.ShareID,
		ExpiresAt:  sig.Expiry,
		UsedAt:     sig.UsedAt,
		ReservedMB: res.AmountMB,
		ChargedMB:  res.ChargedMB,
	}

	switch {
	case sig.Status == model.SignatureExpired:
		out.State = types.UploadExpired
	case sig.Status == model.SignatureUnused && !s.now().Before(sig.Expiry):
		out.State = types.UploadExpired
	case sig.Status == model.SignatureUnused:
		out.State = types.UploadReserved
	case res.Status == model.ReservationCommitted:
		out.State = types.UploadCommitted
	case res.Status == model.ReservationReleased:
		out.State = types.UploadReleased
	default:
		out.State = types.UploadUploading
	}

	return out, nil
}

// storedFile is a file that reached the object store but is not committed yet.
type storedFile struct {
	id          string
	key         string
	name        string
	contentType string
	hash        string
	size        int64
}

// Upload redeems signature and stores every part. Either all files are
// committed together and the whole hold stays charged, or the stored objects
// are removed and the reservation is released in full. The signature stays
// used either way.
func (s *UploadService) Upload(ctx context.Context, signature string, parts PartReader) (result *types.UploadResult, err error) {
	ctx, span := tracer.Start(ctx, "upload")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.UploadsTotal.WithLabelValues("failed").Inc()
		} else {
			metrics.UploadsTotal.WithLabelValues("committed").Inc()
		}

		span.End()
	}()

	sig, err := s.tokens.RedeemUpload(ctx, signature)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("share.id", sig.ShareID), attribute.String("reservation.id", sig.ReservationID))

	var stored []storedFile

	share, _, err := loadShareForGate(s.db.WithContext(ctx), sig.ShareID)
	if err != nil {
		return nil, s.abort(ctx, sig, stored, err)
	}

	if share == nil || share.Deleted() {
		return nil, s.abort(ctx, sig, stored, fmt.Errorf("%w: %s", ErrShareNotFound, sig.ShareID))
	}

	budget := sig.ExpectedFileSize * MiB

	for {
		part, err := parts.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, s.abort(ctx, sig, stored, fmt.Errorf("read upload: %w", err))
		}

		if len(stored) >= sig.ExpectedFileCount {
			return nil, s.abort(ctx, sig, stored, fmt.Errorf("%w: more than %d files", ErrUploadLimit, sig.ExpectedFileCount))
		}

		f, err := s.storePart(ctx, share.ID, part, &budget)
		if f != nil {
			stored = append(stored, *f)
		}

		if err != nil {
			return nil, s.abort(ctx, sig, stored, err)
		}
	}

	if len(stored) == 0 {
		return nil, s.abort(ctx, sig, stored, validationf("upload contains no files"))
	}

	result, err = s.commit(ctx, sig, stored)
	if err != nil {
		return nil, s.abort(ctx, sig, stored, err)
	}

	return result, nil
}

// storePart spools one part to a temporary file while hashing it, then pushes
// it to the object store. budget is the number of bytes still allowed.
// A non-nil storedFile is returned whenever an object may exist in the store.
func (s *UploadService) storePart(ctx context.Context, shareID string, part *FilePart, budget *int64) (*storedFile, error) {
	tmp, err := afero.TempFile(s.spool, s.spoolDir, "sharevault-upload-*")
	if err != nil {
		return nil, fmt.Errorf("%w: spool: %v", ErrStorage, err)
	}

	defer func() {
		_ = tmp.Close()
		_ = s.spool.Remove(tmp.Name())
	}()

	hasher := sha256.New()

	n, err := io.Copy(io.MultiWriter(tmp, hasher), io.LimitReader(ctxReader{ctx: ctx, r: part.Body}, *budget+1))
	if err != nil {
		return nil, fmt.Errorf("read file %q: %w", part.Name, err)
	}

	if n > *budget {
		return nil, fmt.Errorf("%w: files exceed the declared size", ErrUploadLimit)
	}

	*budget -= n

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: rewind spool: %v", ErrStorage, err)
	}

	contentType := part.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	id := uuid.NewString()
	f := &storedFile{
		id:          id,
		key:         objstore.ShareKey(shareID, id),
		name:        sanitizeFilename(part.Name),
		contentType: contentType,
		hash:        hex.EncodeToString(hasher.Sum(nil)),
		size:        n,
	}

	if err := s.objects.Put(ctx, f.key, tmp, n, contentType); err != nil {
		if ctx.Err() != nil {
			return f, ctx.Err()
		}

		return f, fmt.Errorf("%w: put %s: %v", ErrStorage, f.key, err)
	}

	metrics.UploadedBytes.Add(float64(n))

	return f, nil
}

// commit marks the hold final and inserts the files and counters in one
// transaction. The whole hold stays charged. Each file carries the difference
// of the rounded running totals and the last one also takes the unused rest
// of the hold, so the per-file charges add up to the hold and deleting the
// files frees all of it.
func (s *UploadService) commit(ctx context.Context, sig *model.UploadSignature, stored []storedFile) (*types.UploadResult, error) {
	var total int64
	for i := range stored {
		total += stored[i].size
	}

	charged := sig.ExpectedFileSize
	rows := make([]model.File, 0, len(stored))

	var cum, prevMB int64

	for i := range stored {
		cum += stored[i].size
		curMB := mbCeil(cum)

		rows = append(rows, model.File{
			UUIDModel: model.UUIDModel{ID: stored[i].id},
			ShareID:   sig.ShareID,
			FileName:  stored[i].name,
			Mimetype:  stored[i].contentType,
			Hash:      stored[i].hash,
			Size:      stored[i].size,
			QuotaMB:   curMB - prevMB,
			ObjectKey: stored[i].key,
		})

		prevMB = curMB
	}

	// the byte budget keeps prevMB <= charged
	rows[len(rows)-1].QuotaMB += charged - prevMB

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// a concurrent DeleteShare either sees these files or makes us fail
		if _, err := lockLiveShare(tx, sig.ShareID); err != nil {
			return err
		}

		if err := s.ledger.WithTx(tx).Commit(ctx, sig.ReservationID, charged); err != nil {
			return err
		}

		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert files: %w", err)
		}

		res := tx.Model(&model.Share{}).Where("id = ?", sig.ShareID).
			UpdateColumns(map[string]any{
				"file_count": gorm.Expr("file_count + ?", len(rows)),
				"size":       gorm.Expr("size + ?", total),
			})
		if res.Error != nil {
			return fmt.Errorf("update share counters: %w", res.Error)
		}

		// deleted while the bytes were in flight
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrShareNotFound, sig.ShareID)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	files := make([]queue.UploadFile, 0, len(rows))
	for i := range rows {
		files = append(files, queue.UploadFile{FileID: rows[i].ID, FileName: rows[i].FileName, Size: rows[i].Size, Hash: rows[i].Hash})
	}

	s.events.uploadCommitted(ctx, queue.UploadCommittedPayload{
		ShareID:       sig.ShareID,
		UserID:        sig.UserID,
		ReservationID: sig.ReservationID,
		ChargedMB:     charged,
		Files:         files,
	})

	nlog.Logger().Info().
		Str("share_id", sig.ShareID).
		Int("files", len(rows)).
		Int64("bytes", total).
		Int64("charged_mb", charged).
		Msg("upload committed")

	return &types.UploadResult{
		ShareID:   sig.ShareID,
		Files:     toFileInfos(rows),
		ChargedMB: charged,
	}, nil
}

// abort compensates a failed upload: stored objects are deleted and the
// reservation is released. It returns cause. Compensation runs even when ctx
// is canceled, since a client abort is one of the causes.
func (s *UploadService) abort(ctx context.Context, sig *model.UploadSignature, stored []storedFile, cause error) error {
	ctx = context.WithoutCancel(ctx)
	l := nlog.Logger()

	for i := range stored {
		if err := s.objects.Delete(ctx, stored[i].key); err != nil && !errors.Is(err, objstore.ErrNotFound) {
			l.Warn().Err(err).Str("key", stored[i].key).Msg("orphaned object left behind")
		}
	}

	if err := s.ledger.Release(ctx, sig.ReservationID); err != nil {
		// the sweep may have released a stale hold already
		l.Error().Err(err).Str("reservation_id", sig.ReservationID).Msg("release after failed upload")
	} else {
		s.events.uploadReleased(ctx, queue.UploadReleasedPayload{
			ShareID:       sig.ShareID,
			UserID:        sig.UserID,
			ReservationID: sig.ReservationID,
			ReleasedMB:    sig.ExpectedFileSize,
			Reason:        cause.Error(),
		})
	}

	l.Warn().Err(cause).Str("share_id", sig.ShareID).Int("stored", len(stored)).Msg("upload released")

	return cause
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
