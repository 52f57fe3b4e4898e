package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/storage/db"
	"github.com/yeisme/sharevault/pkg/metrics"
)

const (
	defaultSignatureAttempts = 5
	signatureSavepoint       = "sv_signature"
)

// TokenService issues and redeems single-use upload and download signatures.
// Redemption is one conditional UPDATE, so of any number of concurrent
// redeemers exactly one wins.
type TokenService struct {
	db       *gorm.DB
	ledger   *QuotaLedger
	now      func() time.Time
	generate func() (string, error)
	attempts int
	maxFiles int
	maxTTL   time.Duration
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces the clock.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// WithSignatureGenerator replaces the random signature source.
func WithSignatureGenerator(gen func() (string, error)) TokenOption {
	return func(s *TokenService) { s.generate = gen }
}

// WithLimits caps expected_file_count and signature lifetimes. Zero keeps the cap off.
func WithLimits(maxFiles int, maxTTL time.Duration) TokenOption {
	return func(s *TokenService) {
		s.maxFiles = maxFiles
		s.maxTTL = maxTTL
	}
}

func NewTokenService(gdb *gorm.DB, ledger *QuotaLedger, opts ...TokenOption) *TokenService {
	s := &TokenService{
		db:       gdb,
		ledger:   ledger,
		now:      func() time.Time { return time.Now().UTC() },
		generate: newSignature,
		attempts: defaultSignatureAttempts,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// IssueUploadParams describes an upload intent.
type IssueUploadParams struct {
	OwnerID            string
	ShareID            string
	ExpectedFileCount  int
	ExpectedFileSizeMB int64
	TTL                time.Duration
}

func (s *TokenService) checkTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return validationf("signature lifetime must be positive")
	}

	if s.maxTTL > 0 && ttl > s.maxTTL {
		return validationf("signature lifetime %s exceeds the maximum %s", ttl, s.maxTTL)
	}

	return nil
}

// IssueUpload reserves the expected size against the owner and inserts the
// signature in the same transaction: no signature exists without its hold.
func (s *TokenService) IssueUpload(ctx context.Context, p IssueUploadParams) (*model.UploadSignature, error) {
	if p.ExpectedFileCount < 1 {
		return nil, validationf("expected_file_count must be at least 1")
	}

	if s.maxFiles > 0 && p.ExpectedFileCount > s.maxFiles {
		return nil, validationf("expected_file_count may not exceed %d", s.maxFiles)
	}

	if p.ExpectedFileSizeMB < 1 {
		return nil, validationf("expected_file_size must be at least 1 MB")
	}

	if err := s.checkTTL(p.TTL); err != nil {
		return nil, err
	}

	var sig *model.UploadSignature

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		share, err := loadOwnedShare(tx, p.OwnerID, p.ShareID)
		if err != nil {
			return err
		}

		res, err := s.ledger.WithTx(tx).Reserve(ctx, p.OwnerID, p.ExpectedFileSizeMB)
		if err != nil {
			return err
		}

		row := &model.UploadSignature{
			ShareID:           share.ID,
			UserID:            p.OwnerID,
			ReservationID:     res.ID,
			Expiry:            s.now().Add(p.TTL),
			ExpectedFileCount: p.ExpectedFileCount,
			ExpectedFileSize:  p.ExpectedFileSizeMB,
			Status:            model.SignatureUnused,
		}

		if err := s.insertUnique(tx, &row.Signature, row); err != nil {
			return err
		}

		sig = row

		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.SignaturesIssued.WithLabelValues("upload").Inc()

	return sig, nil
}

// RedeemUpload marks the signature used. It fails with ErrTokenNotFound,
// ErrTokenAlreadyUsed or ErrTokenExpired.
func (s *TokenService) RedeemUpload(ctx context.Context, signature string) (*model.UploadSignature, error) {
	var row model.UploadSignature
	if err := s.redeem(ctx, &model.UploadSignature{}, signature, &row); err != nil {
		return nil, err
	}

	return &row, nil
}

// IssueDownload inserts a download signature for a live share, optionally
// restricted to one of its live files.
func (s *TokenService) IssueDownload(ctx context.Context, shareID string, fileID *string, ttl time.Duration) (*model.DownloadSignature, error) {
	if err := s.checkTTL(ttl); err != nil {
		return nil, err
	}

	var sig *model.DownloadSignature

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadLiveShare(tx, shareID); err != nil {
			return err
		}

		if fileID != nil {
			var n int64
			if err := tx.Model(&model.File{}).Where("id = ? AND share_id = ?", *fileID, shareID).Count(&n).Error; err != nil {
				return err
			}

			if n == 0 {
				return fmt.Errorf("%w: %s", ErrFileNotFound, *fileID)
			}
		}

		row := &model.DownloadSignature{
			ShareID: shareID,
			FileID:  fileID,
			Expiry:  s.now().Add(ttl),
			Status:  model.SignatureUnused,
		}

		if err := s.insertUnique(tx, &row.Signature, row); err != nil {
			return err
		}

		sig = row

		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.SignaturesIssued.WithLabelValues("download").Inc()

	return sig, nil
}

// RedeemDownload mirrors RedeemUpload.
func (s *TokenService) RedeemDownload(ctx context.Context, signature string) (*model.DownloadSignature, error) {
	var row model.DownloadSignature
	if err := s.redeem(ctx, &model.DownloadSignature{}, signature, &row); err != nil {
		return nil, err
	}

	return &row, nil
}

// UploadSignature loads an upload signature by row id.
func (s *TokenService) UploadSignature(ctx context.Context, id string) (*model.UploadSignature, error) {
	var row model.UploadSignature

	err := s.db.WithContext(ctx).Take(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrIntentNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("lookup upload signature: %w", err)
	}

	return &row, nil
}

// insertUnique assigns a fresh signature and inserts row. A collision on the
// unique index rolls back to a savepoint and retries with new randomness.
func (s *TokenService) insertUnique(tx *gorm.DB, field *string, row any) error {
	for range s.attempts {
		sig, err := s.generate()
		if err != nil {
			return fmt.Errorf("generate signature: %w", err)
		}

		*field = sig

		if err := tx.SavePoint(signatureSavepoint).Error; err != nil {
			return fmt.Errorf("savepoint: %w", err)
		}

		err = tx.Create(row).Error
		if err == nil {
			return nil
		}

		if !db.IsDuplicate(err) {
			return fmt.Errorf("insert signature: %w", err)
		}

		if err := tx.RollbackTo(signatureSavepoint).Error; err != nil {
			return fmt.Errorf("rollback to savepoint: %w", err)
		}
	}

	return fmt.Errorf("no unique signature after %d attempts", s.attempts)
}

// redeem flips status unused -> used when the signature has not expired and
// explains a failed flip by inspecting the row.
func (s *TokenService) redeem(ctx context.Context, m any, signature string, dest any) error {
	if signature == "" {
		return ErrTokenNotFound
	}

	now := s.now()
	tx := s.db.WithContext(ctx)

	res := tx.Model(m).
		Where("signature = ? AND status = ? AND expiry > ?", signature, model.SignatureUnused, now).
		Updates(map[string]any{"status": model.SignatureUsed, "used_at": now})
	if res.Error != nil {
		return fmt.Errorf("redeem signature: %w", res.Error)
	}

	err := tx.Where("signature = ?", signature).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTokenNotFound
	}

	if err != nil {
		return fmt.Errorf("lookup signature: %w", err)
	}

	if res.RowsAffected == 1 {
		return nil
	}

	switch statusOf(dest) {
	case model.SignatureUsed:
		return ErrTokenAlreadyUsed
	default:
		// expired by the sweep, or unused with a past expiry
		return ErrTokenExpired
	}
}

func statusOf(row any) model.SignatureStatus {
	switch r := row.(type) {
	case *model.UploadSignature:
		return r.Status
	case *model.DownloadSignature:
		return r.Status
	default:
		return ""
	}
}
