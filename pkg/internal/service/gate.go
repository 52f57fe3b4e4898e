package service

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yeisme/sharevault/pkg/internal/model"
)

// Credentials are what a requester brings to a share.
type Credentials struct {
	Password string
	// RequesterID is the authenticated user, empty for anonymous visitors.
	RequesterID string
	// SignatureGrant is set when the request carries a redeemed download signature.
	SignatureGrant bool
}

// PasswordVerifier reports whether password matches hash.
type PasswordVerifier func(hash, password string) bool

// PasswordHasher hashes a share password for storage.
type PasswordHasher func(password string) (string, error)

// BcryptVerifier compares with bcrypt.
func BcryptVerifier(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// BcryptHasher hashes with bcrypt at the default cost.
func BcryptHasher(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(h), nil
}

// Decision is the gate's verdict. Reason is empty when Allowed.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Err returns nil for an allow and the matching AccessDeniedError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}

	return &AccessDeniedError{Reason: d.Reason}
}

func deny(r DenyReason) Decision { return Decision{Reason: r} }

// EvaluateAccess decides whether a request may see share. It reads nothing
// but its arguments, so equal inputs always give equal decisions. The checks
// run in a fixed order and the first failing one names the reason:
// deleted, expired, download limit, password, visibility.
// settings may be nil for a share without a policy.
func EvaluateAccess(share *model.Share, settings *model.ShareSettings, creds Credentials, now time.Time, verify PasswordVerifier) Decision {
	if share == nil || share.Deleted() {
		return deny(DenyNotFound)
	}

	if settings.Expired(now) {
		return deny(DenyExpired)
	}

	if settings.Exhausted(share.DownloadCount) {
		return deny(DenyLimitReached)
	}

	if settings.HasPassword() {
		if creds.Password == "" {
			return deny(DenyPasswordRequired)
		}

		if verify == nil {
			verify = BcryptVerifier
		}

		if !verify(settings.PasswordHash, creds.Password) {
			return deny(DenyPasswordMismatch)
		}
	}

	if !share.IsPublic && !creds.SignatureGrant && (creds.RequesterID == "" || creds.RequesterID != share.UserID) {
		return deny(DenyForbidden)
	}

	return Decision{Allowed: true}
}
