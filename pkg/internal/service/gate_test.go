package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/testkit"
)

func TestEvaluateAccessOrder(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	limit := int64(2)
	hash, _ := testkit.FakeHasher("s3cret")

	live := func(public bool, downloads int64) *model.Share {
		return &model.Share{ID: "S1", UserID: "owner", IsPublic: public, DownloadCount: downloads}
	}
	deleted := live(true, 0)
	deleted.DeletedAt = gorm.DeletedAt{Time: past, Valid: true}

	everything := &model.ShareSettings{ExpiresAt: &past, DownloadLimit: &limit, PasswordHash: hash}

	cases := []struct {
		name     string
		share    *model.Share
		settings *model.ShareSettings
		creds    service.Credentials
		want     service.DenyReason
	}{
		{"missing share", nil, nil, service.Credentials{}, service.DenyNotFound},
		{"deleted wins over everything", deleted, everything, service.Credentials{}, service.DenyNotFound},
		{"expired before limit", live(false, 5), everything, service.Credentials{}, service.DenyExpired},
		{"expiry at exactly now", live(true, 0), &model.ShareSettings{ExpiresAt: &now}, service.Credentials{}, service.DenyExpired},
		{"limit before password", live(false, 2), &model.ShareSettings{ExpiresAt: &future, DownloadLimit: &limit, PasswordHash: hash}, service.Credentials{}, service.DenyLimitReached},
		{"password required", live(true, 1), &model.ShareSettings{DownloadLimit: &limit, PasswordHash: hash}, service.Credentials{}, service.DenyPasswordRequired},
		{"password mismatch", live(true, 0), &model.ShareSettings{PasswordHash: hash}, service.Credentials{Password: "nope"}, service.DenyPasswordMismatch},
		{"password before visibility", live(false, 0), &model.ShareSettings{PasswordHash: hash}, service.Credentials{}, service.DenyPasswordRequired},
		{"private share, anonymous", live(false, 0), nil, service.Credentials{}, service.DenyForbidden},
		{"private share, stranger", live(false, 0), nil, service.Credentials{RequesterID: "someone"}, service.DenyForbidden},
		{"private share, owner", live(false, 0), nil, service.Credentials{RequesterID: "owner"}, ""},
		{"private share, signature grant", live(false, 0), nil, service.Credentials{SignatureGrant: true}, ""},
		{"owner still needs the password", live(false, 0), &model.ShareSettings{PasswordHash: hash}, service.Credentials{RequesterID: "owner"}, service.DenyPasswordRequired},
		{"public share without settings", live(true, 0), nil, service.Credentials{}, ""},
		{"everything satisfied", live(false, 1), &model.ShareSettings{ExpiresAt: &future, DownloadLimit: &limit, PasswordHash: hash}, service.Credentials{Password: "s3cret", SignatureGrant: true}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := service.EvaluateAccess(tc.share, tc.settings, tc.creds, now, testkit.FakeVerifier)

			if tc.want == "" {
				assert.True(t, d.Allowed)
				assert.NoError(t, d.Err())

				return
			}

			assert.False(t, d.Allowed)
			assert.Equal(t, tc.want, d.Reason)
			assert.ErrorIs(t, d.Err(), &service.AccessDeniedError{Reason: tc.want})
			assert.ErrorIs(t, d.Err(), service.ErrAccessDenied)
		})
	}
}

func TestEvaluateAccessIsDeterministic(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limit := int64(3)
	share := &model.Share{ID: "S1", UserID: "owner", IsPublic: true, DownloadCount: 3}
	settings := &model.ShareSettings{DownloadLimit: &limit}

	first := service.EvaluateAccess(share, settings, service.Credentials{}, now, nil)
	for range 10 {
		assert.Equal(t, first, service.EvaluateAccess(share, settings, service.Credentials{}, now, nil))
	}

	assert.Equal(t, service.DenyLimitReached, first.Reason)
}
