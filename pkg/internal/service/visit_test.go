package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/testkit"
	"github.com/yeisme/sharevault/pkg/internal/types"
	"github.com/yeisme/sharevault/pkg/queue"
)

func TestVisitBySlug(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")

	share, _ := uploaded(t, env, "alice", &types.CreateShareRequest{Title: "Docs", CustomSlug: "Team-Docs"}, "a.txt", "hello")
	require.NotNil(t, share.Settings.CustomSlug)
	assert.Equal(t, "team-docs", *share.Settings.CustomSlug)
	assert.Equal(t, "http://share.test/s/team-docs", share.URL)

	// the second visit is served from the slug cache
	for i := range 2 {
		resp, err := env.Visits.Visit(ctx, service.VisitRequest{
			SlugOrID:  "TEAM-docs",
			Requester: queue.Requester{IPAddress: "10.0.0.1", Referrer: "https://example.org"},
		})
		require.NoError(t, err, "visit %d", i)
		assert.Equal(t, share.ID, resp.Share.ID)
		require.Len(t, resp.Files, 1)
		assert.Contains(t, resp.Download.URL, "/d/")
	}

	assert.EqualValues(t, 2, loadShare(t, env, share.ID).ViewCount)

	env.Analytics.Wait()

	var visits int64
	require.NoError(t, env.DB.Model(&model.VisitAnalytics{}).Where("share_id = ? AND referrer = ?", share.ID, "https://example.org").Count(&visits).Error)
	assert.EqualValues(t, 2, visits)
}

func TestVisitHandsOutAWorkingDownload(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")

	share, _ := uploaded(t, env, "alice", nil, "a.txt", "hello")

	resp, err := env.Visits.Visit(ctx, service.VisitRequest{SlugOrID: share.ID})
	require.NoError(t, err)

	grant, err := env.Downloads.Authorize(ctx, service.DownloadRequest{Signature: resp.Download.Signature})
	require.NoError(t, err)
	assert.Equal(t, "a.txt", grant.FileName())
}

func TestVisitPrivateShare(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")

	private := false
	share := env.Share(t, "alice", &types.CreateShareRequest{IsPublic: &private})

	_, err := env.Visits.Visit(ctx, service.VisitRequest{SlugOrID: share.ID})
	assert.ErrorIs(t, err, service.ErrDeniedForbidden)

	_, err = env.Visits.Visit(ctx, service.VisitRequest{SlugOrID: share.ID, RequesterID: "bob"})
	assert.ErrorIs(t, err, service.ErrDeniedForbidden)

	_, err = env.Visits.Visit(ctx, service.VisitRequest{SlugOrID: share.ID, RequesterID: "alice"})
	assert.NoError(t, err)

	assert.EqualValues(t, 1, loadShare(t, env, share.ID).ViewCount, "denied visits are not counted")
}

func TestVisitUnknownShare(t *testing.T) {
	env := testkit.New(t)

	_, err := env.Visits.Visit(context.Background(), service.VisitRequest{SlugOrID: "nothing-here"})
	assert.ErrorIs(t, err, service.ErrDeniedNotFound)

	status, _ := service.Classify(err)
	assert.Equal(t, 404, status)
}

func TestSlugChangesInvalidateTheCache(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")

	first := env.Share(t, "alice", &types.CreateShareRequest{CustomSlug: "launch"})

	_, err := env.Visits.Visit(ctx, service.VisitRequest{SlugOrID: "launch"})
	require.NoError(t, err)

	other := env.Share(t, "alice", nil)

	slug := "launch"
	_, err = env.Shares.UpdateSettings(ctx, "alice", other.ID, &types.UpdateShareSettingsRequest{CustomSlug: &slug})
	assert.ErrorIs(t, err, service.ErrSlugTaken)

	empty := ""
	_, err = env.Shares.UpdateSettings(ctx, "alice", first.ID, &types.UpdateShareSettingsRequest{CustomSlug: &empty})
	require.NoError(t, err)

	_, err = env.Shares.UpdateSettings(ctx, "alice", other.ID, &types.UpdateShareSettingsRequest{CustomSlug: &slug})
	require.NoError(t, err)

	resp, err := env.Visits.Visit(ctx, service.VisitRequest{SlugOrID: "launch"})
	require.NoError(t, err)
	assert.Equal(t, other.ID, resp.Share.ID)
}
