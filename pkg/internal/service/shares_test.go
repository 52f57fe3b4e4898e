package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/testkit"
	"github.com/yeisme/sharevault/pkg/internal/types"
)

func TestCreateShareRequiresAKnownUser(t *testing.T) {
	env := testkit.New(t)

	_, err := env.Shares.CreateShare(context.Background(), "ghost", &types.CreateShareRequest{Title: "x"})
	assert.ErrorIs(t, err, service.ErrUnknownUser)
}

func TestShareLifecycle(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")
	env.User(t, "bob")

	expires := env.Clock.Now().Add(24 * time.Hour)
	limit := int64(3)

	created := env.Share(t, "alice", &types.CreateShareRequest{
		Title:         "  Q1 numbers ",
		Password:      "pw",
		ExpiresAt:     &expires,
		DownloadLimit: &limit,
	})
	assert.Equal(t, "Q1 numbers", created.Title)
	assert.True(t, created.IsPublic, "shares are public unless asked otherwise")
	assert.True(t, created.Settings.HasPassword)
	assert.Equal(t, &limit, created.Settings.DownloadLimit)
	assert.Equal(t, "http://share.test/s/"+created.ID, created.URL)

	env.Share(t, "alice", nil)
	env.Share(t, "bob", nil)

	list, err := env.Shares.ListShares(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list.Shares, 2)

	_, err = env.Shares.GetShare(ctx, "bob", created.ID)
	assert.ErrorIs(t, err, service.ErrNotOwner)

	title := "Q1 final"
	zero := int64(0)
	private := false

	updated, err := env.Shares.UpdateSettings(ctx, "alice", created.ID, &types.UpdateShareSettingsRequest{
		Title:         &title,
		IsPublic:      &private,
		DownloadLimit: &zero,
		ClearExpiry:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Q1 final", updated.Title)
	assert.False(t, updated.IsPublic)
	assert.Nil(t, updated.Settings.DownloadLimit)
	assert.Nil(t, updated.Settings.ExpiresAt)
	assert.True(t, updated.Settings.HasPassword, "untouched fields keep their value")

	detail, err := env.Shares.GetShare(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Q1 final", detail.Title)
	assert.Empty(t, detail.Files)

	require.NoError(t, env.Shares.DeleteShare(ctx, "alice", created.ID))
	_, err = env.Shares.GetShare(ctx, "alice", created.ID)
	assert.ErrorIs(t, err, service.ErrShareNotFound)
	assert.ErrorIs(t, env.Shares.DeleteShare(ctx, "alice", created.ID), service.ErrShareNotFound)

	list, err = env.Shares.ListShares(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list.Shares, 1)
}

func TestCreateShareSlugConflict(t *testing.T) {
	env := testkit.New(t)
	env.User(t, "alice")

	env.Share(t, "alice", &types.CreateShareRequest{CustomSlug: "q1"})

	_, err := env.Shares.CreateShare(context.Background(), "alice", &types.CreateShareRequest{CustomSlug: "Q1"})
	assert.ErrorIs(t, err, service.ErrSlugTaken)

	status, _ := service.Classify(err)
	assert.Equal(t, 409, status)
}

func TestDeletedShareFreesItsSlug(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")

	first := env.Share(t, "alice", &types.CreateShareRequest{CustomSlug: "promo"})
	require.NoError(t, env.Shares.DeleteShare(ctx, "alice", first.ID))

	second := env.Share(t, "alice", &types.CreateShareRequest{CustomSlug: "promo"})

	id, err := env.Shares.ResolveShareID(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, second.ID, id)
}
