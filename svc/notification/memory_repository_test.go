package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/svc/notification"
)

func seedNotification(t *testing.T, repo notification.Repository, email string, channels []notification.Channel, createdAt time.Time, mutate func(*notification.Notification)) *notification.Notification {
	t.Helper()

	n, err := notification.New(notification.NewParams{
		Name:     "Someone",
		Email:    email,
		Message:  "hello",
		Channels: channels,
	})
	require.NoError(t, err)
	n.CreatedAt = createdAt
	n.UpdatedAt = createdAt
	if mutate != nil {
		mutate(n)
	}
	require.NoError(t, repo.Create(context.Background(), n))
	return n
}

func TestMemoryRepository_CRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := notification.NewMemoryRepository()
	n := seedNotification(t, repo, "ana@x.com", []notification.Channel{notification.ChannelEmail}, time.Now().UTC(), nil)

	got, err := repo.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.Email, got.Email)

	got.Status = notification.StatusFailed
	assert.Equal(t, notification.StatusPending, n.Status, "stored copy must not alias the caller")

	require.NoError(t, got.MarkFailed("boom"))
	require.NoError(t, repo.Update(ctx, got))

	again, err := repo.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusFailed, again.Status)
	assert.Equal(t, 1, again.RetryCount)

	_, err = repo.Get(ctx, notification.NewID())
	assert.ErrorIs(t, err, notification.ErrNotificationNotFound)

	missing := newPending(t)
	assert.ErrorIs(t, repo.Update(ctx, missing), notification.ErrNotificationNotFound)
	assert.Error(t, repo.Create(ctx, again), "duplicate id")
}

func TestMemoryRepository_List(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := notification.NewMemoryRepository()
	base := time.Now().UTC().Add(-time.Hour)
	email := []notification.Channel{notification.ChannelEmail}

	oldest := seedNotification(t, repo, "ana@example.com", email, base, nil)
	middle := seedNotification(t, repo, "BOB@example.com", email, base.Add(time.Minute), func(n *notification.Notification) {
		require.NoError(t, n.MarkSent())
	})
	newest := seedNotification(t, repo, "carol@other.org", email, base.Add(2*time.Minute), nil)

	t.Run("newest first with defaults", func(t *testing.T) {
		t.Parallel()

		page, err := repo.List(ctx, notification.ListFilter{})
		require.NoError(t, err)
		assert.EqualValues(t, 3, page.Total)
		assert.Equal(t, notification.DefaultListLimit, page.Limit)
		assert.Equal(t, 0, page.Offset)
		require.Len(t, page.Data, 3)
		assert.Equal(t, []string{newest.ID, middle.ID, oldest.ID}, []string{page.Data[0].ID, page.Data[1].ID, page.Data[2].ID})
	})

	t.Run("exact status", func(t *testing.T) {
		t.Parallel()

		page, err := repo.List(ctx, notification.ListFilter{Status: notification.StatusSent})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, middle.ID, page.Data[0].ID)
	})

	t.Run("partial email ignores case", func(t *testing.T) {
		t.Parallel()

		page, err := repo.List(ctx, notification.ListFilter{Email: "EXAMPLE.COM"})
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Total)

		page, err = repo.List(ctx, notification.ListFilter{Email: "bob"})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, middle.ID, page.Data[0].ID)
	})

	t.Run("pagination", func(t *testing.T) {
		t.Parallel()

		page, err := repo.List(ctx, notification.ListFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.EqualValues(t, 3, page.Total)
		require.Len(t, page.Data, 1)
		assert.Equal(t, middle.ID, page.Data[0].ID)

		page, err = repo.List(ctx, notification.ListFilter{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, page.Data)
		assert.EqualValues(t, 3, page.Total)
	})

	t.Run("limit is capped", func(t *testing.T) {
		t.Parallel()

		page, err := repo.List(ctx, notification.ListFilter{Limit: 10_000})
		require.NoError(t, err)
		assert.Equal(t, notification.MaxListLimit, page.Limit)
	})

	t.Run("created before", func(t *testing.T) {
		t.Parallel()

		page, err := repo.List(ctx, notification.ListFilter{CreatedBefore: base.Add(time.Minute)})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, oldest.ID, page.Data[0].ID)
	})
}

func TestMemoryRepository_Stats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		st, err := notification.NewMemoryRepository().Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, st.Total)
		assert.Zero(t, st.SuccessRatePercent)
		assert.Empty(t, st.ByChannel[notification.ChannelEmail])
		assert.Empty(t, st.ByChannel[notification.ChannelTelegram])
	})

	t.Run("aggregates", func(t *testing.T) {
		t.Parallel()

		repo := notification.NewMemoryRepository()
		now := time.Now().UTC()
		both := []notification.Channel{notification.ChannelEmail, notification.ChannelTelegram}
		emailOnly := []notification.Channel{notification.ChannelEmail}
		sent := func(n *notification.Notification) { require.NoError(t, n.MarkSent()) }
		failed := func(n *notification.Notification) { require.NoError(t, n.MarkFailed("x")) }

		seedNotification(t, repo, "a@x.com", both, now, sent)
		seedNotification(t, repo, "b@x.com", emailOnly, now, failed)
		seedNotification(t, repo, "c@x.com", emailOnly, now.Add(-48*time.Hour), nil)

		st, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, st.Total)
		assert.Equal(t, notification.StatusTotals{Pending: 1, Sent: 1, Failed: 1}, st.ByStatus)
		assert.EqualValues(t, 2, st.RecentLast24h)
		assert.InDelta(t, 33.33, st.SuccessRatePercent, 0.0001)

		assert.Equal(t, []notification.StatusCount{
			{Status: notification.StatusPending, Count: 1},
			{Status: notification.StatusSent, Count: 1},
			{Status: notification.StatusFailed, Count: 1},
		}, st.ByChannel[notification.ChannelEmail])
		assert.Equal(t, []notification.StatusCount{
			{Status: notification.StatusSent, Count: 1},
		}, st.ByChannel[notification.ChannelTelegram])
	})
}
