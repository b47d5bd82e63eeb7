package notification_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	mongodb "github.com/dmitrymomot/notifykit/pkg/mongo"
	"github.com/dmitrymomot/notifykit/svc/notification"
)

// testDatabase connects to MONGODB_TEST_URL and returns a throwaway database.
func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()

	url := os.Getenv("MONGODB_TEST_URL")
	if url == "" {
		t.Skip("MONGODB_TEST_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongodb.New(ctx, mongodb.Config{
		ConnectionURL:  url,
		ConnectTimeout: 5 * time.Second,
		MaxPoolSize:    10,
		RetryAttempts:  1,
	})
	require.NoError(t, err)

	db := client.Database("notifykit_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func TestMongoRepository(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()

	repo := notification.NewMongoRepository(db)
	require.NoError(t, repo.EnsureIndexes(ctx))

	now := time.Now().UTC()
	both := []notification.Channel{notification.ChannelEmail, notification.ChannelTelegram}
	emailOnly := []notification.Channel{notification.ChannelEmail}

	first := seedNotification(t, repo, "ana@example.com", both, now.Add(-2*time.Minute), nil)
	second := seedNotification(t, repo, "Bob@Example.com", emailOnly, now.Add(-time.Minute), func(n *notification.Notification) {
		require.NoError(t, n.MarkSent())
	})
	seedNotification(t, repo, "old@other.org", emailOnly, now.Add(-72*time.Hour), func(n *notification.Notification) {
		require.NoError(t, n.MarkFailed("bounced"))
	})

	t.Run("get and update", func(t *testing.T) {
		got, err := repo.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Channels, got.Channels)
		assert.Equal(t, notification.StatusPending, got.Status)

		require.NoError(t, got.MarkFailed("timeout after 10s"))
		require.NoError(t, repo.Update(ctx, got))

		again, err := repo.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, notification.StatusFailed, again.Status)
		assert.Equal(t, 1, again.RetryCount)
		assert.Equal(t, "timeout after 10s", again.ErrorMessage)

		_, err = repo.Get(ctx, notification.NewID())
		assert.ErrorIs(t, err, notification.ErrNotificationNotFound)
		assert.ErrorIs(t, repo.Update(ctx, newPending(t)), notification.ErrNotificationNotFound)
	})

	t.Run("list", func(t *testing.T) {
		page, err := repo.List(ctx, notification.ListFilter{Email: "example.COM"})
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Total)
		require.Len(t, page.Data, 2)
		assert.Equal(t, second.ID, page.Data[0].ID)

		page, err = repo.List(ctx, notification.ListFilter{Status: notification.StatusSent})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, second.ID, page.Data[0].ID)

		page, err = repo.List(ctx, notification.ListFilter{Email: "a.e"})
		require.NoError(t, err)
		assert.Zero(t, page.Total, "email filter is matched literally")

		page, err = repo.List(ctx, notification.ListFilter{Limit: 1, Offset: 2})
		require.NoError(t, err)
		assert.EqualValues(t, 3, page.Total)
		assert.Len(t, page.Data, 1)
	})

	t.Run("stats", func(t *testing.T) {
		st, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, st.Total)
		assert.EqualValues(t, 2, st.RecentLast24h)
		assert.EqualValues(t, 1, st.ByStatus.Sent)
		assert.InDelta(t, 33.33, st.SuccessRatePercent, 0.0001)
		assert.Len(t, st.ByChannel[notification.ChannelTelegram], 1)
	})
}

func TestMongoConfigStore(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()

	store := notification.NewMongoConfigStore(db)
	cfg := mustConfig(t, notification.ConfigInput{
		Owner:       "owner@x.com",
		Channels:    []string{"email", "telegram"},
		Credentials: notification.Credentials{Telegram: &notification.TelegramCredentials{Token: "1:a", ChatID: "2"}},
	})

	require.NoError(t, store.CreateConfig(ctx, cfg))
	assert.ErrorIs(t, store.CreateConfig(ctx, cfg), notification.ErrOwnerConfigExists)
	require.NoError(t, store.Seed(ctx, cfg), "seeding skips existing owners")

	got, err := store.GetConfig(ctx, "owner@x.com")
	require.NoError(t, err)
	assert.Equal(t, cfg.Channels, got.Channels)
	require.NotNil(t, got.Credentials.Telegram)
	assert.Equal(t, "2", got.Credentials.Telegram.ChatID)
	assert.Nil(t, got.Credentials.Email)

	got.Enabled = false
	require.NoError(t, store.UpdateConfig(ctx, got))

	_, err = notification.NewConfigResolver(store).Resolve(ctx, "owner@x.com")
	assert.ErrorIs(t, err, notification.ErrOwnerConfigDisabled)

	_, err = store.GetConfig(ctx, "ghost@x.com")
	assert.ErrorIs(t, err, notification.ErrOwnerConfigNotFound)
	assert.ErrorIs(t, store.UpdateConfig(ctx, &notification.OwnerConfig{Owner: "ghost@x.com"}), notification.ErrOwnerConfigNotFound)
}
