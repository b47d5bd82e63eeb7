package notification_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/queue"
	"github.com/dmitrymomot/notifykit/svc/notification"
)

type MockDispatchQueue struct {
	mock.Mock
}

func (m *MockDispatchQueue) Enqueue(ctx context.Context, item notification.DispatchItem) error {
	return m.Called(ctx, item).Error(0)
}

func ownerConfigs(t *testing.T) *notification.MemoryConfigStore {
	t.Helper()
	return notification.NewMemoryConfigStore(
		mustConfig(t, notification.ConfigInput{
			Owner:       "owner@x.com",
			Channels:    []string{"email", "telegram"},
			Credentials: notification.Credentials{Email: &notification.EmailCredentials{APIKey: "k", To: "dest@x.com"}},
		}),
		mustConfig(t, notification.ConfigInput{Owner: "disabled@x.com", Enabled: boolPtr(false)}),
		mustConfig(t, notification.ConfigInput{Owner: "silent@x.com", Channels: []string{}}),
	)
}

func validParams() notification.CreateParams {
	return notification.CreateParams{
		Owner:    "owner@x.com",
		Name:     "Ana",
		Email:    "ana@x.com",
		Message:  "hi",
		Metadata: map[string]any{"form": "contact"},
	}
}

func TestService_Create(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	newService := func(t *testing.T) (*notification.Service, *notification.MemoryRepository, *MockDispatchQueue) {
		t.Helper()
		repo := notification.NewMemoryRepository()
		q := new(MockDispatchQueue)
		return notification.NewService(repo, notification.NewConfigResolver(ownerConfigs(t)), q), repo, q
	}

	t.Run("stores pending and queues", func(t *testing.T) {
		t.Parallel()

		svc, repo, q := newService(t)
		q.On("Enqueue", mock.Anything, mock.MatchedBy(func(item notification.DispatchItem) bool {
			return item.Owner == "owner@x.com" &&
				len(item.Channels) == 2 &&
				item.Channels[0] == notification.ChannelEmail
		})).Return(nil).Once()

		n, err := svc.Create(ctx, validParams())
		require.NoError(t, err)
		assert.Equal(t, notification.StatusPending, n.Status)
		assert.Equal(t, []notification.Channel{notification.ChannelEmail, notification.ChannelTelegram}, n.Channels)
		assert.Equal(t, "contact", n.Metadata["form"])

		stored, err := repo.Get(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, notification.StatusPending, stored.Status)
		q.AssertExpectations(t)
		assert.Equal(t, n.ID, q.Calls[0].Arguments.Get(1).(notification.DispatchItem).NotificationID)
	})

	t.Run("configuration errors store nothing", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			owner string
			want  error
		}{
			{owner: "disabled@x.com", want: notification.ErrOwnerConfigDisabled},
			{owner: "ghost@x.com", want: notification.ErrOwnerConfigNotFound},
			{owner: "silent@x.com", want: notification.ErrNoChannelsConfigured},
		}

		for _, tt := range tests {
			svc, repo, q := newService(t)
			p := validParams()
			p.Owner = tt.owner

			_, err := svc.Create(ctx, p)
			require.ErrorIs(t, err, tt.want, tt.owner)
			assert.True(t, notification.IsConfigError(err))

			page, err := repo.List(ctx, notification.ListFilter{})
			require.NoError(t, err)
			assert.Zero(t, page.Total)
			q.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
		}
	})

	t.Run("message too long is rejected before persistence", func(t *testing.T) {
		t.Parallel()

		svc, repo, q := newService(t)
		p := validParams()
		p.Message = strings.Repeat("a", 1001)

		_, err := svc.Create(ctx, p)
		require.ErrorIs(t, err, notification.ErrMessageTooLong)

		page, err := repo.List(ctx, notification.ListFilter{})
		require.NoError(t, err)
		assert.Zero(t, page.Total)
		q.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("validation runs before configuration lookup", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newService(t)
		_, err := svc.Create(ctx, notification.CreateParams{Owner: "ghost@x.com", Email: "bad", Message: ""})
		require.ErrorIs(t, err, notification.ErrInvalidEmail)
		assert.ErrorIs(t, err, notification.ErrEmptyMessage)
		assert.ErrorIs(t, err, notification.ErrEmptyName)
		assert.NotErrorIs(t, err, notification.ErrOwnerConfigNotFound)
	})

	t.Run("queue failure marks the notification failed", func(t *testing.T) {
		t.Parallel()

		svc, repo, q := newService(t)
		queueErr := errors.Join(notification.ErrFailedToEnqueue, errors.New("redis down"))
		q.On("Enqueue", mock.Anything, mock.Anything).Return(queueErr).Once()

		_, err := svc.Create(ctx, validParams())
		require.ErrorIs(t, err, notification.ErrFailedToEnqueue)

		page, err := repo.List(ctx, notification.ListFilter{})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, notification.StatusFailed, page.Data[0].Status)
		assert.Contains(t, page.Data[0].ErrorMessage, "redis down")
		assert.Zero(t, page.Data[0].RetryCount)
	})
}

func TestService_Queries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := notification.NewMemoryRepository()
	q := new(MockDispatchQueue)
	q.On("Enqueue", mock.Anything, mock.Anything).Return(nil)
	svc := notification.NewService(repo, notification.NewConfigResolver(ownerConfigs(t)), q)

	created, err := svc.Create(ctx, validParams())
	require.NoError(t, err)

	t.Run("get", func(t *testing.T) {
		t.Parallel()

		got, err := svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)

		_, err = svc.Get(ctx, "nope")
		assert.ErrorIs(t, err, notification.ErrInvalidID)

		_, err = svc.Get(ctx, notification.NewID())
		assert.ErrorIs(t, err, notification.ErrNotificationNotFound)
	})

	t.Run("list", func(t *testing.T) {
		t.Parallel()

		page, err := svc.List(ctx, notification.ListParams{Status: "pending", Email: "ANA"})
		require.NoError(t, err)
		assert.EqualValues(t, 1, page.Total)

		_, err = svc.List(ctx, notification.ListParams{Status: "archived"})
		assert.ErrorIs(t, err, notification.ErrInvalidStatus)

		_, err = svc.List(ctx, notification.ListParams{Offset: -1})
		assert.ErrorIs(t, err, notification.ErrInvalidListQuery)
	})

	t.Run("list created before", func(t *testing.T) {
		t.Parallel()

		page, err := svc.List(ctx, notification.ListParams{CreatedBefore: created.CreatedAt.Add(time.Second)})
		require.NoError(t, err)
		assert.EqualValues(t, 1, page.Total)

		page, err = svc.List(ctx, notification.ListParams{CreatedBefore: created.CreatedAt})
		require.NoError(t, err)
		assert.Zero(t, page.Total)
		assert.Empty(t, page.Data)
	})

	t.Run("stats", func(t *testing.T) {
		t.Parallel()

		st, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, st.Total)
		assert.EqualValues(t, 1, st.ByStatus.Pending)
	})
}

func TestTaskQueue_Enqueue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = storage.Close() })

	enqueuer, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)
	tq := notification.NewTaskQueue(enqueuer, "notifications")

	item := notification.DispatchItem{NotificationID: notification.NewID(), Owner: "o@x.com", Channels: []notification.Channel{notification.ChannelEmail}}
	require.NoError(t, tq.Enqueue(ctx, item))

	err = tq.Enqueue(ctx, item)
	require.ErrorIs(t, err, queue.ErrDuplicateTask)
	assert.ErrorIs(t, err, notification.ErrFailedToEnqueue)
}

// pipeline wires the service and a live worker over in-memory storage.
type pipeline struct {
	svc     *notification.Service
	storage *queue.MemoryStorage
}

func newPipeline(t *testing.T, sender *fakeEmailSender) *pipeline {
	t.Helper()

	repo := notification.NewMemoryRepository()
	resolver := notification.NewConfigResolver(ownerConfigs(t))
	storage := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = storage.Close() })

	enqueuer, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	dispatcher, err := notification.NewDispatcher(repo, resolver, []notification.Deliverer{
		notification.NewEmailChannel(&fakeEmailSenders{sender: sender}),
		notification.NewTelegramChannel(new(MockTelegramSender)),
	})
	require.NoError(t, err)

	worker, err := queue.NewWorker(storage,
		queue.WithPullInterval(10*time.Millisecond),
		queue.WithRetryPolicy(queue.RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond}),
	)
	require.NoError(t, err)
	require.NoError(t, worker.RegisterHandler(dispatcher.Handler()))
	require.NoError(t, worker.Start(context.Background()))
	t.Cleanup(func() { _ = worker.Stop() })

	return &pipeline{
		svc:     notification.NewService(repo, resolver, notification.NewTaskQueue(enqueuer, "")),
		storage: storage,
	}
}

func (p *pipeline) waitFor(t *testing.T, id string, status notification.Status) *notification.Notification {
	t.Helper()

	var last *notification.Notification
	require.Eventually(t, func() bool {
		n, err := p.svc.Get(context.Background(), id)
		if err != nil {
			return false
		}
		last = n
		return n.Status == status
	}, 3*time.Second, 10*time.Millisecond)
	return last
}

func TestPipeline(t *testing.T) {
	t.Parallel()

	t.Run("email delivered while telegram is unconfigured", func(t *testing.T) {
		t.Parallel()

		sender := &fakeEmailSender{}
		p := newPipeline(t, sender)

		n, err := p.svc.Create(context.Background(), validParams())
		require.NoError(t, err)
		assert.Equal(t, notification.StatusPending, n.Status)

		sent := p.waitFor(t, n.ID, notification.StatusSent)
		assert.NotNil(t, sent.SentAt)
		assert.Zero(t, sent.RetryCount)
		assert.Empty(t, sent.ErrorMessage)
		require.Len(t, sender.Sent(), 1)
		assert.Equal(t, "dest@x.com", sender.Sent()[0].SendTo)
	})

	t.Run("exhausted retries leave the notification failed", func(t *testing.T) {
		t.Parallel()

		sender := &fakeEmailSender{err: errors.New("mailbox unavailable")}
		p := newPipeline(t, sender)

		n, err := p.svc.Create(context.Background(), validParams())
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			dead, err := p.storage.DeadTasks(context.Background())
			return err == nil && len(dead) == 1
		}, 3*time.Second, 10*time.Millisecond)

		failed, err := p.svc.Get(context.Background(), n.ID)
		require.NoError(t, err)
		assert.Equal(t, notification.StatusFailed, failed.Status)
		assert.Equal(t, 3, failed.RetryCount)
		assert.Equal(t, "email: mailbox unavailable", failed.ErrorMessage)
		assert.Nil(t, failed.SentAt)
		assert.Len(t, sender.Sent(), 3)
	})
}
