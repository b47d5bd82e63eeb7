package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

type MockEnqueuerRepository struct {
	mock.Mock
}

func (m *MockEnqueuerRepository) CreateTask(ctx context.Context, task *queue.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func TestEnqueuer_Enqueue(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEnqueuerRepository)
		var captured *queue.Task
		repo.On("CreateTask", mock.Anything, mock.AnythingOfType("*queue.Task")).
			Run(func(args mock.Arguments) { captured = args.Get(1).(*queue.Task) }).
			Return(nil).Once()

		enqueuer, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		id, err := enqueuer.Enqueue(context.Background(), testPayload{Message: "hello", Value: 7})
		require.NoError(t, err)
		repo.AssertExpectations(t)

		require.NotNil(t, captured)
		assert.Equal(t, id, captured.ID)
		assert.Equal(t, queue.DefaultQueueName, captured.Queue)
		assert.Equal(t, "queue_test.testPayload", captured.TaskName)
		assert.Equal(t, queue.TaskStatusPending, captured.Status)
		assert.Equal(t, queue.PriorityDefault, captured.Priority)
		assert.Equal(t, int8(3), captured.MaxAttempts)
		assert.Equal(t, int8(0), captured.Attempts)
		assert.Empty(t, captured.Key)
		assert.WithinDuration(t, time.Now(), captured.ScheduledAt, time.Second)

		var decoded testPayload
		require.NoError(t, json.Unmarshal(captured.Payload, &decoded))
		assert.Equal(t, testPayload{Message: "hello", Value: 7}, decoded)
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEnqueuerRepository)
		var captured *queue.Task
		repo.On("CreateTask", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { captured = args.Get(1).(*queue.Task) }).
			Return(nil).Once()

		enqueuer, err := queue.NewEnqueuer(repo,
			queue.WithDefaultQueue("dispatch"),
			queue.WithDefaultMaxAttempts(5),
		)
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), testPayload{},
			queue.WithTaskKey("n-1"),
			queue.WithTaskName("custom"),
			queue.WithPriority(queue.PriorityHigh),
			queue.WithDelay(time.Minute),
			queue.WithMaxAttempts(2),
		)
		require.NoError(t, err)

		assert.Equal(t, "dispatch", captured.Queue)
		assert.Equal(t, "custom", captured.TaskName)
		assert.Equal(t, "n-1", captured.Key)
		assert.Equal(t, queue.PriorityHigh, captured.Priority)
		assert.Equal(t, int8(2), captured.MaxAttempts)
		assert.WithinDuration(t, time.Now().Add(time.Minute), captured.ScheduledAt, time.Second)
	})

	t.Run("nil payload", func(t *testing.T) {
		t.Parallel()

		enqueuer, err := queue.NewEnqueuer(new(MockEnqueuerRepository))
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), nil)
		assert.ErrorIs(t, err, queue.ErrPayloadNil)
	})

	t.Run("invalid priority", func(t *testing.T) {
		t.Parallel()

		enqueuer, err := queue.NewEnqueuer(new(MockEnqueuerRepository))
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), testPayload{}, queue.WithPriority(101))
		assert.ErrorIs(t, err, queue.ErrInvalidPriority)
	})

	t.Run("repository error is wrapped", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEnqueuerRepository)
		repo.On("CreateTask", mock.Anything, mock.Anything).Return(queue.ErrDuplicateTask).Once()

		enqueuer, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), testPayload{}, queue.WithTaskKey("n-1"))
		assert.ErrorIs(t, err, queue.ErrDuplicateTask)
	})

	t.Run("nil repository", func(t *testing.T) {
		t.Parallel()

		_, err := queue.NewEnqueuer(nil)
		assert.True(t, errors.Is(err, queue.ErrRepositoryNil))
	})
}
