package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// DispatchTaskName identifies dispatch tasks in the queue.
const DispatchTaskName = "notification.dispatch"

// DispatchItem wakes a worker for one notification. Credentials are
// resolved again at dispatch time and never travel through the queue.
type DispatchItem struct {
	NotificationID string    `json:"notification_id"`
	Owner          string    `json:"owner"`
	Channels       []Channel `json:"channels"`
}

// DispatchQueue accepts work for the dispatch worker.
type DispatchQueue interface {
	Enqueue(ctx context.Context, item DispatchItem) error
}

// Enqueuer is the producer side of pkg/queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) (uuid.UUID, error)
}

// TaskQueue is a DispatchQueue over pkg/queue. Each notification maps to
// a single keyed task, so its attempts never run concurrently.
type TaskQueue struct {
	enqueuer  Enqueuer
	queueName string
}

// NewTaskQueue creates a TaskQueue. An empty queueName keeps the
// enqueuer's default queue.
func NewTaskQueue(enqueuer Enqueuer, queueName string) *TaskQueue {
	if enqueuer == nil {
		panic("notification: Enqueuer is required")
	}
	return &TaskQueue{enqueuer: enqueuer, queueName: queueName}
}

func (q *TaskQueue) Enqueue(ctx context.Context, item DispatchItem) error {
	opts := []queue.EnqueueOption{
		queue.WithTaskName(DispatchTaskName),
		queue.WithTaskKey(item.NotificationID),
	}
	if q.queueName != "" {
		opts = append(opts, queue.WithQueue(q.queueName))
	}

	if _, err := q.enqueuer.Enqueue(ctx, item, opts...); err != nil {
		if errors.Is(err, queue.ErrDuplicateTask) {
			return fmt.Errorf("%w: notification %s is already queued: %w", ErrFailedToEnqueue, item.NotificationID, err)
		}
		return errors.Join(ErrFailedToEnqueue, err)
	}
	return nil
}
