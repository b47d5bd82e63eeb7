// Package queue provides an at-least-once background task queue.
//
// Producers enqueue JSON payloads through an Enqueuer. A Worker claims ready
// tasks from a storage backend, locks them for a bounded time and dispatches
// them to typed handlers registered with NewTaskHandler. Failed attempts are
// rescheduled according to a RetryPolicy (exponential backoff, bounded
// attempts); handlers can return Permanent(err) to skip remaining attempts.
// Exhausted tasks land in a dead-letter set and are removed, together with
// completed tasks, by a Pruner that runs on a cron schedule.
//
// Two storages are provided: MemoryStorage for tests and single-process
// deployments, and RedisStorage for shared deployments.
//
//	storage := queue.NewMemoryStorage()
//	enqueuer, _ := queue.NewEnqueuer(storage)
//	worker, _ := queue.NewWorker(storage, queue.WithRetryPolicy(queue.DefaultRetryPolicy()))
//	_ = worker.RegisterHandler(queue.NewTaskHandler(func(ctx context.Context, p MyPayload) error {
//		return nil
//	}))
//	_, _ = enqueuer.Enqueue(ctx, MyPayload{}, queue.WithTaskKey("entity-id"))
//
// Tasks carrying a key are exclusive: while a task with key K is pending or
// processing, enqueueing another task with K fails with ErrDuplicateTask.
package queue
