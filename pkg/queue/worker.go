package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// WorkerRepository defines the storage operations a worker needs
type WorkerRepository interface {
	// ClaimTask atomically claims the next ready task and locks it for lockDuration.
	// Returns ErrNoTaskToClaim when nothing is ready.
	ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error)

	// The methods below act on a task claimed by workerID and return
	// ErrTaskLockLost once another worker has claimed it.

	// CompleteTask marks a processing task as completed and releases its key.
	CompleteTask(ctx context.Context, workerID, taskID uuid.UUID) error

	// RetryTask records a failed attempt and makes the task pending again at retryAt.
	RetryTask(ctx context.Context, workerID, taskID uuid.UUID, errorMsg string, retryAt time.Time) error

	// FailTask records a terminal failure, moves the task to the dead-letter
	// set and releases its key.
	FailTask(ctx context.Context, workerID, taskID uuid.UUID, errorMsg string) error

	// ExtendLock extends the lock of a processing task.
	ExtendLock(ctx context.Context, workerID, taskID uuid.UUID, duration time.Duration) error
}

// Worker processes tasks from the queue
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex // guards stopping and wg.Add

	pullInterval time.Duration
	lockTimeout  time.Duration
	retry        RetryPolicy
	logger       *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a new task worker
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		queues:             []string{DefaultQueueName},
		pullInterval:       time.Second,
		lockTimeout:        5 * time.Minute,
		maxConcurrentTasks: 1,
		retry:              DefaultRetryPolicy(),
		logger:             slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		repo:         repo,
		handlers:     make(map[string]Handler),
		queues:       options.queues,
		workerID:     uuid.New(),
		sem:          make(chan struct{}, options.maxConcurrentTasks),
		pullInterval: options.pullInterval,
		lockTimeout:  options.lockTimeout,
		retry:        options.retry,
		logger:       options.logger,
	}, nil
}

// ID returns the worker identifier used for task locks.
func (w *Worker) ID() uuid.UUID {
	return w.workerID
}

// RegisterHandler registers a single task handler
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.handlers[handler.Name()] = handler
	return nil
}

// RegisterHandlers registers multiple task handlers
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start begins processing tasks in the background
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker already started")
	}

	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	go w.run()

	w.logger.Info("worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("queues", w.queues),
		slog.Int("max_concurrent", cap(w.sem)),
		slog.Int("max_attempts", int(w.retry.MaxAttempts)))

	return nil
}

// Stop stops claiming new tasks and waits for in-flight tasks to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker not started")
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.Info("worker stopping, waiting for active tasks to complete",
		slog.String("worker_id", w.workerID.String()))

	w.wg.Wait()

	w.logger.Info("worker stopped",
		slog.String("worker_id", w.workerID.String()))

	return nil
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if !w.fillSlots() {
				return
			}
		}
	}
}

// fillSlots claims tasks until every free slot is busy or the queue is
// drained. Returns false once the worker is stopping.
func (w *Worker) fillSlots() bool {
	for {
		select {
		case w.sem <- struct{}{}:
		default:
			w.logger.Debug("all worker slots busy, skipping tick",
				slog.String("worker_id", w.workerID.String()))
			return true
		}

		w.stopMu.Lock()
		if w.stopping.Load() {
			w.stopMu.Unlock()
			<-w.sem
			return false
		}
		w.wg.Add(1)
		w.stopMu.Unlock()

		task, err := w.repo.ClaimTask(w.ctx, w.workerID, w.queues, w.lockTimeout)
		if err != nil || task == nil {
			<-w.sem
			w.wg.Done()

			if err != nil && !errors.Is(err, ErrNoTaskToClaim) && !errors.Is(err, context.Canceled) {
				w.logger.Error("failed to claim task",
					slog.String("worker_id", w.workerID.String()),
					slog.String("error", err.Error()))
			}
			return true
		}

		w.logger.Debug("claimed task",
			slog.String("worker_id", w.workerID.String()),
			slog.String("task_id", task.ID.String()),
			slog.String("task_name", task.TaskName),
			slog.String("queue", task.Queue),
			slog.Int("attempt", int(task.Attempts)+1))

		go func() {
			defer w.wg.Done()
			defer func() { <-w.sem }()

			if err := w.processTask(task); err != nil && !errors.Is(err, ErrHandlerNotFound) {
				w.logger.Error("failed to process task",
					slog.String("worker_id", w.workerID.String()),
					slog.String("task_id", task.ID.String()),
					slog.String("error", err.Error()))
			}
		}()
	}
}

// processTask executes a task with its handler
func (w *Worker) processTask(task *Task) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				slog.String("worker_id", w.workerID.String()),
				slog.String("task_id", task.ID.String()),
				slog.String("task_name", task.TaskName),
				slog.Any("panic", r))
			retErr = w.handleTaskFailure(task, retErr, time.Since(start))
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[task.TaskName]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(task)
	}

	// Detached from the worker context so Stop lets in-flight tasks finish.
	ctx, cancel := context.WithTimeout(context.Background(), w.lockTimeout)
	defer cancel()

	err := handler.Handle(ctx, task.Payload)
	duration := time.Since(start)

	if err != nil {
		return w.handleTaskFailure(task, err, duration)
	}

	return w.handleTaskSuccess(task, duration)
}

// handleMissingHandler dead-letters the task; retries cannot help until a
// handler is deployed.
func (w *Worker) handleMissingHandler(task *Task) error {
	w.logger.Error("no handler registered for task type",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName))

	errorMsg := "no handler registered for task type: " + task.TaskName
	if err := w.repo.FailTask(context.Background(), w.workerID, task.ID, errorMsg); err != nil {
		return fmt.Errorf("failed to dead-letter task %s: %w", task.ID, err)
	}

	return ErrHandlerNotFound
}

// handleTaskFailure reschedules the task with backoff, or dead-letters it
// when the error is permanent or the attempt budget is spent.
func (w *Worker) handleTaskFailure(task *Task, execErr error, duration time.Duration) error {
	attempt := int(task.Attempts) + 1
	maxAttempts := task.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = w.retry.MaxAttempts
	}

	logAttrs := []any{
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", int(maxAttempts)),
		slog.Duration("duration", duration),
		slog.String("error", execErr.Error()),
	}

	// Storage ops use a fresh context: the worker context may already be cancelled.
	ctx := context.Background()

	if IsPermanent(execErr) || attempt >= int(maxAttempts) {
		if err := w.repo.FailTask(ctx, w.workerID, task.ID, execErr.Error()); err != nil {
			return fmt.Errorf("failed to dead-letter task %s: %w", task.ID, err)
		}
		w.logger.Warn("task moved to dead letter queue", logAttrs...)
		return nil
	}

	delay := w.retry.Backoff(attempt)
	retryAt := time.Now().UTC().Add(delay)
	if err := w.repo.RetryTask(ctx, w.workerID, task.ID, execErr.Error(), retryAt); err != nil {
		return fmt.Errorf("failed to reschedule task %s: %w", task.ID, err)
	}

	w.logger.Error("task failed, retry scheduled", append(logAttrs, slog.Duration("retry_in", delay))...)
	return nil
}

func (w *Worker) handleTaskSuccess(task *Task, duration time.Duration) error {
	if err := w.repo.CompleteTask(context.Background(), w.workerID, task.ID); err != nil {
		return fmt.Errorf("failed to mark task %s as completed: %w", task.ID, err)
	}

	w.logger.Info("task completed successfully",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.String("queue", task.Queue),
		slog.Int("attempt", int(task.Attempts)+1),
		slog.Duration("duration", duration))

	return nil
}

// ExtendLockForTask extends the lock timeout for a long-running task
func (w *Worker) ExtendLockForTask(ctx context.Context, taskID uuid.UUID, extension time.Duration) error {
	return w.repo.ExtendLock(ctx, w.workerID, taskID, extension)
}
