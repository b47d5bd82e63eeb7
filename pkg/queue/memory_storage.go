package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements all queue repository interfaces in process memory
type MemoryStorage struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task
	dead  map[uuid.UUID]*DeadTask

	byStatus map[TaskStatus][]uuid.UUID
	byKey    map[string]uuid.UUID // live (pending/processing) tasks only

	lockTicker *time.Ticker
	done       chan struct{}
	closeOnce  sync.Once
}

// NewMemoryStorage creates a new in-memory storage and starts the lock
// expiration loop; call Close to stop it.
func NewMemoryStorage() *MemoryStorage {
	ms := &MemoryStorage{
		tasks:    make(map[uuid.UUID]*Task),
		dead:     make(map[uuid.UUID]*DeadTask),
		byStatus: make(map[TaskStatus][]uuid.UUID),
		byKey:    make(map[string]uuid.UUID),
		done:     make(chan struct{}),
	}

	ms.lockTicker = time.NewTicker(time.Second)
	go ms.lockExpirationManager()

	return ms
}

// Close stops the background goroutines
func (ms *MemoryStorage) Close() error {
	ms.closeOnce.Do(func() {
		close(ms.done)
		ms.lockTicker.Stop()
	})
	return nil
}

// CreateTask implements EnqueuerRepository
func (ms *MemoryStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("task with ID %s already exists", task.ID)
	}

	if task.Key != "" {
		if _, taken := ms.byKey[task.Key]; taken {
			return ErrDuplicateTask
		}
		ms.byKey[task.Key] = task.ID
	}

	taskCopy := *task
	ms.tasks[task.ID] = &taskCopy
	ms.byStatus[task.Status] = append(ms.byStatus[task.Status], task.ID)

	return nil
}

// ClaimTask implements WorkerRepository.
// Highest priority wins; earliest schedule breaks ties.
func (ms *MemoryStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var best *Task

	for _, taskID := range ms.byStatus[TaskStatusPending] {
		task := ms.tasks[taskID]

		if !containsQueue(queues, task.Queue) || task.ScheduledAt.After(now) {
			continue
		}

		if best == nil ||
			task.Priority > best.Priority ||
			(task.Priority == best.Priority && task.ScheduledAt.Before(best.ScheduledAt)) {
			best = task
		}
	}

	if best == nil {
		return nil, ErrNoTaskToClaim
	}

	lockUntil := now.Add(lockDuration)
	best.Status = TaskStatusProcessing
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID

	ms.moveStatus(best.ID, TaskStatusPending, TaskStatusProcessing)

	taskCopy := *best
	return &taskCopy, nil
}

// CompleteTask implements WorkerRepository
func (ms *MemoryStorage) CompleteTask(ctx context.Context, workerID, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(taskID, workerID)
	if err != nil {
		return err
	}

	now := time.Now()
	task.Status = TaskStatusCompleted
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil
	ms.releaseKey(task)

	ms.moveStatus(taskID, TaskStatusProcessing, TaskStatusCompleted)

	return nil
}

// RetryTask implements WorkerRepository
func (ms *MemoryStorage) RetryTask(ctx context.Context, workerID, taskID uuid.UUID, errorMsg string, retryAt time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(taskID, workerID)
	if err != nil {
		return err
	}

	task.Attempts++
	task.Error = &errorMsg
	task.Status = TaskStatusPending
	task.ScheduledAt = retryAt
	task.LockedUntil = nil
	task.LockedBy = nil

	ms.moveStatus(taskID, TaskStatusProcessing, TaskStatusPending)

	return nil
}

// FailTask implements WorkerRepository
func (ms *MemoryStorage) FailTask(ctx context.Context, workerID, taskID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(taskID, workerID)
	if err != nil {
		return err
	}

	now := time.Now()
	task.Attempts++
	task.Error = &errorMsg
	task.Status = TaskStatusFailed
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil
	ms.releaseKey(task)

	ms.dead[task.ID] = &DeadTask{
		TaskID:   task.ID,
		Queue:    task.Queue,
		TaskName: task.TaskName,
		Key:      task.Key,
		Payload:  task.Payload,
		Error:    errorMsg,
		Attempts: task.Attempts,
		FailedAt: now,
	}

	ms.removeFromStatusIndex(taskID, TaskStatusProcessing)
	delete(ms.tasks, taskID)

	return nil
}

// ExtendLock implements WorkerRepository
func (ms *MemoryStorage) ExtendLock(ctx context.Context, workerID, taskID uuid.UUID, duration time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(taskID, workerID)
	if err != nil {
		return err
	}

	lockUntil := time.Now().Add(duration)
	task.LockedUntil = &lockUntil

	return nil
}

// PruneTasks implements PrunerRepository. Completed tasks processed before
// the cutoff and dead tasks failed before it are removed.
func (ms *MemoryStorage) PruneTasks(ctx context.Context, before time.Time) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	removed := 0
	for _, taskID := range slices.Clone(ms.byStatus[TaskStatusCompleted]) {
		task := ms.tasks[taskID]
		if task.ProcessedAt != nil && task.ProcessedAt.Before(before) {
			ms.removeFromStatusIndex(taskID, TaskStatusCompleted)
			delete(ms.tasks, taskID)
			removed++
		}
	}

	for id, dt := range ms.dead {
		if dt.FailedAt.Before(before) {
			delete(ms.dead, id)
			removed++
		}
	}

	return removed, nil
}

// GetTask returns a copy of a task that has not been dead-lettered or pruned.
func (ms *MemoryStorage) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	task, ok := ms.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}

	taskCopy := *task
	return &taskCopy, nil
}

// DeadTasks returns dead-lettered tasks, oldest failure first.
func (ms *MemoryStorage) DeadTasks(ctx context.Context) ([]DeadTask, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]DeadTask, 0, len(ms.dead))
	for _, dt := range ms.dead {
		out = append(out, *dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FailedAt.Before(out[j].FailedAt) })

	return out, nil
}

func (ms *MemoryStorage) processingTask(taskID, workerID uuid.UUID) (*Task, error) {
	task, exists := ms.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}
	if task.Status != TaskStatusProcessing {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskNotProcessing)
	}
	if task.LockedBy == nil || *task.LockedBy != workerID {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskLockLost)
	}
	return task, nil
}

func (ms *MemoryStorage) releaseKey(task *Task) {
	if task.Key != "" && ms.byKey[task.Key] == task.ID {
		delete(ms.byKey, task.Key)
	}
}

func (ms *MemoryStorage) moveStatus(taskID uuid.UUID, from, to TaskStatus) {
	ms.removeFromStatusIndex(taskID, from)
	ms.byStatus[to] = append(ms.byStatus[to], taskID)
}

func (ms *MemoryStorage) removeFromStatusIndex(taskID uuid.UUID, status TaskStatus) {
	ms.byStatus[status] = slices.DeleteFunc(ms.byStatus[status], func(id uuid.UUID) bool {
		return id == taskID
	})
}

// lockExpirationManager returns tasks held by crashed or stuck workers to
// the pending set once their lock expires.
func (ms *MemoryStorage) lockExpirationManager() {
	for {
		select {
		case <-ms.lockTicker.C:
			ms.expireLocks(time.Now())
		case <-ms.done:
			return
		}
	}
}

// expireLocks resets processing tasks whose lock ended before now.
// The attempt counter is left untouched.
func (ms *MemoryStorage) expireLocks(now time.Time) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	expired := 0
	for _, taskID := range slices.Clone(ms.byStatus[TaskStatusProcessing]) {
		task := ms.tasks[taskID]
		if task.LockedUntil != nil && task.LockedUntil.Before(now) {
			task.Status = TaskStatusPending
			task.LockedUntil = nil
			task.LockedBy = nil
			ms.moveStatus(taskID, TaskStatusProcessing, TaskStatusPending)
			expired++
		}
	}
	return expired
}
