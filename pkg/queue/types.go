package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is the default queue name used when no queue is specified
const DefaultQueueName = "default"

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Priority represents task priority (0-100, higher is more important)
type Priority int8

const (
	PriorityMin     Priority = 0
	PriorityLow     Priority = 25
	PriorityMedium  Priority = 50
	PriorityHigh    Priority = 75
	PriorityMax     Priority = 100
	PriorityDefault Priority = PriorityMedium
)

// Valid checks if the priority is within valid range
func (p Priority) Valid() bool {
	return p >= PriorityMin && p <= PriorityMax
}

// Task represents a unit of work in the queue.
// Key, when set, identifies the business entity the task acts on; storages
// refuse a second live task with the same key so that all attempts for one
// entity flow through a single task.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Queue       string     `json:"queue"`
	TaskName    string     `json:"task_name"`
	Key         string     `json:"key,omitempty"`
	Payload     []byte     `json:"payload,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	Attempts    int8       `json:"attempts"`
	MaxAttempts int8       `json:"max_attempts"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID `json:"locked_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsLastAttempt reports whether a failure of the current attempt exhausts the task.
func (t *Task) IsLastAttempt() bool {
	return t.Attempts+1 >= t.MaxAttempts
}

// DeadTask is a task that exhausted its attempts or failed permanently.
// Kept for inspection until pruned.
type DeadTask struct {
	TaskID   uuid.UUID `json:"task_id"`
	Queue    string    `json:"queue"`
	TaskName string    `json:"task_name"`
	Key      string    `json:"key,omitempty"`
	Payload  []byte    `json:"payload,omitempty"`
	Error    string    `json:"error"`
	Attempts int8      `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}
