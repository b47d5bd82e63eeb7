package queue

import "errors"

// Common errors
var (
	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrInvalidPriority is returned when priority is outside valid range
	ErrInvalidPriority = errors.New("priority must be between 0 and 100")

	// ErrHandlerNotFound is returned when no handler is registered for a task
	ErrHandlerNotFound = errors.New("no handler registered for task type")

	// ErrNoHandlers is returned when worker has no handlers registered
	ErrNoHandlers = errors.New("no task handlers registered")

	// ErrNoTaskToClaim is returned by storages when no task is ready for processing
	ErrNoTaskToClaim = errors.New("no task to claim")

	// ErrTaskNotFound is returned when a task does not exist in storage
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotProcessing is returned when a state change requires a claimed task
	ErrTaskNotProcessing = errors.New("task is not in processing state")

	// ErrTaskLockLost is returned when the task is now locked by another worker
	ErrTaskLockLost = errors.New("task is locked by another worker")

	// ErrDuplicateTask is returned when a live task with the same key already exists
	ErrDuplicateTask = errors.New("task with the same key already exists")

	// ErrInvalidSchedule is returned when the pruner cron expression cannot be parsed
	ErrInvalidSchedule = errors.New("invalid schedule format")
)

// permanentError marks a handler failure that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the worker fails the task without further attempts.
// Returns nil for a nil error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
