package queue

import (
	"log/slog"
	"time"
)

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	queues             []string
	pullInterval       time.Duration
	lockTimeout        time.Duration
	maxConcurrentTasks int
	retry              RetryPolicy
	logger             *slog.Logger
}

// WithQueues sets which queues the worker should pull from
func WithQueues(queues ...string) WorkerOption {
	return func(o *workerOptions) {
		if len(queues) > 0 {
			o.queues = queues
		}
	}
}

// WithPullInterval sets how often the worker checks for new tasks
func WithPullInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithLockTimeout sets the lock duration for tasks. It also bounds handler run time.
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithMaxConcurrentTasks sets the maximum number of concurrent tasks
func WithMaxConcurrentTasks(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrentTasks = n
		}
	}
}

// WithRetryPolicy sets the backoff used between attempts.
// Invalid policies are ignored.
func WithRetryPolicy(p RetryPolicy) WorkerOption {
	return func(o *workerOptions) {
		if p.valid() {
			o.retry = p
		}
	}
}

// WithWorkerConfig applies pull interval, lock timeout, concurrency and retry settings from cfg.
func WithWorkerConfig(cfg Config) WorkerOption {
	return func(o *workerOptions) {
		WithPullInterval(cfg.PollInterval)(o)
		WithLockTimeout(cfg.LockTimeout)(o)
		WithMaxConcurrentTasks(cfg.MaxConcurrentTasks)(o)
		WithRetryPolicy(cfg.RetryPolicy())(o)
	}
}

// WithWorkerLogger sets the logger for the worker
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
