package queue

import "time"

// Config holds the configuration for the task queue
type Config struct {
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	LockTimeout        time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"10"`
	MaxAttempts        int8          `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
	BackoffBase        time.Duration `env:"QUEUE_BACKOFF_BASE" envDefault:"2s"`
	BackoffMax         time.Duration `env:"QUEUE_BACKOFF_MAX" envDefault:"5m"`
	Retention          time.Duration `env:"QUEUE_RETENTION" envDefault:"1h"`
	PruneSchedule      string        `env:"QUEUE_PRUNE_SCHEDULE" envDefault:"@every 10m"`
	RedisKeyPrefix     string        `env:"QUEUE_REDIS_PREFIX" envDefault:"queue"`
}

// RetryPolicy returns the retry policy described by the config.
func (c Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   c.BackoffBase,
		MaxDelay:    c.BackoffMax,
	}
}
