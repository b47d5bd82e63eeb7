package queue

import "time"

// RetryPolicy bounds the number of attempts per task and spaces retries
// with exponential backoff: BaseDelay, 2*BaseDelay, 4*BaseDelay, ...
type RetryPolicy struct {
	MaxAttempts int8
	BaseDelay   time.Duration
	MaxDelay    time.Duration // zero means uncapped
}

// DefaultRetryPolicy allows three attempts with 2s, 4s, 8s... between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
	}
}

// Backoff returns the delay before the next attempt after the given number
// of failed attempts (1-based).
func (p RetryPolicy) Backoff(failedAttempts int) time.Duration {
	if failedAttempts < 1 || p.BaseDelay <= 0 {
		return 0
	}

	delay := p.BaseDelay
	for i := 1; i < failedAttempts; i++ {
		delay *= 2
		// Stop doubling once capped; also guards against overflow
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
		if delay <= 0 {
			return p.MaxDelay
		}
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func (p RetryPolicy) valid() bool {
	return p.MaxAttempts > 0 && p.BaseDelay >= 0
}
