package queue_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

func TestRetryPolicy_Backoff(t *testing.T) {
	t.Parallel()

	t.Run("default policy doubles from two seconds", func(t *testing.T) {
		t.Parallel()

		p := queue.DefaultRetryPolicy()
		assert.Equal(t, int8(3), p.MaxAttempts)
		assert.Equal(t, time.Duration(0), p.Backoff(0))
		assert.Equal(t, 2*time.Second, p.Backoff(1))
		assert.Equal(t, 4*time.Second, p.Backoff(2))
		assert.Equal(t, 8*time.Second, p.Backoff(3))
	})

	t.Run("max delay caps growth", func(t *testing.T) {
		t.Parallel()

		p := queue.RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 5 * time.Second}
		assert.Equal(t, 4*time.Second, p.Backoff(3))
		assert.Equal(t, 5*time.Second, p.Backoff(4))
		assert.Equal(t, 5*time.Second, p.Backoff(60))
	})

	t.Run("zero base delay retries immediately", func(t *testing.T) {
		t.Parallel()

		p := queue.RetryPolicy{MaxAttempts: 3}
		assert.Equal(t, time.Duration(0), p.Backoff(2))
	})
}

func TestPermanent(t *testing.T) {
	t.Parallel()

	base := errors.New("bad input")
	err := fmt.Errorf("handler: %w", queue.Permanent(base))

	assert.True(t, queue.IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, queue.IsPermanent(base))
	assert.NoError(t, queue.Permanent(nil))
}
