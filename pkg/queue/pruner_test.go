package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pruneRecorder struct {
	cutoffs chan time.Time
	n       int
	err     error
}

func (r *pruneRecorder) PruneTasks(ctx context.Context, before time.Time) (int, error) {
	select {
	case r.cutoffs <- before:
	default:
	}
	return r.n, r.err
}

func TestPruner(t *testing.T) {
	t.Parallel()

	t.Run("invalid schedule", func(t *testing.T) {
		t.Parallel()

		_, err := NewPruner(&pruneRecorder{}, "every now and then")
		assert.ErrorIs(t, err, ErrInvalidSchedule)
	})

	t.Run("nil repository", func(t *testing.T) {
		t.Parallel()

		_, err := NewPruner(nil, "@hourly")
		assert.ErrorIs(t, err, ErrRepositoryNil)
	})

	t.Run("prune uses retention cutoff", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		rec := &pruneRecorder{cutoffs: make(chan time.Time, 1), n: 4}
		p, err := NewPruner(rec, "@hourly", WithRetention(30*time.Minute), withClock(func() time.Time { return now }))
		require.NoError(t, err)

		n, err := p.Prune(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Equal(t, now.Add(-30*time.Minute), <-rec.cutoffs)
	})

	t.Run("prune error is wrapped", func(t *testing.T) {
		t.Parallel()

		storeErr := errors.New("unavailable")
		p, err := NewPruner(&pruneRecorder{cutoffs: make(chan time.Time, 1), err: storeErr}, "@hourly")
		require.NoError(t, err)

		_, err = p.Prune(context.Background())
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("run executes on schedule and stops with context", func(t *testing.T) {
		t.Parallel()

		rec := &pruneRecorder{cutoffs: make(chan time.Time, 1)}
		p, err := NewPruner(rec, "@every 1s")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- p.Run(ctx)() }()

		select {
		case <-rec.cutoffs:
		case <-time.After(3 * time.Second):
			t.Fatal("pruner did not run")
		}

		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("pruner did not stop")
		}
	})
}
