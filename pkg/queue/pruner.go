package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// PrunerRepository removes finished tasks.
type PrunerRepository interface {
	// PruneTasks deletes completed and dead-lettered tasks that finished
	// before the cutoff and returns how many were removed.
	PruneTasks(ctx context.Context, before time.Time) (int, error)
}

// Pruner periodically removes completed and dead-lettered tasks older than
// the retention window.
type Pruner struct {
	repo      PrunerRepository
	retention time.Duration
	schedule  cron.Schedule
	spec      string
	logger    *slog.Logger
	now       func() time.Time

	mu sync.Mutex
	c  *cron.Cron
}

// PrunerOption configures a Pruner
type PrunerOption func(*Pruner)

// WithRetention sets how long finished tasks are kept.
func WithRetention(d time.Duration) PrunerOption {
	return func(p *Pruner) {
		if d > 0 {
			p.retention = d
		}
	}
}

// WithPrunerLogger sets the logger for the pruner
func WithPrunerLogger(logger *slog.Logger) PrunerOption {
	return func(p *Pruner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// withClock overrides the time source; used by tests.
func withClock(now func() time.Time) PrunerOption {
	return func(p *Pruner) {
		p.now = now
	}
}

var prunerParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewPruner creates a pruner running on a standard five-field cron
// expression or descriptor such as "@every 10m".
func NewPruner(repo PrunerRepository, spec string, opts ...PrunerOption) (*Pruner, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	schedule, err := prunerParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, spec, err)
	}

	p := &Pruner{
		repo:      repo,
		retention: time.Hour,
		schedule:  schedule,
		spec:      spec,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Prune runs a single pruning pass.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.repo.PruneTasks(ctx, cutoff)
	if err != nil {
		return n, fmt.Errorf("failed to prune tasks: %w", err)
	}
	return n, nil
}

// Run starts the cron loop and returns a function suitable for errgroup.
// The loop stops when ctx is done; a running pass is allowed to finish.
func (p *Pruner) Run(ctx context.Context) func() error {
	return func() error {
		p.mu.Lock()
		if p.c != nil {
			p.mu.Unlock()
			return fmt.Errorf("pruner already started")
		}
		p.c = cron.New(cron.WithParser(prunerParser))
		p.c.Schedule(p.schedule, cron.FuncJob(func() {
			n, err := p.Prune(ctx)
			if err != nil {
				p.logger.Error("task pruning failed", slog.String("error", err.Error()))
				return
			}
			if n > 0 {
				p.logger.Info("pruned finished tasks",
					slog.Int("removed", n),
					slog.Duration("retention", p.retention))
			}
		}))
		c := p.c
		p.mu.Unlock()

		c.Start()
		p.logger.Info("task pruner started",
			slog.String("schedule", p.spec),
			slog.Duration("retention", p.retention))

		<-ctx.Done()
		<-c.Stop().Done()

		p.mu.Lock()
		p.c = nil
		p.mu.Unlock()

		return nil
	}
}
