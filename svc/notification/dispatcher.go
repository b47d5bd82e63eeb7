package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Dispatcher is the dispatch worker: it delivers one notification per
// queue item and records the outcome on the entity.
type Dispatcher struct {
	repo       Repository
	resolver   *ConfigResolver
	deliverers map[Channel]Deliverer
	logger     *slog.Logger
}

type DispatcherOption func(*Dispatcher)

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a dispatcher. Each deliverer serves the channel
// it reports; a later deliverer for the same channel wins.
func NewDispatcher(repo Repository, resolver *ConfigResolver, deliverers []Deliverer, opts ...DispatcherOption) (*Dispatcher, error) {
	if repo == nil || resolver == nil {
		return nil, ErrNilDependency
	}

	d := &Dispatcher{
		repo:       repo,
		resolver:   resolver,
		deliverers: make(map[Channel]Deliverer, len(deliverers)),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, dl := range deliverers {
		d.deliverers[dl.Channel()] = dl
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Handler registers Process with a queue worker.
func (d *Dispatcher) Handler() queue.Handler {
	return queue.NewNamedTaskHandler[DispatchItem](DispatchTaskName, d.Process)
}

// Process runs one delivery attempt for item.
//
// A missing notification and an empty channel list are permanent
// failures. A delivery failure marks the notification FAILED and returns
// a retryable error. Repository errors are returned as is.
func (d *Dispatcher) Process(ctx context.Context, item DispatchItem) error {
	ctx = logger.WithNotification(ctx, item.NotificationID, item.Owner)
	start := time.Now()

	n, err := d.repo.Get(ctx, item.NotificationID)
	if errors.Is(err, ErrNotificationNotFound) {
		d.logger.WarnContext(ctx, "dropping dispatch for unknown notification", logger.Error(err))
		return queue.Permanent(err)
	}
	if err != nil {
		return err
	}

	// A lock expiry can hand an already delivered item to another attempt.
	if n.IsSent() {
		d.logger.InfoContext(ctx, "notification already sent")
		return nil
	}

	if len(item.Channels) == 0 {
		return d.fail(ctx, n, ErrNoChannelsConfigured.Error(), ErrNoChannelsConfigured, true)
	}

	cfg, err := d.resolver.Resolve(ctx, item.Owner)
	if err != nil {
		return d.fail(ctx, n, err.Error(), err, false)
	}

	payload := payloadOf(n)
	for _, ch := range item.Channels {
		dl, ok := d.deliverers[ch]
		if !ok {
			derr := newDeliveryError(ch, ErrChannelNotWired.Error(), ErrChannelNotWired)
			return d.fail(ctx, n, derr.Error(), derr, false)
		}

		outcome, err := dl.Deliver(ctx, payload, cfg.Credentials)
		if err != nil {
			reason := err.Error()
			var derr *DeliveryError
			if !errors.As(err, &derr) {
				err = newDeliveryError(ch, reason, err)
				reason = err.Error()
			}
			return d.fail(ctx, n, reason, err, false)
		}
		d.logger.DebugContext(ctx, "channel processed",
			logger.Channel(ch.String()),
			slog.String("outcome", outcome.String()),
		)
	}

	if err := n.MarkSent(); err != nil {
		return queue.Permanent(err)
	}
	if err := d.repo.Update(ctx, n); err != nil {
		return err
	}

	d.logger.InfoContext(ctx, "notification sent",
		logger.Status(string(n.Status)),
		logger.Duration(time.Since(start)),
	)
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, n *Notification, reason string, cause error, permanent bool) error {
	if err := n.MarkFailed(reason); err != nil {
		return queue.Permanent(err)
	}
	if err := d.repo.Update(ctx, n); err != nil {
		return err
	}

	d.logger.WarnContext(ctx, "notification delivery failed",
		logger.RetryCount(n.RetryCount),
		logger.Error(cause),
	)

	err := fmt.Errorf("%w: %w", ErrDeliveryFailed, cause)
	if permanent {
		return queue.Permanent(err)
	}
	return err
}
