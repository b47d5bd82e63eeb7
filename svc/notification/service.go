package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/sanitizer"
	"github.com/dmitrymomot/notifykit/pkg/validator"
)

// CreateParams is the input of Service.Create.
type CreateParams struct {
	Owner    string         `json:"owner"`
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ListParams is the raw query of Service.List.
type ListParams struct {
	Status string
	Email  string
	// CreatedBefore pages back in time; zero means no bound.
	CreatedBefore time.Time
	Limit         int
	Offset        int
}

// Service creates notifications and answers queries about them.
type Service struct {
	repo     Repository
	resolver *ConfigResolver
	queue    DispatchQueue
	logger   *slog.Logger
}

type ServiceOption func(*Service)

func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService wires the creation and query paths.
// Panics if a dependency is nil.
func NewService(repo Repository, resolver *ConfigResolver, q DispatchQueue, opts ...ServiceOption) *Service {
	if repo == nil {
		panic("notification: Repository is required")
	}
	if resolver == nil {
		panic("notification: ConfigResolver is required")
	}
	if q == nil {
		panic("notification: DispatchQueue is required")
	}

	s := &Service{
		repo:     repo,
		resolver: resolver,
		queue:    q,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates p, resolves the owner's channels, stores a PENDING
// notification and queues it for delivery.
//
// Validation and configuration errors are returned before anything is
// stored. If queuing fails the stored notification is marked FAILED and
// the error is returned.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Notification, error) {
	if err := validateContent(p); err != nil {
		return nil, err
	}

	cfg, err := s.resolver.Resolve(ctx, p.Owner)
	if err != nil {
		return nil, err
	}
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoChannelsConfigured, cfg.Owner)
	}

	n, err := New(NewParams{
		Name:     p.Name,
		Email:    p.Email,
		Message:  p.Message,
		Channels: cfg.Channels,
		Metadata: p.Metadata,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	ctx = logger.WithNotification(ctx, n.ID, cfg.Owner)
	item := DispatchItem{NotificationID: n.ID, Owner: cfg.Owner, Channels: n.Channels}
	if err := s.queue.Enqueue(ctx, item); err != nil {
		s.logger.ErrorContext(ctx, "failed to queue notification", logger.Error(err))
		if mErr := n.MarkNotQueued(err.Error()); mErr == nil {
			if uErr := s.repo.Update(ctx, n); uErr != nil {
				s.logger.ErrorContext(ctx, "failed to record queue failure", logger.Error(uErr))
			}
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "notification queued",
		slog.Any("channels", n.Channels),
	)
	return n, nil
}

func validateContent(p CreateParams) error {
	rules := []validator.Rule{
		ownerRule(sanitizer.NormalizeEmail(p.Owner)),
		nameRule(sanitizer.Trim(p.Name)),
		emailRule(sanitizer.TrimToLower(p.Email)),
	}
	rules = append(rules, messageRules(sanitizer.Trim(p.Message))...)
	return validator.Apply(rules...)
}

// Get returns a notification by id.
func (s *Service) Get(ctx context.Context, id string) (*Notification, error) {
	nid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, nid)
}

// List returns notifications newest first. Limit defaults to
// DefaultListLimit and is capped at MaxListLimit.
func (s *Service) List(ctx context.Context, p ListParams) (*Page, error) {
	if p.Limit < 0 || p.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidListQuery)
	}

	filter := ListFilter{
		Email:         sanitizer.Trim(p.Email),
		CreatedBefore: p.CreatedBefore,
		Limit:         p.Limit,
		Offset:        p.Offset,
	}
	if p.Status != "" {
		st, err := ParseStatus(p.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = st
	}
	return s.repo.List(ctx, filter)
}

// Stats aggregates all notifications.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}
