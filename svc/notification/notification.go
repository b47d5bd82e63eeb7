package notification

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/sanitizer"
	"github.com/dmitrymomot/notifykit/pkg/statemachine"
	"github.com/dmitrymomot/notifykit/pkg/validator"
)

// Notification is a single message addressed to one recipient and
// delivered over the owner's channels.
type Notification struct {
	ID           string         `json:"id" bson:"_id"`
	Name         string         `json:"name" bson:"name"`
	Email        string         `json:"email" bson:"email"`
	Message      string         `json:"message" bson:"message"`
	Channels     []Channel      `json:"channels" bson:"channels"`
	Status       Status         `json:"status" bson:"status"`
	ErrorMessage string         `json:"error_message,omitempty" bson:"error_message,omitempty"`
	SentAt       *time.Time     `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	RetryCount   int            `json:"retry_count" bson:"retry_count"`
	Metadata     map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" bson:"updated_at"`
}

// NewParams holds raw input for New.
type NewParams struct {
	Name     string
	Email    string
	Message  string
	Channels []Channel
	Metadata map[string]any
}

// New validates p and returns a PENDING notification.
// All validation failures are reported together as validator.ValidationErrors.
func New(p NewParams) (*Notification, error) {
	name := sanitizer.Trim(p.Name)
	email := sanitizer.TrimToLower(p.Email)
	message := sanitizer.Trim(p.Message)

	rules := []validator.Rule{nameRule(name), emailRule(email)}
	rules = append(rules, messageRules(message)...)
	rules = append(rules, channelRules(p.Channels)...)
	if err := validator.Apply(rules...); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Notification{
		ID:        NewID(),
		Name:      name,
		Email:     email,
		Message:   message,
		Channels:  uniqueChannels(p.Channels),
		Status:    StatusPending,
		Metadata:  maps.Clone(p.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

type event string

const (
	eventDelivered event = "delivered"
	eventFailed    event = "failed"
)

var lifecycle = statemachine.MustTable(
	statemachine.Transition[Status, event]{From: StatusPending, Event: eventDelivered, To: StatusSent},
	statemachine.Transition[Status, event]{From: StatusFailed, Event: eventDelivered, To: StatusSent},
	statemachine.Transition[Status, event]{From: StatusSent, Event: eventDelivered, To: StatusSent},
	statemachine.Transition[Status, event]{From: StatusPending, Event: eventFailed, To: StatusFailed},
	statemachine.Transition[Status, event]{From: StatusFailed, Event: eventFailed, To: StatusFailed},
)

// MarkSent records successful delivery over every channel.
// Calling it on a SENT notification changes nothing.
func (n *Notification) MarkSent() error {
	next, err := lifecycle.Next(n.Status, eventDelivered)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	}
	if n.Status == StatusSent {
		return nil
	}

	now := time.Now().UTC()
	n.Status = next
	n.SentAt = &now
	n.ErrorMessage = ""
	n.UpdatedAt = now
	return nil
}

// MarkFailed records a failed delivery attempt with its reason.
// A SENT notification cannot fail.
func (n *Notification) MarkFailed(reason string) error {
	return n.fail(reason, true)
}

// MarkNotQueued records a failure that happened before any delivery
// attempt, such as a rejected enqueue. RetryCount is left unchanged.
func (n *Notification) MarkNotQueued(reason string) error {
	return n.fail(reason, false)
}

func (n *Notification) fail(reason string, attempted bool) error {
	next, err := lifecycle.Next(n.Status, eventFailed)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	}

	n.Status = next
	n.ErrorMessage = reason
	if attempted {
		n.RetryCount++
	}
	n.UpdatedAt = time.Now().UTC()
	return nil
}

// IsSent reports whether delivery has completed.
func (n *Notification) IsSent() bool {
	return n.Status == StatusSent
}

// Clone returns a deep copy.
func (n *Notification) Clone() *Notification {
	c := *n
	c.Channels = slices.Clone(n.Channels)
	c.Metadata = maps.Clone(n.Metadata)
	if n.SentAt != nil {
		t := *n.SentAt
		c.SentAt = &t
	}
	return &c
}

func uniqueChannels(in []Channel) []Channel {
	out := make([]Channel, 0, len(in))
	for _, c := range in {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}
