package notification

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/sanitizer"
	"github.com/dmitrymomot/notifykit/pkg/validator"
)

// MaxMessageLength is the message limit in characters (runes).
const MaxMessageLength = 1000

// Channel is a delivery medium.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
)

// Channels lists every known channel in canonical order.
var Channels = []Channel{ChannelEmail, ChannelTelegram}

func (c Channel) String() string { return string(c) }

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelTelegram
}

// ParseChannel parses a channel name case-insensitively.
func ParseChannel(s string) (Channel, error) {
	c := Channel(sanitizer.TrimToLower(s))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, s)
	}
	return c, nil
}

// ParseChannels parses every value. Any unknown value fails the whole list;
// duplicates collapse onto their first occurrence.
func ParseChannels(values []string) ([]Channel, error) {
	out := make([]Channel, 0, len(values))
	seen := make(map[Channel]struct{}, len(values))
	for _, v := range values {
		c, err := ParseChannel(v)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

// Status is the lifecycle state of a notification.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusSent, StatusFailed}

func (s Status) String() string { return string(s) }

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusSent || s == StatusFailed
}

// ParseStatus accepts any letter case.
func ParseStatus(s string) (Status, error) {
	st := Status(sanitizer.TrimToUpper(s))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Field names reported in validation errors.
const (
	fieldOwner    = "owner"
	fieldName     = "name"
	fieldEmail    = "email"
	fieldMessage  = "message"
	fieldChannels = "channels"
)

func ownerRule(owner string) validator.Rule {
	return validator.RequiredString(fieldOwner, owner).WithError(ErrInvalidOwner)
}

func nameRule(name string) validator.Rule {
	return validator.RequiredString(fieldName, name).WithError(ErrEmptyName)
}

func emailRule(email string) validator.Rule {
	return validator.ValidEmail(fieldEmail, email).WithError(ErrInvalidEmail)
}

func messageRules(message string) []validator.Rule {
	return []validator.Rule{
		validator.RequiredString(fieldMessage, message).WithError(ErrEmptyMessage),
		validator.MaxLenString(fieldMessage, message, MaxMessageLength).WithError(ErrMessageTooLong),
	}
}

func channelRules(channels []Channel) []validator.Rule {
	rules := []validator.Rule{{
		Check: func() bool { return len(channels) > 0 },
		Error: validator.ValidationError{
			Field:   fieldChannels,
			Message: "at least one channel is required",
			Err:     ErrNoChannelsConfigured,
		},
	}}
	for _, c := range channels {
		rules = append(rules, validator.Rule{
			Check: c.Valid,
			Error: validator.ValidationError{
				Field:   fieldChannels,
				Message: fmt.Sprintf("unknown channel %q", c),
				Err:     ErrUnknownChannel,
			},
		})
	}
	return rules
}

// ParseEmail trims and lower-cases s and requires a bare RFC 5322 address.
func ParseEmail(s string) (string, error) {
	e := sanitizer.TrimToLower(s)
	if err := validator.Apply(emailRule(e)); err != nil {
		return "", err
	}
	return e, nil
}

// ParseMessage trims s and enforces 1..MaxMessageLength characters.
func ParseMessage(s string) (string, error) {
	m := sanitizer.Trim(s)
	if err := validator.Apply(messageRules(m)...); err != nil {
		return "", err
	}
	return m, nil
}

// ParseName trims s and requires a non-empty result.
func ParseName(s string) (string, error) {
	n := sanitizer.Trim(s)
	if err := validator.Apply(nameRule(n)); err != nil {
		return "", err
	}
	return n, nil
}

// NewID returns a fresh notification id.
func NewID() string {
	return uuid.NewString()
}

// ParseID validates a notification id and returns its canonical form.
func ParseID(s string) (string, error) {
	id, err := uuid.Parse(sanitizer.Trim(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id.String(), nil
}

// NormalizeOwner returns the lookup key for an owner identifier: trimmed,
// lower-cased, with repeated dots collapsed in an address local part.
func NormalizeOwner(s string) (string, error) {
	o := sanitizer.NormalizeEmail(s)
	if err := validator.Apply(ownerRule(o)); err != nil {
		return "", err
	}
	return o, nil
}
