package email

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/validator"
)

// EmailSender represents an interface for sending emails.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	From     string `json:"from,omitempty"`     // Overrides the configured sender
	SendTo   string `json:"send_to"`            // Email address of the recipient
	ReplyTo  string `json:"reply_to,omitempty"` // Optional
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html,omitempty"`
	BodyText string `json:"body_text,omitempty"`
	Tag      string `json:"tag,omitempty"` // Optional
}

func validAddress(s string) bool {
	return validator.ValidEmail("address", s).Check()
}

// Validate checks required fields. At least one of BodyHTML and BodyText is required.
func (p SendEmailParams) Validate() error {
	if p.SendTo == "" {
		return fmt.Errorf("%w: SendTo is required", ErrInvalidParams)
	}
	if !validAddress(p.SendTo) {
		return fmt.Errorf("%w: SendTo must be a valid email address", ErrInvalidParams)
	}
	if p.From != "" && !validAddress(p.From) {
		return fmt.Errorf("%w: From must be a valid email address", ErrInvalidParams)
	}
	if p.ReplyTo != "" && !validAddress(p.ReplyTo) {
		return fmt.Errorf("%w: ReplyTo must be a valid email address", ErrInvalidParams)
	}
	if p.Subject == "" {
		return fmt.Errorf("%w: Subject is required", ErrInvalidParams)
	}
	if p.BodyHTML == "" && p.BodyText == "" {
		return fmt.Errorf("%w: BodyHTML or BodyText is required", ErrInvalidParams)
	}
	return nil
}
