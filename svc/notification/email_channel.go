package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/email/templates"
)

// EmailSenders hands out a sender for an owner's API key.
// *email.SenderFactory satisfies it.
type EmailSenders interface {
	Sender(apiKey string) (email.EmailSender, error)
}

// EmailChannel delivers notifications by transactional email.
type EmailChannel struct {
	senders EmailSenders
	timeout time.Duration
	tag     string
}

type EmailChannelOption func(*EmailChannel)

// WithEmailTimeout bounds each send. Non-positive values are ignored.
func WithEmailTimeout(d time.Duration) EmailChannelOption {
	return func(c *EmailChannel) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithEmailTag sets the provider message tag.
func WithEmailTag(tag string) EmailChannelOption {
	return func(c *EmailChannel) {
		c.tag = tag
	}
}

func NewEmailChannel(senders EmailSenders, opts ...EmailChannelOption) *EmailChannel {
	if senders == nil {
		panic("notification: EmailSenders is required")
	}
	c := &EmailChannel{
		senders: senders,
		timeout: DefaultDeliveryTimeout,
		tag:     "notification",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *EmailChannel) Channel() Channel { return ChannelEmail }

// Deliver sends p to the owner's mailbox. The recipient address of the
// notification becomes the Reply-To.
func (c *EmailChannel) Deliver(ctx context.Context, p Payload, creds Credentials) (Outcome, error) {
	ec := creds.Email
	if ec == nil || strings.TrimSpace(ec.APIKey) == "" {
		return 0, newDeliveryError(ChannelEmail, "email api key is not configured", nil)
	}
	if strings.TrimSpace(ec.To) == "" {
		return 0, newDeliveryError(ChannelEmail, "email destination is not configured", nil)
	}

	sender, err := c.senders.Sender(ec.APIKey)
	if err != nil {
		return 0, newDeliveryError(ChannelEmail, err.Error(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	subject := fmt.Sprintf("New notification from %s", p.Name)
	greeting := fmt.Sprintf("%s <%s> sent you a message:", p.Name, p.Email)

	html, err := templates.Render(ctx, templates.Notification(subject, greeting, p.Message))
	if err != nil {
		return 0, newDeliveryError(ChannelEmail, "failed to render email body", err)
	}

	err = sender.SendEmail(ctx, email.SendEmailParams{
		From:     strings.TrimSpace(ec.From),
		SendTo:   strings.TrimSpace(ec.To),
		ReplyTo:  p.Email,
		Subject:  subject,
		BodyHTML: html,
		BodyText: greeting + "\n\n" + p.Message,
		Tag:      c.tag,
	})
	if err != nil {
		return 0, providerError(ChannelEmail, c.timeout, err)
	}
	return Delivered, nil
}
