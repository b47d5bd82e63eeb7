package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultDeliveryTimeout bounds one adapter call.
const DefaultDeliveryTimeout = 10 * time.Second

// Payload is the channel-independent content of a notification.
type Payload struct {
	ID      string
	Name    string
	Email   string
	Message string
}

func payloadOf(n *Notification) Payload {
	return Payload{ID: n.ID, Name: n.Name, Email: n.Email, Message: n.Message}
}

// Outcome is the result of a successful Deliver call.
type Outcome int

const (
	Delivered Outcome = iota
	// Skipped means the channel is intentionally unconfigured for the owner.
	Skipped
)

func (o Outcome) String() string {
	if o == Skipped {
		return "skipped"
	}
	return "delivered"
}

// Deliverer sends a payload over one channel.
// Failures are reported as *DeliveryError.
type Deliverer interface {
	Channel() Channel
	Deliver(ctx context.Context, p Payload, creds Credentials) (Outcome, error)
}

// DeliveryError is a failed delivery over a single channel.
type DeliveryError struct {
	Channel Channel
	Reason  string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Channel, e.Reason)
}

func (e *DeliveryError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDeliveryFailed}
	}
	return []error{ErrDeliveryFailed, e.Err}
}

// A reason already prefixed with the channel name loses that prefix so
// Error does not repeat it.
func newDeliveryError(ch Channel, reason string, err error) *DeliveryError {
	reason = strings.TrimPrefix(reason, ch.String()+": ")
	return &DeliveryError{Channel: ch, Reason: reason, Err: err}
}

// providerError turns a provider failure into a DeliveryError. Deadline
// errors get a reason mentioning the timeout.
func providerError(ch Channel, timeout time.Duration, err error) *DeliveryError {
	if errors.Is(err, context.DeadlineExceeded) {
		return newDeliveryError(ch, fmt.Sprintf("timeout after %s", timeout), err)
	}
	return newDeliveryError(ch, err.Error(), err)
}
