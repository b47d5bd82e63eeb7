package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/notifykit/pkg/telegram"
)

// TelegramSender posts a bot message. *telegram.Client satisfies it.
type TelegramSender interface {
	SendMessage(ctx context.Context, msg telegram.Message) error
}

// TelegramChannel delivers notifications as bot messages.
// An owner without telegram credentials is skipped; incomplete or
// rejected credentials fail the delivery.
type TelegramChannel struct {
	client TelegramSender
}

func NewTelegramChannel(client TelegramSender) *TelegramChannel {
	if client == nil {
		panic("notification: TelegramSender is required")
	}
	return &TelegramChannel{client: client}
}

func (c *TelegramChannel) Channel() Channel { return ChannelTelegram }

func (c *TelegramChannel) Deliver(ctx context.Context, p Payload, creds Credentials) (Outcome, error) {
	tc := creds.Telegram
	if tc.IsZero() {
		return Skipped, nil
	}
	token, chatID := strings.TrimSpace(tc.Token), strings.TrimSpace(tc.ChatID)
	if token == "" || chatID == "" {
		return 0, newDeliveryError(ChannelTelegram, "telegram credentials are incomplete: token and chat id are required", nil)
	}

	err := c.client.SendMessage(ctx, telegram.Message{
		Token:  token,
		ChatID: chatID,
		Text:   telegramText(p),
	})
	if err != nil {
		return 0, newDeliveryError(ChannelTelegram, err.Error(), err)
	}
	return Delivered, nil
}

// telegramText formats p for HTML parse mode.
func telegramText(p Payload) string {
	return fmt.Sprintf("<b>New notification</b>\n\n<b>Name:</b> %s\n<b>Email:</b> %s\n\n%s",
		templ.EscapeString(p.Name),
		templ.EscapeString(p.Email),
		templ.EscapeString(p.Message),
	)
}
