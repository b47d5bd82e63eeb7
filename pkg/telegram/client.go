package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Message is a single text message sent on behalf of a bot.
// Text is sent with HTML parse mode, so callers must escape user input.
type Message struct {
	Token  string
	ChatID string
	Text   string
}

// tokenRegex matches "<bot id>:<secret>" as issued by BotFather.
var tokenRegex = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// ValidateToken reports ErrInvalidToken for malformed bot tokens.
func ValidateToken(token string) error {
	if !tokenRegex.MatchString(token) {
		return ErrInvalidToken
	}
	return nil
}

// Client sends messages through the Telegram Bot API.
// A bot instance is built per message; tokens come from per-owner
// configuration, so nothing is cached between calls.
type Client struct {
	apiURL  string
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = tele.DefaultApiURL
	}
	return &Client{
		apiURL:  apiURL,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

// SendMessage delivers msg. The call returns when the Bot API answers, the
// client timeout elapses (ErrTimeout) or ctx is done.
func (c *Client) SendMessage(ctx context.Context, msg Message) error {
	if err := ValidateToken(msg.Token); err != nil {
		return err
	}
	if strings.TrimSpace(msg.ChatID) == "" {
		return ErrMissingChatID
	}
	if strings.TrimSpace(msg.Text) == "" {
		return ErrEmptyText
	}

	bot, err := tele.NewBot(tele.Settings{
		URL:     c.apiURL,
		Token:   msg.Token,
		Client:  c.http,
		Offline: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// telebot requests are not context-aware; the http client timeout
	// bounds the goroutine.
	done := make(chan error, 1)
	go func() {
		_, err := bot.Send(chatRecipient(msg.ChatID), msg.Text, &tele.SendOptions{
			ParseMode:             tele.ModeHTML,
			DisableWebPagePreview: true,
		})
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		if isTimeout(err) {
			return fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return fmt.Errorf("%w: %v", ErrSendFailed, ctx.Err())
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
