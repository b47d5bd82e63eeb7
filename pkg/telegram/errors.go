package telegram

import "errors"

var (
	ErrInvalidToken  = errors.New("telegram: invalid bot token")
	ErrMissingChatID = errors.New("telegram: chat id is required")
	ErrEmptyText     = errors.New("telegram: message text is empty")
	ErrSendFailed    = errors.New("telegram: failed to send message")
	ErrTimeout       = errors.New("telegram: request timeout")
)
