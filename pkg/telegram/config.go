package telegram

import "time"

// Config holds Bot API client settings shared by all bots.
type Config struct {
	APIURL  string        `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	Timeout time.Duration `env:"TELEGRAM_TIMEOUT" envDefault:"10s"`
}
