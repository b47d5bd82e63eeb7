package email

import "time"

// Config holds email service configuration.
// The server token may be left empty when every owner supplies its own
// Postmark key; SenderEmail is the default From address.
type Config struct {
	PostmarkServerToken  string        `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string        `env:"POSTMARK_ACCOUNT_TOKEN"`
	PostmarkBaseURL      string        `env:"POSTMARK_BASE_URL"`
	SenderEmail          string        `env:"SENDER_EMAIL" envDefault:"notifications@notifykit.dev"`
	Timeout              time.Duration `env:"EMAIL_TIMEOUT" envDefault:"10s"`
	DevOutputDir         string        `env:"EMAIL_DEV_OUTPUT_DIR"`
}
