package notification

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/sanitizer"
	"github.com/dmitrymomot/notifykit/pkg/validator"
)

// EmailCredentials authenticate the EMAIL channel. To is the destination
// mailbox; From overrides the default sender.
type EmailCredentials struct {
	APIKey string `json:"api_key" bson:"api_key" yaml:"api_key"`
	To     string `json:"to,omitempty" bson:"to,omitempty" yaml:"to"`
	From   string `json:"from,omitempty" bson:"from,omitempty" yaml:"from"`
}

// TelegramCredentials authenticate the TELEGRAM channel.
type TelegramCredentials struct {
	Token  string `json:"token,omitempty" bson:"token,omitempty" yaml:"token"`
	ChatID string `json:"chat_id,omitempty" bson:"chat_id,omitempty" yaml:"chat_id"`
}

// IsZero reports whether the block is absent or carries no values.
func (c *TelegramCredentials) IsZero() bool {
	return c == nil || (strings.TrimSpace(c.Token) == "" && strings.TrimSpace(c.ChatID) == "")
}

// Credentials is the per-channel secret bundle of an owner.
type Credentials struct {
	Email    *EmailCredentials    `json:"email,omitempty" bson:"email,omitempty" yaml:"email"`
	Telegram *TelegramCredentials `json:"telegram,omitempty" bson:"telegram,omitempty" yaml:"telegram"`
}

func (c Credentials) clone() Credentials {
	var out Credentials
	if c.Email != nil {
		e := *c.Email
		out.Email = &e
	}
	if c.Telegram != nil {
		t := *c.Telegram
		out.Telegram = &t
	}
	return out
}

func (c Credentials) validate() error {
	if c.Email == nil {
		return nil
	}
	var rules []validator.Rule
	if to := sanitizer.Trim(c.Email.To); to != "" {
		rules = append(rules, validator.ValidEmail("credentials.email.to", to).WithError(ErrInvalidCredentials))
	}
	if from := sanitizer.Trim(c.Email.From); from != "" {
		rules = append(rules, validator.ValidEmail("credentials.email.from", from).WithError(ErrInvalidCredentials))
	}
	return validator.Apply(rules...)
}

// OwnerConfig describes how notifications of one owner are delivered.
type OwnerConfig struct {
	Owner       string      `json:"owner" bson:"_id"`
	Channels    []Channel   `json:"channels" bson:"channels"`
	Credentials Credentials `json:"credentials" bson:"credentials"`
	Enabled     bool        `json:"enabled" bson:"enabled"`
	CreatedAt   time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" bson:"updated_at"`
}

// Clone returns a deep copy.
func (c *OwnerConfig) Clone() *OwnerConfig {
	out := *c
	out.Channels = slices.Clone(c.Channels)
	out.Credentials = c.Credentials.clone()
	return &out
}

// ConfigStore persists owner configurations keyed by normalized owner.
type ConfigStore interface {
	// GetConfig returns ErrOwnerConfigNotFound when no record exists.
	GetConfig(ctx context.Context, owner string) (*OwnerConfig, error)
	// CreateConfig returns ErrOwnerConfigExists for a taken owner key.
	CreateConfig(ctx context.Context, cfg *OwnerConfig) error
	// UpdateConfig replaces an existing record or returns ErrOwnerConfigNotFound.
	UpdateConfig(ctx context.Context, cfg *OwnerConfig) error
}

// ConfigResolver maps an owner to its enabled configuration.
type ConfigResolver struct {
	store ConfigStore
}

// NewConfigResolver creates a resolver over store.
func NewConfigResolver(store ConfigStore) *ConfigResolver {
	if store == nil {
		panic("notification: ConfigStore is required")
	}
	return &ConfigResolver{store: store}
}

// Resolve returns the owner's configuration. Absent records yield
// ErrOwnerConfigNotFound, disabled ones ErrOwnerConfigDisabled.
func (r *ConfigResolver) Resolve(ctx context.Context, owner string) (*OwnerConfig, error) {
	key, err := NormalizeOwner(owner)
	if err != nil {
		return nil, err
	}

	cfg, err := r.store.GetConfig(ctx, key)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrOwnerConfigDisabled, key)
	}
	return cfg, nil
}

// ConfigInput is the administrative shape of an owner configuration.
// Nil Channels defaults to [email], nil Enabled to true.
type ConfigInput struct {
	Owner       string      `json:"owner" yaml:"owner"`
	Channels    []string    `json:"channels,omitempty" yaml:"channels"`
	Credentials Credentials `json:"credentials" yaml:"credentials"`
	Enabled     *bool       `json:"enabled,omitempty" yaml:"enabled"`
}

// ConfigPatch holds optional replacements for an existing configuration.
type ConfigPatch struct {
	Channels    []string     `json:"channels,omitempty"`
	Credentials *Credentials `json:"credentials,omitempty"`
	Enabled     *bool        `json:"enabled,omitempty"`
}

// BuildConfig validates in and applies defaults.
func BuildConfig(in ConfigInput) (*OwnerConfig, error) {
	owner, err := NormalizeOwner(in.Owner)
	if err != nil {
		return nil, err
	}

	channels := []Channel{ChannelEmail}
	if in.Channels != nil {
		if channels, err = ParseChannels(in.Channels); err != nil {
			return nil, err
		}
	}
	if err := in.Credentials.validate(); err != nil {
		return nil, err
	}

	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}

	now := time.Now().UTC()
	return &OwnerConfig{
		Owner:       owner,
		Channels:    channels,
		Credentials: in.Credentials.clone(),
		Enabled:     enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ConfigManager is the administrative surface over a ConfigStore.
type ConfigManager struct {
	store ConfigStore
}

// NewConfigManager creates a manager over store.
func NewConfigManager(store ConfigStore) *ConfigManager {
	if store == nil {
		panic("notification: ConfigStore is required")
	}
	return &ConfigManager{store: store}
}

// Create registers a new owner configuration.
func (m *ConfigManager) Create(ctx context.Context, in ConfigInput) (*OwnerConfig, error) {
	cfg, err := BuildConfig(in)
	if err != nil {
		return nil, err
	}
	if err := m.store.CreateConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get returns the configuration regardless of its enabled flag.
func (m *ConfigManager) Get(ctx context.Context, owner string) (*OwnerConfig, error) {
	key, err := NormalizeOwner(owner)
	if err != nil {
		return nil, err
	}
	return m.store.GetConfig(ctx, key)
}

// Update applies the non-nil fields of patch.
func (m *ConfigManager) Update(ctx context.Context, owner string, patch ConfigPatch) (*OwnerConfig, error) {
	cfg, err := m.Get(ctx, owner)
	if err != nil {
		return nil, err
	}

	if patch.Channels != nil {
		channels, err := ParseChannels(patch.Channels)
		if err != nil {
			return nil, err
		}
		cfg.Channels = channels
	}
	if patch.Credentials != nil {
		if err := patch.Credentials.validate(); err != nil {
			return nil, err
		}
		cfg.Credentials = patch.Credentials.clone()
	}
	if patch.Enabled != nil {
		cfg.Enabled = *patch.Enabled
	}
	cfg.UpdatedAt = time.Now().UTC()

	if err := m.store.UpdateConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsConfigError reports whether err stems from owner configuration lookup.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrOwnerConfigNotFound) ||
		errors.Is(err, ErrOwnerConfigDisabled) ||
		errors.Is(err, ErrNoChannelsConfigured)
}
