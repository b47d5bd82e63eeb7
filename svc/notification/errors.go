package notification

import "errors"

var (
	// Validation
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrEmptyMessage       = errors.New("message is required")
	ErrMessageTooLong     = errors.New("message exceeds maximum length")
	ErrEmptyName          = errors.New("name is required")
	ErrUnknownChannel     = errors.New("unknown notification channel")
	ErrInvalidStatus      = errors.New("invalid notification status")
	ErrInvalidID          = errors.New("invalid notification id")
	ErrInvalidOwner       = errors.New("owner is required")
	ErrInvalidCredentials = errors.New("invalid channel credentials")

	// Owner configuration
	ErrOwnerConfigNotFound  = errors.New("owner configuration not found")
	ErrOwnerConfigDisabled  = errors.New("owner configuration is disabled")
	ErrOwnerConfigExists    = errors.New("owner configuration already exists")
	ErrNoChannelsConfigured = errors.New("no channels configured")

	// Lifecycle
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidTransition    = errors.New("invalid notification status transition")

	// Infrastructure
	ErrFailedToEnqueue  = errors.New("failed to enqueue notification")
	ErrFailedToPersist  = errors.New("failed to persist notification")
	ErrDeliveryFailed   = errors.New("notification delivery failed")
	ErrChannelNotWired  = errors.New("no deliverer registered for channel")
	ErrNilDependency    = errors.New("required dependency is nil")
	ErrInvalidListQuery = errors.New("invalid list query")
)
