package validator

import "errors"

// Default causes of rule failures. Rule.WithError replaces them with a
// domain error.
var (
	ErrFieldRequired = errors.New("field is required")
	ErrInvalidLength = errors.New("invalid length")
	ErrInvalidFormat = errors.New("invalid format")
)
