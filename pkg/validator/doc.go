// Package validator provides declarative, field-keyed validation rules.
//
// Each rule is a check plus the error reported when the check fails. Apply
// runs every rule and returns all failures at once as ValidationErrors:
//
//	err := validator.Apply(
//		validator.RequiredString("name", name),
//		validator.ValidEmail("email", email).WithError(ErrInvalidEmail),
//		validator.MaxLenString("message", message, 1000),
//	)
//
// Every ValidationError unwraps to a sentinel (ErrFieldRequired,
// ErrInvalidLength, ErrInvalidFormat by default, or the error given to
// WithError), so callers can match failures with errors.Is while HTTP
// layers render them per field with Fields and Get.
package validator
