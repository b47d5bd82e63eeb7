// Package sanitizer normalises user input before it is validated or stored.
//
// Helpers are pure string transforms and never fail; Apply and Compose chain
// them into pipelines:
//
//	clean := sanitizer.Compose(sanitizer.Trim, sanitizer.ToLower)
//	email := clean("  Ana@Example.COM ") // "ana@example.com"
//
// MaskString hides secrets before they are rendered or logged.
package sanitizer
