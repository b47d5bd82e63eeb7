package sanitizer

import "strings"

// Trim removes leading and trailing whitespace from a string.
func Trim(s string) string {
	return strings.TrimSpace(s)
}

func ToLower(s string) string {
	return strings.ToLower(s)
}

func ToUpper(s string) string {
	return strings.ToUpper(s)
}

// TrimToLower trims s and converts it to lowercase.
func TrimToLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// TrimToUpper trims s and converts it to uppercase.
func TrimToUpper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
