package sanitizer

import (
	"regexp"
	"strings"
)

var dotRegex = regexp.MustCompile(`\.{2,}`)

// NormalizeEmail trims and lower-cases an address and collapses repeated
// dots in its local part. Input without exactly one @ is only trimmed and
// lower-cased.
func NormalizeEmail(email string) string {
	email = TrimToLower(email)

	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return email
	}

	local = dotRegex.ReplaceAllString(local, ".")
	local = strings.Trim(local, ".")

	return local + "@" + domain
}

// MaskString replaces the middle of s with asterisks, keeping visibleChars
// runes at each end. Strings too short to keep both ends are fully masked.
func MaskString(s string, visibleChars int) string {
	if visibleChars < 0 {
		visibleChars = 1
	}

	runes := []rune(s)
	length := len(runes)

	if length <= visibleChars*2 {
		return strings.Repeat("*", length)
	}

	start := string(runes[:visibleChars])
	end := string(runes[length-visibleChars:])

	return start + strings.Repeat("*", length-visibleChars*2) + end
}
