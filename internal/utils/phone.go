package utils

import (
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D+`)

// minPhoneDigits is the shortest normalized number worth dialing.
const minPhoneDigits = 6

// NormalizePhone strips every non-digit and rewrites a leading trunk "0" to
// the country prefix: "0812-3456-7890" becomes "6281234567890" for prefix "62".
// An empty result means the number is not contactable, which includes
// anything that is only the prefix or too short to dial.
func NormalizePhone(raw, countryPrefix string) string {
	digits := nonDigits.ReplaceAllString(strings.TrimSpace(raw), "")
	if strings.HasPrefix(digits, "0") {
		digits = countryPrefix + strings.TrimPrefix(digits, "0")
	}
	if len(digits) < minPhoneDigits || digits == countryPrefix {
		return ""
	}
	return digits
}
