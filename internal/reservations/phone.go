package reservations

import "strings"

const phoneDigits = 10

// NormalizePhone strips every non-digit and keeps the last 10 digits, so
// "whatsapp:+52 1 442 813 3314" and "4428133314" share a key. Shorter inputs
// are returned as their digits.
func NormalizePhone(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > phoneDigits {
		digits = digits[len(digits)-phoneDigits:]
	}
	return digits
}
