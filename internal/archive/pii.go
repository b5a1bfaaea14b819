package archive

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"unicode"
)

// HashPhone returns the hex SHA-256 of the digits in phone, so
// "whatsapp:+52 442..." and "+52442..." hash the same.
func HashPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	h := sha256.Sum256([]byte(digits))
	return fmt.Sprintf("%x", h)
}
