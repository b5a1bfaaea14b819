package messaging

import "strings"

const whatsappPrefix = "whatsapp:"

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// NormalizeAddress normalizes the number and keeps a whatsapp: channel prefix.
func NormalizeAddress(value string) string {
	value = strings.TrimSpace(value)
	if IsWhatsApp(value) {
		number := NormalizeE164(value[len(whatsappPrefix):])
		if number == "" {
			return ""
		}
		return whatsappPrefix + number
	}
	return NormalizeE164(value)
}

// IsWhatsApp reports whether address uses the whatsapp: channel prefix.
func IsWhatsApp(address string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(address)), whatsappPrefix)
}

func sanitizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
