// Package intent maps free-text client replies to reservation actions.
package intent

import "strings"

// Intent is the classified meaning of a client reply.
type Intent string

const (
	None       Intent = ""
	Confirm    Intent = "confirm"
	Reschedule Intent = "reschedule"
	Cancel     Intent = "cancel"
)

func (i Intent) String() string {
	if i == None {
		return "none"
	}
	return string(i)
}

// Rule pairs an intent with the keywords that select it.
type Rule struct {
	Intent   Intent
	Keywords []string
}

// rules are evaluated in order and the first match wins. Confirm is checked
// before Reschedule before Cancel regardless of where the words appear in the
// message, so "no puedo confirmar, quiero cancelar" classifies as Confirm.
var rules = []Rule{
	{Intent: Confirm, Keywords: []string{"confirmado", "confirmo", "confirmar", "si", "yes", "confirm"}},
	{Intent: Reschedule, Keywords: []string{"reagendar"}},
	{Intent: Cancel, Keywords: []string{"cancelar la cita", "cancelar"}},
}

// Classify returns the first intent whose keywords appear in body.
// Matching is substring containment on the trimmed, lowercased body.
func Classify(body string) (Intent, bool) {
	normalized := strings.ToLower(strings.TrimSpace(body))
	if normalized == "" {
		return None, false
	}
	for _, rule := range rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(normalized, keyword) {
				return rule.Intent, true
			}
		}
	}
	return None, false
}

// Rules returns a copy of the ordered rule table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	for i, rule := range rules {
		out[i] = Rule{Intent: rule.Intent, Keywords: append([]string(nil), rule.Keywords...)}
	}
	return out
}
