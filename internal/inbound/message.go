// Package inbound turns a provider inbound message into reservation
// transitions and inbox records, either inline or through a job queue.
package inbound

import (
	"strings"
	"time"
)

// Message is the provider-neutral view of one inbound delivery.
type Message struct {
	MessageSID       string    `json:"message_sid,omitempty"`
	AccountSID       string    `json:"account_sid,omitempty"`
	From             string    `json:"from"`
	To               string    `json:"to,omitempty"`
	Body             string    `json:"body,omitempty"`
	NumMedia         int       `json:"num_media,omitempty"`
	MediaURL         string    `json:"media_url,omitempty"`
	MediaContentType string    `json:"media_content_type,omitempty"`
	ReceivedAt       time.Time `json:"received_at"`
}

// HasMedia reports whether the first attachment is usable.
func (m Message) HasMedia() bool {
	return m.NumMedia > 0 && strings.TrimSpace(m.MediaURL) != ""
}

// Channel is "whatsapp" for WhatsApp senders and "sms" otherwise.
func (m Message) Channel() string {
	if strings.HasPrefix(strings.ToLower(m.From), "whatsapp:") {
		return "whatsapp"
	}
	return "sms"
}
