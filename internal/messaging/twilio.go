package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vatosalfa/agenda-messaging/internal/inbound"
)

// ConfigError reports a missing setting the webhook cannot run without.
type ConfigError struct {
	Setting string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("messaging: %s is not configured", e.Setting)
}

// ErrMissingAuthToken is returned when no Twilio auth token is available for
// signature checks.
var ErrMissingAuthToken = &ConfigError{Setting: "TWILIO_AUTH_TOKEN"}

// SignatureValidator checks X-Twilio-Signature against the account auth token.
type SignatureValidator struct {
	authToken string
}

// NewSignatureValidator fails with ErrMissingAuthToken when authToken is blank.
func NewSignatureValidator(authToken string) (*SignatureValidator, error) {
	authToken = strings.TrimSpace(authToken)
	if authToken == "" {
		return nil, ErrMissingAuthToken
	}
	return &SignatureValidator{authToken: authToken}, nil
}

// Validate reports whether r carries a valid signature for webhookURL.
func (v *SignatureValidator) Validate(r *http.Request, webhookURL string) bool {
	if v == nil {
		return false
	}
	return ValidateTwilioSignature(r, v.authToken, webhookURL)
}

// ValidateTwilioSignature validates that a request came from Twilio.
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	expected := computeSignature(buildSignaturePayload(webhookURL, r.PostForm), authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// buildSignaturePayload is the URL followed by each key and value, keys sorted.
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

// computeSignature computes the HMAC-SHA1 signature
func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// TwilioWebhookRequest represents an incoming Twilio webhook.
type TwilioWebhookRequest struct {
	MessageSid        string
	AccountSid        string
	From              string
	To                string
	Body              string
	NumMedia          int
	MediaURL0         string
	MediaContentType0 string
}

// ParseTwilioWebhook parses a Twilio webhook request. A malformed NumMedia is
// treated as zero.
func ParseTwilioWebhook(r *http.Request) (*TwilioWebhookRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse form: %w", err)
	}

	numMedia, err := strconv.Atoi(strings.TrimSpace(r.FormValue("NumMedia")))
	if err != nil || numMedia < 0 {
		numMedia = 0
	}
	return &TwilioWebhookRequest{
		MessageSid:        strings.TrimSpace(r.FormValue("MessageSid")),
		AccountSid:        strings.TrimSpace(r.FormValue("AccountSid")),
		From:              strings.TrimSpace(r.FormValue("From")),
		To:                strings.TrimSpace(r.FormValue("To")),
		Body:              r.FormValue("Body"),
		NumMedia:          numMedia,
		MediaURL0:         strings.TrimSpace(r.FormValue("MediaUrl0")),
		MediaContentType0: strings.TrimSpace(r.FormValue("MediaContentType0")),
	}, nil
}

// Inbound converts the webhook into the processor's message type.
func (w *TwilioWebhookRequest) Inbound(receivedAt time.Time) inbound.Message {
	msg := inbound.Message{
		MessageSID: w.MessageSid,
		AccountSID: w.AccountSid,
		From:       w.From,
		To:         w.To,
		Body:       w.Body,
		NumMedia:   w.NumMedia,
		ReceivedAt: receivedAt,
	}
	if w.NumMedia > 0 {
		msg.MediaURL = w.MediaURL0
		msg.MediaContentType = w.MediaContentType0
	}
	return msg
}
