package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vatosalfa/agenda-messaging/internal/observability/metrics"
	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

var twilioSendTracer = otel.Tracer("vatosalfa.internal.messaging.twilio_send")

const defaultTwilioAPIBase = "https://api.twilio.com"

// OutboundMessage is either free text (Body) or an approved Content template
// (ContentSID with ContentVariables). WhatsApp sessions older than 24h only
// accept templates.
type OutboundMessage struct {
	To               string
	From             string
	Body             string
	MediaURL         string
	ContentSID       string
	ContentVariables map[string]string
}

// TwilioSender posts messages using Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	apiBase    string
	httpClient *http.Client
	metrics    *metrics.MessagingMetrics
	logger     *logging.Logger
}

// SenderOption customizes a TwilioSender.
type SenderOption func(*TwilioSender)

// WithAPIBase points the sender at another Twilio-compatible endpoint.
func WithAPIBase(base string) SenderOption {
	return func(s *TwilioSender) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			s.apiBase = base
		}
	}
}

func WithSenderMetrics(m *metrics.MessagingMetrics) SenderOption {
	return func(s *TwilioSender) { s.metrics = m }
}

// NewTwilioSender builds a sender with sane defaults.
func NewTwilioSender(accountSID, authToken, defaultFrom string, logger *logging.Logger, opts ...SenderOption) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	s := &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       defaultFrom,
		apiBase:    defaultTwilioAPIBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send dispatches one message, retrying transient failures, and returns the
// provider message SID.
func (s *TwilioSender) Send(ctx context.Context, msg OutboundMessage) (string, error) {
	if s.accountSID == "" || s.authToken == "" {
		return "", errors.New("messaging: twilio credentials missing")
	}
	payload, err := s.buildPayload(msg)
	if err != nil {
		return "", err
	}
	template := msg.ContentSID != ""

	ctx, span := twilioSendTracer.Start(ctx, "messaging.twilio.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.Bool("vatosalfa.twilio.template", template))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.apiBase, s.accountSID)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			lastErr = err
			break
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				var parsed struct {
					SID    string `json:"sid"`
					Status string `json:"status"`
				}
				_ = json.Unmarshal(body, &parsed)
				s.metrics.ObserveOutbound("sent", template)
				s.logger.Info("twilio message sent", "to", payload.Get("To"), "sid", parsed.SID, "status", parsed.Status)
				return parsed.SID, nil
			}
			lastErr = fmt.Errorf("messaging: twilio send failed: %s", formatTwilioError(resp.StatusCode, body))
			// Don't retry non-rate-limit 4xx errors.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				break
			}
		}

		if attempt < 3 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = 3
			case <-time.After(time.Duration(200+rand.Intn(300)) * time.Millisecond):
			}
		}
	}

	s.metrics.ObserveOutbound("failed", template)
	span.RecordError(lastErr)
	return "", lastErr
}

func (s *TwilioSender) buildPayload(msg OutboundMessage) (url.Values, error) {
	to := NormalizeAddress(msg.To)
	if to == "" {
		return nil, errors.New("messaging: to required")
	}
	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = s.from
	}
	if from == "" {
		return nil, errors.New("messaging: from required")
	}
	from = NormalizeAddress(from)
	if IsWhatsApp(to) && !IsWhatsApp(from) {
		from = whatsappPrefix + from
	}

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", from)
	switch {
	case msg.ContentSID != "":
		payload.Set("ContentSid", msg.ContentSID)
		if len(msg.ContentVariables) > 0 {
			vars, err := json.Marshal(msg.ContentVariables)
			if err != nil {
				return nil, fmt.Errorf("messaging: encode content variables: %w", err)
			}
			payload.Set("ContentVariables", string(vars))
		}
	case strings.TrimSpace(msg.Body) != "" || msg.MediaURL != "":
		if msg.Body != "" {
			payload.Set("Body", msg.Body)
		}
		if msg.MediaURL != "" {
			payload.Set("MediaUrl", msg.MediaURL)
		}
	default:
		return nil, errors.New("messaging: body or content template required")
	}
	return payload, nil
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
