// Package messaging receives Twilio webhooks and sends outbound Twilio
// messages.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vatosalfa/agenda-messaging/internal/inbound"
	"github.com/vatosalfa/agenda-messaging/internal/observability/metrics"
	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

var twilioTracer = otel.Tracer("vatosalfa.internal.messaging.twilio")

// EmptyTwiML acknowledges a webhook without replying to the sender.
const EmptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// Handler handles messaging webhook requests.
type Handler struct {
	validator     *SignatureValidator
	dispatcher    inbound.Dispatcher
	deduper       Deduper
	metrics       *metrics.MessagingMetrics
	publicBaseURL string
	now           func() time.Time
	logger        *logging.Logger
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithDeduper drops provider redeliveries of a MessageSid already accepted.
func WithDeduper(d Deduper) HandlerOption {
	return func(h *Handler) { h.deduper = d }
}

// WithMessagingMetrics records webhook counters and latency.
func WithMessagingMetrics(m *metrics.MessagingMetrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithPublicBaseURL fixes the scheme and host used to rebuild the signed URL,
// for deployments behind proxies that rewrite Host.
func WithPublicBaseURL(base string) HandlerOption {
	return func(h *Handler) { h.publicBaseURL = strings.TrimRight(strings.TrimSpace(base), "/") }
}

// NewHandler creates a messaging handler. A nil validator makes every webhook
// fail with 500 so a missing auth token never silently disables the check.
func NewHandler(validator *SignatureValidator, dispatcher inbound.Dispatcher, logger *logging.Logger, opts ...HandlerOption) *Handler {
	if dispatcher == nil {
		panic("messaging: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		validator:  validator,
		dispatcher: dispatcher,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// TwilioWebhook handles POST /messaging/twilio/webhook requests.
func (h *Handler) TwilioWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.webhook", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	channel := "unknown"
	defer func() { h.metrics.ObserveWebhookLatency(channel, time.Since(start).Seconds()) }()

	if h.validator == nil {
		h.logger.Error("twilio webhook rejected", "error", ErrMissingAuthToken)
		h.metrics.ObserveInbound(channel, "misconfigured")
		span.RecordError(ErrMissingAuthToken)
		http.Error(w, "Webhook not configured", http.StatusInternalServerError)
		return
	}

	if !h.validator.Validate(r, h.webhookURL(r)) {
		h.logger.Warn("invalid twilio signature")
		h.metrics.ObserveInbound(channel, "forbidden")
		span.RecordError(errors.New("invalid twilio signature"))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	webhook, err := ParseTwilioWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse twilio webhook", "error", err)
		h.metrics.ObserveInbound(channel, "bad_request")
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if webhook.From == "" {
		err := errors.New("missing From")
		h.logger.Warn("invalid twilio payload", "error", err, "message_sid", webhook.MessageSid)
		h.metrics.ObserveInbound(channel, "bad_request")
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	msg := webhook.Inbound(h.now().UTC())
	channel = msg.Channel()
	span.SetAttributes(
		attribute.String("vatosalfa.twilio.message_sid", webhook.MessageSid),
		attribute.String("vatosalfa.twilio.channel", channel),
		attribute.Int("vatosalfa.twilio.num_media", webhook.NumMedia),
	)

	if h.deduper != nil {
		first, err := h.deduper.FirstDelivery(ctx, webhook.MessageSid)
		if err != nil {
			h.logger.Warn("dedupe check failed, processing anyway", "error", err, "message_sid", webhook.MessageSid)
		}
		if !first {
			h.logger.Info("duplicate twilio delivery ignored", "message_sid", webhook.MessageSid)
			h.metrics.ObserveInbound(channel, "duplicate")
			writeTwiML(w)
			return
		}
	}

	status := "accepted"
	if err := h.dispatcher.Dispatch(ctx, msg); err != nil {
		status = "dispatch_failed"
		h.logger.Error("failed to dispatch inbound message", "error", err, "message_sid", webhook.MessageSid)
		span.RecordError(err)
	}
	h.metrics.ObserveInbound(channel, status)
	h.logger.Info("twilio webhook acknowledged", "message_sid", webhook.MessageSid, "channel", channel, "status", status)
	writeTwiML(w)
}

// HealthCheck returns a simple health check response.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(EmptyTwiML))
}

func (h *Handler) webhookURL(r *http.Request) string {
	if h.publicBaseURL != "" && r.URL != nil {
		return h.publicBaseURL + r.URL.RequestURI()
	}
	return buildAbsoluteURL(r)
}

func buildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
