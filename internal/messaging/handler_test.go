package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vatosalfa/agenda-messaging/internal/conversations"
	"github.com/vatosalfa/agenda-messaging/internal/inbound"
	"github.com/vatosalfa/agenda-messaging/internal/reservations"
	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

const (
	testAuthToken  = "test_token"
	testWebhookURL = "https://agenda.vatosalfa.mx/messaging/twilio/webhook"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	msgs []inbound.Message
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg inbound.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
	return d.err
}

func signedRequest(t *testing.T, form url.Values, token string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, testWebhookURL, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", computeSignature(buildSignaturePayload(testWebhookURL, form), token))
	return req
}

func newTestHandler(t *testing.T, dispatcher inbound.Dispatcher, opts ...HandlerOption) *Handler {
	t.Helper()
	validator, err := NewSignatureValidator(testAuthToken)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	return NewHandler(validator, dispatcher, logging.Default(), opts...)
}

func baseForm() url.Values {
	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("AccountSid", "AC456")
	form.Set("From", "whatsapp:+524428133314")
	form.Set("To", "whatsapp:+14155238886")
	form.Set("Body", "Confirmo")
	form.Set("NumMedia", "0")
	return form
}

func TestValidateTwilioSignature(t *testing.T) {
	form := baseForm()
	if !ValidateTwilioSignature(signedRequest(t, form, testAuthToken), testAuthToken, testWebhookURL) {
		t.Error("expected signature validation to pass")
	}
}

func TestValidateTwilioSignature_Rejects(t *testing.T) {
	form := baseForm()

	wrongToken := signedRequest(t, form, "other_token")
	if ValidateTwilioSignature(wrongToken, testAuthToken, testWebhookURL) {
		t.Error("expected wrong token to fail")
	}

	original := signedRequest(t, form, testAuthToken)
	altered := baseForm()
	altered.Set("Body", "cancelar")
	req := httptest.NewRequest(http.MethodPost, testWebhookURL, strings.NewReader(altered.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", original.Header.Get("X-Twilio-Signature"))
	if ValidateTwilioSignature(req, testAuthToken, testWebhookURL) {
		t.Error("expected altered body to fail")
	}

	missing := httptest.NewRequest(http.MethodPost, testWebhookURL, strings.NewReader(form.Encode()))
	missing.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if ValidateTwilioSignature(missing, testAuthToken, testWebhookURL) {
		t.Error("expected validation to fail without signature header")
	}
}

func TestNewSignatureValidatorRequiresToken(t *testing.T) {
	_, err := NewSignatureValidator("  ")
	if !errors.Is(err, ErrMissingAuthToken) {
		t.Fatalf("expected ErrMissingAuthToken, got %v", err)
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Setting != "TWILIO_AUTH_TOKEN" {
		t.Fatalf("expected ConfigError, got %T", err)
	}
}

func TestParseTwilioWebhookMedia(t *testing.T) {
	form := baseForm()
	form.Set("Body", "")
	form.Set("NumMedia", "1")
	form.Set("MediaUrl0", "https://api.twilio.com/2010-04-01/Accounts/AC456/Messages/SM123/Media/ME1")
	form.Set("MediaContentType0", "image/jpeg")
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	webhook, err := ParseTwilioWebhook(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg := webhook.Inbound(time.Now())
	if !msg.HasMedia() || msg.MediaContentType != "image/jpeg" || msg.Channel() != "whatsapp" {
		t.Fatalf("unexpected inbound message %+v", msg)
	}
}

func TestParseTwilioWebhookBadNumMedia(t *testing.T) {
	form := baseForm()
	form.Set("NumMedia", "abc")
	form.Set("MediaUrl0", "https://x/1")
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	webhook, _ := ParseTwilioWebhook(req)
	if webhook.NumMedia != 0 || webhook.Inbound(time.Now()).HasMedia() {
		t.Fatalf("expected no media, got %+v", webhook)
	}
}

func TestTwilioWebhookAcknowledges(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	handler := newTestHandler(t, dispatcher)

	w := httptest.NewRecorder()
	handler.TwilioWebhook(w, signedRequest(t, baseForm(), testAuthToken))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/xml" {
		t.Fatalf("expected Content-Type text/xml, got %s", ct)
	}
	if w.Body.String() != EmptyTwiML {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
	if len(dispatcher.msgs) != 1 || dispatcher.msgs[0].Body != "Confirmo" {
		t.Fatalf("expected one dispatched message, got %+v", dispatcher.msgs)
	}
}

func TestTwilioWebhookInvalidSignature(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	handler := newTestHandler(t, dispatcher)

	req := signedRequest(t, baseForm(), testAuthToken)
	req.Header.Set("X-Twilio-Signature", "invalid")
	w := httptest.NewRecorder()
	handler.TwilioWebhook(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, w.Code)
	}
	if len(dispatcher.msgs) != 0 {
		t.Fatal("no work should be dispatched for a forged request")
	}
}

func TestTwilioWebhookMissingFrom(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	handler := newTestHandler(t, dispatcher)
	form := baseForm()
	form.Del("From")

	w := httptest.NewRecorder()
	handler.TwilioWebhook(w, signedRequest(t, form, testAuthToken))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if len(dispatcher.msgs) != 0 {
		t.Fatal("no work should be dispatched without a sender")
	}
}

func TestTwilioWebhookUnconfigured(t *testing.T) {
	handler := NewHandler(nil, &recordingDispatcher{}, nil)
	w := httptest.NewRecorder()
	handler.TwilioWebhook(w, signedRequest(t, baseForm(), testAuthToken))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestTwilioWebhookDispatchFailureStillAcks(t *testing.T) {
	handler := newTestHandler(t, &recordingDispatcher{err: errors.New("queue full")})
	w := httptest.NewRecorder()
	handler.TwilioWebhook(w, signedRequest(t, baseForm(), testAuthToken))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestTwilioWebhookDuplicateDelivery(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	handler := newTestHandler(t, dispatcher, WithDeduper(NewMemoryDeduper(time.Hour)))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.TwilioWebhook(w, signedRequest(t, baseForm(), testAuthToken))
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, w.Code)
		}
	}
	if len(dispatcher.msgs) != 1 {
		t.Fatalf("expected a single dispatch, got %d", len(dispatcher.msgs))
	}
}

func TestTwilioWebhookPublicBaseURL(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	handler := newTestHandler(t, dispatcher, WithPublicBaseURL("https://agenda.vatosalfa.mx/"))

	form := baseForm()
	req := httptest.NewRequest(http.MethodPost, "/messaging/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", computeSignature(buildSignaturePayload(testWebhookURL, form), testAuthToken))

	w := httptest.NewRecorder()
	handler.TwilioWebhook(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

type endToEnd struct {
	handler *Handler
	res     *reservations.MemoryStore
	inbox   *conversations.MemoryStore
}

func newEndToEnd(t *testing.T) endToEnd {
	t.Helper()
	day := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return day }

	res := reservations.NewMemoryStore()
	res.PutClient(reservations.Client{ID: "cli-1", Phone: "4428133314", FirstName: "Juan"})
	res.PutReservation(reservations.Reservation{ID: "r-10", ClientID: "cli-1", Date: "2025-07-15", StartTime: "10:00", Status: reservations.StatusPending})
	res.PutReservation(reservations.Reservation{ID: "r-09", ClientID: "cli-1", Date: "2025-07-15", StartTime: "09:00", Status: reservations.StatusPending})
	inbox := conversations.NewMemoryStore()

	processor := inbound.NewProcessor(
		reservations.NewLocator(res, nil, reservations.WithLocation(time.UTC), reservations.WithClock(clock)),
		reservations.NewApplier(res, nil),
		conversations.NewRecorder(inbox, nil, conversations.WithRecorderClock(clock)),
		nil,
		inbound.WithClock(clock),
	)
	return endToEnd{
		handler: newTestHandler(t, inbound.NewSyncDispatcher(processor, nil)),
		res:     res,
		inbox:   inbox,
	}
}

func TestTwilioWebhookConfirmEndToEnd(t *testing.T) {
	e := newEndToEnd(t)
	w := httptest.NewRecorder()
	e.handler.TwilioWebhook(w, signedRequest(t, baseForm(), testAuthToken))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	early, _ := e.res.Reservation("r-09")
	late, _ := e.res.Reservation("r-10")
	if early.Status != reservations.StatusConfirmed || late.Status != reservations.StatusPending {
		t.Fatalf("unexpected statuses: 09:00=%s 10:00=%s", early.Status, late.Status)
	}
	conv, ok, _ := e.inbox.Get(context.Background(), "whatsapp:+524428133314")
	if !ok || conv.UnreadCount != 1 || conv.LastMessage != "Confirmo" {
		t.Fatalf("unexpected conversation %+v", conv)
	}
	assertSingleClientMessage(t, e.inbox, "Confirmo")
}

func TestTwilioWebhookCancelEndToEnd(t *testing.T) {
	e := newEndToEnd(t)
	form := baseForm()
	form.Set("Body", "cancelar")
	w := httptest.NewRecorder()
	e.handler.TwilioWebhook(w, signedRequest(t, form, testAuthToken))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	res, _ := e.res.Reservation("r-09")
	client, _ := e.res.Client("cli-1")
	if res.Status != reservations.StatusCancelled || client.CancelledCount != 1 {
		t.Fatalf("expected cancelled reservation and counter 1, got %s / %d", res.Status, client.CancelledCount)
	}
	late, _ := e.res.Reservation("r-10")
	if late.Status != reservations.StatusPending {
		t.Fatalf("expected 10:00 reservation untouched, got %s", late.Status)
	}
	conv, ok, _ := e.inbox.Get(context.Background(), "whatsapp:+524428133314")
	if !ok || conv.LastMessage != "cancelar" || conv.UnreadCount != 1 {
		t.Fatalf("unexpected conversation %+v", conv)
	}
	assertSingleClientMessage(t, e.inbox, "cancelar")
}

func assertSingleClientMessage(t *testing.T, inbox *conversations.MemoryStore, text string) {
	t.Helper()
	msgs, err := inbox.Messages(context.Background(), "whatsapp:+524428133314", 10)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	msg := msgs[0]
	if msg.Text() != text || msg.Sender != conversations.SenderClient || msg.ProviderMessageID != "SM123" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestHealthCheck(t *testing.T) {
	handler := newTestHandler(t, &recordingDispatcher{})
	w := httptest.NewRecorder()
	handler.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response %d %s", w.Code, w.Body.String())
	}
}
