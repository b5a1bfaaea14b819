package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vatosalfa/agenda-messaging/internal/conversations"
	"github.com/vatosalfa/agenda-messaging/internal/messaging"
	"github.com/vatosalfa/agenda-messaging/internal/messaging/templates"
)

const clientAddr = "whatsapp:+524428133314"

type fakeSender struct {
	sent []messaging.OutboundMessage
	sid  string
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg messaging.OutboundMessage) (string, error) {
	f.sent = append(f.sent, msg)
	return f.sid, f.err
}

type inboxFixture struct {
	router   chi.Router
	recorder *conversations.Recorder
	sender   *fakeSender
}

func newInboxFixture(t *testing.T) inboxFixture {
	t.Helper()
	at := time.Date(2025, 7, 14, 18, 0, 0, 0, time.UTC)
	recorder := conversations.NewRecorder(conversations.NewMemoryStore(), nil,
		conversations.WithRecorderClock(func() time.Time { return at }))
	renderer, err := templates.NewRenderer(templates.Defaults)
	require.NoError(t, err)
	sender := &fakeSender{sid: "SMreply"}

	h := NewAdminInboxHandler(AdminInboxConfig{Inbox: recorder, Sender: sender, Renderer: renderer})
	r := chi.NewRouter()
	r.Get("/admin/conversations", h.ListConversations)
	r.Get("/admin/conversations/{conversationID}/messages", h.ListMessages)
	r.Post("/admin/conversations/{conversationID}/read", h.MarkRead)
	r.Post("/admin/messages:send", h.SendMessage)
	r.Get("/admin/templates", h.ListTemplates)
	return inboxFixture{router: r, recorder: recorder, sender: sender}
}

func (f inboxFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f inboxFixture) seed(t *testing.T, texts ...string) {
	t.Helper()
	for i, text := range texts {
		_, err := f.recorder.RecordInbound(context.Background(), conversations.InboundRecord{
			From:       clientAddr,
			Body:       text,
			ReceivedAt: time.Date(2025, 7, 14, 9, i, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}
}

func threadPath(suffix string) string {
	return "/admin/conversations/" + url.PathEscape(clientAddr) + suffix
}

func TestListConversations(t *testing.T) {
	f := newInboxFixture(t)
	f.seed(t, "Confirmo", "gracias")

	rec := f.do(t, http.MethodGet, "/admin/conversations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConversationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, clientAddr, resp.Conversations[0].ID)
	assert.Equal(t, "gracias", resp.Conversations[0].LastMessage)
	assert.Equal(t, 2, resp.TotalUnread)
}

func TestListConversationsEmptyAndBadLimit(t *testing.T) {
	f := newInboxFixture(t)
	rec := f.do(t, http.MethodGet, "/admin/conversations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"conversations":[]`)

	rec = f.do(t, http.MethodGet, "/admin/conversations?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMessagesChronological(t *testing.T) {
	f := newInboxFixture(t)
	f.seed(t, "hola", "Confirmo")

	rec := f.do(t, http.MethodGet, threadPath("/messages"), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp MessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "hola", resp.Messages[0].Text)
	assert.Equal(t, conversations.SenderClient, resp.Messages[1].Sender)
}

func TestListMessagesUnknownConversation(t *testing.T) {
	f := newInboxFixture(t)
	rec := f.do(t, http.MethodGet, threadPath("/messages"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkRead(t *testing.T) {
	f := newInboxFixture(t)
	f.seed(t, "hola")

	rec := f.do(t, http.MethodPost, threadPath("/read"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	list, err := f.recorder.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, list[0].UnreadCount)

	rec = f.do(t, http.MethodPost, "/admin/conversations/"+url.PathEscape("+5200000000")+"/read", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessageText(t *testing.T) {
	f := newInboxFixture(t)
	f.seed(t, "¿tienen lugar mañana?")

	rec := f.do(t, http.MethodPost, "/admin/messages:send", `{"to":"`+clientAddr+`","body":"Sí, a las 11"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Sí, a las 11", f.sender.sent[0].Body)

	msgs, err := f.recorder.Messages(context.Background(), clientAddr, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	last := msgs[1].View()
	assert.Equal(t, conversations.SenderBusiness, last.Sender)
	assert.Equal(t, "SMreply", last.ProviderMessageID)
	assert.True(t, last.Read)

	list, _ := f.recorder.List(context.Background(), 0)
	assert.Equal(t, 1, list[0].UnreadCount, "staff replies leave the unread count alone")
}

func TestSendMessageTemplate(t *testing.T) {
	f := newInboxFixture(t)
	body := `{"to":"` + clientAddr + `","template":"confirmada","templateData":{"Nombre":"Juan","Fecha":"2025-07-15","Hora":"09:00"}}`
	rec := f.do(t, http.MethodPost, "/admin/messages:send", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "Gracias Juan, tu cita del 2025-07-15 a las 09:00 quedó confirmada.", f.sender.sent[0].Body)

	rec = f.do(t, http.MethodPost, "/admin/messages:send", `{"to":"`+clientAddr+`","template":"confirmada","templateData":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageValidation(t *testing.T) {
	f := newInboxFixture(t)
	cases := map[string]string{
		"bad json":   `{`,
		"missing to": `{"body":"hola"}`,
		"empty body": `{"to":"` + clientAddr + `"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/admin/messages:send", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, f.sender.sent)
}

func TestSendMessageProviderFailure(t *testing.T) {
	f := newInboxFixture(t)
	f.sender.err = errors.New("twilio down")
	rec := f.do(t, http.MethodPost, "/admin/messages:send", `{"to":"`+clientAddr+`","body":"hola"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	list, err := f.recorder.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, list, "failed sends are not recorded")
}

func TestSendMessageWithoutSender(t *testing.T) {
	h := NewAdminInboxHandler(AdminInboxConfig{Inbox: conversations.NewRecorder(conversations.NewMemoryStore(), nil)})
	rec := httptest.NewRecorder()
	h.SendMessage(rec, httptest.NewRequest(http.MethodPost, "/admin/messages:send", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListTemplates(t *testing.T) {
	f := newInboxFixture(t)
	rec := f.do(t, http.MethodGet, "/admin/templates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "recordatorio")
}
