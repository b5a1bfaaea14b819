package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vatosalfa/agenda-messaging/internal/conversations"
	"github.com/vatosalfa/agenda-messaging/internal/http/middleware"
	"github.com/vatosalfa/agenda-messaging/internal/messaging"
	"github.com/vatosalfa/agenda-messaging/internal/messaging/templates"
	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

// Inbox is the conversation surface the staff API reads and writes.
type Inbox interface {
	List(ctx context.Context, limit int) ([]conversations.Conversation, error)
	Messages(ctx context.Context, conversationID string, limit int) ([]conversations.Message, error)
	MarkRead(ctx context.Context, conversationID string) error
	RecordOutbound(ctx context.Context, out conversations.OutboundRecord) (conversations.Message, error)
}

// OutboundSender delivers a staff reply through the messaging provider.
type OutboundSender interface {
	Send(ctx context.Context, msg messaging.OutboundMessage) (string, error)
}

// AdminInboxHandler serves the staff inbox under /admin.
type AdminInboxHandler struct {
	inbox    Inbox
	sender   OutboundSender
	renderer *templates.Renderer
	timeout  time.Duration
	logger   *logging.Logger
}

// AdminInboxConfig holds the handler's collaborators. Sender and Renderer are
// optional; without a sender the send endpoint answers 503.
type AdminInboxConfig struct {
	Inbox    Inbox
	Sender   OutboundSender
	Renderer *templates.Renderer
	Logger   *logging.Logger
}

func NewAdminInboxHandler(cfg AdminInboxConfig) *AdminInboxHandler {
	if cfg.Inbox == nil {
		panic("handlers: inbox cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &AdminInboxHandler{
		inbox:    cfg.Inbox,
		sender:   cfg.Sender,
		renderer: cfg.Renderer,
		timeout:  15 * time.Second,
		logger:   cfg.Logger,
	}
}

// ConversationsResponse lists thread summaries, most recent first.
type ConversationsResponse struct {
	Conversations []conversations.Conversation `json:"conversations"`
	TotalUnread   int                          `json:"totalUnread"`
}

// MessagesResponse is one thread in chronological order.
type MessagesResponse struct {
	ConversationID string                      `json:"conversationId"`
	Messages       []conversations.MessageView `json:"messages"`
}

// ListConversations handles GET /admin/conversations.
func (h *AdminInboxHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	list, err := h.inbox.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("list conversations failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	resp := ConversationsResponse{Conversations: list}
	if resp.Conversations == nil {
		resp.Conversations = []conversations.Conversation{}
	}
	for _, c := range list {
		resp.TotalUnread += c.UnreadCount
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListMessages handles GET /admin/conversations/{conversationID}/messages.
func (h *AdminInboxHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationParam(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	msgs, err := h.inbox.Messages(r.Context(), id, limit)
	if errors.Is(err, conversations.ErrConversationNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("list messages failed", "error", err, "conversation_id", id)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	views := make([]conversations.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, m.View())
	}
	writeJSON(w, http.StatusOK, MessagesResponse{ConversationID: id, Messages: views})
}

// MarkRead handles POST /admin/conversations/{conversationID}/read.
func (h *AdminInboxHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationParam(w, r)
	if !ok {
		return
	}
	err := h.inbox.MarkRead(r.Context(), id)
	if errors.Is(err, conversations.ErrConversationNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("mark read failed", "error", err, "conversation_id", id)
		writeError(w, http.StatusInternalServerError, "failed to mark conversation read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversationId": id, "unreadCount": 0})
}

type sendMessageRequest struct {
	To               string            `json:"to"`
	Body             string            `json:"body"`
	MediaURL         string            `json:"mediaUrl"`
	Template         string            `json:"template"`
	TemplateData     map[string]string `json:"templateData"`
	ContentSID       string            `json:"contentSid"`
	ContentVariables map[string]string `json:"contentVariables"`
}

type sendMessageResponse struct {
	ProviderMessageID string                     `json:"providerMessageId"`
	Message           *conversations.MessageView `json:"message,omitempty"`
	RecordError       string                     `json:"recordError,omitempty"`
}

// SendMessage handles POST /admin/messages:send. The body is free text, a
// named reply template rendered locally, or an approved Twilio Content SID.
// The reply is appended to the thread after the provider accepts it.
func (h *AdminInboxHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	if h.sender == nil {
		writeError(w, http.StatusServiceUnavailable, "outbound messaging not configured")
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	to := strings.TrimSpace(req.To)
	if messaging.NormalizeAddress(to) == "" {
		writeError(w, http.StatusBadRequest, "to required")
		return
	}

	body := strings.TrimSpace(req.Body)
	if req.Template != "" {
		if h.renderer == nil {
			writeError(w, http.StatusBadRequest, "templates not configured")
			return
		}
		rendered, err := h.renderer.Render(req.Template, req.TemplateData)
		if err != nil {
			writeError(w, http.StatusBadRequest, "template error: "+err.Error())
			return
		}
		body = rendered
	}
	if body == "" && req.MediaURL == "" && req.ContentSID == "" {
		writeError(w, http.StatusBadRequest, "body, template or contentSid required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	logger := h.logger.With("conversation_id", to)
	if staff, ok := middleware.StaffFromContext(r.Context()); ok {
		logger = logger.With("staff", staff.Subject)
	}

	sid, err := h.sender.Send(ctx, messaging.OutboundMessage{
		To:               to,
		Body:             body,
		MediaURL:         req.MediaURL,
		ContentSID:       req.ContentSID,
		ContentVariables: req.ContentVariables,
	})
	if err != nil {
		logger.Error("outbound send failed", "error", err)
		writeError(w, http.StatusBadGateway, "send failed")
		return
	}

	var media *conversations.Media
	if req.MediaURL != "" {
		m := conversations.NewMedia(req.MediaURL, "")
		media = &m
	}
	resp := sendMessageResponse{ProviderMessageID: sid}
	recorded, err := h.inbox.RecordOutbound(ctx, conversations.OutboundRecord{
		ConversationID:    to,
		Body:              body,
		Media:             media,
		ProviderMessageID: sid,
	})
	if err != nil {
		logger.Error("outbound message sent but not recorded", "error", err, "sid", sid)
		resp.RecordError = "message sent but not stored"
	} else {
		view := recorded.View()
		resp.Message = &view
	}
	logger.Info("staff reply sent", "sid", sid)
	writeJSON(w, http.StatusAccepted, resp)
}

// ListTemplates handles GET /admin/templates.
func (h *AdminInboxHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if h.renderer != nil {
		names = h.renderer.Names()
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": names})
}

func conversationParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "conversationID")
	id, err := url.PathUnescape(raw)
	if err != nil || strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "missing conversation id")
		return "", false
	}
	return strings.TrimSpace(id), true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return 0, false
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
