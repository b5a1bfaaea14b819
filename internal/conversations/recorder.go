package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

var tracer = otel.Tracer("vatosalfa.internal.conversations")

// InboundRecord is a message received from a client.
type InboundRecord struct {
	// From is the raw provider address, e.g. "whatsapp:+524428133314".
	From              string
	Body              string
	Media             *Media
	ClientID          string
	ProviderMessageID string
	ReceivedAt        time.Time
}

// OutboundRecord is a reply sent by staff.
type OutboundRecord struct {
	ConversationID    string
	Body              string
	Media             *Media
	ProviderMessageID string
	SentAt            time.Time
}

// Recorder appends messages and keeps the conversation summary current.
type Recorder struct {
	store  Store
	now    func() time.Time
	newID  func() string
	logger *logging.Logger
}

// RecorderOption customizes a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderClock overrides time.Now.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides the message id generator.
func WithIDGenerator(fn func() string) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.newID = fn
		}
	}
}

func NewRecorder(store Store, logger *logging.Logger, opts ...RecorderOption) *Recorder {
	if store == nil {
		panic("conversations: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	r := &Recorder{
		store:  store,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordInbound appends a client message and bumps the conversation's unread
// count, creating the conversation on first contact. The summary is only
// touched once the message itself is stored.
func (r *Recorder) RecordInbound(ctx context.Context, in InboundRecord) (Message, error) {
	from := strings.TrimSpace(in.From)
	if from == "" {
		return Message{}, errors.New("conversations: sender address required")
	}
	ctx, span := tracer.Start(ctx, "conversations.record_inbound")
	defer span.End()
	span.SetAttributes(attribute.String("vatosalfa.conversation_id", from))

	at := in.ReceivedAt
	if at.IsZero() {
		at = r.now()
	}
	msg := Message{
		ID:                r.newID(),
		ConversationID:    from,
		Sender:            SenderClient,
		Content:           NewContent(in.Body, in.Media),
		ProviderMessageID: in.ProviderMessageID,
		Timestamp:         at.UTC(),
		Read:              false,
	}
	if err := r.store.AppendMessage(ctx, msg); err != nil {
		span.RecordError(err)
		return Message{}, fmt.Errorf("conversations: append inbound: %w", err)
	}
	if err := r.store.UpsertSummary(ctx, SummaryUpdate{
		ConversationID:  from,
		Preview:         msg.Content.Preview(),
		At:              msg.Timestamp,
		ClientID:        in.ClientID,
		IncrementUnread: true,
	}); err != nil {
		span.RecordError(err)
		return msg, fmt.Errorf("conversations: update inbound summary: %w", err)
	}
	r.logger.Debug("inbound message recorded", "conversation_id", from, "message_id", msg.ID)
	return msg, nil
}

// RecordOutbound appends a staff message. The unread count is left alone.
func (r *Recorder) RecordOutbound(ctx context.Context, out OutboundRecord) (Message, error) {
	id := strings.TrimSpace(out.ConversationID)
	if id == "" {
		return Message{}, errors.New("conversations: conversation id required")
	}
	ctx, span := tracer.Start(ctx, "conversations.record_outbound")
	defer span.End()

	at := out.SentAt
	if at.IsZero() {
		at = r.now()
	}
	msg := Message{
		ID:                r.newID(),
		ConversationID:    id,
		Sender:            SenderBusiness,
		Content:           NewContent(out.Body, out.Media),
		ProviderMessageID: out.ProviderMessageID,
		Timestamp:         at.UTC(),
		Read:              true,
	}
	if err := r.store.AppendMessage(ctx, msg); err != nil {
		span.RecordError(err)
		return Message{}, fmt.Errorf("conversations: append outbound: %w", err)
	}
	if err := r.store.UpsertSummary(ctx, SummaryUpdate{
		ConversationID: id,
		Preview:        msg.Content.Preview(),
		At:             msg.Timestamp,
	}); err != nil {
		span.RecordError(err)
		return msg, fmt.Errorf("conversations: update outbound summary: %w", err)
	}
	return msg, nil
}

// MarkRead resets the unread count.
func (r *Recorder) MarkRead(ctx context.Context, conversationID string) error {
	return r.store.MarkRead(ctx, conversationID)
}

func (r *Recorder) List(ctx context.Context, limit int) ([]Conversation, error) {
	return r.store.List(ctx, limit)
}

// Messages returns the thread, or ErrConversationNotFound when it does not exist.
func (r *Recorder) Messages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	_, ok, err := r.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConversationNotFound
	}
	return r.store.Messages(ctx, conversationID, limit)
}
