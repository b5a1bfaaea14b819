// Package conversations keeps the per-sender message threads shown in the
// staff inbox.
package conversations

import (
	"errors"
	"strings"
	"time"
)

// ErrConversationNotFound is returned when a thread does not exist.
var ErrConversationNotFound = errors.New("conversations: conversation not found")

// Sender tags who wrote a message.
type Sender string

const (
	SenderClient   Sender = "client"
	SenderBusiness Sender = "business"
)

// MediaKind is the coarse class of an attachment.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
	MediaOther    MediaKind = "other"
)

// ClassifyMedia maps a MIME type to a MediaKind. PDF is the only type treated
// as a document.
func ClassifyMedia(contentType string) MediaKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MediaImage
	case strings.HasPrefix(ct, "audio/"):
		return MediaAudio
	case ct == "application/pdf":
		return MediaDocument
	default:
		return MediaOther
	}
}

func (k MediaKind) label() string {
	switch k {
	case MediaImage:
		return "[Image]"
	case MediaAudio:
		return "[Audio]"
	case MediaDocument:
		return "[Document]"
	default:
		return "[File]"
	}
}

// EmptyPreview is shown for messages with neither text nor media.
const EmptyPreview = "[Empty message]"

// Media is an attachment reference. ArchiveKey is set once a copy has been
// stored in the media bucket.
type Media struct {
	URL         string
	ContentType string
	Kind        MediaKind
	ArchiveKey  string
}

// NewMedia builds a Media, classifying contentType.
func NewMedia(url, contentType string) Media {
	return Media{URL: url, ContentType: contentType, Kind: ClassifyMedia(contentType)}
}

// Content is the body of a message: TextContent, MediaContent or TextMediaContent.
type Content interface {
	Preview() string
	content()
}

// TextContent is a text-only message. An empty Text is an empty message.
type TextContent struct {
	Text string
}

// MediaContent is an attachment without text.
type MediaContent struct {
	Media Media
}

// TextMediaContent is text with one attachment.
type TextMediaContent struct {
	Text  string
	Media Media
}

func (TextContent) content()      {}
func (MediaContent) content()     {}
func (TextMediaContent) content() {}

func (c TextContent) Preview() string {
	if strings.TrimSpace(c.Text) == "" {
		return EmptyPreview
	}
	return c.Text
}

func (c MediaContent) Preview() string { return c.Media.Kind.label() }

func (c TextMediaContent) Preview() string {
	if strings.TrimSpace(c.Text) == "" {
		return c.Media.Kind.label()
	}
	return c.Text
}

// NewContent picks the variant matching what the message carries.
func NewContent(text string, media *Media) Content {
	hasText := strings.TrimSpace(text) != ""
	switch {
	case media != nil && hasText:
		return TextMediaContent{Text: text, Media: *media}
	case media != nil:
		return MediaContent{Media: *media}
	default:
		return TextContent{Text: text}
	}
}

// Message is one immutable entry in a conversation.
type Message struct {
	ID                string
	ConversationID    string
	Sender            Sender
	Content           Content
	ProviderMessageID string
	Timestamp         time.Time
	Read              bool
}

// Text returns the message text for any content variant.
func (m Message) Text() string {
	switch c := m.Content.(type) {
	case TextContent:
		return c.Text
	case TextMediaContent:
		return c.Text
	default:
		return ""
	}
}

// Media returns the attachment, if any.
func (m Message) Media() (Media, bool) {
	switch c := m.Content.(type) {
	case MediaContent:
		return c.Media, true
	case TextMediaContent:
		return c.Media, true
	default:
		return Media{}, false
	}
}

// messageRecord is the stored shape shared by every backend.
type messageRecord struct {
	ConversationID    string    `dynamodbav:"conversationId" json:"conversationId"`
	SortKey           string    `dynamodbav:"sk" json:"-"`
	ID                string    `dynamodbav:"id" json:"id"`
	Sender            Sender    `dynamodbav:"sender" json:"sender"`
	Text              string    `dynamodbav:"text,omitempty" json:"text,omitempty"`
	MediaURL          string    `dynamodbav:"mediaUrl,omitempty" json:"mediaUrl,omitempty"`
	MediaType         MediaKind `dynamodbav:"mediaType,omitempty" json:"mediaType,omitempty"`
	MediaContentType  string    `dynamodbav:"mediaContentType,omitempty" json:"mediaContentType,omitempty"`
	MediaArchiveKey   string    `dynamodbav:"mediaArchiveKey,omitempty" json:"mediaArchiveKey,omitempty"`
	ProviderMessageID string    `dynamodbav:"providerMessageId,omitempty" json:"providerMessageId,omitempty"`
	Timestamp         time.Time `dynamodbav:"timestamp" json:"timestamp"`
	Read              bool      `dynamodbav:"read" json:"read"`
}

func (m Message) record() messageRecord {
	rec := messageRecord{
		ConversationID:    m.ConversationID,
		SortKey:           sortKey(m.Timestamp, m.ID),
		ID:                m.ID,
		Sender:            m.Sender,
		Text:              m.Text(),
		ProviderMessageID: m.ProviderMessageID,
		Timestamp:         m.Timestamp.UTC(),
		Read:              m.Read,
	}
	if media, ok := m.Media(); ok {
		rec.MediaURL = media.URL
		rec.MediaType = media.Kind
		rec.MediaContentType = media.ContentType
		rec.MediaArchiveKey = media.ArchiveKey
	}
	return rec
}

func (r messageRecord) message() Message {
	var media *Media
	if r.MediaURL != "" {
		kind := r.MediaType
		if kind == "" {
			kind = ClassifyMedia(r.MediaContentType)
		}
		media = &Media{URL: r.MediaURL, ContentType: r.MediaContentType, Kind: kind, ArchiveKey: r.MediaArchiveKey}
	}
	return Message{
		ID:                r.ID,
		ConversationID:    r.ConversationID,
		Sender:            r.Sender,
		Content:           NewContent(r.Text, media),
		ProviderMessageID: r.ProviderMessageID,
		Timestamp:         r.Timestamp,
		Read:              r.Read,
	}
}

func sortKey(ts time.Time, id string) string {
	return ts.UTC().Format("2006-01-02T15:04:05.000000000Z") + "#" + id
}

// MessageView is the JSON shape returned by the inbox API.
type MessageView struct {
	ID                string    `json:"id"`
	Sender            Sender    `json:"sender"`
	Text              string    `json:"text,omitempty"`
	MediaURL          string    `json:"mediaUrl,omitempty"`
	MediaType         MediaKind `json:"mediaType,omitempty"`
	MediaArchiveKey   string    `json:"mediaArchiveKey,omitempty"`
	ProviderMessageID string    `json:"providerMessageId,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	Read              bool      `json:"read"`
}

// View flattens the message for JSON responses.
func (m Message) View() MessageView {
	rec := m.record()
	return MessageView{
		ID:                rec.ID,
		Sender:            rec.Sender,
		Text:              rec.Text,
		MediaURL:          rec.MediaURL,
		MediaType:         rec.MediaType,
		MediaArchiveKey:   rec.MediaArchiveKey,
		ProviderMessageID: rec.ProviderMessageID,
		Timestamp:         rec.Timestamp,
		Read:              rec.Read,
	}
}

// Conversation is the thread summary keyed by the raw sender address.
type Conversation struct {
	ID            string    `dynamodbav:"id" json:"id"`
	LastMessage   string    `dynamodbav:"lastMessage" json:"lastMessage"`
	LastMessageAt time.Time `dynamodbav:"lastMessageAt" json:"lastMessageAt"`
	UnreadCount   int       `dynamodbav:"unreadCount" json:"unreadCount"`
	ClientID      string    `dynamodbav:"clientId,omitempty" json:"clientId,omitempty"`
	CreatedAt     time.Time `dynamodbav:"createdAt" json:"createdAt"`
}

// SummaryUpdate describes one write to a conversation summary.
type SummaryUpdate struct {
	ConversationID  string
	Preview         string
	At              time.Time
	ClientID        string
	IncrementUnread bool
}
