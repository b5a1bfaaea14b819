package conversations

import "context"

// Store persists conversations and their messages.
type Store interface {
	AppendMessage(ctx context.Context, msg Message) error
	// UpsertSummary creates the conversation if missing and overwrites its
	// preview and timestamp. IncrementUnread adds one to the unread count.
	UpsertSummary(ctx context.Context, update SummaryUpdate) error
	Get(ctx context.Context, id string) (Conversation, bool, error)
	// List returns conversations, most recent activity first.
	List(ctx context.Context, limit int) ([]Conversation, error)
	// Messages returns up to limit of the newest messages in chronological order.
	Messages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	MarkRead(ctx context.Context, id string) error
}

const defaultListLimit = 50

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > 500 {
		return 500
	}
	return limit
}
