package conversations

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used by tests and single-node deployments.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	messages      map[string][]Message
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]Message),
	}
}

func (s *MemoryStore) AppendMessage(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	return nil
}

func (s *MemoryStore) UpsertSummary(ctx context.Context, update SummaryUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[update.ConversationID]
	if !ok {
		conv = &Conversation{ID: update.ConversationID, CreatedAt: update.At}
		s.conversations[update.ConversationID] = conv
	}
	conv.LastMessage = update.Preview
	conv.LastMessageAt = update.At
	if update.ClientID != "" {
		conv.ClientID = update.ClientID
	}
	if update.IncrementUnread {
		conv.UnreadCount++
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Conversation, bool, error) {
	if err := ctx.Err(); err != nil {
		return Conversation{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return Conversation{}, false, nil
	}
	return *conv, true, nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, *conv)
	}
	s.mu.RUnlock()
	sortByActivity(out)
	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Messages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	limit = normalizeLimit(limit)
	start := 0
	if len(msgs) > limit {
		start = len(msgs) - limit
	}
	out := make([]Message, len(msgs)-start)
	copy(out, msgs[start:])
	return out, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	conv.UnreadCount = 0
	return nil
}

func sortByActivity(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		if convs[i].LastMessageAt.Equal(convs[j].LastMessageAt) {
			return convs[i].ID < convs[j].ID
		}
		return convs[i].LastMessageAt.After(convs[j].LastMessageAt)
	})
}
