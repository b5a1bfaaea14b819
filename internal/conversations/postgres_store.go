package conversations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool used by PostgresStore.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists the inbox in the conversations and messages tables.
type PostgresStore struct {
	pool PgxPool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("conversations: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) AppendMessage(ctx context.Context, msg Message) error {
	rec := msg.record()
	query := `
		INSERT INTO messages (id, conversation_id, sender, text, media_url, media_type,
			media_content_type, media_archive_key, provider_message_id, created_at, read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.ConversationID, string(rec.Sender), rec.Text, rec.MediaURL, string(rec.MediaType),
		rec.MediaContentType, rec.MediaArchiveKey, rec.ProviderMessageID, rec.Timestamp, rec.Read,
	)
	if err != nil {
		return fmt.Errorf("conversations: insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertSummary(ctx context.Context, update SummaryUpdate) error {
	query := `
		INSERT INTO conversations (id, last_message, last_message_at, unread_count, client_id, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $3)
		ON CONFLICT (id) DO UPDATE SET
			last_message = EXCLUDED.last_message,
			last_message_at = EXCLUDED.last_message_at,
			unread_count = conversations.unread_count + EXCLUDED.unread_count,
			client_id = COALESCE(EXCLUDED.client_id, conversations.client_id)
	`
	inc := 0
	if update.IncrementUnread {
		inc = 1
	}
	_, err := s.pool.Exec(ctx, query, update.ConversationID, update.Preview, update.At.UTC(), inc, update.ClientID)
	if err != nil {
		return fmt.Errorf("conversations: upsert summary: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Conversation, bool, error) {
	query := `
		SELECT id, last_message, last_message_at, unread_count, client_id, created_at
		FROM conversations
		WHERE id = $1
	`
	conv, err := scanConversation(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, false, nil
		}
		return Conversation{}, false, fmt.Errorf("conversations: select conversation: %w", err)
	}
	return conv, true, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Conversation, error) {
	query := `
		SELECT id, last_message, last_message_at, unread_count, client_id, created_at
		FROM conversations
		ORDER BY last_message_at DESC, id
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("conversations: list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("conversations: scan conversation: %w", err)
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversations: iterate conversations: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Messages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	query := `
		SELECT id, conversation_id, sender, text, media_url, media_type,
			media_content_type, media_archive_key, provider_message_id, created_at, read
		FROM (
			SELECT * FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`
	rows, err := s.pool.Query(ctx, query, conversationID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("conversations: list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			rec       messageRecord
			sender    string
			mediaType string
		)
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &sender, &rec.Text, &rec.MediaURL, &mediaType,
			&rec.MediaContentType, &rec.MediaArchiveKey, &rec.ProviderMessageID, &rec.Timestamp, &rec.Read); err != nil {
			return nil, fmt.Errorf("conversations: scan message: %w", err)
		}
		rec.Sender = Sender(sender)
		rec.MediaType = MediaKind(mediaType)
		out = append(out, rec.message())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversations: iterate messages: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE conversations SET unread_count = 0 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("conversations: mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func scanConversation(row pgx.Row) (Conversation, error) {
	var (
		conv     Conversation
		clientID *string
		lastAt   time.Time
		created  time.Time
	)
	if err := row.Scan(&conv.ID, &conv.LastMessage, &lastAt, &conv.UnreadCount, &clientID, &created); err != nil {
		return Conversation{}, err
	}
	conv.LastMessageAt = lastAt
	conv.CreatedAt = created
	if clientID != nil {
		conv.ClientID = *clientID
	}
	return conv, nil
}
