package messaging

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper recognises provider redeliveries of the same inbound message.
type Deduper interface {
	// FirstDelivery records messageSID and reports whether it was unseen.
	FirstDelivery(ctx context.Context, messageSID string) (bool, error)
}

const (
	defaultDedupeTTL = 24 * time.Hour
	dedupeKeyPrefix  = "twilio:inbound:"
)

// RedisDeduper claims each MessageSid with SET NX and a TTL.
type RedisDeduper struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisDeduper(client redis.Cmdable, ttl time.Duration) *RedisDeduper {
	if client == nil {
		panic("messaging: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) FirstDelivery(ctx context.Context, messageSID string) (bool, error) {
	messageSID = strings.TrimSpace(messageSID)
	if messageSID == "" {
		return true, nil
	}
	ok, err := d.client.SetNX(ctx, dedupeKeyPrefix+messageSID, time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return true, fmt.Errorf("messaging: dedupe claim: %w", err)
	}
	return ok, nil
}

// MemoryDeduper is a process-local Deduper for single-node and test setups.
type MemoryDeduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	return &MemoryDeduper{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

func (d *MemoryDeduper) FirstDelivery(_ context.Context, messageSID string) (bool, error) {
	messageSID = strings.TrimSpace(messageSID)
	if messageSID == "" {
		return true, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for sid, expires := range d.seen {
		if now.After(expires) {
			delete(d.seen, sid)
		}
	}
	if _, ok := d.seen[messageSID]; ok {
		return false, nil
	}
	d.seen[messageSID] = now.Add(d.ttl)
	return true, nil
}

var (
	_ Deduper = (*RedisDeduper)(nil)
	_ Deduper = (*MemoryDeduper)(nil)
)
