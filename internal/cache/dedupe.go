package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/smstodo/smstodo/internal/model"
)

const (
	// seenMessagePrefix is the Redis key prefix for processed inbound message ids.
	seenMessagePrefix = "sms:seen:"
	// DefaultDedupeTTL is how long a message id is remembered.
	DefaultDedupeTTL = 24 * time.Hour
)

// MarkMessageSeen records messageID and reports whether this is the first
// time it was seen. Messages without a provider id are always new. On Redis
// errors it fails open and returns true together with the error.
func (c *Cache) MarkMessageSeen(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	if messageID == "" || messageID == model.UnknownMessageID {
		return true, nil
	}
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}

	first, err := c.client.SetNX(ctx, seenMessageKey(messageID), 1, ttl).Result()
	if err != nil {
		return true, fmt.Errorf("failed to mark message seen: %w", err)
	}
	return first, nil
}

func seenMessageKey(messageID string) string {
	return seenMessagePrefix + messageID
}
