package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultLastSeenTTL bounds how long an observed operation state is
// remembered.
const DefaultLastSeenTTL = 24 * time.Hour

// LastSeenCache remembers the last observed state of each operation.
type LastSeenCache interface {
	// Observe records state for opID and reports whether it differs from
	// the previously recorded state. An unknown operation counts as changed.
	Observe(ctx context.Context, opID, state string) (bool, error)
}

// RedisLastSeen is a LastSeenCache on redis. Keys are the raw operation
// id behind an optional prefix; every observation refreshes the TTL.
//
// It is independent from the token cache: the two never share keys, so
// expiring one has no effect on the other.
type RedisLastSeen struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisLastSeen creates a RedisLastSeen. A non-positive ttl selects
// DefaultLastSeenTTL.
func NewRedisLastSeen(client redis.UniversalClient, prefix string, ttl time.Duration) (*RedisLastSeen, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultLastSeenTTL
	}
	return &RedisLastSeen{client: client, prefix: prefix, ttl: ttl}, nil
}

// Observe swaps the stored state atomically and compares the previous one.
func (c *RedisLastSeen) Observe(ctx context.Context, opID, state string) (bool, error) {
	if opID == "" {
		return false, fmt.Errorf("operation id cannot be empty")
	}

	previous, err := c.client.SetArgs(ctx, c.prefix+opID, state, redis.SetArgs{
		TTL: c.ttl,
		Get: true,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return true, nil
		}
		return false, fmt.Errorf("failed to record operation state: %w", err)
	}
	return previous != state, nil
}
