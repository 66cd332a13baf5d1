// Package tokencache caches backend authentication tokens in redis so that
// drivers log in once per token lifetime instead of once per call.
package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultNamespace prefixes every token key.
	DefaultNamespace = "msolo:token:"

	// DefaultSkew is subtracted from the token lifetime to get the cache TTL.
	DefaultSkew = time.Second

	minTTL = time.Second
)

// Token is a backend bearer token.
type Token struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Valid reports whether the token can still be used at now.
func (t Token) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// LoginFunc obtains a fresh token from the backend.
type LoginFunc func(ctx context.Context) (Token, error)

// Cache returns a valid token for an orchestrator, logging in on a miss.
type Cache interface {
	Get(ctx context.Context, orchestratorID string, login LoginFunc) (Token, error)
	Invalidate(ctx context.Context, orchestratorID string) error
}

// Config configures a RedisCache.
type Config struct {
	// Namespace is the key prefix.
	Namespace string

	// Skew shortens the TTL of stored tokens.
	Skew time.Duration
}

// RedisCache is a Cache backed by redis.
// Concurrent misses for the same orchestrator may each log in; the last
// stored token wins.
type RedisCache struct {
	client    redis.UniversalClient
	namespace string
	skew      time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a RedisCache.
type Option func(*RedisCache)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *RedisCache) {
		c.now = now
	}
}

// NewRedisCache creates a token cache. A nil cfg selects the defaults.
func NewRedisCache(client redis.UniversalClient, cfg *Config, logger *zap.Logger, opts ...Option) (*RedisCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	c := &RedisCache{
		client:    client,
		namespace: DefaultNamespace,
		skew:      DefaultSkew,
		logger:    logger,
		now:       time.Now,
	}
	if cfg != nil {
		if cfg.Namespace != "" {
			c.namespace = cfg.Namespace
		}
		if cfg.Skew > 0 {
			c.skew = cfg.Skew
		}
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *RedisCache) key(orchestratorID string) string {
	return c.namespace + orchestratorID
}

// Get returns the cached token when it is still valid, otherwise calls
// login exactly once and stores the result.
func (c *RedisCache) Get(ctx context.Context, orchestratorID string, login LoginFunc) (Token, error) {
	key := c.key(orchestratorID)

	if tok, ok := c.lookup(ctx, key); ok {
		lookupsTotal.WithLabelValues("hit").Inc()
		return tok, nil
	}
	lookupsTotal.WithLabelValues("miss").Inc()

	tok, err := login(ctx)
	if err != nil {
		loginsTotal.WithLabelValues("failure").Inc()
		return Token{}, err
	}
	loginsTotal.WithLabelValues("success").Inc()

	c.store(ctx, key, tok)
	return tok, nil
}

func (c *RedisCache) lookup(ctx context.Context, key string) (Token, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("token cache read failed", zap.String("key", key), zap.Error(err))
		}
		return Token{}, false
	}

	var tok Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		c.logger.Warn("discarding corrupt cached token", zap.String("key", key), zap.Error(err))
		return Token{}, false
	}
	if !tok.Valid(c.now()) {
		return Token{}, false
	}
	return tok, true
}

func (c *RedisCache) store(ctx context.Context, key string, tok Token) {
	ttl := tok.ExpiresAt.Sub(c.now()) - c.skew
	if ttl < minTTL {
		ttl = minTTL
	}

	raw, err := json.Marshal(tok)
	if err != nil {
		c.logger.Warn("failed to encode token", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("token cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops the cached token of an orchestrator.
func (c *RedisCache) Invalidate(ctx context.Context, orchestratorID string) error {
	if err := c.client.Del(ctx, c.key(orchestratorID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}
