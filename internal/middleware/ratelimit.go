package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// rateLimitKeyPrefix namespaces the token buckets in redis.
const rateLimitKeyPrefix = "msolo:ratelimit:"

// tokenBucket atomically refills and takes one token from the bucket at
// KEYS[1]. It returns {allowed, remaining, burst}.
var tokenBucket = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local rate = tonumber(ARGV[2])
	local burst = tonumber(ARGV[3])

	local tokens_key = key .. ":tokens"
	local timestamp_key = key .. ":ts"
	local ttl = math.max(2, math.ceil(burst / rate) * 2)

	local tokens = tonumber(redis.call('GET', tokens_key) or burst)
	local last_update = tonumber(redis.call('GET', timestamp_key) or now)

	local elapsed = math.max(0, now - last_update)
	tokens = math.min(burst, tokens + elapsed * rate)

	local allowed = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	end
	redis.call('SET', tokens_key, tokens, 'EX', ttl)
	redis.call('SET', timestamp_key, now, 'EX', ttl)
	return {allowed, tokens, burst}
`)

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool

	// PerClient limits each client address.
	PerClient BucketConfig

	// PerOrchestrator limits the traffic forwarded to one orchestrator,
	// across all clients. Zero RequestsPerSecond disables it.
	PerOrchestrator BucketConfig

	RedisClient redis.UniversalClient
}

// BucketConfig sizes one token bucket.
type BucketConfig struct {
	RequestsPerSecond int
	BurstSize         int
}

// Burst returns the configured burst, defaulting to twice the rate.
func (b BucketConfig) Burst() int {
	if b.BurstSize > 0 {
		return b.BurstSize
	}
	return b.RequestsPerSecond * 2
}

// RateLimiter provides distributed rate limiting using Redis token buckets.
// It fails open: when redis is unavailable requests are let through.
type RateLimiter struct {
	client redis.UniversalClient
	logger *zap.Logger
	config *RateLimitConfig
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(config *RateLimitConfig, logger *zap.Logger) (*RateLimiter, error) {
	if config == nil {
		return nil, fmt.Errorf("rate limit config cannot be nil")
	}
	if config.RedisClient == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if config.Enabled && config.PerClient.RequestsPerSecond < 1 && config.PerOrchestrator.RequestsPerSecond < 1 {
		return nil, fmt.Errorf("rate limiting enabled without any limit")
	}

	return &RateLimiter{
		client: config.RedisClient,
		logger: logger,
		config: config,
		now:    time.Now,
	}, nil
}

// Middleware returns a Gin middleware function for rate limiting. It must
// run after routing so the orchestrator path parameters are known.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.config.Enabled {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		if rl.config.PerClient.RequestsPerSecond > 0 {
			if !rl.checkLimit(ctx, c, "client:"+c.ClientIP(), rl.config.PerClient) {
				return
			}
		}

		if orcID := c.Param("orcId"); orcID != "" && rl.config.PerOrchestrator.RequestsPerSecond > 0 {
			key := fmt.Sprintf("orchestrator:%s:%s", orchestratorType(c), orcID)
			if !rl.checkLimit(ctx, c, key, rl.config.PerOrchestrator) {
				return
			}
		}

		c.Next()
	}
}

// checkLimit takes a token from the bucket named key. It returns false and
// aborts the request with 429 when the bucket is empty.
func (rl *RateLimiter) checkLimit(ctx context.Context, c *gin.Context, key string, bucket BucketConfig) bool {
	now := rl.now().Unix()
	burst := bucket.Burst()

	result, err := tokenBucket.Run(ctx, rl.client, []string{rateLimitKeyPrefix + key},
		now, bucket.RequestsPerSecond, burst).Int64Slice()
	if err != nil || len(result) < 3 {
		rl.logger.Error("rate limit check failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return true
	}

	allowed, remaining, limit := result[0] == 1, result[1], result[2]

	c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(now+1, 10))

	if allowed {
		return true
	}

	c.Header("Retry-After", "1")
	rl.logger.Warn("rate limit exceeded",
		zap.String("key", key),
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.String("client_ip", c.ClientIP()),
	)
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded."})
	return false
}

// orchestratorType returns the orchestrator family of the route. The
// subscription and notification routes only exist for nfvo.
func orchestratorType(c *gin.Context) string {
	if t := c.Param("type"); t != "" {
		return t
	}
	return "nfvo"
}
