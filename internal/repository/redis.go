package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/lcmerr"
	"github.com/piwi3910/msolo/internal/models"
)

const (
	// Redis key prefixes
	orchestratorKeyPrefix     = "msolo:orchestrator:"
	orchestratorSetPrefix     = "msolo:orchestrators:"
	credentialsKeyPrefix      = "msolo:credentials:"
	subscriptionKeyPrefix     = "msolo:subscription:"
	subscriptionOrchIndex     = "msolo:subscriptions:nfvo:"
	subscriptionNsIndexPrefix = "msolo:subscriptions:ns:"
)

// RedisConfig holds configuration for the Redis connection shared by the
// repository, the token cache and the notification pipeline.
type RedisConfig struct {
	// Addr is the Redis server address (host:port) for standalone mode.
	Addr string

	// Password for Redis authentication.
	Password string

	// DB is the Redis database number (0-15). Ignored in cluster mode.
	DB int

	// UseSentinel enables Redis Sentinel mode for high availability.
	UseSentinel bool

	// SentinelAddrs is the list of Sentinel server addresses.
	SentinelAddrs []string

	// MasterName is the name of the Redis master in Sentinel mode.
	MasterName string

	// ClusterAddrs enables cluster mode when non-empty.
	ClusterAddrs []string

	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}
}

// NewRedisClient builds a standalone, sentinel or cluster client from cfg.
func NewRedisClient(cfg *RedisConfig) redis.UniversalClient {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	switch {
	case len(cfg.ClusterAddrs) > 0:
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.ClusterAddrs,
			Password:     cfg.Password,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
		})
	case cfg.UseSentinel:
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.MasterName,
			SentinelAddrs: cfg.SentinelAddrs,
			Password:      cfg.Password,
			DB:            cfg.DB,
			MaxRetries:    cfg.MaxRetries,
			DialTimeout:   cfg.DialTimeout,
			ReadTimeout:   cfg.ReadTimeout,
			WriteTimeout:  cfg.WriteTimeout,
			PoolSize:      cfg.PoolSize,
		})
	default:
		return redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
		})
	}
}

// Seed is one orchestrator registration loaded from configuration.
type Seed struct {
	// Family is "nfvo" or "rano".
	Family string `mapstructure:"family" yaml:"family" validate:"required,oneof=nfvo rano NFVO RANO"`

	ID      string `mapstructure:"id" yaml:"id" validate:"required"`
	Name    string `mapstructure:"name" yaml:"name"`
	Backend string `mapstructure:"backend" yaml:"backend" validate:"required"`
	Site    string `mapstructure:"site" yaml:"site"`
	URI     string `mapstructure:"uri" yaml:"uri" validate:"omitempty,url"`

	Host     string `mapstructure:"host" yaml:"host" validate:"required"`
	Port     int    `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	Project  string `mapstructure:"project" yaml:"project"`
}

// storedCredentials is the persisted form of models.Credentials, which
// hides the password from JSON.
type storedCredentials struct {
	OrchestratorID string `json:"orchestratorId"`
	Host           string `json:"host"`
	Port           int    `json:"port,omitempty"`
	User           string `json:"user,omitempty"`
	Password       string `json:"password,omitempty"`
	Project        string `json:"project,omitempty"`
}

// RedisRepository implements Repository on redis.
//
// Data Model:
//   - msolo:orchestrator:<type>:<id> (string) - Orchestrator JSON
//   - msolo:orchestrators:<type> (set) - Registered ids per family
//   - msolo:credentials:<type>:<id> (string) - Credentials JSON
//   - msolo:subscription:<id> (string) - Subscription JSON
//   - msolo:subscriptions:nfvo:<orchestratorId> (set) - Index by NFVO
//   - msolo:subscriptions:ns:<nsInstanceId> (set) - Index by NS instance
type RedisRepository struct {
	client   redis.UniversalClient
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

var _ Repository = (*RedisRepository)(nil)

// NewRedisRepository creates a RedisRepository on an existing client.
func NewRedisRepository(client redis.UniversalClient, logger *zap.Logger) (*RedisRepository, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &RedisRepository{
		client:   client,
		validate: validator.New(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// SeedOrchestrators registers every seed, replacing existing
// registrations with the same family and id. All seeds are validated
// before anything is written.
func (r *RedisRepository) SeedOrchestrators(ctx context.Context, seeds []Seed) error {
	for i := range seeds {
		if err := r.validate.Struct(seeds[i]); err != nil {
			return fmt.Errorf("invalid orchestrator seed %d (%s): %w", i, seeds[i].ID, err)
		}
	}

	for _, seed := range seeds {
		orchType := models.OrchestratorType(strings.ToLower(seed.Family))
		now := r.now()

		orch := models.Orchestrator{
			ID:        seed.ID,
			Name:      seed.Name,
			Type:      seed.Backend,
			Site:      seed.Site,
			URI:       seed.URI,
			CreatedAt: &now,
			UpdatedAt: &now,
		}
		if existing, err := r.GetOrchestrator(ctx, orchType, seed.ID); err == nil && existing.CreatedAt != nil {
			orch.CreatedAt = existing.CreatedAt
		}

		orchData, err := json.Marshal(orch)
		if err != nil {
			return fmt.Errorf("failed to marshal orchestrator: %w", err)
		}
		credData, err := json.Marshal(storedCredentials{
			OrchestratorID: seed.ID,
			Host:           seed.Host,
			Port:           seed.Port,
			User:           seed.User,
			Password:       seed.Password,
			Project:        seed.Project,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal credentials: %w", err)
		}

		pipe := r.client.TxPipeline()
		pipe.Set(ctx, orchestratorKey(orchType, seed.ID), orchData, 0)
		pipe.Set(ctx, credentialsKey(orchType, seed.ID), credData, 0)
		pipe.SAdd(ctx, orchestratorSetPrefix+string(orchType), seed.ID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to seed orchestrator %s: %w", seed.ID, err)
		}

		r.logger.Info("orchestrator registered",
			zap.String("type", string(orchType)),
			zap.String("orchestrator_id", seed.ID),
			zap.String("backend", orch.BackendType()),
		)
	}
	return nil
}

// GetOrchestrator returns a registered orchestrator.
func (r *RedisRepository) GetOrchestrator(ctx context.Context, orchType models.OrchestratorType, id string) (*models.Orchestrator, error) {
	if id == "" {
		return nil, lcmerr.OrchestratorNotFound(id)
	}

	data, err := r.client.Get(ctx, orchestratorKey(orchType, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, lcmerr.OrchestratorNotFound(id)
		}
		return nil, lcmerr.ServerError("failed to get orchestrator: %v", err)
	}

	var orch models.Orchestrator
	if err := json.Unmarshal(data, &orch); err != nil {
		return nil, lcmerr.ServerError("failed to unmarshal orchestrator: %v", err)
	}
	return &orch, nil
}

// GetCredentials returns the credentials of a registered orchestrator.
func (r *RedisRepository) GetCredentials(ctx context.Context, orchType models.OrchestratorType, id string) (*models.Credentials, error) {
	if _, err := r.GetOrchestrator(ctx, orchType, id); err != nil {
		return nil, err
	}

	data, err := r.client.Get(ctx, credentialsKey(orchType, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, lcmerr.CredentialsNotFound(id)
		}
		return nil, lcmerr.ServerError("failed to get credentials: %v", err)
	}

	var stored storedCredentials
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, lcmerr.ServerError("failed to unmarshal credentials: %v", err)
	}
	return &models.Credentials{
		OrchestratorID: stored.OrchestratorID,
		Host:           stored.Host,
		Port:           stored.Port,
		User:           stored.User,
		Password:       stored.Password,
		Project:        stored.Project,
	}, nil
}

// ListOrchestrators returns the orchestrators of a family sorted by id.
func (r *RedisRepository) ListOrchestrators(ctx context.Context, orchType models.OrchestratorType) ([]*models.Orchestrator, error) {
	ids, err := r.client.SMembers(ctx, orchestratorSetPrefix+string(orchType)).Result()
	if err != nil {
		return nil, lcmerr.ServerError("failed to list orchestrators: %v", err)
	}
	sort.Strings(ids)

	orchs := make([]*models.Orchestrator, 0, len(ids))
	for _, id := range ids {
		orch, err := r.GetOrchestrator(ctx, orchType, id)
		if err != nil {
			if errors.Is(err, lcmerr.ErrOrchestratorNotFound) {
				continue
			}
			return nil, err
		}
		orchs = append(orchs, orch)
	}
	return orchs, nil
}

// CreateSubscription validates and stores sub under an NFVO.
func (r *RedisRepository) CreateSubscription(ctx context.Context, orchestratorID string, sub *models.Subscription) (*models.Subscription, error) {
	if sub == nil {
		return nil, lcmerr.BadRequest("Payload not found.")
	}
	if sub.NsInstanceID == "" {
		return nil, lcmerr.BadRequest("nsInstanceId is required")
	}
	if err := validateCallbackURL(sub.CallbackURI); err != nil {
		return nil, lcmerr.WithReason(lcmerr.ErrBadRequest, ErrInvalidCallback,
			fmt.Sprintf("%v: %v", ErrInvalidCallback, err))
	}
	if _, err := r.GetOrchestrator(ctx, models.NFVO, orchestratorID); err != nil {
		return nil, err
	}

	created := *sub
	created.ID = uuid.New().String()
	created.OrchestratorID = orchestratorID
	created.NotificationTypes = append([]string(nil), sub.NotificationTypes...)

	data, err := json.Marshal(&created)
	if err != nil {
		return nil, lcmerr.ServerError("failed to marshal subscription: %v", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, subscriptionKeyPrefix+created.ID, data, 0)
	pipe.SAdd(ctx, subscriptionOrchIndex+orchestratorID, created.ID)
	pipe.SAdd(ctx, subscriptionNsIndexPrefix+created.NsInstanceID, created.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, lcmerr.ServerError("failed to create subscription: %v", err)
	}

	r.logger.Info("subscription created",
		zap.String("subscription_id", created.ID),
		zap.String("orchestrator_id", orchestratorID),
		zap.String("ns_instance_id", created.NsInstanceID),
	)
	return &created, nil
}

// GetSubscription returns a subscription created under orchestratorID.
func (r *RedisRepository) GetSubscription(ctx context.Context, orchestratorID, subscriptionID string) (*models.Subscription, error) {
	sub, err := r.loadSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.OrchestratorID != orchestratorID {
		return nil, lcmerr.SubscriptionNotFound(subscriptionID)
	}
	return sub, nil
}

// ListSubscriptions returns the subscriptions of an NFVO.
func (r *RedisRepository) ListSubscriptions(ctx context.Context, orchestratorID string) ([]*models.Subscription, error) {
	if _, err := r.GetOrchestrator(ctx, models.NFVO, orchestratorID); err != nil {
		return nil, err
	}
	return r.listIndex(ctx, subscriptionOrchIndex+orchestratorID)
}

// SearchSubscriptionsByNsInstance returns the subscriptions of an NS instance.
func (r *RedisRepository) SearchSubscriptionsByNsInstance(ctx context.Context, nsInstanceID string) ([]*models.Subscription, error) {
	if nsInstanceID == "" {
		return []*models.Subscription{}, nil
	}
	return r.listIndex(ctx, subscriptionNsIndexPrefix+nsInstanceID)
}

// DeleteSubscription removes a subscription and its index entries.
func (r *RedisRepository) DeleteSubscription(ctx context.Context, orchestratorID, subscriptionID string) error {
	sub, err := r.GetSubscription(ctx, orchestratorID, subscriptionID)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, subscriptionKeyPrefix+sub.ID)
	pipe.SRem(ctx, subscriptionOrchIndex+sub.OrchestratorID, sub.ID)
	pipe.SRem(ctx, subscriptionNsIndexPrefix+sub.NsInstanceID, sub.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return lcmerr.ServerError("failed to delete subscription: %v", err)
	}

	r.logger.Info("subscription deleted", zap.String("subscription_id", sub.ID))
	return nil
}

// Ping checks if Redis is available.
func (r *RedisRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return lcmerr.ServerError("redis unavailable: %v", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) loadSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	if id == "" {
		return nil, lcmerr.SubscriptionNotFound(id)
	}

	data, err := r.client.Get(ctx, subscriptionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, lcmerr.SubscriptionNotFound(id)
		}
		return nil, lcmerr.ServerError("failed to get subscription: %v", err)
	}

	var sub models.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, lcmerr.ServerError("failed to unmarshal subscription: %v", err)
	}
	return &sub, nil
}

// listIndex loads the subscriptions referenced by an index set, skipping
// entries whose data is gone or corrupted.
func (r *RedisRepository) listIndex(ctx context.Context, indexKey string) ([]*models.Subscription, error) {
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, lcmerr.ServerError("failed to list subscriptions: %v", err)
	}
	sort.Strings(ids)

	subs := make([]*models.Subscription, 0, len(ids))
	for _, id := range ids {
		sub, err := r.loadSubscription(ctx, id)
		if err != nil {
			r.logger.Warn("skipping unreadable subscription",
				zap.String("subscription_id", id),
				zap.Error(err),
			)
			continue
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func orchestratorKey(orchType models.OrchestratorType, id string) string {
	return orchestratorKeyPrefix + string(orchType) + ":" + id
}

func credentialsKey(orchType models.OrchestratorType, id string) string {
	return credentialsKeyPrefix + string(orchType) + ":" + id
}

// validateCallbackURL validates that a callback URL is properly formatted.
func validateCallbackURL(callback string) error {
	if callback == "" {
		return fmt.Errorf("callback URL is empty")
	}

	u, err := url.Parse(callback)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("callback URL must use http or https scheme")
	}

	if u.Host == "" {
		return fmt.Errorf("callback URL must have a host")
	}

	return nil
}
