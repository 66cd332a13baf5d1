// Package config provides configuration management for the msolo gateway.
// It loads configuration from YAML files and environment variables using Viper
// and validates every section before the gateway is wired.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/piwi3910/msolo/internal/repository"
)

// TLS client authentication modes.
const (
	tlsClientAuthNone             = "none"
	tlsClientAuthRequest          = "request"
	tlsClientAuthRequire          = "require"
	tlsClientAuthVerify           = "verify"
	tlsClientAuthRequireAndVerify = "require-and-verify"
)

// Repository types.
const (
	RepositoryRedis = "redis"
	RepositoryIWF   = "iwf"
)

// Config represents the complete configuration for the msolo gateway.
//
// Configuration can be loaded from:
//   - YAML file (config/config.yaml)
//   - Environment variables (prefixed with MSOLO_)
//
// Example:
//
//	cfg, err := config.Load("config/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Redis         RedisConfig         `mapstructure:"redis"`
	TLS           TLSConfig           `mapstructure:"tls"`
	Drivers       DriversConfig       `mapstructure:"drivers"`
	TokenCache    TokenCacheConfig    `mapstructure:"token_cache"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Repository    RepositoryConfig    `mapstructure:"repository"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Security      SecurityConfig      `mapstructure:"security"`
	Validation    ValidationConfig    `mapstructure:"validation"`

	// Orchestrators are registered in the redis repository at startup.
	Orchestrators []repository.Seed `mapstructure:"orchestrators"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Host is the network interface to bind to (e.g., "0.0.0.0", "localhost")
	Host string `mapstructure:"host"`

	// Port is the HTTP server port (default: 8080)
	Port int `mapstructure:"port"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxHeaderBytes is the maximum size of request headers
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`

	// GinMode sets the Gin framework mode ("debug", "release", "test")
	GinMode string `mapstructure:"gin_mode"`
}

// RedisConfig contains Redis client configuration.
type RedisConfig struct {
	// Mode specifies Redis deployment mode: "standalone", "sentinel", "cluster"
	Mode string `mapstructure:"mode"`

	// Addresses contains Redis server addresses
	// For standalone: ["localhost:6379"]
	// For sentinel: ["sentinel1:26379", "sentinel2:26379"]
	// For cluster: ["node1:6379", "node2:6379", ...]
	Addresses []string `mapstructure:"addresses"`

	// MasterName is required for Sentinel mode (e.g., "mymaster")
	MasterName string `mapstructure:"master_name"`

	Password string `mapstructure:"password"`

	// DB is the Redis database number (0-15, only for standalone/sentinel)
	DB int `mapstructure:"db"`

	PoolSize     int           `mapstructure:"pool_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ClientConfig converts the section into the repository client options.
func (r RedisConfig) ClientConfig() *repository.RedisConfig {
	cfg := &repository.RedisConfig{
		Password:     r.Password,
		DB:           r.DB,
		MaxRetries:   r.MaxRetries,
		DialTimeout:  r.DialTimeout,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
		PoolSize:     r.PoolSize,
	}

	switch r.Mode {
	case "cluster":
		cfg.ClusterAddrs = r.Addresses
	case "sentinel":
		cfg.UseSentinel = true
		cfg.SentinelAddrs = r.Addresses
		cfg.MasterName = r.MasterName
	default:
		if len(r.Addresses) > 0 {
			cfg.Addr = r.Addresses[0]
		}
	}
	return cfg
}

// TLSConfig contains TLS/mTLS configuration.
type TLSConfig struct {
	// Enabled enables TLS for the HTTP server
	Enabled bool `mapstructure:"enabled"`

	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`

	// CAFile is the path to the CA certificate file for client verification
	CAFile string `mapstructure:"ca_file"`

	// ClientAuth specifies the client authentication mode
	// Options: "none", "request", "require", "verify", "require-and-verify"
	ClientAuth string `mapstructure:"client_auth"`

	// MinVersion is the minimum TLS version ("1.2", "1.3")
	MinVersion string `mapstructure:"min_version"`
}

// DriversConfig controls how backend drivers are built and cached.
type DriversConfig struct {
	// Timeout bounds every backend HTTP call.
	Timeout time.Duration `mapstructure:"timeout"`

	// TLSSkipVerify disables certificate verification toward backends.
	TLSSkipVerify bool `mapstructure:"tls_skip_verify"`

	// CacheSize is the number of driver instances kept by the manager.
	CacheSize int `mapstructure:"cache_size"`

	// CacheTTL evicts cached drivers so registry changes are picked up.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// TokenCacheConfig configures the backend session token cache.
type TokenCacheConfig struct {
	Namespace string        `mapstructure:"namespace"`
	Skew      time.Duration `mapstructure:"skew"`
}

// NotificationsConfig configures reconciliation and delivery.
type NotificationsConfig struct {
	// Enabled starts the poller and the dispatch workers.
	Enabled bool `mapstructure:"enabled"`

	PollInterval  time.Duration `mapstructure:"poll_interval"`
	PollTimeout   time.Duration `mapstructure:"poll_timeout"`
	PollableTypes []string      `mapstructure:"pollable_types"`
	Concurrency   int           `mapstructure:"concurrency"`

	LastSeenTTL    time.Duration `mapstructure:"last_seen_ttl"`
	LastSeenPrefix string        `mapstructure:"last_seen_prefix"`

	CallbackTimeout time.Duration `mapstructure:"callback_timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`

	// BreakerCacheSize and BreakerIdleTTL bound the per-callback breakers.
	BreakerCacheSize int           `mapstructure:"breaker_cache_size"`
	BreakerIdleTTL   time.Duration `mapstructure:"breaker_idle_ttl"`

	Workers int `mapstructure:"workers"`
}

// RepositoryConfig selects where orchestrators and subscriptions live.
type RepositoryConfig struct {
	// Type is "redis" (local store seeded from config) or "iwf".
	Type string `mapstructure:"type"`

	IWF IWFConfig `mapstructure:"iwf"`
}

// IWFConfig configures the IWF repository client.
type IWFConfig struct {
	URL             string        `mapstructure:"url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      uint64        `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`

	// VimSync copies the VIM accounts of OSM orchestrators into the
	// repository at startup and then every VimSyncInterval. A zero
	// interval syncs once.
	VimSync         bool          `mapstructure:"vim_sync"`
	VimSyncInterval time.Duration `mapstructure:"vim_sync_interval"`
}

// ClientConfig converts the section into the IWF client options.
func (i IWFConfig) ClientConfig() *repository.IWFConfig {
	return &repository.IWFConfig{
		URL:             i.URL,
		Timeout:         i.Timeout,
		MaxRetries:      i.MaxRetries,
		InitialInterval: i.InitialInterval,
	}
}

// ObservabilityConfig contains logging and metrics configuration.
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level sets the log level ("debug", "info", "warn", "error", "fatal")
	Level string `mapstructure:"level"`

	// Format sets the log format ("json", "console")
	Format string `mapstructure:"format"`

	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`

	EnableCaller     bool `mapstructure:"enable_caller"`
	EnableStacktrace bool `mapstructure:"enable_stacktrace"`

	// Development enables development mode (more verbose, console format)
	Development bool `mapstructure:"development"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Path is the HTTP path for metrics endpoint (default: "/metrics")
	Path string `mapstructure:"path"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	// RateLimitEnabled enables rate limiting of the NBI.
	RateLimitEnabled bool `mapstructure:"rate_limit_enabled"`

	// RateLimitRequests is the sustained requests per second per client.
	RateLimitRequests int `mapstructure:"rate_limit_requests"`

	// RateLimitBurst is the per-client bucket size.
	RateLimitBurst int `mapstructure:"rate_limit_burst"`

	// OrchestratorRequests caps requests per second toward one
	// orchestrator, across all clients. Zero disables the limit.
	OrchestratorRequests int `mapstructure:"orchestrator_requests"`

	// HSTS enables the Strict-Transport-Security header.
	HSTS bool `mapstructure:"hsts"`
}

// ValidationConfig contains OpenAPI request validation configuration.
type ValidationConfig struct {
	// Enabled enables OpenAPI request validation
	Enabled bool `mapstructure:"enabled"`

	// SpecPath is the path to a custom OpenAPI document.
	// If empty, the embedded document is used.
	SpecPath string `mapstructure:"spec_path"`
}

// Load loads configuration from the specified file path and environment variables.
// Environment variables override file values and should be prefixed with MSOLO_
// (e.g., MSOLO_SERVER_PORT=8080).
//
// Example:
//
//	cfg, err := config.Load("config/config.yaml")
//	if err != nil {
//	    return fmt.Errorf("failed to load config: %w", err)
//	}
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/msolo")
	}

	v.SetEnvPrefix("MSOLO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional if all values come from env vars
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_header_bytes", 1048576) // 1MB
	v.SetDefault("server.gin_mode", "release")

	// Redis defaults
	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	// TLS defaults
	v.SetDefault("tls.enabled", false)
	v.SetDefault("tls.client_auth", "none")
	v.SetDefault("tls.min_version", "1.3")

	// Driver defaults
	v.SetDefault("drivers.timeout", "30s")
	v.SetDefault("drivers.tls_skip_verify", false)
	v.SetDefault("drivers.cache_size", 256)
	v.SetDefault("drivers.cache_ttl", "10m")

	// Token cache defaults
	v.SetDefault("token_cache.namespace", "msolo:token:")
	v.SetDefault("token_cache.skew", "1s")

	// Notification defaults
	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.poll_interval", "30s")
	v.SetDefault("notifications.poll_timeout", "30s")
	v.SetDefault("notifications.pollable_types", []string{"osm"})
	v.SetDefault("notifications.concurrency", 4)
	v.SetDefault("notifications.last_seen_ttl", "24h")
	v.SetDefault("notifications.last_seen_prefix", "")
	v.SetDefault("notifications.callback_timeout", "10s")
	v.SetDefault("notifications.breaker_failures", 3)
	v.SetDefault("notifications.breaker_timeout", "30s")
	v.SetDefault("notifications.breaker_cache_size", 1024)
	v.SetDefault("notifications.breaker_idle_ttl", "1h")
	v.SetDefault("notifications.workers", 2)

	// Repository defaults
	v.SetDefault("repository.type", RepositoryRedis)
	v.SetDefault("repository.iwf.url", "http://localhost:8087")
	v.SetDefault("repository.iwf.timeout", "10s")
	v.SetDefault("repository.iwf.max_retries", 3)
	v.SetDefault("repository.iwf.initial_interval", "200ms")
	v.SetDefault("repository.iwf.vim_sync", true)
	v.SetDefault("repository.iwf.vim_sync_interval", "5m")

	// Logging defaults
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.output_paths", []string{"stdout"})
	v.SetDefault("observability.logging.error_output_paths", []string{"stderr"})
	v.SetDefault("observability.logging.enable_caller", true)
	v.SetDefault("observability.logging.enable_stacktrace", false)
	v.SetDefault("observability.logging.development", false)

	// Metrics defaults
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	// Security defaults
	v.SetDefault("security.rate_limit_enabled", false)
	v.SetDefault("security.rate_limit_requests", 50)
	v.SetDefault("security.rate_limit_burst", 100)
	v.SetDefault("security.orchestrator_requests", 0)
	v.SetDefault("security.hsts", false)

	// Validation defaults
	v.SetDefault("validation.enabled", true)
	v.SetDefault("validation.spec_path", "")
}

// Validate validates the configuration and returns an error if any values are invalid.
// This should be called after Load() to ensure the configuration is valid before use.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateRedis,
		c.validateTLS,
		c.validateDrivers,
		c.validateTokenCache,
		c.validateNotifications,
		c.validateRepository,
		c.validateObservability,
		c.validateSecurity,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.Server.GinMode != "debug" && c.Server.GinMode != "release" && c.Server.GinMode != "test" {
		return fmt.Errorf("invalid gin_mode: %s (must be debug, release, or test)", c.Server.GinMode)
	}

	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.Mode != "standalone" && c.Redis.Mode != "sentinel" && c.Redis.Mode != "cluster" {
		return fmt.Errorf("invalid redis mode: %s (must be standalone, sentinel, or cluster)", c.Redis.Mode)
	}

	if len(c.Redis.Addresses) == 0 {
		return fmt.Errorf("redis addresses cannot be empty")
	}

	if c.Redis.Mode == "sentinel" && c.Redis.MasterName == "" {
		return fmt.Errorf("redis master_name is required for sentinel mode")
	}

	if c.Redis.DB < 0 || c.Redis.DB > 15 {
		return fmt.Errorf("invalid redis db: %d (must be 0-15)", c.Redis.DB)
	}

	return nil
}

func (c *Config) validateTLS() error {
	if !c.TLS.Enabled {
		return nil
	}

	if err := c.validateTLSFiles(); err != nil {
		return err
	}

	if err := c.validateTLSClientAuth(); err != nil {
		return err
	}

	if c.TLS.MinVersion != "1.2" && c.TLS.MinVersion != "1.3" {
		return fmt.Errorf("invalid tls min_version: %s (must be 1.2 or 1.3)", c.TLS.MinVersion)
	}

	return nil
}

func (c *Config) validateTLSFiles() error {
	if c.TLS.CertFile == "" {
		return fmt.Errorf("tls cert_file is required when TLS is enabled")
	}

	if c.TLS.KeyFile == "" {
		return fmt.Errorf("tls key_file is required when TLS is enabled")
	}

	if _, err := os.Stat(c.TLS.CertFile); os.IsNotExist(err) {
		return fmt.Errorf("tls cert_file does not exist: %s", c.TLS.CertFile)
	}

	if _, err := os.Stat(c.TLS.KeyFile); os.IsNotExist(err) {
		return fmt.Errorf("tls key_file does not exist: %s", c.TLS.KeyFile)
	}

	return nil
}

func (c *Config) validateTLSClientAuth() error {
	validModes := map[string]bool{
		tlsClientAuthNone:             true,
		tlsClientAuthRequest:          true,
		tlsClientAuthRequire:          true,
		tlsClientAuthVerify:           true,
		tlsClientAuthRequireAndVerify: true,
	}

	if !validModes[c.TLS.ClientAuth] {
		return fmt.Errorf("invalid tls client_auth: %s", c.TLS.ClientAuth)
	}

	if c.TLS.ClientAuth == tlsClientAuthNone {
		return nil
	}

	if c.TLS.CAFile == "" {
		return fmt.Errorf("tls ca_file is required when client authentication is enabled")
	}

	if _, err := os.Stat(c.TLS.CAFile); os.IsNotExist(err) {
		return fmt.Errorf("tls ca_file does not exist: %s", c.TLS.CAFile)
	}

	return nil
}

func (c *Config) validateDrivers() error {
	if c.Drivers.Timeout <= 0 {
		return fmt.Errorf("invalid drivers timeout: %s (must be > 0)", c.Drivers.Timeout)
	}
	if c.Drivers.CacheSize < 1 {
		return fmt.Errorf("invalid drivers cache_size: %d (must be > 0)", c.Drivers.CacheSize)
	}
	if c.Drivers.CacheTTL <= 0 {
		return fmt.Errorf("invalid drivers cache_ttl: %s (must be > 0)", c.Drivers.CacheTTL)
	}
	return nil
}

func (c *Config) validateTokenCache() error {
	if c.TokenCache.Namespace == "" {
		return fmt.Errorf("token_cache namespace cannot be empty")
	}
	if c.TokenCache.Skew < 0 {
		return fmt.Errorf("invalid token_cache skew: %s", c.TokenCache.Skew)
	}
	if c.Notifications.LastSeenPrefix != "" && c.Notifications.LastSeenPrefix == c.TokenCache.Namespace {
		return fmt.Errorf("notifications last_seen_prefix must differ from token_cache namespace")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	n := c.Notifications
	if !n.Enabled {
		return nil
	}

	if n.PollInterval < time.Second {
		return fmt.Errorf("invalid notifications poll_interval: %s (must be >= 1s)", n.PollInterval)
	}
	if n.PollTimeout <= 0 {
		return fmt.Errorf("invalid notifications poll_timeout: %s (must be > 0)", n.PollTimeout)
	}
	if n.Concurrency < 1 {
		return fmt.Errorf("invalid notifications concurrency: %d (must be > 0)", n.Concurrency)
	}
	if n.LastSeenTTL < n.PollInterval {
		return fmt.Errorf("notifications last_seen_ttl %s must be at least poll_interval %s", n.LastSeenTTL, n.PollInterval)
	}
	if n.CallbackTimeout <= 0 {
		return fmt.Errorf("invalid notifications callback_timeout: %s (must be > 0)", n.CallbackTimeout)
	}
	if n.BreakerFailures < 1 {
		return fmt.Errorf("invalid notifications breaker_failures: %d (must be > 0)", n.BreakerFailures)
	}
	if n.BreakerCacheSize < 1 {
		return fmt.Errorf("invalid notifications breaker_cache_size: %d (must be > 0)", n.BreakerCacheSize)
	}
	if n.BreakerIdleTTL <= n.BreakerTimeout {
		return fmt.Errorf("notifications breaker_idle_ttl %s must exceed breaker_timeout %s", n.BreakerIdleTTL, n.BreakerTimeout)
	}
	if n.Workers < 1 {
		return fmt.Errorf("invalid notifications workers: %d (must be > 0)", n.Workers)
	}
	for _, t := range n.PollableTypes {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("notifications pollable_types cannot contain empty entries")
		}
	}
	return nil
}

func (c *Config) validateRepository() error {
	switch c.Repository.Type {
	case RepositoryRedis:
		return nil
	case RepositoryIWF:
		if c.Repository.IWF.URL == "" {
			return fmt.Errorf("repository iwf url is required when type is iwf")
		}
		if len(c.Orchestrators) > 0 {
			return fmt.Errorf("orchestrators can only be seeded into the redis repository")
		}
		if c.Repository.IWF.VimSyncInterval < 0 {
			return fmt.Errorf("invalid repository iwf vim_sync_interval: %s (must be >= 0)", c.Repository.IWF.VimSyncInterval)
		}
		return nil
	default:
		return fmt.Errorf("invalid repository type: %s (must be redis or iwf)", c.Repository.Type)
	}
}

func (c *Config) validateObservability() error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Observability.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", c.Observability.Logging.Level)
	}

	if c.Observability.Logging.Format != "json" && c.Observability.Logging.Format != "console" {
		return fmt.Errorf("invalid logging format: %s (must be json or console)", c.Observability.Logging.Format)
	}

	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Path == "" {
		return fmt.Errorf("metrics path cannot be empty when metrics are enabled")
	}

	return nil
}

func (c *Config) validateSecurity() error {
	if !c.Security.RateLimitEnabled {
		return nil
	}

	if c.Security.RateLimitRequests < 1 {
		return fmt.Errorf("invalid rate_limit_requests: %d (must be > 0)", c.Security.RateLimitRequests)
	}
	if c.Security.RateLimitBurst < c.Security.RateLimitRequests {
		return fmt.Errorf("rate_limit_burst %d must be at least rate_limit_requests %d",
			c.Security.RateLimitBurst, c.Security.RateLimitRequests)
	}
	if c.Security.OrchestratorRequests < 0 {
		return fmt.Errorf("invalid orchestrator_requests: %d", c.Security.OrchestratorRequests)
	}

	return nil
}
