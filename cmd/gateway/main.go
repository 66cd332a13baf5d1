// Package main is the entry point of the msolo gateway. It serves a
// uniform NS lifecycle interface in front of heterogeneous orchestrators
// (OSM, ONAP, EVER, 5GR-SO) and relays operation state changes to
// subscribers.
//
// The application performs the following initialization sequence:
//  1. Load and validate configuration from file and environment variables
//  2. Initialize structured logging with zap
//  3. Connect to Redis (token cache, last-seen cache, notification stream)
//  4. Open the orchestrator repository (redis seeded from config, or IWF)
//  5. Build the driver manager and check every registered orchestrator
//  6. Wire the notification pipeline (reconciler, poller, dispatch workers)
//  7. With the IWF repository, schedule the OSM VIM account sync
//  8. Start the HTTP server, poller and workers with graceful shutdown
//
// Graceful shutdown is triggered by SIGINT (Ctrl+C) or SIGTERM signals.
//
// Example usage:
//
//	# Start with default config search path
//	./gateway
//
//	# Start with custom config file
//	./gateway --config=/etc/msolo/config.yaml
//
//	# Start with environment variable overrides
//	export MSOLO_SERVER_PORT=9090
//	export MSOLO_REPOSITORY_TYPE=iwf
//	export MSOLO_REPOSITORY_IWF_URL=http://iwf-repository:8087
//	./gateway
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/piwi3910/msolo/internal/config"
	"github.com/piwi3910/msolo/internal/driver"
	"github.com/piwi3910/msolo/internal/drivers"
	"github.com/piwi3910/msolo/internal/notifications"
	"github.com/piwi3910/msolo/internal/observability"
	"github.com/piwi3910/msolo/internal/repository"
	"github.com/piwi3910/msolo/internal/server"
	"github.com/piwi3910/msolo/internal/tokencache"
	"github.com/piwi3910/msolo/internal/workers"
)

const (
	// Version is the application version (set via build flags).
	Version = "1.0.0"

	// ServiceName is the name of this service.
	ServiceName = "msolo-gateway"
)

var (
	// Command-line flags.
	configPath  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Show version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		if _, err := fmt.Fprintf(os.Stdout, "%s version %s\n", ServiceName, Version); err != nil {
			panic(err)
		}
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("msolo gateway starting",
		zap.String("version", Version),
		zap.String("service", ServiceName),
		zap.String("repository", cfg.Repository.Type),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close(logger)

	return runComponents(ctx, cfg, logger, components)
}

// applicationComponents holds all initialized application components.
type applicationComponents struct {
	redisClient   redis.UniversalClient
	repository    repository.Repository
	manager       *driver.Manager
	dispatcher    *notifications.Dispatcher
	queue         *workers.NotificationQueue
	poller        *workers.Poller
	vimSync       *workers.VimSync
	worker        *workers.DispatchWorker
	healthChecker *observability.HealthChecker
	server        *server.Server
}

// Close closes all components gracefully.
func (c *applicationComponents) Close(logger *zap.Logger) {
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			logger.Warn("failed to close dispatcher", zap.Error(err))
		}
	}
	if c.repository != nil {
		if err := c.repository.Close(); err != nil {
			logger.Warn("failed to close repository", zap.Error(err))
		}
	}
	if c.redisClient != nil {
		// The redis repository shares the client and may have closed it already.
		if err := c.redisClient.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			logger.Warn("failed to close Redis connection", zap.Error(err))
		}
	}
}

// loadConfiguration loads and validates the application configuration.
func loadConfiguration(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initializeLogger builds the zap logger from the logging section.
func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	logging := cfg.Observability.Logging
	return observability.NewLogger(observability.LoggingOptions{
		Level:            logging.Level,
		Format:           logging.Format,
		OutputPaths:      logging.OutputPaths,
		ErrorOutputPaths: logging.ErrorOutputPaths,
		EnableCaller:     logging.EnableCaller,
		EnableStacktrace: logging.EnableStacktrace,
		Development:      logging.Development,
	})
}

// initializeComponents connects to redis and wires every component. On
// failure the components created so far are closed.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *applicationComponents, err error) {
	c := &applicationComponents{}
	defer func() {
		if err != nil {
			c.Close(logger)
		}
	}()

	c.redisClient, err = initializeRedis(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	c.repository, err = initializeRepository(ctx, cfg, c.redisClient, logger)
	if err != nil {
		return nil, err
	}

	c.manager, err = initializeDriverManager(ctx, cfg, c.redisClient, c.repository, logger)
	if err != nil {
		return nil, err
	}

	if err := initializeNotifications(cfg, c, logger); err != nil {
		return nil, err
	}

	c.vimSync, err = initializeVimSync(cfg, c, logger)
	if err != nil {
		return nil, err
	}

	c.healthChecker = initializeHealthChecker(c.redisClient, c.repository, logger)

	c.server, err = server.New(cfg, logger, &server.Dependencies{
		Drivers:       c.manager,
		Repository:    c.repository,
		Notifications: c.queue,
		HealthChecker: c.healthChecker,
		RedisClient:   c.redisClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP server: %w", err)
	}
	logger.Info("HTTP server created",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("mode", cfg.Server.GinMode),
	)

	return c, nil
}

// initializeRedis creates the redis client and verifies connectivity.
func initializeRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (redis.UniversalClient, error) {
	client := repository.NewRedisClient(cfg.Redis.ClientConfig())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established",
		zap.String("mode", cfg.Redis.Mode),
		zap.Strings("addresses", cfg.Redis.Addresses),
	)
	return client, nil
}

// initializeRepository opens the configured orchestrator repository.
func initializeRepository(
	ctx context.Context,
	cfg *config.Config,
	client redis.UniversalClient,
	logger *zap.Logger,
) (repository.Repository, error) {
	switch cfg.Repository.Type {
	case config.RepositoryIWF:
		repo, err := repository.NewIWFClient(cfg.Repository.IWF.ClientConfig(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create IWF repository client: %w", err)
		}
		logger.Info("using IWF repository", zap.String("url", cfg.Repository.IWF.URL))
		return repo, nil

	default:
		repo, err := repository.NewRedisRepository(client, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis repository: %w", err)
		}
		err = repo.SeedOrchestrators(ctx, cfg.Orchestrators)
		observability.Wrap(logger).LogRedisOperation("seed_orchestrators", "msolo:orchestrator:*", err)
		if err != nil {
			return nil, fmt.Errorf("failed to seed orchestrators: %w", err)
		}
		logger.Info("using redis repository", zap.Int("seeded_orchestrators", len(cfg.Orchestrators)))
		return repo, nil
	}
}

// initializeVimSync schedules the OSM VIM account sync when the IWF
// repository is in use and the sync is enabled. It returns nil otherwise.
func initializeVimSync(cfg *config.Config, c *applicationComponents, logger *zap.Logger) (*workers.VimSync, error) {
	iwf, ok := c.repository.(*repository.IWFClient)
	if !ok || !cfg.Repository.IWF.VimSync {
		return nil, nil
	}
	vimSync, err := workers.NewVimSync(iwf, c.manager, cfg.Repository.IWF.VimSyncInterval, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create vim sync: %w", err)
	}
	logger.Info("vim account sync enabled", zap.Duration("interval", cfg.Repository.IWF.VimSyncInterval))
	return vimSync, nil
}

// initializeDriverManager builds the driver manager over the built-in
// backend table and checks the registered orchestrators against it.
func initializeDriverManager(
	ctx context.Context,
	cfg *config.Config,
	client redis.UniversalClient,
	repo repository.Repository,
	logger *zap.Logger,
) (*driver.Manager, error) {
	tokens, err := tokencache.NewRedisCache(client, &tokencache.Config{
		Namespace: cfg.TokenCache.Namespace,
		Skew:      cfg.TokenCache.Skew,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache: %w", err)
	}

	manager, err := driver.NewManager(repo, drivers.Builtin(),
		driver.NewCache(cfg.Drivers.CacheSize, cfg.Drivers.CacheTTL),
		driver.Dependencies{
			Tokens:        tokens,
			Logger:        logger,
			Timeout:       cfg.Drivers.Timeout,
			TLSSkipVerify: cfg.Drivers.TLSSkipVerify,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create driver manager: %w", err)
	}

	if err := manager.CheckOrchestrators(ctx); err != nil {
		return nil, fmt.Errorf("orchestrator registry check failed: %w", err)
	}
	if cfg.Drivers.TLSSkipVerify {
		logger.Warn("TLS verification of backend orchestrators is disabled")
	}

	return manager, nil
}

// initializeNotifications wires the dispatcher, the notification stream
// and, when enabled, the reconciliation poller.
func initializeNotifications(cfg *config.Config, c *applicationComponents, logger *zap.Logger) error {
	n := cfg.Notifications

	dispatcher, err := notifications.NewDispatcher(c.repository, &notifications.DispatcherConfig{
		HTTPTimeout:      n.CallbackTimeout,
		BreakerFailures:  n.BreakerFailures,
		BreakerTimeout:   n.BreakerTimeout,
		BreakerCacheSize: n.BreakerCacheSize,
		BreakerIdleTTL:   n.BreakerIdleTTL,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	c.dispatcher = dispatcher

	c.queue, err = workers.NewNotificationQueue(c.redisClient)
	if err != nil {
		return fmt.Errorf("failed to create notification queue: %w", err)
	}

	c.worker, err = workers.NewDispatchWorker(&workers.Config{
		RedisClient: c.redisClient,
		Dispatcher:  dispatcher,
		Logger:      logger,
		WorkerCount: n.Workers,
	})
	if err != nil {
		return fmt.Errorf("failed to create dispatch worker: %w", err)
	}

	if !n.Enabled {
		logger.Info("operation polling disabled")
		return nil
	}

	lastSeen, err := notifications.NewRedisLastSeen(c.redisClient, n.LastSeenPrefix, n.LastSeenTTL)
	if err != nil {
		return fmt.Errorf("failed to create last-seen cache: %w", err)
	}

	reconciler, err := notifications.NewReconciler(c.repository, c.manager, lastSeen, c.queue,
		&notifications.ReconcilerConfig{
			PollableTypes: n.PollableTypes,
			Concurrency:   n.Concurrency,
			PollTimeout:   n.PollTimeout,
		}, logger)
	if err != nil {
		return fmt.Errorf("failed to create reconciler: %w", err)
	}

	c.poller, err = workers.NewPoller(reconciler, n.PollInterval, logger)
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}

	logger.Info("operation polling enabled",
		zap.Duration("interval", n.PollInterval),
		zap.Strings("pollable_types", n.PollableTypes),
	)
	return nil
}

// initializeHealthChecker registers redis for health and the repository for
// readiness.
func initializeHealthChecker(
	client redis.UniversalClient,
	repo repository.Repository,
	logger *zap.Logger,
) *observability.HealthChecker {
	healthChecker := observability.NewHealthChecker(Version)
	healthChecker.SetTimeout(5 * time.Second)

	redisCheck := observability.RedisHealthCheck(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	healthChecker.RegisterHealthCheck("redis", redisCheck)
	healthChecker.RegisterReadinessCheck("redis", redisCheck)
	healthChecker.RegisterReadinessCheck("repository", observability.RepositoryHealthCheck(repo.Ping))

	logger.Info("health checks registered",
		zap.Int("health_checks", 1),
		zap.Int("readiness_checks", 2),
	)
	return healthChecker
}

// runComponents runs the HTTP server, the poller and the dispatch workers
// until ctx ends or one of them fails, then shuts the server down.
func runComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, c *applicationComponents) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(c.server.Start)

	g.Go(func() error {
		return c.worker.Start(gctx)
	})

	if c.poller != nil {
		g.Go(func() error {
			return c.poller.Run(gctx)
		})
	}

	if c.vimSync != nil {
		g.Go(func() error {
			return c.vimSync.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested")
		return gracefulShutdown(c.server, cfg, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Error("gateway stopped with error", zap.Error(err))
		return err
	}
	logger.Info("gateway stopped")
	return nil
}

// gracefulShutdown stops the HTTP server within the configured timeout.
func gracefulShutdown(srv *server.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("initiating graceful shutdown",
		zap.Duration("timeout", cfg.Server.ShutdownTimeout),
	)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("graceful shutdown completed successfully")
	return nil
}
