// Package server provides the HTTP northbound interface of the msolo gateway.
// It includes Gin-based routing, middleware setup and graceful shutdown
// handling. Handlers resolve the driver of the addressed orchestrator and
// translate taxonomy errors to HTTP statuses.
package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/config"
	"github.com/piwi3910/msolo/internal/driver"
	"github.com/piwi3910/msolo/internal/middleware"
	"github.com/piwi3910/msolo/internal/models"
	"github.com/piwi3910/msolo/internal/observability"
	"github.com/piwi3910/msolo/internal/repository"
)

// HeaderRequestID carries the request identifier in both directions.
const HeaderRequestID = "X-Request-ID"

// DriverResolver resolves an orchestrator to its driver.
type DriverResolver interface {
	Resolve(ctx context.Context, orchType models.OrchestratorType, id string) (driver.Driver, error)
}

// NotificationQueue accepts pushed notifications for asynchronous dispatch.
type NotificationQueue interface {
	Enqueue(ctx context.Context, n models.Notification) (string, error)
}

// Dependencies are the collaborators the server routes requests to.
type Dependencies struct {
	Drivers       DriverResolver
	Repository    repository.Repository
	Notifications NotificationQueue
	HealthChecker *observability.HealthChecker

	// RedisClient backs the rate limiter. It is only required when rate
	// limiting is enabled.
	RedisClient redis.UniversalClient
}

// Server represents the HTTP server of the gateway.
//
// The server provides:
//   - the NS lifecycle NBI under /nfvo and /rano
//   - subscriptions and pushed notifications under /nfvo
//   - health check endpoints (/health, /ready)
//   - the Prometheus metrics endpoint
//
// Example:
//
//	srv, err := server.New(cfg, logger, &server.Dependencies{
//	    Drivers:       manager,
//	    Repository:    repo,
//	    Notifications: queue,
//	    HealthChecker: checker,
//	})
//	if err != nil {
//	    return err
//	}
//	go srv.Start()
type Server struct {
	config           *config.Config
	logger           *zap.Logger
	log              *observability.Logger
	router           *gin.Engine
	httpServer       *http.Server
	metrics          *observability.Metrics
	drivers          DriverResolver
	repo             repository.Repository
	queue            NotificationQueue
	healthCheck      *observability.HealthChecker
	openAPIValidator *middleware.OpenAPIValidator
	rateLimiter      *middleware.RateLimiter
	validate         *validator.Validate
	shutdownOnce     sync.Once
}

// New creates a Server, sets up its middleware and registers the routes.
func New(cfg *config.Config, logger *zap.Logger, deps *Dependencies) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if deps == nil || deps.Drivers == nil {
		return nil, errors.New("driver resolver cannot be nil")
	}
	if deps.Repository == nil {
		return nil, errors.New("repository cannot be nil")
	}
	if deps.Notifications == nil {
		return nil, errors.New("notification queue cannot be nil")
	}

	gin.SetMode(cfg.Server.GinMode)

	healthCheck := deps.HealthChecker
	if healthCheck == nil {
		healthCheck = observability.NewHealthChecker("")
		healthCheck.RegisterReadinessCheck("repository", observability.RepositoryHealthCheck(deps.Repository.Ping))
	}

	srv := &Server{
		config:      cfg,
		logger:      logger,
		log:         observability.Wrap(logger).WithComponent("nbi"),
		router:      gin.New(),
		drivers:     deps.Drivers,
		repo:        deps.Repository,
		queue:       deps.Notifications,
		healthCheck: healthCheck,
		validate:    newValidator(),
	}

	if cfg.Observability.Metrics.Enabled {
		srv.metrics = observability.InitMetrics("msolo")
	}

	if cfg.Validation.Enabled {
		v, err := initOpenAPIValidator(cfg, logger)
		if err != nil {
			return nil, err
		}
		srv.openAPIValidator = v
	}

	if cfg.Security.RateLimitEnabled {
		rl, err := middleware.NewRateLimiter(&middleware.RateLimitConfig{
			Enabled: true,
			PerClient: middleware.BucketConfig{
				RequestsPerSecond: cfg.Security.RateLimitRequests,
				BurstSize:         cfg.Security.RateLimitBurst,
			},
			PerOrchestrator: middleware.BucketConfig{
				RequestsPerSecond: cfg.Security.OrchestratorRequests,
			},
			RedisClient: deps.RedisClient,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		srv.rateLimiter = rl
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	srv.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        srv.router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return srv, nil
}

// initOpenAPIValidator initializes the OpenAPI validator with the embedded
// NBI document, or the file named in the configuration.
func initOpenAPIValidator(cfg *config.Config, logger *zap.Logger) (*middleware.OpenAPIValidator, error) {
	validationCfg := middleware.DefaultValidationConfig()
	validationCfg.Logger = logger
	validationCfg.ExcludePaths = append(validationCfg.ExcludePaths, cfg.Observability.Metrics.Path)

	oav, err := middleware.NewOpenAPIValidator(validationCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAPI validator: %w", err)
	}

	if cfg.Validation.SpecPath != "" {
		if err := oav.LoadSpecFromFile(cfg.Validation.SpecPath); err != nil {
			return nil, fmt.Errorf("failed to load OpenAPI spec from file: %w", err)
		}
		return oav, nil
	}

	if err := oav.LoadEmbeddedSpec(); err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	return oav, nil
}

// setupMiddleware configures middleware for the Gin router.
// Middleware is executed in the order they are added. Rate limiting is
// attached per route group because it needs the route parameters.
func (s *Server) setupMiddleware() {
	// Recovery middleware - must be first to catch panics
	s.router.Use(s.recoveryMiddleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())

	if s.metrics != nil {
		s.router.Use(s.metricsMiddleware())
	}

	s.router.Use(middleware.SecurityHeaders(&middleware.SecurityHeadersConfig{
		Enabled:               true,
		HSTS:                  s.config.Security.HSTS,
		TLSEnabled:            s.config.TLS.Enabled,
		HSTSMaxAge:            31536000,
		HSTSIncludeSubDomains: true,
	}))

	if s.openAPIValidator != nil {
		s.router.Use(s.openAPIValidator.Middleware())
		s.logger.Info("OpenAPI request validation enabled")
	}
}

// Start starts the HTTP server and blocks until the server stops. It
// returns nil once the server was shut down.
func (s *Server) Start() error {
	addr := s.httpServer.Addr
	s.logger.Info("starting HTTP server",
		zap.String("address", addr),
		zap.String("mode", s.config.Server.GinMode),
	)

	var err error
	if s.config.TLS.Enabled {
		tlsConfig, tlsErr := buildTLSConfig(&s.config.TLS)
		if tlsErr != nil {
			return tlsErr
		}
		s.httpServer.TLSConfig = tlsConfig
		s.logger.Info("TLS enabled",
			zap.String("cert_file", s.config.TLS.CertFile),
			zap.String("min_version", s.config.TLS.MinVersion),
			zap.String("client_auth", s.config.TLS.ClientAuth),
		)
		err = s.httpServer.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
	} else {
		err = s.httpServer.ListenAndServe()
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// buildTLSConfig translates the TLS section into a tls.Config.
func buildTLSConfig(cfg *config.TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.MinVersion == "1.3" {
		tlsConfig.MinVersion = tls.VersionTLS13
	}

	switch cfg.ClientAuth {
	case "request":
		tlsConfig.ClientAuth = tls.RequestClientCert
	case "require":
		tlsConfig.ClientAuth = tls.RequireAnyClientCert
	case "verify":
		tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
	case "require-and-verify":
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	default:
		tlsConfig.ClientAuth = tls.NoClientCert
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA file %s", cfg.CAFile)
		}
		tlsConfig.ClientCAs = pool
	}

	return tlsConfig, nil
}

// Shutdown gracefully shuts down the HTTP server using the configured
// shutdown timeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	return s.ShutdownWithContext(ctx)
}

// ShutdownWithContext waits for active requests to complete or until ctx
// expires. It is safe to call multiple times; only the first call acts.
func (s *Server) ShutdownWithContext(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info("initiating graceful shutdown")

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("error during shutdown", zap.Error(err))
			shutdownErr = fmt.Errorf("server shutdown failed: %w", err)
			return
		}

		s.logger.Info("server shutdown complete")
	})

	return shutdownErr
}

// Router returns the underlying Gin router.
// This is useful for testing and adding custom routes.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// recoveryMiddleware recovers from panics and logs the error.
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("client_ip", c.ClientIP()),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error.",
				})
			}
		}()
		c.Next()
	}
}

// requestIDMiddleware propagates the caller's request id, or assigns one.
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)
		c.Request = c.Request.WithContext(observability.ContextWithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests and responses.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.Int("body_size", c.Writer.Size()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		fields = append(fields, observability.ExtractContextFields(c.Request.Context())...)
		s.logger.Info("HTTP request", fields...)

		for _, e := range c.Errors {
			s.logger.Error("request error", zap.Error(e.Err))
		}
	}
}

// metricsMiddleware collects Prometheus metrics for HTTP requests.
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		s.metrics.HTTPInFlightInc()
		defer s.metrics.HTTPInFlightDec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		s.metrics.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start), c.Writer.Size())
	}
}
