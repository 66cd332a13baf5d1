package observability

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy HealthStatus = "healthy"
	// StatusUnhealthy indicates the component is unhealthy.
	StatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a health check function.
type HealthCheck func(ctx context.Context) error

// ComponentHealth represents the health status of a single component.
type ComponentHealth struct {
	Status  HealthStatus `json:"status"`
	Error   string       `json:"error,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthResponse represents the overall health check response.
type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ReadinessResponse represents the readiness check response.
type ReadinessResponse struct {
	Ready      bool                       `json:"ready"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// HealthChecker manages health and readiness checks. Health covers the
// process and its local state store; readiness adds the collaborators a
// request needs (the orchestrator repository).
type HealthChecker struct {
	mu              sync.RWMutex
	healthChecks    map[string]HealthCheck
	readinessChecks map[string]HealthCheck
	version         string
	timeout         time.Duration
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		healthChecks:    make(map[string]HealthCheck),
		readinessChecks: make(map[string]HealthCheck),
		version:         version,
		timeout:         5 * time.Second,
	}
}

// RegisterHealthCheck registers a health check for a component.
func (hc *HealthChecker) RegisterHealthCheck(name string, check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.healthChecks[name] = check
}

// RegisterReadinessCheck registers a readiness check for a component.
func (hc *HealthChecker) RegisterReadinessCheck(name string, check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.readinessChecks[name] = check
}

// SetTimeout sets the timeout for one round of checks.
func (hc *HealthChecker) SetTimeout(timeout time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.timeout = timeout
}

func (hc *HealthChecker) snapshot(src map[string]HealthCheck) (map[string]HealthCheck, time.Duration) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	checks := make(map[string]HealthCheck, len(src))
	for name, check := range src {
		checks[name] = check
	}
	return checks, hc.timeout
}

// CheckHealth performs all health checks and returns the health status.
func (hc *HealthChecker) CheckHealth(ctx context.Context) *HealthResponse {
	checks, timeout := hc.snapshot(hc.healthChecks)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	components := executeChecks(ctx, checks)

	status := StatusHealthy
	for _, component := range components {
		if component.Status == StatusUnhealthy {
			status = StatusUnhealthy
			break
		}
	}

	return &HealthResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Version:    hc.version,
		Components: components,
	}
}

// CheckReadiness performs all readiness checks; every component must pass.
func (hc *HealthChecker) CheckReadiness(ctx context.Context) *ReadinessResponse {
	checks, timeout := hc.snapshot(hc.readinessChecks)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	components := executeChecks(ctx, checks)

	ready := true
	for _, component := range components {
		if component.Status != StatusHealthy {
			ready = false
			break
		}
	}

	return &ReadinessResponse{
		Ready:      ready,
		Timestamp:  time.Now(),
		Components: components,
	}
}

// executeChecks runs checks concurrently.
func executeChecks(ctx context.Context, checks map[string]HealthCheck) map[string]ComponentHealth {
	components := make(map[string]ComponentHealth, len(checks))
	if len(checks) == 0 {
		return components
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check HealthCheck) {
			defer wg.Done()

			start := time.Now()
			err := check(ctx)
			health := ComponentHealth{Status: StatusHealthy, Latency: time.Since(start).String()}
			if err != nil {
				health.Status = StatusUnhealthy
				health.Error = err.Error()
				if ctx.Err() != nil {
					health.Error = "check timed out"
				}
			}

			mu.Lock()
			components[name] = health
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	return components
}

// HealthHandler returns a gin handler for the health endpoint.
func (hc *HealthChecker) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		health := hc.CheckHealth(c.Request.Context())
		status := http.StatusOK
		if health.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, health)
	}
}

// ReadinessHandler returns a gin handler for the readiness endpoint.
func (hc *HealthChecker) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		readiness := hc.CheckReadiness(c.Request.Context())
		status := http.StatusOK
		if !readiness.Ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, readiness)
	}
}

// RedisHealthCheck creates a health check for Redis.
func RedisHealthCheck(pingFunc func(ctx context.Context) error) HealthCheck {
	return namedCheck("redis", pingFunc)
}

// RepositoryHealthCheck creates a health check for the orchestrator repository.
func RepositoryHealthCheck(pingFunc func(ctx context.Context) error) HealthCheck {
	return namedCheck("repository", pingFunc)
}

func namedCheck(name string, fn func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) error {
		if fn == nil {
			return fmt.Errorf("%s ping function not provided", name)
		}
		return fn(ctx)
	}
}
