package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/lcmerr"
	"github.com/piwi3910/msolo/internal/models"
)

// Default driver cache sizing.
const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 10 * time.Minute
)

// OrchestratorSource is the part of the repository the Manager needs.
type OrchestratorSource interface {
	GetOrchestrator(ctx context.Context, orchType models.OrchestratorType, id string) (*models.Orchestrator, error)
	GetCredentials(ctx context.Context, orchType models.OrchestratorType, id string) (*models.Credentials, error)
	ListOrchestrators(ctx context.Context, orchType models.OrchestratorType) ([]*models.Orchestrator, error)
}

// Cache holds constructed drivers keyed by "{type}/{id}".
type Cache interface {
	Get(key string) (Driver, bool)
	Add(key string, value Driver) bool
	Remove(key string) bool
}

// NewCache returns an expiring LRU driver cache. Entries expire after ttl so
// that credential changes in the repository are eventually picked up.
func NewCache(size int, ttl time.Duration) Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return expirable.NewLRU[string, Driver](size, nil, ttl)
}

// Manager resolves orchestrator ids to driver instances.
//
// Example:
//
//	mgr, err := driver.NewManager(repo, drivers.Builtin(), driver.NewCache(0, 0), deps)
//	if err != nil {
//	    return err
//	}
//	drv, err := mgr.Resolve(ctx, models.NFVO, "osm-lab")
type Manager struct {
	source OrchestratorSource
	table  Table
	cache  Cache
	deps   Dependencies
	logger *zap.Logger
}

// NewManager validates the table and creates a Manager. A nil cache
// disables caching.
func NewManager(source OrchestratorSource, table Table, cache Cache, deps Dependencies) (*Manager, error) {
	if source == nil {
		return nil, fmt.Errorf("orchestrator source cannot be nil")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	return &Manager{
		source: source,
		table:  table,
		cache:  cache,
		deps:   deps,
		logger: deps.Logger.With(zap.String("component", "driver-manager")),
	}, nil
}

func cacheKey(orchType models.OrchestratorType, id string) string {
	return string(orchType) + "/" + id
}

// Resolve returns the driver of an orchestrator. Unknown orchestrators fail
// with OrchestratorNotFound, orchestrators without credentials with
// CredentialsNotFound and unregistered backend tags with
// ErrUnsupportedBackend.
func (m *Manager) Resolve(ctx context.Context, orchType models.OrchestratorType, id string) (Driver, error) {
	if !orchType.Valid() {
		return nil, lcmerr.BadRequest("unknown orchestrator type %q", orchType)
	}

	key := cacheKey(orchType, id)
	if m.cache != nil {
		if drv, ok := m.cache.Get(key); ok {
			return drv, nil
		}
	}

	orch, err := m.source.GetOrchestrator(ctx, orchType, id)
	if err != nil {
		return nil, lcmerr.Remap(err, lcmerr.OrchestratorNotFound(id))
	}

	creds, err := m.source.GetCredentials(ctx, orchType, id)
	if err != nil {
		return nil, lcmerr.Remap(err, lcmerr.CredentialsNotFound(id))
	}

	factory, ok := m.table.Lookup(orchType, orch.BackendType())
	if !ok {
		m.logger.Error("orchestrator has an unsupported backend type",
			zap.String("orchestrator_type", string(orchType)),
			zap.String("orchestrator_id", id),
			zap.String("backend_type", orch.Type),
		)
		return nil, lcmerr.WithReason(lcmerr.ErrServerError, ErrUnsupportedBackend,
			fmt.Sprintf("Error: %s type %s not supported.", orchType, orch.Type))
	}

	drv, err := factory(Target{Type: orchType, Orchestrator: *orch, Credentials: *creds}, m.deps)
	if err != nil {
		return nil, lcmerr.ServerError("failed to create %s driver for %s: %v", orch.BackendType(), id, err)
	}

	if m.cache != nil {
		m.cache.Add(key, drv)
	}
	m.logger.Debug("driver created",
		zap.String("orchestrator_type", string(orchType)),
		zap.String("orchestrator_id", id),
		zap.String("backend_type", orch.BackendType()),
	)

	return drv, nil
}

// Forget drops the cached driver of an orchestrator.
func (m *Manager) Forget(orchType models.OrchestratorType, id string) {
	if m.cache != nil {
		m.cache.Remove(cacheKey(orchType, id))
	}
}

// CheckOrchestrators verifies at startup that every registered
// orchestrator uses a backend tag the table knows.
func (m *Manager) CheckOrchestrators(ctx context.Context) error {
	var errs []error
	for orchType := range m.table {
		orchs, err := m.source.ListOrchestrators(ctx, orchType)
		if err != nil {
			if errors.Is(err, lcmerr.ErrNotImplemented) {
				continue
			}
			return fmt.Errorf("failed to list %s orchestrators: %w", orchType, err)
		}
		for _, o := range orchs {
			if _, ok := m.table.Lookup(orchType, o.BackendType()); !ok {
				errs = append(errs, fmt.Errorf("%w: %s orchestrator %s has type %q (known: %v)",
					ErrUnsupportedBackend, orchType, o.ID, o.Type, m.table.Tags(orchType)))
			}
		}
	}
	return errors.Join(errs...)
}
