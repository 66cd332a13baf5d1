package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/driver"
	"github.com/piwi3910/msolo/internal/lcmerr"
	"github.com/piwi3910/msolo/internal/models"
	"github.com/piwi3910/msolo/internal/repository"
)

// VimSyncer copies orchestrator VIM accounts into the repository.
type VimSyncer interface {
	SyncVimAccounts(ctx context.Context, list repository.VimLister) (repository.VimSyncReport, error)
}

// DriverResolver resolves an orchestrator to its driver.
type DriverResolver interface {
	Resolve(ctx context.Context, orchType models.OrchestratorType, id string) (driver.Driver, error)
}

// VimSync keeps the repository's VIM accounts in line with what the NFVOs
// report.
type VimSync struct {
	syncer   VimSyncer
	resolver DriverResolver
	interval time.Duration
	logger   *zap.Logger
}

// NewVimSync creates a VimSync. A zero interval makes Run sync once.
func NewVimSync(syncer VimSyncer, resolver DriverResolver, interval time.Duration, logger *zap.Logger) (*VimSync, error) {
	if syncer == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if interval < 0 {
		return nil, fmt.Errorf("interval cannot be negative")
	}
	return &VimSync{
		syncer:   syncer,
		resolver: resolver,
		interval: interval,
		logger:   logger.With(zap.String("component", "vim-sync")),
	}, nil
}

// Run syncs immediately and then every interval until ctx ends.
func (s *VimSync) Run(ctx context.Context) error {
	s.RunOnce(ctx)
	if s.interval == 0 {
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("vim sync stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sync pass. Failures are logged.
func (s *VimSync) RunOnce(ctx context.Context) {
	report, err := s.syncer.SyncVimAccounts(ctx, s.listVims)
	if err != nil {
		VimSyncRunsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("vim account sync failed", zap.Error(err))
		return
	}
	VimSyncRunsTotal.WithLabelValues("success").Inc()
	VimAccountsRegisteredTotal.Add(float64(report.Created))
	s.logger.Info("vim account sync completed",
		zap.Int("orchestrators", report.Orchestrators),
		zap.Int("created", report.Created),
		zap.Int("existing", report.Existing),
		zap.Int("failed", report.Failed),
	)
}

func (s *VimSync) listVims(ctx context.Context, orchestratorID string) ([]models.VimAccount, error) {
	drv, err := s.resolver.Resolve(ctx, models.NFVO, orchestratorID)
	if err != nil {
		return nil, err
	}
	lister, ok := drv.(driver.VimLister)
	if !ok {
		return nil, lcmerr.ServerError("orchestrator %s does not expose VIM accounts", orchestratorID)
	}
	return lister.ListVims(ctx)
}
