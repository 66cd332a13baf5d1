package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/models"
)

// DefaultPollInterval is the reconciliation period when none is configured.
const DefaultPollInterval = 30 * time.Second

// Reconciler runs one reconciliation pass.
type Reconciler interface {
	RunOnce(ctx context.Context) []models.Notification
}

// Poller runs reconciliation passes on a fixed interval.
type Poller struct {
	reconciler Reconciler
	interval   time.Duration
	logger     *zap.Logger
}

// NewPoller creates a Poller. A non-positive interval selects
// DefaultPollInterval.
func NewPoller(reconciler Reconciler, interval time.Duration, logger *zap.Logger) (*Poller, error) {
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{reconciler: reconciler, interval: interval, logger: logger}, nil
}

// Run performs a pass immediately and then every interval until ctx ends.
// Passes never overlap.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("starting poller", zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.runOnce(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	PollerRunsTotal.Inc()
	events := p.reconciler.RunOnce(ctx)
	if len(events) > 0 {
		p.logger.Info("reconciliation pass emitted notifications", zap.Int("count", len(events)))
	}
}
