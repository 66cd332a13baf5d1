package notifications

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/piwi3910/msolo/internal/driver"
	"github.com/piwi3910/msolo/internal/models"
)

// OrchestratorLister lists the registered orchestrators of a family.
type OrchestratorLister interface {
	ListOrchestrators(ctx context.Context, orchType models.OrchestratorType) ([]*models.Orchestrator, error)
}

// DriverResolver returns the driver of an orchestrator.
type DriverResolver interface {
	Resolve(ctx context.Context, orchType models.OrchestratorType, id string) (driver.Driver, error)
}

// Sink receives the events emitted by a reconciliation pass.
type Sink interface {
	Emit(ctx context.Context, n models.Notification) error
}

// ReconcilerConfig holds configuration for the Reconciler.
type ReconcilerConfig struct {
	// PollableTypes lists the backend tags whose operation lists are
	// polled. Backends that push notifications are left out.
	PollableTypes []string

	// Concurrency bounds the number of orchestrators polled at once.
	Concurrency int

	// PollTimeout bounds the poll of a single orchestrator.
	PollTimeout time.Duration
}

// DefaultReconcilerConfig returns a ReconcilerConfig with sensible defaults.
func DefaultReconcilerConfig() *ReconcilerConfig {
	return &ReconcilerConfig{
		PollableTypes: []string{"osm"},
		Concurrency:   4,
		PollTimeout:   30 * time.Second,
	}
}

// Reconciler detects operation state changes by polling.
type Reconciler struct {
	orchestrators OrchestratorLister
	drivers       DriverResolver
	lastSeen      LastSeenCache
	sink          Sink
	config        ReconcilerConfig
	logger        *zap.Logger
	now           func() time.Time
}

// NewReconciler creates a Reconciler. A nil sink only collects the events
// RunOnce returns.
func NewReconciler(
	orchestrators OrchestratorLister,
	drivers DriverResolver,
	lastSeen LastSeenCache,
	sink Sink,
	config *ReconcilerConfig,
	logger *zap.Logger,
) (*Reconciler, error) {
	if orchestrators == nil {
		return nil, errors.New("orchestrator lister cannot be nil")
	}
	if drivers == nil {
		return nil, errors.New("driver resolver cannot be nil")
	}
	if lastSeen == nil {
		return nil, errors.New("last-seen cache cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if config == nil {
		config = DefaultReconcilerConfig()
	}

	cfg := *config
	cfg.PollableTypes = make([]string, 0, len(config.PollableTypes))
	for _, t := range config.PollableTypes {
		cfg.PollableTypes = append(cfg.PollableTypes, strings.ToLower(strings.TrimSpace(t)))
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	return &Reconciler{
		orchestrators: orchestrators,
		drivers:       drivers,
		lastSeen:      lastSeen,
		sink:          sink,
		config:        cfg,
		logger:        logger.With(zap.String("component", "reconciler")),
		now:           time.Now,
	}, nil
}

type pollTarget struct {
	orchType models.OrchestratorType
	orch     *models.Orchestrator
}

// RunOnce polls every pollable orchestrator once and returns the events
// emitted for operations whose state changed since the last observation.
//
// An orchestrator that cannot be listed, resolved or polled is logged and
// skipped; the others are still polled. Events are also handed to the
// sink; a sink failure is logged and the event is still returned.
func (r *Reconciler) RunOnce(ctx context.Context) []models.Notification {
	start := time.Now()
	reconcilePassesTotal.Inc()
	defer func() { reconcileDuration.Observe(time.Since(start).Seconds()) }()

	var targets []pollTarget
	for _, orchType := range models.OrchestratorTypes {
		orchs, err := r.orchestrators.ListOrchestrators(ctx, orchType)
		if err != nil {
			r.logger.Warn("cannot list orchestrators, skipping family",
				zap.String("type", string(orchType)),
				zap.Error(err),
			)
			continue
		}
		for _, orch := range orchs {
			if slices.Contains(r.config.PollableTypes, orch.BackendType()) {
				targets = append(targets, pollTarget{orchType: orchType, orch: orch})
			}
		}
	}

	results := make([][]models.Notification, len(targets))
	var g errgroup.Group
	g.SetLimit(r.config.Concurrency)
	for i, target := range targets {
		g.Go(func() error {
			results[i] = r.poll(ctx, target)
			return nil
		})
	}
	_ = g.Wait()

	emitted := make([]models.Notification, 0)
	for _, batch := range results {
		emitted = append(emitted, batch...)
	}

	r.logger.Debug("reconciliation pass completed",
		zap.Int("orchestrators", len(targets)),
		zap.Int("emitted", len(emitted)),
		zap.Duration("duration", time.Since(start)),
	)
	return emitted
}

// poll reads the operation list of one orchestrator and emits its changes.
func (r *Reconciler) poll(ctx context.Context, target pollTarget) []models.Notification {
	logger := r.logger.With(
		zap.String("type", string(target.orchType)),
		zap.String("orchestrator_id", target.orch.ID),
	)
	backendType := target.orch.BackendType()

	if r.config.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.PollTimeout)
		defer cancel()
	}

	drv, err := r.drivers.Resolve(ctx, target.orchType, target.orch.ID)
	if err != nil {
		RecordPoll(string(target.orchType), backendType, "error")
		logger.Warn("cannot resolve driver, skipping orchestrator", zap.Error(err))
		return nil
	}

	body, _, err := drv.GetOpList(ctx, driver.Args{})
	if err != nil {
		RecordPoll(string(target.orchType), backendType, "error")
		logger.Warn("cannot retrieve operations, skipping orchestrator", zap.Error(err))
		return nil
	}

	ops, err := models.DecodeOpOccs(body)
	if err != nil {
		RecordPoll(string(target.orchType), backendType, "error")
		logger.Warn("unreadable operation list, skipping orchestrator", zap.Error(err))
		return nil
	}
	RecordPoll(string(target.orchType), backendType, "success")

	var emitted []models.Notification
	for _, op := range ops {
		if op.ID == "" {
			continue
		}
		changed, err := r.lastSeen.Observe(ctx, op.ID, string(op.OperationState))
		if err != nil {
			logger.Warn("cannot record operation state",
				zap.String("ns_lcm_op_occ_id", op.ID),
				zap.Error(err),
			)
			continue
		}
		if !changed {
			continue
		}

		n := models.Notification{
			NsInstanceID:     op.NsInstanceID,
			NsLcmOpOccID:     op.ID,
			Operation:        op.LcmOperationType,
			NotificationType: models.NsLcmOperationOccurrenceNotification,
			Timestamp:        r.now().UTC().Format(time.RFC3339),
			OperationState:   string(op.OperationState),
		}
		RecordEmitted(n.OperationState)
		logger.Info("operation state changed",
			zap.String("ns_instance_id", n.NsInstanceID),
			zap.String("ns_lcm_op_occ_id", n.NsLcmOpOccID),
			zap.String("operation_state", n.OperationState),
		)

		if r.sink != nil {
			if err := r.sink.Emit(ctx, n); err != nil {
				logger.Warn("cannot hand notification to sink",
					zap.String("ns_lcm_op_occ_id", n.NsLcmOpOccID),
					zap.Error(err),
				)
			}
		}
		emitted = append(emitted, n)
	}
	return emitted
}
