package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/piwi3910/msolo/internal/driver"
	"github.com/piwi3910/msolo/internal/lcmerr"
	"github.com/piwi3910/msolo/internal/models"
)

type stubLister struct {
	orchestrators map[models.OrchestratorType][]*models.Orchestrator
	err           map[models.OrchestratorType]error
}

func (s *stubLister) ListOrchestrators(_ context.Context, t models.OrchestratorType) ([]*models.Orchestrator, error) {
	if err := s.err[t]; err != nil {
		return nil, err
	}
	return s.orchestrators[t], nil
}

// opDriver serves a mutable operation list.
type opDriver struct {
	driver.Driver

	mu    sync.Mutex
	ops   []models.NsLcmOpOcc
	err   error
	calls int
}

func (d *opDriver) GetOpList(context.Context, driver.Args) (any, driver.Headers, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, nil, d.err
	}
	ops := make([]any, 0, len(d.ops))
	for _, op := range d.ops {
		ops = append(ops, op)
	}
	return ops, driver.Headers{}, nil
}

func (d *opDriver) set(ops ...models.NsLcmOpOcc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = ops
}

type stubResolver struct {
	drivers map[string]*opDriver
}

func (s *stubResolver) Resolve(_ context.Context, _ models.OrchestratorType, id string) (driver.Driver, error) {
	d, ok := s.drivers[id]
	if !ok {
		return nil, lcmerr.OrchestratorNotFound(id)
	}
	return d, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.Notification
	err    error
}

func (s *recordingSink) Emit(_ context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, n)
	return s.err
}

func op(id, ns string, state models.OperationState) models.NsLcmOpOcc {
	return models.NsLcmOpOcc{ID: id, NsInstanceID: ns, OperationState: state, LcmOperationType: "INSTANTIATE"}
}

type fixture struct {
	reconciler *Reconciler
	lister     *stubLister
	resolver   *stubResolver
	sink       *recordingSink
	mr         *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	lastSeen, err := NewRedisLastSeen(client, "", time.Hour)
	require.NoError(t, err)

	f := &fixture{
		lister: &stubLister{orchestrators: map[models.OrchestratorType][]*models.Orchestrator{
			models.NFVO: {
				{ID: "osmA", Type: "OSM"},
				{ID: "osmB", Type: "osm"},
				{ID: "onap1", Type: "onap"},
			},
			models.RANO: {{ID: "ever1", Type: "ever"}},
		}},
		resolver: &stubResolver{drivers: map[string]*opDriver{
			"osmA":  {},
			"osmB":  {},
			"onap1": {},
			"ever1": {},
		}},
		sink: &recordingSink{},
		mr:   mr,
	}

	f.reconciler, err = NewReconciler(f.lister, f.resolver, lastSeen, f.sink, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	f.reconciler.now = func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }
	return f
}

func TestNewReconciler(t *testing.T) {
	logger := zaptest.NewLogger(t)
	lister := &stubLister{}
	resolver := &stubResolver{}
	seen := &RedisLastSeen{}

	_, err := NewReconciler(nil, resolver, seen, nil, nil, logger)
	assert.Error(t, err)
	_, err = NewReconciler(lister, nil, seen, nil, nil, logger)
	assert.Error(t, err)
	_, err = NewReconciler(lister, resolver, nil, nil, nil, logger)
	assert.Error(t, err)
	_, err = NewReconciler(lister, resolver, seen, nil, nil, nil)
	assert.Error(t, err)

	r, err := NewReconciler(lister, resolver, seen, nil, &ReconcilerConfig{PollableTypes: []string{" OSM "}}, logger)
	require.NoError(t, err)
	assert.Equal(t, []string{"osm"}, r.config.PollableTypes)
	assert.Equal(t, 1, r.config.Concurrency)
}

func TestRunOnceEmitsChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.resolver.drivers["osmA"].set(op("op1", "ns1", models.OperationProcessing))

	events := f.reconciler.RunOnce(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, models.Notification{
		NsInstanceID:     "ns1",
		NsLcmOpOccID:     "op1",
		Operation:        "INSTANTIATE",
		NotificationType: models.NsLcmOperationOccurrenceNotification,
		Timestamp:        "2026-05-01T08:00:00Z",
		OperationState:   "PROCESSING",
	}, events[0])
	assert.Equal(t, events, f.sink.events)

	val, err := f.mr.Get("op1")
	require.NoError(t, err)
	assert.Equal(t, "PROCESSING", val)
}

func TestRunOnceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.resolver.drivers["osmA"].set(op("op1", "ns1", models.OperationProcessing))

	total := 0
	for i := 0; i < 5; i++ {
		total += len(f.reconciler.RunOnce(ctx))
	}
	assert.Equal(t, 1, total)
	assert.Len(t, f.sink.events, 1)
}

func TestRunOnceReportsTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	drv := f.resolver.drivers["osmA"]

	drv.set(op("op1", "ns1", models.OperationProcessing))
	first := f.reconciler.RunOnce(ctx)
	require.Len(t, first, 1)
	assert.Equal(t, "PROCESSING", first[0].OperationState)

	drv.set(op("op1", "ns1", models.OperationCompleted))
	second := f.reconciler.RunOnce(ctx)
	require.Len(t, second, 1)
	assert.Equal(t, "COMPLETED", second[0].OperationState)

	assert.Empty(t, f.reconciler.RunOnce(ctx))
}

func TestRunOnceSkipsIntermediateStates(t *testing.T) {
	f := newFixture(t)
	f.resolver.drivers["osmA"].set(op("op1", "ns1", models.OperationCompleted))

	events := f.reconciler.RunOnce(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, "COMPLETED", events[0].OperationState)
}

func TestRunOnceIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	f.resolver.drivers["osmA"].err = lcmerr.ServerError("backend unreachable")
	f.resolver.drivers["osmB"].set(op("op2", "ns2", models.OperationFailed))

	events := f.reconciler.RunOnce(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, "op2", events[0].NsLcmOpOccID)
	assert.Equal(t, 1, f.resolver.drivers["osmA"].calls)
}

func TestRunOnceOnlyPollsPollableBackends(t *testing.T) {
	f := newFixture(t)
	f.resolver.drivers["onap1"].set(op("op3", "ns3", models.OperationCompleted))
	f.resolver.drivers["ever1"].set(op("op4", "ns4", models.OperationCompleted))

	assert.Empty(t, f.reconciler.RunOnce(context.Background()))
	assert.Zero(t, f.resolver.drivers["onap1"].calls)
	assert.Zero(t, f.resolver.drivers["ever1"].calls)
	assert.Equal(t, 1, f.resolver.drivers["osmA"].calls)
	assert.Equal(t, 1, f.resolver.drivers["osmB"].calls)
}

func TestRunOnceSurvivesListAndResolveErrors(t *testing.T) {
	f := newFixture(t)
	f.lister.err = map[models.OrchestratorType]error{models.RANO: errors.New("redis down")}
	delete(f.resolver.drivers, "osmA")
	f.resolver.drivers["osmB"].set(op("op5", "ns5", models.OperationProcessing))

	events := f.reconciler.RunOnce(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, "op5", events[0].NsLcmOpOccID)
}

func TestRunOnceKeepsEventsWhenSinkFails(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("queue full")
	f.resolver.drivers["osmA"].set(op("op1", "ns1", models.OperationProcessing))

	assert.Len(t, f.reconciler.RunOnce(context.Background()), 1)
}

func TestRunOnceSkipsOperationsWhenCacheFails(t *testing.T) {
	f := newFixture(t)
	f.resolver.drivers["osmA"].set(op("op1", "ns1", models.OperationProcessing))
	f.mr.SetError("READONLY")

	assert.Empty(t, f.reconciler.RunOnce(context.Background()))
	assert.Empty(t, f.sink.events)
}
