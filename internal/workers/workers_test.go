package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/piwi3910/msolo/internal/models"
	"github.com/piwi3910/msolo/internal/notifications"
)

type stubDispatcher struct {
	mu       sync.Mutex
	received []models.Notification
	err      error
}

func (d *stubDispatcher) Dispatch(_ context.Context, n models.Notification) (notifications.DeliveryReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.received = append(d.received, n)
	return notifications.DeliveryReport{NotificationID: "n1", Matched: 1, Delivered: 1}, d.err
}

func (d *stubDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.received)
}

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func notification() models.Notification {
	return models.Notification{
		NsInstanceID:     "ns1",
		NsLcmOpOccID:     "op1",
		Operation:        "INSTANTIATE",
		NotificationType: models.NsLcmOperationOccurrenceNotification,
		OperationState:   "COMPLETED",
	}
}

func newWorker(t *testing.T, rdb *redis.Client, d Dispatcher) *DispatchWorker {
	t.Helper()
	w, err := NewDispatchWorker(&Config{
		RedisClient: rdb,
		Dispatcher:  d,
		Logger:      zaptest.NewLogger(t),
		WorkerCount: 1,
		Block:       50 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, w.CreateConsumerGroup(context.Background()))
	return w
}

func TestNewDispatchWorker(t *testing.T) {
	logger := zaptest.NewLogger(t)
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{name: "nil config", cfg: nil, wantErr: "config cannot be nil"},
		{name: "nil redis client", cfg: &Config{Dispatcher: &stubDispatcher{}, Logger: logger}, wantErr: "redis client cannot be nil"},
		{name: "nil dispatcher", cfg: &Config{RedisClient: &redis.Client{}, Logger: logger}, wantErr: "dispatcher cannot be nil"},
		{name: "nil logger", cfg: &Config{RedisClient: &redis.Client{}, Dispatcher: &stubDispatcher{}}, wantErr: "logger cannot be nil"},
		{name: "defaults", cfg: &Config{RedisClient: &redis.Client{}, Dispatcher: &stubDispatcher{}, Logger: logger}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewDispatchWorker(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultWorkerCount, w.WorkerCount)
			assert.Equal(t, DefaultBlock, w.block)
		})
	}
}

func TestNotificationQueueEnqueue(t *testing.T) {
	rdb, _ := setupRedis(t)
	q, err := NewNotificationQueue(rdb)
	require.NoError(t, err)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, notification())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, q.Emit(ctx, notification()))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = NewNotificationQueue(nil)
	assert.Error(t, err)
}

func TestCreateConsumerGroupIsIdempotent(t *testing.T) {
	rdb, _ := setupRedis(t)
	w := newWorker(t, rdb, &stubDispatcher{})
	assert.NoError(t, w.CreateConsumerGroup(context.Background()))
}

func TestProcessNextDispatchesQueuedNotification(t *testing.T) {
	rdb, _ := setupRedis(t)
	d := &stubDispatcher{}
	w := newWorker(t, rdb, d)
	q, err := NewNotificationQueue(rdb)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = q.Enqueue(ctx, notification())
	require.NoError(t, err)

	require.NoError(t, w.ProcessNext(ctx, "worker-0"))
	require.Equal(t, 1, d.count())
	assert.Equal(t, notification(), d.received[0])

	pending, err := rdb.XPending(ctx, StreamKey, ConsumerGroup).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count, "message is acknowledged")

	require.NoError(t, w.ProcessNext(ctx, "worker-0"), "empty stream is not an error")
	assert.Equal(t, 1, d.count())
}

func TestHandleMessageDropsInvalidMessages(t *testing.T) {
	rdb, _ := setupRedis(t)
	d := &stubDispatcher{}
	w := newWorker(t, rdb, d)
	ctx := context.Background()

	for _, values := range []map[string]interface{}{
		{"other": "x"},
		{fieldNotification: "{not json"},
		{fieldNotification: `{"operation":"INSTANTIATE"}`},
	} {
		_, err := rdb.XAdd(ctx, &redis.XAddArgs{Stream: StreamKey, Values: values}).Result()
		require.NoError(t, err)
		require.NoError(t, w.ProcessNext(ctx, "worker-0"))
	}

	assert.Zero(t, d.count())
	pending, err := rdb.XPending(ctx, StreamKey, ConsumerGroup).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestHandleMessageMovesLookupFailuresToDLQ(t *testing.T) {
	rdb, _ := setupRedis(t)
	d := &stubDispatcher{err: errors.New("repository down")}
	w := newWorker(t, rdb, d)
	q, err := NewNotificationQueue(rdb)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = q.Enqueue(ctx, notification())
	require.NoError(t, err)
	require.NoError(t, w.ProcessNext(ctx, "worker-0"))

	streams, err := rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{DLQStreamKey, "0"},
		Count:   1,
	}).Result()
	require.NoError(t, err)
	require.Len(t, streams, 1)
	require.Len(t, streams[0].Messages, 1)

	msg := streams[0].Messages[0]
	assert.NotEmpty(t, msg.Values[fieldNotification])
	assert.NotEmpty(t, msg.Values["original_id"])
	assert.Equal(t, "repository down", msg.Values["error"])
	assert.NotEmpty(t, msg.Values["failed_at"])

	pending, err := rdb.XPending(ctx, StreamKey, ConsumerGroup).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count, "failed notifications are not redelivered")
}

func TestDispatchWorkerStartStop(t *testing.T) {
	rdb, _ := setupRedis(t)
	d := &stubDispatcher{}
	w := newWorker(t, rdb, d)
	q, err := NewNotificationQueue(rdb)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	_, err = q.Enqueue(context.Background(), notification())
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return d.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

type countingReconciler struct {
	runs int32
}

func (r *countingReconciler) RunOnce(context.Context) []models.Notification {
	atomic.AddInt32(&r.runs, 1)
	return []models.Notification{notification()}
}

func TestNewPoller(t *testing.T) {
	_, err := NewPoller(nil, time.Second, zaptest.NewLogger(t))
	assert.Error(t, err)
	_, err = NewPoller(&countingReconciler{}, time.Second, nil)
	assert.Error(t, err)

	p, err := NewPoller(&countingReconciler{}, 0, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, DefaultPollInterval, p.interval)
}

func TestPollerRunsUntilCanceled(t *testing.T) {
	r := &countingReconciler{}
	p, err := NewPoller(r, 10*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&r.runs) >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPollerRunsImmediately(t *testing.T) {
	r := &countingReconciler{}
	p, err := NewPoller(r, time.Hour, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&r.runs) == 1 }, time.Second, 5*time.Millisecond)
}
