// Package workers provides the background processes of the gateway: the
// poller driving reconciliation passes and the dispatch workers consuming
// the notification stream.
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/models"
	"github.com/piwi3910/msolo/internal/notifications"
)

const (
	// DefaultWorkerCount is the default number of worker goroutines.
	DefaultWorkerCount = 2

	// DefaultBlock is how long a worker waits for new messages.
	DefaultBlock = 5 * time.Second
)

// Dispatcher delivers one notification to its subscribers.
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification) (notifications.DeliveryReport, error)
}

// DispatchWorker consumes the notification stream and dispatches each
// message once. Messages that cannot be decoded are acknowledged and
// dropped; messages whose subscription lookup fails are moved to the dead
// letter stream.
type DispatchWorker struct {
	redisClient redis.UniversalClient
	dispatcher  Dispatcher
	logger      *zap.Logger

	// WorkerCount is the number of worker goroutines.
	WorkerCount int

	block    time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Config holds configuration for creating a DispatchWorker.
type Config struct {
	RedisClient redis.UniversalClient
	Dispatcher  Dispatcher
	Logger      *zap.Logger

	// WorkerCount is the number of worker goroutines (default: 2).
	WorkerCount int

	// Block is the stream read timeout (default: 5s).
	Block time.Duration
}

// NewDispatchWorker creates a new DispatchWorker.
func NewDispatchWorker(cfg *Config) (*DispatchWorker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.RedisClient == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	block := cfg.Block
	if block <= 0 {
		block = DefaultBlock
	}

	return &DispatchWorker{
		redisClient: cfg.RedisClient,
		dispatcher:  cfg.Dispatcher,
		logger:      cfg.Logger.With(zap.String("component", "dispatch-worker")),
		WorkerCount: workerCount,
		block:       block,
		stopCh:      make(chan struct{}),
	}, nil
}

// Start starts the worker goroutines and blocks until ctx ends.
func (w *DispatchWorker) Start(ctx context.Context) error {
	w.logger.Info("starting dispatch worker", zap.Int("worker_count", w.WorkerCount))

	if err := w.CreateConsumerGroup(ctx); err != nil {
		return err
	}

	for i := 0; i < w.WorkerCount; i++ {
		w.wg.Add(1)
		go w.processMessages(ctx, fmt.Sprintf("worker-%d", i))
	}
	ActiveWorkersGauge.Set(float64(w.WorkerCount))

	<-ctx.Done()
	return w.Stop()
}

// Stop signals the workers and waits for them to finish.
func (w *DispatchWorker) Stop() error {
	w.stopOnce.Do(func() {
		w.logger.Info("stopping dispatch worker")
		close(w.stopCh)
	})
	w.wg.Wait()
	ActiveWorkersGauge.Set(0)
	return nil
}

// CreateConsumerGroup creates the consumer group, tolerating an existing one.
func (w *DispatchWorker) CreateConsumerGroup(ctx context.Context) error {
	err := w.redisClient.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			w.logger.Debug("consumer group already exists")
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	w.logger.Info("consumer group created")
	return nil
}

func (w *DispatchWorker) processMessages(ctx context.Context, name string) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
			if err := w.ProcessNext(ctx, name); err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Error("failed to process notification stream",
					zap.String("consumer", name),
					zap.Error(err))
				// Brief sleep to avoid tight loop on persistent errors
				select {
				case <-time.After(time.Second):
				case <-w.stopCh:
					return
				}
			}
		}
	}
}

// ProcessNext reads and handles the next batch of messages for consumer.
func (w *DispatchWorker) ProcessNext(ctx context.Context, consumer string) error {
	streams, err := w.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: consumer,
		Streams:  []string{StreamKey, ">"},
		Count:    1,
		Block:    w.block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			if err := w.HandleMessage(ctx, msg); err != nil {
				w.logger.Error("failed to handle message",
					zap.String("message_id", msg.ID),
					zap.Error(err))
			}
		}
	}
	return nil
}

// HandleMessage dispatches one stream message and acknowledges it.
func (w *DispatchWorker) HandleMessage(ctx context.Context, msg redis.XMessage) error {
	raw, ok := msg.Values[fieldNotification].(string)
	if !ok {
		w.logger.Warn("message without notification dropped", zap.String("message_id", msg.ID))
		NotificationsProcessedTotal.WithLabelValues("invalid").Inc()
		return w.acknowledge(ctx, msg.ID)
	}

	var n models.Notification
	if err := json.Unmarshal([]byte(raw), &n); err != nil || n.NsInstanceID == "" {
		w.logger.Warn("malformed notification dropped",
			zap.String("message_id", msg.ID),
			zap.Error(err))
		NotificationsProcessedTotal.WithLabelValues("invalid").Inc()
		return w.acknowledge(ctx, msg.ID)
	}

	start := time.Now()
	report, err := w.dispatcher.Dispatch(ctx, n)
	DispatchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		NotificationsProcessedTotal.WithLabelValues("failed").Inc()
		if dlqErr := w.MoveToDLQ(ctx, raw, msg.ID, err); dlqErr != nil {
			w.logger.Error("failed to move to DLQ", zap.Error(dlqErr))
		}
	} else {
		NotificationsProcessedTotal.WithLabelValues("success").Inc()
		w.logger.Debug("notification dispatched",
			zap.String("message_id", msg.ID),
			zap.String("notification_id", report.NotificationID),
			zap.Int("delivered", report.Delivered),
			zap.Int("failed", len(report.Failures)))
	}

	return w.acknowledge(ctx, msg.ID)
}

func (w *DispatchWorker) acknowledge(ctx context.Context, messageID string) error {
	if err := w.redisClient.XAck(ctx, StreamKey, ConsumerGroup, messageID).Err(); err != nil {
		return fmt.Errorf("failed to acknowledge message: %w", err)
	}
	return nil
}

// MoveToDLQ records a notification that could not be dispatched.
func (w *DispatchWorker) MoveToDLQ(ctx context.Context, raw, messageID string, cause error) error {
	args := &redis.XAddArgs{
		Stream: DLQStreamKey,
		MaxLen: DefaultStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			fieldNotification: raw,
			"original_id":     messageID,
			"failed_at":       time.Now().UTC().Format(time.RFC3339),
			"error":           cause.Error(),
		},
	}
	if _, err := w.redisClient.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to DLQ: %w", err)
	}

	DeadLetterQueueTotal.Inc()
	w.logger.Info("notification moved to DLQ", zap.String("message_id", messageID))
	return nil
}
