package workers

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/piwi3910/msolo/internal/models"
)

const (
	// StreamKey is the Redis Stream carrying notifications to dispatch.
	StreamKey = "msolo:notifications"

	// DLQStreamKey is the Redis Stream key for dead letter queue.
	DLQStreamKey = "msolo:notifications:dlq"

	// ConsumerGroup is the consumer group name for dispatch workers.
	ConsumerGroup = "dispatch-workers"

	// DefaultStreamMaxLen caps the approximate stream length.
	DefaultStreamMaxLen = 10000

	fieldNotification = "notification"
)

// NotificationQueue appends notifications to the stream consumed by the
// DispatchWorker. It is the on-demand entry point for pushed notifications
// and the sink of scheduled reconciliation passes.
type NotificationQueue struct {
	client redis.UniversalClient
	maxLen int64
}

// NewNotificationQueue creates a NotificationQueue.
func NewNotificationQueue(client redis.UniversalClient) (*NotificationQueue, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	return &NotificationQueue{client: client, maxLen: DefaultStreamMaxLen}, nil
}

// Enqueue appends n to the stream and returns the message id.
func (q *NotificationQueue) Enqueue(ctx context.Context, n models.Notification) (string, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("failed to marshal notification: %w", err)
	}

	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]interface{}{fieldNotification: string(data)},
	}).Result()
	if err != nil {
		NotificationsQueuedTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("failed to enqueue notification: %w", err)
	}

	NotificationsQueuedTotal.WithLabelValues("success").Inc()
	return id, nil
}

// Emit enqueues n.
func (q *NotificationQueue) Emit(ctx context.Context, n models.Notification) error {
	_, err := q.Enqueue(ctx, n)
	return err
}

// Len returns the current stream length.
func (q *NotificationQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.XLen(ctx, StreamKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read stream length: %w", err)
	}
	return n, nil
}
