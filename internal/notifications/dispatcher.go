// Package notifications turns backend operation state changes into
// callbacks to subscribers.
//
// The Reconciler polls the operation lists of pollable orchestrators and
// emits one event per observed (operation, state) change; the Dispatcher
// delivers an event to every subscription of its NS instance.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/models"
)

// HeaderNotificationID carries the per-delivery identifier.
const HeaderNotificationID = "X-Notification-Id"

// SubscriptionSearcher finds the subscriptions of an NS instance.
type SubscriptionSearcher interface {
	SearchSubscriptionsByNsInstance(ctx context.Context, nsInstanceID string) ([]*models.Subscription, error)
}

// DispatcherConfig holds configuration for callback delivery.
type DispatcherConfig struct {
	// HTTPTimeout bounds each callback request.
	HTTPTimeout time.Duration

	// BreakerFailures is the number of consecutive failures after which the
	// circuit of a callback opens.
	BreakerFailures uint32

	// BreakerTimeout is how long an open circuit rejects deliveries before
	// letting a probe through.
	BreakerTimeout time.Duration

	// BreakerCacheSize bounds the number of callback breakers kept.
	BreakerCacheSize int

	// BreakerIdleTTL drops the breaker of a callback that saw no delivery
	// for that long. It should exceed BreakerTimeout.
	BreakerIdleTTL time.Duration
}

// DefaultDispatcherConfig returns a DispatcherConfig with sensible defaults.
func DefaultDispatcherConfig() *DispatcherConfig {
	return &DispatcherConfig{
		HTTPTimeout:     10 * time.Second,
		BreakerFailures:  3,
		BreakerTimeout:   30 * time.Second,
		BreakerCacheSize: 1024,
		BreakerIdleTTL:   time.Hour,
	}
}

// DeliveryFailure describes one subscriber that did not receive the event.
type DeliveryFailure struct {
	SubscriptionID string `json:"subscriptionId"`
	CallbackURI    string `json:"callbackUri"`
	Error          string `json:"error"`
}

// DeliveryReport summarizes the dispatch of one event.
type DeliveryReport struct {
	NotificationID string            `json:"notificationId"`
	Matched        int               `json:"matched"`
	Delivered      int               `json:"delivered"`
	Failures       []DeliveryFailure `json:"failures,omitempty"`
}

// Dispatcher posts events to subscriber callbacks. Deliveries are not
// retried; a circuit breaker per callback URI stops hammering consumers
// that keep failing. While a circuit is open the delivery to that callback
// is skipped and reported as a failure.
//
// Breakers live in a bounded LRU and expire after BreakerIdleTTL without
// deliveries, so callbacks of deleted subscriptions do not accumulate.
type Dispatcher struct {
	subs       SubscriptionSearcher
	httpClient *http.Client
	config     DispatcherConfig
	logger     *zap.Logger

	mu       sync.Mutex
	breakers *expirable.LRU[string, *gobreaker.CircuitBreaker]
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(subs SubscriptionSearcher, config *DispatcherConfig, logger *zap.Logger) (*Dispatcher, error) {
	if subs == nil {
		return nil, errors.New("subscription searcher cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if config == nil {
		config = DefaultDispatcherConfig()
	}
	cfg := *config
	defaults := DefaultDispatcherConfig()
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaults.BreakerFailures
	}
	if cfg.BreakerCacheSize <= 0 {
		cfg.BreakerCacheSize = defaults.BreakerCacheSize
	}
	if cfg.BreakerIdleTTL <= 0 {
		cfg.BreakerIdleTTL = defaults.BreakerIdleTTL
	}

	return &Dispatcher{
		subs: subs,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		config:   cfg,
		logger:   logger.With(zap.String("component", "dispatcher")),
		breakers: expirable.NewLRU[string, *gobreaker.CircuitBreaker](cfg.BreakerCacheSize, nil, cfg.BreakerIdleTTL),
	}, nil
}

// Dispatch delivers n to every subscription of its NS instance that
// accepts its notification type.
//
// A failing subscription lookup aborts the dispatch and is returned.
// Per-subscriber failures are logged and reported, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, n models.Notification) (DeliveryReport, error) {
	report := DeliveryReport{NotificationID: uuid.New().String()}

	subs, err := d.subs.SearchSubscriptionsByNsInstance(ctx, n.NsInstanceID)
	if err != nil {
		d.logger.Error("subscription lookup failed, notification dropped",
			zap.String("ns_instance_id", n.NsInstanceID),
			zap.String("ns_lcm_op_occ_id", n.NsLcmOpOccID),
			zap.Error(err),
		)
		return report, fmt.Errorf("failed to search subscriptions: %w", err)
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return report, fmt.Errorf("failed to marshal notification: %w", err)
	}

	for _, sub := range subs {
		if !sub.Accepts(n.NotificationType) {
			continue
		}
		report.Matched++

		start := time.Now()
		err := d.deliver(ctx, sub.CallbackURI, report.NotificationID, payload)
		elapsed := time.Since(start).Seconds()
		if err != nil {
			RecordDelivery("failed", elapsed)
			d.logger.Warn("cannot send notification",
				zap.String("subscription_id", sub.ID),
				zap.String("callback", sub.CallbackURI),
				zap.Error(err),
			)
			report.Failures = append(report.Failures, DeliveryFailure{
				SubscriptionID: sub.ID,
				CallbackURI:    sub.CallbackURI,
				Error:          err.Error(),
			})
			continue
		}

		RecordDelivery("success", elapsed)
		report.Delivered++
		d.logger.Info("notification sent",
			zap.String("subscription_id", sub.ID),
			zap.String("callback", sub.CallbackURI),
			zap.String("operation_state", n.OperationState),
		)
	}

	return report, nil
}

// deliver posts payload through the callback's circuit breaker.
func (d *Dispatcher) deliver(ctx context.Context, callback, notificationID string, payload []byte) error {
	cb := d.breaker(callback)
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, d.post(ctx, callback, notificationID, payload)
	})
	return err
}

func (d *Dispatcher) post(ctx context.Context, callback, notificationID string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callback, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "msolo-gateway/1.0")
	req.Header.Set(HeaderNotificationID, notificationID)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("callback returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// breaker gets or creates the circuit breaker of a callback URI. A use
// renews the idle expiry.
func (d *Dispatcher) breaker(callback string) *gobreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cb, ok := d.breakers.Get(callback); ok {
		d.breakers.Add(callback, cb)
		return cb
	}

	threshold := d.config.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        callback,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     d.config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			d.logger.Info("circuit breaker state changed",
				zap.String("callback", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			var state float64
			switch to {
			case gobreaker.StateClosed:
				state = 0
			case gobreaker.StateHalfOpen:
				state = 1
			case gobreaker.StateOpen:
				state = 2
			}
			RecordCircuitBreakerState(name, state)
		},
	})
	d.breakers.Add(callback, cb)
	return cb
}

// Close releases idle connections.
func (d *Dispatcher) Close() error {
	d.httpClient.CloseIdleConnections()
	return nil
}

// Emit dispatches n synchronously, making the Dispatcher usable as the
// Reconciler sink when no queue sits in between.
func (d *Dispatcher) Emit(ctx context.Context, n models.Notification) error {
	_, err := d.Dispatch(ctx, n)
	return err
}
