// Package repository provides the registry of orchestrators, their
// credentials and the notification subscriptions.
//
// Two implementations are available: RedisRepository keeps everything in
// redis and is seeded from configuration, IWFClient delegates to an
// external IWF repository service over its Spring Data REST interface.
//
// All implementations report failures in the lcmerr taxonomy:
// OrchestratorNotFound, CredentialsNotFound, SubscriptionNotFound and
// ServerError when the store itself cannot be reached.
package repository

import (
	"context"
	"errors"

	"github.com/piwi3910/msolo/internal/models"
)

// Common errors returned by storage helpers.
var (
	// ErrInvalidID is returned when an empty identifier is supplied.
	ErrInvalidID = errors.New("invalid identifier")

	// ErrInvalidCallback is returned when a subscription callback URL is malformed.
	ErrInvalidCallback = errors.New("invalid callback URL")
)

// Repository is the registry the gateway reads orchestrators and
// subscriptions from.
//
// Example:
//
//	orch, err := repo.GetOrchestrator(ctx, models.NFVO, "osm-lab")
//	if errors.Is(err, lcmerr.ErrOrchestratorNotFound) {
//	    // unknown id
//	}
type Repository interface {
	// GetOrchestrator returns a registered orchestrator without credentials.
	GetOrchestrator(ctx context.Context, orchType models.OrchestratorType, id string) (*models.Orchestrator, error)

	// GetCredentials returns the connection parameters of an orchestrator.
	GetCredentials(ctx context.Context, orchType models.OrchestratorType, id string) (*models.Credentials, error)

	// ListOrchestrators returns every orchestrator of a family.
	// An empty registry yields an empty slice.
	ListOrchestrators(ctx context.Context, orchType models.OrchestratorType) ([]*models.Orchestrator, error)

	// SearchSubscriptionsByNsInstance returns the subscriptions of one NS
	// instance across all orchestrators.
	SearchSubscriptionsByNsInstance(ctx context.Context, nsInstanceID string) ([]*models.Subscription, error)

	// ListSubscriptions returns the subscriptions created under an NFVO.
	ListSubscriptions(ctx context.Context, orchestratorID string) ([]*models.Subscription, error)

	// CreateSubscription stores sub under an NFVO and returns it with its
	// assigned identifier.
	CreateSubscription(ctx context.Context, orchestratorID string, sub *models.Subscription) (*models.Subscription, error)

	// GetSubscription returns one subscription of an NFVO.
	GetSubscription(ctx context.Context, orchestratorID, subscriptionID string) (*models.Subscription, error)

	// DeleteSubscription removes one subscription of an NFVO.
	DeleteSubscription(ctx context.Context, orchestratorID, subscriptionID string) error

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the repository.
	Close() error
}
