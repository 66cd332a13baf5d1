// Package driver defines the contract every backend orchestrator driver
// implements and the Manager that resolves an orchestrator id to a driver
// instance.
package driver

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/models"
	"github.com/piwi3910/msolo/internal/tokencache"
)

// HeaderLocation is the key of the rewritten northbound Location header.
const HeaderLocation = "location"

// Args carries the northbound request payload and query parameters.
// The query is forwarded verbatim to the backend.
type Args struct {
	Payload map[string]any
	Query   url.Values
}

// Headers are northbound response headers produced by a driver.
type Headers map[string]string

// LocationHeaders returns Headers holding location, or empty Headers when
// location is empty.
func LocationHeaders(location string) Headers {
	h := Headers{}
	if location != "" {
		h[HeaderLocation] = location
	}
	return h
}

// Driver is the uniform NS lifecycle interface. Bodies are returned in the
// uniform model whatever dialect the backend speaks. Errors belong to the
// lcmerr taxonomy; unsupported operations return ErrNotImplemented.
type Driver interface {
	GetNsList(ctx context.Context, args Args) (any, Headers, error)
	CreateNs(ctx context.Context, args Args) (any, Headers, error)
	GetNs(ctx context.Context, nsID string, args Args) (any, Headers, error)
	DeleteNs(ctx context.Context, nsID string, args Args) (Headers, error)
	InstantiateNs(ctx context.Context, nsID string, args Args) (Headers, error)
	TerminateNs(ctx context.Context, nsID string, args Args) (Headers, error)
	ScaleNs(ctx context.Context, nsID string, args Args) (Headers, error)
	GetOpList(ctx context.Context, args Args) (any, Headers, error)
	GetOp(ctx context.Context, opID string, args Args) (any, Headers, error)
}

// VimLister is implemented by drivers whose backend keeps VIM accounts.
type VimLister interface {
	ListVims(ctx context.Context) ([]models.VimAccount, error)
}

// Target identifies the orchestrator a driver instance talks to.
type Target struct {
	Type         models.OrchestratorType
	Orchestrator models.Orchestrator
	Credentials  models.Credentials
}

// Dependencies are the shared collaborators handed to every factory.
type Dependencies struct {
	Tokens        tokencache.Cache
	Logger        *zap.Logger
	Timeout       time.Duration
	TLSSkipVerify bool
}

// Factory constructs a driver for a target.
type Factory func(target Target, deps Dependencies) (Driver, error)
