// Package onap implements the driver for ONAP orchestrators exposing the
// SOL005 adaptation API. Bodies already follow the uniform model and are
// passed through unchanged.
package onap

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/backend"
	"github.com/piwi3910/msolo/internal/driver"
	"github.com/piwi3910/msolo/internal/lcmerr"
)

const (
	// BackendType is the orchestrator tag served by this driver.
	BackendType = "onap"

	// DefaultPort is used when the credentials carry no port.
	DefaultPort = 8080

	queryNsInstanceID = "nsInstanceId"
)

// Driver talks to one ONAP adaptation endpoint.
type Driver struct {
	client   *backend.Client
	location backend.LocationRewriter
	logger   *zap.Logger
}

var _ driver.Driver = (*Driver)(nil)

// New creates an ONAP driver. It is a driver.Factory.
func New(target driver.Target, deps driver.Dependencies) (driver.Driver, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if target.Credentials.Host == "" {
		return nil, fmt.Errorf("onap host cannot be empty")
	}

	port := target.Credentials.Port
	if port == 0 {
		port = DefaultPort
	}

	logger := deps.Logger.With(
		zap.String("driver", BackendType),
		zap.String("orchestrator_id", target.Orchestrator.ID),
	)

	client, err := backend.NewClient(backend.Config{
		BaseURL:       "http://" + net.JoinHostPort(target.Credentials.Host, strconv.Itoa(port)),
		Timeout:       deps.Timeout,
		TLSSkipVerify: deps.TLSSkipVerify,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Driver{
		client: client,
		location: backend.LocationRewriter{
			Pattern:          backend.SOL005LocationPattern,
			OrchestratorType: string(target.Type),
			OrchestratorID:   target.Orchestrator.ID,
		},
		logger: logger,
	}, nil
}

func (d *Driver) do(ctx context.Context, req backend.Request) (any, driver.Headers, error) {
	resp, err := d.client.Do(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	return resp.Body, d.location.Headers(resp.Header), nil
}

// GetNsList lists NS instances.
func (d *Driver) GetNsList(ctx context.Context, args driver.Args) (any, driver.Headers, error) {
	return d.do(ctx, backend.Request{Method: http.MethodGet, Path: "instances", Query: args.Query})
}

// CreateNs creates an NS instance identifier.
func (d *Driver) CreateNs(ctx context.Context, args driver.Args) (any, driver.Headers, error) {
	body, headers, err := d.do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "create",
		Query:  args.Query,
		Body:   args.Payload,
	})
	if err != nil {
		nsdID, _ := args.Payload["nsdId"].(string)
		return nil, nil, lcmerr.Remap(err, lcmerr.NsdNotFound(nsdID))
	}
	return body, headers, nil
}

// GetNs returns one NS instance.
func (d *Driver) GetNs(ctx context.Context, nsID string, args driver.Args) (any, driver.Headers, error) {
	body, headers, err := d.do(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   "instances/" + url.PathEscape(nsID),
		Query:  args.Query,
	})
	if err != nil {
		return nil, nil, lcmerr.Remap(err, lcmerr.NsNotFound(nsID))
	}
	return body, headers, nil
}

// DeleteNs deletes an NS instance.
func (d *Driver) DeleteNs(ctx context.Context, nsID string, args driver.Args) (driver.Headers, error) {
	return d.action(ctx, nsID, backend.Request{
		Method: http.MethodDelete,
		Path:   "delete/" + url.PathEscape(nsID),
		Query:  args.Query,
		Bare:   true,
	})
}

// InstantiateNs starts instantiation. ONAP takes no request body.
func (d *Driver) InstantiateNs(ctx context.Context, nsID string, args driver.Args) (driver.Headers, error) {
	return d.action(ctx, nsID, backend.Request{
		Method: http.MethodPost,
		Path:   "instantiate/" + url.PathEscape(nsID),
		Query:  args.Query,
		Bare:   true,
	})
}

// TerminateNs starts termination with the northbound payload.
func (d *Driver) TerminateNs(ctx context.Context, nsID string, args driver.Args) (driver.Headers, error) {
	return d.action(ctx, nsID, backend.Request{
		Method: http.MethodPost,
		Path:   "terminate/" + url.PathEscape(nsID),
		Query:  args.Query,
		Body:   payloadOrEmpty(args.Payload),
	})
}

// ScaleNs is not offered by ONAP.
func (d *Driver) ScaleNs(context.Context, string, driver.Args) (driver.Headers, error) {
	return nil, lcmerr.NotImplemented("scaleNs", BackendType)
}

// GetOpList lists operation occurrences. With an nsInstanceId query the
// list is restricted to that NS instance.
func (d *Driver) GetOpList(ctx context.Context, args driver.Args) (any, driver.Headers, error) {
	nsID := args.Query.Get(queryNsInstanceID)
	if nsID == "" {
		return d.do(ctx, backend.Request{Method: http.MethodGet, Path: "ns_lcm_op_occs", Query: args.Query})
	}

	body, headers, err := d.do(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   "ns_lcm_op_occs/ns_id/" + url.PathEscape(nsID),
		Query:  args.Query,
	})
	if err != nil {
		return nil, nil, lcmerr.Remap(err, lcmerr.NsNotFound(nsID))
	}
	return body, headers, nil
}

// GetOp returns one operation occurrence.
func (d *Driver) GetOp(ctx context.Context, opID string, args driver.Args) (any, driver.Headers, error) {
	body, headers, err := d.do(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   "ns_lcm_op_occs/" + url.PathEscape(opID),
		Query:  args.Query,
	})
	if err != nil {
		return nil, nil, lcmerr.Remap(err, lcmerr.NsOpNotFound(opID))
	}
	return body, headers, nil
}

func (d *Driver) action(ctx context.Context, nsID string, req backend.Request) (driver.Headers, error) {
	_, headers, err := d.do(ctx, req)
	if err != nil {
		return nil, lcmerr.Remap(err, lcmerr.NsNotFound(nsID))
	}
	return headers, nil
}

func payloadOrEmpty(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}
