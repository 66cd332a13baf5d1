// Package ever implements the driver for EVER RAN orchestrators. EVER
// speaks the same pass-through dialect as the ONAP adaptation API with a
// few differences: instantiation carries only the SAP data, termination
// has no body, operations cannot be filtered by NS instance and every
// Location points at an operation occurrence.
package ever

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
	BackendType = "ever"

	// DefaultPort is used when the credentials carry no port.
	DefaultPort = 8080
)

// Driver talks to one EVER instance.
type Driver struct {
	client   *backend.Client
	location backend.LocationRewriter
	logger   *zap.Logger
}

var _ driver.Driver = (*Driver)(nil)

// New creates an EVER driver. It is a driver.Factory.
func New(target driver.Target, deps driver.Dependencies) (driver.Driver, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if target.Credentials.Host == "" {
		return nil, fmt.Errorf("ever host cannot be empty")
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
			OnlyOpOccs:       true,
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

// InstantiateNs forwards only the SapData of the northbound payload.
func (d *Driver) InstantiateNs(ctx context.Context, nsID string, args driver.Args) (driver.Headers, error) {
	payload := map[string]any{}
	if sap, ok := args.Payload["SapData"]; ok {
		payload["SapData"] = sap
	} else {
		d.logger.Info("instantiate request carries no SapData", zap.String("ns_id", nsID))
	}

	return d.action(ctx, nsID, backend.Request{
		Method: http.MethodPost,
		Path:   "instantiate/" + url.PathEscape(nsID),
		Query:  args.Query,
		Body:   payload,
	})
}

// TerminateNs starts termination. EVER takes no request body.
func (d *Driver) TerminateNs(ctx context.Context, nsID string, args driver.Args) (driver.Headers, error) {
	return d.action(ctx, nsID, backend.Request{
		Method: http.MethodPost,
		Path:   "terminate/" + url.PathEscape(nsID),
		Query:  args.Query,
		Bare:   true,
	})
}

// ScaleNs is not offered by EVER.
func (d *Driver) ScaleNs(context.Context, string, driver.Args) (driver.Headers, error) {
	return nil, lcmerr.NotImplemented("scaleNs", BackendType)
}

// GetOpList lists operation occurrences. The query is forwarded but EVER
// does not filter by NS instance.
func (d *Driver) GetOpList(ctx context.Context, args driver.Args) (any, driver.Headers, error) {
	return d.do(ctx, backend.Request{Method: http.MethodGet, Path: "ns_lcm_op_occs", Query: args.Query})
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
