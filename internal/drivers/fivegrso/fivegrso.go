// Package fivegrso implements the driver for the 5Growth Service
// Orchestrator, which exposes an ETSI NFV-IFA 013 interface. Requests and
// responses are translated between SOL 005 and IFA 013.
//
// The 5GR-SO cannot list NS instances, delete them or list operations;
// those operations report NotImplemented.
package fivegrso

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/backend"
	"github.com/piwi3910/msolo/internal/driver"
	"github.com/piwi3910/msolo/internal/lcmerr"
	"github.com/piwi3910/msolo/internal/models"
)

const (
	// BackendType is the orchestrator tag served by this driver.
	BackendType = "5gr-so"

	// DefaultPort is used when the credentials carry no port.
	DefaultPort = 8080

	basePath = "/5gt/so/v1"
)

// Driver talks to one 5GR-SO instance.
type Driver struct {
	orchestratorType string
	orchestratorID   string

	client *backend.Client
	logger *zap.Logger
	now    func() time.Time
}

var _ driver.Driver = (*Driver)(nil)

// New creates a 5GR-SO driver. It is a driver.Factory.
func New(target driver.Target, deps driver.Dependencies) (driver.Driver, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if target.Credentials.Host == "" {
		return nil, fmt.Errorf("5gr-so host cannot be empty")
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
		BaseURL:       "http://" + net.JoinHostPort(target.Credentials.Host, strconv.Itoa(port)) + basePath,
		Timeout:       deps.Timeout,
		TLSSkipVerify: deps.TLSSkipVerify,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Driver{
		orchestratorType: string(target.Type),
		orchestratorID:   target.Orchestrator.ID,
		client:           client,
		logger:           logger,
		now:              time.Now,
	}, nil
}

// GetNsList is not offered by the 5GR-SO.
func (d *Driver) GetNsList(context.Context, driver.Args) (any, driver.Headers, error) {
	return nil, nil, lcmerr.NotImplemented("getNsList", BackendType)
}

// CreateNs creates an NS identifier and returns the instance in its
// initial NOT_INSTANTIATED state.
func (d *Driver) CreateNs(ctx context.Context, args driver.Args) (any, driver.Headers, error) {
	if len(args.Payload) == 0 {
		return nil, nil, lcmerr.BadRequest("Payload not found.")
	}

	resp, err := d.client.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "ns",
		Query:  args.Query,
		Body:   args.Payload,
	})
	if err != nil {
		nsdID, _ := args.Payload["nsdId"].(string)
		return nil, nil, lcmerr.Remap(err, lcmerr.NsdNotFound(nsdID))
	}

	var created struct {
		NsID string `json:"nsId"`
	}
	if err := resp.Into(&created); err != nil || created.NsID == "" {
		return nil, nil, lcmerr.ServerError("5GR-SO did not return the created NS identifier")
	}

	name, _ := args.Payload["nsName"].(string)
	description, _ := args.Payload["nsDescription"].(string)
	ns := models.NsInstance{
		ID:                    created.NsID,
		NsInstanceName:        name,
		NsInstanceDescription: description,
		NsState:               models.NsNotInstantiated,
		VnfInstance:           []models.VnfInstance{},
	}

	d.logger.Info("created NS identifier", zap.String("ns_id", created.NsID))
	return ns, d.location(backend.CollectionNsInstances, created.NsID), nil
}

// GetNs queries the NS and translates the first result.
func (d *Driver) GetNs(ctx context.Context, nsID string, args driver.Args) (any, driver.Headers, error) {
	resp, err := d.client.Do(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   "ns/" + url.PathEscape(nsID),
		Query:  args.Query,
	})
	if err != nil {
		return nil, nil, lcmerr.Remap(err, lcmerr.NsNotFound(nsID))
	}

	var result QueryNsResponse
	if err := resp.Into(&result); err != nil {
		return nil, nil, lcmerr.ServerError("failed to decode 5GR-SO NS info: %v", err)
	}
	if len(result.QueryNsResult) == 0 {
		return nil, nil, lcmerr.NsNotFound(nsID)
	}
	return NsInfoToSOL005(result.QueryNsResult[0]), driver.Headers{}, nil
}

// DeleteNs is not offered by the 5GR-SO.
func (d *Driver) DeleteNs(context.Context, string, driver.Args) (driver.Headers, error) {
	return nil, lcmerr.NotImplemented("deleteNs", BackendType)
}

// InstantiateNs translates the request to IFA 013 and submits it.
func (d *Driver) InstantiateNs(ctx context.Context, nsID string, args driver.Args) (driver.Headers, error) {
	if len(args.Payload) == 0 {
		return nil, lcmerr.BadRequest("Payload not found for id: %s", nsID)
	}
	var sol SolInstantiateNsRequest
	if err := decodePayload(args.Payload, &sol); err != nil {
		return nil, err
	}

	return d.submit(ctx, nsID, backend.Request{
		Method: http.MethodPut,
		Path:   "ns/" + url.PathEscape(nsID) + "/instantiate",
		Query:  args.Query,
		Body:   InstantiateRequestToIFA(nsID, sol),
	})
}

// TerminateNs submits a termination. The 5GR-SO takes no request body.
func (d *Driver) TerminateNs(ctx context.Context, nsID string, args driver.Args) (driver.Headers, error) {
	return d.submit(ctx, nsID, backend.Request{
		Method: http.MethodPut,
		Path:   "ns/" + url.PathEscape(nsID) + "/terminate",
		Query:  args.Query,
		Bare:   true,
	})
}

// ScaleNs translates the request to IFA 013 and submits it.
func (d *Driver) ScaleNs(ctx context.Context, nsID string, args driver.Args) (driver.Headers, error) {
	if len(args.Payload) == 0 {
		return nil, lcmerr.BadRequest("Payload not found for id: %s", nsID)
	}
	var sol SolScaleNsRequest
	if err := decodePayload(args.Payload, &sol); err != nil {
		return nil, err
	}

	return d.submit(ctx, nsID, backend.Request{
		Method: http.MethodPut,
		Path:   "ns/" + url.PathEscape(nsID) + "/scale",
		Query:  args.Query,
		Body:   ScaleRequestToIFA(nsID, sol),
	})
}

// GetOpList is not offered by the 5GR-SO.
func (d *Driver) GetOpList(context.Context, driver.Args) (any, driver.Headers, error) {
	return nil, nil, lcmerr.NotImplemented("getOpList", BackendType)
}

// GetOp reads an operation status.
func (d *Driver) GetOp(ctx context.Context, opID string, args driver.Args) (any, driver.Headers, error) {
	resp, err := d.client.Do(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   "operation/" + url.PathEscape(opID),
		Query:  args.Query,
	})
	if err != nil {
		return nil, nil, lcmerr.Remap(err, lcmerr.NsOpNotFound(opID))
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := resp.Into(&status); err != nil {
		return nil, nil, lcmerr.ServerError("failed to decode 5GR-SO operation status: %v", err)
	}
	return OperationStatusToSOL005(opID, status.Status, d.now()), driver.Headers{}, nil
}

// submit performs an NS operation and points the Location at the
// operation the 5GR-SO started.
func (d *Driver) submit(ctx context.Context, nsID string, req backend.Request) (driver.Headers, error) {
	resp, err := d.client.Do(ctx, req)
	if err != nil {
		return nil, lcmerr.Remap(err, lcmerr.NsNotFound(nsID))
	}

	var op struct {
		OperationID string `json:"operationId"`
	}
	if err := resp.Into(&op); err != nil || op.OperationID == "" {
		return nil, lcmerr.ServerError("5GR-SO did not return an operation id for NS %s", nsID)
	}

	d.logger.Info("operation submitted",
		zap.String("ns_id", nsID),
		zap.String("operation_id", op.OperationID),
	)
	return d.location(backend.CollectionOpOccs, op.OperationID), nil
}

func (d *Driver) location(collection, id string) driver.Headers {
	return driver.LocationHeaders(backend.Location(d.orchestratorType, d.orchestratorID, collection, id))
}

// decodePayload converts the generic northbound payload into v.
func decodePayload(payload map[string]any, v any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return lcmerr.BadRequest("invalid payload: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return lcmerr.BadRequest("invalid payload: %v", err)
	}
	return nil
}
