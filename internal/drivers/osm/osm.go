// Package osm implements the driver for ETSI OSM orchestrators.
//
// OSM speaks its own information model over the NBI at
// https://{host}:{port}/osm. The driver authenticates with a bearer token
// held in the shared token cache, resolves NSD ids and VIM accounts on
// creation, merges instantiation parameters and converts NS and operation
// records into the uniform model.
package osm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/backend"
	"github.com/piwi3910/msolo/internal/driver"
	"github.com/piwi3910/msolo/internal/lcmerr"
	"github.com/piwi3910/msolo/internal/models"
	"github.com/piwi3910/msolo/internal/tokencache"
)

const (
	// BackendType is the orchestrator tag served by this driver.
	BackendType = "osm"

	// DefaultPort is the OSM NBI port.
	DefaultPort = 9999

	pathTokens        = "admin/v1/tokens"
	pathVims          = "admin/v1/vims"
	pathNsDescriptors = "nsd/v1/ns_descriptors"
	pathNsInstances   = "nslcm/v1/ns_instances"
	pathVnfInstances  = "nslcm/v1/vnf_instances"
	pathOpOccs        = "nslcm/v1/ns_lcm_op_occs"
	pathVnfPackages   = "vnfpkgm/v1/vnf_packages"
)

// Driver talks to one OSM instance.
type Driver struct {
	orchestratorID string
	user           string
	password       string
	project        string

	client   *backend.Client
	tokens   tokencache.Cache
	location backend.LocationRewriter
	logger   *zap.Logger
}

var (
	_ driver.Driver    = (*Driver)(nil)
	_ driver.VimLister = (*Driver)(nil)
)

// New creates an OSM driver. It is a driver.Factory.
func New(target driver.Target, deps driver.Dependencies) (driver.Driver, error) {
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token cache cannot be nil")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if target.Credentials.Host == "" {
		return nil, fmt.Errorf("osm host cannot be empty")
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
		BaseURL:       fmt.Sprintf("https://%s/osm", net.JoinHostPort(target.Credentials.Host, strconv.Itoa(port))),
		Timeout:       deps.Timeout,
		TLSSkipVerify: deps.TLSSkipVerify,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Driver{
		orchestratorID: target.Orchestrator.ID,
		user:           target.Credentials.User,
		password:       target.Credentials.Password,
		project:        target.Credentials.Project,
		client:         client,
		tokens:         deps.Tokens,
		location: backend.LocationRewriter{
			Pattern:          backend.OSMLocationPattern,
			OrchestratorType: string(target.Type),
			OrchestratorID:   target.Orchestrator.ID,
		},
		logger: logger,
	}, nil
}

// login obtains a fresh OSM token.
func (d *Driver) login(ctx context.Context) (tokencache.Token, error) {
	resp, err := d.client.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   pathTokens,
		Body: map[string]string{
			"username":   d.user,
			"password":   d.password,
			"project_id": d.project,
		},
	})
	if err != nil {
		return tokencache.Token{}, err
	}

	var tok struct {
		ID      string  `json:"id"`
		Expires float64 `json:"expires"`
	}
	if err := resp.Into(&tok); err != nil {
		return tokencache.Token{}, lcmerr.ServerError("failed to decode OSM token: %v", err)
	}
	if tok.ID == "" {
		return tokencache.Token{}, lcmerr.ServerError("OSM returned an empty token")
	}

	d.logger.Debug("authenticated with OSM")
	return tokencache.Token{Value: tok.ID, ExpiresAt: unixTime(tok.Expires)}, nil
}

// call performs an authenticated request. A 401 answered to a cached token
// invalidates it and retries once with a fresh login.
func (d *Driver) call(ctx context.Context, req backend.Request) (*backend.Response, error) {
	tok, err := d.tokens.Get(ctx, d.orchestratorID, d.login)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(ctx, withToken(req, tok))
	if !errors.Is(err, lcmerr.ErrUnauthorized) {
		return resp, err
	}

	d.logger.Info("OSM rejected cached token, logging in again")
	if ierr := d.tokens.Invalidate(ctx, d.orchestratorID); ierr != nil {
		d.logger.Warn("failed to invalidate token", zap.Error(ierr))
	}
	tok, err = d.tokens.Get(ctx, d.orchestratorID, d.login)
	if err != nil {
		return nil, err
	}
	return d.client.Do(ctx, withToken(req, tok))
}

func withToken(req backend.Request, tok tokencache.Token) backend.Request {
	h := req.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Authorization", "Bearer "+tok.Value)
	req.Header = h
	return req
}

// get performs an authenticated GET and decodes the response into v.
func (d *Driver) get(ctx context.Context, path string, args driver.Args, v any) (*backend.Response, error) {
	resp, err := d.call(ctx, backend.Request{Method: http.MethodGet, Path: path, Query: args.Query})
	if err != nil {
		return nil, err
	}
	if err := resp.Into(v); err != nil {
		return nil, lcmerr.ServerError("failed to decode OSM response for %s: %v", path, err)
	}
	return resp, nil
}

func (d *Driver) headers(resp *backend.Response) driver.Headers {
	if resp == nil {
		return driver.Headers{}
	}
	return d.location.Headers(resp.Header)
}

// GetNsList returns every NS instance in the uniform model.
func (d *Driver) GetNsList(ctx context.Context, args driver.Args) (any, driver.Headers, error) {
	var records []nsRecord
	resp, err := d.get(ctx, pathNsInstances, args, &records)
	if err != nil {
		return nil, nil, err
	}

	list := make([]any, 0, len(records))
	for _, rec := range records {
		ns, err := d.convertNs(ctx, rec)
		if err != nil {
			return nil, nil, err
		}
		list = append(list, ns)
	}
	return list, d.headers(resp), nil
}

// CreateNs resolves the NSD and VIM account, creates the instance and
// returns it as GetNs sees it.
func (d *Driver) CreateNs(ctx context.Context, args driver.Args) (any, driver.Headers, error) {
	nsdID, _ := args.Payload["nsdId"].(string)
	if nsdID == "" {
		return nil, nil, lcmerr.BadRequest("nsdId is required")
	}

	nsd, err := d.lookupNsd(ctx, nsdID)
	if err != nil {
		return nil, nil, err
	}
	vimID, err := d.selectVim(ctx)
	if err != nil {
		return nil, nil, err
	}

	payload := make(map[string]any, len(args.Payload)+1)
	for k, v := range args.Payload {
		payload[k] = v
	}
	payload["nsdId"] = nsd.ID
	payload["vimAccountId"] = vimID

	resp, err := d.call(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   pathNsInstances,
		Query:  args.Query,
		Body:   payload,
	})
	if err != nil {
		return nil, nil, lcmerr.Remap(err, lcmerr.NsdNotFound(nsdID))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := resp.Into(&created); err != nil || created.ID == "" {
		return nil, nil, lcmerr.ServerError("OSM did not return the created NS instance id")
	}

	ns, _, err := d.GetNs(ctx, created.ID, driver.Args{})
	if err != nil {
		return nil, nil, err
	}
	return ns, d.headers(resp), nil
}

// GetNs returns one NS instance in the uniform model.
func (d *Driver) GetNs(ctx context.Context, nsID string, args driver.Args) (any, driver.Headers, error) {
	var rec nsRecord
	resp, err := d.get(ctx, pathNsInstances+"/"+nsID, args, &rec)
	if err != nil {
		return nil, nil, lcmerr.Remap(err, lcmerr.NsNotFound(nsID))
	}

	ns, err := d.convertNs(ctx, rec)
	if err != nil {
		return nil, nil, err
	}
	return ns, d.headers(resp), nil
}

// DeleteNs deletes an NS instance.
func (d *Driver) DeleteNs(ctx context.Context, nsID string, args driver.Args) (driver.Headers, error) {
	resp, err := d.call(ctx, backend.Request{
		Method: http.MethodDelete,
		Path:   pathNsInstances + "/" + nsID,
		Query:  args.Query,
		Bare:   true,
	})
	if err != nil {
		return nil, lcmerr.Remap(err, lcmerr.NsNotFound(nsID))
	}
	return d.headers(resp), nil
}

// InstantiateNs instantiates an NS instance with the parameters it was
// created with, extended by additionalParamsForNs.
func (d *Driver) InstantiateNs(ctx context.Context, nsID string, args driver.Args) (driver.Headers, error) {
	var raw map[string]any
	if _, err := d.get(ctx, pathNsInstances+"/"+nsID, driver.Args{}, &raw); err != nil {
		return nil, lcmerr.Remap(err, lcmerr.NsNotFound(nsID))
	}

	additional, _ := args.Payload["additionalParamsForNs"].(map[string]any)
	payload := buildInstantiatePayload(raw, additional, d.logger)

	resp, err := d.call(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   pathNsInstances + "/" + nsID + "/instantiate",
		Query:  args.Query,
		Body:   payload,
	})
	if err != nil {
		return nil, lcmerr.Remap(err, lcmerr.NsNotFound(nsID))
	}
	return d.headers(resp), nil
}

// TerminateNs terminates an NS instance.
func (d *Driver) TerminateNs(ctx context.Context, nsID string, args driver.Args) (driver.Headers, error) {
	resp, err := d.call(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   pathNsInstances + "/" + nsID + "/terminate",
		Query:  args.Query,
		Bare:   true,
	})
	if err != nil {
		return nil, lcmerr.Remap(err, lcmerr.NsNotFound(nsID))
	}
	return d.headers(resp), nil
}

// ScaleNs forwards a scale request unchanged.
func (d *Driver) ScaleNs(ctx context.Context, nsID string, args driver.Args) (driver.Headers, error) {
	resp, err := d.call(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   pathNsInstances + "/" + nsID + "/scale",
		Query:  args.Query,
		Body:   args.Payload,
	})
	if err != nil {
		return nil, lcmerr.Remap(err, lcmerr.NsNotFound(nsID))
	}
	return d.headers(resp), nil
}

// GetOpList returns the operation occurrences in the uniform model.
func (d *Driver) GetOpList(ctx context.Context, args driver.Args) (any, driver.Headers, error) {
	var records []opRecord
	resp, err := d.get(ctx, pathOpOccs, args, &records)
	if err != nil {
		return nil, nil, err
	}

	ops := make([]any, 0, len(records))
	for _, rec := range records {
		ops = append(ops, convertOp(rec))
	}
	return ops, d.headers(resp), nil
}

// GetOp returns one operation occurrence in the uniform model.
func (d *Driver) GetOp(ctx context.Context, opID string, args driver.Args) (any, driver.Headers, error) {
	var rec opRecord
	resp, err := d.get(ctx, pathOpOccs+"/"+opID, args, &rec)
	if err != nil {
		return nil, nil, lcmerr.Remap(err, lcmerr.NsOpNotFound(opID))
	}
	return convertOp(rec), d.headers(resp), nil
}

type nsdRecord struct {
	ID string `json:"_id"`
}

// lookupNsd resolves a descriptor id to the OSM internal NSD.
func (d *Driver) lookupNsd(ctx context.Context, nsdID string) (*nsdRecord, error) {
	var nsds []nsdRecord
	query := url.Values{"id": {nsdID}}
	if _, err := d.get(ctx, pathNsDescriptors, driver.Args{Query: query}, &nsds); err != nil {
		return nil, err
	}
	switch len(nsds) {
	case 0:
		return nil, lcmerr.NsdNotFound(nsdID)
	case 1:
		return &nsds[0], nil
	default:
		return nil, lcmerr.ServerError("Multiple NSD with id=%s found in OSM", nsdID)
	}
}

// ListVims returns the VIM accounts registered on OSM.
func (d *Driver) ListVims(ctx context.Context) ([]models.VimAccount, error) {
	var vims []models.VimAccount
	if _, err := d.get(ctx, pathVims, driver.Args{}, &vims); err != nil {
		return nil, err
	}
	return vims, nil
}

// selectVim returns the first VIM account known to OSM.
func (d *Driver) selectVim(ctx context.Context) (string, error) {
	vims, err := d.ListVims(ctx)
	if err != nil {
		return "", err
	}
	if len(vims) == 0 {
		return "", lcmerr.VimNotFound()
	}
	return vims[0].ID, nil
}
