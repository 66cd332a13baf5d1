package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/backend"
	"github.com/piwi3910/msolo/internal/lcmerr"
	"github.com/piwi3910/msolo/internal/models"
)

const (
	halJSON = "application/hal+json"
	uriList = "text/uri-list"
)

// IWFConfig configures the IWF repository client.
type IWFConfig struct {
	// URL is the base URL of the IWF repository, e.g. http://iwf:8087.
	URL string

	// Timeout bounds every HTTP call.
	Timeout time.Duration

	// MaxRetries is the number of retries after a transport failure.
	MaxRetries uint64

	// InitialInterval is the first retry delay; later delays grow
	// exponentially.
	InitialInterval time.Duration
}

// DefaultIWFConfig returns an IWFConfig pointing at a local repository.
func DefaultIWFConfig() *IWFConfig {
	return &IWFConfig{
		URL:             "http://localhost:8087",
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
	}
}

// IWFClient implements Repository on top of the IWF repository service,
// a Spring Data REST application speaking HAL.
//
// Orchestrators and credentials are read-only from the gateway point of
// view; subscriptions are created, read and deleted through it.
type IWFClient struct {
	client  *backend.Client
	baseURL string
	cfg     IWFConfig
	logger  *zap.Logger
}

var _ Repository = (*IWFClient)(nil)

// NewIWFClient creates a client for the IWF repository at cfg.URL.
func NewIWFClient(cfg *IWFConfig, logger *zap.Logger) (*IWFClient, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultIWFConfig()
	}

	logger = logger.With(zap.String("component", "iwf-repository"))
	client, err := backend.NewClient(backend.Config{
		BaseURL: cfg.URL,
		Timeout: cfg.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid iwf repository url: %w", err)
	}

	return &IWFClient{
		client:  client,
		baseURL: client.BaseURL(),
		cfg:     *cfg,
		logger:  logger,
	}, nil
}

// halID accepts the numeric identifiers of the IWF repository as well as
// string ones.
type halID string

func (id *halID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = halID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid identifier %s", string(data))
	}
	*id = halID(n.String())
	return nil
}

type halLink struct {
	Href string `json:"href"`
}

type halCredentials struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Project  string `json:"project"`
}

type halOrchestrator struct {
	ID          halID              `json:"id"`
	Name        string             `json:"name"`
	Type        string             `json:"type"`
	URI         *string            `json:"uri"`
	CreatedAt   *string            `json:"createdAt"`
	UpdatedAt   *string            `json:"updatedAt"`
	Credentials *halCredentials    `json:"credentials"`
	Links       map[string]halLink `json:"_links"`
}

type halSubscription struct {
	ID                halID              `json:"id"`
	NsInstanceID      string             `json:"nsInstanceId"`
	NotificationTypes []string           `json:"notificationTypes"`
	CallbackURI       string             `json:"callbackUri"`
	Links             map[string]halLink `json:"_links"`
}

type halCollection struct {
	Embedded map[string]json.RawMessage `json:"_embedded"`
}

// collection returns the IWF collection name of an orchestrator family.
func collection(orchType models.OrchestratorType) (string, error) {
	switch orchType {
	case models.NFVO:
		return "nfvOrchestrators", nil
	case models.RANO:
		return "ranOrchestrators", nil
	default:
		return "", lcmerr.BadRequest("unknown orchestrator type %s", orchType)
	}
}

// GetOrchestrator reads an orchestrator and resolves its site name.
func (c *IWFClient) GetOrchestrator(ctx context.Context, orchType models.OrchestratorType, id string) (*models.Orchestrator, error) {
	raw, err := c.getOrchestrator(ctx, orchType, id)
	if err != nil {
		return nil, err
	}
	return c.convert(ctx, raw), nil
}

// GetCredentials reads the credentials embedded in an orchestrator.
func (c *IWFClient) GetCredentials(ctx context.Context, orchType models.OrchestratorType, id string) (*models.Credentials, error) {
	raw, err := c.getOrchestrator(ctx, orchType, id)
	if err != nil {
		return nil, err
	}
	if raw.Credentials == nil {
		return nil, lcmerr.CredentialsNotFound(id)
	}
	return &models.Credentials{
		OrchestratorID: string(raw.ID),
		Host:           raw.Credentials.Host,
		Port:           raw.Credentials.Port,
		User:           raw.Credentials.Username,
		Password:       raw.Credentials.Password,
		Project:        raw.Credentials.Project,
	}, nil
}

// ListOrchestrators returns every orchestrator of a family.
func (c *IWFClient) ListOrchestrators(ctx context.Context, orchType models.OrchestratorType) ([]*models.Orchestrator, error) {
	name, err := collection(orchType)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, backend.Request{Method: http.MethodGet, Path: name})
	if err != nil {
		return nil, err
	}

	var raws []halOrchestrator
	if err := embedded(resp, name, &raws); err != nil {
		return nil, err
	}

	orchs := make([]*models.Orchestrator, 0, len(raws))
	for i := range raws {
		orchs = append(orchs, c.convert(ctx, &raws[i]))
	}
	return orchs, nil
}

// SearchSubscriptionsByNsInstance queries the NS instance search resource.
func (c *IWFClient) SearchSubscriptionsByNsInstance(ctx context.Context, nsInstanceID string) ([]*models.Subscription, error) {
	resp, err := c.do(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   "subscriptions/search/findByNsInstanceId",
		Query:  url.Values{"nsInstanceId": {nsInstanceID}},
	})
	if err != nil {
		return nil, err
	}
	return subscriptions(resp, "")
}

// ListSubscriptions returns the subscriptions associated with an NFVO.
func (c *IWFClient) ListSubscriptions(ctx context.Context, orchestratorID string) ([]*models.Subscription, error) {
	resp, err := c.do(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   "nfvOrchestrators/" + url.PathEscape(orchestratorID) + "/subscriptions",
	})
	if err != nil {
		return nil, lcmerr.Remap(err, lcmerr.OrchestratorNotFound(orchestratorID))
	}
	return subscriptions(resp, orchestratorID)
}

// CreateSubscription creates the subscription and associates it with the
// NFVO through its nfvOrchestrators link.
func (c *IWFClient) CreateSubscription(ctx context.Context, orchestratorID string, sub *models.Subscription) (*models.Subscription, error) {
	if sub == nil {
		return nil, lcmerr.BadRequest("Payload not found.")
	}
	if err := validateCallbackURL(sub.CallbackURI); err != nil {
		return nil, lcmerr.WithReason(lcmerr.ErrBadRequest, ErrInvalidCallback,
			fmt.Sprintf("%v: %v", ErrInvalidCallback, err))
	}

	resp, err := c.do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "subscriptions",
		Body: map[string]any{
			"nsInstanceId":      sub.NsInstanceID,
			"notificationTypes": sub.NotificationTypes,
			"callbackUri":       sub.CallbackURI,
		},
	})
	if err != nil {
		return nil, lcmerr.Remap(err, lcmerr.OrchestratorNotFound(orchestratorID))
	}

	var created halSubscription
	if err := resp.Into(&created); err != nil {
		return nil, lcmerr.ServerError("failed to decode iwf subscription: %v", err)
	}
	link, ok := created.Links["nfvOrchestrators"]
	if !ok || link.Href == "" {
		return nil, lcmerr.ServerError("iwf subscription %s has no nfvOrchestrators link", created.ID)
	}

	_, err = c.do(ctx, backend.Request{
		Method: http.MethodPut,
		Path:   c.relative(link.Href),
		Raw:    []byte(c.baseURL + "/nfvOrchestrators/" + url.PathEscape(orchestratorID)),
		Header: http.Header{"Content-Type": {uriList}},
	})
	if err != nil {
		return nil, lcmerr.Remap(err, lcmerr.OrchestratorNotFound(orchestratorID))
	}

	c.logger.Info("subscription created",
		zap.String("subscription_id", string(created.ID)),
		zap.String("orchestrator_id", orchestratorID),
	)
	return created.toModel(orchestratorID), nil
}

// GetSubscription reads a subscription of an NFVO.
func (c *IWFClient) GetSubscription(ctx context.Context, orchestratorID, subscriptionID string) (*models.Subscription, error) {
	resp, err := c.do(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   "nfvOrchestrators/" + url.PathEscape(orchestratorID) + "/subscriptions/" + url.PathEscape(subscriptionID),
	})
	if err != nil {
		return nil, lcmerr.Remap(err, lcmerr.SubscriptionNotFound(subscriptionID))
	}

	var sub halSubscription
	if err := resp.Into(&sub); err != nil {
		return nil, lcmerr.ServerError("failed to decode iwf subscription: %v", err)
	}
	return sub.toModel(orchestratorID), nil
}

// DeleteSubscription deletes a subscription of an NFVO.
func (c *IWFClient) DeleteSubscription(ctx context.Context, orchestratorID, subscriptionID string) error {
	if _, err := c.GetSubscription(ctx, orchestratorID, subscriptionID); err != nil {
		return err
	}
	_, err := c.do(ctx, backend.Request{
		Method: http.MethodDelete,
		Path:   "subscriptions/" + url.PathEscape(subscriptionID),
	})
	if err != nil {
		return lcmerr.Remap(err, lcmerr.SubscriptionNotFound(subscriptionID))
	}
	return nil
}

// Ping checks that the repository answers on its root resource.
func (c *IWFClient) Ping(ctx context.Context) error {
	_, err := c.do(ctx, backend.Request{Method: http.MethodGet, Path: ""})
	return err
}

// Close is a no-op; the client holds no long-lived resources.
func (c *IWFClient) Close() error {
	return nil
}

func (c *IWFClient) getOrchestrator(ctx context.Context, orchType models.OrchestratorType, id string) (*halOrchestrator, error) {
	name, err := collection(orchType)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   name + "/" + url.PathEscape(id),
	})
	if err != nil {
		return nil, lcmerr.Remap(err, lcmerr.OrchestratorNotFound(id))
	}

	var raw halOrchestrator
	if err := resp.Into(&raw); err != nil {
		return nil, lcmerr.ServerError("failed to decode iwf orchestrator: %v", err)
	}
	return &raw, nil
}

// convert maps an IWF orchestrator to the model. The site name is read
// from the site link; a failure leaves it empty.
func (c *IWFClient) convert(ctx context.Context, raw *halOrchestrator) *models.Orchestrator {
	orch := &models.Orchestrator{
		ID:        string(raw.ID),
		Name:      raw.Name,
		Type:      raw.Type,
		CreatedAt: parseTime(raw.CreatedAt),
		UpdatedAt: parseTime(raw.UpdatedAt),
	}
	if raw.URI != nil {
		orch.URI = *raw.URI
	}

	if link, ok := raw.Links["site"]; ok && link.Href != "" {
		resp, err := c.do(ctx, backend.Request{Method: http.MethodGet, Path: c.relative(link.Href)})
		if err != nil {
			c.logger.Debug("site lookup failed",
				zap.String("orchestrator_id", orch.ID),
				zap.Error(err),
			)
			return orch
		}
		var site struct {
			Name string `json:"name"`
		}
		if err := resp.Into(&site); err == nil {
			orch.Site = site.Name
		}
	}
	return orch
}

// do performs req with HAL headers, retrying transport failures with
// exponential backoff. HTTP error statuses are returned immediately.
func (c *IWFClient) do(ctx context.Context, req backend.Request) (*backend.Response, error) {
	req.Bare = true
	if req.Header == nil {
		req.Header = http.Header{}
	}
	req.Header.Set("Accept", halJSON)
	if req.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	policy := backoff.NewExponentialBackOff()
	if c.cfg.InitialInterval > 0 {
		policy.InitialInterval = c.cfg.InitialInterval
	}

	var resp *backend.Response
	attempt := 0
	operation := func() error {
		attempt++
		r, err := c.client.Do(ctx, req)
		if err != nil {
			if errors.Is(err, backend.ErrTransport) {
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("iwf repository unreachable, retrying",
			zap.String("path", req.Path),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, c.cfg.MaxRetries), ctx), notify)
	if err != nil {
		if errors.Is(err, backend.ErrTransport) {
			return nil, lcmerr.WithReason(lcmerr.ErrServerError, backend.ErrTransport,
				fmt.Sprintf("problem contacting iwf repository: %s", lcmerr.Description(err)))
		}
		return nil, err
	}
	return resp, nil
}

// relative turns an absolute HAL link into a path below the base URL.
func (c *IWFClient) relative(href string) string {
	if strings.HasPrefix(href, c.baseURL) {
		return strings.TrimPrefix(href, c.baseURL)
	}
	if u, err := url.Parse(href); err == nil && u.IsAbs() {
		return u.Path
	}
	return href
}

func (s *halSubscription) toModel(orchestratorID string) *models.Subscription {
	return &models.Subscription{
		ID:                string(s.ID),
		OrchestratorID:    orchestratorID,
		NsInstanceID:      s.NsInstanceID,
		NotificationTypes: s.NotificationTypes,
		CallbackURI:       s.CallbackURI,
	}
}

func subscriptions(resp *backend.Response, orchestratorID string) ([]*models.Subscription, error) {
	var raws []halSubscription
	if err := embedded(resp, "subscriptions", &raws); err != nil {
		return nil, err
	}
	subs := make([]*models.Subscription, 0, len(raws))
	for i := range raws {
		subs = append(subs, raws[i].toModel(orchestratorID))
	}
	return subs, nil
}

// embedded decodes _embedded[name] of a HAL collection into v. A response
// without the key decodes as empty.
func embedded(resp *backend.Response, name string, v any) error {
	if resp.Body == nil {
		return nil
	}
	var coll halCollection
	if err := resp.Into(&coll); err != nil {
		return lcmerr.ServerError("failed to decode iwf collection: %v", err)
	}
	raw, ok := coll.Embedded[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return lcmerr.ServerError("failed to decode iwf %s: %v", name, err)
	}
	return nil
}

func parseTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t
		}
	}
	return nil
}
