// Package backend is the HTTP adapter every driver talks to its orchestrator
// through. It builds requests relative to a base URL, forwards query
// parameters verbatim, maps non-2xx statuses to the lcmerr taxonomy and
// decodes bodies by content type.
package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/piwi3910/msolo/internal/lcmerr"
)

const (
	// DefaultTimeout bounds every backend call when Config.Timeout is zero.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent when Config.UserAgent is empty.
	DefaultUserAgent = "msolo-gateway/1.0"

	contentTypeJSON = "application/json"
)

// ErrTransport marks failures where no HTTP response was received.
// Such errors are ServerError-class.
var ErrTransport = errors.New("backend transport failure")

// Config configures a backend Client.
type Config struct {
	// BaseURL is prefixed to every request path.
	BaseURL string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// TLSSkipVerify disables certificate verification for HTTPS backends.
	TLSSkipVerify bool

	// UserAgent is sent on every request.
	UserAgent string
}

// Request describes one backend call.
type Request struct {
	Method string

	// Path is appended to the base URL. A leading slash is optional.
	Path string

	// Query is forwarded verbatim.
	Query url.Values

	// Body is JSON-encoded when non-nil.
	Body any

	// Raw is sent verbatim instead of Body when non-nil. The caller sets
	// the Content-Type through Header.
	Raw []byte

	// Header carries extra headers such as Authorization.
	Header http.Header

	// Bare suppresses the JSON Content-Type and Accept headers.
	Bare bool
}

// Response is a successful backend response.
type Response struct {
	StatusCode int
	Header     http.Header

	// Body is the decoded body: JSON and YAML as generic values, any other
	// content type as a string, nil when the response has no body.
	Body any

	raw         []byte
	contentType string
}

// Into decodes the response body into v.
func (r *Response) Into(v any) error {
	if r.Body == nil {
		return fmt.Errorf("response has no body")
	}
	if r.contentType == contentTypeJSON {
		return json.Unmarshal(r.raw, v)
	}
	raw, err := json.Marshal(r.Body)
	if err != nil {
		return fmt.Errorf("failed to re-encode %s body: %w", r.contentType, err)
	}
	return json.Unmarshal(raw, v)
}

// Client performs backend calls.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a backend client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.TLSSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // backends commonly use self-signed certificates
	}

	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger,
	}, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do performs req. Transport failures are returned as ServerError matching
// ErrTransport, non-2xx responses as the kind lcmerr.FromStatus maps them to.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		recordCall(req.Method, 0, duration)
		c.logger.Warn("backend call failed",
			zap.String("method", req.Method),
			zap.String("url", httpReq.URL.Redacted()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, lcmerr.WithReason(lcmerr.ErrServerError, ErrTransport,
			fmt.Sprintf("backend unreachable: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	recordCall(req.Method, resp.StatusCode, duration)
	c.logger.Debug("backend call",
		zap.String("method", req.Method),
		zap.String("url", httpReq.URL.Redacted()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, lcmerr.WithReason(lcmerr.ErrServerError, ErrTransport,
			fmt.Sprintf("failed to read backend response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, lcmerr.FromStatus(resp.StatusCode, raw)
	}

	return decodeResponse(resp, raw)
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + "/" + strings.TrimPrefix(req.Path, "/"))
	if err != nil {
		return nil, lcmerr.ServerError("invalid backend path %q: %v", req.Path, err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for key, values := range req.Query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if req.Raw != nil {
		body = bytes.NewReader(req.Raw)
	} else if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, lcmerr.BadRequest("failed to encode request body: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, lcmerr.ServerError("failed to create backend request: %v", err)
	}

	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if !req.Bare {
		httpReq.Header.Set("Accept", contentTypeJSON)
		if req.Body != nil && req.Raw == nil {
			httpReq.Header.Set("Content-Type", contentTypeJSON)
		}
	}
	httpReq.Header.Set("User-Agent", c.userAgent)

	return httpReq, nil
}

// decodeResponse decodes raw according to the response content type.
func decodeResponse(resp *http.Response, raw []byte) (*Response, error) {
	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, raw: raw}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}

	mediaType := ""
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		parsed, _, err := mime.ParseMediaType(ct)
		if err == nil {
			mediaType = parsed
		}
	}
	out.contentType = mediaType

	switch {
	case mediaType == contentTypeJSON || strings.HasSuffix(mediaType, "+json"):
		out.contentType = contentTypeJSON
		if err := json.Unmarshal(raw, &out.Body); err != nil {
			return nil, lcmerr.ServerError("failed to decode backend JSON response: %v", err)
		}
	case mediaType == "application/yaml" || mediaType == "text/yaml" || mediaType == "application/x-yaml":
		if err := yaml.Unmarshal(raw, &out.Body); err != nil {
			return nil, lcmerr.ServerError("failed to decode backend YAML response: %v", err)
		}
	case mediaType == "":
		// Backends answering without a content type send nothing usable.
	default:
		out.Body = string(raw)
	}

	return out, nil
}
