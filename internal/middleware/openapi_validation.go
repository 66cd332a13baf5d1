// Package middleware provides the HTTP middleware of the NBI: request
// validation against the embedded OpenAPI document, security headers and
// redis-backed rate limiting.
package middleware

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/lcmerr"
)

// OpenAPISpecs embeds the NBI OpenAPI document.
//
//go:embed specs/*.yaml
var OpenAPISpecs embed.FS

// EmbeddedSpecPath is the path of the NBI document inside OpenAPISpecs.
const EmbeddedSpecPath = "specs/nbi.yaml"

// ValidationConfig holds configuration for the NBI request validator.
type ValidationConfig struct {
	// ValidateRequest enables request validation against the OpenAPI document.
	ValidateRequest bool

	// ExcludePaths lists path prefixes that are never validated
	// (probes and the metrics endpoint).
	ExcludePaths []string

	Logger *zap.Logger
}

// DefaultValidationConfig validates every request except the probes and
// the default metrics path.
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		ValidateRequest: true,
		ExcludePaths:    []string{"/health", "/ready", "/metrics"},
	}
}

// OpenAPIValidator rejects NBI requests whose path parameters or JSON body
// do not match the loaded document. Requests for routes the document does
// not describe pass through to the router.
type OpenAPIValidator struct {
	config *ValidationConfig
	logger *zap.Logger

	mu     sync.RWMutex
	doc    *openapi3.T
	router routers.Router
}

// NewOpenAPIValidator creates a validator with no document loaded. Until
// one is loaded the middleware passes every request through.
func NewOpenAPIValidator(cfg *ValidationConfig) (*OpenAPIValidator, error) {
	if cfg == nil {
		cfg = DefaultValidationConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAPIValidator{config: cfg, logger: logger}, nil
}

// LoadEmbeddedSpec loads the NBI document shipped with the binary.
func (v *OpenAPIValidator) LoadEmbeddedSpec() error {
	data, err := OpenAPISpecs.ReadFile(EmbeddedSpecPath)
	if err != nil {
		return fmt.Errorf("failed to read embedded OpenAPI spec: %w", err)
	}
	return v.LoadSpec(data)
}

// LoadSpec parses and installs an NBI document.
func (v *OpenAPIValidator) LoadSpec(data []byte) error {
	doc, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		return fmt.Errorf("failed to parse OpenAPI spec: %w", err)
	}
	return v.install(doc, "embedded")
}

// LoadSpecFromFile parses and installs the NBI document at path, replacing
// the embedded one.
func (v *OpenAPIValidator) LoadSpecFromFile(path string) error {
	doc, err := openapi3.NewLoader().LoadFromFile(path)
	if err != nil {
		return fmt.Errorf("failed to load OpenAPI spec from file: %w", err)
	}
	return v.install(doc, path)
}

func (v *OpenAPIValidator) install(doc *openapi3.T, source string) error {
	if err := doc.Validate(context.Background()); err != nil {
		return fmt.Errorf("invalid OpenAPI spec: %w", err)
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return fmt.Errorf("failed to create OpenAPI router: %w", err)
	}

	v.mu.Lock()
	v.doc, v.router = doc, router
	v.mu.Unlock()

	v.logger.Info("NBI document loaded",
		zap.String("source", source),
		zap.String("title", doc.Info.Title),
		zap.String("version", doc.Info.Version),
	)
	return nil
}

// Spec returns the loaded document, or nil.
func (v *OpenAPIValidator) Spec() *openapi3.T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.doc
}

func (v *OpenAPIValidator) isExcludedPath(path string) bool {
	for _, prefix := range v.config.ExcludePaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Middleware returns the gin handler. A rejected request gets 400 with the
// gateway error body naming the offending fields.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		v.mu.RLock()
		router := v.router
		v.mu.RUnlock()

		if router == nil || !v.config.ValidateRequest || v.isExcludedPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		if err := v.validate(c.Request, router); err != nil {
			v.logger.Info("request rejected by NBI document",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": lcmerr.Description(err)})
			return
		}
		c.Next()
	}
}

// validate checks req against its route. The body is buffered and handed
// back to req for the handler.
func (v *OpenAPIValidator) validate(req *http.Request, router routers.Router) error {
	route, pathParams, err := router.FindRoute(req)
	if err != nil {
		return nil
	}

	if req.Body != nil && req.ContentLength != 0 {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return lcmerr.BadRequest("Failed to read request body.")
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		defer func() { req.Body = io.NopCloser(bytes.NewReader(body)) }()
	}

	err = openapi3filter.ValidateRequest(req.Context(), &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			MultiError:         true,
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	})
	if err != nil {
		return lcmerr.BadRequest("%s", describeRequestError(err))
	}
	return nil
}

// describeRequestError renders kin-openapi validation errors as one client
// message, one sentence per distinct problem.
func describeRequestError(err error) string {
	msgs := collectRequestErrors(err, nil)
	if len(msgs) == 0 {
		return "Request validation failed."
	}
	return strings.Join(msgs, " ")
}

func collectRequestErrors(err error, msgs []string) []string {
	var msg string
	switch e := err.(type) {
	case openapi3.MultiError:
		for _, inner := range e {
			msgs = collectRequestErrors(inner, msgs)
		}
		return msgs
	case *openapi3filter.RequestError:
		switch e.Err.(type) {
		case openapi3.MultiError, *openapi3.SchemaError:
			if e.Parameter == nil {
				return collectRequestErrors(e.Err, msgs)
			}
		}
		msg = "Invalid request body."
		if e.Parameter != nil {
			msg = fmt.Sprintf("Invalid %s parameter %s.", e.Parameter.In, e.Parameter.Name)
		}
	case *openapi3.SchemaError:
		msg = describeSchemaError(e)
	default:
		msg = "Request validation failed."
	}

	for _, seen := range msgs {
		if seen == msg {
			return msgs
		}
	}
	return append(msgs, msg)
}

// describeSchemaError names the body field a schema violation points at.
func describeSchemaError(err *openapi3.SchemaError) string {
	field := strings.Join(err.JSONPointer(), ".")
	switch {
	case field == "":
		return "Invalid request body."
	case err.SchemaField == "required":
		return fmt.Sprintf("Missing required field %s.", field)
	case err.SchemaField == "type":
		return fmt.Sprintf("Field %s has the wrong type.", field)
	case err.SchemaField == "enum":
		return fmt.Sprintf("Field %s has an unsupported value.", field)
	default:
		return fmt.Sprintf("Field %s is invalid.", field)
	}
}
