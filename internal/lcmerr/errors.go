// Package lcmerr defines the closed error taxonomy shared by the drivers,
// the driver manager, the repositories and the notification pipeline.
//
// Every error that crosses a driver boundary belongs to exactly one kind.
// The kind decides the HTTP status the northbound router answers with.
// Not-found errors can be specialized (NS, NSD, operation, ...); a specialized
// error still matches ErrResourceNotFound under errors.Is.
//
// Example:
//
//	_, _, err := drv.GetNs(ctx, nsID, driver.Args{})
//	if errors.Is(err, lcmerr.ErrNsNotFound) {
//	    // the backend does not know nsID
//	}
//	status := lcmerr.HTTPStatus(err)
package lcmerr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kinds of the taxonomy.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrResourceNotFound = errors.New("resource not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrConflict         = errors.New("conflict")
	ErrUnprocessable    = errors.New("unprocessable entity")
	ErrServerError      = errors.New("server error")
	ErrNotImplemented   = errors.New("not implemented")
)

// Not-found specializations.
var (
	ErrOrchestratorNotFound = errors.New("orchestrator not found")
	ErrCredentialsNotFound  = errors.New("credentials not found")
	ErrNsNotFound           = errors.New("ns instance not found")
	ErrNsdNotFound          = errors.New("ns descriptor not found")
	ErrNsOpNotFound         = errors.New("ns lcm operation not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrVimNotFound          = errors.New("vim not found")
	ErrVnfNotFound          = errors.New("vnf instance not found")
	ErrVnfPkgNotFound       = errors.New("vnf package not found")
)

// Error is a taxonomy error. Kind is one of the package kinds, Reason an
// optional narrower sentinel (a not-found specialization or a caller
// defined cause) and ID the identifier the error is about.
type Error struct {
	Kind        error
	Reason      error
	ID          string
	Description string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Reason != nil {
		return e.Reason.Error()
	}
	return e.Kind.Error()
}

// Unwrap exposes both the reason and the kind to errors.Is.
func (e *Error) Unwrap() []error {
	if e.Reason != nil {
		return []error{e.Reason, e.Kind}
	}
	return []error{e.Kind}
}

// New returns an error of the given kind.
func New(kind error, description string) error {
	return &Error{Kind: kind, Description: description}
}

// WithReason returns an error of the given kind that also matches reason.
func WithReason(kind, reason error, description string) error {
	return &Error{Kind: kind, Reason: reason, Description: description}
}

// BadRequest returns an ErrBadRequest error.
func BadRequest(format string, args ...any) error {
	return New(ErrBadRequest, fmt.Sprintf(format, args...))
}

// ServerError returns an ErrServerError error.
func ServerError(format string, args ...any) error {
	return New(ErrServerError, fmt.Sprintf(format, args...))
}

// NotImplemented reports an operation a backend type does not support.
func NotImplemented(operation, backendType string) error {
	return New(ErrNotImplemented, fmt.Sprintf("%s is not supported by %s backends.", operation, backendType))
}

func notFound(reason error, id, description string) error {
	return &Error{Kind: ErrResourceNotFound, Reason: reason, ID: id, Description: description}
}

// OrchestratorNotFound reports an unknown orchestrator id.
func OrchestratorNotFound(id string) error {
	return notFound(ErrOrchestratorNotFound, id, fmt.Sprintf("NFVO %s not found.", id))
}

// CredentialsNotFound reports an orchestrator registered without credentials.
func CredentialsNotFound(id string) error {
	return notFound(ErrCredentialsNotFound, id, fmt.Sprintf("Credentials not found for NFVO %s.", id))
}

// NsNotFound reports an unknown NS instance.
func NsNotFound(id string) error {
	return notFound(ErrNsNotFound, id, fmt.Sprintf("NS instance %s not found.", id))
}

// NsdNotFound reports an unknown NS descriptor.
func NsdNotFound(id string) error {
	return notFound(ErrNsdNotFound, id, fmt.Sprintf("NS descriptor %s not found.", id))
}

// NsOpNotFound reports an unknown NS LCM operation occurrence.
func NsOpNotFound(id string) error {
	return notFound(ErrNsOpNotFound, id, fmt.Sprintf("NS LCM operation %s not found.", id))
}

// SubscriptionNotFound reports an unknown subscription.
func SubscriptionNotFound(id string) error {
	return notFound(ErrSubscriptionNotFound, id, fmt.Sprintf("Subscription %s not found.", id))
}

// VimNotFound reports a backend without any VIM account.
func VimNotFound() error {
	return notFound(ErrVimNotFound, "", "Vim not found.")
}

// VnfNotFound reports an unknown VNF instance.
func VnfNotFound(id string) error {
	return notFound(ErrVnfNotFound, id, fmt.Sprintf("VNF instance %s not found.", id))
}

// VnfPkgNotFound reports an unknown VNF package.
func VnfPkgNotFound(id string) error {
	return notFound(ErrVnfPkgNotFound, id, fmt.Sprintf("VNF package %s not found.", id))
}

var statusKinds = map[int]error{
	http.StatusBadRequest:          ErrBadRequest,
	http.StatusUnauthorized:        ErrUnauthorized,
	http.StatusForbidden:           ErrForbidden,
	http.StatusNotFound:            ErrResourceNotFound,
	http.StatusMethodNotAllowed:    ErrMethodNotAllowed,
	http.StatusConflict:            ErrConflict,
	http.StatusUnprocessableEntity: ErrUnprocessable,
}

// FromStatus maps a non-2xx backend status to its kind. Statuses outside
// the mapped set become ServerError carrying the raw body.
func FromStatus(code int, body []byte) error {
	description := strings.TrimSpace(string(body))
	kind, ok := statusKinds[code]
	if !ok {
		if description == "" {
			description = fmt.Sprintf("backend returned status %d", code)
		}
		return New(ErrServerError, description)
	}
	if description == "" {
		description = kind.Error()
	}
	return New(kind, description)
}

// Remap replaces a generic ResourceNotFound with the typed specialization.
// Any other error, including an already specialized not-found, is returned
// unchanged.
func Remap(err, typed error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Kind == ErrResourceNotFound && e.Reason == nil {
		return typed
	}
	return err
}

// HTTPStatus returns the transport status for err.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrResourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnprocessable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotImplemented):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Description returns the message placed in the northbound error body.
func Description(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}
