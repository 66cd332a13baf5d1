// Package models contains the uniform northbound data model of the msolo
// gateway. Every driver, whatever backend dialect it speaks, returns these
// shapes so that the northbound interface stays stable across OSM, ONAP,
// EVER and 5GR-SO orchestrators.
package models

import (
	"fmt"
	"strings"
	"time"
)

// OrchestratorType is the orchestrator family a request is addressed to.
type OrchestratorType string

// Orchestrator families.
const (
	// NFVO is the NFV orchestrator family, served under /nfvo.
	NFVO OrchestratorType = "nfvo"

	// RANO is the RAN orchestrator family, served under /rano.
	RANO OrchestratorType = "rano"
)

// OrchestratorTypes lists every family the gateway serves.
var OrchestratorTypes = []OrchestratorType{NFVO, RANO}

// Valid reports whether t is a known orchestrator family.
func (t OrchestratorType) Valid() bool {
	return t == NFVO || t == RANO
}

// ParseOrchestratorType parses a family name case-insensitively.
func ParseOrchestratorType(s string) (OrchestratorType, error) {
	t := OrchestratorType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown orchestrator type %q", s)
	}
	return t, nil
}

// Orchestrator is a registered backend orchestrator.
//
// Example:
//
//	orch := &Orchestrator{
//	    ID:   "osm-lab",
//	    Name: "OSM lab instance",
//	    Type: "OSM",
//	    Site: "turin",
//	}
type Orchestrator struct {
	// ID is the gateway-wide identifier of the orchestrator.
	ID string `json:"id" yaml:"id" validate:"required"`

	// Name is the human-readable name.
	Name string `json:"name" yaml:"name"`

	// Type is the backend tag selecting the driver ("osm", "onap", ...).
	// It is compared case-insensitively.
	Type string `json:"type" yaml:"type" validate:"required"`

	// Site is the site the orchestrator manages.
	Site string `json:"site,omitempty" yaml:"site,omitempty"`

	// URI is the northbound URI the orchestrator is reachable at, informative only.
	URI string `json:"uri,omitempty" yaml:"uri,omitempty"`

	// CreatedAt is the registration time.
	CreatedAt *time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`

	// UpdatedAt is the time of the last registration change.
	UpdatedAt *time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// BackendType returns the case-folded backend tag.
func (o *Orchestrator) BackendType() string {
	return strings.ToLower(strings.TrimSpace(o.Type))
}

// Credentials are the connection parameters of an orchestrator.
// They are never returned to northbound clients.
type Credentials struct {
	// OrchestratorID is the orchestrator the credentials belong to.
	OrchestratorID string `json:"orchestratorId" yaml:"orchestratorId"`

	// Host is the backend host name or address.
	Host string `json:"host" yaml:"host" validate:"required"`

	// Port is the backend port. Zero selects the driver default.
	Port int `json:"port,omitempty" yaml:"port,omitempty" validate:"gte=0,lte=65535"`

	// User is the login user, when the backend requires authentication.
	User string `json:"user,omitempty" yaml:"user,omitempty"`

	// Password is the login password.
	Password string `json:"-" yaml:"-"`

	// Project is the backend project or tenant.
	Project string `json:"project,omitempty" yaml:"project,omitempty"`
}

// VimAccount is a VIM registered on an NFVO, as the NFVO reports it.
type VimAccount struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	VimType    string `json:"vim_type"`
	VimURL     string `json:"vim_url"`
	TenantName string `json:"vim_tenant_name"`
}
