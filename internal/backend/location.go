package backend

import (
	"fmt"
	"net/http"
	"regexp"
)

// Location patterns of the supported backend dialects. Each has two groups:
// the collection segment and the resource id.
var (
	OSMLocationPattern    = regexp.MustCompile(`(?:/osm)?/nslcm/v1/(ns_instances|ns_lcm_op_occs)/([A-Za-z0-9\-]+)`)
	SOL005LocationPattern = regexp.MustCompile(`/(instances|ns_instances|ns_lcm_op_occs)/([A-Za-z0-9\-]+)`)
)

// Northbound collections.
const (
	CollectionNsInstances = "ns_instances"
	CollectionOpOccs      = "ns_lcm_op_occs"

	locationHeader = "location"
)

// LocationRewriter translates backend Location headers into the gateway
// namespace /{type}/{orchestratorId}/{collection}/{id}.
type LocationRewriter struct {
	Pattern          *regexp.Regexp
	OrchestratorType string
	OrchestratorID   string

	// OnlyOpOccs rewrites every match into the operation collection.
	OnlyOpOccs bool
}

// Rewrite returns the northbound location for a backend location.
func (r LocationRewriter) Rewrite(location string) (string, bool) {
	if r.Pattern == nil || location == "" {
		return "", false
	}
	m := r.Pattern.FindStringSubmatch(location)
	if m == nil {
		return "", false
	}

	collection := CollectionNsInstances
	if r.OnlyOpOccs || m[1] == CollectionOpOccs {
		collection = CollectionOpOccs
	}
	return Location(r.OrchestratorType, r.OrchestratorID, collection, m[2]), true
}

// Headers returns the northbound headers for a backend response. A missing
// or unrecognized Location yields no header.
func (r LocationRewriter) Headers(h http.Header) map[string]string {
	headers := map[string]string{}
	if h == nil {
		return headers
	}
	if loc, ok := r.Rewrite(h.Get("Location")); ok {
		headers[locationHeader] = loc
	}
	return headers
}

// Location formats a northbound resource location.
func Location(orchestratorType, orchestratorID, collection, id string) string {
	return fmt.Sprintf("/%s/%s/%s/%s", orchestratorType, orchestratorID, collection, id)
}
