package driver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/piwi3910/msolo/internal/models"
)

var (
	// ErrUnsupportedBackend is returned when an orchestrator's backend tag
	// has no registered factory. It is a configuration error, reported as
	// ServerError.
	ErrUnsupportedBackend = errors.New("unsupported backend type")

	// ErrInvalidTable is returned by Table.Validate.
	ErrInvalidTable = errors.New("invalid driver table")
)

// Table maps orchestrator family and backend tag to a factory.
type Table map[models.OrchestratorType]map[string]Factory

// Validate checks that every family is known and every tag is a
// non-empty, lower-case name bound to a non-nil factory.
func (t Table) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: no backend types registered", ErrInvalidTable)
	}
	for orchType, tags := range t {
		if !orchType.Valid() {
			return fmt.Errorf("%w: unknown orchestrator type %q", ErrInvalidTable, orchType)
		}
		for tag, factory := range tags {
			if strings.TrimSpace(tag) == "" {
				return fmt.Errorf("%w: empty backend tag under %s", ErrInvalidTable, orchType)
			}
			if tag != strings.ToLower(tag) {
				return fmt.Errorf("%w: backend tag %q under %s must be lower case", ErrInvalidTable, tag, orchType)
			}
			if factory == nil {
				return fmt.Errorf("%w: nil factory for %s/%s", ErrInvalidTable, orchType, tag)
			}
		}
	}
	return nil
}

// Lookup returns the factory for a backend tag, compared case-insensitively.
func (t Table) Lookup(orchType models.OrchestratorType, backendType string) (Factory, bool) {
	factory, ok := t[orchType][strings.ToLower(strings.TrimSpace(backendType))]
	return factory, ok
}

// Tags returns the sorted backend tags registered for a family.
func (t Table) Tags(orchType models.OrchestratorType) []string {
	tags := make([]string, 0, len(t[orchType]))
	for tag := range t[orchType] {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
