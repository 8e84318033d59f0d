// Package config provides target configuration shared by the CLI and the
// engine. It is decoupled from cobra and koanf so library callers can
// validate a target without loading a project file.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/cohortsql/pkg/adapter"
	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/dialect"
)

// DefaultSchemaForType returns the default schema for a database type.
// It looks up the dialect in the registry; if not found, returns "main" as fallback.
func DefaultSchemaForType(dbType string) string {
	if d, ok := dialect.Get(dbType); ok && d.DefaultSchema != "" {
		return d.DefaultSchema
	}
	return "main"
}

// ValidateTarget checks if the target configuration is valid.
// It uses the adapter registry to determine which adapter types are available.
func ValidateTarget(t *core.TargetConfig) error {
	if t == nil {
		return fmt.Errorf("target is required")
	}
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}

	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// DialectForTarget returns the SQL dialect used to compile statements for t.
func DialectForTarget(t *core.TargetConfig) (*dialect.Dialect, error) {
	if t == nil || t.Type == "" {
		return nil, dialect.ErrDialectRequired
	}
	return dialect.Lookup(strings.ToLower(t.Type))
}
