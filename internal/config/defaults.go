package config

import (
	"strings"

	"github.com/leapstack-labs/cohortsql/pkg/core"
)

// Default configuration values.
const (
	DefaultTargetType = "duckdb"
	DefaultStateFile  = ".cohortsql/cohorts.db"
)

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *core.TargetConfig) {
	if t == nil {
		return
	}

	t.Type = strings.ToLower(t.Type)

	switch t.Type {
	case "postgres":
		if t.Port == 0 {
			t.Port = 5432
		}
	case "mysql", "mariadb":
		if t.Port == 0 {
			t.Port = 3306
		}
		// MySQL has no schemas below the database.
		if t.Schema == "" {
			t.Schema = t.Database
		}
	}

	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}
}
