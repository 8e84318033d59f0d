// Package config provides configuration management for the cohortsql CLI.
//
// The shared target type is defined in pkg/core and re-exported here via a
// type alias so CLI code does not need to import pkg/core for it.
package config

import (
	sharedcfg "github.com/leapstack-labs/cohortsql/internal/config"
	"github.com/leapstack-labs/cohortsql/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = core.TargetConfig

// Config holds all CLI configuration options.
type Config struct {
	// Dialect compiles statements for a dialect other than the target's.
	Dialect       string               `koanf:"dialect"`
	Environment   string               `koanf:"environment"`
	Verbose       bool                 `koanf:"verbose"`
	OutputFormat  string               `koanf:"output"`
	QueryStrategy string               `koanf:"query_strategy"`
	Parallelism   int                  `koanf:"parallelism"`
	Compiler      core.CompilerOptions `koanf:"compiler"`
	Cohort        CohortConfig         `koanf:"cohort"`
	Session       SessionConfig        `koanf:"session"`
	Target        *TargetConfig        `koanf:"target"`
	Environments  map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory holding the config file, or the working
	// directory when there is none.
	ProjectRoot string `koanf:"-"`
}

// CohortConfig configures how cached cohorts reach the warehouse.
type CohortConfig struct {
	// Strategy is shared or temp_table.
	Strategy    string `koanf:"strategy"`
	StorePath   string `koanf:"store"`
	BatchSize   int    `koanf:"batch_size"`
	ExportLimit int    `koanf:"export_limit"`
}

// SessionConfig describes the caller statements are compiled for.
type SessionConfig struct {
	Identified bool   `koanf:"identified"`
	Type       string `koanf:"type"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	Dialect string        `koanf:"dialect"`
	Target  *TargetConfig `koanf:"target"`
}

// Default configuration values.
const (
	DefaultStateFile      = sharedcfg.DefaultStateFile
	DefaultEnv            = "dev"
	DefaultOutput         = OutputText
	DefaultQueryStrategy  = "cte"
	DefaultCohortStrategy = "temp_table"
	DefaultSessionType    = "research"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)
