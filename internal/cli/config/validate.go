package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/cohortsql/internal/cohort"
	intconfig "github.com/leapstack-labs/cohortsql/internal/config"
	"github.com/leapstack-labs/cohortsql/internal/engine"
	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/dialect"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case OutputText, OutputJSON:
	default:
		return fmt.Errorf("unknown output format %q (expected %s or %s)", c.OutputFormat, OutputText, OutputJSON)
	}

	if _, err := engine.ParseQueryStrategy(c.QueryStrategy); err != nil {
		return err
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative")
	}

	switch cohort.Strategy(c.Cohort.Strategy) {
	case cohort.StrategyShared, cohort.StrategyTempTable:
	default:
		return fmt.Errorf("unknown cohort strategy %q (expected %s or %s)",
			c.Cohort.Strategy, cohort.StrategyShared, cohort.StrategyTempTable)
	}
	if c.Cohort.BatchSize <= 0 {
		return fmt.Errorf("cohort.batch_size must be positive")
	}

	if _, err := core.ParseSessionType(c.Session.Type); err != nil {
		return err
	}

	if c.Dialect != "" {
		if _, err := dialect.Lookup(strings.ToLower(c.Dialect)); err != nil {
			return err
		}
	}
	return nil
}

// ResolveDialect returns the dialect statements are compiled for: the
// configured dialect if set, otherwise the target's.
func (c *Config) ResolveDialect() (*dialect.Dialect, error) {
	if c.Dialect != "" {
		return dialect.Lookup(strings.ToLower(c.Dialect))
	}
	return intconfig.DialectForTarget(c.Target)
}

// CoreSession converts the session settings.
func (c *Config) CoreSession() (core.Session, error) {
	st, err := core.ParseSessionType(c.Session.Type)
	if err != nil {
		return core.Session{}, err
	}
	return core.Session{Identified: c.Session.Identified, Type: st}, nil
}
