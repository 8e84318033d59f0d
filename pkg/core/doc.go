// Package core defines the shared language of the cohortsql system.
//
// This package contains:
//   - The cohort query tree (Panel, SubPanel, PanelItem, Concept)
//   - Compilation inputs (CompilerOptions, QueryContext, Session)
//   - Dialect data (DialectConfig, PlaceholderStyle, ColumnType)
//   - Service configuration (AdapterConfig, TargetConfig)
//
// The Golden Rule: pkg/core imports ONLY stdlib and github.com/google/uuid.
// All other packages depend on core, not the reverse.
package core
