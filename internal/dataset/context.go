// Package dataset compiles patient-level extracts over a cached cohort.
//
// Every shape compiler composes the same four parts:
//
//	WITH cohort AS ( ... ), dataset AS ( ... ), filter AS ( ... ) SELECT ...
//
// The cohort CTE comes from a cohort.Preparer, the dataset CTE from
// admin-authored or compiled SQL, and the filter CTE applies the shape's
// date or column restrictions. The final select joins filter to cohort.
package dataset

import (
	"github.com/google/uuid"

	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/schema"
)

// Parameter names bound by the shape compilers.
const (
	ParamEarly = "early"
	ParamLate  = "late"
)

// ExecutionContext is a compiled extract ready to run. QueryPrelude runs
// before CompiledQuery and QueryEpilogue after it, on the same connection.
type ExecutionContext struct {
	Shape        schema.Shape
	QueryContext core.QueryContext
	// DatasetID is the stored dataset query id, if any.
	DatasetID uuid.UUID

	CompiledQuery string
	QueryPrelude  []string
	QueryEpilogue []string

	// Parameters lists every bound value by name, including the session
	// flags. Args holds only the driver arguments CompiledQuery references.
	Parameters []core.QueryParameter
	Args       []any

	// FieldSelectors lists the emitted columns. Set by demographic extracts.
	FieldSelectors []schema.FieldSelector
}

// Parameter returns the value bound to name.
func (e ExecutionContext) Parameter(name string) (any, bool) {
	for _, p := range e.Parameters {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// DatasetQuery is an admin-defined dataset.
type DatasetQuery struct {
	ID          uuid.UUID
	UniversalID string
	Shape       schema.Shape
	// SQLStatement selects the dataset rows. It must expose personId, and
	// encounterId when joined to a panel.
	SQLStatement string
	// SQLFieldDate is the date column of a dynamic dataset. Empty means the
	// dataset is not date filtered.
	SQLFieldDate string
}

// DatasetCompilerContext is the input of DatasetCompiler.
type DatasetCompilerContext struct {
	QueryContext core.QueryContext
	DatasetQuery DatasetQuery
	// JoinToPanel aligns rows to the encounters matched by Panel instead of
	// the whole patient.
	JoinToPanel bool
	Panel       core.Panel
}

// DemographicQuery is the site's demographic dataset.
type DemographicQuery struct {
	SQLStatement string
}

// DemographicCompilerContext is the input of DemographicCompiler.
type DemographicCompilerContext struct {
	QueryContext     core.QueryContext
	DemographicQuery DemographicQuery
}

// ConceptDatasetCompilerContext is the input of ConceptDatasetCompiler.
type ConceptDatasetCompilerContext struct {
	QueryContext    core.QueryContext
	Concept         core.Concept
	Specializations []core.Specialization
}

// PanelDatasetCompilerContext is the input of PanelDatasetCompiler.
type PanelDatasetCompilerContext struct {
	QueryContext core.QueryContext
	Panel        core.Panel
}
