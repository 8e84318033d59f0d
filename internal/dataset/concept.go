package dataset

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/cohortsql/internal/cohort"
	"github.com/leapstack-labs/cohortsql/internal/compiler"
	"github.com/leapstack-labs/cohortsql/pkg/core"
)

// ConceptDatasetCompiler extracts the rows of a single ad-hoc concept.
type ConceptDatasetCompiler struct {
	builder
}

// NewConceptDatasetCompiler creates a ConceptDatasetCompiler.
func NewConceptDatasetCompiler(pc *compiler.PanelCompiler, p cohort.Preparer, logger *slog.Logger) (*ConceptDatasetCompiler, error) {
	b, err := newBuilder(pc, p, logger)
	if err != nil {
		return nil, err
	}
	return &ConceptDatasetCompiler{builder: b}, nil
}

// BuildConceptDatasetSql compiles cc's concept as a one-item panel and
// returns its rows for the exported cohort.
func (c *ConceptDatasetCompiler) BuildConceptDatasetSql(ctx context.Context, cc ConceptDatasetCompilerContext) (ExecutionContext, error) {
	panel := core.Panel{
		Type:         core.PanelPatient,
		IncludePanel: true,
		SubPanels: []core.SubPanel{{
			IncludeSubPanel: true,
			MinimumCount:    1,
			Items: []core.PanelItem{{
				Concept:         cc.Concept,
				Specializations: cc.Specializations,
			}},
		}},
	}
	return c.itemExtract(ctx, cc.QueryContext, panel)
}

// PanelDatasetCompiler extracts the rows of every item of one panel.
type PanelDatasetCompiler struct {
	builder
}

// NewPanelDatasetCompiler creates a PanelDatasetCompiler.
func NewPanelDatasetCompiler(pc *compiler.PanelCompiler, p cohort.Preparer, logger *slog.Logger) (*PanelDatasetCompiler, error) {
	b, err := newBuilder(pc, p, logger)
	if err != nil {
		return nil, err
	}
	return &PanelDatasetCompiler{builder: b}, nil
}

// BuildPanelDatasetSql returns the item rows of pc's panel for the exported
// cohort. The panel's own date filter applies to each item.
func (c *PanelDatasetCompiler) BuildPanelDatasetSql(ctx context.Context, pc PanelDatasetCompilerContext) (ExecutionContext, error) {
	return c.itemExtract(ctx, pc.QueryContext, pc.Panel)
}
