// Package compiler translates Panel trees into parameterized cohort SQL.
//
// A PanelCompiler is built per request. It holds no mutable state, so a
// single instance may compile any number of panels. Clause builders for
// PanelItems, SubPanels and sequences live alongside the orchestration in
// this package and are never exported.
package compiler

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/dialect"
	"github.com/leapstack-labs/cohortsql/pkg/sqlbuild"
	"github.com/leapstack-labs/cohortsql/pkg/sqlguard"
)

// Context parameter names bound by BuildContextQueryParameters.
const (
	ParamIsIdentified = "IsIdentified"
	ParamIsResearch   = "IsResearch"
	ParamIsQI         = "IsQI"
)

// PanelCompiler compiles Panels for one dialect, compiler configuration and session.
type PanelCompiler struct {
	dialect *dialect.Dialect
	opts    core.CompilerOptions
	session core.Session
	logger  *slog.Logger
}

// New creates a PanelCompiler. Empty options fall back to defaults and a nil
// logger discards output.
func New(d *dialect.Dialect, opts core.CompilerOptions, session core.Session, logger *slog.Logger) (*PanelCompiler, error) {
	if d == nil {
		return nil, dialect.ErrDialectRequired
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PanelCompiler{
		dialect: d,
		opts:    opts.WithDefaults(),
		session: session,
		logger:  logger,
	}, nil
}

// Dialect returns the target dialect.
func (c *PanelCompiler) Dialect() *dialect.Dialect { return c.dialect }

// Options returns the effective compiler options.
func (c *PanelCompiler) Options() core.CompilerOptions { return c.opts }

// BuildPanelSql returns the SQL selecting the persons matched by panel.
// A panel type the compiler does not recognize yields an empty statement.
func (c *PanelCompiler) BuildPanelSql(panel core.Panel) (sqlbuild.Stmt, error) {
	var (
		stmt sqlbuild.Stmt
		err  error
	)
	switch panel.Type {
	case core.PanelPatient:
		stmt, err = c.patientPanel(panel)
	case core.PanelSequence:
		stmt, err = c.sequencePanel(panel)
	default:
		c.logger.Debug("skipping panel of unknown type", "panel", panel.Index, "type", panel.Type.String())
		return sqlbuild.Stmt{}, nil
	}
	if err != nil {
		return sqlbuild.Stmt{}, err
	}
	if err := c.guard(panel.Index, stmt.String()); err != nil {
		return sqlbuild.Stmt{}, err
	}
	return stmt, nil
}

// wrappedPanel is a compiled panel wrapped for set composition.
type wrappedPanel struct {
	panel    core.Panel
	stmt     sqlbuild.Stmt
	estimate int
}

// BuildCteSql returns the cohort statement for panels: inclusion panels
// intersected in ascending order of estimated size, then exclusion panels
// removed.
func (c *PanelCompiler) BuildCteSql(panels []core.Panel) (sqlbuild.Stmt, error) {
	inclusions, exclusions, err := c.wrapPanels(panels)
	if err != nil {
		return sqlbuild.Stmt{}, err
	}

	parts := []sqlbuild.Stmt{inclusions[0].stmt}
	if len(inclusions) > 1 {
		intersect, err := c.dialect.Intersect()
		if err != nil {
			return sqlbuild.Stmt{}, err
		}
		for _, w := range inclusions[1:] {
			parts = append(parts, sqlbuild.Text(" "+intersect+" "), w.stmt)
		}
	}
	if len(exclusions) > 0 {
		except, err := c.dialect.Except()
		if err != nil {
			return sqlbuild.Stmt{}, err
		}
		for _, w := range exclusions {
			parts = append(parts, sqlbuild.Text(" "+except+" "), w.stmt)
		}
	}

	c.logger.Debug("compiled cohort",
		"inclusions", len(inclusions),
		"exclusions", len(exclusions),
		"dialect", c.dialect.GetName())
	return sqlbuild.Concat(parts...), nil
}

// wrapPanels compiles and wraps every panel, partitioned into inclusions
// (sorted by estimate) and exclusions (in input order).
func (c *PanelCompiler) wrapPanels(panels []core.Panel) (inclusions, exclusions []wrappedPanel, err error) {
	if !slices.ContainsFunc(panels, func(p core.Panel) bool { return p.IncludePanel }) {
		return nil, nil, core.Configurationf("a cohort requires at least one inclusion panel")
	}

	for _, p := range panels {
		stmt, err := c.BuildPanelSql(p)
		if err != nil {
			return nil, nil, fmt.Errorf("panel %d: %w", p.Index, err)
		}
		if stmt.IsEmpty() {
			return nil, nil, core.Configurationf("panel %d: unsupported panel type %s", p.Index, p.Type)
		}
		w := wrappedPanel{
			panel:    p,
			stmt:     c.wrap(p.Index, stmt),
			estimate: EstimatedCount(p),
		}
		if p.IncludePanel {
			inclusions = append(inclusions, w)
		} else {
			exclusions = append(exclusions, w)
		}
	}

	slices.SortStableFunc(inclusions, func(a, b wrappedPanel) int {
		return cmp.Compare(a.estimate, b.estimate)
	})
	return inclusions, exclusions, nil
}

// wrap renders SELECT P<i>.<person> FROM ( stmt ) AS P<i>.
func (c *PanelCompiler) wrap(index int, stmt sqlbuild.Stmt) sqlbuild.Stmt {
	alias := fmt.Sprintf("P%d", index)
	return sqlbuild.Concat(
		sqlbuild.Textf("SELECT %s.%s FROM ", alias, c.opts.FieldPersonID),
		sqlbuild.Subquery(stmt, alias),
	)
}

// BuildContextQueryParameters returns the session flags bound to every
// downstream statement.
func (c *PanelCompiler) BuildContextQueryParameters() []core.QueryParameter {
	return []core.QueryParameter{
		{Name: ParamIsIdentified, Value: c.session.Identified},
		{Name: ParamIsResearch, Value: c.session.Type == core.SessionResearch},
		{Name: ParamIsQI, Value: c.session.Type == core.SessionQualityImprovement},
	}
}

// BuildCohortSql returns a statement selecting the distinct cohort person ids.
func (c *PanelCompiler) BuildCohortSql(panels []core.Panel) (sqlbuild.Stmt, error) {
	cte, err := c.BuildCteSql(panels)
	if err != nil {
		return sqlbuild.Stmt{}, err
	}
	return sqlbuild.Concat(
		sqlbuild.Text("WITH cohort AS ( "),
		cte,
		sqlbuild.Textf(" ) SELECT cohort.%s FROM cohort", c.opts.FieldPersonID),
	), nil
}

// BuildCountSql returns a statement counting the cohort.
func (c *PanelCompiler) BuildCountSql(panels []core.Panel) (sqlbuild.Stmt, error) {
	cte, err := c.BuildCteSql(panels)
	if err != nil {
		return sqlbuild.Stmt{}, err
	}
	return sqlbuild.Concat(
		sqlbuild.Text("WITH cohort AS ( "),
		cte,
		sqlbuild.Text(" ) SELECT COUNT(*) AS PatientCount FROM cohort"),
	), nil
}

// BuildWrappedPanelSql returns a single panel wrapped as a person-id select.
// The parallel count strategy executes these one at a time.
func (c *PanelCompiler) BuildWrappedPanelSql(panel core.Panel) (sqlbuild.Stmt, error) {
	stmt, err := c.BuildPanelSql(panel)
	if err != nil {
		return sqlbuild.Stmt{}, err
	}
	if stmt.IsEmpty() {
		return sqlbuild.Stmt{}, core.Configurationf("panel %d: unsupported panel type %s", panel.Index, panel.Type)
	}
	return c.wrap(panel.Index, stmt), nil
}

func (c *PanelCompiler) guard(panel int, fragments ...string) error {
	err := sqlguard.Check(fragments...)
	if errors.Is(err, sqlguard.ErrIllegalCommand) {
		c.logger.Warn("rejected panel sql", "panel", panel, "reason", "illegal command")
	}
	return err
}
