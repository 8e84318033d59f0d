package compiler

import (
	"fmt"

	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/schema"
	"github.com/leapstack-labs/cohortsql/pkg/sqlbuild"
)

// cohortAlias is the alias of the cached cohort in a joined panel.
const cohortAlias = "_TC"

// step is one compiled SubPanel of a sequence: its items unioned and aliased.
type step struct {
	sub   core.SubPanel
	pos   int
	alias string
	stmt  sqlbuild.Stmt
}

func (s step) col(name string) string { return s.alias + "." + name }

func (s step) source() sqlbuild.Stmt {
	return sqlbuild.Concat(unionSource(s.stmt), sqlbuild.TableAlias(s.alias))
}

// steps compiles every SubPanel of panel into a step, in order.
func (c *PanelCompiler) steps(panel core.Panel) ([]step, error) {
	if len(panel.SubPanels) == 0 {
		return nil, core.Configurationf("panel %d has no items", panel.Index)
	}

	out := make([]step, 0, len(panel.SubPanels))
	for pos, sub := range panel.SubPanels {
		if len(sub.Items) == 0 {
			return nil, core.Configurationf("panel %d step %d has no items", panel.Index, pos)
		}
		if pos == 0 && !sub.IncludeSubPanel {
			return nil, core.Configurationf("panel %d: the first step of a sequence must be included", panel.Index)
		}

		items := make([]sqlbuild.Stmt, 0, len(sub.Items))
		for _, item := range sub.Items {
			sel, err := c.newItemSet(panel, pos, sub, item).sequenceSelect()
			if err != nil {
				return nil, err
			}
			items = append(items, sel.Render())
		}
		out = append(out, step{
			sub:   sub,
			pos:   pos,
			alias: fmt.Sprintf("_T%d", pos),
			stmt:  sqlbuild.Join(" UNION ALL ", items...),
		})
	}
	return out, nil
}

// sequencePanel joins each step to the one before it in SubPanel order and
// groups the result per person of the first step.
func (c *PanelCompiler) sequencePanel(panel core.Panel) (sqlbuild.Stmt, error) {
	steps, err := c.steps(panel)
	if err != nil {
		return sqlbuild.Stmt{}, err
	}

	first := steps[0]
	person := first.col(c.opts.FieldPersonID)
	sel := sqlbuild.NewSelect(unionSource(first.stmt), first.alias).
		WithColumns(sqlbuild.Text(person)).
		WithGroupBy(person)

	sel, err = c.joinSteps(panel, sel, steps)
	if err != nil {
		return sqlbuild.Stmt{}, err
	}

	c.logger.Debug("compiled sequence panel", "panel", panel.Index, "steps", len(steps))
	return sel.Render(), nil
}

// joinSteps appends the joins and count predicates for every step after the first.
func (c *PanelCompiler) joinSteps(panel core.Panel, sel sqlbuild.Select, steps []step) (sqlbuild.Select, error) {
	first := steps[0]
	if first.sub.HasCountFilter() {
		sel = sel.WithHaving(c.stepHaving(first))
	}
	for i := 1; i < len(steps); i++ {
		join, err := c.joinStep(panel, first, steps[i-1], steps[i])
		if err != nil {
			return sqlbuild.Select{}, err
		}
		sel = sel.WithJoin(join)
		if steps[i].sub.HasCountFilter() || !steps[i].sub.IncludeSubPanel {
			sel = sel.WithHaving(c.stepHaving(steps[i]))
		}
	}
	return sel, nil
}

// joinStep joins curr to prev. Included steps are inner joined; excluded
// steps are left joined and filtered out by their count predicate.
func (c *PanelCompiler) joinStep(panel core.Panel, first, prev, curr step) (sqlbuild.Stmt, error) {
	seq := curr.sub.JoinSequence
	prevDate := prev.col(seqDateColumn)
	currDate := curr.col(seqDateColumn)

	var cond sqlbuild.Stmt
	switch seq.Type {
	case core.SequenceEncounter:
		cond = sqlbuild.Textf("%s = %s", curr.col(c.opts.FieldEncounterID), prev.col(c.opts.FieldEncounterID))
	case core.SequenceEvent:
		cond = sqlbuild.Textf("%s = %s", curr.col(seqEventColumn), prev.col(seqEventColumn))
	case core.SequencePlusMinus:
		back, err := c.dialect.DateAdd(seq.DateIncrement, -seq.Increment, prevDate)
		if err != nil {
			return sqlbuild.Stmt{}, fmt.Errorf("panel %d step %d: %w", panel.Index, curr.pos, err)
		}
		forward, err := c.dialect.DateAdd(seq.DateIncrement, seq.Increment, prevDate)
		if err != nil {
			return sqlbuild.Stmt{}, fmt.Errorf("panel %d step %d: %w", panel.Index, curr.pos, err)
		}
		cond = sqlbuild.Textf("%s BETWEEN %s AND %s", currDate, back, forward)
	case core.SequenceWithinFollowing:
		forward, err := c.dialect.DateAdd(seq.DateIncrement, seq.Increment, prevDate)
		if err != nil {
			return sqlbuild.Stmt{}, fmt.Errorf("panel %d step %d: %w", panel.Index, curr.pos, err)
		}
		cond = sqlbuild.Textf("%s BETWEEN %s AND %s", currDate, prevDate, forward)
	case core.SequenceAnytimeFollowing:
		cond = sqlbuild.Textf("%s > %s", currDate, prevDate)
	default:
		return sqlbuild.Stmt{}, core.Configurationf("panel %d step %d: unsupported sequence type %s", panel.Index, curr.pos, seq.Type)
	}

	if !prev.sub.IncludeSubPanel {
		cond = sqlbuild.Or(cond, sqlbuild.Textf("%s IS NULL", prev.col(c.opts.FieldPersonID)))
	}

	kind := "INNER JOIN "
	if !curr.sub.IncludeSubPanel {
		kind = "LEFT JOIN "
	}
	return sqlbuild.Concat(
		sqlbuild.Text(kind),
		curr.source(),
		sqlbuild.Textf(" ON %s = %s AND ", curr.col(c.opts.FieldPersonID), first.col(c.opts.FieldPersonID)),
		cond,
	), nil
}

// stepHaving counts the distinct dates a step matched.
func (c *PanelCompiler) stepHaving(s step) sqlbuild.Stmt {
	distinct := fmt.Sprintf("COUNT(DISTINCT %s)", s.col(seqDateColumn))
	switch {
	case s.sub.IncludeSubPanel:
		return sqlbuild.Textf("%s >= %d", distinct, s.sub.MinimumCount)
	case s.sub.HasCountFilter():
		return sqlbuild.Textf("%s < %d", distinct, s.sub.MinimumCount)
	default:
		return sqlbuild.Textf("%s = 0", distinct)
	}
}

// CohortSource is a cached cohort a joined panel is anchored to.
type CohortSource struct {
	// From is the cohort table reference.
	From string
	// Where restricts From to one query's cohort.
	Where sqlbuild.Stmt
	// PersonID and Salt name the cohort's columns. Empty means PersonId and Salt.
	PersonID string
	Salt     string
}

// BuildJoinedPanelSql returns panel's matching encounters restricted to the
// cached cohort. Each row carries the person id, the encounter id of the
// panel's last step and the cohort salt.
func (c *PanelCompiler) BuildJoinedPanelSql(panel core.Panel, cohort CohortSource) (sqlbuild.Stmt, error) {
	if cohort.From == "" {
		return sqlbuild.Stmt{}, core.Configurationf("joined panel %d requires a cohort source", panel.Index)
	}
	personCol, saltCol := cohort.PersonID, cohort.Salt
	if personCol == "" {
		personCol = core.DefaultFieldPersonID
	}
	if saltCol == "" {
		saltCol = schema.ColumnSalt
	}

	steps, err := c.steps(panel)
	if err != nil {
		return sqlbuild.Stmt{}, err
	}
	first, last := steps[0], steps[len(steps)-1]

	cached := sqlbuild.NewSelect(sqlbuild.Text(cohort.From), "").
		WithColumns(sqlbuild.Text(personCol), sqlbuild.Text(saltCol)).
		WithWhere(cohort.Where)

	lastPerson := last.col(c.opts.FieldPersonID)
	lastEncounter := last.col(c.opts.FieldEncounterID)
	salt := cohortAlias + "." + saltCol

	sel := sqlbuild.NewSelect(unionSource(cached.Render()), cohortAlias).
		WithColumns(
			sqlbuild.Textf("%s AS %s", lastPerson, schema.ColumnPersonID),
			sqlbuild.Textf("%s AS %s", lastEncounter, schema.ColumnEncounterID),
			sqlbuild.Text(salt),
		).
		WithJoin(sqlbuild.Concat(
			sqlbuild.Text("INNER JOIN "),
			first.source(),
			sqlbuild.Textf(" ON %s = %s.%s", first.col(c.opts.FieldPersonID), cohortAlias, personCol),
		)).
		WithGroupBy(lastPerson, lastEncounter, salt)

	sel, err = c.joinSteps(panel, sel, steps)
	if err != nil {
		return sqlbuild.Stmt{}, err
	}

	stmt := sel.Render()
	if err := c.guard(panel.Index, stmt.String()); err != nil {
		return sqlbuild.Stmt{}, err
	}
	return stmt, nil
}
