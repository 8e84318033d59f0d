package compiler

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/schema"
	"github.com/leapstack-labs/cohortsql/pkg/sqlbuild"
)

// sequenceLookbackMonths widens the start bound for sequence steps after the
// first, so rows before the panel start can still anchor a later step.
const sequenceLookbackMonths = 6

// Column aliases exposed by sequence step unions.
const (
	seqDateColumn  = "DateField"
	seqEventColumn = "EventId"
)

// itemSet builds the fragment for one PanelItem.
type itemSet struct {
	c     *PanelCompiler
	panel core.Panel
	sub   core.SubPanel
	// step is the position of sub within its panel.
	step  int
	item  core.PanelItem
	alias string
}

func (c *PanelCompiler) newItemSet(panel core.Panel, step int, sub core.SubPanel, item core.PanelItem) itemSet {
	return itemSet{
		c:     c,
		panel: panel,
		sub:   sub,
		step:  step,
		item:  item,
		alias: fmt.Sprintf("_S%d%d%d", panel.Index, sub.Index, item.Index),
	}
}

// aliased replaces the alias token in stored concept SQL with the item alias.
func (s itemSet) aliased(sql string) string {
	return strings.ReplaceAll(sql, s.c.opts.Alias, s.alias)
}

// field qualifies a concept field with the item alias. Fields that carry the
// alias token are rewritten in place instead.
func (s itemSet) field(expr string) string {
	if strings.Contains(expr, s.c.opts.Alias) {
		return s.aliased(expr)
	}
	return s.alias + "." + expr
}

func (s itemSet) personID() string    { return s.alias + "." + s.c.opts.FieldPersonID }
func (s itemSet) encounterID() string { return s.alias + "." + s.c.opts.FieldEncounterID }

func (s itemSet) date() (string, error) {
	concept := s.item.Concept
	if strings.TrimSpace(concept.SQLFieldDate) == "" {
		return "", core.Configurationf("concept %s is encounter based but has no date field", s.conceptName())
	}
	return s.field(concept.SQLFieldDate), nil
}

func (s itemSet) conceptName() string {
	if s.item.Concept.UniversalID != "" {
		return s.item.Concept.UniversalID
	}
	return s.item.Concept.ID.String()
}

// base returns the item's source and predicates without select columns.
// Predicates are ANDed in order: concept, date, specializations, numeric.
func (s itemSet) base() (sqlbuild.Select, error) {
	concept := s.item.Concept
	if strings.TrimSpace(concept.SQLSetFrom) == "" {
		return sqlbuild.Select{}, core.Configurationf("concept %s has no source", s.conceptName())
	}

	fragments := []string{
		concept.SQLSetFrom,
		concept.SQLSetWhere,
		concept.SQLFieldDate,
		concept.SQLFieldNumeric,
		concept.SQLFieldEvent,
	}
	for _, spec := range s.item.Specializations {
		fragments = append(fragments, spec.SQLSetWhere)
	}
	if err := s.c.guard(s.panel.Index, fragments...); err != nil {
		return sqlbuild.Select{}, err
	}

	sel := sqlbuild.NewSelect(sqlbuild.Text(s.aliased(concept.SQLSetFrom)), s.alias)
	if where := strings.TrimSpace(concept.SQLSetWhere); where != "" {
		sel = sel.WithWhere(sqlbuild.Paren(sqlbuild.Text(s.aliased(where))))
	}

	datePred, err := s.datePredicate()
	if err != nil {
		return sqlbuild.Select{}, err
	}
	sel = sel.WithWhere(datePred)

	for _, spec := range s.item.Specializations {
		if where := strings.TrimSpace(spec.SQLSetWhere); where != "" {
			sel = sel.WithWhere(sqlbuild.Paren(sqlbuild.Text(s.aliased(where))))
		}
	}

	numPred, err := s.numericPredicate()
	if err != nil {
		return sqlbuild.Select{}, err
	}
	return sel.WithWhere(numPred), nil
}

// datePredicate applies the panel date filter to encounter-based concepts.
func (s itemSet) datePredicate() (sqlbuild.Stmt, error) {
	if !s.panel.IsDateFiltered() || !s.item.Concept.IsEncounterBased {
		return sqlbuild.Stmt{}, nil
	}
	date, err := s.date()
	if err != nil {
		return sqlbuild.Stmt{}, err
	}

	filter := s.panel.DateFilter
	start, err := s.c.dateBoundary(s.panel.Index, "start", filter.Start, false)
	if err != nil {
		return sqlbuild.Stmt{}, err
	}

	if s.panel.Type == core.PanelSequence && s.step > 0 {
		lookback, err := sqlbuild.DateAdd(s.c.dialect, core.DateMonth, -sequenceLookbackMonths, start)
		if err != nil {
			return sqlbuild.Stmt{}, err
		}
		return sqlbuild.Compare(date, ">=", lookback), nil
	}

	end, err := s.c.dateBoundary(s.panel.Index, "end", filter.End, true)
	if err != nil {
		return sqlbuild.Stmt{}, err
	}
	return sqlbuild.Between(date, start, end), nil
}

// numericPredicate maps the item's numeric filter to a comparison.
func (s itemSet) numericPredicate() (sqlbuild.Stmt, error) {
	nf := s.item.NumericFilter
	if nf == nil {
		return sqlbuild.Stmt{}, nil
	}
	if strings.TrimSpace(s.item.Concept.SQLFieldNumeric) == "" {
		return sqlbuild.Stmt{}, core.Configurationf("concept %s has a numeric filter but no numeric field", s.conceptName())
	}
	if len(nf.Values) != nf.Type.Operands() {
		return sqlbuild.Stmt{}, core.Configurationf("numeric filter %s takes %d value(s), got %d",
			nf.Type, nf.Type.Operands(), len(nf.Values))
	}

	field := s.field(s.item.Concept.SQLFieldNumeric)
	operand := func(i int) sqlbuild.Stmt {
		return sqlbuild.Slot(fmt.Sprintf("n%d_%d_%d_%d", s.panel.Index, s.sub.Index, s.item.Index, i), nf.Values[i])
	}

	switch nf.Type {
	case core.NumericGreaterThan:
		return sqlbuild.Compare(field, ">", operand(0)), nil
	case core.NumericGreaterThanOrEqualTo:
		return sqlbuild.Compare(field, ">=", operand(0)), nil
	case core.NumericLessThan:
		return sqlbuild.Compare(field, "<", operand(0)), nil
	case core.NumericLessThanOrEqualTo:
		return sqlbuild.Compare(field, "<=", operand(0)), nil
	case core.NumericEqualTo:
		return sqlbuild.Compare(field, "=", operand(0)), nil
	case core.NumericBetween:
		return sqlbuild.Between(field, operand(0), operand(1)), nil
	default:
		return sqlbuild.Stmt{}, core.Configurationf("unsupported numeric filter %s", nf.Type)
	}
}

// patientSelect returns the item as a Patient panel member: person ids,
// grouped per person for encounter-based concepts.
func (s itemSet) patientSelect() (sqlbuild.Select, error) {
	sel, err := s.base()
	if err != nil {
		return sqlbuild.Select{}, err
	}
	sel = sel.WithColumns(sqlbuild.Text(s.personID()))

	if !s.item.Concept.IsEncounterBased {
		if s.sub.HasCountFilter() {
			return sqlbuild.Select{}, core.Configurationf("concept %s: a minimum count requires an encounter based concept", s.conceptName())
		}
		return sel, nil
	}

	sel = sel.WithGroupBy(s.personID())
	if s.sub.HasCountFilter() {
		date, err := s.date()
		if err != nil {
			return sqlbuild.Select{}, err
		}
		sel = sel.WithHaving(sqlbuild.Textf("COUNT(DISTINCT %s) >= %d", date, s.sub.MinimumCount))
	}
	return sel, nil
}

// sequenceSelect returns the item as a sequence step member. Grouping and
// counting are left to the owning sequence.
func (s itemSet) sequenceSelect() (sqlbuild.Select, error) {
	sel, err := s.base()
	if err != nil {
		return sqlbuild.Select{}, err
	}

	opts := s.c.opts
	encounter, date, event := "NULL", "NULL", "NULL"
	if s.item.Concept.IsEncounterBased {
		if date, err = s.date(); err != nil {
			return sqlbuild.Select{}, err
		}
		encounter = s.encounterID()
	}
	if s.item.Concept.IsEventBased && strings.TrimSpace(s.item.Concept.SQLFieldEvent) != "" {
		event = s.field(s.item.Concept.SQLFieldEvent)
	}

	return sel.WithColumns(
		sqlbuild.Textf("%s AS %s", s.personID(), opts.FieldPersonID),
		sqlbuild.Textf("%s AS %s", encounter, opts.FieldEncounterID),
		sqlbuild.Textf("%s AS %s", date, seqDateColumn),
		sqlbuild.Textf("%s AS %s", event, seqEventColumn),
	), nil
}

// datasetSelect returns the item's rows for an extract under the concept
// dataset column names. withNumber adds the numeric column, NULL for
// non-numeric concepts.
func (s itemSet) datasetSelect(withNumber bool) (sqlbuild.Select, error) {
	if !s.item.Concept.IsEncounterBased {
		return sqlbuild.Select{}, core.Configurationf("concept %s: extracts require an encounter based concept", s.conceptName())
	}
	sel, err := s.base()
	if err != nil {
		return sqlbuild.Select{}, err
	}
	date, err := s.date()
	if err != nil {
		return sqlbuild.Select{}, err
	}

	person, err := s.c.dialect.Convert(core.ColumnString, s.personID())
	if err != nil {
		return sqlbuild.Select{}, err
	}
	encounter, err := s.c.dialect.Convert(core.ColumnString, s.encounterID())
	if err != nil {
		return sqlbuild.Select{}, err
	}

	cols := []sqlbuild.Stmt{
		sqlbuild.Textf("%s AS %s", person, schema.ColumnPersonID),
		sqlbuild.Textf("%s AS %s", encounter, schema.ColumnEncounterID),
		sqlbuild.Textf("%s AS %s", date, schema.ConceptDateField),
	}
	if withNumber {
		number := "NULL"
		if s.item.Concept.IsNumeric && strings.TrimSpace(s.item.Concept.SQLFieldNumeric) != "" {
			number = s.field(s.item.Concept.SQLFieldNumeric)
		}
		cols = append(cols, sqlbuild.Textf("%s AS %s", number, schema.ConceptNumberField))
	}
	return sel.WithColumns(cols...), nil
}
