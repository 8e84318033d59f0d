package compiler

import (
	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/sqlbuild"
)

// BuildItemDatasetSql returns the encounter-level rows matched by every item
// of panel, unioned. Rows carry personId, encounterId and dateField, plus
// numberField when any item's concept is numeric. Steps are not joined; a
// sequence panel yields the rows of each step.
func (c *PanelCompiler) BuildItemDatasetSql(panel core.Panel) (sqlbuild.Stmt, error) {
	if panel.ItemCount() == 0 {
		return sqlbuild.Stmt{}, core.Configurationf("panel %d has no items", panel.Index)
	}

	withNumber := false
	for _, sp := range panel.SubPanels {
		for _, item := range sp.Items {
			withNumber = withNumber || item.Concept.IsNumeric
		}
	}

	var items []sqlbuild.Stmt
	for pos, sp := range panel.SubPanels {
		for _, item := range sp.Items {
			sel, err := c.newItemSet(panel, pos, sp, item).datasetSelect(withNumber)
			if err != nil {
				return sqlbuild.Stmt{}, err
			}
			items = append(items, sel.Render())
		}
	}

	stmt := sqlbuild.Join(" UNION ALL ", items...)
	if err := c.guard(panel.Index, stmt.String()); err != nil {
		return sqlbuild.Stmt{}, err
	}
	return stmt, nil
}
