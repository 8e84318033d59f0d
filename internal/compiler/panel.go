package compiler

import (
	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/sqlbuild"
)

// patientPanel unions the items of the panel's single step. A patient
// matching any item is in the panel.
func (c *PanelCompiler) patientPanel(panel core.Panel) (sqlbuild.Stmt, error) {
	if len(panel.SubPanels) == 0 || len(panel.SubPanels[0].Items) == 0 {
		return sqlbuild.Stmt{}, core.Configurationf("panel %d has no items", panel.Index)
	}

	sub := panel.SubPanels[0]
	items := make([]sqlbuild.Stmt, 0, len(sub.Items))
	for _, item := range sub.Items {
		sel, err := c.newItemSet(panel, 0, sub, item).patientSelect()
		if err != nil {
			return sqlbuild.Stmt{}, err
		}
		items = append(items, sel.Render())
	}
	return sqlbuild.Join(" UNION ALL ", items...), nil
}

// unionSource renders ( stmt ) for use as a FROM or JOIN source.
func unionSource(stmt sqlbuild.Stmt) sqlbuild.Stmt {
	return sqlbuild.Concat(sqlbuild.Text("( "), stmt, sqlbuild.Text(" )"))
}
