package compiler

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/sqlbuild"
)

// endOfDay is added to a specific end date so the whole day is included.
const endOfDay = 23*time.Hour + 59*time.Minute + 59*time.Second

// dateBoundary renders one side of a panel date filter. Specific dates are
// bound as parameters named p<panel>_<side>.
func (c *PanelCompiler) dateBoundary(panel int, side string, b core.DateBoundary, end bool) (sqlbuild.Stmt, error) {
	switch {
	case b.Type == core.DateNow:
		return sqlbuild.Text(c.dialect.Now()), nil
	case b.Type == core.DateSpecific:
		day := time.Date(b.Date.Year(), b.Date.Month(), b.Date.Day(), 0, 0, 0, 0, b.Date.Location())
		if end {
			day = day.Add(endOfDay)
		}
		return sqlbuild.Slot(fmt.Sprintf("p%d_%s", panel, side), day), nil
	case b.Type.IsUnit():
		return sqlbuild.DateAdd(c.dialect, b.Type, b.Increment, sqlbuild.Text(c.dialect.Now()))
	default:
		return sqlbuild.Stmt{}, core.Configurationf("panel %d: unsupported %s date %s", panel, side, b.Type)
	}
}
