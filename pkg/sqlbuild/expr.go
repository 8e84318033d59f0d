package sqlbuild

import (
	"strings"

	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/dialect"
)

// Paren wraps a statement in parentheses.
func Paren(s Stmt) Stmt {
	return Concat(Text("("), s, Text(")"))
}

// Compare renders left op right.
func Compare(left, op string, right Stmt) Stmt {
	return Concat(Text(left+" "+op+" "), right)
}

// Between renders left BETWEEN low AND high.
func Between(left string, low, high Stmt) Stmt {
	return Concat(Text(left+" BETWEEN "), low, Text(" AND "), high)
}

// Or joins predicates with OR inside parentheses.
func Or(preds ...Stmt) Stmt {
	return Paren(Join(" OR ", preds...))
}

// Subquery renders ( s ) AS alias.
func Subquery(s Stmt, alias string) Stmt {
	return Concat(Text("( "), s, Text(" )"), TableAlias(alias))
}

// hole marks where a statement is spliced into dialect-rendered text.
// NUL never appears in SQL text.
const hole = "\x00"

// DateAdd renders date shifted by amount units using d's date arithmetic.
// date may contain parameter slots.
func DateAdd(d *dialect.Dialect, unit core.DateIncrementType, amount int, date Stmt) (Stmt, error) {
	rendered, err := d.DateAdd(unit, amount, hole)
	if err != nil {
		return Stmt{}, err
	}
	return splice(rendered, date), nil
}

// Convert renders value converted to the native type for t.
func Convert(d *dialect.Dialect, t core.ColumnType, value Stmt) (Stmt, error) {
	rendered, err := d.Convert(t, hole)
	if err != nil {
		return Stmt{}, err
	}
	return splice(rendered, value), nil
}

func splice(rendered string, s Stmt) Stmt {
	before, after, ok := strings.Cut(rendered, hole)
	if !ok {
		return Text(rendered)
	}
	return Concat(Text(before), s, splice(after, s))
}
