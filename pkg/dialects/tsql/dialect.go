package tsql

import (
	"fmt"

	"github.com/leapstack-labs/cohortsql/pkg/dialect"
)

func init() {
	dialect.Register(TSQL)
}

// TSQL is the SQL Server dialect.
var TSQL = dialect.New(Config).
	DateAdd(dialect.FunctionDateAdd).
	Convert(func(typeName, value string) string {
		return fmt.Sprintf("CONVERT(%s, %s)", typeName, value)
	}).
	DeclareParam(func(name, typeName, value string) string {
		return fmt.Sprintf("DECLARE @%s %s = %s", name, typeName, value)
	}).
	Build()
