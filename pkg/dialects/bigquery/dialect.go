package bigquery

import (
	"fmt"

	"github.com/leapstack-labs/cohortsql/pkg/dialect"
)

func init() {
	dialect.Register(BigQuery)
}

func dateAdd(unit string, amount int, date string) string {
	if amount < 0 {
		return fmt.Sprintf("DATETIME_SUB(%s, INTERVAL %d %s)", date, -amount, unit)
	}
	return fmt.Sprintf("DATETIME_ADD(%s, INTERVAL %d %s)", date, amount, unit)
}

// BigQuery is the BigQuery dialect.
var BigQuery = dialect.New(Config).
	DateAdd(dateAdd).
	Convert(dialect.CastConvert).
	DeclareParam(func(name, typeName, value string) string {
		return fmt.Sprintf("DECLARE %s %s DEFAULT %s", name, typeName, value)
	}).
	Build()
