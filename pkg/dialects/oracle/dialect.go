package oracle

import (
	"fmt"

	"github.com/leapstack-labs/cohortsql/pkg/dialect"
)

func init() {
	dialect.Register(Oracle)
}

// dateAdd renders interval arithmetic. Oracle has no WEEK interval, so
// weeks are expressed in days.
func dateAdd(unit string, amount int, date string) string {
	if unit == "WEEK" {
		unit, amount = "DAY", amount*7
	}
	return fmt.Sprintf("%s + INTERVAL '%d' %s", date, amount, unit)
}

// Oracle is the Oracle dialect.
var Oracle = dialect.New(Config).
	DateAdd(dateAdd).
	Convert(dialect.CastConvert).
	Build()
