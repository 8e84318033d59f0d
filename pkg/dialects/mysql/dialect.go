package mysql

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/cohortsql/pkg/dialect"
)

func init() {
	dialect.Register(MySQL)
	dialect.Register(MariaDB)
}

func dateAdd(unit string, amount int, date string) string {
	return fmt.Sprintf("DATE_ADD(%s, INTERVAL %d %s)", date, amount, unit)
}

func convert(typeName, value string) string {
	return fmt.Sprintf("CONVERT(%s, %s)", value, castTarget(typeName))
}

// castTarget maps a column type to the type CONVERT accepts.
func castTarget(typeName string) string {
	upper := strings.ToUpper(typeName)
	switch {
	case strings.HasPrefix(upper, "VARCHAR"):
		return "CHAR" + typeName[len("VARCHAR"):]
	case strings.HasPrefix(upper, "TINYINT"), strings.HasPrefix(upper, "SMALLINT"),
		strings.HasPrefix(upper, "MEDIUMINT"), strings.HasPrefix(upper, "INT"),
		strings.HasPrefix(upper, "BIGINT"):
		return "SIGNED"
	default:
		return typeName
	}
}

func declare(name, _ string, value string) string {
	return fmt.Sprintf("SET @%s := %s", name, value)
}

// MySQL is the MySQL dialect.
var MySQL = dialect.New(Config).
	DateAdd(dateAdd).
	Convert(convert).
	DeclareParam(declare).
	Build()

// MariaDB is the MariaDB dialect. It shares MySQL syntax.
var MariaDB = dialect.New(MariaDBConfig).
	DateAdd(dateAdd).
	Convert(convert).
	DeclareParam(declare).
	Build()
