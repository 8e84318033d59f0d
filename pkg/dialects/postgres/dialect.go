package postgres

import "github.com/leapstack-labs/cohortsql/pkg/dialect"

func init() {
	dialect.Register(Postgres)
}

// Postgres is the PostgreSQL dialect.
var Postgres = dialect.New(Config).
	DateAdd(dialect.QuotedIntervalDateAdd).
	Convert(dialect.CastConvert).
	Build()
