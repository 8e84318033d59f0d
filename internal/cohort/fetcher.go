package cohort

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/leapstack-labs/cohortsql/pkg/dialect"
	"github.com/leapstack-labs/cohortsql/pkg/sqlbuild"
)

// SQLFetcher reads cached cohorts from an application database over
// database/sql.
type SQLFetcher struct {
	db      *sql.DB
	dialect *dialect.Dialect
	table   string
}

// NewSQLFetcher creates a fetcher reading table with d's placeholder syntax.
func NewSQLFetcher(db *sql.DB, d *dialect.Dialect, table string) *SQLFetcher {
	return &SQLFetcher{db: db, dialect: d, table: table}
}

// FetchCohort implements Fetcher.
func (f *SQLFetcher) FetchCohort(ctx context.Context, queryID uuid.UUID, exportedOnly bool) ([]Record, error) {
	if f.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	sel := sqlbuild.NewSelect(sqlbuild.Text(f.table), "").
		WithColumns(sqlbuild.Text("PersonId"), sqlbuild.Text("Exported"), sqlbuild.Text("Salt")).
		WithWhere(sqlbuild.Concat(sqlbuild.Text("QueryId = "), sqlbuild.Slot(ParamQueryID, queryID.String())))
	if exportedOnly {
		sel = sel.WithWhere(sqlbuild.Concat(sqlbuild.Text("Exported = "), sqlbuild.Slot("exported", true)))
	}

	r, err := sel.Render().Resolve(f.dialect)
	if err != nil {
		return nil, err
	}

	rows, err := f.db.QueryContext(ctx, r.SQL, r.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cohort: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var (
			rec  Record
			salt sql.NullString
		)
		if err := rows.Scan(&rec.PersonID, &rec.Exported, &salt); err != nil {
			return nil, fmt.Errorf("failed to scan cohort row: %w", err)
		}
		if salt.Valid && salt.String != "" {
			id, err := uuid.Parse(salt.String)
			if err != nil {
				return nil, fmt.Errorf("invalid salt for person %s: %w", rec.PersonID, err)
			}
			rec.Salt = &id
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cohort rows: %w", err)
	}
	return records, nil
}
