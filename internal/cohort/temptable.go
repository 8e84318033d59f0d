package cohort

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/dialect"
	"github.com/leapstack-labs/cohortsql/pkg/sqlbuild"
)

// tempTable describes how a dialect creates, fills and drops the cohort table.
type tempTable struct {
	// name is the table reference used in DDL and FROM clauses.
	name string
	// create is the CREATE prefix before the table name.
	create string
	// suffix follows the column list of the CREATE statement.
	suffix string
	index  bool
	// insertAll batches rows with Oracle's INSERT ALL ... SELECT 1 FROM DUAL.
	insertAll bool
	drop      string
}

var tempTables = map[string]tempTable{
	"tsql": {
		name:   "#" + TempTableName,
		create: "CREATE TABLE",
		drop:   "DROP TABLE #" + TempTableName,
	},
	"postgres": {
		name:   TempTableName,
		create: "CREATE TEMPORARY TABLE",
		index:  true,
		drop:   "DROP TABLE IF EXISTS " + TempTableName,
	},
	"duckdb": {
		name:   TempTableName,
		create: "CREATE TEMPORARY TABLE",
		drop:   "DROP TABLE IF EXISTS " + TempTableName,
	},
	"mysql": {
		name:   TempTableName,
		create: "CREATE TEMPORARY TABLE",
		index:  true,
		drop:   "DROP TABLE IF EXISTS " + TempTableName,
	},
	"mariadb": {
		name:   TempTableName,
		create: "CREATE TEMPORARY TABLE",
		index:  true,
		drop:   "DROP TABLE IF EXISTS " + TempTableName,
	},
	"oracle": {
		name:      "ORA$PTT" + TempTableName,
		create:    "CREATE PRIVATE TEMPORARY TABLE",
		suffix:    " ON COMMIT PRESERVE DEFINITION",
		insertAll: true,
		drop:      "DROP TABLE ORA$PTT" + TempTableName,
	},
	"bigquery": {
		name:   TempTableName,
		create: "CREATE TEMP TABLE",
		drop:   "DROP TABLE IF EXISTS " + TempTableName,
	},
}

// TempTablePreparer copies the cohort into a temporary table on the
// warehouse connection before the main query and drops it afterwards.
// The prelude, query and epilogue must run on the same connection.
type TempTablePreparer struct {
	dialect   *dialect.Dialect
	table     tempTable
	fetcher   Fetcher
	batchSize int
	logger    *slog.Logger

	queryID      uuid.UUID
	exportedOnly bool
	set          bool
}

// NewTempTablePreparer creates a TempTablePreparer for d. batchSize <= 0
// means DefaultBatchSize.
func NewTempTablePreparer(d *dialect.Dialect, fetcher Fetcher, batchSize int, logger *slog.Logger) (*TempTablePreparer, error) {
	if d == nil {
		return nil, dialect.ErrDialectRequired
	}
	if fetcher == nil {
		return nil, errors.New("temp table cohort preparer requires a fetcher")
	}
	table, ok := tempTables[d.GetName()]
	if !ok {
		return nil, fmt.Errorf("%s: temporary cohort tables: %w", d.GetName(), dialect.ErrUnsupported)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TempTablePreparer{
		dialect:   d,
		table:     table,
		fetcher:   fetcher,
		batchSize: batchSize,
		logger:    logger,
	}, nil
}

// SetQueryCohort implements Preparer.
func (p *TempTablePreparer) SetQueryCohort(_ context.Context, queryID uuid.UUID, exportedOnly bool) error {
	p.queryID = queryID
	p.exportedOnly = exportedOnly
	p.set = true
	return nil
}

// Prepare fetches the cohort and returns the statements creating and
// filling the temporary table.
func (p *TempTablePreparer) Prepare(ctx context.Context) ([]string, error) {
	if !p.set {
		return nil, errors.New("cohort query not set")
	}
	records, err := p.fetcher.FetchCohort(ctx, p.queryID, p.exportedOnly)
	if err != nil {
		return nil, fmt.Errorf("fetching cohort %s: %w", p.queryID, err)
	}

	create, err := p.createStatement()
	if err != nil {
		return nil, err
	}
	stmts := []string{create}
	if p.table.index {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IDX_TEMP1 ON %s (PersonId)", p.table.name))
	}
	for batch := range slices.Chunk(records, p.batchSize) {
		stmts = append(stmts, p.insertStatement(batch))
	}

	p.logger.Debug("prepared cohort temp table",
		"query_id", p.queryID.String(),
		"rows", len(records),
		"statements", len(stmts))
	return stmts, nil
}

func (p *TempTablePreparer) createStatement() (string, error) {
	types := make([]string, 0, 3)
	for _, t := range []core.ColumnType{core.ColumnString, core.ColumnBoolean, core.ColumnGUID} {
		name, err := p.dialect.ToSQLType(t)
		if err != nil {
			return "", err
		}
		types = append(types, name)
	}
	return fmt.Sprintf("%s %s (PersonId %s, Exported %s, Salt %s)%s",
		p.table.create, p.table.name, types[0], types[1], types[2], p.table.suffix), nil
}

func (p *TempTablePreparer) insertStatement(batch []Record) string {
	var sb strings.Builder
	if p.table.insertAll {
		sb.WriteString("INSERT ALL")
		for _, r := range batch {
			fmt.Fprintf(&sb, " INTO %s (PersonId, Exported, Salt) VALUES (%s)", p.table.name, p.row(r))
		}
		sb.WriteString(" SELECT 1 FROM DUAL")
		return sb.String()
	}

	fmt.Fprintf(&sb, "INSERT INTO %s (PersonId, Exported, Salt) VALUES ", p.table.name)
	for i, r := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(" + p.row(r) + ")")
	}
	return sb.String()
}

func (p *TempTablePreparer) row(r Record) string {
	salt := "NULL"
	if r.Salt != nil {
		salt = quote(r.Salt.String())
	}
	return quote(r.PersonID) + ", " + boolLiteral(p.dialect, r.Exported) + ", " + salt
}

// Complete returns the statement dropping the temporary table.
func (p *TempTablePreparer) Complete() []string { return []string{p.table.drop} }

// CohortToCteFrom implements Preparer.
func (p *TempTablePreparer) CohortToCteFrom() string { return p.table.name }

// CohortToCteWhere implements Preparer. The table holds only this cohort.
func (p *TempTablePreparer) CohortToCteWhere() sqlbuild.Stmt { return sqlbuild.Stmt{} }

// CohortToCte implements Preparer.
func (p *TempTablePreparer) CohortToCte() sqlbuild.Stmt {
	return cteSelect(p.CohortToCteFrom(), sqlbuild.Stmt{})
}

// FieldInternalPersonID implements Preparer.
func (p *TempTablePreparer) FieldInternalPersonID() string { return FieldInternalPersonID }

// quote renders s as a SQL string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
