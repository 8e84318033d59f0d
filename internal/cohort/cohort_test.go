package cohort

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cohortsql/internal/testutil"
	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/dialect"
	"github.com/leapstack-labs/cohortsql/pkg/dialects/duckdb"
	"github.com/leapstack-labs/cohortsql/pkg/dialects/mysql"
	"github.com/leapstack-labs/cohortsql/pkg/dialects/oracle"
	"github.com/leapstack-labs/cohortsql/pkg/dialects/postgres"
	"github.com/leapstack-labs/cohortsql/pkg/dialects/tsql"
)

var (
	testQueryID = uuid.MustParse("3f2c1f9e-8a47-4c0b-9d1e-5b7a2e6c9f01")
	testSalt    = uuid.MustParse("0e9d8c7b-6a5f-4e3d-8c2b-1a0f9e8d7c6b")
)

type stubFetcher struct {
	records      []Record
	err          error
	queryID      uuid.UUID
	exportedOnly bool
}

func (f *stubFetcher) FetchCohort(_ context.Context, queryID uuid.UUID, exportedOnly bool) ([]Record, error) {
	f.queryID = queryID
	f.exportedOnly = exportedOnly
	return f.records, f.err
}

func sampleRecords() []Record {
	return []Record{
		{PersonID: "p1", Exported: true, Salt: &testSalt},
		{PersonID: "o'brien", Exported: false},
		{PersonID: "p3", Exported: true},
	}
}

func TestSharedPreparer(t *testing.T) {
	tests := []struct {
		name         string
		dialect      *dialect.Dialect
		opts         core.CompilerOptions
		exportedOnly bool
		want         string
	}{
		{
			name:    "all rows",
			dialect: tsql.TSQL,
			want:    "SELECT PersonId AS __personId__, Exported, Salt FROM LeafDB.app.Cohort WHERE QueryId = {{queryid}}",
		},
		{
			name:         "exported only",
			dialect:      tsql.TSQL,
			exportedOnly: true,
			want:         "SELECT PersonId AS __personId__, Exported, Salt FROM LeafDB.app.Cohort WHERE QueryId = {{queryid}} AND Exported = 1",
		},
		{
			name:         "postgres boolean",
			dialect:      postgres.Postgres,
			opts:         core.CompilerOptions{CohortTable: "app.cohort"},
			exportedOnly: true,
			want:         "SELECT PersonId AS __personId__, Exported, Salt FROM app.cohort WHERE QueryId = {{queryid}} AND Exported = TRUE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewSharedPreparer(tt.dialect, tt.opts)
			require.NoError(t, p.SetQueryCohort(context.Background(), testQueryID, tt.exportedOnly))

			prelude, err := p.Prepare(context.Background())
			require.NoError(t, err)
			assert.Empty(t, prelude)
			assert.Empty(t, p.Complete())

			cte := p.CohortToCte()
			assert.Equal(t, tt.want, cte.String())
			require.Len(t, cte.Params(), 1)
			assert.Equal(t, testQueryID, cte.Params()[0].Value)
			assert.Equal(t, FieldInternalPersonID, p.FieldInternalPersonID())
		})
	}
}

func TestTempTablePreparer(t *testing.T) {
	tests := []struct {
		name         string
		dialect      *dialect.Dialect
		wantPrelude  []string
		wantEpilogue []string
		wantFrom     string
	}{
		{
			name:    "tsql",
			dialect: tsql.TSQL,
			wantPrelude: []string{
				"CREATE TABLE #__cohort__ (PersonId NVARCHAR(100), Exported BIT, Salt UNIQUEIDENTIFIER)",
				"INSERT INTO #__cohort__ (PersonId, Exported, Salt) VALUES ('p1', 1, '" + testSalt.String() + "'), ('o''brien', 0, NULL)",
				"INSERT INTO #__cohort__ (PersonId, Exported, Salt) VALUES ('p3', 1, NULL)",
			},
			wantEpilogue: []string{"DROP TABLE #__cohort__"},
			wantFrom:     "#__cohort__",
		},
		{
			name:    "postgres",
			dialect: postgres.Postgres,
			wantPrelude: []string{
				"CREATE TEMPORARY TABLE __cohort__ (PersonId TEXT, Exported BOOLEAN, Salt UUID)",
				"CREATE INDEX IDX_TEMP1 ON __cohort__ (PersonId)",
				"INSERT INTO __cohort__ (PersonId, Exported, Salt) VALUES ('p1', TRUE, '" + testSalt.String() + "'), ('o''brien', FALSE, NULL)",
				"INSERT INTO __cohort__ (PersonId, Exported, Salt) VALUES ('p3', TRUE, NULL)",
			},
			wantEpilogue: []string{"DROP TABLE IF EXISTS __cohort__"},
			wantFrom:     "__cohort__",
		},
		{
			name:    "mysql",
			dialect: mysql.MySQL,
			wantPrelude: []string{
				"CREATE TEMPORARY TABLE __cohort__ (PersonId VARCHAR(100), Exported TINYINT(1), Salt CHAR(36))",
				"CREATE INDEX IDX_TEMP1 ON __cohort__ (PersonId)",
				"INSERT INTO __cohort__ (PersonId, Exported, Salt) VALUES ('p1', 1, '" + testSalt.String() + "'), ('o''brien', 0, NULL)",
				"INSERT INTO __cohort__ (PersonId, Exported, Salt) VALUES ('p3', 1, NULL)",
			},
			wantEpilogue: []string{"DROP TABLE IF EXISTS __cohort__"},
			wantFrom:     "__cohort__",
		},
		{
			name:    "mariadb",
			dialect: mysql.MariaDB,
			wantPrelude: []string{
				"CREATE TEMPORARY TABLE __cohort__ (PersonId VARCHAR(100), Exported TINYINT(1), Salt CHAR(36))",
				"CREATE INDEX IDX_TEMP1 ON __cohort__ (PersonId)",
				"INSERT INTO __cohort__ (PersonId, Exported, Salt) VALUES ('p1', 1, '" + testSalt.String() + "'), ('o''brien', 0, NULL)",
				"INSERT INTO __cohort__ (PersonId, Exported, Salt) VALUES ('p3', 1, NULL)",
			},
			wantEpilogue: []string{"DROP TABLE IF EXISTS __cohort__"},
			wantFrom:     "__cohort__",
		},
		{
			name:    "oracle",
			dialect: oracle.Oracle,
			wantPrelude: []string{
				"CREATE PRIVATE TEMPORARY TABLE ORA$PTT__cohort__ (PersonId NVARCHAR2(100), Exported NUMBER(1), Salt CHAR(36)) ON COMMIT PRESERVE DEFINITION",
				"INSERT ALL INTO ORA$PTT__cohort__ (PersonId, Exported, Salt) VALUES ('p1', 1, '" + testSalt.String() + "') INTO ORA$PTT__cohort__ (PersonId, Exported, Salt) VALUES ('o''brien', 0, NULL) SELECT 1 FROM DUAL",
				"INSERT ALL INTO ORA$PTT__cohort__ (PersonId, Exported, Salt) VALUES ('p3', 1, NULL) SELECT 1 FROM DUAL",
			},
			wantEpilogue: []string{"DROP TABLE ORA$PTT__cohort__"},
			wantFrom:     "ORA$PTT__cohort__",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &stubFetcher{records: sampleRecords()}
			p, err := NewTempTablePreparer(tt.dialect, fetcher, 2, testutil.NewTestLogger(t))
			require.NoError(t, err)

			require.NoError(t, p.SetQueryCohort(context.Background(), testQueryID, true))
			prelude, err := p.Prepare(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.wantPrelude, prelude)
			assert.Equal(t, tt.wantEpilogue, p.Complete())
			assert.Equal(t, tt.wantFrom, p.CohortToCteFrom())
			assert.True(t, p.CohortToCteWhere().IsEmpty())
			assert.Equal(t, "SELECT PersonId AS __personId__, Exported, Salt FROM "+tt.wantFrom, p.CohortToCte().String())

			assert.Equal(t, testQueryID, fetcher.queryID)
			assert.True(t, fetcher.exportedOnly)
		})
	}
}

func TestTempTablePreparer_Errors(t *testing.T) {
	_, err := NewTempTablePreparer(tsql.TSQL, nil, 0, nil)
	require.Error(t, err)

	_, err = NewTempTablePreparer(nil, &stubFetcher{}, 0, nil)
	require.ErrorIs(t, err, dialect.ErrDialectRequired)

	p, err := NewTempTablePreparer(tsql.TSQL, &stubFetcher{err: assert.AnError}, 0, nil)
	require.NoError(t, err)

	_, err = p.Prepare(context.Background())
	require.Error(t, err, "prepare before SetQueryCohort")

	require.NoError(t, p.SetQueryCohort(context.Background(), testQueryID, false))
	_, err = p.Prepare(context.Background())
	require.ErrorIs(t, err, assert.AnError)
}

func TestTempTablePreparer_EmptyCohort(t *testing.T) {
	p, err := NewTempTablePreparer(duckdb.DuckDB, &stubFetcher{}, 0, nil)
	require.NoError(t, err)
	require.NoError(t, p.SetQueryCohort(context.Background(), testQueryID, false))

	prelude, err := p.Prepare(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE TEMPORARY TABLE __cohort__ (PersonId VARCHAR, Exported BOOLEAN, Salt UUID)"}, prelude)
}

func TestNew(t *testing.T) {
	p, err := New(Options{Dialect: tsql.TSQL})
	require.NoError(t, err)
	assert.IsType(t, &SharedPreparer{}, p)

	p, err = New(Options{Strategy: StrategyTempTable, Dialect: tsql.TSQL, Fetcher: &stubFetcher{}})
	require.NoError(t, err)
	assert.IsType(t, &TempTablePreparer{}, p)

	_, err = New(Options{Strategy: "memory", Dialect: tsql.TSQL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory")

	_, err = New(Options{})
	require.ErrorIs(t, err, dialect.ErrDialectRequired)
}

func TestSQLFetcher(t *testing.T) {
	tests := []struct {
		name         string
		exportedOnly bool
		query        string
		args         []any
	}{
		{
			name:  "all rows",
			query: "SELECT PersonId, Exported, Salt FROM app.Cohort WHERE QueryId = ?",
			args:  []any{testQueryID.String()},
		},
		{
			name:         "exported only",
			exportedOnly: true,
			query:        "SELECT PersonId, Exported, Salt FROM app.Cohort WHERE QueryId = ? AND Exported = ?",
			args:         []any{testQueryID.String(), true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			args := make([]driver.Value, len(tt.args))
			for i, a := range tt.args {
				args[i] = a
			}
			mock.ExpectQuery(tt.query).
				WithArgs(args...).
				WillReturnRows(sqlmock.NewRows([]string{"PersonId", "Exported", "Salt"}).
					AddRow("p1", true, testSalt.String()).
					AddRow("p2", false, nil))

			f := NewSQLFetcher(db, duckdb.DuckDB, "app.Cohort")
			records, err := f.FetchCohort(context.Background(), testQueryID, tt.exportedOnly)
			require.NoError(t, err)
			require.Len(t, records, 2)

			assert.Equal(t, "p1", records[0].PersonID)
			assert.True(t, records[0].Exported)
			require.NotNil(t, records[0].Salt)
			assert.Equal(t, testSalt, *records[0].Salt)
			assert.Nil(t, records[1].Salt)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLFetcher_Errors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT PersonId").WillReturnError(assert.AnError)
	_, err = NewSQLFetcher(db, duckdb.DuckDB, "app.Cohort").FetchCohort(context.Background(), testQueryID, false)
	require.ErrorIs(t, err, assert.AnError)

	mock.ExpectQuery("SELECT PersonId").
		WillReturnRows(sqlmock.NewRows([]string{"PersonId", "Exported", "Salt"}).AddRow("p1", true, "not-a-uuid"))
	_, err = NewSQLFetcher(db, duckdb.DuckDB, "app.Cohort").FetchCohort(context.Background(), testQueryID, false)
	require.Error(t, err)

	_, err = NewSQLFetcher(nil, duckdb.DuckDB, "app.Cohort").FetchCohort(context.Background(), testQueryID, false)
	require.Error(t, err)
}
