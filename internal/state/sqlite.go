// Package state is the application database caching counted cohorts.
//
// A cohort is saved per query id when it is counted. Each row gets its own
// salt, and only the first ExportLimit rows are marked exported. Dataset
// extracts read the cohort back through the cohort.Fetcher interface.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/leapstack-labs/cohortsql/internal/cohort"
)

// DefaultExportLimit is the number of cohort rows marked exported.
const DefaultExportLimit = 10000

// ErrQueryNotFound is returned for a query id with no saved cohort.
var ErrQueryNotFound = errors.New("query not found")

var errNotOpened = errors.New("database not opened")

// QueryRecord summarizes a saved cohort.
type QueryRecord struct {
	QueryID      uuid.UUID
	CreatedAt    time.Time
	PatientCount int
	ExportLimit  int
}

// SQLiteStore caches cohorts in SQLite.
type SQLiteStore struct {
	db          *sql.DB
	path        string
	exportLimit int
	logger      *slog.Logger
}

// NewSQLiteStore creates a store. exportLimit <= 0 means DefaultExportLimit.
func NewSQLiteStore(exportLimit int, logger *slog.Logger) *SQLiteStore {
	if exportLimit <= 0 {
		exportLimit = DefaultExportLimit
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{exportLimit: exportLimit, logger: logger}
}

// Open opens the database at path. Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// each connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveCohort replaces the cohort of queryID with personIDs and returns its
// summary. Duplicate person ids are saved once.
func (s *SQLiteStore) SaveCohort(ctx context.Context, queryID uuid.UUID, personIDs []string) (QueryRecord, error) {
	if s.db == nil {
		return QueryRecord{}, errNotOpened
	}

	seen := make(map[string]struct{}, len(personIDs))
	unique := make([]string, 0, len(personIDs))
	for _, id := range personIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	rec := QueryRecord{
		QueryID:      queryID,
		CreatedAt:    time.Now().UTC(),
		PatientCount: len(unique),
		ExportLimit:  s.exportLimit,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return QueryRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM Query WHERE QueryId = ?`, queryID.String()); err != nil {
		return QueryRecord{}, fmt.Errorf("failed to clear cohort: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO Query (QueryId, CreatedAt, PatientCount, ExportLimit) VALUES (?, ?, ?, ?)`,
		queryID.String(), rec.CreatedAt.Format(time.RFC3339Nano), rec.PatientCount, rec.ExportLimit,
	); err != nil {
		return QueryRecord{}, fmt.Errorf("failed to save query: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO Cohort (QueryId, PersonId, Exported, Salt) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return QueryRecord{}, fmt.Errorf("failed to prepare cohort insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, id := range unique {
		if _, err := stmt.ExecContext(ctx, queryID.String(), id, i < s.exportLimit, uuid.New().String()); err != nil {
			return QueryRecord{}, fmt.Errorf("failed to save cohort row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return QueryRecord{}, fmt.Errorf("failed to commit cohort: %w", err)
	}

	s.logger.Debug("saved cohort",
		"query_id", queryID.String(),
		"patients", rec.PatientCount,
		"exported", min(rec.PatientCount, s.exportLimit))
	return rec, nil
}

// GetQuery returns the summary of a saved cohort.
func (s *SQLiteStore) GetQuery(ctx context.Context, queryID uuid.UUID) (QueryRecord, error) {
	if s.db == nil {
		return QueryRecord{}, errNotOpened
	}

	var created string
	rec := QueryRecord{QueryID: queryID}
	err := s.db.QueryRowContext(ctx,
		`SELECT CreatedAt, PatientCount, ExportLimit FROM Query WHERE QueryId = ?`,
		queryID.String(),
	).Scan(&created, &rec.PatientCount, &rec.ExportLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return QueryRecord{}, fmt.Errorf("%w: %s", ErrQueryNotFound, queryID)
	}
	if err != nil {
		return QueryRecord{}, fmt.Errorf("failed to get query: %w", err)
	}

	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return QueryRecord{}, fmt.Errorf("invalid created_at for query %s: %w", queryID, err)
	}
	return rec, nil
}

// ListQueries returns every saved cohort, newest first.
func (s *SQLiteStore) ListQueries(ctx context.Context) ([]QueryRecord, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT QueryId, CreatedAt, PatientCount, ExportLimit FROM Query ORDER BY CreatedAt DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []QueryRecord
	for rows.Next() {
		var (
			rec         QueryRecord
			id, created string
		)
		if err := rows.Scan(&id, &created, &rec.PatientCount, &rec.ExportLimit); err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		if rec.QueryID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid query id %q: %w", id, err)
		}
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("invalid created_at for query %s: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteQuery removes a saved cohort.
func (s *SQLiteStore) DeleteQuery(ctx context.Context, queryID uuid.UUID) error {
	if s.db == nil {
		return errNotOpened
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM Query WHERE QueryId = ?`, queryID.String())
	if err != nil {
		return fmt.Errorf("failed to delete query: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrQueryNotFound, queryID)
	}
	return nil
}

// FetchCohort implements cohort.Fetcher.
func (s *SQLiteStore) FetchCohort(ctx context.Context, queryID uuid.UUID, exportedOnly bool) ([]cohort.Record, error) {
	if _, err := s.GetQuery(ctx, queryID); err != nil {
		return nil, err
	}

	query := `SELECT PersonId, Exported, Salt FROM Cohort WHERE QueryId = ?`
	if exportedOnly {
		query += ` AND Exported = 1`
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, queryID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query cohort: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []cohort.Record
	for rows.Next() {
		var (
			rec  cohort.Record
			salt sql.NullString
		)
		if err := rows.Scan(&rec.PersonID, &rec.Exported, &salt); err != nil {
			return nil, fmt.Errorf("failed to scan cohort row: %w", err)
		}
		if salt.Valid {
			id, err := uuid.Parse(salt.String)
			if err != nil {
				return nil, fmt.Errorf("invalid salt for person %s: %w", rec.PersonID, err)
			}
			rec.Salt = &id
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

var _ cohort.Fetcher = (*SQLiteStore)(nil)
