package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/company-extractor/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	clock *clock
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection; a single connection keeps them applied
	// and serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, clock: newClock()}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	company_name TEXT NOT NULL,
	name_key     TEXT NOT NULL,
	domain       TEXT,
	linkedin_url TEXT,
	analysis     TEXT NOT NULL,
	timestamp    REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_companies_name_key ON companies(name_key, timestamp);
CREATE INDEX IF NOT EXISTS idx_companies_timestamp ON companies(timestamp);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, rec *model.CompanyRecord) error {
	name, key, analysis, err := prepare(rec)
	if err != nil {
		return persistErr(err)
	}
	ts := s.clock.next()

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO companies (company_name, name_key, domain, linkedin_url, analysis, timestamp)
		VALUES (?, ?, ?, ?, ?, MAX(?, COALESCE((SELECT MAX(timestamp) FROM companies), 0)))
		RETURNING id, timestamp`,
		name, key, nullable(rec.Domain), nullable(rec.LinkedInURL), analysis, ts,
	).Scan(&id, &ts)
	if err != nil {
		return persistErr(eris.Wrapf(err, "sqlite: insert company %s", name))
	}
	s.clock.observe(ts)

	rec.ID = id
	rec.CompanyName = name
	rec.Timestamp = fromEpoch(ts)
	return nil
}

const sqliteSelect = `SELECT id, company_name, domain, linkedin_url, analysis, timestamp FROM companies`

func (s *SQLiteStore) ListAll(ctx context.Context, opts ListOptions) ([]model.CompanyRecord, error) {
	query := sqliteSelect + ` ORDER BY timestamp DESC, id DESC`
	var args []any
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CompanyRecord
	for rows.Next() {
		rec, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate companies")
}

func (s *SQLiteStore) FindLatest(ctx context.Context, name string) (*model.CompanyRecord, error) {
	key := model.NameKey(name)
	if key == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		sqliteSelect+` WHERE name_key = ? ORDER BY timestamp DESC, id DESC LIMIT 1`,
		key,
	)
	rec, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find company %s", name)
	}
	return rec, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLite(row scannable) (*model.CompanyRecord, error) {
	var (
		rec      model.CompanyRecord
		domain   sql.NullString
		linkedin sql.NullString
		analysis string
		ts       float64
	)
	if err := row.Scan(&rec.ID, &rec.CompanyName, &domain, &linkedin, &analysis, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan company")
	}
	a, err := decodeAnalysis(analysis)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: company %d", rec.ID)
	}
	rec.Domain = domain.String
	rec.LinkedInURL = linkedin.String
	rec.Analysis = a
	rec.Timestamp = fromEpoch(ts)
	return &rec, nil
}
