package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/company-extractor/internal/db"
	"github.com/sells-group/company-extractor/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool  db.Pool
	clock *clock
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return newPostgresWithPool(pool), nil
}

func newPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, clock: newClock()}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id           BIGSERIAL PRIMARY KEY,
	company_name TEXT NOT NULL,
	name_key     TEXT NOT NULL,
	domain       TEXT,
	linkedin_url TEXT,
	analysis     JSONB NOT NULL,
	timestamp    DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_companies_name_key ON companies(name_key, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_companies_timestamp ON companies(timestamp DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, rec *model.CompanyRecord) error {
	name, key, analysis, err := prepare(rec)
	if err != nil {
		return persistErr(err)
	}
	ts := s.clock.next()

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO companies (company_name, name_key, domain, linkedin_url, analysis, timestamp)
		VALUES ($1, $2, $3, $4, $5, GREATEST($6::double precision, COALESCE((SELECT MAX(timestamp) FROM companies), 0)))
		RETURNING id, timestamp`,
		name, key, nullable(rec.Domain), nullable(rec.LinkedInURL), analysis, ts,
	).Scan(&id, &ts)
	if err != nil {
		return persistErr(eris.Wrapf(err, "postgres: insert company %s", name))
	}
	s.clock.observe(ts)

	rec.ID = id
	rec.CompanyName = name
	rec.Timestamp = fromEpoch(ts)
	return nil
}

const postgresSelect = `SELECT id, company_name, domain, linkedin_url, analysis::text, timestamp FROM companies`

func (s *PostgresStore) ListAll(ctx context.Context, opts ListOptions) ([]model.CompanyRecord, error) {
	query := postgresSelect + ` ORDER BY timestamp DESC, id DESC`
	var args []any
	if opts.Limit > 0 {
		query += ` LIMIT $1`
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var out []model.CompanyRecord
	for rows.Next() {
		rec, err := scanPostgres(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate companies")
}

func (s *PostgresStore) FindLatest(ctx context.Context, name string) (*model.CompanyRecord, error) {
	key := model.NameKey(name)
	if key == "" {
		return nil, nil
	}
	row := s.pool.QueryRow(ctx,
		postgresSelect+` WHERE name_key = $1 ORDER BY timestamp DESC, id DESC LIMIT 1`,
		key,
	)
	rec, err := scanPostgres(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: find company %s", name)
	}
	return rec, nil
}

func scanPostgres(row pgx.Row) (*model.CompanyRecord, error) {
	var (
		rec      model.CompanyRecord
		domain   *string
		linkedin *string
		analysis string
		ts       float64
	)
	if err := row.Scan(&rec.ID, &rec.CompanyName, &domain, &linkedin, &analysis, &ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan company")
	}
	a, err := decodeAnalysis(analysis)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: company %d", rec.ID)
	}
	if domain != nil {
		rec.Domain = *domain
	}
	if linkedin != nil {
		rec.LinkedInURL = *linkedin
	}
	rec.Analysis = a
	rec.Timestamp = fromEpoch(ts)
	return &rec, nil
}
