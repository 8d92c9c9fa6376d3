package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-extractor/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return newPostgresWithPool(mock), mock
}

var recordColumns = []string{"id", "company_name", "domain", "linkedin_url", "analysis", "timestamp"}

func strPtr(s string) *string { return &s }

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS companies`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO companies .* GREATEST\(\$6::double precision, COALESCE\(\(SELECT MAX\(timestamp\) FROM companies\), 0\)\)\s+RETURNING id, timestamp`).
		WithArgs("Acme Corp", "acme corp", "acme.com", nil, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "timestamp"}).AddRow(int64(42), 1748779200.25))

	rec := &model.CompanyRecord{CompanyName: " Acme   Corp ", Domain: "acme.com", Analysis: model.UnknownAnalysis()}
	require.NoError(t, s.Save(context.Background(), rec))
	assert.Equal(t, int64(42), rec.ID)
	assert.Equal(t, "Acme Corp", rec.CompanyName)
	assert.Equal(t, int64(1748779200250000), rec.Timestamp.UnixMicro())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save_UsesStoredTimestamp(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	s.clock.now = func() time.Time { return time.Unix(100, 0) }

	// The row already holds a later timestamp, so the database keeps it.
	mock.ExpectQuery(`INSERT INTO companies`).
		WithArgs("Acme", "acme", nil, nil, pgxmock.AnyArg(), 100.0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "timestamp"}).AddRow(int64(7), 250.0))

	rec := &model.CompanyRecord{CompanyName: "Acme", Analysis: model.UnknownAnalysis()}
	require.NoError(t, s.Save(context.Background(), rec))
	assert.Equal(t, time.Unix(250, 0).UTC(), rec.Timestamp)
	assert.Equal(t, 250.0, s.clock.next())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO companies`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	rec := &model.CompanyRecord{CompanyName: "Acme", Analysis: model.UnknownAnalysis()}
	err := s.Save(context.Background(), rec)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindPersistence))
	assert.Contains(t, err.Error(), "postgres: insert company Acme")
	assert.Zero(t, rec.ID)
	assert.True(t, rec.Timestamp.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindLatest(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, company_name, domain, linkedin_url, analysis::text, timestamp FROM companies WHERE name_key = \$1 ORDER BY timestamp DESC, id DESC LIMIT 1`).
		WithArgs("acme").
		WillReturnRows(pgxmock.NewRows(recordColumns).AddRow(
			int64(3), "Acme", strPtr("acme.com"), nil,
			`{"cheapest_plan":"$5","free_trial":"Yes","enterprise_plan":"No","api_availability":"Yes","market_type":"B2C"}`,
			1748779200.5,
		))

	rec, err := s.FindLatest(context.Background(), "ACME")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(3), rec.ID)
	assert.Equal(t, "acme.com", rec.Domain)
	assert.Empty(t, rec.LinkedInURL)
	assert.Equal(t, "$5", rec.Analysis.CheapestPlan)
	assert.Equal(t, int64(1748779200500000), rec.Timestamp.UnixMicro())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindLatest_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM companies WHERE name_key`).
		WithArgs("unknown co").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.FindLatest(context.Background(), "Unknown Co")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAll(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM companies ORDER BY timestamp DESC, id DESC LIMIT \$1`).
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows(recordColumns).
			AddRow(int64(2), "Beta", strPtr("beta.io"), strPtr("https://www.linkedin.com/company/beta"), `{"free_trial":"No"}`, 200.0).
			AddRow(int64(1), "Alpha", nil, nil, `{}`, 100.0))

	recs, err := s.ListAll(context.Background(), ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Beta", recs[0].CompanyName)
	assert.Equal(t, "No", recs[0].Analysis.FreeTrial)
	assert.Equal(t, "unknown", recs[0].Analysis.MarketType)
	assert.Equal(t, "Alpha", recs[1].CompanyName)
	assert.True(t, recs[1].Analysis.IsUnknown())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAll_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM companies ORDER BY`).
		WillReturnError(errors.New("timeout"))

	_, err := s.ListAll(context.Background(), ListOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: list companies")
	assert.NoError(t, mock.ExpectationsWereMet())
}
