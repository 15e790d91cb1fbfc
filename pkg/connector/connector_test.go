package connector

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/signup-ingress/pkg/config"
)

var (
	_ DatabaseConnector = (*PostgresConnector)(nil)
	_ DatabaseConnector = (*SnowflakeConnector)(nil)
)

func newMockPostgres(t *testing.T) (*PostgresConnector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &PostgresConnector{
		db:     db,
		logger: zap.NewNop(),
		cfg:    &config.PostgresConfig{Database: "crm", Schema: "crm"},
	}, mock
}

func TestApplyConnectionSettings(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	pool := ApplyConnectionSettings(db, 7, 3, time.Minute, time.Second)
	stats := GetConnectionStats(db, pool)
	assert.Equal(t, 7, stats.MaxOpenConns)
	assert.Equal(t, 3, stats.MaxIdleConns)
	assert.Equal(t, time.Minute, stats.ConnMaxLifetime)
	assert.Equal(t, time.Second, stats.ConnMaxIdleTime)
}

func TestApplyConnectionSettingsDefaults(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	pool := ApplyConnectionSettings(db, 0, 0, 0, 0)
	assert.Equal(t, PoolSettings{MaxIdleConns: 2}, pool)

	pool = ApplyConnectionSettings(db, 4, 10, 0, 0)
	assert.Equal(t, 4, pool.MaxIdleConns)
	assert.Equal(t, 4, GetConnectionStats(db, pool).MaxOpenConns)
}

func TestPostgresValidate(t *testing.T) {
	c, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT version\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("PostgreSQL 16.2"))
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "crm"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, c.Validate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchInsertSplitsBatches(t *testing.T) {
	c, mock := newMockPostgres(t)

	mock.ExpectExec(`INSERT INTO "crm"\."golden_members" \("email", "plan"\) VALUES \(\$1, \$2\), \(\$3, \$4\)`).
		WithArgs("a@acme.io", "Plan A", "b@acme.io", "Plan B").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO "crm"\."golden_members" \("email", "plan"\) VALUES \(\$1, \$2\)`).
		WithArgs("c@acme.io", "Plan C").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows := [][]interface{}{
		{"a@acme.io", "Plan A"},
		{"b@acme.io", "Plan B"},
		{"c@acme.io", "Plan C"},
	}
	n, err := c.BatchInsert(context.Background(), "crm", "golden_members", []string{"email", "plan"}, rows, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchInsertEmpty(t *testing.T) {
	c, mock := newMockPostgres(t)

	n, err := c.BatchInsert(context.Background(), "crm", "golden_members", []string{"email"}, nil, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchInsertFailure(t *testing.T) {
	c, mock := newMockPostgres(t)

	mock.ExpectExec(`INSERT INTO`).WillReturnError(errors.New("duplicate key"))

	_, err := c.BatchInsert(context.Background(), "crm", "golden_members", []string{"email"}, [][]interface{}{{"a@acme.io"}}, 10)
	assert.ErrorContains(t, err, "duplicate key")
}

func TestCreateTableIfNotExists(t *testing.T) {
	c, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("crm", "golden_members").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`CREATE TABLE "crm"\."golden_members" \(\s+"email" TEXT NOT NULL,\s+PRIMARY KEY \("email"\)\s+\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := c.CreateTableIfNotExists(context.Background(), "crm", "golden_members",
		[]string{`"email" TEXT NOT NULL`}, `"email"`)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTableSkipsExisting(t *testing.T) {
	c, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, c.CreateTableIfNotExists(context.Background(), "crm", "golden_members", nil, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFactoryRequiresConfiguration(t *testing.T) {
	factory := NewConnectorFactory(&config.Config{}, zap.NewNop())

	_, err := factory.CreateSnowflakeConnector(context.Background())
	assert.Error(t, err)

	_, err = factory.CreatePostgresConnector(context.Background())
	assert.Error(t, err)
}

func newMockSnowflake(t *testing.T) (*SnowflakeConnector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &SnowflakeConnector{
		db:     db,
		logger: zap.NewNop(),
		cfg: &config.SnowflakeConfig{
			Database:     "MARKETING",
			Schema:       "public",
			SourceTable:  "signups",
			QueryTimeout: time.Second,
		},
	}, mock
}

func TestSnowflakeValidate(t *testing.T) {
	c, mock := newMockSnowflake(t)

	mock.ExpectQuery(`SELECT CURRENT_ROLE\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"role", "database", "warehouse"}).
			AddRow("LOADER", "marketing", "WH"))
	mock.ExpectQuery(`INFORMATION_SCHEMA\.TABLES`).
		WithArgs("PUBLIC", "SIGNUPS").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	require.NoError(t, c.Validate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnowflakeValidateWrongDatabase(t *testing.T) {
	c, mock := newMockSnowflake(t)

	mock.ExpectQuery(`SELECT CURRENT_ROLE\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"role", "database", "warehouse"}).
			AddRow("LOADER", "FINANCE", "WH"))

	assert.ErrorContains(t, c.Validate(context.Background()), "wrong database")
}

func TestBatchQueryPages(t *testing.T) {
	c, mock := newMockSnowflake(t)
	query := `SELECT EMAIL FROM SIGNUPS ORDER BY ID`

	mock.ExpectQuery(`ORDER BY ID LIMIT 2 OFFSET 0`).
		WillReturnRows(sqlmock.NewRows([]string{"EMAIL"}).AddRow("a@acme.io").AddRow("b@acme.io"))
	mock.ExpectQuery(`ORDER BY ID LIMIT 2 OFFSET 2`).
		WillReturnRows(sqlmock.NewRows([]string{"EMAIL"}).AddRow("c@acme.io"))

	var emails []string
	err := c.BatchQuery(context.Background(), query, 2, func(rows *sql.Rows) error {
		var email string
		if err := rows.Scan(&email); err != nil {
			return err
		}
		emails = append(emails, email)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@acme.io", "b@acme.io", "c@acme.io"}, emails)
	assert.NoError(t, mock.ExpectationsWereMet())
}
