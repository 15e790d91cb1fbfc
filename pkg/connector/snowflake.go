// pkg/connector/snowflake.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/David-Botos/signup-ingress/pkg/config"
)

// SnowflakeConnector implements the DatabaseConnector interface for Snowflake
type SnowflakeConnector struct {
	db     *sql.DB
	logger *zap.Logger
	cfg    *config.SnowflakeConfig
	pool   PoolSettings
}

// NewSnowflakeConnector creates a new Snowflake connection
func NewSnowflakeConnector(ctx context.Context, cfg *config.SnowflakeConfig) (*SnowflakeConnector, error) {
	logger := zap.L().Named("snowflake-connector")

	// Create DSN using Snowflake's DSN builder
	sfConfig := &sf.Config{
		Account:       cfg.Account,
		User:          cfg.User,
		Password:      cfg.Password,
		Database:      cfg.Database,
		Warehouse:     cfg.Warehouse,
		Role:          cfg.Role,
		Authenticator: cfg.Authenticator,
	}

	// Log connection attempt (without credentials)
	logger.Info("Connecting to Snowflake",
		zap.String("account", cfg.Account),
		zap.String("user", cfg.User),
		zap.String("database", cfg.Database),
		zap.String("warehouse", cfg.Warehouse),
		zap.String("role", cfg.Role))

	dsn, err := sf.DSN(sfConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build Snowflake DSN: %w", err)
	}

	// Open connection pool
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Snowflake connection: %w", err)
	}

	// Configure connection pool
	pool := ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	// Set query timeout if configured
	if cfg.QueryTimeout > 0 {
		_, err = db.ExecContext(
			ctx,
			fmt.Sprintf("ALTER SESSION SET STATEMENT_TIMEOUT_IN_SECONDS = %d",
				int(cfg.QueryTimeout.Seconds())),
		)
		if err != nil {
			logger.Warn("Failed to set statement timeout", zap.Error(err))
		}
	}

	// Verify connection
	if err := PingWithTimeout(ctx, db, 10*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Snowflake: %w", err)
	}

	connector := &SnowflakeConnector{
		db:     db,
		logger: logger,
		cfg:    cfg,
		pool:   pool,
	}

	LogConnectionStats(logger, cfg.Database, db, pool)
	return connector, nil
}

// DB returns the underlying database connection
func (c *SnowflakeConnector) DB() *sql.DB {
	return c.db
}

// Validate verifies the Snowflake connection and that the source table is visible
func (c *SnowflakeConnector) Validate(ctx context.Context) error {
	var role, database, warehouse string
	err := c.db.QueryRowContext(ctx, "SELECT CURRENT_ROLE(), CURRENT_DATABASE(), CURRENT_WAREHOUSE()").Scan(
		&role, &database, &warehouse)
	if err != nil {
		return fmt.Errorf("failed to verify Snowflake access: %w", err)
	}

	c.logger.Info("Connected to Snowflake",
		zap.String("role", role),
		zap.String("database", database),
		zap.String("warehouse", warehouse))

	// Verify we're connected to the correct database
	if !strings.EqualFold(database, c.cfg.Database) {
		return fmt.Errorf("connected to wrong database: %s (expected: %s)",
			database, c.cfg.Database)
	}

	var count int
	err = c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?",
		strings.ToUpper(c.cfg.Schema), strings.ToUpper(c.cfg.SourceTable)).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to look up source table: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("source table %s.%s not found", c.cfg.Schema, c.cfg.SourceTable)
	}

	return nil
}

// Close closes the database connection
func (c *SnowflakeConnector) Close() error {
	c.logger.Info("Closing Snowflake connection")
	LogConnectionStats(c.logger, c.cfg.Database, c.db, c.pool)
	return c.db.Close()
}

// Config returns the connection's configuration
func (c *SnowflakeConnector) Config() *config.SnowflakeConfig {
	return c.cfg
}

// ExecWithTimeout executes a statement with a timeout
func (c *SnowflakeConnector) ExecWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (sql.Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.ExecContext(queryCtx, query, args...)
}

// BatchQuery fetches data in batches to handle large result sets.
// The query must carry an ORDER BY so that pages do not overlap.
func (c *SnowflakeConnector) BatchQuery(
	ctx context.Context,
	query string,
	batchSize int,
	processor func(*sql.Rows) error,
) error {
	// Set default batch size if not provided
	if batchSize <= 0 {
		batchSize = 10000
	}

	// Execute query with LIMIT and OFFSET to fetch data in batches
	offset := 0
	for {
		rowCount, err := c.queryBatch(ctx, query, batchSize, offset, processor)
		if err != nil {
			return err
		}

		// If fewer rows than batch size were returned, we're done
		if rowCount < batchSize {
			break
		}

		// Move to next batch
		offset += batchSize
	}

	return nil
}

// queryBatch runs one page of a batched query. The timeout covers reading the
// rows, so the context is only cancelled once the page has been consumed.
func (c *SnowflakeConnector) queryBatch(
	ctx context.Context,
	query string,
	batchSize, offset int,
	processor func(*sql.Rows) error,
) (int, error) {
	timeout := c.cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	batchQuery := fmt.Sprintf("%s LIMIT %d OFFSET %d", query, batchSize, offset)
	rows, err := c.db.QueryContext(queryCtx, batchQuery)
	if err != nil {
		return 0, fmt.Errorf("batch query failed at offset %d: %w", offset, err)
	}
	defer rows.Close()

	rowCount := 0
	for rows.Next() {
		rowCount++
		if err := processor(rows); err != nil {
			return rowCount, fmt.Errorf("row processing failed at offset %d: %w", offset, err)
		}
	}
	if err := rows.Err(); err != nil {
		return rowCount, fmt.Errorf("error iterating rows at offset %d: %w", offset, err)
	}

	return rowCount, nil
}
