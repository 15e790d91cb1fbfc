// pkg/source/snowflake.go
package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/signup-ingress/pkg/connector"
	"github.com/David-Botos/signup-ingress/pkg/converter"
	"github.com/David-Botos/signup-ingress/pkg/model"
)

// SnowflakeReader reads signups from a Snowflake table
type SnowflakeReader struct {
	conn      *connector.SnowflakeConnector
	batchSize int
	logger    *zap.Logger
}

// NewSnowflakeReader creates a reader over the configured source table
func NewSnowflakeReader(conn *connector.SnowflakeConnector, batchSize int, logger *zap.Logger) *SnowflakeReader {
	return &SnowflakeReader{conn: conn, batchSize: batchSize, logger: logger}
}

// Name identifies the source
func (r *SnowflakeReader) Name() string {
	cfg := r.conn.Config()
	return fmt.Sprintf("snowflake:%s.%s.%s", cfg.Database, cfg.Schema, cfg.SourceTable)
}

// Read pages through the table in export order
func (r *SnowflakeReader) Read(ctx context.Context) ([]model.RawRecord, error) {
	cfg := r.conn.Config()
	query := fmt.Sprintf("SELECT * FROM %s.%s ORDER BY %s",
		identifier(cfg.Schema), identifier(cfg.SourceTable), identifier(cfg.OrderBy))

	var (
		header  []string
		rows    [][]string
		columns []string
	)

	err := r.conn.BatchQuery(ctx, query, r.batchSize, func(rs *sql.Rows) error {
		if columns == nil {
			cols, err := rs.Columns()
			if err != nil {
				return fmt.Errorf("failed to read columns: %w", err)
			}
			columns = cols
			header = make([]string, len(cols))
			for i, col := range cols {
				header[i] = strings.ToLower(col)
			}
		}

		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rs.Scan(pointers...); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}

		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = converter.ToText(v)
		}
		rows = append(rows, cells)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.Name(), err)
	}

	if header == nil {
		r.logger.Warn("Source table is empty", zap.String("source", r.Name()))
		return []model.RawRecord{}, nil
	}

	records, err := recordsFromTable(header, rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Name(), err)
	}

	r.logger.Info("Read Snowflake table",
		zap.String("source", r.Name()),
		zap.Int("rows", len(records)))
	return records, nil
}

// identifier double-quotes a Snowflake identifier, upper-casing it the way
// unquoted identifiers resolve
func identifier(name string) string {
	return `"` + strings.ReplaceAll(strings.ToUpper(name), `"`, `""`) + `"`
}
