// pkg/audit/recorder.go
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/signup-ingress/pkg/model"
)

// DefaultTable is where cleaning operations are recorded
const DefaultTable = "cleaned_on_ingress"

// auditRow is one cleaning operation as stored in the tracking table
type auditRow struct {
	RunID         string         `db:"run_id"`
	SourceLine    int            `db:"source_line"`
	Email         sql.NullString `db:"email"`
	ColumnName    string         `db:"column_name"`
	OriginalValue sql.NullString `db:"original_value"`
	NewValue      string         `db:"new_value"`
	Operation     string         `db:"cleaning_operation"`
	Reason        string         `db:"cleaning_reason"`
}

// Recorder persists cleaning operations to PostgreSQL
type Recorder struct {
	db        *sqlx.DB
	schema    string
	table     string
	batchSize int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRecorder creates a recorder on an open pgx connection pool
func NewRecorder(db *sql.DB, schema string, logger *zap.Logger) (*Recorder, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if schema == "" {
		schema = "public"
	}

	return &Recorder{
		db:        sqlx.NewDb(db, "pgx"),
		schema:    schema,
		table:     DefaultTable,
		batchSize: 500,
		timeout:   30 * time.Second,
		logger:    logger,
	}, nil
}

// WithTable overrides the tracking table name
func (r *Recorder) WithTable(table string) *Recorder {
	if table != "" {
		r.table = table
	}
	return r
}

// WithBatchSize sets how many operations go into one INSERT
func (r *Recorder) WithBatchSize(size int) *Recorder {
	if size > 0 {
		r.batchSize = size
	}
	return r
}

func (r *Recorder) tableName() string {
	return pq.QuoteIdentifier(r.schema) + "." + pq.QuoteIdentifier(r.table)
}

// EnsureTable creates the tracking table if it does not exist
func (r *Recorder) EnsureTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	createTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id SERIAL PRIMARY KEY,
			run_id UUID NOT NULL,
			source_line INTEGER NOT NULL,
			email TEXT,
			column_name TEXT NOT NULL,
			original_value TEXT,
			new_value TEXT NOT NULL,
			cleaning_operation TEXT NOT NULL,
			cleaning_reason TEXT NOT NULL,
			cleaned_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)
	`, r.tableName())

	if _, err := r.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create tracking table: %w", err)
	}

	r.logger.Info("Ensured cleaning tracking table exists", zap.String("table", r.tableName()))
	return nil
}

// Record inserts a run's cleaning operations in one transaction
func (r *Recorder) Record(ctx context.Context, runID uuid.UUID, operations []model.CleaningOperation) (err error) {
	if len(operations) == 0 {
		return nil
	}

	if err := r.EnsureTable(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.NamedError("cause", err))
			}
		}
	}()

	insertSQL := fmt.Sprintf(`
		INSERT INTO %s
		(run_id, source_line, email, column_name, original_value, new_value,
		 cleaning_operation, cleaning_reason)
		VALUES (:run_id, :source_line, :email, :column_name, :original_value, :new_value,
		 :cleaning_operation, :cleaning_reason)
	`, r.tableName())

	rows := toRows(runID, operations)
	for start := 0; start < len(rows); start += r.batchSize {
		end := start + r.batchSize
		if end > len(rows) {
			end = len(rows)
		}

		if _, err = tx.NamedExecContext(ctx, insertSQL, rows[start:end]); err != nil {
			return fmt.Errorf("failed to insert cleaning operations: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info("Recorded cleaning operations",
		zap.String("runId", runID.String()),
		zap.Int("count", len(operations)))
	return nil
}

func toRows(runID uuid.UUID, operations []model.CleaningOperation) []auditRow {
	rows := make([]auditRow, len(operations))
	for i, op := range operations {
		rows[i] = auditRow{
			RunID:         runID.String(),
			SourceLine:    op.Line,
			Email:         nullableString(op.Email),
			ColumnName:    op.Column,
			OriginalValue: nullableString(op.OriginalValue),
			NewValue:      op.NewValue,
			Operation:     op.Operation,
			Reason:        op.Reason,
		}
	}
	return rows
}

// nullableString stores empty values as NULL
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
