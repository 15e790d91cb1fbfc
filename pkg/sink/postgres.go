// pkg/sink/postgres.go
package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/signup-ingress/pkg/config"
	"github.com/David-Botos/signup-ingress/pkg/converter"
	"github.com/David-Botos/signup-ingress/pkg/model"
)

// TableWriter is the part of a database connector the Postgres sink needs
type TableWriter interface {
	CreateTableIfNotExists(ctx context.Context, schema, table string, columnDefs []string, primaryKey string) error
	BatchInsert(ctx context.Context, schema, table string, columns []string, valueRows [][]interface{}, batchSize int) (int64, error)
}

// Output table columns, in insert order
var (
	goldenColumns = []string{
		converter.ColumnRunID,
		model.FieldEmail,
		model.FieldName,
		model.FieldSignupDate,
		model.FieldPlan,
		converter.ColumnIsMultiPlan,
		"group_size",
		"source_line",
	}
	quarantineColumns = []string{
		converter.ColumnRunID,
		"source_line",
		model.FieldEmail,
		model.FieldName,
		model.FieldSignupDate,
		model.FieldPlan,
		"extra",
		converter.ColumnReason,
	}
)

// PostgresSink writes run outputs into PostgreSQL tables keyed by run id
type PostgresSink struct {
	writer          TableWriter
	schema          string
	goldenTable     string
	quarantineTable string
	batchSize       int
	converter       *converter.RowConverter
	logger          *zap.Logger
}

// NewPostgresSink creates a sink for the tables named in cfg
func NewPostgresSink(writer TableWriter, cfg *config.PostgresConfig, batchSize int, logger *zap.Logger) (*PostgresSink, error) {
	if writer == nil {
		return nil, errors.New("table writer cannot be nil")
	}
	if cfg == nil {
		return nil, errors.New("postgres configuration cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &PostgresSink{
		writer:          writer,
		schema:          cfg.Schema,
		goldenTable:     cfg.GoldenTable,
		quarantineTable: cfg.QuarantineTable,
		batchSize:       batchSize,
		converter:       converter.NewRowConverter(logger),
		logger:          logger,
	}, nil
}

// Name identifies the sink
func (s *PostgresSink) Name() string {
	return "postgres"
}

// WriteGolden inserts the golden records
func (s *PostgresSink) WriteGolden(ctx context.Context, runID uuid.UUID, golden []model.GoldenRecord) (int64, error) {
	err := s.writer.CreateTableIfNotExists(ctx, s.schema, s.goldenTable,
		s.converter.GoldenColumnDefinitions(), primaryKey(converter.ColumnRunID, model.FieldEmail))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare golden table: %w", err)
	}

	rows := make([][]interface{}, len(golden))
	for i, g := range golden {
		rows[i] = []interface{}{
			runID.String(),
			g.Email,
			g.Name,
			g.SignupDate,
			string(g.Plan),
			g.IsMultiPlan,
			g.GroupSize,
			g.Raw.Line,
		}
	}

	inserted, err := s.writer.BatchInsert(ctx, s.schema, s.goldenTable, goldenColumns, rows, s.batchSize)
	if err != nil {
		return inserted, fmt.Errorf("failed to insert golden records: %w", err)
	}

	s.logger.Info("Inserted golden records",
		zap.String("table", converter.QualifiedName(s.schema, s.goldenTable)),
		zap.Int64("rows", inserted))
	return inserted, nil
}

// WriteQuarantine inserts the quarantined rows with their original values
func (s *PostgresSink) WriteQuarantine(ctx context.Context, runID uuid.UUID, quarantined []model.ClassificationResult) (int64, error) {
	err := s.writer.CreateTableIfNotExists(ctx, s.schema, s.quarantineTable,
		s.converter.QuarantineColumnDefinitions(), primaryKey(converter.ColumnRunID, "source_line"))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare quarantine table: %w", err)
	}

	rows := make([][]interface{}, len(quarantined))
	for i, q := range quarantined {
		raw := q.Record.Raw

		var extra interface{}
		data, err := converter.ExtraJSON(raw)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", raw.Line, err)
		}
		if data != nil {
			extra = string(data)
		}

		rows[i] = []interface{}{
			runID.String(),
			raw.Line,
			raw.Values[model.FieldEmail],
			raw.Values[model.FieldName],
			raw.Values[model.FieldSignupDate],
			raw.Values[model.FieldPlan],
			extra,
			string(q.Reason),
		}
	}

	inserted, err := s.writer.BatchInsert(ctx, s.schema, s.quarantineTable, quarantineColumns, rows, s.batchSize)
	if err != nil {
		return inserted, fmt.Errorf("failed to insert quarantine rows: %w", err)
	}

	s.logger.Info("Inserted quarantine rows",
		zap.String("table", converter.QualifiedName(s.schema, s.quarantineTable)),
		zap.Int64("rows", inserted))
	return inserted, nil
}

func primaryKey(columns ...string) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = pq.QuoteIdentifier(col)
	}
	return strings.Join(quoted, ", ")
}
