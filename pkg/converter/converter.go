// pkg/converter/converter.go
package converter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/signup-ingress/pkg/model"
)

// Output column names
const (
	ColumnIsMultiPlan = "is_multi_plan"
	ColumnLine        = "line"
	ColumnReason      = "reason"
	ColumnRunID       = "run_id"
)

// RowConverter renders golden and quarantined records as output rows
type RowConverter struct {
	logger *zap.Logger
	// Configuration options
	config RowConverterConfig
}

// RowConverterConfig provides configuration options for row rendering
type RowConverterConfig struct {
	// Literal written for a true boolean
	TrueLiteral string
	// Literal written for a false boolean
	FalseLiteral string
	// Whether quarantine rows carry non-canonical source columns
	IncludeExtraColumns bool
}

// DefaultConfig returns the default configuration
func DefaultConfig() RowConverterConfig {
	return RowConverterConfig{
		TrueLiteral:         "True",
		FalseLiteral:        "False",
		IncludeExtraColumns: true,
	}
}

// NewRowConverter creates a new RowConverter with default configuration
func NewRowConverter(logger *zap.Logger) *RowConverter {
	return NewRowConverterWithConfig(logger, DefaultConfig())
}

// NewRowConverterWithConfig creates a RowConverter with custom configuration
func NewRowConverterWithConfig(logger *zap.Logger, config RowConverterConfig) *RowConverter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RowConverter{
		logger: logger,
		config: config,
	}
}

// GoldenHeader returns the golden output columns
func (c *RowConverter) GoldenHeader() []string {
	return []string{
		model.FieldEmail,
		model.FieldName,
		model.FieldSignupDate,
		model.FieldPlan,
		ColumnIsMultiPlan,
	}
}

// GoldenRow renders a golden record in GoldenHeader order
func (c *RowConverter) GoldenRow(g model.GoldenRecord) []string {
	return []string{
		g.Email,
		g.Name,
		g.SignupDate,
		string(g.Plan),
		c.FormatBool(g.IsMultiPlan),
	}
}

// QuarantineHeader returns the quarantine columns for a set of results.
// Extra source columns are sorted by name so the header is deterministic.
func (c *RowConverter) QuarantineHeader(results []model.ClassificationResult) ([]string, []string) {
	extras := c.extraColumns(results)

	header := make([]string, 0, len(model.RequiredFields)+len(extras)+2)
	header = append(header, ColumnLine)
	header = append(header, model.RequiredFields...)
	header = append(header, extras...)
	header = append(header, ColumnReason)
	return header, extras
}

// QuarantineRow renders a quarantined result with its original values
func (c *RowConverter) QuarantineRow(r model.ClassificationResult, extras []string) []string {
	values := r.Record.Raw.Values

	row := make([]string, 0, len(model.RequiredFields)+len(extras)+2)
	row = append(row, strconv.Itoa(r.Record.Raw.Line))
	for _, field := range model.RequiredFields {
		row = append(row, values[field])
	}
	for _, extra := range extras {
		row = append(row, values[extra])
	}
	row = append(row, string(r.Reason))
	return row
}

// FormatBool renders a boolean with the configured literals
func (c *RowConverter) FormatBool(v bool) string {
	if v {
		return c.config.TrueLiteral
	}
	return c.config.FalseLiteral
}

func (c *RowConverter) extraColumns(results []model.ClassificationResult) []string {
	if !c.config.IncludeExtraColumns {
		return nil
	}

	seen := make(map[string]struct{})
	for _, r := range results {
		for key := range r.Record.Raw.Extra() {
			seen[key] = struct{}{}
		}
	}

	extras := make([]string, 0, len(seen))
	for key := range seen {
		extras = append(extras, key)
	}
	sort.Strings(extras)

	if len(extras) > 0 {
		c.logger.Debug("Carrying extra source columns into quarantine output",
			zap.Strings("columns", extras))
	}
	return extras
}

// GoldenColumnDefinitions returns PostgreSQL column definitions for golden records
func (c *RowConverter) GoldenColumnDefinitions() []string {
	return []string{
		columnDefinition(ColumnRunID, "UUID", false),
		columnDefinition(model.FieldEmail, "TEXT", false),
		columnDefinition(model.FieldName, "TEXT", false),
		columnDefinition(model.FieldSignupDate, "DATE", false),
		columnDefinition(model.FieldPlan, "TEXT", false),
		columnDefinition(ColumnIsMultiPlan, "BOOLEAN", false),
		columnDefinition("group_size", "INTEGER", false),
		columnDefinition("source_line", "INTEGER", false),
	}
}

// QuarantineColumnDefinitions returns PostgreSQL column definitions for quarantined rows
func (c *RowConverter) QuarantineColumnDefinitions() []string {
	return []string{
		columnDefinition(ColumnRunID, "UUID", false),
		columnDefinition("source_line", "INTEGER", false),
		columnDefinition(model.FieldEmail, "TEXT", true),
		columnDefinition(model.FieldName, "TEXT", true),
		columnDefinition(model.FieldSignupDate, "TEXT", true),
		columnDefinition(model.FieldPlan, "TEXT", true),
		columnDefinition("extra", "JSONB", true),
		columnDefinition(ColumnReason, "TEXT", false),
	}
}

func columnDefinition(name, pgType string, nullable bool) string {
	nullability := "NOT NULL"
	if nullable {
		nullability = "NULL"
	}
	return fmt.Sprintf("%s %s %s", quoteIdentifier(name), pgType, nullability)
}

// quoteIdentifier properly quotes and escapes a lower-cased PostgreSQL identifier
func quoteIdentifier(name string) string {
	return pq.QuoteIdentifier(strings.ToLower(name))
}

// QualifiedName returns a quoted schema-qualified table name
func QualifiedName(schema, table string) string {
	if schema == "" {
		return quoteIdentifier(table)
	}
	return quoteIdentifier(schema) + "." + quoteIdentifier(table)
}
