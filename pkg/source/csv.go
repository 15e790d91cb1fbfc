// pkg/source/csv.go
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/David-Botos/signup-ingress/pkg/model"
)

// CSVReader reads signups from a comma-separated export
type CSVReader struct {
	path   string
	logger *zap.Logger
}

// NewCSVReader creates a reader for the CSV file at path
func NewCSVReader(path string, logger *zap.Logger) *CSVReader {
	return &CSVReader{path: path, logger: logger}
}

// Name identifies the source
func (r *CSVReader) Name() string {
	return "csv:" + r.path
}

// Read loads every row of the file
func (r *CSVReader) Read(ctx context.Context) ([]model.RawRecord, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", r.path, err)
	}
	defer f.Close()

	records, err := ReadCSV(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.path, err)
	}

	r.logger.Info("Read CSV export",
		zap.String("path", r.path),
		zap.Int("rows", len(records)))
	return records, nil
}

// ReadCSV parses CSV content whose first row is the header
func ReadCSV(ctx context.Context, in io.Reader) ([]model.RawRecord, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1 // ragged rows are padded by the header mapping
	reader.TrimLeadingSpace = false

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("input has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, cells)
	}

	return recordsFromTable(header, rows)
}
