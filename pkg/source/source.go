// pkg/source/source.go
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/signup-ingress/pkg/converter"
	"github.com/David-Botos/signup-ingress/pkg/model"
)

// Reader produces signup rows in their original order
type Reader interface {
	// Name identifies the source in logs and reports
	Name() string

	// Read returns every row of the source, keyed by canonical field name
	Read(ctx context.Context) ([]model.RawRecord, error)
}

// OpenFile returns a reader for a spreadsheet export, chosen by file extension
func OpenFile(path, sheet string, logger *zap.Logger) (Reader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return NewCSVReader(path, logger), nil
	case ".xlsx", ".xlsm":
		return NewXLSXReader(path, sheet, logger), nil
	default:
		return nil, fmt.Errorf("unsupported input format %q (expected .csv or .xlsx)", filepath.Ext(path))
	}
}

// recordsFromTable maps a header row and data rows into raw records.
// Line numbers count the header as line 1, matching what a spreadsheet shows.
func recordsFromTable(header []string, rows [][]string) ([]model.RawRecord, error) {
	mapping, err := converter.MapHeader(header, model.SignupSchema())
	if err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(rows))
	for i, cells := range rows {
		if isBlankRow(cells) {
			continue
		}
		records = append(records, mapping.Record(i+2, cells))
	}
	return records, nil
}

// isBlankRow reports whether every cell is empty; exports often end with such rows
func isBlankRow(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
