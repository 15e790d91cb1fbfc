// pkg/source/xlsx.go
package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/David-Botos/signup-ingress/pkg/model"
)

// XLSXReader reads signups from an Excel workbook
type XLSXReader struct {
	path   string
	sheet  string
	logger *zap.Logger
}

// NewXLSXReader creates a reader for one sheet of a workbook.
// An empty sheet name selects the first sheet.
func NewXLSXReader(path, sheet string, logger *zap.Logger) *XLSXReader {
	return &XLSXReader{path: path, sheet: sheet, logger: logger}
}

// Name identifies the source
func (r *XLSXReader) Name() string {
	return "xlsx:" + r.path
}

// Read loads every row of the sheet. Cells are read as stored values so that
// date-typed signup cells can be rendered from their serial number.
func (r *XLSXReader) Read(ctx context.Context) ([]model.RawRecord, error) {
	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", r.path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			r.logger.Warn("Failed to close workbook", zap.String("path", r.path), zap.Error(err))
		}
	}()

	sheet := r.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s has no header row", sheet)
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	converted, err := convertDateSerials(f, sheet, rows, date1904)
	if err != nil {
		return nil, fmt.Errorf("failed to read dates from sheet %s: %w", sheet, err)
	}
	if converted > 0 {
		r.logger.Debug("Converted Excel date serials",
			zap.String("sheet", sheet),
			zap.Int("cells", converted))
	}

	records, err := recordsFromTable(rows[0], rows[1:])
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", sheet, err)
	}

	r.logger.Info("Read workbook sheet",
		zap.String("path", r.path),
		zap.String("sheet", sheet),
		zap.Int("rows", len(records)))
	return records, nil
}

// maxExcelSerial is 9999-12-31, the last date Excel can represent
const maxExcelSerial = 2958465

// convertDateSerials rewrites numeric cells in the signup date column as
// canonical dates and returns how many cells changed. Text cells are left for
// the normalizer, even when they happen to look like numbers.
func convertDateSerials(f *excelize.File, sheet string, rows [][]string, date1904 bool) (int, error) {
	schema := model.SignupSchema()
	col := -1
	for i, header := range rows[0] {
		if c := schema.GetColumnByName(header); c != nil && c.Name == model.FieldSignupDate {
			col = i
			break
		}
	}
	if col < 0 {
		return 0, nil
	}

	converted := 0
	for i, cells := range rows[1:] {
		if col >= len(cells) {
			continue
		}
		serial, err := strconv.ParseFloat(cells[col], 64)
		if err != nil || serial <= 0 || serial > maxExcelSerial {
			continue
		}

		ref, err := excelize.CoordinatesToCellName(col+1, i+2)
		if err != nil {
			return converted, err
		}
		cellType, err := f.GetCellType(sheet, ref)
		if err != nil {
			return converted, err
		}
		switch cellType {
		case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
		default:
			continue
		}

		t, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			continue
		}
		cells[col] = t.Format(model.DateLayout)
		converted++
	}
	return converted, nil
}
