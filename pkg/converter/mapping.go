// pkg/converter/mapping.go
package converter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/David-Botos/signup-ingress/pkg/model"
)

// ErrMissingColumn is returned when a source header lacks a required column
var ErrMissingColumn = errors.New("missing required column")

// ErrDuplicateColumn is returned when two source columns resolve to the same field
var ErrDuplicateColumn = errors.New("duplicate column")

// reservedColumns are output columns an extra source column may not shadow
var reservedColumns = map[string]struct{}{
	ColumnLine:   {},
	ColumnReason: {},
}

// HeaderMapping maps source column positions to canonical field names
type HeaderMapping struct {
	fields []string // index -> canonical or extra field name; "" for ignored columns
}

// MapHeader resolves a source header row against the table schema.
// Recognized headers map to canonical names; anything else is kept under its
// trimmed, lower-cased header text as an extra column.
func MapHeader(header []string, metadata *model.TableMetadata) (*HeaderMapping, error) {
	if metadata == nil {
		return nil, errors.New("table metadata cannot be nil")
	}

	mapping := &HeaderMapping{fields: make([]string, len(header))}
	present := make(map[string]int)
	extras := make(map[string]int)

	for i, raw := range header {
		col := metadata.GetColumnByName(raw)
		if col == nil {
			name := extraColumnName(raw)
			if name == "" {
				continue
			}
			if _, reserved := reservedColumns[name]; reserved {
				return nil, fmt.Errorf("%w: column %d is named %s, which is reserved", ErrDuplicateColumn, i+1, name)
			}
			if prev, dup := extras[name]; dup {
				return nil, fmt.Errorf("%w: columns %d and %d both map to %s", ErrDuplicateColumn, prev+1, i+1, name)
			}
			extras[name] = i
			mapping.fields[i] = name
			continue
		}
		if prev, dup := present[col.Name]; dup {
			return nil, fmt.Errorf("%w: columns %d and %d both map to %s", ErrDuplicateColumn, prev+1, i+1, col.Name)
		}
		present[col.Name] = i
		mapping.fields[i] = col.Name
	}

	var missing []string
	for _, name := range metadata.RequiredColumns() {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	return mapping, nil
}

// Record builds a RawRecord from a row of cells. Short rows are padded with
// empty values so every mapped field is present.
func (m *HeaderMapping) Record(line int, cells []string) model.RawRecord {
	values := make(map[string]string, len(m.fields))
	for i, field := range m.fields {
		if field == "" {
			continue
		}
		if i < len(cells) {
			values[field] = cells[i]
		} else {
			values[field] = ""
		}
	}
	return model.NewRawRecord(line, values)
}

// Fields returns the mapped field names in source column order
func (m *HeaderMapping) Fields() []string {
	return append([]string(nil), m.fields...)
}

// extraColumnName derives a field name for an unrecognized header; blank
// headers are ignored
func extraColumnName(header string) string {
	name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
	return strings.Join(strings.Fields(name), "_")
}
