// pkg/converter/values.go
package converter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/David-Botos/signup-ingress/pkg/model"
)

// ToText converts a driver value to the text a spreadsheet cell would hold.
// NULL becomes the empty string so absent values read as blank.
func ToText(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case bool:
		return strconv.FormatBool(v)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return formatTime(v)
	default:
		// Try JSON marshaling for complex types
		jsonBytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(jsonBytes)
	}
}

// formatTime renders date-only values in the canonical layout and anything
// with a time component as RFC3339
func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(model.DateLayout)
	}
	return t.Format(time.RFC3339)
}

// ExtraJSON encodes a record's non-canonical columns for a JSONB column
func ExtraJSON(raw model.RawRecord) ([]byte, error) {
	extra := raw.Extra()
	if len(extra) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extra columns: %w", err)
	}
	return data, nil
}
