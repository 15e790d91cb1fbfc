// pkg/model/cleaning.go
package model

// Operation names recorded in CleaningOperation.Operation
const (
	OpTrim               = "trim"
	OpLowercase          = "lowercase"
	OpDateReformat       = "date_reformat"
	OpPlanCanonicalize   = "plan_canonicalize"
	OpMarkInvalid        = "mark_invalid"
	OpMarkUnparseable    = "mark_unparseable"
	OpMarkUnknown        = "mark_unknown"
	OpDuplicateCollapsed = "duplicate_collapsed"
)

// CleaningOperation represents a single change made to a row while cleaning
type CleaningOperation struct {
	Line          int    // Source line of the row that changed
	Email         string // Canonical email of the row (may be a marker)
	Column        string // Column that was cleaned
	OriginalValue string // Value as read
	NewValue      string // Value after cleaning
	Operation     string // Type of cleaning performed (e.g., "date_reformat")
	Reason        string // Why the change was made (e.g., "non_canonical_date")
}
