// pkg/model/classification.go
package model

import "fmt"

// Verdict is the outcome of classifying a row
type Verdict int

const (
	// Admissible rows continue to grouping and resolution
	Admissible Verdict = iota
	// Quarantined rows are reported individually with a reason
	Quarantined
)

// String returns a string representation of the verdict
func (v Verdict) String() string {
	switch v {
	case Admissible:
		return "Admissible"
	case Quarantined:
		return "Quarantined"
	default:
		return fmt.Sprintf("Unknown(%d)", v)
	}
}

// Reason explains why a row was quarantined
type Reason string

// Closed set of quarantine reasons
const (
	ReasonInvalidEmail    Reason = "invalid email"
	ReasonTestName        Reason = "test/dummy name"
	ReasonMissingField    Reason = "missing required field"
	ReasonUnparseableDate Reason = "unparseable date"
	ReasonPlaceholder     Reason = "placeholder data"
)

// Reasons lists every quarantine reason in classifier precedence order
var Reasons = []Reason{
	ReasonInvalidEmail,
	ReasonMissingField,
	ReasonTestName,
	ReasonUnparseableDate,
	ReasonPlaceholder,
}

// ClassificationResult pairs a normalized row with its verdict
type ClassificationResult struct {
	Record  NormalizedRecord
	Verdict Verdict
	Reason  Reason // Empty when admissible
}

// AdmissibleResult creates a result that lets the row through
func AdmissibleResult(rec NormalizedRecord) ClassificationResult {
	return ClassificationResult{Record: rec, Verdict: Admissible}
}

// QuarantinedResult creates a result that holds the row back for review
func QuarantinedResult(rec NormalizedRecord, reason Reason) ClassificationResult {
	return ClassificationResult{Record: rec, Verdict: Quarantined, Reason: reason}
}

// IsQuarantined reports whether the row was held back
func (r ClassificationResult) IsQuarantined() bool {
	return r.Verdict == Quarantined
}
