// pkg/model/record.go
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRecord is returned when a row lacks one of the canonical field keys
var ErrMalformedRecord = errors.New("malformed record")

// Marker values stored in place of fields that failed normalization
const (
	EmailInvalid    = "invalid"
	DateUnparseable = "unparseable"
)

// DateLayout is the canonical signup_date format
const DateLayout = "2006-01-02"

// Plan is a canonical plan identifier
type Plan string

// PlanUnknown is assigned to plan values outside the closed plan set
const PlanUnknown Plan = "unknown"

// Known reports whether the plan is part of the closed plan set
func (p Plan) Known() bool {
	return p != "" && p != PlanUnknown
}

// RawRecord is a row as read from the source, keyed by canonical field name
type RawRecord struct {
	Line   int               // 1-based position of the row in the source
	Values map[string]string // Raw cell values; absent cells are empty strings
}

// SignupFields is the typed view of a RawRecord's canonical fields
type SignupFields struct {
	Email      string
	Name       string
	SignupDate string
	Plan       string
}

// NewRawRecord builds a RawRecord from a key-value mapping
func NewRawRecord(line int, values map[string]string) RawRecord {
	return RawRecord{Line: line, Values: values}
}

// Fields returns the typed canonical fields of the record.
// A record missing any canonical key entirely is malformed.
func (r RawRecord) Fields() (SignupFields, error) {
	var missing []string
	for _, field := range RequiredFields {
		if _, ok := r.Values[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return SignupFields{}, fmt.Errorf("%w: line %d missing %s",
			ErrMalformedRecord, r.Line, strings.Join(missing, ", "))
	}

	return SignupFields{
		Email:      r.Values[FieldEmail],
		Name:       r.Values[FieldName],
		SignupDate: r.Values[FieldSignupDate],
		Plan:       r.Values[FieldPlan],
	}, nil
}

// Extra returns the non-canonical columns carried by the record
func (r RawRecord) Extra() map[string]string {
	extra := make(map[string]string)
	for key, value := range r.Values {
		switch key {
		case FieldEmail, FieldName, FieldSignupDate, FieldPlan:
			continue
		}
		extra[key] = value
	}
	return extra
}

// NormalizedRecord is a row in canonical form
type NormalizedRecord struct {
	Email       string    // Lower-cased email, EmailInvalid, or "" when blank
	Name        string    // Trimmed name, case preserved
	SignupDate  string    // YYYY-MM-DD, DateUnparseable, or "" when blank
	Plan        Plan      // Canonical plan or PlanUnknown
	IsMultiPlan bool      // Set only by the resolver
	Raw         RawRecord // Originating row, for audit and quarantine reporting
}

// GoldenRecord is the surviving record for one email
type GoldenRecord struct {
	NormalizedRecord
	GroupSize int // Number of admissible rows that shared this email
}
