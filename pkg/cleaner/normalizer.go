// pkg/cleaner/normalizer.go
package cleaner

import (
	"errors"
	"strings"

	"github.com/David-Botos/signup-ingress/pkg/model"
	"github.com/David-Botos/signup-ingress/pkg/rules"
)

// Normalizer standardizes raw field values into canonical form
type Normalizer struct {
	rules *rules.Matcher
}

// NewNormalizer creates a Normalizer driven by the given rules
func NewNormalizer(matcher *rules.Matcher) (*Normalizer, error) {
	if matcher == nil {
		return nil, errors.New("rules matcher cannot be nil")
	}
	return &Normalizer{rules: matcher}, nil
}

// Normalize converts a raw row into canonical form. It never fails: values
// that cannot be standardized are replaced by marker values.
func (n *Normalizer) Normalize(raw model.RawRecord) model.NormalizedRecord {
	rec, _ := n.NormalizeTracked(raw)
	return rec
}

// NormalizeTracked normalizes a row and reports every field change made
func (n *Normalizer) NormalizeTracked(raw model.RawRecord) (model.NormalizedRecord, []model.CleaningOperation) {
	// Missing keys read as blank; the orchestrator rejects such rows before this point
	fields := model.SignupFields{
		Email:      raw.Values[model.FieldEmail],
		Name:       raw.Values[model.FieldName],
		SignupDate: raw.Values[model.FieldSignupDate],
		Plan:       raw.Values[model.FieldPlan],
	}

	var ops []model.CleaningOperation

	email, op := n.normalizeEmail(raw, fields.Email)
	ops = appendOperation(ops, op)

	name := strings.TrimSpace(fields.Name)
	ops = appendOperation(ops, changeOperation(raw, model.FieldName, fields.Name, name, model.OpTrim, "surrounding_whitespace"))

	date, op := n.normalizeDate(raw, fields.SignupDate)
	ops = appendOperation(ops, op)

	plan, op := n.normalizePlan(raw, fields.Plan)
	ops = appendOperation(ops, op)

	for i := range ops {
		ops[i].Email = email
	}

	return model.NormalizedRecord{
		Email:      email,
		Name:       name,
		SignupDate: date,
		Plan:       plan,
		Raw:        raw,
	}, ops
}

// normalizeEmail trims and lower-cases the address, marking it invalid when malformed
func (n *Normalizer) normalizeEmail(raw model.RawRecord, value string) (string, *model.CleaningOperation) {
	email := strings.ToLower(strings.TrimSpace(value))
	if email == "" {
		return "", changeOperation(raw, model.FieldEmail, value, "", model.OpTrim, "blank_value")
	}
	if !isWellFormedEmail(email) {
		return model.EmailInvalid, changeOperation(raw, model.FieldEmail, value, model.EmailInvalid,
			model.OpMarkInvalid, "malformed_email")
	}

	operation := model.OpLowercase
	if strings.TrimSpace(value) == strings.ToLower(strings.TrimSpace(value)) {
		operation = model.OpTrim
	}
	return email, changeOperation(raw, model.FieldEmail, value, email, operation, "non_canonical_email")
}

// normalizeDate reformats the signup date to YYYY-MM-DD using the first matching layout
func (n *Normalizer) normalizeDate(raw model.RawRecord, value string) (string, *model.CleaningOperation) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", changeOperation(raw, model.FieldSignupDate, value, "", model.OpTrim, "blank_value")
	}

	parsed, ok := n.rules.ParseDate(trimmed)
	if !ok {
		return model.DateUnparseable, changeOperation(raw, model.FieldSignupDate, value, model.DateUnparseable,
			model.OpMarkUnparseable, "no_matching_date_layout")
	}

	date := parsed.Format(model.DateLayout)
	return date, changeOperation(raw, model.FieldSignupDate, value, date, model.OpDateReformat, "non_canonical_date")
}

// normalizePlan maps the plan through the synonym table
func (n *Normalizer) normalizePlan(raw model.RawRecord, value string) (model.Plan, *model.CleaningOperation) {
	plan := n.rules.CanonicalPlan(value)
	if !plan.Known() {
		return plan, changeOperation(raw, model.FieldPlan, value, string(plan), model.OpMarkUnknown, "unrecognized_plan")
	}
	return plan, changeOperation(raw, model.FieldPlan, value, string(plan), model.OpPlanCanonicalize, "plan_synonym")
}
