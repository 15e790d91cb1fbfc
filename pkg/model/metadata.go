// pkg/model/metadata.go
package model

import "strings"

// Canonical field names carried by every RawRecord
const (
	FieldEmail      = "email"
	FieldName       = "name"
	FieldSignupDate = "signup_date"
	FieldPlan       = "plan"
)

// RequiredFields lists the canonical fields in output column order
var RequiredFields = []string{FieldEmail, FieldName, FieldSignupDate, FieldPlan}

// TableMetadata describes the columns expected in a signup export
type TableMetadata struct {
	Name    string   // Logical table name
	Columns []Column // Column definitions
}

// Column represents a canonical column and the header spellings that map to it
type Column struct {
	Name     string   // Canonical field name
	Aliases  []string // Alternative header names seen in exports
	Required bool     // Whether the column must be present in the source
}

// SignupSchema returns the column layout of a signup export
func SignupSchema() *TableMetadata {
	return &TableMetadata{
		Name: "signups",
		Columns: []Column{
			{Name: FieldEmail, Aliases: []string{"email address", "e-mail", "e_mail", "mail"}, Required: true},
			{Name: FieldName, Aliases: []string{"full name", "full_name", "customer name", "member name"}, Required: true},
			{Name: FieldSignupDate, Aliases: []string{"signup date", "signupdate", "sign up date", "signed_up", "date"}, Required: true},
			{Name: FieldPlan, Aliases: []string{"plan name", "plan_name", "subscription", "tier"}, Required: true},
		},
	}
}

// GetColumnByName returns a column by name or alias (case-insensitive)
// Returns nil if column not found
func (tm *TableMetadata) GetColumnByName(name string) *Column {
	normalizedName := normalizeColumnName(name)
	for i, col := range tm.Columns {
		if normalizeColumnName(col.Name) == normalizedName {
			return &tm.Columns[i]
		}
		for _, alias := range col.Aliases {
			if normalizeColumnName(alias) == normalizedName {
				return &tm.Columns[i]
			}
		}
	}
	return nil
}

// RequiredColumns returns the names of columns that must be present
func (tm *TableMetadata) RequiredColumns() []string {
	var names []string
	for _, col := range tm.Columns {
		if col.Required {
			names = append(names, col.Name)
		}
	}
	return names
}

// normalizeColumnName folds case and surrounding whitespace, and strips a UTF-8 BOM
// that spreadsheet exports often prepend to the first header
func normalizeColumnName(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
}
