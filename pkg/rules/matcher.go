// pkg/rules/matcher.go
package rules

import (
	"strings"
	"time"
	"unicode"

	"github.com/David-Botos/signup-ingress/pkg/model"
)

// Matcher answers rule questions against a compiled RuleSet. It is read-only
// after Compile and safe for concurrent use.
type Matcher struct {
	testTokens    map[string]struct{}
	dateLayouts   []string
	plans         map[string]model.Plan
	placeholderDm map[string]struct{}
	placeholderLp map[string]struct{}
}

// CanonicalPlan maps a raw plan value to the closed plan set
func (m *Matcher) CanonicalPlan(raw string) model.Plan {
	if plan, ok := m.plans[planKey(raw)]; ok {
		return plan
	}
	return model.PlanUnknown
}

// ParseDate tries each layout in priority order and returns the first match
func (m *Matcher) ParseDate(raw string) (time.Time, bool) {
	for _, layout := range m.dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsTestName reports whether the whole name, or any word in it, is a test token
func (m *Matcher) IsTestName(name string) bool {
	folded := strings.ToLower(strings.TrimSpace(name))
	if folded == "" {
		return false
	}
	if _, ok := m.testTokens[folded]; ok {
		return true
	}

	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '/'
	})
	for _, word := range words {
		if _, ok := m.testTokens[word]; ok {
			return true
		}
	}
	return false
}

// IsPlaceholderEmail reports whether a canonical email belongs to fabricated data
func (m *Matcher) IsPlaceholderEmail(email string) bool {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return false
	}
	if _, hit := m.placeholderDm[domain]; hit {
		return true
	}
	_, hit := m.placeholderLp[local]
	return hit
}

// DateLayouts returns a copy of the layouts in priority order
func (m *Matcher) DateLayouts() []string {
	return append([]string(nil), m.dateLayouts...)
}
