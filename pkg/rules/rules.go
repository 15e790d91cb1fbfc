// pkg/rules/rules.go
package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/David-Botos/signup-ingress/pkg/model"
)

// ErrInvalidRuleSet is returned when a rule set cannot be compiled
var ErrInvalidRuleSet = errors.New("invalid rule set")

// RuleSet holds the business rule lists used by the cleaner
type RuleSet struct {
	// Words that mark a name as test or dummy data
	TestNameTokens []string `yaml:"test_name_tokens"`
	// Go time layouts tried in order when parsing signup dates
	DateLayouts []string `yaml:"date_layouts"`
	// Closed plan set with the spellings that map to each plan
	Plans []PlanRule `yaml:"plans"`
	// Email domains that only appear in fabricated rows
	PlaceholderEmailDomains []string `yaml:"placeholder_email_domains"`
	// Email local parts that only appear in fabricated rows
	PlaceholderEmailLocals []string `yaml:"placeholder_email_locals"`
}

// PlanRule maps synonyms to one canonical plan
type PlanRule struct {
	Name     string   `yaml:"name"`
	Synonyms []string `yaml:"synonyms"`
}

// Default returns the rule set used when no rules file is configured
func Default() RuleSet {
	return RuleSet{
		TestNameTokens: []string{"test", "testing", "dummy", "n/a", "xxx", "asdf", "qwerty"},
		DateLayouts: []string{
			"01/02/2006",
			"1/2/2006",
			"2006-01-02",
			"02-Jan-2006",
			"2-Jan-2006",
			"2006/01/02",
			"Jan 2, 2006",
			"January 2, 2006",
			"2006-01-02T15:04:05Z07:00",
			"2006-01-02 15:04:05",
			"01/02/2006 15:04",
		},
		Plans: []PlanRule{
			{Name: "Plan A", Synonyms: []string{"a", "plan a", "plana", "plan_a", "plan-a", "basic"}},
			{Name: "Plan B", Synonyms: []string{"b", "plan b", "planb", "plan_b", "plan-b", "pro"}},
			{Name: "Plan C", Synonyms: []string{"c", "plan c", "planc", "plan_c", "plan-c", "enterprise"}},
		},
		// Placeholder checks are opt-in through a rules file
		PlaceholderEmailDomains: []string{},
		PlaceholderEmailLocals:  []string{},
	}
}

// LoadFile reads a YAML rules file. Lists omitted from the file keep their defaults.
func LoadFile(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML rules on top of the defaults
func Parse(data []byte) (RuleSet, error) {
	var overlay RuleSet
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return RuleSet{}, fmt.Errorf("failed to parse rules: %w", err)
	}

	rs := Default()
	if overlay.TestNameTokens != nil {
		rs.TestNameTokens = overlay.TestNameTokens
	}
	if overlay.DateLayouts != nil {
		rs.DateLayouts = overlay.DateLayouts
	}
	if overlay.Plans != nil {
		rs.Plans = overlay.Plans
	}
	if overlay.PlaceholderEmailDomains != nil {
		rs.PlaceholderEmailDomains = overlay.PlaceholderEmailDomains
	}
	if overlay.PlaceholderEmailLocals != nil {
		rs.PlaceholderEmailLocals = overlay.PlaceholderEmailLocals
	}
	return rs, nil
}

// Marshal renders the rule set as YAML
func (rs RuleSet) Marshal() ([]byte, error) {
	return yaml.Marshal(rs)
}

// Validate ensures the rule set can drive the cleaner
func (rs RuleSet) Validate() error {
	if len(rs.DateLayouts) == 0 {
		return fmt.Errorf("%w: at least one date layout is required", ErrInvalidRuleSet)
	}
	for _, layout := range rs.DateLayouts {
		if strings.TrimSpace(layout) == "" {
			return fmt.Errorf("%w: empty date layout", ErrInvalidRuleSet)
		}
	}

	seen := make(map[string]string)
	for _, plan := range rs.Plans {
		name := strings.TrimSpace(plan.Name)
		if name == "" {
			return fmt.Errorf("%w: plan without a name", ErrInvalidRuleSet)
		}
		if model.Plan(name) == model.PlanUnknown {
			return fmt.Errorf("%w: plan name %q is reserved", ErrInvalidRuleSet, name)
		}
		for _, synonym := range append([]string{name}, plan.Synonyms...) {
			key := planKey(synonym)
			if owner, ok := seen[key]; ok && owner != name {
				return fmt.Errorf("%w: synonym %q maps to both %q and %q",
					ErrInvalidRuleSet, synonym, owner, name)
			}
			seen[key] = name
		}
	}
	return nil
}

// Compile validates the rule set and builds the lookup tables used at match time
func (rs RuleSet) Compile() (*Matcher, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}

	m := &Matcher{
		testTokens:    toSet(rs.TestNameTokens),
		dateLayouts:   append([]string(nil), rs.DateLayouts...),
		plans:         make(map[string]model.Plan),
		placeholderDm: toSet(rs.PlaceholderEmailDomains),
		placeholderLp: toSet(rs.PlaceholderEmailLocals),
	}
	for _, plan := range rs.Plans {
		name := model.Plan(strings.TrimSpace(plan.Name))
		m.plans[planKey(string(name))] = name
		for _, synonym := range plan.Synonyms {
			m.plans[planKey(synonym)] = name
		}
	}
	return m, nil
}

// MustCompileDefault compiles the default rule set
func MustCompileDefault() *Matcher {
	m, err := Default().Compile()
	if err != nil {
		panic(err)
	}
	return m
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// planKey folds case and collapses runs of spaces, underscores and hyphens
func planKey(value string) string {
	fields := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	})
	return strings.Join(fields, " ")
}
