// pkg/cleaner/resolver.go
package cleaner

import (
	"github.com/David-Botos/signup-ingress/pkg/model"
)

// Resolver collapses admissible rows sharing an email into one golden record
type Resolver struct{}

// NewResolver creates a Resolver
func NewResolver() *Resolver {
	return &Resolver{}
}

// identityGroup holds every admissible row for one email, in input order
type identityGroup struct {
	email   string
	records []model.NormalizedRecord
}

// Resolve returns one golden record per distinct email, ordered by each
// email's first appearance in the input
func (r *Resolver) Resolve(records []model.NormalizedRecord) []model.GoldenRecord {
	golden, _ := r.ResolveTracked(records)
	return golden
}

// ResolveTracked resolves the records and reports each collapsed duplicate
func (r *Resolver) ResolveTracked(records []model.NormalizedRecord) ([]model.GoldenRecord, []model.CleaningOperation) {
	groups := groupByEmail(records)

	golden := make([]model.GoldenRecord, 0, len(groups))
	var ops []model.CleaningOperation

	for _, group := range groups {
		survivorIdx := pickSurvivor(group.records)

		survivor := group.records[survivorIdx]
		survivor.IsMultiPlan = spansMultiplePlans(group.records)

		golden = append(golden, model.GoldenRecord{
			NormalizedRecord: survivor,
			GroupSize:        len(group.records),
		})

		for i, rec := range group.records {
			if i == survivorIdx {
				continue
			}
			ops = append(ops, model.CleaningOperation{
				Line:          rec.Raw.Line,
				Email:         group.email,
				Column:        model.FieldSignupDate,
				OriginalValue: rec.SignupDate,
				NewValue:      survivor.SignupDate,
				Operation:     model.OpDuplicateCollapsed,
				Reason:        "superseded_by_recent_signup",
			})
		}
	}

	return golden, ops
}

// groupByEmail groups records by email, preserving first-appearance order of
// groups and input order within each group
func groupByEmail(records []model.NormalizedRecord) []*identityGroup {
	index := make(map[string]*identityGroup)
	var groups []*identityGroup

	for _, rec := range records {
		group, ok := index[rec.Email]
		if !ok {
			group = &identityGroup{email: rec.Email}
			index[rec.Email] = group
			groups = append(groups, group)
		}
		group.records = append(group.records, rec)
	}
	return groups
}

// pickSurvivor returns the index of the most recent record. Canonical dates
// sort lexicographically; on equal dates the earliest record in input order wins.
func pickSurvivor(records []model.NormalizedRecord) int {
	best := 0
	for i := 1; i < len(records); i++ {
		if records[i].SignupDate > records[best].SignupDate {
			best = i
		}
	}
	return best
}

// spansMultiplePlans reports whether the group covers more than one known plan.
// PlanUnknown does not count toward plan diversity.
func spansMultiplePlans(records []model.NormalizedRecord) bool {
	var first model.Plan
	for _, rec := range records {
		if !rec.Plan.Known() {
			continue
		}
		if first == "" {
			first = rec.Plan
			continue
		}
		if rec.Plan != first {
			return true
		}
	}
	return false
}
