// pkg/model/summary.go
package model

// Summary aggregates the outcome of one cleaning run
type Summary struct {
	TotalRows           int            `json:"total_rows"`
	GoldenRows          int            `json:"golden_rows"`
	QuarantinedRows     int            `json:"quarantined_rows"`
	DuplicatesCollapsed int            `json:"duplicates_collapsed"`
	MultiPlanRecords    int            `json:"multi_plan_records"`
	ReasonCounts        map[Reason]int `json:"reason_counts"`
}

// QualityRate returns the share of input rows that were admissible, as a percentage
func (s Summary) QualityRate() float64 {
	if s.TotalRows == 0 {
		return 0
	}
	admissible := s.TotalRows - s.QuarantinedRows
	return float64(admissible) / float64(s.TotalRows) * 100
}
