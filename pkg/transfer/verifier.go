package transfer

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/signup-ingress/pkg/cleaner"
	"github.com/David-Botos/signup-ingress/pkg/model"
)

// ErrVerificationFailed is returned when a run's outputs are inconsistent
var ErrVerificationFailed = errors.New("verification failed")

// Integrity issue types
const (
	IssueDuplicateEmail   = "duplicate_email"
	IssueInvalidGolden    = "invalid_golden_record"
	IssueUnknownReason    = "unknown_quarantine_reason"
	IssueCountMismatch    = "count_mismatch"
	IssueGroupSizeInvalid = "group_size_mismatch"
)

// IntegrityIssue represents a data integrity issue
type IntegrityIssue struct {
	IssueType   string `json:"issue_type"`
	Description string `json:"description"`
	Line        int    `json:"line,omitempty"`
}

// VerificationReport contains the results of verifying a run's outputs
type VerificationReport struct {
	VerificationTime time.Time        `json:"verification_time"`
	TotalRows        int              `json:"total_rows"`
	GoldenRows       int              `json:"golden_rows"`
	QuarantinedRows  int              `json:"quarantined_rows"`
	Collapsed        int              `json:"collapsed"`
	CountsReconcile  bool             `json:"counts_reconcile"`
	EmailsUnique     bool             `json:"emails_unique"`
	IntegrityIssues  []IntegrityIssue `json:"integrity_issues"`
	Duration         time.Duration    `json:"duration"`
}

// Passed reports whether no issue was found
func (r *VerificationReport) Passed() bool {
	return len(r.IntegrityIssues) == 0
}

func (r *VerificationReport) addIssue(issueType string, line int, format string, args ...interface{}) {
	r.IntegrityIssues = append(r.IntegrityIssues, IntegrityIssue{
		IssueType:   issueType,
		Description: fmt.Sprintf(format, args...),
		Line:        line,
	})
}

// Verifier checks a cleaning result before it is written anywhere
type Verifier struct {
	logger    *zap.Logger
	maxIssues int
}

// NewVerifier creates a new verifier
func NewVerifier(logger *zap.Logger) *Verifier {
	return &Verifier{
		logger:    logger,
		maxIssues: 100,
	}
}

// WithMaxIssues caps how many issues a report collects
func (v *Verifier) WithMaxIssues(maxIssues int) *Verifier {
	if maxIssues > 0 {
		v.maxIssues = maxIssues
	}
	return v
}

// Verify checks that every input row is accounted for exactly once, golden
// emails are unique and every golden record is admissible-shaped. The report is
// always returned; the error wraps ErrVerificationFailed when issues were found.
func (v *Verifier) Verify(totalRows int, result *cleaner.Result) (*VerificationReport, error) {
	start := time.Now()

	report := &VerificationReport{
		VerificationTime: start,
		TotalRows:        totalRows,
		GoldenRows:       len(result.Golden),
		QuarantinedRows:  len(result.Quarantined),
		IntegrityIssues:  make([]IntegrityIssue, 0),
	}

	v.verifyGolden(result.Golden, report)
	v.verifyQuarantine(result.Quarantined, report)
	v.verifyCounts(result, report)

	if len(report.IntegrityIssues) > v.maxIssues {
		report.IntegrityIssues = report.IntegrityIssues[:v.maxIssues]
	}
	report.Duration = time.Since(start)

	if !report.Passed() {
		v.logger.Error("Run verification failed",
			zap.Int("issues", len(report.IntegrityIssues)),
			zap.String("firstIssue", report.IntegrityIssues[0].Description))
		return report, fmt.Errorf("%w: %d issues, first: %s",
			ErrVerificationFailed, len(report.IntegrityIssues), report.IntegrityIssues[0].Description)
	}

	v.logger.Info("Run verification passed",
		zap.Int("totalRows", report.TotalRows),
		zap.Int("goldenRows", report.GoldenRows),
		zap.Int("quarantinedRows", report.QuarantinedRows),
		zap.Int("collapsed", report.Collapsed),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// verifyGolden checks email uniqueness and record shape
func (v *Verifier) verifyGolden(golden []model.GoldenRecord, report *VerificationReport) {
	seen := make(map[string]int, len(golden))
	report.EmailsUnique = true

	for _, g := range golden {
		line := g.Raw.Line
		if prev, dup := seen[g.Email]; dup {
			report.EmailsUnique = false
			report.addIssue(IssueDuplicateEmail, line, "email %s survives from lines %d and %d", g.Email, prev, line)
		}
		seen[g.Email] = line

		switch {
		case g.Email == "" || g.Email == model.EmailInvalid:
			report.addIssue(IssueInvalidGolden, line, "golden record from line %d has email %q", line, g.Email)
		case g.Name == "":
			report.addIssue(IssueInvalidGolden, line, "golden record from line %d has no name", line)
		case !isCanonicalDate(g.SignupDate):
			report.addIssue(IssueInvalidGolden, line, "golden record from line %d has signup date %q", line, g.SignupDate)
		case g.GroupSize < 1:
			report.addIssue(IssueGroupSizeInvalid, line, "golden record from line %d has group size %d", line, g.GroupSize)
		}
	}
}

// verifyQuarantine checks every quarantined row carries a known reason
func (v *Verifier) verifyQuarantine(quarantined []model.ClassificationResult, report *VerificationReport) {
	known := make(map[model.Reason]struct{}, len(model.Reasons))
	for _, reason := range model.Reasons {
		known[reason] = struct{}{}
	}

	for _, q := range quarantined {
		if _, ok := known[q.Reason]; !ok || !q.IsQuarantined() {
			line := q.Record.Raw.Line
			report.addIssue(IssueUnknownReason, line, "quarantined row at line %d has reason %q", line, q.Reason)
		}
	}
}

// verifyCounts reconciles golden + quarantined + collapsed with the input
func (v *Verifier) verifyCounts(result *cleaner.Result, report *VerificationReport) {
	grouped := 0
	for _, g := range result.Golden {
		grouped += g.GroupSize
	}
	report.Collapsed = grouped - len(result.Golden)

	if result.Summary.DuplicatesCollapsed != report.Collapsed {
		report.addIssue(IssueGroupSizeInvalid, 0, "summary reports %d duplicates collapsed but group sizes imply %d",
			result.Summary.DuplicatesCollapsed, report.Collapsed)
	}

	accounted := report.GoldenRows + report.QuarantinedRows + report.Collapsed
	report.CountsReconcile = accounted == report.TotalRows
	if !report.CountsReconcile {
		report.addIssue(IssueCountMismatch, 0, "golden %d + quarantined %d + collapsed %d = %d, expected %d rows",
			report.GoldenRows, report.QuarantinedRows, report.Collapsed, accounted, report.TotalRows)
	}
}

func isCanonicalDate(value string) bool {
	if value == "" || value == model.DateUnparseable {
		return false
	}
	_, err := time.Parse(model.DateLayout, value)
	return err == nil
}
