package transfer

import (
	"time"

	"github.com/google/uuid"

	"github.com/David-Botos/signup-ingress/pkg/model"
)

// Job represents one ingestion run
type Job struct {
	RunID     uuid.UUID // Identifies the run in sink tables and the audit trail
	CreatedAt time.Time // Job creation timestamp
	DryRun    bool      // Clean and verify without writing to any sink
}

// NewJob creates a new job with a fresh run id
func NewJob() Job {
	return Job{
		RunID:     uuid.New(),
		CreatedAt: time.Now(),
	}
}

// WithDryRun sets dry-run mode and returns the modified job
func (j Job) WithDryRun(dryRun bool) Job {
	j.DryRun = dryRun
	return j
}

// SinkResult represents what one sink wrote
type SinkResult struct {
	Sink              string        `json:"sink"`
	GoldenWritten     int64         `json:"golden_written"`
	QuarantineWritten int64         `json:"quarantine_written"`
	Success           bool          `json:"success"`
	Error             string        `json:"error,omitempty"`
	Duration          time.Duration `json:"duration"`
}

// RunResult represents the outcome of a run
type RunResult struct {
	RunID              uuid.UUID           `json:"run_id"`
	Source             string              `json:"source"`
	Success            bool                `json:"success"`
	DryRun             bool                `json:"dry_run"`
	RowsRead           int                 `json:"rows_read"`
	Summary            model.Summary       `json:"summary"`
	QualityRate        float64             `json:"quality_rate"`
	CleaningOperations int                 `json:"cleaning_operations"`
	Verification       *VerificationReport `json:"verification,omitempty"`
	Sinks              []SinkResult        `json:"sinks"`
	Errors             []ErrorRecord       `json:"errors"`
	StartTime          time.Time           `json:"start_time"`
	EndTime            time.Time           `json:"end_time"`
	Duration           time.Duration       `json:"duration"`
}

// NewRunResult initializes a run result for a job
func NewRunResult(job Job, source string) *RunResult {
	return &RunResult{
		RunID:     job.RunID,
		Source:    source,
		DryRun:    job.DryRun,
		StartTime: time.Now(),
		Sinks:     make([]SinkResult, 0),
		Errors:    make([]ErrorRecord, 0),
	}
}

// Complete marks the run as complete and calculates duration
func (r *RunResult) Complete(success bool) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Success = success
}

// AddError adds an error to the result
func (r *RunResult) AddError(err ErrorRecord) {
	r.Errors = append(r.Errors, err)
}

// HasErrors checks if any errors occurred
func (r *RunResult) HasErrors() bool {
	return len(r.Errors) > 0
}
