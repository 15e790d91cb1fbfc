package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/David-Botos/signup-ingress/pkg/cleaner"
	"github.com/David-Botos/signup-ingress/pkg/model"
	"github.com/David-Botos/signup-ingress/pkg/source"
)

// Sink receives the two output collections of a run
type Sink interface {
	// Name identifies the sink in logs and reports
	Name() string

	// WriteGolden writes the deduplicated records and returns how many were written
	WriteGolden(ctx context.Context, runID uuid.UUID, golden []model.GoldenRecord) (int64, error)

	// WriteQuarantine writes the held-back rows and returns how many were written
	WriteQuarantine(ctx context.Context, runID uuid.UUID, quarantined []model.ClassificationResult) (int64, error)
}

// AuditRecorder persists the cleaning operations of a run
type AuditRecorder interface {
	Record(ctx context.Context, runID uuid.UUID, operations []model.CleaningOperation) error
}

// Manager orchestrates a run: read, clean, verify, then write
type Manager struct {
	source       source.Reader
	dataCleaner  *cleaner.DataCleaner
	verifier     *Verifier
	errorHandler *ErrorHandler
	metrics      *RunMetrics
	sinks        []Sink
	audit        AuditRecorder
	logger       *zap.Logger
}

// NewManager creates a new run manager
func NewManager(src source.Reader, dataCleaner *cleaner.DataCleaner, logger *zap.Logger) (*Manager, error) {
	if src == nil {
		return nil, errors.New("source cannot be nil")
	}
	if dataCleaner == nil {
		return nil, errors.New("data cleaner cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Manager{
		source:       src,
		dataCleaner:  dataCleaner,
		verifier:     NewVerifier(logger),
		errorHandler: NewErrorHandler(logger),
		metrics:      NewRunMetrics(logger),
		logger:       logger,
	}, nil
}

// WithSinks adds output sinks
func (m *Manager) WithSinks(sinks ...Sink) *Manager {
	m.sinks = append(m.sinks, sinks...)
	return m
}

// WithAuditRecorder sets where cleaning operations are recorded
func (m *Manager) WithAuditRecorder(audit AuditRecorder) *Manager {
	m.audit = audit
	return m
}

// WithMetrics replaces the metrics collector
func (m *Manager) WithMetrics(metrics *RunMetrics) *Manager {
	if metrics != nil {
		m.metrics = metrics
	}
	return m
}

// Metrics returns the metrics collector
func (m *Manager) Metrics() *RunMetrics {
	return m.metrics
}

// Execute runs a job to completion. The returned result is never nil; the
// error is the first failure that stopped the run.
func (m *Manager) Execute(ctx context.Context, job Job) (*RunResult, error) {
	result := NewRunResult(job, m.source.Name())

	m.logger.Info("Starting run",
		zap.String("runId", job.RunID.String()),
		zap.String("source", result.Source),
		zap.Int("sinks", len(m.sinks)),
		zap.Bool("dryRun", job.DryRun))

	err := m.execute(ctx, job, result)
	result.Errors = m.errorHandler.Records()
	result.Complete(err == nil)
	if err == nil {
		m.metrics.RecordSuccess(result.EndTime)
	}
	m.metrics.LogSummary(result)

	return result, err
}

func (m *Manager) execute(ctx context.Context, job Job, result *RunResult) error {
	start := time.Now()
	raws, err := m.source.Read(ctx)
	m.metrics.ObserveStage(StageRead, start)
	if err != nil {
		return m.fail(ErrorCategorySource, m.source.Name(), fmt.Errorf("failed to read source: %w", err))
	}
	result.RowsRead = len(raws)

	start = time.Now()
	cleaned, err := m.dataCleaner.Run(raws)
	m.metrics.ObserveStage(StageClean, start)
	if err != nil {
		return m.fail(ErrorCategoryCleaning, "", fmt.Errorf("failed to clean rows: %w", err))
	}
	result.Summary = cleaned.Summary
	result.QualityRate = cleaned.Summary.QualityRate()
	result.CleaningOperations = len(cleaned.Operations)
	m.metrics.RecordSummary(cleaned.Summary)

	start = time.Now()
	report, err := m.verifier.Verify(len(raws), cleaned)
	m.metrics.ObserveStage(StageVerify, start)
	result.Verification = report
	if err != nil {
		return m.fail(ErrorCategoryVerification, "", err)
	}

	if job.DryRun {
		m.logger.Info("Dry run, skipping sinks", zap.String("runId", job.RunID.String()))
		return nil
	}

	start = time.Now()
	sinkResults, err := m.writeSinks(ctx, job.RunID, cleaned)
	m.metrics.ObserveStage(StageWrite, start)
	result.Sinks = sinkResults
	if err != nil {
		return err
	}

	if m.audit != nil {
		start = time.Now()
		auditErr := m.audit.Record(ctx, job.RunID, cleaned.Operations)
		m.metrics.ObserveStage(StageAudit, start)
		if auditErr != nil {
			m.fail(ErrorCategoryAudit, "audit", auditErr)
		}
	}

	return nil
}

// writeSinks writes both outputs to every sink concurrently. A failing sink
// does not stop the others; the first failure is returned once all finish.
func (m *Manager) writeSinks(ctx context.Context, runID uuid.UUID, cleaned *cleaner.Result) ([]SinkResult, error) {
	results := make([]SinkResult, len(m.sinks))
	var (
		mu       sync.Mutex
		firstErr error
	)

	var g errgroup.Group
	for i, sink := range m.sinks {
		i, sink := i, sink
		g.Go(func() error {
			sr, err := m.writeSink(ctx, runID, sink, cleaned)
			results[i] = sr
			m.metrics.RecordSink(sr)

			if err != nil {
				err = m.fail(ErrorCategorySink, sink.Name(), err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, firstErr
}

func (m *Manager) writeSink(ctx context.Context, runID uuid.UUID, sink Sink, cleaned *cleaner.Result) (SinkResult, error) {
	start := time.Now()
	sr := SinkResult{Sink: sink.Name()}

	finish := func(err error) (SinkResult, error) {
		sr.Duration = time.Since(start)
		sr.Success = err == nil
		if err != nil {
			sr.Error = err.Error()
		}
		return sr, err
	}

	written, err := sink.WriteGolden(ctx, runID, cleaned.Golden)
	sr.GoldenWritten = written
	if err != nil {
		return finish(fmt.Errorf("failed to write golden records to %s: %w", sink.Name(), err))
	}

	written, err = sink.WriteQuarantine(ctx, runID, cleaned.Quarantined)
	sr.QuarantineWritten = written
	if err != nil {
		return finish(fmt.Errorf("failed to write quarantine rows to %s: %w", sink.Name(), err))
	}

	m.logger.Info("Wrote outputs",
		zap.String("sink", sink.Name()),
		zap.Int64("goldenWritten", sr.GoldenWritten),
		zap.Int64("quarantineWritten", sr.QuarantineWritten))
	return finish(nil)
}

// fail records an error with the handler and metrics and returns it
func (m *Manager) fail(category ErrorCategory, stage string, err error) error {
	m.metrics.RecordError(category)
	m.errorHandler.HandleError(NewErrorRecord(err, category).WithStage(stage))
	return err
}
