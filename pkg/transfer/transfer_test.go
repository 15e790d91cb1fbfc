package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/David-Botos/signup-ingress/pkg/cleaner"
	"github.com/David-Botos/signup-ingress/pkg/model"
	"github.com/David-Botos/signup-ingress/pkg/rules"
)

type fakeSource struct {
	rows []model.RawRecord
	err  error
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Read(ctx context.Context) ([]model.RawRecord, error) {
	return s.rows, s.err
}

type fakeSink struct {
	name string
	err  error

	mu          sync.Mutex
	runID       uuid.UUID
	golden      []model.GoldenRecord
	quarantined []model.ClassificationResult
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) WriteGolden(ctx context.Context, runID uuid.UUID, golden []model.GoldenRecord) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = runID
	s.golden = golden
	return int64(len(golden)), nil
}

func (s *fakeSink) WriteQuarantine(ctx context.Context, runID uuid.UUID, quarantined []model.ClassificationResult) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quarantined = quarantined
	return int64(len(quarantined)), nil
}

type fakeAudit struct {
	err        error
	operations []model.CleaningOperation
}

func (a *fakeAudit) Record(ctx context.Context, runID uuid.UUID, operations []model.CleaningOperation) error {
	a.operations = operations
	return a.err
}

func row(line int, email, name, date, plan string) model.RawRecord {
	return model.NewRawRecord(line, map[string]string{
		model.FieldEmail:      email,
		model.FieldName:       name,
		model.FieldSignupDate: date,
		model.FieldPlan:       plan,
	})
}

func sampleRows() []model.RawRecord {
	return []model.RawRecord{
		row(2, "Jane@Acme.io", "Jane Doe", "01/01/2024", "Plan A"),
		row(3, "not-an-email", "Bob Roe", "2024-02-02", "Plan A"),
		row(4, "jane@acme.io", "Jane Doe", "2024-06-15", "b"),
		row(5, "sam@acme.io", "Test User", "2024-03-03", "a"),
	}
}

type ManagerSuite struct {
	suite.Suite
	cleaner *cleaner.DataCleaner
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	c, err := cleaner.NewDataCleaner(rules.MustCompileDefault(), zap.NewNop())
	s.Require().NoError(err)
	s.cleaner = c
}

func (s *ManagerSuite) newManager(src *fakeSource) *Manager {
	m, err := NewManager(src, s.cleaner, zap.NewNop())
	s.Require().NoError(err)
	return m
}

func (s *ManagerSuite) TestConstruction() {
	_, err := NewManager(nil, s.cleaner, zap.NewNop())
	s.Error(err)
	_, err = NewManager(&fakeSource{}, nil, zap.NewNop())
	s.Error(err)
	_, err = NewManager(&fakeSource{}, s.cleaner, nil)
	s.Error(err)
}

func (s *ManagerSuite) TestExecuteWritesEverySink() {
	first := &fakeSink{name: "first"}
	second := &fakeSink{name: "second"}
	audit := &fakeAudit{}

	m := s.newManager(&fakeSource{rows: sampleRows()}).
		WithSinks(first, second).
		WithAuditRecorder(audit)

	job := NewJob()
	result, err := m.Execute(context.Background(), job)
	s.Require().NoError(err)

	s.True(result.Success)
	s.Equal(job.RunID, result.RunID)
	s.Equal(4, result.RowsRead)
	s.Equal(1, result.Summary.GoldenRows)
	s.Equal(2, result.Summary.QuarantinedRows)
	s.Equal(1, result.Summary.DuplicatesCollapsed)
	s.InDelta(50.0, result.QualityRate, 0.001)
	s.Require().NotNil(result.Verification)
	s.True(result.Verification.Passed())
	s.Empty(result.Errors)

	for _, sink := range []*fakeSink{first, second} {
		s.Equal(job.RunID, sink.runID)
		s.Len(sink.golden, 1)
		s.Len(sink.quarantined, 2)
	}
	s.Require().Len(result.Sinks, 2)
	s.Equal("first", result.Sinks[0].Sink)
	s.Equal(int64(1), result.Sinks[0].GoldenWritten)
	s.Equal(int64(2), result.Sinks[1].QuarantineWritten)

	s.NotEmpty(audit.operations)
	s.Equal(result.CleaningOperations, len(audit.operations))

	metrics := m.Metrics()
	s.Equal(1.0, testutil.ToFloat64(metrics.rows.WithLabelValues("golden")))
	s.Equal(1.0, testutil.ToFloat64(metrics.quarantined.WithLabelValues(string(model.ReasonTestName))))
	s.Equal(2.0, testutil.ToFloat64(metrics.sinkRows.WithLabelValues("second", "quarantine")))
	s.Len(metrics.StageTimings(), 5)
	count, err := testutil.GatherAndCount(metrics.Registry(), "signup_ingress_stage_duration_seconds")
	s.Require().NoError(err)
	s.Equal(5, count)
}

func (s *ManagerSuite) TestDryRunSkipsSinks() {
	sink := &fakeSink{name: "csv"}
	audit := &fakeAudit{}
	m := s.newManager(&fakeSource{rows: sampleRows()}).WithSinks(sink).WithAuditRecorder(audit)

	result, err := m.Execute(context.Background(), NewJob().WithDryRun(true))
	s.Require().NoError(err)
	s.True(result.DryRun)
	s.Empty(result.Sinks)
	s.Nil(sink.golden)
	s.Nil(audit.operations)
}

func (s *ManagerSuite) TestSourceFailure() {
	m := s.newManager(&fakeSource{err: errors.New("disk gone")})

	result, err := m.Execute(context.Background(), NewJob())
	s.Require().Error(err)
	s.False(result.Success)
	s.Require().Len(result.Errors, 1)
	s.Equal(ErrorCategorySource, result.Errors[0].Category)
	s.Equal("fake", result.Errors[0].Stage)
}

func (s *ManagerSuite) TestMalformedRowFailsRun() {
	rows := append(sampleRows(), model.NewRawRecord(9, map[string]string{model.FieldEmail: "x@acme.io"}))
	sink := &fakeSink{name: "csv"}
	m := s.newManager(&fakeSource{rows: rows}).WithSinks(sink)

	result, err := m.Execute(context.Background(), NewJob())
	s.Require().ErrorIs(err, model.ErrMalformedRecord)
	s.False(result.Success)
	s.Equal(ErrorCategoryCleaning, result.Errors[0].Category)
	s.Nil(sink.golden)
}

func (s *ManagerSuite) TestSinkFailureDoesNotStopOtherSinks() {
	broken := &fakeSink{name: "postgres", err: errors.New("connection refused")}
	healthy := &fakeSink{name: "csv"}
	m := s.newManager(&fakeSource{rows: sampleRows()}).WithSinks(broken, healthy)

	result, err := m.Execute(context.Background(), NewJob())
	s.Require().Error(err)
	s.Contains(err.Error(), "postgres")
	s.False(result.Success)

	s.Len(healthy.golden, 1)
	s.False(result.Sinks[0].Success)
	s.NotEmpty(result.Sinks[0].Error)
	s.True(result.Sinks[1].Success)
	s.Equal(ErrorCategorySink, result.Errors[0].Category)
}

func (s *ManagerSuite) TestAuditFailureKeepsRunSuccessful() {
	m := s.newManager(&fakeSource{rows: sampleRows()}).
		WithSinks(&fakeSink{name: "csv"}).
		WithAuditRecorder(&fakeAudit{err: errors.New("permission denied")})

	result, err := m.Execute(context.Background(), NewJob())
	s.Require().NoError(err)
	s.True(result.Success)
	s.Require().Len(result.Errors, 1)
	s.Equal(ErrorCategoryAudit, result.Errors[0].Category)
}

func (s *ManagerSuite) TestReportIsJSON() {
	m := s.newManager(&fakeSource{rows: sampleRows()}).WithSinks(&fakeSink{name: "csv"})
	result, err := m.Execute(context.Background(), NewJob())
	s.Require().NoError(err)

	var buf bytes.Buffer
	s.Require().NoError(WriteReport(&buf, result))

	var decoded map[string]interface{}
	s.Require().NoError(json.Unmarshal(buf.Bytes(), &decoded))
	s.Equal(result.RunID.String(), decoded["run_id"])
	s.Equal(true, decoded["success"])

	summary, ok := decoded["summary"].(map[string]interface{})
	s.Require().True(ok)
	s.Equal(4.0, summary["total_rows"])
}

func TestWriteMetricsTextfile(t *testing.T) {
	m := NewRunMetrics(zap.NewNop())
	m.RecordSummary(model.Summary{TotalRows: 4, GoldenRows: 3, QuarantinedRows: 1})
	m.RecordError(ErrorCategorySink)

	path := filepath.Join(t.TempDir(), "signup_ingress.prom")
	require.NoError(t, m.WriteTextfile(path))
	assert.FileExists(t, path)
	assert.Equal(t, 75.0, testutil.ToFloat64(m.qualityRate))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("Sink")))
}

func TestCategorizeError(t *testing.T) {
	eh := NewErrorHandler(zap.NewNop())

	assert.Equal(t, ErrorCategoryNone, eh.CategorizeError(nil))
	assert.Equal(t, ErrorCategoryCleaning, eh.CategorizeError(model.ErrMalformedRecord))
	assert.Equal(t, ErrorCategoryVerification, eh.CategorizeError(ErrVerificationFailed))
	assert.Equal(t, ErrorCategorySink, eh.CategorizeError(errors.New("boom")))
}

func TestHandleErrorActions(t *testing.T) {
	eh := NewErrorHandler(zap.NewNop())

	assert.Equal(t, ActionContinue, eh.HandleError(NewErrorRecord(errors.New("x"), ErrorCategoryAudit)))
	assert.Equal(t, ActionAbort, eh.HandleError(NewErrorRecord(errors.New("y"), ErrorCategorySink).WithStage("csv")))
	assert.Equal(t, map[ErrorCategory]int{ErrorCategoryAudit: 1, ErrorCategorySink: 1}, eh.ErrorCounts())
	assert.Equal(t, "[Sink] Stage: csv Error: y", eh.Records()[1].String())
}
