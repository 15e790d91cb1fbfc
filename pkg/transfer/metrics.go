package transfer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/David-Botos/signup-ingress/pkg/model"
)

// Pipeline stages timed by RunMetrics
const (
	StageRead   = "read"
	StageClean  = "clean"
	StageVerify = "verify"
	StageWrite  = "write"
	StageAudit  = "audit"
)

// RunMetrics tracks metrics for ingestion runs
type RunMetrics struct {
	mu       sync.Mutex
	logger   *zap.Logger
	registry *prometheus.Registry

	rows          *prometheus.CounterVec
	quarantined   *prometheus.CounterVec
	errors        *prometheus.CounterVec
	sinkRows      *prometheus.CounterVec
	qualityRate   prometheus.Gauge
	stageDuration *prometheus.HistogramVec
	lastSuccess   prometheus.Gauge

	stageTimings map[string]time.Duration
}

// NewRunMetrics creates a RunMetrics instance with its own registry
func NewRunMetrics(logger *zap.Logger) *RunMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &RunMetrics{
		logger:   logger,
		registry: registry,
		rows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signup_ingress_rows_total",
			Help: "Input rows by outcome (golden, quarantined, collapsed)",
		}, []string{"outcome"}),
		quarantined: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signup_ingress_quarantined_rows_total",
			Help: "Quarantined rows by reason",
		}, []string{"reason"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signup_ingress_errors_total",
			Help: "Run errors by category",
		}, []string{"category"}),
		sinkRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signup_ingress_sink_rows_written_total",
			Help: "Rows written per sink and output",
		}, []string{"sink", "output"}),
		qualityRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signup_ingress_quality_rate_percent",
			Help: "Share of input rows that were admissible in the last run",
		}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signup_ingress_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"stage"}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signup_ingress_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
		stageTimings: make(map[string]time.Duration),
	}
}

// Registry exposes the metrics for gathering
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStage records the duration of a stage.
// Call with time.Now() at the start of the stage.
func (m *RunMetrics) ObserveStage(stage string, start time.Time) {
	elapsed := time.Since(start)
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())

	m.mu.Lock()
	m.stageTimings[stage] += elapsed
	m.mu.Unlock()

	m.logger.Debug("Stage finished",
		zap.String("stage", stage),
		zap.Duration("duration", elapsed))
}

// StageTimings returns the accumulated duration of each stage
func (m *RunMetrics) StageTimings() map[string]time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	timings := make(map[string]time.Duration, len(m.stageTimings))
	for stage, d := range m.stageTimings {
		timings[stage] = d
	}
	return timings
}

// RecordSummary records the outcome counts of a cleaning run
func (m *RunMetrics) RecordSummary(summary model.Summary) {
	m.rows.WithLabelValues("golden").Add(float64(summary.GoldenRows))
	m.rows.WithLabelValues("quarantined").Add(float64(summary.QuarantinedRows))
	m.rows.WithLabelValues("collapsed").Add(float64(summary.DuplicatesCollapsed))
	for reason, count := range summary.ReasonCounts {
		m.quarantined.WithLabelValues(string(reason)).Add(float64(count))
	}
	m.qualityRate.Set(summary.QualityRate())
}

// RecordSink records what a sink wrote
func (m *RunMetrics) RecordSink(result SinkResult) {
	m.sinkRows.WithLabelValues(result.Sink, "golden").Add(float64(result.GoldenWritten))
	m.sinkRows.WithLabelValues(result.Sink, "quarantine").Add(float64(result.QuarantineWritten))
}

// RecordError increments the error count for a category
func (m *RunMetrics) RecordError(category ErrorCategory) {
	m.errors.WithLabelValues(category.String()).Inc()
}

// RecordSuccess marks the end of a successful run
func (m *RunMetrics) RecordSuccess(at time.Time) {
	m.lastSuccess.Set(float64(at.Unix()))
}

// WriteTextfile writes the metrics in the node exporter textfile format
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// LogSummary writes a human-readable summary of a run to the log
func (m *RunMetrics) LogSummary(result *RunResult) {
	fields := []zap.Field{
		zap.String("runId", result.RunID.String()),
		zap.String("source", result.Source),
		zap.Bool("success", result.Success),
		zap.Bool("dryRun", result.DryRun),
		zap.Duration("duration", result.Duration),
		zap.Int("totalRows", result.Summary.TotalRows),
		zap.Int("goldenRows", result.Summary.GoldenRows),
		zap.Int("quarantinedRows", result.Summary.QuarantinedRows),
		zap.Int("duplicatesCollapsed", result.Summary.DuplicatesCollapsed),
		zap.Int("multiPlanRecords", result.Summary.MultiPlanRecords),
		zap.Float64("qualityRate", result.QualityRate),
		zap.Int("errors", len(result.Errors)),
	}
	for _, reason := range model.Reasons {
		if count := result.Summary.ReasonCounts[reason]; count > 0 {
			fields = append(fields, zap.Int("reason:"+string(reason), count))
		}
	}

	if result.Success {
		m.logger.Info("Run summary", fields...)
	} else {
		m.logger.Error("Run summary", fields...)
	}
}

// WriteReport writes the run result as indented JSON
func WriteReport(w io.Writer, result *RunResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	return nil
}

// WriteReportFile writes the run report to path
func WriteReportFile(path string, result *RunResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report %s: %w", path, err)
	}
	if err := WriteReport(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
