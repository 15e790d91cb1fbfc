// pkg/cleaner/cleaner.go
package cleaner

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/David-Botos/signup-ingress/pkg/model"
	"github.com/David-Botos/signup-ingress/pkg/rules"
)

// DataCleaner runs the signup rule engine over a full set of rows
type DataCleaner struct {
	normalizer *Normalizer
	classifier *Classifier
	resolver   *Resolver
	logger     *zap.Logger
	workers    int
}

// Result holds the two output collections of a run plus its audit trail
type Result struct {
	Golden      []model.GoldenRecord
	Quarantined []model.ClassificationResult
	Operations  []model.CleaningOperation
	Summary     model.Summary
}

// NewDataCleaner creates a new DataCleaner instance
func NewDataCleaner(matcher *rules.Matcher, logger *zap.Logger) (*DataCleaner, error) {
	if matcher == nil {
		return nil, errors.New("rules matcher cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	normalizer, err := NewNormalizer(matcher)
	if err != nil {
		return nil, fmt.Errorf("failed to create normalizer: %w", err)
	}
	classifier, err := NewClassifier(matcher)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	return &DataCleaner{
		normalizer: normalizer,
		classifier: classifier,
		resolver:   NewResolver(),
		logger:     logger,
		workers:    1,
	}, nil
}

// WithWorkers sets how many goroutines normalize and classify rows.
// Output is identical for any worker count.
func (c *DataCleaner) WithWorkers(count int) *DataCleaner {
	if count > 0 {
		c.workers = count
	}
	return c
}

// classifiedRow is the per-row output of the normalize and classify stages
type classifiedRow struct {
	result model.ClassificationResult
	ops    []model.CleaningOperation
}

// Run normalizes, classifies and resolves the rows. The only error is a
// structurally malformed row, which rejects the whole run.
func (c *DataCleaner) Run(raws []model.RawRecord) (*Result, error) {
	for _, raw := range raws {
		if _, err := raw.Fields(); err != nil {
			c.logger.Error("Rejecting run with malformed row",
				zap.Int("line", raw.Line),
				zap.Error(err))
			return nil, err
		}
	}

	rows := c.classifyRows(raws)

	result := &Result{
		Quarantined: make([]model.ClassificationResult, 0),
	}
	admissible := make([]model.NormalizedRecord, 0, len(rows))
	reasonCounts := make(map[model.Reason]int)

	for _, row := range rows {
		result.Operations = append(result.Operations, row.ops...)
		if row.result.IsQuarantined() {
			result.Quarantined = append(result.Quarantined, row.result)
			reasonCounts[row.result.Reason]++
			continue
		}
		admissible = append(admissible, row.result.Record)
	}

	golden, dedupOps := c.resolver.ResolveTracked(admissible)
	result.Golden = golden
	result.Operations = append(result.Operations, dedupOps...)

	multiPlan := 0
	for _, g := range golden {
		if g.IsMultiPlan {
			multiPlan++
		}
	}

	result.Summary = model.Summary{
		TotalRows:           len(raws),
		GoldenRows:          len(golden),
		QuarantinedRows:     len(result.Quarantined),
		DuplicatesCollapsed: len(admissible) - len(golden),
		MultiPlanRecords:    multiPlan,
		ReasonCounts:        reasonCounts,
	}

	c.logger.Info("Cleaned signup rows",
		zap.Int("totalRows", result.Summary.TotalRows),
		zap.Int("goldenRows", result.Summary.GoldenRows),
		zap.Int("quarantinedRows", result.Summary.QuarantinedRows),
		zap.Int("duplicatesCollapsed", result.Summary.DuplicatesCollapsed),
		zap.Int("cleaningOperations", len(result.Operations)))

	return result, nil
}

// classifyRows normalizes and classifies every row, in input order
func (c *DataCleaner) classifyRows(raws []model.RawRecord) []classifiedRow {
	rows := make([]classifiedRow, len(raws))

	if c.workers <= 1 || len(raws) < 2 {
		for i, raw := range raws {
			rows[i] = c.classifyRow(raw)
		}
		return rows
	}

	// Each goroutine owns its slot, so ordering needs no coordination
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i := range raws {
		i := i
		g.Go(func() error {
			rows[i] = c.classifyRow(raws[i])
			return nil
		})
	}
	_ = g.Wait()

	return rows
}

func (c *DataCleaner) classifyRow(raw model.RawRecord) classifiedRow {
	rec, ops := c.normalizer.NormalizeTracked(raw)
	return classifiedRow{
		result: c.classifier.Classify(rec),
		ops:    ops,
	}
}
