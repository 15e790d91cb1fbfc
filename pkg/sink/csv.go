// pkg/sink/csv.go
package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/David-Botos/signup-ingress/pkg/converter"
	"github.com/David-Botos/signup-ingress/pkg/model"
)

// CSVSink writes the golden and quarantine outputs as CSV files
type CSVSink struct {
	goldenPath     string
	quarantinePath string
	converter      *converter.RowConverter
	logger         *zap.Logger
}

// NewCSVSink creates a sink writing to the two given paths
func NewCSVSink(goldenPath, quarantinePath string, logger *zap.Logger) *CSVSink {
	return &CSVSink{
		goldenPath:     goldenPath,
		quarantinePath: quarantinePath,
		converter:      converter.NewRowConverter(logger),
		logger:         logger,
	}
}

// WithConverter replaces the row converter
func (s *CSVSink) WithConverter(c *converter.RowConverter) *CSVSink {
	s.converter = c
	return s
}

// Name identifies the sink
func (s *CSVSink) Name() string {
	return "csv"
}

// WriteGolden writes the golden records file
func (s *CSVSink) WriteGolden(ctx context.Context, runID uuid.UUID, golden []model.GoldenRecord) (int64, error) {
	err := writeFileAtomic(s.goldenPath, func(w io.Writer) error {
		return WriteGoldenCSV(ctx, w, s.converter, golden)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Wrote golden records",
		zap.String("path", s.goldenPath),
		zap.Int("rows", len(golden)))
	return int64(len(golden)), nil
}

// WriteQuarantine writes the quarantine file
func (s *CSVSink) WriteQuarantine(ctx context.Context, runID uuid.UUID, quarantined []model.ClassificationResult) (int64, error) {
	err := writeFileAtomic(s.quarantinePath, func(w io.Writer) error {
		return WriteQuarantineCSV(ctx, w, s.converter, quarantined)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Wrote quarantine rows",
		zap.String("path", s.quarantinePath),
		zap.Int("rows", len(quarantined)))
	return int64(len(quarantined)), nil
}

// WriteGoldenCSV writes golden records with a header row
func WriteGoldenCSV(ctx context.Context, w io.Writer, c *converter.RowConverter, golden []model.GoldenRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(c.GoldenHeader()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, g := range golden {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writer.Write(c.GoldenRow(g)); err != nil {
			return fmt.Errorf("failed to write golden row %d: %w", i+1, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteQuarantineCSV writes quarantined rows with their original values and reason
func WriteQuarantineCSV(ctx context.Context, w io.Writer, c *converter.RowConverter, quarantined []model.ClassificationResult) error {
	writer := csv.NewWriter(w)
	header, extras := c.QuarantineHeader(quarantined)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, q := range quarantined {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writer.Write(c.QuarantineRow(q, extras)); err != nil {
			return fmt.Errorf("failed to write quarantine row for line %d: %w", q.Record.Raw.Line, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// writeFileAtomic writes through a temporary file in the target directory and
// renames it into place. A failed write leaves any existing file untouched.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
