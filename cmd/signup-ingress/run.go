package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/David-Botos/signup-ingress/pkg/audit"
	"github.com/David-Botos/signup-ingress/pkg/cleaner"
	"github.com/David-Botos/signup-ingress/pkg/config"
	"github.com/David-Botos/signup-ingress/pkg/connector"
	"github.com/David-Botos/signup-ingress/pkg/logging"
	"github.com/David-Botos/signup-ingress/pkg/sink"
	"github.com/David-Botos/signup-ingress/pkg/source"
	"github.com/David-Botos/signup-ingress/pkg/transfer"
)

// runOptions are command-line overrides of the environment configuration
type runOptions struct {
	input         string
	sheet         string
	goldenOutput  string
	quarantine    string
	rulesFile     string
	reportOutput  string
	metricsOutput string
	logLevel      string
	workers       int
	dryRun        bool
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Read, clean and write one signup export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfigForSource(opts.sourceKind())
			if err != nil {
				return err
			}
			if err := opts.apply(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runPipeline(ctx, cmd, cfg, opts.dryRun)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "", "Input spreadsheet (.csv or .xlsx); overrides INPUT_PATH")
	flags.StringVar(&opts.sheet, "sheet", "", "Workbook sheet to read; defaults to the first sheet")
	flags.StringVarP(&opts.goldenOutput, "golden", "g", "", "Golden records CSV; overrides GOLDEN_OUTPUT")
	flags.StringVarP(&opts.quarantine, "quarantine", "q", "", "Quarantine CSV; overrides QUARANTINE_OUTPUT")
	flags.StringVar(&opts.rulesFile, "rules", "", "YAML rules file; overrides RULES_FILE")
	flags.StringVar(&opts.reportOutput, "report", "", "Write a JSON run report to this path")
	flags.StringVar(&opts.metricsOutput, "metrics", "", "Write Prometheus metrics in textfile format to this path")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level; overrides LOG_LEVEL")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "Goroutines used to classify rows; overrides WORKER_POOL_SIZE")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Clean and verify without writing any output")
	return cmd
}

// sourceKind is the source forced by flags; an input file wins over SOURCE_KIND
func (o *runOptions) sourceKind() string {
	if o.input != "" {
		return config.SourceFile
	}
	return ""
}

// apply overlays non-empty flags on the configuration and revalidates it
func (o *runOptions) apply(cfg *config.Config) error {
	if o.input != "" {
		cfg.InputPath = o.input
		cfg.SourceKind = config.SourceFile
		cfg.Snowflake = nil
	}
	if o.sheet != "" {
		cfg.SheetName = o.sheet
	}
	if o.goldenOutput != "" {
		cfg.GoldenOutput = o.goldenOutput
	}
	if o.quarantine != "" {
		cfg.QuarantineOutput = o.quarantine
	}
	if o.rulesFile != "" {
		cfg.RulesFile = o.rulesFile
	}
	if o.reportOutput != "" {
		cfg.ReportOutput = o.reportOutput
	}
	if o.metricsOutput != "" {
		cfg.MetricsOutput = o.metricsOutput
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.workers > 0 {
		cfg.WorkerPoolSize = o.workers
	}
	return cfg.Validate()
}

func runPipeline(ctx context.Context, cmd *cobra.Command, cfg *config.Config, dryRun bool) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	matcher, _, err := loadRules(cfg.RulesFile)
	if err != nil {
		return err
	}

	dataCleaner, err := cleaner.NewDataCleaner(matcher, logger)
	if err != nil {
		return err
	}
	dataCleaner.WithWorkers(cfg.WorkerPoolSize)

	factory := connector.NewConnectorFactory(cfg, logger)

	src, closeSource, err := openSource(ctx, cfg, factory, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	manager, err := transfer.NewManager(src, dataCleaner, logger)
	if err != nil {
		return err
	}
	manager.WithSinks(sink.NewCSVSink(cfg.GoldenOutput, cfg.QuarantineOutput, logger))

	if cfg.Postgres != nil && !dryRun {
		pg, err := factory.CreatePostgresConnector(ctx)
		if err != nil {
			return err
		}
		defer pg.Close()

		if err := pg.Validate(ctx); err != nil {
			return err
		}

		pgSink, err := sink.NewPostgresSink(pg, cfg.Postgres, cfg.BatchSize, logger)
		if err != nil {
			return err
		}
		recorder, err := audit.NewRecorder(pg.DB(), cfg.Postgres.Schema, logger)
		if err != nil {
			return err
		}
		manager.WithSinks(pgSink).WithAuditRecorder(recorder.WithBatchSize(cfg.BatchSize))
	}

	result, runErr := manager.Execute(ctx, transfer.NewJob().WithDryRun(dryRun))

	if cfg.ReportOutput != "" {
		if err := transfer.WriteReportFile(cfg.ReportOutput, result); err != nil {
			logger.Warn("Failed to write run report", zap.Error(err))
		}
	}
	if cfg.MetricsOutput != "" {
		if err := manager.Metrics().WriteTextfile(cfg.MetricsOutput); err != nil {
			logger.Warn("Failed to write metrics", zap.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"run %s: %d rows, %d golden, %d quarantined, %d duplicates collapsed, quality rate %.1f%%\n",
		result.RunID, result.Summary.TotalRows, result.Summary.GoldenRows,
		result.Summary.QuarantinedRows, result.Summary.DuplicatesCollapsed, result.QualityRate)
	return nil
}

// openSource returns the configured reader and a function releasing its resources
func openSource(
	ctx context.Context,
	cfg *config.Config,
	factory *connector.ConnectorFactory,
	logger *zap.Logger,
) (source.Reader, func(), error) {
	if cfg.SourceKind != config.SourceSnowflake {
		reader, err := source.OpenFile(cfg.InputPath, cfg.SheetName, logger)
		return reader, func() {}, err
	}

	conn, err := factory.CreateSnowflakeConnector(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := conn.Validate(ctx); err != nil {
		conn.Close()
		return nil, nil, err
	}

	closeConn := func() {
		if err := conn.Close(); err != nil {
			logger.Warn("Failed to close Snowflake connection", zap.Error(err))
		}
	}
	return source.NewSnowflakeReader(conn, cfg.BatchSize, logger), closeConn, nil
}
