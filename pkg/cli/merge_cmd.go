package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"phish-merge/internal/db/repository"
	"phish-merge/internal/domain"
	"phish-merge/internal/metrics"
	"phish-merge/internal/service/merge"
	"phish-merge/internal/service/publish"
)

// mergeFlags are the per-invocation overrides shared by merge and schedule.
type mergeFlags struct {
	baseDir     string
	dataset1    string
	dataset2    string
	outputFile  string
	publish     []string
	metricsFile string
	noLedger    bool
}

func (f *mergeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.baseDir, "base-dir", "", "Project root containing 1_datasets/ (default \".\")")
	cmd.Flags().StringVar(&f.dataset1, "dataset1", "", "Path to the 1993-2008 dataset")
	cmd.Flags().StringVar(&f.dataset2, "dataset2", "", "Path to the 2015-2022 dataset")
	cmd.Flags().StringVar(&f.outputFile, "output-file", "", "Path of the merged CSV")
	cmd.Flags().StringSliceVar(&f.publish, "publish", nil, "Copy the merged file to these URIs (s3://, gs://, az://, abfss://)")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	cmd.Flags().BoolVar(&f.noLedger, "no-ledger", false, "Do not record the run in the ledger")
}

// mergeSettings is the fully resolved configuration of one merge job.
type mergeSettings struct {
	paths       domain.Paths
	publish     []string
	metricsFile string
	ledgerPath  string
}

// settings merges command flags over the resolved configuration.
func (a *app) settings(cmd *cobra.Command, f *mergeFlags) mergeSettings {
	baseDir := a.cfg.BaseDir
	if cmd.Flags().Changed("base-dir") {
		baseDir = f.baseDir
	}
	s := mergeSettings{
		paths:       domain.DefaultPaths(baseDir),
		publish:     a.cfg.PublishTargets,
		metricsFile: a.cfg.MetricsFile,
	}
	if f.dataset1 != "" {
		s.paths.Dataset1 = f.dataset1
	}
	if f.dataset2 != "" {
		s.paths.Dataset2 = f.dataset2
	}
	if f.outputFile != "" {
		s.paths.Output = f.outputFile
	}
	if cmd.Flags().Changed("publish") {
		s.publish = f.publish
	}
	if cmd.Flags().Changed("metrics-file") {
		s.metricsFile = f.metricsFile
	}
	if a.cfg.LedgerEnabled && !f.noLedger {
		s.ledgerPath = a.cfg.LedgerPath
	}
	return s
}

// mergeJob wires the merge pipeline to its ledger, metrics and publishers.
type mergeJob struct {
	settings  mergeSettings
	merge     *merge.Service
	publisher *publish.Service
	ledger    *sql.DB
}

func (a *app) newMergeJob(ctx context.Context, s mergeSettings, out io.Writer, trigger string) (*mergeJob, error) {
	cfg := *a.cfg
	cfg.PublishTargets = s.publish
	pub, err := publish.NewServiceFromConfig(ctx, &cfg, a.logger)
	if err != nil {
		return nil, err
	}
	if err := pub.Validate(s.publish); err != nil {
		_ = pub.Close()
		return nil, err
	}

	job := &mergeJob{settings: s, publisher: pub}
	svcCfg := merge.ServiceConfig{
		Out:         out,
		Logger:      a.logger,
		TriggerType: trigger,
	}

	if s.ledgerPath != "" {
		db, err := a.openLedger(ctx, s.ledgerPath)
		if err != nil {
			// The ledger is auxiliary; a merge still runs without it.
			a.logger.Warn("run ledger unavailable", "path", s.ledgerPath, "error", err)
		} else {
			job.ledger = db
			svcCfg.Runs = repository.NewMergeRunRepo(db)
		}
	}
	if s.metricsFile != "" {
		svcCfg.Metrics = metrics.NewTextfileExporter(s.metricsFile)
	}

	job.merge = merge.NewService(svcCfg)
	return job, nil
}

// run executes the pipeline and, on success, publishes the merged file.
func (j *mergeJob) run(ctx context.Context) (*domain.MergeResult, error) {
	result, err := j.merge.Run(ctx, j.settings.paths)
	if err != nil {
		return result, err
	}
	if err := j.publisher.PublishFile(ctx, j.settings.paths.Output, j.settings.publish); err != nil {
		return result, err
	}
	return result, nil
}

func (j *mergeJob) Close() error {
	var errs []error
	errs = append(errs, j.publisher.Close())
	if j.ledger != nil {
		errs = append(errs, j.ledger.Close())
	}
	return errors.Join(errs...)
}

func newMergeCmd(a *app) *cobra.Command {
	var flags mergeFlags

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge both datasets into one CSV",
		Long: "Loads the 1993-2008 and 2015-2022 datasets, aligns them to the column order " +
			"sender, receiver, date, subject, body, label, urls, tags each row with its " +
			"source_dataset and writes the merged file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s := a.settings(cmd, &flags)

			// Progress goes to stdout for tables and stderr when stdout carries JSON.
			progress := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				progress = cmd.ErrOrStderr()
			}
			if isQuiet(cmd) {
				progress = io.Discard
			}

			job, err := a.newMergeJob(ctx, s, progress, domain.TriggerTypeManual)
			if err != nil {
				return err
			}
			defer job.Close() //nolint:errcheck

			result, err := job.run(ctx)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), newMergeOutput(result, s.publish))
			}
			for _, dest := range s.publish {
				_, _ = fmt.Fprintf(progress, "Published to: %s\n", dest)
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

type valueCountOutput struct {
	Value   string  `json:"value"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

type mergeOutput struct {
	RunID              string             `json:"run_id"`
	Output             string             `json:"output"`
	TotalRows          int                `json:"total_rows"`
	Source1Rows        int                `json:"source_1993_2008_rows"`
	Source2Rows        int                `json:"source_2015_2022_rows"`
	Columns            []string           `json:"columns"`
	LabelDistribution  []valueCountOutput `json:"label_distribution"`
	SourceDistribution []valueCountOutput `json:"source_distribution"`
	Published          []string           `json:"published,omitempty"`
}

func newMergeOutput(r *domain.MergeResult, published []string) mergeOutput {
	return mergeOutput{
		RunID:              r.RunID,
		Output:             r.Paths.Output,
		TotalRows:          r.Summary.TotalRows,
		Source1Rows:        r.Summary.Source1Rows,
		Source2Rows:        r.Summary.Source2Rows,
		Columns:            r.Summary.Columns,
		LabelDistribution:  toValueCountOutput(r.Summary.LabelDistribution),
		SourceDistribution: toValueCountOutput(r.Summary.SourceDistribution),
		Published:          published,
	}
}

func toValueCountOutput(in []domain.ValueCount) []valueCountOutput {
	out := make([]valueCountOutput, len(in))
	for i, vc := range in {
		pct, _ := strconv.ParseFloat(strconv.FormatFloat(vc.Percent, 'f', 1, 64), 64)
		out[i] = valueCountOutput{Value: vc.Value, Count: vc.Count, Percent: pct}
	}
	return out
}
