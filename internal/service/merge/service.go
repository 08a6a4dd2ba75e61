// Package merge implements the dataset merge pipeline: load both source
// files, normalise them to the canonical schema, combine them, write the
// merged file and report on it.
package merge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"phish-merge/internal/domain"
)

const timestampLayout = "2006-01-02 15:04:05"

// ServiceConfig holds the collaborators of a Service. Every field is optional.
type ServiceConfig struct {
	Out         io.Writer            // console output; defaults to io.Discard
	Logger      *slog.Logger         // defaults to a discarding logger
	Runs        domain.RunRepository // run ledger; nil disables recording
	Metrics     domain.MetricsSink   // nil disables metrics
	Now         func() time.Time     // defaults to time.Now
	TriggerType string               // defaults to domain.TriggerTypeManual
}

// Service runs the merge pipeline. It holds no state between runs.
type Service struct {
	out         io.Writer
	logger      *slog.Logger
	runs        domain.RunRepository
	metrics     domain.MetricsSink
	now         func() time.Time
	triggerType string
}

// NewService creates a new Service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		out:         cfg.Out,
		logger:      cfg.Logger,
		runs:        cfg.Runs,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
		triggerType: cfg.TriggerType,
	}
	if s.out == nil {
		s.out = io.Discard
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.triggerType == "" {
		s.triggerType = domain.TriggerTypeManual
	}
	return s
}

// WithTrigger returns a copy of s that records runs under triggerType.
func (s *Service) WithTrigger(triggerType string) *Service {
	c := *s
	c.triggerType = triggerType
	return &c
}

// Run executes the pipeline once for paths.
//
// On a load or schema failure it returns a nil result and the error, and
// the output file is not touched. On a write failure it returns the fully
// computed result together with the *domain.WriteError.
func (s *Service) Run(ctx context.Context, paths domain.Paths) (*domain.MergeResult, error) {
	started := s.now()
	runID := domain.NewID()
	s.printf("Email Phishing Dataset Merger\n%s\n", strings.Repeat("=", 30))
	s.printf("Timestamp: %s\n\n", started.Format(timestampLayout))

	result, err := s.execute(runID, paths)

	if err != nil {
		s.logger.Error("dataset merge failed",
			"run_id", runID,
			"kind", domain.ErrorKind(err),
			"error", err,
		)
		s.printf("\n✗ Dataset merge failed!\n")
	} else {
		s.logger.Info("dataset merge completed",
			"run_id", runID,
			"rows", result.Summary.TotalRows,
			"output", paths.Output,
		)
		s.printf("\n✓ Dataset merge completed successfully!\n")
	}

	s.record(ctx, runID, started, paths, result, err)
	return result, err
}

func (s *Service) execute(runID string, paths domain.Paths) (*domain.MergeResult, error) {
	s.printf("Starting dataset merge process...\n")
	s.printf("Dataset 1: %s\n", paths.Dataset1)
	s.printf("Dataset 2: %s\n", paths.Dataset2)
	s.printf("Output: %s\n", paths.Output)

	s.printf("\nLoading datasets...\n")
	src1, err := s.load(1, paths.Dataset1)
	if err != nil {
		return nil, err
	}
	src2, err := s.load(2, paths.Dataset2)
	if err != nil {
		return nil, err
	}

	s.printf("\nReordering columns to match target schema...\n")
	canon1, err := Normalize(src1, domain.Provenance1993To2008)
	if err != nil {
		s.printf("Error reordering columns: %v\n", err)
		return nil, err
	}
	canon2, err := Normalize(src2, domain.Provenance2015To2022)
	if err != nil {
		s.printf("Error reordering columns: %v\n", err)
		return nil, err
	}

	s.printf("\nMerging datasets...\n")
	merged, err := Combine(canon1, canon2)
	if err != nil {
		s.printf("Error merging datasets: %v\n", err)
		return nil, err
	}
	s.printf("Merged dataset: %d rows\n", merged.Len())
	s.printf("Final columns: %s\n", formatColumns(merged.Columns))

	result := &domain.MergeResult{
		RunID:   runID,
		Paths:   paths,
		Merged:  merged,
		Summary: Summarize(merged, src1.Len(), src2.Len()),
	}

	s.printf("\nSaving merged dataset to: %s\n", paths.Output)
	if err := WriteCSV(paths.Output, merged); err != nil {
		s.printf("Error saving merged dataset: %v\n", err)
		return result, err
	}
	result.Written = true
	s.printf("✓ Merged dataset saved successfully!\n")

	PrintSummary(s.out, result.Summary)
	return result, nil
}

func (s *Service) load(n int, path string) (*domain.SourceTable, error) {
	src, err := LoadSource(path)
	if err != nil {
		s.printf("Error loading datasets: %v\n", err)
		return nil, err
	}
	s.printf("Dataset %d loaded: %d rows\n", n, src.Len())
	s.printf("Columns: %s\n", formatColumns(src.Columns))
	s.logger.Debug("dataset loaded", "path", path, "rows", src.Len(), "columns", src.Columns)
	return src, nil
}

// record stores the run in the ledger and metrics sink. Failures here are
// logged and never change the pipeline outcome.
func (s *Service) record(ctx context.Context, runID string, started time.Time, paths domain.Paths, result *domain.MergeResult, runErr error) {
	if s.runs == nil && s.metrics == nil {
		return
	}

	run := &domain.MergeRun{
		ID:           runID,
		TriggerType:  s.triggerType,
		Status:       domain.RunStatusSuccess,
		Dataset1Path: paths.Dataset1,
		Dataset2Path: paths.Dataset2,
		OutputPath:   paths.Output,
		StartedAt:    started,
		FinishedAt:   s.now(),
	}
	var summary *domain.Summary
	if result != nil {
		summary = &result.Summary
		run.Source1Rows = result.Summary.Source1Rows
		run.Source2Rows = result.Summary.Source2Rows
		run.TotalRows = result.Summary.TotalRows
	}
	if runErr != nil {
		kind := domain.ErrorKind(runErr)
		msg := runErr.Error()
		run.Status = domain.RunStatusFailed
		run.ErrorKind = &kind
		run.ErrorMessage = &msg
	} else {
		sum, err := fileSHA256(paths.Output)
		if err != nil {
			s.logger.Warn("hash merged output", "path", paths.Output, "error", err)
		} else {
			run.OutputSHA256 = &sum
		}
	}

	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			s.logger.Warn("record merge run", "run_id", runID, "error", err)
		}
	}
	if s.metrics != nil {
		if err := s.metrics.ObserveRun(run, summary); err != nil {
			s.logger.Warn("export merge metrics", "run_id", runID, "error", err)
		}
	}
}

func (s *Service) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

func formatColumns(cols []string) string {
	return "[" + strings.Join(cols, ", ") + "]"
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
