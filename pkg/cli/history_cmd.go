package cli

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	internaldb "phish-merge/internal/db"
	"phish-merge/internal/db/repository"
	"phish-merge/internal/domain"
)

type runOutput struct {
	ID           string    `json:"id"`
	TriggerType  string    `json:"trigger_type"`
	Status       string    `json:"status"`
	TotalRows    int       `json:"total_rows"`
	Source1Rows  int       `json:"source_1993_2008_rows"`
	Source2Rows  int       `json:"source_2015_2022_rows"`
	OutputPath   string    `json:"output_path"`
	OutputSHA256 *string   `json:"output_sha256,omitempty"`
	ErrorKind    *string   `json:"error_kind,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms"`
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded merge runs, newest first",
		Long:  "Lists recorded merge runs, newest first. With --id, shows a single run.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if limit < 0 {
				return fmt.Errorf("--limit must be >= 0")
			}

			db, err := a.openLedger(ctx, a.cfg.LedgerPath)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer db.Close() //nolint:errcheck

			repo := repository.NewMergeRunRepo(db)
			var runs []domain.MergeRun
			if runID != "" {
				run, err := repo.Get(ctx, runID)
				if err != nil {
					return fmt.Errorf("get run %s: %w", runID, err)
				}
				runs = []domain.MergeRun{*run}
			} else {
				runs, err = repo.List(ctx, limit)
				if err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			if isQuiet(cmd) {
				for _, r := range runs {
					_, _ = fmt.Fprintln(w, r.ID)
				}
				return nil
			}
			if getOutputFormat(cmd) == "json" {
				if runID != "" {
					return printJSON(w, toRunOutput(&runs[0]))
				}
				out := make([]runOutput, len(runs))
				for i := range runs {
					out[i] = toRunOutput(&runs[i])
				}
				return printJSON(w, out)
			}

			rows := make([][]string, len(runs))
			for i, r := range runs {
				errKind := ""
				if r.ErrorKind != nil {
					errKind = *r.ErrorKind
				}
				rows[i] = []string{
					r.ID,
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.TriggerType,
					r.Status,
					strconv.Itoa(r.TotalRows),
					r.Duration().Round(time.Millisecond).String(),
					errKind,
				}
			}
			printTable(w, []string{"id", "started", "trigger", "status", "rows", "duration", "error"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().StringVar(&runID, "id", "", "Show only the run with this ID")
	return cmd
}

// openLedger opens the run ledger and logs its schema version.
func (a *app) openLedger(ctx context.Context, path string) (*sql.DB, error) {
	db, err := internaldb.OpenLedger(ctx, path)
	if err != nil {
		return nil, err
	}
	v, err := internaldb.SchemaVersion(ctx, db)
	if err != nil {
		a.logger.Warn("read ledger schema version", "path", path, "error", err)
	} else {
		a.logger.Debug("run ledger opened", "path", path, "schema_version", v)
	}
	return db, nil
}

func toRunOutput(r *domain.MergeRun) runOutput {
	return runOutput{
		ID:           r.ID,
		TriggerType:  r.TriggerType,
		Status:       r.Status,
		TotalRows:    r.TotalRows,
		Source1Rows:  r.Source1Rows,
		Source2Rows:  r.Source2Rows,
		OutputPath:   r.OutputPath,
		OutputSHA256: r.OutputSHA256,
		ErrorKind:    r.ErrorKind,
		ErrorMessage: r.ErrorMessage,
		StartedAt:    r.StartedAt,
		DurationMS:   r.Duration().Milliseconds(),
	}
}
