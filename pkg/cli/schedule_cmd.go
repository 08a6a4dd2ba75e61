package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"phish-merge/internal/domain"
	"phish-merge/internal/service/pipeline"
)

const scheduledJobName = "merge"

func newScheduleCmd(a *app) *cobra.Command {
	var (
		flags  mergeFlags
		expr   string
		runNow bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Rebuild the merged dataset on a cron schedule",
		Long: "Runs merge (and publishing) on a five-field cron expression until interrupted. " +
			"The expression comes from --cron, then MERGE_SCHEDULE, then the profile's schedule.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("cron") {
				expr = a.cfg.Schedule
			}
			if expr == "" {
				return fmt.Errorf("no schedule: set --cron, MERGE_SCHEDULE or the profile's schedule")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			progress := cmd.OutOrStdout()
			if isQuiet(cmd) || getOutputFormat(cmd) == "json" {
				progress = io.Discard
			}

			job, err := a.newMergeJob(ctx, a.settings(cmd, &flags), progress, domain.TriggerTypeScheduled)
			if err != nil {
				return err
			}
			defer job.Close() //nolint:errcheck

			run := func(ctx context.Context) error {
				_, err := job.run(ctx)
				return err
			}

			sched := pipeline.NewScheduler(a.logger)
			if err := sched.Add(scheduledJobName, expr, run); err != nil {
				return err
			}

			if runNow {
				if err := run(ctx); err != nil {
					a.logger.Warn("initial merge failed", "kind", domain.ErrorKind(err), "error", err)
				}
			}

			sched.Start(ctx)
			if next, err := sched.Next(scheduledJobName); err == nil {
				a.logger.Info("waiting for next merge", "schedule", expr, "next", next)
			}

			<-ctx.Done()
			sched.Stop()
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&expr, "cron", "", "Five-field cron expression or descriptor such as @daily")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Run one merge immediately before waiting for the schedule")
	return cmd
}
