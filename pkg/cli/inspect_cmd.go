package cli

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // registers the duckdb driver
	"github.com/spf13/cobra"

	"phish-merge/internal/domain"
	"phish-merge/internal/engine"
)

type inspectOutput struct {
	File          string             `json:"file"`
	TotalRows     int                `json:"total_rows"`
	Columns       []string           `json:"columns"`
	Distributions []distributionJSON `json:"distributions"`
}

type distributionJSON struct {
	Column string             `json:"column"`
	Values []valueCountOutput `json:"values"`
}

func newInspectCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show row counts and distributions of a merged file",
		Long:  "Re-reads a merged CSV with DuckDB and reports its row count, columns, and label and source_dataset distributions.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if file == "" {
				file = domain.DefaultPaths(a.cfg.BaseDir).Output
			}

			db, err := sql.Open("duckdb", "")
			if err != nil {
				return fmt.Errorf("open duckdb: %w", err)
			}
			defer db.Close() //nolint:errcheck

			insp := engine.NewCSVInspector(db)
			total, err := insp.CountRows(ctx, file)
			if err != nil {
				return err
			}
			cols, err := insp.Columns(ctx, file)
			if err != nil {
				return err
			}

			out := inspectOutput{File: file, TotalRows: total, Columns: cols}
			for _, col := range []string{domain.ColLabel, domain.ColSourceDataset} {
				dist, err := insp.Distribution(ctx, file, col)
				if err != nil {
					return err
				}
				out.Distributions = append(out.Distributions, distributionJSON{
					Column: dist.Column,
					Values: toValueCountOutput(dist.Values),
				})
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "File: %s\n", out.File)
			_, _ = fmt.Fprintf(w, "Total rows: %d\n", out.TotalRows)
			_, _ = fmt.Fprintf(w, "Columns: %s\n", strings.Join(out.Columns, ", "))
			for _, d := range out.Distributions {
				_, _ = fmt.Fprintf(w, "\n%s distribution:\n", d.Column)
				rows := make([][]string, len(d.Values))
				for i, v := range d.Values {
					rows[i] = []string{v.Value, strconv.Itoa(v.Count), strconv.FormatFloat(v.Percent, 'f', 1, 64) + "%"}
				}
				printTable(w, []string{"value", "count", "percent"}, rows)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Merged CSV to inspect (default <base-dir>/1_datasets/merged_phishing_dataset.csv)")
	return cmd
}
