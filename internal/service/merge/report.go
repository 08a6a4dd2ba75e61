package merge

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"phish-merge/internal/domain"
)

const ruleWidth = 50

// Summarize computes the merge statistics. source1Rows and source2Rows are
// the row counts of the inputs before normalisation.
func Summarize(t *domain.Table[domain.MergedRow], source1Rows, source2Rows int) domain.Summary {
	labels := make([]string, len(t.Rows))
	sources := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		labels[i] = r.Label
		sources[i] = r.SourceDataset
	}

	return domain.Summary{
		TotalRows:          t.Len(),
		Source1Rows:        source1Rows,
		Source2Rows:        source2Rows,
		TotalColumns:       len(t.Columns),
		Columns:            append([]string(nil), t.Columns...),
		LabelDistribution:  ValueCounts(labels, t.Len()),
		SourceDistribution: ValueCounts(sources, t.Len()),
	}
}

// ValueCounts tallies the distinct non-empty values, most frequent first.
// Ties keep the order in which values first appear. Percentages are taken
// against total, which includes rows whose value is empty.
func ValueCounts(values []string, total int) []domain.ValueCount {
	counts := make(map[string]int)
	var order []string
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}

	out := make([]domain.ValueCount, len(order))
	for i, v := range order {
		out[i] = domain.ValueCount{Value: v, Count: counts[v]}
		if total > 0 {
			out[i].Percent = float64(counts[v]) * 100 / float64(total)
		}
	}
	// Insertion order is first appearance; a stable sort keeps it for ties.
	slices.SortStableFunc(out, func(a, b domain.ValueCount) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return out
}

// PrintSummary writes the human-readable merge summary to w.
func PrintSummary(w io.Writer, s domain.Summary) {
	p := message.NewPrinter(language.English)
	rule := strings.Repeat("=", ruleWidth)

	_, _ = fmt.Fprintf(w, "\n%s\nMERGE SUMMARY\n%s\n", rule, rule)
	_, _ = p.Fprintf(w, "Total rows in merged dataset: %d\n", s.TotalRows)
	_, _ = p.Fprintf(w, "Rows from %s dataset: %d\n", domain.Provenance1993To2008, s.Source1Rows)
	_, _ = p.Fprintf(w, "Rows from %s dataset: %d\n", domain.Provenance2015To2022, s.Source2Rows)
	_, _ = p.Fprintf(w, "Total columns: %d\n", s.TotalColumns)

	_, _ = fmt.Fprintln(w, "\nLabel distribution:")
	printDistribution(w, p, s.LabelDistribution)

	_, _ = fmt.Fprintln(w, "\nSource dataset distribution:")
	printDistribution(w, p, s.SourceDistribution)
}

func printDistribution(w io.Writer, p *message.Printer, values []domain.ValueCount) {
	for _, vc := range values {
		_, _ = fmt.Fprintf(w, "  %s: %s (%.1f%%)\n", vc.Value, p.Sprintf("%d", vc.Count), vc.Percent)
	}
}
