// Package metrics exports merge run statistics in the Prometheus text format
// for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"phish-merge/internal/domain"
)

// Compile-time check.
var _ domain.MetricsSink = (*TextfileExporter)(nil)

// TextfileExporter records each run into a private registry and rewrites
// the textfile after every observation.
type TextfileExporter struct {
	path     string
	registry *prometheus.Registry
	mu       sync.Mutex

	runsTotal       *prometheus.CounterVec
	sourceRows      *prometheus.GaugeVec
	mergedRows      prometheus.Gauge
	labelRows       *prometheus.GaugeVec
	runDuration     prometheus.Histogram
	lastRunSuccess  prometheus.Gauge
	lastSuccessTime prometheus.Gauge
}

// NewTextfileExporter creates an exporter that writes to path.
func NewTextfileExporter(path string) *TextfileExporter {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &TextfileExporter{
		path:     path,
		registry: reg,
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishmerge_runs_total",
				Help: "Merge runs by outcome",
			},
			[]string{"status", "trigger"},
		),
		sourceRows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "phishmerge_source_rows",
				Help: "Rows loaded from each source dataset in the last run",
			},
			[]string{"source_dataset"},
		),
		mergedRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "phishmerge_merged_rows",
			Help: "Rows in the merged dataset from the last run",
		}),
		labelRows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "phishmerge_label_rows",
				Help: "Merged rows per label value in the last successful run",
			},
			[]string{"label"},
		),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "phishmerge_run_duration_seconds",
			Help:    "Wall-clock duration of merge runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		}),
		lastRunSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "phishmerge_last_run_success",
			Help: "1 if the last merge run succeeded, 0 otherwise",
		}),
		lastSuccessTime: f.NewGauge(prometheus.GaugeOpts{
			Name: "phishmerge_last_success_timestamp_seconds",
			Help: "Unix time of the last successful merge run",
		}),
	}
}

// Registry exposes the underlying registry.
func (e *TextfileExporter) Registry() *prometheus.Registry { return e.registry }

// ObserveRun updates the metrics from run and rewrites the textfile.
// summary may be nil when the run failed before a table was built.
func (e *TextfileExporter) ObserveRun(run *domain.MergeRun, summary *domain.Summary) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.runsTotal.WithLabelValues(run.Status, run.TriggerType).Inc()
	e.runDuration.Observe(run.Duration().Seconds())

	if run.Status == domain.RunStatusSuccess {
		e.lastRunSuccess.Set(1)
		e.lastSuccessTime.Set(float64(run.FinishedAt.Unix()))
	} else {
		e.lastRunSuccess.Set(0)
	}

	if summary != nil {
		e.sourceRows.WithLabelValues(domain.Provenance1993To2008).Set(float64(summary.Source1Rows))
		e.sourceRows.WithLabelValues(domain.Provenance2015To2022).Set(float64(summary.Source2Rows))
		e.mergedRows.Set(float64(summary.TotalRows))
		if run.Status == domain.RunStatusSuccess {
			e.labelRows.Reset()
			for _, vc := range summary.LabelDistribution {
				e.labelRows.WithLabelValues(vc.Value).Set(float64(vc.Count))
			}
		}
	}

	return e.flush()
}

func (e *TextfileExporter) flush() error {
	if e.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil { //nolint:gosec // metrics directory is world-readable
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(e.path, e.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
