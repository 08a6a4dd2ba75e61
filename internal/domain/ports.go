package domain

import (
	"context"
	"io"
)

// RunRepository persists merge run records.
// Implemented by repository.MergeRunRepo.
type RunRepository interface {
	Create(ctx context.Context, run *MergeRun) error
	Get(ctx context.Context, id string) (*MergeRun, error)
	List(ctx context.Context, limit int) ([]MergeRun, error)
}

// MetricsSink receives the outcome of each merge run.
// Implemented by metrics.TextfileExporter.
type MetricsSink interface {
	ObserveRun(run *MergeRun, summary *Summary) error
}

// Publisher copies a finished output file to a remote destination.
// Implementations: publish.S3Publisher, publish.GCSPublisher, publish.AzurePublisher.
type Publisher interface {
	Publish(ctx context.Context, dest string, body io.Reader, size int64) error
	Scheme() string
}

// Distribution is a categorical breakdown of one column.
type Distribution struct {
	Column string
	Values []ValueCount
}

// OutputInspector reads a merged output file back and reports on it.
// Implemented by engine.CSVInspector.
type OutputInspector interface {
	CountRows(ctx context.Context, path string) (int, error)
	Columns(ctx context.Context, path string) ([]string, error)
	Distribution(ctx context.Context, path, column string) (*Distribution, error)
}
