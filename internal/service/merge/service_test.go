package merge

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phish-merge/internal/domain"
	"phish-merge/internal/testutil"
)

func fixedNow() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestService_Run(t *testing.T) {
	paths := testutil.WriteDatasets(t, t.TempDir())
	var out bytes.Buffer
	svc := NewService(ServiceConfig{Out: &out, Now: fixedNow})

	result, err := svc.Run(context.Background(), paths)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Written)
	assert.NotEmpty(t, result.RunID)

	// Row count is the sum of both sources.
	assert.Equal(t, 5, result.Merged.Len())
	assert.Equal(t, 2, result.Summary.Source1Rows)
	assert.Equal(t, 3, result.Summary.Source2Rows)

	records := readCSV(t, paths.Output)
	require.Len(t, records, 6)
	assert.Equal(t, domain.MergedColumns(), records[0])

	wantSenders := []string{"a@old.com", "c@old.com", "e@new.com", "g@new.com", "i@new.com"}
	for i, rec := range records[1:] {
		require.Len(t, rec, 8)
		assert.Equal(t, wantSenders[i], rec[0])
		if i < 2 {
			assert.Equal(t, domain.Provenance1993To2008, rec[7])
		} else {
			assert.Equal(t, domain.Provenance2015To2022, rec[7])
		}
	}
	// Source 2 columns were reordered: label before urls.
	assert.Equal(t, []string{"phishing", "1"}, records[5][5:7])
	// Quoted multi-line body survives the round trip.
	assert.Equal(t, "See you\nat noon", records[2][4])

	console := out.String()
	assert.Contains(t, console, "Timestamp: 2024-05-01 12:00:00")
	assert.Contains(t, console, "Dataset 1 loaded: 2 rows")
	assert.Contains(t, console, "Columns: [sender, receiver, date, subject, body, urls, label]")
	assert.Contains(t, console, "Merged dataset: 5 rows")
	assert.Contains(t, console, "  legit: 3 (60.0%)")
	assert.Contains(t, console, "  phishing: 2 (40.0%)")
	assert.Contains(t, console, "  2015-2022: 3 (60.0%)")
	assert.Contains(t, console, "  1993-2008: 2 (40.0%)")
	assert.Contains(t, console, "✓ Dataset merge completed successfully!")
}

func TestService_Run_PreservesRecordMultiset(t *testing.T) {
	dir := t.TempDir()
	paths := domain.Paths{
		Dataset1: testutil.WriteFile(t, dir, "one.csv",
			testutil.Header1993,
			"a,b,c,d,e,1,0",
			"a,b,c,d,e,1,0",
		),
		Dataset2: testutil.WriteFile(t, dir, "two.csv",
			testutil.Header2015,
			"a,b,c,d,e,0,1",
		),
		Output: filepath.Join(dir, "out.csv"),
	}

	result, err := NewService(ServiceConfig{}).Run(context.Background(), paths)
	require.NoError(t, err)

	// Duplicates within and across sources are all retained.
	require.Equal(t, 3, result.Merged.Len())
	for _, row := range result.Merged.Rows {
		assert.Equal(t, domain.Record{Sender: "a", Receiver: "b", Date: "c", Subject: "d", Body: "e", Label: "1", URLs: "0"}, row.Record)
	}
}

func TestService_Run_PreservesCellBytes(t *testing.T) {
	names := slices.Sorted(maps.Keys(testutil.CellShapes))
	lines1 := []string{testutil.Header1993}
	lines2 := []string{testutil.Header2015}
	for _, name := range names {
		v := testutil.QuoteCSV(testutil.CellShapes[name])
		lines1 = append(lines1, "s1,r1,d1,subj,"+v+",phishing,"+v)
		lines2 = append(lines2, "s2,r2,d2,"+v+",body,"+v+",legit")
	}
	dir := t.TempDir()
	paths := domain.Paths{
		Dataset1: testutil.WriteFile(t, dir, "one.csv", lines1...),
		Dataset2: testutil.WriteFile(t, dir, "two.csv", lines2...),
		Output:   filepath.Join(dir, "out.csv"),
	}

	result, err := NewService(ServiceConfig{}).Run(context.Background(), paths)
	require.NoError(t, err)

	written, err := LoadSource(paths.Output)
	require.NoError(t, err)
	assert.Equal(t, domain.MergedColumns(), written.Columns)

	n := len(names)
	require.Equal(t, 2*n, result.Merged.Len())
	require.Equal(t, 2*n, written.Len())
	for i, name := range names {
		want := testutil.CellShapes[name]
		assert.Equal(t, want, result.Merged.Rows[i].Body, name)
		assert.Equal(t, want, result.Merged.Rows[n+i].Subject, name)

		assert.Equal(t, want, written.Rows[i][4], "body: "+name)
		assert.Equal(t, want, written.Rows[i][6], "urls: "+name)
		assert.Equal(t, want, written.Rows[n+i][3], "subject: "+name)
		assert.Equal(t, want, written.Rows[n+i][6], "urls: "+name)
	}
}

func TestService_Run_MissingColumn(t *testing.T) {
	dir := t.TempDir()
	paths := domain.Paths{
		Dataset1: testutil.WriteFile(t, dir, "one.csv",
			"sender,receiver,date,subject,body,label",
			"a,b,c,d,e,phishing",
		),
		Dataset2: testutil.WriteFile(t, dir, "two.csv", testutil.Header2015, "a,b,c,d,e,0,legit"),
		Output:   filepath.Join(dir, "out.csv"),
	}
	var out bytes.Buffer
	runs := &testutil.MockRunRepo{}
	svc := NewService(ServiceConfig{Out: &out, Runs: runs})

	result, err := svc.Run(context.Background(), paths)
	require.Error(t, err)
	assert.Nil(t, result)

	var schemaErr *domain.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "urls", schemaErr.Column)

	_, statErr := os.Stat(paths.Output)
	assert.True(t, os.IsNotExist(statErr), "no output file may be written")
	assert.Contains(t, out.String(), "✗ Dataset merge failed!")

	run := runs.LastRun()
	require.NotNil(t, run)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	require.NotNil(t, run.ErrorKind)
	assert.Equal(t, "SchemaError", *run.ErrorKind)
	assert.Nil(t, run.OutputSHA256)
}

func TestService_Run_LoadError(t *testing.T) {
	dir := t.TempDir()
	paths := domain.DefaultPaths(dir)

	result, err := NewService(ServiceConfig{}).Run(context.Background(), paths)
	require.Error(t, err)
	assert.Nil(t, result)

	var loadErr *domain.LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, paths.Dataset1, loadErr.Path)
}

func TestService_Run_WriteErrorKeepsMergedTable(t *testing.T) {
	paths := testutil.WriteDatasets(t, t.TempDir())
	paths.Output = filepath.Join(filepath.Dir(paths.Output), "missing", "merged.csv")

	result, err := NewService(ServiceConfig{}).Run(context.Background(), paths)
	require.Error(t, err)

	var writeErr *domain.WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, paths.Output, writeErr.Path)

	require.NotNil(t, result)
	assert.False(t, result.Written)
	require.Equal(t, 5, result.Merged.Len())
	for i, row := range result.Merged.Rows {
		assert.Equal(t, i, row.Index)
	}
	assert.Equal(t, 5, result.Summary.TotalRows)
}

func TestService_Run_Deterministic(t *testing.T) {
	paths := testutil.WriteDatasets(t, t.TempDir())
	svc := NewService(ServiceConfig{})

	_, err := svc.Run(context.Background(), paths)
	require.NoError(t, err)
	first, err := os.ReadFile(paths.Output)
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), paths)
	require.NoError(t, err)
	second, err := os.ReadFile(paths.Output)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestService_Run_RecordsRun(t *testing.T) {
	paths := testutil.WriteDatasets(t, t.TempDir())
	runs := &testutil.MockRunRepo{}
	sink := &testutil.MockMetricsSink{}
	svc := NewService(ServiceConfig{Runs: runs, Metrics: sink, Now: fixedNow}).
		WithTrigger(domain.TriggerTypeScheduled)

	result, err := svc.Run(context.Background(), paths)
	require.NoError(t, err)

	run := runs.LastRun()
	require.NotNil(t, run)
	assert.Equal(t, result.RunID, run.ID)
	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.Equal(t, domain.TriggerTypeScheduled, run.TriggerType)
	assert.Equal(t, 5, run.TotalRows)
	require.NotNil(t, run.OutputSHA256)
	assert.Len(t, *run.OutputSHA256, 64)
	assert.Nil(t, run.ErrorKind)

	require.Len(t, sink.Observed, 1)
	assert.Same(t, run, sink.Observed[0])
}

func TestService_Run_RecorderFailureIgnored(t *testing.T) {
	paths := testutil.WriteDatasets(t, t.TempDir())
	runs := &testutil.MockRunRepo{
		CreateFn: func(_ context.Context, _ *domain.MergeRun) error {
			return errors.New("database is locked")
		},
	}

	result, err := NewService(ServiceConfig{Runs: runs}).Run(context.Background(), paths)
	require.NoError(t, err)
	assert.True(t, result.Written)
}
