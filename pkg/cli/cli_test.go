package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phish-merge/internal/domain"
	"phish-merge/internal/testutil"
)

func TestMerge_TableOutput(t *testing.T) {
	isolateEnv(t)
	base := t.TempDir()
	paths := testutil.WriteDatasets(t, base)

	out, _, err := runCLI(t, "merge", "--base-dir", base)
	require.NoError(t, err)

	assert.Contains(t, out, "Email Phishing Dataset Merger")
	assert.Contains(t, out, "Dataset 1 loaded: 2 rows")
	assert.Contains(t, out, "Dataset 2 loaded: 3 rows")
	assert.Contains(t, out, "Merged dataset: 5 rows")
	assert.Contains(t, out, "  legit: 3 (60.0%)")
	assert.Contains(t, out, "  2015-2022: 3 (60.0%)")
	assert.Contains(t, out, "✓ Dataset merge completed successfully!")
	assert.FileExists(t, paths.Output)
}

func TestMerge_JSONOutput(t *testing.T) {
	isolateEnv(t)
	base := t.TempDir()
	testutil.WriteDatasets(t, base)

	out, stderr, err := runCLI(t, "merge", "--base-dir", base, "--no-ledger", "-o", "json")
	require.NoError(t, err)

	var got mergeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.NotEmpty(t, got.RunID)
	assert.Equal(t, 5, got.TotalRows)
	assert.Equal(t, 2, got.Source1Rows)
	assert.Equal(t, 3, got.Source2Rows)
	assert.Equal(t, domain.MergedColumns(), got.Columns)
	require.Len(t, got.LabelDistribution, 2)
	assert.Equal(t, valueCountOutput{Value: "legit", Count: 3, Percent: 60}, got.LabelDistribution[0])
	assert.Equal(t, valueCountOutput{Value: "phishing", Count: 2, Percent: 40}, got.LabelDistribution[1])

	// Progress moves to stderr so stdout stays parseable.
	assert.Contains(t, stderr, "Dataset 1 loaded: 2 rows")
}

func TestMerge_Quiet(t *testing.T) {
	isolateEnv(t)
	base := t.TempDir()
	paths := testutil.WriteDatasets(t, base)

	out, _, err := runCLI(t, "merge", "--base-dir", base, "--no-ledger", "-q")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.FileExists(t, paths.Output)
}

func TestMerge_ExplicitPaths(t *testing.T) {
	isolateEnv(t)
	base := t.TempDir()
	paths := testutil.WriteDatasets(t, base)
	output := filepath.Join(t.TempDir(), "custom.csv")

	_, _, err := runCLI(t, "merge",
		"--dataset1", paths.Dataset1,
		"--dataset2", paths.Dataset2,
		"--output-file", output,
		"--no-ledger", "-q",
	)
	require.NoError(t, err)
	assert.FileExists(t, output)
	assert.NoFileExists(t, paths.Output)
}

func TestMerge_SchemaError(t *testing.T) {
	isolateEnv(t)
	base := t.TempDir()
	paths := testutil.WriteDatasets(t, base)
	testutil.WriteFile(t, filepath.Dir(paths.Dataset1), domain.Dataset1File,
		"sender,receiver,date,subject,body,label",
		"a@old.com,b@old.com,2001-03-04,Hi,Body,legit",
	)

	out, _, err := runCLI(t, "merge", "--base-dir", base, "--no-ledger")
	require.Error(t, err)

	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, domain.ColURLs, schemaErr.Column)
	assert.Contains(t, out, "✗ Dataset merge failed!")
	assert.NoFileExists(t, paths.Output)
}

func TestMerge_LoadErrorForMissingBaseDir(t *testing.T) {
	isolateEnv(t)

	_, _, err := runCLI(t, "merge", "--base-dir", filepath.Join(t.TempDir(), "missing"), "--no-ledger", "-q")
	require.Error(t, err)
	var loadErr *domain.LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestMerge_RejectsUnsupportedPublishTarget(t *testing.T) {
	isolateEnv(t)
	base := t.TempDir()
	paths := testutil.WriteDatasets(t, base)

	_, _, err := runCLI(t, "merge", "--base-dir", base, "--no-ledger", "--publish", "ftp://host/merged.csv")
	require.Error(t, err)

	var valErr *domain.ValidationError
	assert.ErrorAs(t, err, &valErr)
	assert.NoFileExists(t, paths.Output, "publish targets are validated before merging")
}

func TestMerge_PublishWithoutCredentials(t *testing.T) {
	isolateEnv(t)
	base := t.TempDir()
	testutil.WriteDatasets(t, base)

	_, _, err := runCLI(t, "merge", "--base-dir", base, "--no-ledger", "--publish", "s3://bucket/merged.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials configured")
}

func TestMerge_WritesMetricsFile(t *testing.T) {
	isolateEnv(t)
	base := t.TempDir()
	testutil.WriteDatasets(t, base)
	metricsFile := filepath.Join(t.TempDir(), "phishmerge.prom")

	_, _, err := runCLI(t, "merge", "--base-dir", base, "--no-ledger", "-q", "--metrics-file", metricsFile)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "phishmerge_merged_rows 5")
	assert.Contains(t, string(data), "phishmerge_last_run_success 1")
}

func TestHistory_ListsRecordedRuns(t *testing.T) {
	isolateEnv(t)
	base := t.TempDir()
	testutil.WriteDatasets(t, base)

	_, _, err := runCLI(t, "merge", "--base-dir", base, "-q")
	require.NoError(t, err)
	_, _, err = runCLI(t, "merge", "--base-dir", filepath.Join(base, "missing"), "-q")
	require.Error(t, err)

	out, _, err := runCLI(t, "history", "-o", "json")
	require.NoError(t, err)

	var runs []runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)

	statuses := []string{runs[0].Status, runs[1].Status}
	assert.ElementsMatch(t, []string{domain.RunStatusSuccess, domain.RunStatusFailed}, statuses)
	for _, r := range runs {
		assert.Equal(t, domain.TriggerTypeManual, r.TriggerType)
		if r.Status == domain.RunStatusSuccess {
			assert.Equal(t, 5, r.TotalRows)
			require.NotNil(t, r.OutputSHA256)
			assert.Len(t, *r.OutputSHA256, 64)
		} else {
			require.NotNil(t, r.ErrorKind)
			assert.Equal(t, "LoadError", *r.ErrorKind)
		}
	}
}

func TestHistory_QuietPrintsIDs(t *testing.T) {
	isolateEnv(t)
	base := t.TempDir()
	testutil.WriteDatasets(t, base)

	_, _, err := runCLI(t, "merge", "--base-dir", base, "-q")
	require.NoError(t, err)

	out, _, err := runCLI(t, "history", "-q")
	require.NoError(t, err)
	lines := strings.Fields(out)
	require.Len(t, lines, 1)
	assert.Len(t, lines[0], 36)
}

func TestHistory_ByID(t *testing.T) {
	isolateEnv(t)
	base := t.TempDir()
	testutil.WriteDatasets(t, base)

	_, _, err := runCLI(t, "merge", "--base-dir", base, "-q")
	require.NoError(t, err)
	out, _, err := runCLI(t, "history", "-q")
	require.NoError(t, err)
	id := strings.TrimSpace(out)

	out, _, err = runCLI(t, "history", "--id", id, "-o", "json")
	require.NoError(t, err)
	var run runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, id, run.ID)
	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.Equal(t, 5, run.TotalRows)

	_, _, err = runCLI(t, "history", "--id", "no-such-run")
	require.Error(t, err)
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestHistory_LogsLedgerSchemaVersion(t *testing.T) {
	isolateEnv(t)

	_, stderr, err := runCLI(t, "history", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, stderr, `"msg":"run ledger opened"`)
	assert.Contains(t, stderr, `"schema_version":1`)
}

func TestHistory_NoLedgerFlagSkipsRecording(t *testing.T) {
	isolateEnv(t)
	base := t.TempDir()
	testutil.WriteDatasets(t, base)

	_, _, err := runCLI(t, "merge", "--base-dir", base, "-q", "--no-ledger")
	require.NoError(t, err)

	out, _, err := runCLI(t, "history", "-q")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestInspect_JSON(t *testing.T) {
	isolateEnv(t)
	file := testutil.WriteFile(t, t.TempDir(), "merged.csv",
		"sender,receiver,date,subject,body,label,urls,source_dataset",
		"a@x.com,b@x.com,2001-01-01,s,b,phishing,1,1993-2008",
		"c@x.com,d@x.com,2002-01-01,s,b,legit,0,1993-2008",
		"e@x.com,f@x.com,2019-01-01,s,b,legit,0,2015-2022",
		"g@x.com,h@x.com,2020-01-01,s,b,legit,0,2015-2022",
		"i@x.com,j@x.com,2021-01-01,s,b,phishing,1,2015-2022",
	)

	out, _, err := runCLI(t, "inspect", "--file", file, "-o", "json")
	require.NoError(t, err)

	var got inspectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 5, got.TotalRows)
	assert.Equal(t, domain.MergedColumns(), got.Columns)
	require.Len(t, got.Distributions, 2)
	assert.Equal(t, domain.ColLabel, got.Distributions[0].Column)
	assert.Equal(t, []valueCountOutput{
		{Value: "legit", Count: 3, Percent: 60},
		{Value: "phishing", Count: 2, Percent: 40},
	}, got.Distributions[0].Values)
	assert.Equal(t, []valueCountOutput{
		{Value: "2015-2022", Count: 3, Percent: 60},
		{Value: "1993-2008", Count: 2, Percent: 40},
	}, got.Distributions[1].Values)
}

func TestSchedule_RequiresExpression(t *testing.T) {
	isolateEnv(t)

	_, _, err := runCLI(t, "schedule")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schedule")
}

func TestSchedule_RejectsInvalidExpression(t *testing.T) {
	isolateEnv(t)

	_, _, err := runCLI(t, "schedule", "--cron", "every tuesday", "--no-ledger")
	require.Error(t, err)
	var valErr *domain.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestVersion(t *testing.T) {
	isolateEnv(t)

	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "phishmerge version dev (commit: none, go"), out)

	out, _, err = runCLI(t, "version", "-o", "json")
	require.NoError(t, err)
	var v versionOutput
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "dev", v.Version)
	assert.Equal(t, "none", v.Commit)
	assert.Equal(t, runtime.Version(), v.Go)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, v.Platform)
}

func TestRoot_RejectsUnknownOutputFormat(t *testing.T) {
	isolateEnv(t)

	_, _, err := runCLI(t, "version", "-o", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestRoot_InvalidEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("LOG_FORMAT", "xml")

	_, _, err := runCLI(t, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_FORMAT")
}

func TestOutputOnlyCommands_IgnoreBrokenEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("LOG_FORMAT", "xml")
	t.Chdir(t.TempDir())
	require.NoError(t, os.Mkdir(".env", 0o755))

	_, _, err := runCLI(t, "history")
	require.Error(t, err)

	tests := []struct {
		name string
		args []string
	}{
		{name: "version", args: []string{"version"}},
		{name: "version json", args: []string{"version", "-o", "json"}},
		{name: "completion", args: []string{"completion", "bash"}},
		{name: "config set-profile", args: []string{"config", "set-profile", "--name", "p"}},
		{name: "config show", args: []string{"config", "show"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, _, err := runCLI(t, tc.args...)
			require.NoError(t, err)
			assert.NotEmpty(t, out)
		})
	}
}

func TestVersion_OutputFromEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("PHISHMERGE_OUTPUT", "json")

	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	var v versionOutput
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "dev", v.Version)
}
