package cli

import (
	"bytes"
	"testing"
)

// envKeys lists every variable the CLI reads, so tests start from a clean slate.
var envKeys = []string{
	"PHISHMERGE_BASE_DIR", "PHISHMERGE_OUTPUT", "LEDGER_DB_PATH", "LEDGER_ENABLED",
	"LOG_LEVEL", "LOG_FORMAT", "METRICS_FILE", "PUBLISH_TARGETS", "MERGE_SCHEDULE",
	"KEY_ID", "SECRET", "ENDPOINT", "REGION", "S3_URL_STYLE", "GCS_KEY_FILE",
	"AZURE_STORAGE_ACCOUNT", "AZURE_STORAGE_KEY",
}

// isolateEnv points HOME at a temp dir, clears the CLI's environment
// variables and keeps the ledger inside the temp dir. It returns HOME.
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Setenv("LEDGER_DB_PATH", home+"/ledger.sqlite")
	return home
}

// runCLI executes a fresh root command and returns what it wrote to
// stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}
