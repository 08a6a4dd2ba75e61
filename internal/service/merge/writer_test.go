package merge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phish-merge/internal/domain"
)

func mergedTable(rows ...domain.TaggedRecord) *domain.Table[domain.MergedRow] {
	out := make([]domain.MergedRow, len(rows))
	for i, r := range rows {
		out[i] = domain.MergedRow{Index: i, TaggedRecord: r}
	}
	return &domain.Table[domain.MergedRow]{Columns: domain.MergedColumns(), Rows: out}
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "merged.csv")

	tbl := mergedTable(
		domain.TaggedRecord{
			Record:        domain.Record{Sender: "a@x", Receiver: "b@y", Date: "2001", Subject: "Hi, there", Body: "line1\nline2", Label: "phishing", URLs: "1"},
			SourceDataset: domain.Provenance1993To2008,
		},
		domain.TaggedRecord{
			Record:        domain.Record{Sender: "c@x", Receiver: "d@y", Date: "2020", Subject: `say "hi"`, Body: "", Label: "legit", URLs: "0"},
			SourceDataset: domain.Provenance2015To2022,
		},
	)

	require.NoError(t, WriteCSV(path, tbl))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "sender,receiver,date,subject,body,label,urls,source_dataset\n" +
		"a@x,b@y,2001,\"Hi, there\",\"line1\nline2\",phishing,1,1993-2008\n" +
		"c@x,d@y,2020,\"say \"\"hi\"\"\",,legit,0,2015-2022\n"
	assert.Equal(t, want, string(data))

	// No temporary files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteCSV_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "merged.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale content that is longer than the new table\n"), 0o600))

	require.NoError(t, WriteCSV(path, mergedTable()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sender,receiver,date,subject,body,label,urls,source_dataset\n", string(data))
}

func TestWriteCSV_Unwritable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "no-such-dir", "merged.csv")

	err := WriteCSV(path, mergedTable())
	require.Error(t, err)

	var writeErr *domain.WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, path, writeErr.Path)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
