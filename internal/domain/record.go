// Package domain defines core types, interfaces, and errors for the dataset merger.
package domain

import "path/filepath"

// Column names of the canonical email record schema.
const (
	ColSender        = "sender"
	ColReceiver      = "receiver"
	ColDate          = "date"
	ColSubject       = "subject"
	ColBody          = "body"
	ColLabel         = "label"
	ColURLs          = "urls"
	ColSourceDataset = "source_dataset"
)

// Provenance labels attached to every row of the respective source table.
const (
	Provenance1993To2008 = "1993-2008"
	Provenance2015To2022 = "2015-2022"
)

// Fixed file layout relative to the project base directory.
const (
	DatasetsDir     = "1_datasets"
	Dataset1File    = "phising_vs_simple_email_raw(1993_2008).csv"
	Dataset2File    = "phising_vs_simple_email_raw(2015-2022).csv"
	MergedFile      = "merged_phishing_dataset.csv"
	canonicalFields = 7
)

// CanonicalColumns returns the seven record columns in canonical order.
func CanonicalColumns() []string {
	return []string{ColSender, ColReceiver, ColDate, ColSubject, ColBody, ColLabel, ColURLs}
}

// MergedColumns returns the canonical columns followed by source_dataset.
func MergedColumns() []string {
	return append(CanonicalColumns(), ColSourceDataset)
}

// Record is one labeled email. Date, Label and URLs are carried verbatim
// from the source file and are never parsed.
type Record struct {
	Sender   string
	Receiver string
	Date     string
	Subject  string
	Body     string
	Label    string
	URLs     string
}

// Fields returns the record values in canonical column order.
func (r Record) Fields() []string {
	return []string{r.Sender, r.Receiver, r.Date, r.Subject, r.Body, r.Label, r.URLs}
}

// RecordFromFields builds a Record from values in canonical column order.
func RecordFromFields(fields []string) Record {
	var f [canonicalFields]string
	copy(f[:], fields)
	return Record{
		Sender:   f[0],
		Receiver: f[1],
		Date:     f[2],
		Subject:  f[3],
		Body:     f[4],
		Label:    f[5],
		URLs:     f[6],
	}
}

// TaggedRecord is a Record annotated with the dataset it came from.
type TaggedRecord struct {
	Record
	SourceDataset string
}

// Fields returns the record values followed by the provenance label.
func (r TaggedRecord) Fields() []string {
	return append(r.Record.Fields(), r.SourceDataset)
}

// MergedRow is a TaggedRecord positioned in the merged dataset.
type MergedRow struct {
	Index int
	TaggedRecord
}

// Table is an ordered sequence of rows sharing one column list.
type Table[R any] struct {
	Columns []string
	Rows    []R
}

// Len returns the number of rows.
func (t *Table[R]) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// SourceTable is an input dataset as read from disk: the header in file
// order and the raw cells of every data row.
type SourceTable struct {
	Path    string
	Columns []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (s *SourceTable) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// ColumnIndex returns the position of name in the header, or -1.
func (s *SourceTable) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Paths locates the two inputs and the merged output of one run.
type Paths struct {
	Dataset1 string
	Dataset2 string
	Output   string
}

// DefaultPaths returns the conventional layout under baseDir.
func DefaultPaths(baseDir string) Paths {
	dir := filepath.Join(baseDir, DatasetsDir)
	return Paths{
		Dataset1: filepath.Join(dir, Dataset1File),
		Dataset2: filepath.Join(dir, Dataset2File),
		Output:   filepath.Join(dir, MergedFile),
	}
}
