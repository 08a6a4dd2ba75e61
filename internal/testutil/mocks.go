// Package testutil provides shared mock implementations of domain interfaces
// and fixture helpers for use in tests across the codebase.
package testutil

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"phish-merge/internal/domain"
)

// === Run Repository Mock ===

// MockRunRepo implements domain.RunRepository for testing.
type MockRunRepo struct {
	CreateFn func(ctx context.Context, run *domain.MergeRun) error
	GetFn    func(ctx context.Context, id string) (*domain.MergeRun, error)
	ListFn   func(ctx context.Context, limit int) ([]domain.MergeRun, error)
	Runs     []*domain.MergeRun // collected runs for assertions
}

// Create implements the interface method for testing.
func (m *MockRunRepo) Create(ctx context.Context, run *domain.MergeRun) error {
	if m.CreateFn != nil {
		if err := m.CreateFn(ctx, run); err != nil {
			return err
		}
	}
	m.Runs = append(m.Runs, run)
	return nil
}

// Get implements the interface method for testing.
func (m *MockRunRepo) Get(ctx context.Context, id string) (*domain.MergeRun, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}
	panic("unexpected call to MockRunRepo.Get")
}

// List implements the interface method for testing.
func (m *MockRunRepo) List(ctx context.Context, limit int) ([]domain.MergeRun, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, limit)
	}
	panic("unexpected call to MockRunRepo.List")
}

// LastRun returns the last collected run, or nil if none.
func (m *MockRunRepo) LastRun() *domain.MergeRun {
	if len(m.Runs) == 0 {
		return nil
	}
	return m.Runs[len(m.Runs)-1]
}

// === Metrics Sink Mock ===

// MockMetricsSink implements domain.MetricsSink for testing.
type MockMetricsSink struct {
	ObserveRunFn func(run *domain.MergeRun, summary *domain.Summary) error
	Observed     []*domain.MergeRun
}

// ObserveRun implements the interface method for testing.
func (m *MockMetricsSink) ObserveRun(run *domain.MergeRun, summary *domain.Summary) error {
	m.Observed = append(m.Observed, run)
	if m.ObserveRunFn != nil {
		return m.ObserveRunFn(run, summary)
	}
	return nil
}

// === Publisher Mock ===

// MockPublisher implements domain.Publisher for testing. It is safe for
// concurrent use.
type MockPublisher struct {
	SchemeName string
	PublishFn  func(ctx context.Context, dest string, body io.Reader, size int64) error

	mu        sync.Mutex
	Published map[string][]byte // dest -> uploaded bytes
}

// Publish implements the interface method for testing.
func (m *MockPublisher) Publish(ctx context.Context, dest string, body io.Reader, size int64) error {
	if m.PublishFn != nil {
		if err := m.PublishFn(ctx, dest, body, size); err != nil {
			return err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Published == nil {
		m.Published = make(map[string][]byte)
	}
	m.Published[dest] = data
	return nil
}

// Scheme implements the interface method for testing.
func (m *MockPublisher) Scheme() string { return m.SchemeName }

// === Fixtures ===

// Header1993 is the column order of the 1993-2008 dataset.
const Header1993 = "sender,receiver,date,subject,body,label,urls"

// Header2015 is the column order of the 2015-2022 dataset.
const Header2015 = "sender,receiver,date,subject,body,urls,label"

// WriteFile writes the given lines, newline-terminated, to dir/name and
// returns the full path.
func WriteFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteDatasets writes a minimal pair of input files in the default layout
// under baseDir: two rows in the 1993-2008 file, three in the 2015-2022 file.
func WriteDatasets(t *testing.T, baseDir string) domain.Paths {
	t.Helper()
	paths := domain.DefaultPaths(baseDir)
	dir := filepath.Dir(paths.Dataset1)
	WriteFile(t, dir, domain.Dataset1File,
		Header1993,
		`a@old.com,b@old.com,2001-03-04,Win now,"Click here, now",phishing,1`,
		`c@old.com,d@old.com,2002-05-06,Lunch,"See you
at noon",legit,0`,
	)
	WriteFile(t, dir, domain.Dataset2File,
		Header2015,
		`e@new.com,f@new.com,2019-01-01,Report,Attached,0,legit`,
		`g@new.com,h@new.com,2020-02-02,Invoice,Paid,0,legit`,
		`i@new.com,j@new.com,2021-03-03,Verify account,Log in here,1,phishing`,
	)
	return paths
}

// QuoteCSV returns v as a quoted CSV field with embedded quotes doubled.
func QuoteCSV(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// CellShapes are field values that must survive a load and write unchanged.
var CellShapes = map[string]string{
	"crlf":             "line1\r\nline2",
	"lone cr":          "a\rb",
	"trailing cr":      "end\r",
	"lf":               "line1\nline2",
	"whitespace":       "  padded\t ",
	"non-ascii":        "Grüße, 日本語 ✓",
	"embedded quotes":  `say "hi", then leave`,
	"nul":              "a\x00b",
	"nul before r":     "a\x00rb",
	"empty":            "",
	"comma and spaces": " , ",
}
