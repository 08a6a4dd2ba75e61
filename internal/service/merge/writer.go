package merge

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"phish-merge/internal/domain"
)

// WriteCSV persists t to path as comma-delimited text with a header row
// and no index column. The table is written to a temporary file in the
// destination directory and renamed into place, so path never holds a
// partially written table. Failures are reported as *domain.WriteError.
func WriteCSV(path string, t *domain.Table[domain.MergedRow]) error {
	if err := writeAtomic(path, t); err != nil {
		return &domain.WriteError{Path: path, Err: err}
	}
	return nil
}

func writeAtomic(path string, t *domain.Table[domain.MergedRow]) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	w := csv.NewWriter(tmp)
	if err = w.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range t.Rows {
		if err = w.Write(row.Fields()); err != nil {
			return fmt.Errorf("write row %d: %w", row.Index, err)
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
