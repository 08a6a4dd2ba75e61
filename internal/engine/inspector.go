// Package engine runs read-only DuckDB queries over the merged CSV output.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"phish-merge/internal/domain"
)

// Compile-time check.
var _ domain.OutputInspector = (*CSVInspector)(nil)

// CSVInspector answers questions about a CSV file by scanning it with
// DuckDB's read_csv. Every column is read as VARCHAR so values compare
// exactly as written.
type CSVInspector struct {
	db *sql.DB
}

// NewCSVInspector wraps an open DuckDB handle.
func NewCSVInspector(db *sql.DB) *CSVInspector {
	return &CSVInspector{db: db}
}

// CountRows returns the number of data rows in the file.
func (i *CSVInspector) CountRows(ctx context.Context, path string) (int, error) {
	var n int
	q := "SELECT count(*) FROM " + readCSV(path)
	if err := i.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", path, err)
	}
	return n, nil
}

// Columns returns the header of the file in order.
func (i *CSVInspector) Columns(ctx context.Context, path string) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, "SELECT * FROM "+readCSV(path)+" LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	return cols, rows.Err()
}

// Distribution counts the non-empty values of column, most frequent first.
// Equal counts are ordered by value. Percentages are of all rows.
func (i *CSVInspector) Distribution(ctx context.Context, path, column string) (*domain.Distribution, error) {
	cols, err := i.Columns(ctx, path)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(cols, column) {
		return nil, domain.ErrMissingColumn("inspect", column, path)
	}

	total, err := i.CountRows(ctx, path)
	if err != nil {
		return nil, err
	}

	ident := quoteIdent(column)
	q := fmt.Sprintf(
		"SELECT %[1]s, count(*) AS n FROM %[2]s WHERE %[1]s IS NOT NULL AND %[1]s <> '' GROUP BY %[1]s ORDER BY n DESC, %[1]s",
		ident, readCSV(path),
	)
	rows, err := i.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("distribution of %s in %s: %w", column, path, err)
	}
	defer rows.Close() //nolint:errcheck

	dist := &domain.Distribution{Column: column}
	for rows.Next() {
		var vc domain.ValueCount
		if err := rows.Scan(&vc.Value, &vc.Count); err != nil {
			return nil, fmt.Errorf("scan distribution row: %w", err)
		}
		if total > 0 {
			vc.Percent = float64(vc.Count) * 100 / float64(total)
		}
		dist.Values = append(dist.Values, vc)
	}
	return dist, rows.Err()
}

func readCSV(path string) string {
	return fmt.Sprintf("read_csv(%s, header = true, all_varchar = true)", quoteLiteral(path))
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
