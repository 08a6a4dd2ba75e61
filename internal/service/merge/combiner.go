package merge

import (
	"slices"

	"phish-merge/internal/domain"
)

// Combine concatenates first and second into a merged table with a fresh
// zero-based index. Both inputs must carry the same columns in the same order.
func Combine(first, second *domain.Table[domain.TaggedRecord]) (*domain.Table[domain.MergedRow], error) {
	if !slices.Equal(first.Columns, second.Columns) {
		return nil, domain.ErrSchemaMismatch(domain.StageCombine,
			"column mismatch between tables: %v vs %v", first.Columns, second.Columns)
	}

	rows := make([]domain.MergedRow, 0, first.Len()+second.Len())
	for _, t := range []*domain.Table[domain.TaggedRecord]{first, second} {
		for _, r := range t.Rows {
			rows = append(rows, domain.MergedRow{Index: len(rows), TaggedRecord: r})
		}
	}

	return &domain.Table[domain.MergedRow]{
		Columns: slices.Clone(first.Columns),
		Rows:    rows,
	}, nil
}
