package merge

import "phish-merge/internal/domain"

// Normalize selects the canonical columns of src by name, in canonical
// order, and tags every row with provenance. src is left untouched.
func Normalize(src *domain.SourceTable, provenance string) (*domain.Table[domain.TaggedRecord], error) {
	canonical := domain.CanonicalColumns()
	positions := make([]int, len(canonical))
	for i, col := range canonical {
		idx := src.ColumnIndex(col)
		if idx < 0 {
			return nil, domain.ErrMissingColumn(domain.StageNormalize, col, src.Path)
		}
		positions[i] = idx
	}

	rows := make([]domain.TaggedRecord, len(src.Rows))
	fields := make([]string, len(canonical))
	for i, raw := range src.Rows {
		for j, pos := range positions {
			fields[j] = raw[pos]
		}
		rows[i] = domain.TaggedRecord{
			Record:        domain.RecordFromFields(fields),
			SourceDataset: provenance,
		}
	}

	return &domain.Table[domain.TaggedRecord]{
		Columns: domain.MergedColumns(),
		Rows:    rows,
	}, nil
}
