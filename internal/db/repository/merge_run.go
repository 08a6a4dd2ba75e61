package repository

import (
	"context"
	"database/sql"
	"fmt"

	"phish-merge/internal/domain"
)

// Compile-time check.
var _ domain.RunRepository = (*MergeRunRepo)(nil)

const mergeRunColumns = `id, trigger_type, status, dataset1_path, dataset2_path, output_path,
	source1_rows, source2_rows, total_rows, output_sha256, error_kind, error_message,
	started_at, finished_at`

// MergeRunRepo implements RunRepository using SQLite.
type MergeRunRepo struct {
	db *sql.DB
}

// NewMergeRunRepo creates a new MergeRunRepo.
func NewMergeRunRepo(db *sql.DB) *MergeRunRepo {
	return &MergeRunRepo{db: db}
}

// Create inserts a finished merge run. A missing ID is generated.
func (r *MergeRunRepo) Create(ctx context.Context, run *domain.MergeRun) error {
	if run.ID == "" {
		run.ID = domain.NewID()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO merge_runs (`+mergeRunColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.TriggerType,
		run.Status,
		run.Dataset1Path,
		run.Dataset2Path,
		run.OutputPath,
		run.Source1Rows,
		run.Source2Rows,
		run.TotalRows,
		nullStringPtr(run.OutputSHA256),
		nullStringPtr(run.ErrorKind),
		nullStringPtr(run.ErrorMessage),
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
	)
	if err != nil {
		return mapDBError(err)
	}
	return nil
}

// Get returns a merge run by its ID.
func (r *MergeRunRepo) Get(ctx context.Context, id string) (*domain.MergeRun, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+mergeRunColumns+` FROM merge_runs WHERE id = ?`, id)
	run, err := scanMergeRun(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return run, nil
}

// List returns the most recent runs, newest first. limit <= 0 returns all.
func (r *MergeRunRepo) List(ctx context.Context, limit int) ([]domain.MergeRun, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mergeRunColumns+` FROM merge_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list merge runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var runs []domain.MergeRun
	for rows.Next() {
		run, err := scanMergeRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMergeRun(s rowScanner) (*domain.MergeRun, error) {
	var (
		run                   domain.MergeRun
		sha, errKind, errMsg  sql.NullString
		startedAt, finishedAt string
	)
	if err := s.Scan(
		&run.ID,
		&run.TriggerType,
		&run.Status,
		&run.Dataset1Path,
		&run.Dataset2Path,
		&run.OutputPath,
		&run.Source1Rows,
		&run.Source2Rows,
		&run.TotalRows,
		&sha,
		&errKind,
		&errMsg,
		&startedAt,
		&finishedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, err
	}
	run.OutputSHA256 = ptrFromNullString(sha)
	run.ErrorKind = ptrFromNullString(errKind)
	run.ErrorMessage = ptrFromNullString(errMsg)
	return &run, nil
}
