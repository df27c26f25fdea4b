package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrScanRunNotFound = errors.New("scan run not found")

// RecordScanRun appends the outcome of one library scan.
func (s *Store) RecordScanRun(ctx context.Context, run *ScanRun) error {
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO scan_runs (library_id, added, skipped, errors)
		VALUES (?, ?, ?, ?)`,
		run.LibraryID, run.Added, run.Skipped, run.Errors)
	if err != nil {
		return fmt.Errorf("record scan run: %w", err)
	}
	run.ID, _ = res.LastInsertId()
	return nil
}

// GetLastScanRun returns the most recent scan run for a library.
func (s *Store) GetLastScanRun(ctx context.Context, libraryID int64) (*ScanRun, error) {
	var run ScanRun
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, library_id, added, skipped, errors, scanned_at
		FROM scan_runs WHERE library_id = ? ORDER BY id DESC LIMIT 1`, libraryID).
		Scan(&run.ID, &run.LibraryID, &run.Added, &run.Skipped, &run.Errors, &run.ScannedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScanRunNotFound
		}
		return nil, fmt.Errorf("get last scan run: %w", err)
	}
	return &run, nil
}
