package database

import (
	"context"
	"database/sql"
	"fmt"
)

// AddImportHistory appends one import audit row.
func (s *Store) AddImportHistory(ctx context.Context, h *ImportHistory) error {
	var mediaType any
	if h.MediaType != "" {
		mediaType = string(h.MediaType)
	}
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO import_history (download_id, source_path, dest_path, media_id, media_type, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullableID(h.DownloadID), h.SourcePath, h.DestPath, nullableID(h.MediaID),
		mediaType, h.Success, h.Error)
	if err != nil {
		return fmt.Errorf("add import history: %w", err)
	}
	h.ID, _ = res.LastInsertId()
	return nil
}

// ListImportHistory returns the most recent import rows, newest first.
func (s *Store) ListImportHistory(ctx context.Context, limit int) ([]*ImportHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, download_id, source_path, dest_path, media_id, media_type, success, error, created_at
		FROM import_history ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list import history: %w", err)
	}
	defer rows.Close()

	var history []*ImportHistory
	for rows.Next() {
		var h ImportHistory
		var downloadID, mediaID sql.NullInt64
		var mediaType sql.NullString
		if err := rows.Scan(&h.ID, &downloadID, &h.SourcePath, &h.DestPath, &mediaID,
			&mediaType, &h.Success, &h.Error, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan import history: %w", err)
		}
		if downloadID.Valid {
			h.DownloadID = &downloadID.Int64
		}
		if mediaID.Valid {
			h.MediaID = &mediaID.Int64
		}
		if mediaType.Valid {
			h.MediaType = MediaType(mediaType.String)
		}
		history = append(history, &h)
	}
	return history, rows.Err()
}
