package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrDownloadNotFound = errors.New("download not found")

const downloadColumns = `id, guid, media_id, media_type, title, status, download_path,
	imported_path, error, size, seeders, indexer_id, created_at, updated_at`

// CreateDownload inserts a download row.
func (s *Store) CreateDownload(ctx context.Context, d *Download) error {
	if d.Status == "" {
		d.Status = DownloadQueued
	}
	var mediaType any
	if d.MediaType != "" {
		mediaType = string(d.MediaType)
	}
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO downloads (guid, media_id, media_type, title, status, download_path,
			size, seeders, indexer_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.GUID, nullableID(d.MediaID), mediaType, d.Title, string(d.Status),
		d.DownloadPath, d.Size, d.Seeders, nullableID(d.IndexerID))
	if err != nil {
		return fmt.Errorf("create download: %w", err)
	}
	d.ID, _ = res.LastInsertId()
	return nil
}

// GetDownload retrieves a download by id.
func (s *Store) GetDownload(ctx context.Context, id int64) (*Download, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+downloadColumns+` FROM downloads WHERE id = ?`, id)
	return scanDownload(row)
}

// ListDownloadsByStatus returns downloads in a given status, oldest first.
func (s *Store) ListDownloadsByStatus(ctx context.Context, status DownloadStatus) ([]*Download, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+downloadColumns+` FROM downloads WHERE status = ? ORDER BY created_at`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()

	var downloads []*Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

// ListActiveDownloadsForMedia returns non-terminal downloads linked to a
// media item. Used to avoid double-grabbing the same upgrade.
func (s *Store) ListActiveDownloadsForMedia(ctx context.Context, mediaType MediaType, mediaID int64) ([]*Download, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT `+downloadColumns+` FROM downloads
		WHERE media_type = ? AND media_id = ?
		  AND status IN ('queued', 'downloading', 'completed', 'importing')
		ORDER BY created_at`,
		string(mediaType), mediaID)
	if err != nil {
		return nil, fmt.Errorf("list media downloads: %w", err)
	}
	defer rows.Close()

	var downloads []*Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

// UpdateDownloadStatus transitions a download's status.
func (s *Store) UpdateDownloadStatus(ctx context.Context, id int64, status DownloadStatus) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE downloads SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("update download status: %w", err)
	}
	return nil
}

// SetDownloadImported marks a download imported with its final path.
func (s *Store) SetDownloadImported(ctx context.Context, id int64, importedPath string) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE downloads SET status = ?, imported_path = ?, error = '', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, string(DownloadImported), importedPath, id)
	if err != nil {
		return fmt.Errorf("set download imported: %w", err)
	}
	return nil
}

// SetDownloadFailed marks a download failed with the error recorded.
func (s *Store) SetDownloadFailed(ctx context.Context, id int64, failure error) error {
	msg := ""
	if failure != nil {
		msg = failure.Error()
	}
	_, err := s.conn.ExecContext(ctx, `
		UPDATE downloads SET status = ?, error = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(DownloadFailed), msg, id)
	if err != nil {
		return fmt.Errorf("set download failed: %w", err)
	}
	return nil
}

// SetDownloadPath records where the download client placed the payload.
func (s *Store) SetDownloadPath(ctx context.Context, id int64, path string) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE downloads SET download_path = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		path, id)
	if err != nil {
		return fmt.Errorf("set download path: %w", err)
	}
	return nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func scanDownload(row rowScanner) (*Download, error) {
	var d Download
	var mediaID, indexerID sql.NullInt64
	var mediaType sql.NullString
	var status string
	err := row.Scan(&d.ID, &d.GUID, &mediaID, &mediaType, &d.Title, &status,
		&d.DownloadPath, &d.ImportedPath, &d.Error, &d.Size, &d.Seeders, &indexerID,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDownloadNotFound
		}
		return nil, fmt.Errorf("scan download: %w", err)
	}
	d.Status = DownloadStatus(status)
	if mediaID.Valid {
		d.MediaID = &mediaID.Int64
	}
	if mediaType.Valid {
		d.MediaType = MediaType(mediaType.String)
	}
	if indexerID.Valid {
		d.IndexerID = &indexerID.Int64
	}
	return &d, nil
}
