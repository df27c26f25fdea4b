package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrQualityStatusNotFound = errors.New("quality status not found")

const qualityColumns = `id, media_id, media_type, current_resolution, current_source,
	current_hdr, current_audio, current_edition, current_score, cutoff_score,
	target_met, upgrade_available, search_status, search_attempts, next_search_at,
	upgrade_paused, updated_at`

// UpsertQualityStatus writes the quality stamp for a media item, preserving
// its search state on update. target_met is derived: currentScore >= cutoffScore.
func (s *Store) UpsertQualityStatus(ctx context.Context, q *MediaQualityStatus) error {
	q.TargetMet = q.CurrentScore >= q.CutoffScore
	if q.SearchStatus == "" {
		q.SearchStatus = SearchIdle
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO media_quality_status (media_id, media_type, current_resolution,
			current_source, current_hdr, current_audio, current_edition,
			current_score, cutoff_score, target_met, upgrade_available, search_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(media_type, media_id) DO UPDATE SET
			current_resolution = excluded.current_resolution,
			current_source = excluded.current_source,
			current_hdr = excluded.current_hdr,
			current_audio = excluded.current_audio,
			current_edition = excluded.current_edition,
			current_score = excluded.current_score,
			cutoff_score = excluded.cutoff_score,
			target_met = excluded.target_met,
			upgrade_available = excluded.upgrade_available,
			updated_at = CURRENT_TIMESTAMP`,
		q.MediaID, string(q.MediaType), q.CurrentResolution, q.CurrentSource,
		q.CurrentHDR, q.CurrentAudio, q.CurrentEdition, q.CurrentScore,
		q.CutoffScore, q.TargetMet, q.UpgradeAvailable, string(q.SearchStatus))
	if err != nil {
		return fmt.Errorf("upsert quality status: %w", err)
	}
	return nil
}

// GetQualityStatus retrieves the quality stamp for a media item.
func (s *Store) GetQualityStatus(ctx context.Context, mediaType MediaType, mediaID int64) (*MediaQualityStatus, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+qualityColumns+` FROM media_quality_status WHERE media_type = ? AND media_id = ?`,
		string(mediaType), mediaID)
	return scanQualityStatus(row)
}

// ListBelowCutoff returns every item with target_met = false, optionally
// filtered by media type, ordered by largest score gap first.
func (s *Store) ListBelowCutoff(ctx context.Context, mediaType MediaType, limit int) ([]*MediaQualityStatus, error) {
	query := `SELECT ` + qualityColumns + ` FROM media_quality_status WHERE target_met = 0`
	args := []any{}
	if mediaType != "" {
		query += ` AND media_type = ?`
		args = append(args, string(mediaType))
	}
	query += ` ORDER BY (cutoff_score - current_score) DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list below cutoff: %w", err)
	}
	defer rows.Close()

	var statuses []*MediaQualityStatus
	for rows.Next() {
		q, err := scanQualityStatus(rows)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, q)
	}
	return statuses, rows.Err()
}

// ListAllQualityStatuses returns every quality stamp, for rescans.
func (s *Store) ListAllQualityStatuses(ctx context.Context) ([]*MediaQualityStatus, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+qualityColumns+` FROM media_quality_status`)
	if err != nil {
		return nil, fmt.Errorf("list quality statuses: %w", err)
	}
	defer rows.Close()

	var statuses []*MediaQualityStatus
	for rows.Next() {
		q, err := scanQualityStatus(rows)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, q)
	}
	return statuses, rows.Err()
}

// UpdateSearchState transitions the upgrade-search state machine fields for a
// media item.
func (s *Store) UpdateSearchState(ctx context.Context, mediaType MediaType, mediaID int64,
	status SearchStatus, attempts int, nextSearchAt *time.Time) error {
	var next any
	if nextSearchAt != nil {
		next = *nextSearchAt
	}
	_, err := s.conn.ExecContext(ctx, `
		UPDATE media_quality_status
		SET search_status = ?, search_attempts = ?, next_search_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE media_type = ? AND media_id = ?`,
		string(status), attempts, next, string(mediaType), mediaID)
	if err != nil {
		return fmt.Errorf("update search state: %w", err)
	}
	return nil
}

// SetUpgradePaused flips the pause flag and moves search_status to or from
// paused.
func (s *Store) SetUpgradePaused(ctx context.Context, mediaType MediaType, mediaID int64, paused bool) error {
	status := SearchIdle
	if paused {
		status = SearchPaused
	}
	_, err := s.conn.ExecContext(ctx, `
		UPDATE media_quality_status
		SET upgrade_paused = ?, search_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE media_type = ? AND media_id = ?`,
		paused, string(status), string(mediaType), mediaID)
	if err != nil {
		return fmt.Errorf("set upgrade paused: %w", err)
	}
	return nil
}

// DeleteQualityStatus removes the stamp for a deleted media item.
func (s *Store) DeleteQualityStatus(ctx context.Context, mediaType MediaType, mediaID int64) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM media_quality_status WHERE media_type = ? AND media_id = ?`,
		string(mediaType), mediaID)
	if err != nil {
		return fmt.Errorf("delete quality status: %w", err)
	}
	return nil
}

func scanQualityStatus(row rowScanner) (*MediaQualityStatus, error) {
	var q MediaQualityStatus
	var mediaType, searchStatus string
	var next sql.NullTime
	err := row.Scan(&q.ID, &q.MediaID, &mediaType, &q.CurrentResolution, &q.CurrentSource,
		&q.CurrentHDR, &q.CurrentAudio, &q.CurrentEdition, &q.CurrentScore, &q.CutoffScore,
		&q.TargetMet, &q.UpgradeAvailable, &searchStatus, &q.SearchAttempts, &next,
		&q.UpgradePaused, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQualityStatusNotFound
		}
		return nil, fmt.Errorf("scan quality status: %w", err)
	}
	q.MediaType = MediaType(mediaType)
	q.SearchStatus = SearchStatus(searchStatus)
	if next.Valid {
		q.NextSearchAt = &next.Time
	}
	return &q, nil
}
