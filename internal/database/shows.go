package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	ErrShowNotFound    = errors.New("show not found")
	ErrEpisodeNotFound = errors.New("episode not found")
	ErrEpisodeOverlap  = errors.New("episode range overlaps an existing episode")
)

const showColumns = `id, library_id, title, year, path, match_confidence,
	needs_match_review, overview, genres, poster_url, created_at`

const episodeColumns = `id, season_id, episode_number, episode_end, absolute_number,
	title, path, size, missing_since, match_confidence, needs_match_review, air_date, created_at`

// CreateShow inserts a show row.
func (s *Store) CreateShow(ctx context.Context, sh *Show) error {
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO shows (library_id, title, year, path, match_confidence, needs_match_review)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sh.LibraryID, sh.Title, sh.Year, sh.Path, sh.MatchConfidence, sh.NeedsMatchReview)
	if err != nil {
		return fmt.Errorf("create show: %w", err)
	}
	sh.ID, _ = res.LastInsertId()
	return nil
}

// GetShow retrieves a show by id.
func (s *Store) GetShow(ctx context.Context, id int64) (*Show, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id)
	return scanShow(row)
}

// GetShowByPath retrieves a show by its folder path.
func (s *Store) GetShowByPath(ctx context.Context, path string) (*Show, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE path = ?`, path)
	return scanShow(row)
}

// ListShowsByLibrary returns every show in a library.
func (s *Store) ListShowsByLibrary(ctx context.Context, libraryID int64) ([]*Show, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+showColumns+` FROM shows WHERE library_id = ? ORDER BY title`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	defer rows.Close()

	var shows []*Show
	for rows.Next() {
		sh, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		shows = append(shows, sh)
	}
	return shows, rows.Err()
}

// GetOrCreateSeason returns the season row for (showID, number), creating it
// when absent.
func (s *Store) GetOrCreateSeason(ctx context.Context, showID int64, number int) (*Season, error) {
	var season Season
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, show_id, season_number FROM seasons WHERE show_id = ? AND season_number = ?`,
		showID, number).Scan(&season.ID, &season.ShowID, &season.SeasonNumber)
	if err == nil {
		return &season, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get season: %w", err)
	}

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO seasons (show_id, season_number) VALUES (?, ?)`, showID, number)
	if err != nil {
		return nil, fmt.Errorf("create season: %w", err)
	}
	season.ID, _ = res.LastInsertId()
	season.ShowID = showID
	season.SeasonNumber = number
	return &season, nil
}

// CreateEpisode inserts an episode, rejecting multi-episode ranges that
// overlap an existing episode in the same season.
func (s *Store) CreateEpisode(ctx context.Context, e *Episode) error {
	end := e.EpisodeEnd
	if end == 0 {
		end = e.EpisodeNumber
	}
	var overlapping int
	err := s.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM episodes
		WHERE season_id = ?
		  AND episode_number <= ?
		  AND COALESCE(episode_end, episode_number) >= ?`,
		e.SeasonID, end, e.EpisodeNumber).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("check episode overlap: %w", err)
	}
	if overlapping > 0 {
		return ErrEpisodeOverlap
	}

	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO episodes (season_id, episode_number, episode_end, absolute_number,
			title, path, size, match_confidence, needs_match_review, air_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SeasonID, e.EpisodeNumber, nullableInt(e.EpisodeEnd), nullableInt(e.AbsoluteNumber),
		e.Title, e.Path, e.Size, e.MatchConfidence, e.NeedsMatchReview, e.AirDate)
	if err != nil {
		return fmt.Errorf("create episode: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// GetEpisode retrieves an episode by id.
func (s *Store) GetEpisode(ctx context.Context, id int64) (*Episode, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	return scanEpisode(row)
}

// GetEpisodeByPath retrieves an episode by its exact path.
func (s *Store) GetEpisodeByPath(ctx context.Context, path string) (*Episode, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE path = ?`, path)
	return scanEpisode(row)
}

// ListEpisodesBySeason returns a season's episodes in order.
func (s *Store) ListEpisodesBySeason(ctx context.Context, seasonID int64) ([]*Episode, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE season_id = ? ORDER BY episode_number`, seasonID)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var eps []*Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		eps = append(eps, e)
	}
	return eps, rows.Err()
}

// ListEpisodesByShow returns every episode of a show, joined through seasons.
func (s *Store) ListEpisodesByShow(ctx context.Context, showID int64) ([]*Episode, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT e.id, e.season_id, e.episode_number, e.episode_end, e.absolute_number,
			e.title, e.path, e.size, e.missing_since, e.match_confidence,
			e.needs_match_review, e.air_date, e.created_at
		FROM episodes e
		JOIN seasons se ON se.id = e.season_id
		WHERE se.show_id = ?
		ORDER BY se.season_number, e.episode_number`, showID)
	if err != nil {
		return nil, fmt.Errorf("list show episodes: %w", err)
	}
	defer rows.Close()

	var eps []*Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		eps = append(eps, e)
	}
	return eps, rows.Err()
}

// UpdateEpisodePath moves an episode to a new path.
func (s *Store) UpdateEpisodePath(ctx context.Context, id int64, path string) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE episodes SET path = ? WHERE id = ?`, path, id)
	if err != nil {
		return fmt.Errorf("update episode path: %w", err)
	}
	return nil
}

// MarkEpisodeMissing stamps missing_since if not already set.
func (s *Store) MarkEpisodeMissing(ctx context.Context, id int64, at time.Time) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE episodes SET missing_since = ? WHERE id = ? AND missing_since IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("mark episode missing: %w", err)
	}
	return nil
}

// ClearEpisodeMissing clears missing_since for a reappeared file.
func (s *Store) ClearEpisodeMissing(ctx context.Context, id int64) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE episodes SET missing_since = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear episode missing: %w", err)
	}
	return nil
}

// DeleteMissingEpisodes removes episodes missing longer than grace, plus
// their quality status rows. Returns the deleted ids.
func (s *Store) DeleteMissingEpisodes(ctx context.Context, grace time.Duration) ([]int64, error) {
	cutoff := time.Now().Add(-grace)

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id FROM episodes WHERE missing_since IS NOT NULL AND missing_since < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find missing episodes: %w", err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, err := s.conn.ExecContext(ctx, `DELETE FROM episodes WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("delete missing episode %d: %w", id, err)
		}
		if err := s.DeleteQualityStatus(ctx, MediaTypeEpisode, id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// GetShowForEpisode resolves the show an episode belongs to.
func (s *Store) GetShowForEpisode(ctx context.Context, episodeID int64) (*Show, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT sh.id, sh.library_id, sh.title, sh.year, sh.path, sh.match_confidence,
			sh.needs_match_review, sh.overview, sh.genres, sh.poster_url, sh.created_at
		FROM shows sh
		JOIN seasons se ON se.show_id = sh.id
		JOIN episodes e ON e.season_id = se.id
		WHERE e.id = ?`, episodeID)
	return scanShow(row)
}

// GetSeason retrieves a season by id.
func (s *Store) GetSeason(ctx context.Context, id int64) (*Season, error) {
	var season Season
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, show_id, season_number FROM seasons WHERE id = ?`, id).
		Scan(&season.ID, &season.ShowID, &season.SeasonNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get season: %w", err)
	}
	return &season, nil
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func scanShow(row rowScanner) (*Show, error) {
	var sh Show
	err := row.Scan(&sh.ID, &sh.LibraryID, &sh.Title, &sh.Year, &sh.Path, &sh.MatchConfidence,
		&sh.NeedsMatchReview, &sh.Overview, &sh.Genres, &sh.PosterURL, &sh.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowNotFound
		}
		return nil, fmt.Errorf("scan show: %w", err)
	}
	return &sh, nil
}

func scanEpisode(row rowScanner) (*Episode, error) {
	var e Episode
	var end, abs sql.NullInt64
	var missing sql.NullTime
	err := row.Scan(&e.ID, &e.SeasonID, &e.EpisodeNumber, &end, &abs,
		&e.Title, &e.Path, &e.Size, &missing, &e.MatchConfidence,
		&e.NeedsMatchReview, &e.AirDate, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEpisodeNotFound
		}
		return nil, fmt.Errorf("scan episode: %w", err)
	}
	if end.Valid {
		e.EpisodeEnd = int(end.Int64)
	}
	if abs.Valid {
		e.AbsoluteNumber = int(abs.Int64)
	}
	if missing.Valid {
		e.MissingSince = &missing.Time
	}
	return &e, nil
}
