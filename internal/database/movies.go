package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrMovieNotFound = errors.New("movie not found")

const movieColumns = `id, library_id, title, year, path, size, missing_since,
	match_confidence, needs_match_review, overview, genres, poster_url, created_at, updated_at`

// CreateMovie inserts a movie row. Path uniqueness is enforced by the schema.
func (s *Store) CreateMovie(ctx context.Context, m *Movie) error {
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO movies (library_id, title, year, path, size, match_confidence, needs_match_review)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.LibraryID, m.Title, m.Year, m.Path, m.Size, m.MatchConfidence, m.NeedsMatchReview)
	if err != nil {
		return fmt.Errorf("create movie: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

// GetMovie retrieves a movie by id.
func (s *Store) GetMovie(ctx context.Context, id int64) (*Movie, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE id = ?`, id)
	return scanMovie(row)
}

// GetMovieByPath retrieves a movie by its exact path. This is the scanner's
// hot lookup; the path column is indexed.
func (s *Store) GetMovieByPath(ctx context.Context, path string) (*Movie, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE path = ?`, path)
	return scanMovie(row)
}

// ListMoviesByLibrary returns every movie in a library.
func (s *Store) ListMoviesByLibrary(ctx context.Context, libraryID int64) ([]*Movie, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE library_id = ? ORDER BY title, year`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	defer rows.Close()

	var movies []*Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

// UpdateMoviePath moves a movie to a new path, typically after organizing.
func (s *Store) UpdateMoviePath(ctx context.Context, id int64, path string) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE movies SET path = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, path, id)
	if err != nil {
		return fmt.Errorf("update movie path: %w", err)
	}
	return nil
}

// UpdateMovieMetadata stores enrichment fields fetched from a metadata
// provider.
func (s *Store) UpdateMovieMetadata(ctx context.Context, id int64, overview, genres, posterURL string) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE movies SET overview = ?, genres = ?, poster_url = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, overview, genres, posterURL, id)
	if err != nil {
		return fmt.Errorf("update movie metadata: %w", err)
	}
	return nil
}

// MarkMovieMissing stamps missing_since if not already set.
func (s *Store) MarkMovieMissing(ctx context.Context, id int64, at time.Time) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE movies SET missing_since = ? WHERE id = ? AND missing_since IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("mark movie missing: %w", err)
	}
	return nil
}

// ClearMovieMissing clears missing_since for a reappeared file.
func (s *Store) ClearMovieMissing(ctx context.Context, id int64) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE movies SET missing_since = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear movie missing: %w", err)
	}
	return nil
}

// DeleteMissingMovies removes movies missing longer than grace, along with
// their quality status rows. Returns the deleted ids.
func (s *Store) DeleteMissingMovies(ctx context.Context, grace time.Duration) ([]int64, error) {
	cutoff := time.Now().Add(-grace)

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id FROM movies WHERE missing_since IS NOT NULL AND missing_since < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find missing movies: %w", err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, err := s.conn.ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("delete missing movie %d: %w", id, err)
		}
		if err := s.DeleteQualityStatus(ctx, MediaTypeMovie, id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanMovie(row rowScanner) (*Movie, error) {
	var m Movie
	var missing sql.NullTime
	err := row.Scan(&m.ID, &m.LibraryID, &m.Title, &m.Year, &m.Path, &m.Size, &missing,
		&m.MatchConfidence, &m.NeedsMatchReview, &m.Overview, &m.Genres, &m.PosterURL,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, fmt.Errorf("scan movie: %w", err)
	}
	if missing.Valid {
		m.MissingSince = &missing.Time
	}
	return &m, nil
}
