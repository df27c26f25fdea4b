package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrTrackNotFound = errors.New("track not found")

// GetOrCreateArtist returns the artist at path, creating it when absent.
func (s *Store) GetOrCreateArtist(ctx context.Context, libraryID int64, name, path string) (*Artist, error) {
	var a Artist
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, library_id, name, path FROM artists WHERE path = ?`, path).
		Scan(&a.ID, &a.LibraryID, &a.Name, &a.Path)
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get artist: %w", err)
	}

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO artists (library_id, name, path) VALUES (?, ?, ?)`, libraryID, name, path)
	if err != nil {
		return nil, fmt.Errorf("create artist: %w", err)
	}
	a.ID, _ = res.LastInsertId()
	a.LibraryID = libraryID
	a.Name = name
	a.Path = path
	return &a, nil
}

// GetOrCreateAlbum returns the album at path, creating it when absent.
func (s *Store) GetOrCreateAlbum(ctx context.Context, artistID int64, title string, year int, path string) (*Album, error) {
	var al Album
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, artist_id, title, year, path FROM albums WHERE path = ?`, path).
		Scan(&al.ID, &al.ArtistID, &al.Title, &al.Year, &al.Path)
	if err == nil {
		return &al, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get album: %w", err)
	}

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO albums (artist_id, title, year, path) VALUES (?, ?, ?, ?)`,
		artistID, title, year, path)
	if err != nil {
		return nil, fmt.Errorf("create album: %w", err)
	}
	al.ID, _ = res.LastInsertId()
	al.ArtistID = artistID
	al.Title = title
	al.Year = year
	al.Path = path
	return &al, nil
}

// CreateTrack inserts a track row.
func (s *Store) CreateTrack(ctx context.Context, t *Track) error {
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO tracks (album_id, track_number, title, path, size) VALUES (?, ?, ?, ?, ?)`,
		t.AlbumID, t.TrackNumber, t.Title, t.Path, t.Size)
	if err != nil {
		return fmt.Errorf("create track: %w", err)
	}
	t.ID, _ = res.LastInsertId()
	return nil
}

// GetTrackByPath retrieves a track by its exact path.
func (s *Store) GetTrackByPath(ctx context.Context, path string) (*Track, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, album_id, track_number, title, path, size, missing_since
		FROM tracks WHERE path = ?`, path)
	return scanTrack(row)
}

// ListTracksByLibrary returns every track under a library, joined through
// albums and artists.
func (s *Store) ListTracksByLibrary(ctx context.Context, libraryID int64) ([]*Track, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT t.id, t.album_id, t.track_number, t.title, t.path, t.size, t.missing_since
		FROM tracks t
		JOIN albums al ON al.id = t.album_id
		JOIN artists ar ON ar.id = al.artist_id
		WHERE ar.library_id = ?
		ORDER BY t.path`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// MarkTrackMissing stamps missing_since if not already set.
func (s *Store) MarkTrackMissing(ctx context.Context, id int64, at time.Time) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE tracks SET missing_since = ? WHERE id = ? AND missing_since IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("mark track missing: %w", err)
	}
	return nil
}

// ClearTrackMissing clears missing_since for a reappeared file.
func (s *Store) ClearTrackMissing(ctx context.Context, id int64) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE tracks SET missing_since = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear track missing: %w", err)
	}
	return nil
}

// DeleteMissingTracks removes tracks missing longer than grace.
func (s *Store) DeleteMissingTracks(ctx context.Context, grace time.Duration) ([]int64, error) {
	cutoff := time.Now().Add(-grace)
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id FROM tracks WHERE missing_since IS NOT NULL AND missing_since < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find missing tracks: %w", err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, err := s.conn.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("delete missing track %d: %w", id, err)
		}
	}
	return ids, nil
}

func scanTrack(row rowScanner) (*Track, error) {
	var t Track
	var missing sql.NullTime
	err := row.Scan(&t.ID, &t.AlbumID, &t.TrackNumber, &t.Title, &t.Path, &t.Size, &missing)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTrackNotFound
		}
		return nil, fmt.Errorf("scan track: %w", err)
	}
	if missing.Valid {
		t.MissingSince = &missing.Time
	}
	return &t, nil
}
