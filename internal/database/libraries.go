package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrLibraryNotFound = errors.New("library not found")
	ErrNotFound        = errors.New("not found")
)

// CreateLibrary registers a new library root.
func (s *Store) CreateLibrary(ctx context.Context, lib *Library) error {
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO libraries (name, path, type) VALUES (?, ?, ?)`,
		lib.Name, lib.Path, string(lib.Type))
	if err != nil {
		return fmt.Errorf("create library: %w", err)
	}
	lib.ID, _ = res.LastInsertId()
	return nil
}

// GetLibrary retrieves a library by id.
func (s *Store) GetLibrary(ctx context.Context, id int64) (*Library, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, name, path, type, created_at FROM libraries WHERE id = ?`, id)
	return scanLibrary(row)
}

// GetLibraryByType returns the first library of the given type, or
// ErrLibraryNotFound when none is configured.
func (s *Store) GetLibraryByType(ctx context.Context, typ LibraryType) (*Library, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, name, path, type, created_at FROM libraries WHERE type = ? ORDER BY id LIMIT 1`,
		string(typ))
	return scanLibrary(row)
}

// ListLibraries returns all configured libraries.
func (s *Store) ListLibraries(ctx context.Context) ([]*Library, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name, path, type, created_at FROM libraries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	defer rows.Close()

	var libs []*Library
	for rows.Next() {
		lib, err := scanLibrary(rows)
		if err != nil {
			return nil, err
		}
		libs = append(libs, lib)
	}
	return libs, rows.Err()
}

// DeleteLibrary removes a library; catalog rows under it cascade.
func (s *Store) DeleteLibrary(ctx context.Context, id int64) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM libraries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete library: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLibrary(row rowScanner) (*Library, error) {
	var lib Library
	var typ string
	err := row.Scan(&lib.ID, &lib.Name, &lib.Path, &typ, &lib.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLibraryNotFound
		}
		return nil, fmt.Errorf("scan library: %w", err)
	}
	lib.Type = LibraryType(typ)
	return &lib, nil
}
