package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrBookNotFound = errors.New("book not found")

// CreateBook inserts a book row.
func (s *Store) CreateBook(ctx context.Context, b *Book) error {
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO books (library_id, title, author, year, path, size) VALUES (?, ?, ?, ?, ?, ?)`,
		b.LibraryID, b.Title, b.Author, b.Year, b.Path, b.Size)
	if err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	b.ID, _ = res.LastInsertId()
	return nil
}

// GetBookByPath retrieves a book by its exact path.
func (s *Store) GetBookByPath(ctx context.Context, path string) (*Book, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, library_id, title, author, year, path, size, missing_since
		FROM books WHERE path = ?`, path)
	return scanBook(row)
}

// ListBooksByLibrary returns every book in a library.
func (s *Store) ListBooksByLibrary(ctx context.Context, libraryID int64) ([]*Book, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, library_id, title, author, year, path, size, missing_since
		FROM books WHERE library_id = ? ORDER BY title`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// MarkBookMissing stamps missing_since if not already set.
func (s *Store) MarkBookMissing(ctx context.Context, id int64, at time.Time) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE books SET missing_since = ? WHERE id = ? AND missing_since IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("mark book missing: %w", err)
	}
	return nil
}

// ClearBookMissing clears missing_since for a reappeared file.
func (s *Store) ClearBookMissing(ctx context.Context, id int64) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE books SET missing_since = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear book missing: %w", err)
	}
	return nil
}

// DeleteMissingBooks removes books missing longer than grace.
func (s *Store) DeleteMissingBooks(ctx context.Context, grace time.Duration) ([]int64, error) {
	cutoff := time.Now().Add(-grace)
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id FROM books WHERE missing_since IS NOT NULL AND missing_since < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find missing books: %w", err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, err := s.conn.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("delete missing book %d: %w", id, err)
		}
	}
	return ids, nil
}

func scanBook(row rowScanner) (*Book, error) {
	var b Book
	var missing sql.NullTime
	err := row.Scan(&b.ID, &b.LibraryID, &b.Title, &b.Author, &b.Year, &b.Path, &b.Size, &missing)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("scan book: %w", err)
	}
	if missing.Valid {
		b.MissingSince = &missing.Time
	}
	return &b, nil
}
