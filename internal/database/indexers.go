package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrIndexerNotFound = errors.New("indexer not found")

const indexerColumns = `id, name, type, url, api_key, categories, priority, enabled`

// CreateIndexer registers a new indexer.
func (s *Store) CreateIndexer(ctx context.Context, idx *Indexer) error {
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO indexers (name, type, url, api_key, categories, priority, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		idx.Name, string(idx.Type), idx.URL, idx.APIKey, idx.Categories, idx.Priority, idx.Enabled)
	if err != nil {
		return fmt.Errorf("create indexer: %w", err)
	}
	idx.ID, _ = res.LastInsertId()
	return nil
}

// GetIndexer retrieves an indexer by id.
func (s *Store) GetIndexer(ctx context.Context, id int64) (*Indexer, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+indexerColumns+` FROM indexers WHERE id = ?`, id)
	return scanIndexer(row)
}

// ListIndexers returns every configured indexer.
func (s *Store) ListIndexers(ctx context.Context) ([]*Indexer, error) {
	return s.listIndexers(ctx, `SELECT `+indexerColumns+` FROM indexers ORDER BY priority, id`)
}

// ListEnabledIndexers returns only enabled indexers, in priority order.
func (s *Store) ListEnabledIndexers(ctx context.Context) ([]*Indexer, error) {
	return s.listIndexers(ctx,
		`SELECT `+indexerColumns+` FROM indexers WHERE enabled = 1 ORDER BY priority, id`)
}

func (s *Store) listIndexers(ctx context.Context, query string) ([]*Indexer, error) {
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list indexers: %w", err)
	}
	defer rows.Close()

	var indexers []*Indexer
	for rows.Next() {
		idx, err := scanIndexer(rows)
		if err != nil {
			return nil, err
		}
		indexers = append(indexers, idx)
	}
	return indexers, rows.Err()
}

// UpdateIndexer rewrites an indexer's configuration.
func (s *Store) UpdateIndexer(ctx context.Context, idx *Indexer) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE indexers SET name = ?, type = ?, url = ?, api_key = ?, categories = ?,
			priority = ?, enabled = ?
		WHERE id = ?`,
		idx.Name, string(idx.Type), idx.URL, idx.APIKey, idx.Categories,
		idx.Priority, idx.Enabled, idx.ID)
	if err != nil {
		return fmt.Errorf("update indexer: %w", err)
	}
	return nil
}

// DeleteIndexer removes an indexer.
func (s *Store) DeleteIndexer(ctx context.Context, id int64) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM indexers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete indexer: %w", err)
	}
	return nil
}

func scanIndexer(row rowScanner) (*Indexer, error) {
	var idx Indexer
	var typ string
	err := row.Scan(&idx.ID, &idx.Name, &typ, &idx.URL, &idx.APIKey,
		&idx.Categories, &idx.Priority, &idx.Enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIndexerNotFound
		}
		return nil, fmt.Errorf("scan indexer: %w", err)
	}
	idx.Type = IndexerType(typ)
	return &idx, nil
}
