package database

import (
	"context"
	"fmt"
	"time"
)

// ReplaceChapters swaps the chapter set for a media item in one transaction.
func (s *Store) ReplaceChapters(ctx context.Context, mediaType MediaType, mediaID int64, chapters []Chapter) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chapter replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chapters WHERE media_type = ? AND media_id = ?`,
		string(mediaType), mediaID); err != nil {
		return fmt.Errorf("clear chapters: %w", err)
	}

	for _, ch := range chapters {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chapters (media_type, media_id, chapter_index, title, start_ms, end_ms)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(mediaType), mediaID, ch.ChapterIndex, ch.Title,
			ch.Start.Milliseconds(), ch.End.Milliseconds()); err != nil {
			return fmt.Errorf("insert chapter: %w", err)
		}
	}

	return tx.Commit()
}

// ListChapters returns the chapters of a media item in order.
func (s *Store) ListChapters(ctx context.Context, mediaType MediaType, mediaID int64) ([]Chapter, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, media_type, media_id, chapter_index, title, start_ms, end_ms
		FROM chapters WHERE media_type = ? AND media_id = ? ORDER BY chapter_index`,
		string(mediaType), mediaID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	var chapters []Chapter
	for rows.Next() {
		var ch Chapter
		var typ string
		var startMs, endMs int64
		if err := rows.Scan(&ch.ID, &typ, &ch.MediaID, &ch.ChapterIndex, &ch.Title, &startMs, &endMs); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		ch.MediaType = MediaType(typ)
		ch.Start = time.Duration(startMs) * time.Millisecond
		ch.End = time.Duration(endMs) * time.Millisecond
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}
