package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/windrose/windrose/internal/database"
	"github.com/windrose/windrose/internal/parser"
)

func (s *Service) cleanupBooks(ctx context.Context, lib *database.Library) error {
	books, err := s.store.ListBooksByLibrary(ctx, lib.ID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, book := range books {
		if fileExists(book.Path) {
			if book.MissingSince != nil {
				if err := s.store.ClearBookMissing(ctx, book.ID); err != nil {
					s.logger.Warn().Err(err).Int64("bookId", book.ID).Msg("failed to clear missing flag")
				}
			}
			continue
		}
		if err := s.store.MarkBookMissing(ctx, book.ID, now); err != nil {
			s.logger.Warn().Err(err).Int64("bookId", book.ID).Msg("failed to mark book missing")
		}
	}

	deleted, err := s.store.DeleteMissingBooks(ctx, s.grace)
	if err != nil {
		return err
	}
	if len(deleted) > 0 {
		s.logger.Info().Int("count", len(deleted)).Msg("deleted books missing past grace period")
	}
	return nil
}

// scanBookFile catalogs one book. The canonical layout is Author/Title.ext;
// "Author - Title.ext" directly in the root also resolves.
func (s *Service) scanBookFile(ctx context.Context, lib *database.Library, path string, run *database.ScanRun) error {
	_, err := s.store.GetBookByPath(ctx, path)
	if err == nil {
		run.Skipped++
		return nil
	}
	if !errors.Is(err, database.ErrBookNotFound) {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	author := ""
	title := base

	dir := filepath.Dir(path)
	if filepath.Clean(dir) != filepath.Clean(lib.Path) {
		author = filepath.Base(dir)
	} else if before, after, found := strings.Cut(base, " - "); found {
		author = strings.TrimSpace(before)
		title = strings.TrimSpace(after)
	}

	year := 0
	if parsed := parser.Parse(title); parsed.Title != "" {
		title = parsed.Title
		year = parsed.Year
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	book := &database.Book{
		LibraryID: lib.ID,
		Title:     title,
		Author:    author,
		Year:      year,
		Path:      path,
		Size:      size,
	}
	if err := s.store.CreateBook(ctx, book); err != nil {
		return err
	}
	run.Added++
	return nil
}
