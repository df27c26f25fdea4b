package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/windrose/windrose/internal/database"
	"github.com/windrose/windrose/internal/fileops"
	"github.com/windrose/windrose/internal/parser"
	"github.com/windrose/windrose/internal/pathutil"
)

// matchReviewThreshold flags rows whose identification needs a human (or
// the metadata service) to confirm.
const matchReviewThreshold = 0.6

func (s *Service) cleanupMovies(ctx context.Context, lib *database.Library) error {
	movies, err := s.store.ListMoviesByLibrary(ctx, lib.ID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, movie := range movies {
		if fileExists(movie.Path) {
			if movie.MissingSince != nil {
				if err := s.store.ClearMovieMissing(ctx, movie.ID); err != nil {
					s.logger.Warn().Err(err).Int64("movieId", movie.ID).Msg("failed to clear missing flag")
				}
			}
			continue
		}
		if err := s.store.MarkMovieMissing(ctx, movie.ID, now); err != nil {
			s.logger.Warn().Err(err).Int64("movieId", movie.ID).Msg("failed to mark movie missing")
		}
	}

	deleted, err := s.store.DeleteMissingMovies(ctx, s.grace)
	if err != nil {
		return err
	}
	if len(deleted) > 0 {
		s.logger.Info().Int("count", len(deleted)).Msg("deleted movies missing past grace period")
	}
	return nil
}

func (s *Service) scanMovieFile(ctx context.Context, lib *database.Library, path string, run *database.ScanRun) error {
	_, err := s.store.GetMovieByPath(ctx, path)
	if err == nil {
		run.Skipped++
		return nil
	}
	if !errors.Is(err, database.ErrMovieNotFound) {
		return err
	}

	parsed := parser.Parse(filepath.Base(path))
	folderParsed := s.parseFolder(lib, filepath.Dir(path))

	title, year := parsed.Title, parsed.Year
	if folderParsed != nil && folderParsed.Title != "" {
		title = folderParsed.Title
		if folderParsed.Year > 0 {
			year = folderParsed.Year
		}
	}
	if title == "" {
		return fmt.Errorf("could not extract a title from %q", path)
	}

	confidence := matchConfidence(parsed, folderParsed)

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	movie := &database.Movie{
		LibraryID:        lib.ID,
		Title:            title,
		Year:             year,
		Path:             path,
		Size:             size,
		MatchConfidence:  confidence,
		NeedsMatchReview: confidence < matchReviewThreshold,
	}
	if err := s.store.CreateMovie(ctx, movie); err != nil {
		return err
	}
	run.Added++

	parsed.Size = size
	if err := s.stampQuality(ctx, database.MediaTypeMovie, movie.ID, movie.Path, size, parsed, false); err != nil {
		s.logger.Warn().Err(err).Int64("movieId", movie.ID).Msg("failed to stamp quality")
	}

	if err := s.organizeMovie(ctx, lib, movie); err != nil {
		s.logger.Warn().Err(err).Int64("movieId", movie.ID).Msg("failed to organize movie")
	}

	s.scheduleSidecars(database.MediaTypeMovie, movie.ID, movie.Path)

	s.logger.Debug().
		Str("title", title).
		Int("year", year).
		Float64("confidence", confidence).
		Msg("added movie")
	return nil
}

// organizeMovie ensures the on-disk layout is
// {Root}/{Title} ({Year})/{Title} ({Year}).{ext}, updating the catalog path
// with the move.
func (s *Service) organizeMovie(ctx context.Context, lib *database.Library, movie *database.Movie) error {
	name := movie.Title
	if movie.Year > 0 {
		name = fmt.Sprintf("%s (%d)", movie.Title, movie.Year)
	}
	name = pathutil.SanitizeFilename(name)

	target := filepath.Join(lib.Path, name, name+strings.ToLower(filepath.Ext(movie.Path)))
	if target == movie.Path {
		return nil
	}
	if fileops.FileExists(target) {
		s.logger.Debug().Str("target", target).Msg("organize target already exists, leaving file in place")
		return nil
	}

	if err := fileops.MoveFile(movie.Path, target); err != nil {
		return err
	}

	oldDir := filepath.Dir(movie.Path)
	if err := s.store.UpdateMoviePath(ctx, movie.ID, target); err != nil {
		// Catalog must follow the file; move back so they stay consistent
		if mvErr := fileops.MoveFile(target, movie.Path); mvErr != nil {
			s.logger.Error().Err(mvErr).Str("path", target).Msg("failed to restore file after path update failure")
		}
		return err
	}
	movie.Path = target

	fileops.SweepEmptyDirs(oldDir, lib.Path, 3)
	return nil
}

// parseFolder parses the containing folder's name, unless the file sits
// directly in the library root.
func (s *Service) parseFolder(lib *database.Library, dir string) *parser.ParsedRelease {
	if filepath.Clean(dir) == filepath.Clean(lib.Path) {
		return nil
	}
	folderParsed := parser.Parse(filepath.Base(dir))
	if folderParsed.Title == "" {
		return nil
	}
	return folderParsed
}

// matchConfidence scores how certain the identification is: base 0.5, folder
// parse success +0.3, filename parse +0.2, title agreement +0.2, year
// agreement +0.1, capped at 1.0.
func matchConfidence(fileParsed, folderParsed *parser.ParsedRelease) float64 {
	confidence := 0.5
	if folderParsed != nil {
		confidence += 0.3
	}
	if fileParsed.Title != "" {
		confidence += 0.2
	}
	if folderParsed != nil && fileParsed.Title != "" {
		if strings.EqualFold(folderParsed.Title, fileParsed.Title) {
			confidence += 0.2
		}
		if folderParsed.Year > 0 && folderParsed.Year == fileParsed.Year {
			confidence += 0.1
		}
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
