package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/windrose/windrose/internal/database"
	"github.com/windrose/windrose/internal/parser"
)

// seasonDirPattern matches the canonical season folder names (Season 01,
// season.2, Season_10).
var seasonDirPattern = regexp.MustCompile(`(?i)^season[ ._-]?(\d{1,3})$`)

func (s *Service) cleanupEpisodes(ctx context.Context, lib *database.Library) error {
	shows, err := s.store.ListShowsByLibrary(ctx, lib.ID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, show := range shows {
		episodes, err := s.store.ListEpisodesByShow(ctx, show.ID)
		if err != nil {
			return err
		}
		for _, ep := range episodes {
			if fileExists(ep.Path) {
				if ep.MissingSince != nil {
					if err := s.store.ClearEpisodeMissing(ctx, ep.ID); err != nil {
						s.logger.Warn().Err(err).Int64("episodeId", ep.ID).Msg("failed to clear missing flag")
					}
				}
				continue
			}
			if err := s.store.MarkEpisodeMissing(ctx, ep.ID, now); err != nil {
				s.logger.Warn().Err(err).Int64("episodeId", ep.ID).Msg("failed to mark episode missing")
			}
		}
	}

	deleted, err := s.store.DeleteMissingEpisodes(ctx, s.grace)
	if err != nil {
		return err
	}
	if len(deleted) > 0 {
		s.logger.Info().Int("count", len(deleted)).Msg("deleted episodes missing past grace period")
	}
	return nil
}

func (s *Service) scanEpisodeFile(ctx context.Context, lib *database.Library, path string, run *database.ScanRun) error {
	_, err := s.store.GetEpisodeByPath(ctx, path)
	if err == nil {
		run.Skipped++
		return nil
	}
	if !errors.Is(err, database.ErrEpisodeNotFound) {
		return err
	}

	parsed := parser.Parse(filepath.Base(path))

	showDir, seasonFromDir := inferShowDir(lib.Path, path)
	var folderParsed *parser.ParsedRelease
	if showDir != "" {
		folderParsed = parser.Parse(filepath.Base(showDir))
	}

	season, episode, episodeEnd := parsed.Season, parsed.Episode, parsed.EpisodeEnd
	absolute := parsed.Absolute
	if season == 0 && seasonFromDir > 0 {
		season = seasonFromDir
	}
	if episode == 0 && absolute > 0 {
		// Anime flat numbering maps onto season 1 until metadata resolves it
		episode = absolute
		if season == 0 {
			season = 1
		}
	}
	if episode == 0 {
		return fmt.Errorf("no episode number in %q", path)
	}
	if season == 0 {
		season = 1
	}

	title := parsed.Title
	showYear := 0
	if folderParsed != nil && folderParsed.Title != "" {
		title = folderParsed.Title
		showYear = folderParsed.Year
	}
	if title == "" {
		return fmt.Errorf("could not extract a show title from %q", path)
	}

	confidence := matchConfidence(parsed, folderParsed)
	if absolute > 0 && parsed.Season == 0 {
		// Flat numbering is a guess until confirmed
		confidence = matchReviewThreshold - 0.1
	}

	show, err := s.getOrCreateShow(ctx, lib, showDir, title, showYear, confidence)
	if err != nil {
		return err
	}

	seasonRow, err := s.store.GetOrCreateSeason(ctx, show.ID, season)
	if err != nil {
		return err
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	ep := &database.Episode{
		SeasonID:         seasonRow.ID,
		EpisodeNumber:    episode,
		EpisodeEnd:       episodeEnd,
		AbsoluteNumber:   absolute,
		Path:             path,
		Size:             size,
		MatchConfidence:  confidence,
		NeedsMatchReview: confidence < matchReviewThreshold,
	}
	if err := s.store.CreateEpisode(ctx, ep); err != nil {
		if errors.Is(err, database.ErrEpisodeOverlap) {
			s.logger.Warn().
				Str("path", path).
				Int("season", season).
				Int("episode", episode).
				Msg("episode overlaps an existing multi-episode file, skipping")
			run.Skipped++
			return nil
		}
		return err
	}
	run.Added++

	parsed.Size = size
	if err := s.stampQuality(ctx, database.MediaTypeEpisode, ep.ID, path, size, parsed, false); err != nil {
		s.logger.Warn().Err(err).Int64("episodeId", ep.ID).Msg("failed to stamp quality")
	}

	s.scheduleSidecars(database.MediaTypeEpisode, ep.ID, path)

	s.logger.Debug().
		Str("show", title).
		Int("season", season).
		Int("episode", episode).
		Msg("added episode")
	return nil
}

func (s *Service) getOrCreateShow(ctx context.Context, lib *database.Library, showDir, title string, year int, confidence float64) (*database.Show, error) {
	if showDir == "" {
		showDir = filepath.Join(lib.Path, title)
	}

	show, err := s.store.GetShowByPath(ctx, showDir)
	if err == nil {
		return show, nil
	}
	if !errors.Is(err, database.ErrShowNotFound) {
		return nil, err
	}

	show = &database.Show{
		LibraryID:        lib.ID,
		Title:            title,
		Year:             year,
		Path:             showDir,
		MatchConfidence:  confidence,
		NeedsMatchReview: confidence < matchReviewThreshold,
	}
	if err := s.store.CreateShow(ctx, show); err != nil {
		return nil, err
	}
	return show, nil
}

// inferShowDir derives the show folder and season number from the canonical
// layout Show (Year)/Season NN/file. Files directly in a show folder (no
// season level) and files directly in the library root are both handled.
func inferShowDir(libraryRoot, path string) (showDir string, season int) {
	dir := filepath.Dir(path)
	root := filepath.Clean(libraryRoot)

	if filepath.Clean(dir) == root {
		return "", 0
	}

	if m := seasonDirPattern.FindStringSubmatch(filepath.Base(dir)); m != nil {
		season, _ = strconv.Atoi(m[1])
		parent := filepath.Dir(dir)
		if filepath.Clean(parent) == root {
			return "", season
		}
		return parent, season
	}

	return dir, 0
}
