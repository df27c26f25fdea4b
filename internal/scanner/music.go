package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/windrose/windrose/internal/database"
)

// trackNumberPattern matches a leading "07 - " or "07." track prefix.
var trackNumberPattern = regexp.MustCompile(`^(\d{1,3})\s*[-._]\s*`)

func (s *Service) cleanupTracks(ctx context.Context, lib *database.Library) error {
	tracks, err := s.store.ListTracksByLibrary(ctx, lib.ID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, track := range tracks {
		if fileExists(track.Path) {
			if track.MissingSince != nil {
				if err := s.store.ClearTrackMissing(ctx, track.ID); err != nil {
					s.logger.Warn().Err(err).Int64("trackId", track.ID).Msg("failed to clear missing flag")
				}
			}
			continue
		}
		if err := s.store.MarkTrackMissing(ctx, track.ID, now); err != nil {
			s.logger.Warn().Err(err).Int64("trackId", track.ID).Msg("failed to mark track missing")
		}
	}

	deleted, err := s.store.DeleteMissingTracks(ctx, s.grace)
	if err != nil {
		return err
	}
	if len(deleted) > 0 {
		s.logger.Info().Int("count", len(deleted)).Msg("deleted tracks missing past grace period")
	}
	return nil
}

// scanTrackFile catalogs one audio file from the canonical
// Artist/Album/NN - Title.ext layout.
func (s *Service) scanTrackFile(ctx context.Context, lib *database.Library, path string, run *database.ScanRun) error {
	_, err := s.store.GetTrackByPath(ctx, path)
	if err == nil {
		run.Skipped++
		return nil
	}
	if !errors.Is(err, database.ErrTrackNotFound) {
		return err
	}

	albumDir := filepath.Dir(path)
	artistDir := filepath.Dir(albumDir)
	albumName := filepath.Base(albumDir)
	artistName := filepath.Base(artistDir)

	// Files above the Artist/Album depth get bucketed under Unknown
	root := filepath.Clean(lib.Path)
	if filepath.Clean(albumDir) == root {
		albumName, artistName = "Unknown Album", "Unknown Artist"
		artistDir, albumDir = lib.Path, lib.Path
	} else if filepath.Clean(artistDir) == root {
		artistName = albumName
		albumName = "Unknown Album"
		artistDir = albumDir
	}

	artist, err := s.store.GetOrCreateArtist(ctx, lib.ID, artistName, artistDir)
	if err != nil {
		return err
	}
	album, err := s.store.GetOrCreateAlbum(ctx, artist.ID, albumName, albumYear(albumName), albumDir)
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	trackNumber := 0
	title := base
	if m := trackNumberPattern.FindStringSubmatch(base); m != nil {
		trackNumber, _ = strconv.Atoi(m[1])
		title = strings.TrimSpace(base[len(m[0]):])
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	track := &database.Track{
		AlbumID:     album.ID,
		TrackNumber: trackNumber,
		Title:       title,
		Path:        path,
		Size:        size,
	}
	if err := s.store.CreateTrack(ctx, track); err != nil {
		return err
	}
	run.Added++
	return nil
}

// albumYear extracts a trailing "(2007)" year from an album folder name.
var albumYearPattern = regexp.MustCompile(`\((\d{4})\)\s*$`)

func albumYear(name string) int {
	if m := albumYearPattern.FindStringSubmatch(name); m != nil {
		year, _ := strconv.Atoi(m[1])
		return year
	}
	return 0
}
