// Package scanner reconciles library directories with the catalog: it stamps
// missing files, discovers new ones, creates catalog rows with quality
// status, and schedules probe-backed side-effects.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/windrose/windrose/internal/database"
	"github.com/windrose/windrose/internal/mediainfo"
	"github.com/windrose/windrose/internal/parser"
)

// Config carries the scanner knobs.
type Config struct {
	MissingGrace   time.Duration // how long a file may be missing before its row is deleted
	SidecarWorkers int
}

// Service runs library scans.
type Service struct {
	store     *database.Store
	probe     *mediainfo.Service
	extractor mediainfo.SubtitleExtractor
	fetcher   mediainfo.SubtitleFetcher
	groups    *parser.GroupLists
	grace     time.Duration
	sidecars  *sidecarPool
	progress  progressTracker
	logger    zerolog.Logger
}

// NewService creates a scanner. probe, extractor and fetcher are optional
// capabilities; a nil probe disables quality backfill and chapter
// extraction.
func NewService(store *database.Store, probe *mediainfo.Service, extractor mediainfo.SubtitleExtractor, fetcher mediainfo.SubtitleFetcher, groups *parser.GroupLists, cfg Config, logger zerolog.Logger) *Service {
	if cfg.MissingGrace <= 0 {
		cfg.MissingGrace = 24 * time.Hour
	}
	return &Service{
		store:     store,
		probe:     probe,
		extractor: extractor,
		fetcher:   fetcher,
		groups:    groups,
		grace:     cfg.MissingGrace,
		sidecars:  newSidecarPool(cfg.SidecarWorkers, logger),
		logger:    logger.With().Str("component", "scanner").Logger(),
	}
}

// Close stops the sidecar workers after draining queued jobs.
func (s *Service) Close() {
	s.sidecars.close()
}

// Progress returns the current scan progress.
func (s *Service) Progress() ProgressSnapshot {
	return s.progress.get()
}

// ScanAll scans every configured library in sequence.
func (s *Service) ScanAll(ctx context.Context) error {
	libraries, err := s.store.ListLibraries(ctx)
	if err != nil {
		return err
	}
	for _, lib := range libraries {
		if _, err := s.ScanLibrary(ctx, lib.ID); err != nil {
			s.logger.Error().Err(err).Str("library", lib.Name).Msg("library scan failed")
		}
	}
	return nil
}

// ScanLibrary reconciles one library with the filesystem and records the
// run.
func (s *Service) ScanLibrary(ctx context.Context, libraryID int64) (*database.ScanRun, error) {
	lib, err := s.store.GetLibrary(ctx, libraryID)
	if err != nil {
		return nil, err
	}

	s.progress.start(lib.Name)
	defer s.progress.finish()

	s.logger.Info().Str("library", lib.Name).Str("path", lib.Path).Msg("starting library scan")
	start := time.Now()

	run := &database.ScanRun{LibraryID: lib.ID}

	if err := s.cleanup(ctx, lib); err != nil {
		s.logger.Error().Err(err).Str("library", lib.Name).Msg("cleanup phase failed")
		run.Errors++
	}

	candidates, err := s.collectCandidates(ctx, lib)
	if err != nil {
		return nil, fmt.Errorf("count phase: %w", err)
	}

	s.progress.setPhase(PhaseScanning, len(candidates))
	for _, path := range candidates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err := s.scanFile(ctx, lib, path, run); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("failed to scan file")
			run.Errors++
		}
		s.progress.advance()
	}

	if s.sidecars.pending() > 0 {
		s.progress.setPhase(PhaseExtracting, s.sidecars.pending())
	}

	if err := s.store.RecordScanRun(ctx, run); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record scan run")
	}

	s.logger.Info().
		Str("library", lib.Name).
		Int("added", run.Added).
		Int("skipped", run.Skipped).
		Int("errors", run.Errors).
		Dur("elapsed", time.Since(start)).
		Msg("library scan completed")

	return run, nil
}

// collectCandidates walks the library directory gathering files that pass
// the extension whitelist, skipping samples.
func (s *Service) collectCandidates(ctx context.Context, lib *database.Library) ([]string, error) {
	var candidates []string
	err := filepath.WalkDir(lib.Path, func(path string, d os.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if walkErr != nil {
			s.logger.Warn().Err(walkErr).Str("path", path).Msg("walk error, skipping entry")
			return nil
		}
		if d.IsDir() || !IsMediaFile(d.Name(), lib.Type) || IsSampleFile(d.Name()) {
			return nil
		}
		candidates = append(candidates, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// scanFile routes one candidate through the pipeline for its library type.
func (s *Service) scanFile(ctx context.Context, lib *database.Library, path string, run *database.ScanRun) error {
	switch lib.Type {
	case database.LibraryMovies:
		return s.scanMovieFile(ctx, lib, path, run)
	case database.LibraryTV:
		return s.scanEpisodeFile(ctx, lib, path, run)
	case database.LibraryMusic:
		return s.scanTrackFile(ctx, lib, path, run)
	case database.LibraryBooks:
		return s.scanBookFile(ctx, lib, path, run)
	default:
		return fmt.Errorf("unknown library type %q", lib.Type)
	}
}

// cleanup stats every catalog entry for the library: stamps newly missing
// files, clears reappeared ones, and deletes entries missing past the grace
// period.
func (s *Service) cleanup(ctx context.Context, lib *database.Library) error {
	switch lib.Type {
	case database.LibraryMovies:
		return s.cleanupMovies(ctx, lib)
	case database.LibraryTV:
		return s.cleanupEpisodes(ctx, lib)
	case database.LibraryMusic:
		return s.cleanupTracks(ctx, lib)
	case database.LibraryBooks:
		return s.cleanupBooks(ctx, lib)
	default:
		return nil
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
