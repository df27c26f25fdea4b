// Package importer moves completed downloads into the library at their
// canonical paths.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/windrose/windrose/internal/database"
	"github.com/windrose/windrose/internal/fileops"
	"github.com/windrose/windrose/internal/parser"
	"github.com/windrose/windrose/internal/pathutil"
	"github.com/windrose/windrose/internal/quality"
)

// ErrNoVideoFiles is returned when a completed download contains nothing
// importable.
var ErrNoVideoFiles = errors.New("no video files found")

var (
	extrasPattern = regexp.MustCompile(`(?i)\b(extras|featurettes?|bonus|deleted.?scenes|behind.?the.?scenes|making.?of|interview|trailer|gag.?reel|bloopers)\b`)

	videoExtensions = map[string]bool{
		".mkv": true, ".mp4": true, ".avi": true, ".mov": true,
		".wmv": true, ".flv": true, ".webm": true, ".m4v": true,
	}
	subtitleExtensions = map[string]bool{
		".srt": true, ".sub": true, ".idx": true,
		".ass": true, ".ssa": true, ".vtt": true,
	}
)

// sweepLevels bounds how far up empty source directories are removed.
const sweepLevels = 5

// Service runs the import pipeline.
type Service struct {
	store  *database.Store
	groups *parser.GroupLists
	logger zerolog.Logger
}

// NewService creates an importer. groups feeds the trusted-group score
// modifier so stamped scores match what search-time ranking would produce.
func NewService(store *database.Store, groups *parser.GroupLists, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		groups: groups,
		logger: logger.With().Str("component", "importer").Logger(),
	}
}

// ProcessImport moves a completed download's content into the library.
// Failures mark the download failed and record history; source files are
// never deleted on failure.
func (s *Service) ProcessImport(ctx context.Context, download *database.Download, sourcePath string) error {
	if err := s.store.UpdateDownloadStatus(ctx, download.ID, database.DownloadImporting); err != nil {
		return err
	}

	dest, err := s.runImport(ctx, download, sourcePath)
	if err != nil {
		s.logger.Error().Err(err).Int64("downloadId", download.ID).Str("source", sourcePath).Msg("import failed")
		if dbErr := s.store.SetDownloadFailed(ctx, download.ID, err); dbErr != nil {
			s.logger.Error().Err(dbErr).Int64("downloadId", download.ID).Msg("failed to mark download failed")
		}
		s.recordHistory(ctx, download, sourcePath, "", err)
		return err
	}

	if dest == "" {
		// Unmatched: content parked for manual review
		return nil
	}

	if err := s.store.SetDownloadImported(ctx, download.ID, dest); err != nil {
		return err
	}
	s.recordHistory(ctx, download, sourcePath, dest, nil)
	sweepSource(sourcePath)

	s.logger.Info().
		Int64("downloadId", download.ID).
		Str("dest", dest).
		Msg("import completed")
	return nil
}

// runImport does the actual work and returns the destination of the main
// file, or "" when the download was parked as unmatched.
func (s *Service) runImport(ctx context.Context, download *database.Download, sourcePath string) (string, error) {
	videos, others, err := collectFiles(sourcePath)
	if err != nil {
		return "", err
	}
	if len(videos) == 0 {
		return "", ErrNoVideoFiles
	}

	mainFile := largestFile(videos)
	parsed := parser.Parse(filepath.Base(mainFile))

	if download.MediaID == nil || download.MediaType == "" {
		if err := s.parkUnmatched(ctx, download, sourcePath); err != nil {
			return "", err
		}
		return "", nil
	}

	dest, err := s.resolveDestination(ctx, download, parsed, mainFile)
	if err != nil {
		return "", err
	}

	oldPath, err := s.catalogPath(ctx, download)
	if err != nil {
		return "", err
	}

	if err := fileops.MoveFile(mainFile, dest); err != nil {
		return "", fmt.Errorf("move main file: %w", err)
	}

	if err := s.updateCatalog(ctx, download, parsed, dest); err != nil {
		// Put the main file back so a failed import leaves the source intact
		if mvErr := fileops.MoveFile(dest, mainFile); mvErr != nil {
			s.logger.Error().Err(mvErr).Str("path", dest).Msg("failed to restore source after catalog error")
		}
		return "", fmt.Errorf("update catalog: %w", err)
	}

	s.moveCompanions(videos, others, mainFile, dest)

	if oldPath != "" && oldPath != dest && fileops.FileExists(oldPath) {
		// Upgrade replaced the previous file
		if err := os.Remove(oldPath); err != nil {
			s.logger.Warn().Err(err).Str("path", oldPath).Msg("failed to remove upgraded file")
		}
	}

	return dest, nil
}

// collectFiles walks the source gathering video files (samples dropped) and
// everything else.
func collectFiles(sourcePath string) (videos, others []string, err error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, nil, fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		if isVideoFile(sourcePath) && !isSample(sourcePath) {
			return []string{sourcePath}, nil, nil
		}
		return nil, nil, nil
	}

	err = filepath.WalkDir(sourcePath, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return walkErr
		}
		switch {
		case isVideoFile(path):
			if !isSample(path) {
				videos = append(videos, path)
			}
		default:
			others = append(others, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk source: %w", err)
	}
	return videos, others, nil
}

func isVideoFile(path string) bool {
	return videoExtensions[pathutil.Ext(path)]
}

func isSample(path string) bool {
	return strings.Contains(strings.ToLower(filepath.Base(path)), "sample")
}

func largestFile(paths []string) string {
	best := paths[0]
	var bestSize int64 = -1
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.Size() > bestSize {
			best, bestSize = p, info.Size()
		}
	}
	return best
}

// resolveDestination builds the canonical destination path from the naming
// template for the download's media type.
func (s *Service) resolveDestination(ctx context.Context, download *database.Download, parsed *parser.ParsedRelease, mainFile string) (string, error) {
	ext := pathutil.Ext(mainFile)

	switch download.MediaType {
	case database.MediaTypeMovie:
		movie, err := s.store.GetMovie(ctx, *download.MediaID)
		if err != nil {
			return "", err
		}
		lib, err := s.store.GetLibrary(ctx, movie.LibraryID)
		if err != nil {
			return "", err
		}
		tmpl, err := s.store.GetNamingTemplate(ctx, "movie")
		if err != nil {
			return "", err
		}
		values := TemplateValues{
			Title:      movie.Title,
			Year:       movie.Year,
			Resolution: parsed.Resolution,
			Source:     parsed.Source,
			Codec:      parsed.Codec,
		}
		folder := RenderTemplate(tmpl.FolderTemplate, values)
		file := RenderTemplate(tmpl.FileTemplate, values) + ext
		return filepath.Join(lib.Path, folder, file), nil

	case database.MediaTypeEpisode:
		episode, err := s.store.GetEpisode(ctx, *download.MediaID)
		if err != nil {
			return "", err
		}
		show, err := s.store.GetShowForEpisode(ctx, episode.ID)
		if err != nil {
			return "", err
		}
		season, err := s.store.GetSeason(ctx, episode.SeasonID)
		if err != nil {
			return "", err
		}
		lib, err := s.store.GetLibrary(ctx, show.LibraryID)
		if err != nil {
			return "", err
		}
		tmpl, err := s.store.GetNamingTemplate(ctx, "tv")
		if err != nil {
			return "", err
		}
		values := TemplateValues{
			Title:        show.Title,
			Year:         show.Year,
			Season:       season.SeasonNumber,
			Episode:      episode.EpisodeNumber,
			EpisodeEnd:   episode.EpisodeEnd,
			EpisodeTitle: episode.Title,
			Resolution:   parsed.Resolution,
			Source:       parsed.Source,
			Codec:        parsed.Codec,
		}
		if episode.AirDate != "" {
			if aired, err := time.Parse("2006-01-02", episode.AirDate); err == nil {
				values.AirDate = aired
			}
		}
		folder := RenderTemplate(tmpl.FolderTemplate, values)
		file := RenderTemplate(tmpl.FileTemplate, values) + ext
		return filepath.Join(lib.Path, folder, file), nil

	default:
		return "", fmt.Errorf("no import path for media type %q", download.MediaType)
	}
}

func (s *Service) catalogPath(ctx context.Context, download *database.Download) (string, error) {
	switch download.MediaType {
	case database.MediaTypeMovie:
		movie, err := s.store.GetMovie(ctx, *download.MediaID)
		if err != nil {
			return "", err
		}
		return movie.Path, nil
	case database.MediaTypeEpisode:
		episode, err := s.store.GetEpisode(ctx, *download.MediaID)
		if err != nil {
			return "", err
		}
		return episode.Path, nil
	}
	return "", nil
}

// updateCatalog points the media row at the new file and re-stamps its
// quality status.
func (s *Service) updateCatalog(ctx context.Context, download *database.Download, parsed *parser.ParsedRelease, dest string) error {
	switch download.MediaType {
	case database.MediaTypeMovie:
		if err := s.store.UpdateMoviePath(ctx, *download.MediaID, dest); err != nil {
			return err
		}
	case database.MediaTypeEpisode:
		if err := s.store.UpdateEpisodePath(ctx, *download.MediaID, dest); err != nil {
			return err
		}
	}
	return s.stampQuality(ctx, download.MediaType, *download.MediaID, parsed)
}

func (s *Service) stampQuality(ctx context.Context, mediaType database.MediaType, mediaID int64, parsed *parser.ParsedRelease) error {
	preset, err := s.store.GetDefaultPreset(ctx)
	if err != nil {
		builtins := quality.BuiltInPresets()
		preset = &builtins[0]
		for i := range builtins {
			if builtins[i].IsDefault {
				preset = &builtins[i]
				break
			}
		}
	}

	scoreType := "movie"
	if mediaType == database.MediaTypeEpisode {
		scoreType = "tv"
	}

	status := &database.MediaQualityStatus{
		MediaID:           mediaID,
		MediaType:         mediaType,
		CurrentResolution: parsed.Resolution,
		CurrentSource:     parsed.Source,
		CurrentHDR:        parsed.HDR,
		CurrentAudio:      parsed.AudioFormat,
		CurrentEdition:    parsed.Edition,
		CurrentScore:      quality.Score(parsed, nil, s.groups, scoreType),
		CutoffScore:       quality.CutoffScore(preset),
	}
	return s.store.UpsertQualityStatus(ctx, status)
}

// moveCompanions relocates extras and subtitles next to the imported main
// file. Companion failures log but never fail the import.
func (s *Service) moveCompanions(videos, others []string, mainFile, dest string) {
	destDir := filepath.Dir(dest)
	destStem := strings.TrimSuffix(filepath.Base(dest), filepath.Ext(dest))

	for _, video := range videos {
		if video == mainFile {
			continue
		}
		if extrasPattern.MatchString(filepath.Base(video)) || extrasPattern.MatchString(filepath.Base(filepath.Dir(video))) {
			target := filepath.Join(destDir, "Extras", pathutil.SanitizeFilename(filepath.Base(video)))
			if err := fileops.MoveFile(video, target); err != nil {
				s.logger.Warn().Err(err).Str("path", video).Msg("failed to move extra")
			}
		}
	}

	for _, other := range others {
		if !subtitleExtensions[pathutil.Ext(other)] {
			continue
		}
		base := filepath.Base(other)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		name := destStem
		if lang := pathutil.SubtitleLanguage(stem); lang != "" {
			name += "." + lang
		}
		target := filepath.Join(destDir, name+pathutil.Ext(other))
		if err := fileops.MoveFile(other, target); err != nil {
			s.logger.Warn().Err(err).Str("path", other).Msg("failed to move subtitle")
		}
	}
}

// parkUnmatched moves the whole download under _Unmatched for manual
// review.
func (s *Service) parkUnmatched(ctx context.Context, download *database.Download, sourcePath string) error {
	lib, err := s.pickUnmatchedLibrary(ctx)
	if err != nil {
		return err
	}

	title := pathutil.SanitizeFilename(download.Title)
	if title == "" {
		title = pathutil.SanitizeFilename(filepath.Base(sourcePath))
	}
	targetDir := filepath.Join(lib.Path, "_Unmatched", title)

	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		entries, err := os.ReadDir(sourcePath)
		if err != nil {
			return fmt.Errorf("read source: %w", err)
		}
		for _, entry := range entries {
			src := filepath.Join(sourcePath, entry.Name())
			if err := fileops.MoveFile(src, filepath.Join(targetDir, entry.Name())); err != nil {
				return fmt.Errorf("move to unmatched: %w", err)
			}
		}
	} else if err := fileops.MoveFile(sourcePath, filepath.Join(targetDir, filepath.Base(sourcePath))); err != nil {
		return fmt.Errorf("move to unmatched: %w", err)
	}

	if err := s.store.UpdateDownloadStatus(ctx, download.ID, database.DownloadUnmatched); err != nil {
		return err
	}
	s.recordHistory(ctx, download, sourcePath, targetDir, nil)
	sweepSource(sourcePath)

	s.logger.Info().
		Int64("downloadId", download.ID).
		Str("dest", targetDir).
		Msg("parked unmatched download")
	return nil
}

// pickUnmatchedLibrary prefers the movies library root for parking, falling
// back to any configured library.
func (s *Service) pickUnmatchedLibrary(ctx context.Context) (*database.Library, error) {
	lib, err := s.store.GetLibraryByType(ctx, database.LibraryMovies)
	if err == nil {
		return lib, nil
	}
	libraries, err := s.store.ListLibraries(ctx)
	if err != nil {
		return nil, err
	}
	if len(libraries) == 0 {
		return nil, errors.New("no libraries configured")
	}
	return libraries[0], nil
}

// sweepSource removes empty directories left inside the source, deepest
// first, then walks upward from the source itself.
func sweepSource(sourcePath string) {
	info, err := os.Stat(sourcePath)
	if err == nil && info.IsDir() {
		var dirs []string
		filepath.WalkDir(sourcePath, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr == nil && d.IsDir() {
				dirs = append(dirs, path)
			}
			return nil
		})
		for i := len(dirs) - 1; i >= 0; i-- {
			if entries, err := os.ReadDir(dirs[i]); err == nil && len(entries) == 0 {
				os.Remove(dirs[i])
			}
		}
	}
	fileops.SweepEmptyDirs(filepath.Dir(sourcePath), "/", sweepLevels)
}

func (s *Service) recordHistory(ctx context.Context, download *database.Download, source, dest string, importErr error) {
	h := &database.ImportHistory{
		DownloadID: &download.ID,
		SourcePath: source,
		DestPath:   dest,
		MediaID:    download.MediaID,
		MediaType:  download.MediaType,
		Success:    importErr == nil,
	}
	if importErr != nil {
		h.Error = importErr.Error()
	}
	if err := s.store.AddImportHistory(ctx, h); err != nil {
		s.logger.Warn().Err(err).Int64("downloadId", download.ID).Msg("failed to record import history")
	}
}
