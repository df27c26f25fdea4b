package scanner

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/windrose/windrose/internal/database"
	"github.com/windrose/windrose/internal/mediainfo"
	"github.com/windrose/windrose/internal/parser"
	"github.com/windrose/windrose/internal/quality"
)

// stampQuality writes the MediaQualityStatus row for a catalog item. When
// the name parse leaves resolution or source unknown, or forceProbe is set,
// the probe capability backfills from the file itself.
func (s *Service) stampQuality(ctx context.Context, mediaType database.MediaType, mediaID int64, path string, size int64, parsed *parser.ParsedRelease, forceProbe bool) error {
	if forceProbe || parsed.Resolution == "" || parsed.Source == "" {
		s.backfillFromProbe(ctx, mediaType, mediaID, path, size, parsed)
	}

	preset := s.defaultPreset(ctx)
	score := quality.Score(parsed, nil, s.groups, scoreMediaType(mediaType))

	status := &database.MediaQualityStatus{
		MediaID:           mediaID,
		MediaType:         mediaType,
		CurrentResolution: parsed.Resolution,
		CurrentSource:     parsed.Source,
		CurrentHDR:        parsed.HDR,
		CurrentAudio:      parsed.AudioFormat,
		CurrentEdition:    parsed.Edition,
		CurrentScore:      score,
		CutoffScore:       quality.CutoffScore(preset),
	}
	return s.store.UpsertQualityStatus(ctx, status)
}

// backfillFromProbe fills parse gaps from stream-level data. Probe failures
// only log: a missing resolution still leaves a usable (low) score.
func (s *Service) backfillFromProbe(ctx context.Context, mediaType database.MediaType, mediaID int64, path string, size int64, parsed *parser.ParsedRelease) {
	if s.probe == nil {
		return
	}

	result, err := s.probe.Probe(ctx, path)
	if err != nil {
		s.logger.Debug().Err(err).Str("path", path).Msg("probe failed, keeping parsed fields")
		return
	}

	video := result.PrimaryVideo()
	if parsed.Resolution == "" {
		parsed.Resolution = mediainfo.ResolutionLabel(video.Height)
	}
	if parsed.Source == "" {
		if size == 0 {
			size = result.FileSize
		}
		parsed.Source = mediainfo.InferSource(parsed.Resolution, size)
	}
	if parsed.Codec == "" {
		parsed.Codec = video.Codec
	}
	if parsed.HDR == "" {
		parsed.HDR = video.HDR
	}
	if parsed.BitDepth == 0 {
		parsed.BitDepth = video.BitDepth
	}
	if audio := result.PrimaryAudio(); parsed.AudioFormat == "" {
		parsed.AudioFormat = audio.Codec
		parsed.AudioChannels = audio.Channels
	}

	if len(result.Chapters) > 0 {
		s.storeChapters(ctx, mediaType, mediaID, result.Chapters)
	}
}

func (s *Service) storeChapters(ctx context.Context, mediaType database.MediaType, mediaID int64, chapters []mediainfo.Chapter) {
	rows := make([]database.Chapter, len(chapters))
	for i, ch := range chapters {
		rows[i] = database.Chapter{
			ChapterIndex: ch.Index,
			Title:        ch.Title,
			Start:        ch.Start,
			End:          ch.End,
		}
	}
	if err := s.store.ReplaceChapters(ctx, mediaType, mediaID, rows); err != nil {
		s.logger.Warn().Err(err).Int64("mediaId", mediaID).Msg("failed to store chapters")
	}
}

// defaultPreset loads the stored default, falling back to the built-in
// default when the preset table is empty.
func (s *Service) defaultPreset(ctx context.Context) *quality.Preset {
	preset, err := s.store.GetDefaultPreset(ctx)
	if err == nil {
		return preset
	}
	builtins := quality.BuiltInPresets()
	for i := range builtins {
		if builtins[i].IsDefault {
			return &builtins[i]
		}
	}
	return &builtins[0]
}

func scoreMediaType(mediaType database.MediaType) string {
	if mediaType == database.MediaTypeEpisode {
		return "tv"
	}
	return "movie"
}

// RescanQualityStatus re-stamps quality for every movie and episode without
// touching the catalog rows themselves.
func (s *Service) RescanQualityStatus(ctx context.Context) error {
	return s.rescanQuality(ctx, false)
}

// RedetectAllQuality drops the probe cache and re-stamps everything through
// the probe path.
func (s *Service) RedetectAllQuality(ctx context.Context) error {
	if s.probe != nil {
		s.probe.InvalidateAll()
	}
	return s.rescanQuality(ctx, true)
}

func (s *Service) rescanQuality(ctx context.Context, forceProbe bool) error {
	libraries, err := s.store.ListLibraries(ctx)
	if err != nil {
		return err
	}

	for _, lib := range libraries {
		switch lib.Type {
		case database.LibraryMovies:
			movies, err := s.store.ListMoviesByLibrary(ctx, lib.ID)
			if err != nil {
				return err
			}
			for _, movie := range movies {
				parsed := parser.Parse(filepath.Base(movie.Path))
				if err := s.stampQuality(ctx, database.MediaTypeMovie, movie.ID, movie.Path, movie.Size, parsed, forceProbe); err != nil {
					s.logger.Warn().Err(err).Int64("movieId", movie.ID).Msg("quality rescan failed for movie")
				}
			}
		case database.LibraryTV:
			shows, err := s.store.ListShowsByLibrary(ctx, lib.ID)
			if err != nil {
				return err
			}
			for _, show := range shows {
				episodes, err := s.store.ListEpisodesByShow(ctx, show.ID)
				if err != nil {
					return err
				}
				for _, ep := range episodes {
					parsed := parser.Parse(filepath.Base(ep.Path))
					if err := s.stampQuality(ctx, database.MediaTypeEpisode, ep.ID, ep.Path, ep.Size, parsed, forceProbe); err != nil {
						s.logger.Warn().Err(err).Int64("episodeId", ep.ID).Msg("quality rescan failed for episode")
					}
				}
			}
		}
	}
	return nil
}

// scheduleSidecars queues the post-scan side-effects for a video file.
func (s *Service) scheduleSidecars(mediaType database.MediaType, mediaID int64, path string) {
	if s.extractor != nil {
		dir := filepath.Dir(path)
		s.sidecars.submit("extract-subtitles", func(ctx context.Context) error {
			_, err := s.extractor.ExtractSubtitles(ctx, path, dir)
			return err
		})
	}

	if s.fetcher != nil {
		s.sidecars.submit("fetch-subtitles", func(ctx context.Context) error {
			enabled, err := s.store.GetSetting(ctx, "subtitles.autoDownload", "false")
			if err != nil || !strings.EqualFold(enabled, "true") {
				return err
			}
			langs, _ := s.store.GetSetting(ctx, "subtitles.languages", "en")
			_, err = s.fetcher.FetchSubtitles(ctx, path, strings.Split(langs, ","))
			return err
		})
	}
}
