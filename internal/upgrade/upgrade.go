// Package upgrade drives quality upgrades: it finds catalog items below
// their cutoff, searches indexers for better releases, and queues downloads
// for accepted candidates.
package upgrade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/windrose/windrose/internal/database"
	"github.com/windrose/windrose/internal/indexer"
	"github.com/windrose/windrose/internal/parser"
	"github.com/windrose/windrose/internal/quality"
)

// ErrUpgradePaused is returned when a search is requested for a paused item.
var ErrUpgradePaused = errors.New("upgrades paused for item")

// Config tunes the sweep and retry behavior.
type Config struct {
	SweepWorkers int           // concurrent item searches per sweep
	SweepLimit   int           // max items considered per sweep
	BackoffBase  time.Duration // first retry delay
	BackoffCap   time.Duration // ceiling for the exponential schedule
}

func (c *Config) applyDefaults() {
	if c.SweepWorkers <= 0 {
		c.SweepWorkers = 3
	}
	if c.SweepLimit <= 0 {
		c.SweepLimit = 20
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 30 * time.Minute
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 168 * time.Hour
	}
}

// Service is the upgrade controller.
type Service struct {
	store  *database.Store
	search *indexer.Aggregator
	groups *parser.GroupLists
	cfg    Config
	logger zerolog.Logger
}

// NewService creates an upgrade controller.
func NewService(store *database.Store, search *indexer.Aggregator, groups *parser.GroupLists, cfg Config, logger zerolog.Logger) *Service {
	cfg.applyDefaults()
	return &Service{
		store:  store,
		search: search,
		groups: groups,
		cfg:    cfg,
		logger: logger.With().Str("component", "upgrade").Logger(),
	}
}

// Item is one catalog entry below its cutoff, annotated for display.
type Item struct {
	MediaID   int64              `json:"mediaId"`
	MediaType database.MediaType `json:"mediaType"`
	Title     string             `json:"title"`
	Year      int                `json:"year,omitempty"`
	Season    int                `json:"season,omitempty"`
	Episode   int                `json:"episode,omitempty"`

	CurrentResolution string `json:"currentResolution"`
	CurrentSource     string `json:"currentSource"`
	CurrentScore      int    `json:"currentScore"`
	CutoffScore       int    `json:"cutoffScore"`

	SearchStatus   database.SearchStatus `json:"searchStatus"`
	SearchAttempts int                   `json:"searchAttempts"`
	NextSearchAt   *time.Time            `json:"nextSearchAt,omitempty"`
	UpgradePaused  bool                  `json:"upgradePaused"`
}

// Outcome reports what one upgrade search did.
type Outcome struct {
	Grabbed    bool               `json:"grabbed"`
	Download   *database.Download `json:"download,omitempty"`
	Considered int                `json:"considered"`
	NextSearch *time.Time         `json:"nextSearch,omitempty"`
}

// ShowGroup collects a show's below-cutoff episodes.
type ShowGroup struct {
	ShowID   int64   `json:"showId"`
	Title    string  `json:"title"`
	Year     int     `json:"year,omitempty"`
	Episodes []*Item `json:"episodes"`
}

// Upgrades is the full below-cutoff view, bucketed by media type with
// episodes grouped per show.
type Upgrades struct {
	Movies []*Item      `json:"movies"`
	Shows  []*ShowGroup `json:"shows"`
}

// GetUpgrades returns every item below its cutoff, movies flat and episodes
// grouped by show.
func (s *Service) GetUpgrades(ctx context.Context) (*Upgrades, error) {
	items, err := s.ListUpgradable(ctx, "", 0)
	if err != nil {
		return nil, err
	}

	upgrades := &Upgrades{}
	groups := make(map[int64]*ShowGroup)
	for _, item := range items {
		switch item.MediaType {
		case database.MediaTypeMovie:
			upgrades.Movies = append(upgrades.Movies, item)
		case database.MediaTypeEpisode:
			show, err := s.store.GetShowForEpisode(ctx, item.MediaID)
			if err != nil {
				s.logger.Warn().Err(err).Int64("episodeId", item.MediaID).Msg("skipping episode with missing show")
				continue
			}
			group, ok := groups[show.ID]
			if !ok {
				group = &ShowGroup{ShowID: show.ID, Title: show.Title, Year: show.Year}
				groups[show.ID] = group
				upgrades.Shows = append(upgrades.Shows, group)
			}
			group.Episodes = append(group.Episodes, item)
		}
	}
	return upgrades, nil
}

// ListUpgradable returns items below their cutoff, largest gap first,
// annotated with catalog titles. mediaType "" means both types.
func (s *Service) ListUpgradable(ctx context.Context, mediaType database.MediaType, limit int) ([]*Item, error) {
	statuses, err := s.store.ListBelowCutoff(ctx, mediaType, limit)
	if err != nil {
		return nil, err
	}

	items := make([]*Item, 0, len(statuses))
	for _, status := range statuses {
		item := &Item{
			MediaID:           status.MediaID,
			MediaType:         status.MediaType,
			CurrentResolution: status.CurrentResolution,
			CurrentSource:     status.CurrentSource,
			CurrentScore:      status.CurrentScore,
			CutoffScore:       status.CutoffScore,
			SearchStatus:      status.SearchStatus,
			SearchAttempts:    status.SearchAttempts,
			NextSearchAt:      status.NextSearchAt,
			UpgradePaused:     status.UpgradePaused,
		}
		if err := s.annotate(ctx, item); err != nil {
			s.logger.Warn().Err(err).
				Int64("mediaId", status.MediaID).
				Str("mediaType", string(status.MediaType)).
				Msg("skipping upgrade item with missing catalog row")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) annotate(ctx context.Context, item *Item) error {
	switch item.MediaType {
	case database.MediaTypeMovie:
		movie, err := s.store.GetMovie(ctx, item.MediaID)
		if err != nil {
			return err
		}
		item.Title = movie.Title
		item.Year = movie.Year
	case database.MediaTypeEpisode:
		episode, err := s.store.GetEpisode(ctx, item.MediaID)
		if err != nil {
			return err
		}
		show, err := s.store.GetShowForEpisode(ctx, episode.ID)
		if err != nil {
			return err
		}
		season, err := s.store.GetSeason(ctx, episode.SeasonID)
		if err != nil {
			return err
		}
		item.Title = show.Title
		item.Year = show.Year
		item.Season = season.SeasonNumber
		item.Episode = episode.EpisodeNumber
	default:
		return fmt.Errorf("unknown media type %q", item.MediaType)
	}
	return nil
}

// SearchUpgrade runs one upgrade search for a catalog item. An accepted
// release is queued as a download and the search state returns to idle;
// otherwise the item enters pending_retry with exponential backoff.
func (s *Service) SearchUpgrade(ctx context.Context, mediaType database.MediaType, mediaID int64) (*Outcome, error) {
	status, err := s.store.GetQualityStatus(ctx, mediaType, mediaID)
	if err != nil {
		return nil, err
	}
	if status.UpgradePaused {
		return nil, ErrUpgradePaused
	}

	// A grab already in flight satisfies this item
	active, err := s.store.ListActiveDownloadsForMedia(ctx, mediaType, mediaID)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return &Outcome{Grabbed: false, Considered: 0}, nil
	}

	if err := s.store.UpdateSearchState(ctx, mediaType, mediaID, database.SearchSearching, status.SearchAttempts, nil); err != nil {
		return nil, err
	}

	outcome, err := s.runSearch(ctx, mediaType, mediaID, status)
	if err != nil {
		// Restore retry state so the item is not stuck in "searching"
		s.scheduleRetry(ctx, mediaType, mediaID, status.SearchAttempts)
		return nil, err
	}
	return outcome, nil
}

func (s *Service) runSearch(ctx context.Context, mediaType database.MediaType, mediaID int64, status *database.MediaQualityStatus) (*Outcome, error) {
	params, err := s.buildParams(ctx, mediaType, mediaID)
	if err != nil {
		return nil, err
	}

	results, err := s.search.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	preset := s.defaultPreset(ctx)
	current := quality.CurrentQuality{
		Resolution:  status.CurrentResolution,
		Source:      status.CurrentSource,
		HDR:         status.CurrentHDR,
		AudioFormat: status.CurrentAudio,
		Edition:     status.CurrentEdition,
		Score:       status.CurrentScore,
	}

	candidates := make([]*parser.ParsedRelease, len(results))
	origin := make(map[*parser.ParsedRelease]*indexer.SearchResult, len(results))
	for i := range results {
		parsed := parser.Parse(results[i].Title)
		parsed.Size = results[i].Size
		parsed.Seeders = results[i].Seeders
		candidates[i] = parsed
		origin[parsed] = &results[i]
	}

	scoreType := "movie"
	if mediaType == database.MediaTypeEpisode {
		scoreType = "tv"
	}

	ranked := quality.RankReleases(candidates, preset, s.groups, scoreType)
	for _, candidate := range ranked {
		if !quality.IsUpgrade(candidate.Release, current, preset, s.groups, scoreType) {
			continue
		}
		result := origin[candidate.Release]
		download, err := s.grab(ctx, mediaType, mediaID, result)
		if err != nil {
			return nil, err
		}
		if err := s.store.UpdateSearchState(ctx, mediaType, mediaID, database.SearchIdle, 0, nil); err != nil {
			return nil, err
		}
		s.logger.Info().
			Int64("mediaId", mediaID).
			Str("mediaType", string(mediaType)).
			Str("release", result.Title).
			Int("score", candidate.Score).
			Msg("queued upgrade download")
		return &Outcome{Grabbed: true, Download: download, Considered: len(results)}, nil
	}

	next := s.scheduleRetry(ctx, mediaType, mediaID, status.SearchAttempts)
	s.logger.Debug().
		Int64("mediaId", mediaID).
		Int("considered", len(results)).
		Time("nextSearch", next).
		Msg("no acceptable upgrade found")
	return &Outcome{Grabbed: false, Considered: len(results), NextSearch: &next}, nil
}

func (s *Service) buildParams(ctx context.Context, mediaType database.MediaType, mediaID int64) (indexer.SearchParams, error) {
	switch mediaType {
	case database.MediaTypeMovie:
		movie, err := s.store.GetMovie(ctx, mediaID)
		if err != nil {
			return indexer.SearchParams{}, err
		}
		query := movie.Title
		if movie.Year > 0 {
			query = fmt.Sprintf("%s %d", movie.Title, movie.Year)
		}
		return indexer.SearchParams{Type: indexer.TypeMovie, Query: query}, nil

	case database.MediaTypeEpisode:
		episode, err := s.store.GetEpisode(ctx, mediaID)
		if err != nil {
			return indexer.SearchParams{}, err
		}
		show, err := s.store.GetShowForEpisode(ctx, episode.ID)
		if err != nil {
			return indexer.SearchParams{}, err
		}
		season, err := s.store.GetSeason(ctx, episode.SeasonID)
		if err != nil {
			return indexer.SearchParams{}, err
		}
		return indexer.SearchParams{
			Type:    indexer.TypeTV,
			Query:   show.Title,
			Season:  season.SeasonNumber,
			Episode: episode.EpisodeNumber,
		}, nil

	default:
		return indexer.SearchParams{}, fmt.Errorf("unknown media type %q", mediaType)
	}
}

func (s *Service) grab(ctx context.Context, mediaType database.MediaType, mediaID int64, result *indexer.SearchResult) (*database.Download, error) {
	guid := result.GUID
	if guid == "" {
		guid = uuid.NewString()
	}
	download := &database.Download{
		GUID:      guid,
		MediaID:   &mediaID,
		MediaType: mediaType,
		Title:     result.Title,
		Status:    database.DownloadQueued,
		Size:      result.Size,
		Seeders:   result.Seeders,
	}
	if result.IndexerID != 0 {
		download.IndexerID = &result.IndexerID
	}
	if err := s.store.CreateDownload(ctx, download); err != nil {
		return nil, err
	}
	return download, nil
}

// scheduleRetry moves an item to pending_retry with the next attempt's
// backoff applied.
func (s *Service) scheduleRetry(ctx context.Context, mediaType database.MediaType, mediaID int64, attempts int) time.Time {
	next := time.Now().Add(RetryDelay(attempts, s.cfg.BackoffBase, s.cfg.BackoffCap))
	if err := s.store.UpdateSearchState(ctx, mediaType, mediaID, database.SearchPendingRetry, attempts+1, &next); err != nil {
		s.logger.Warn().Err(err).Int64("mediaId", mediaID).Msg("failed to schedule search retry")
	}
	return next
}

// RetryDelay is the exponential backoff schedule: base doubled per prior
// attempt, capped.
func RetryDelay(attempts int, base, ceiling time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	if delay > ceiling {
		return ceiling
	}
	return delay
}

// Sweep searches the top-limit below-cutoff items by score gap. Paused
// items and items whose retry window has not elapsed are skipped. Searches
// run on a bounded worker pool; individual failures only log. limit <= 0
// uses the configured sweep limit.
func (s *Service) Sweep(ctx context.Context, mediaType database.MediaType, limit int) error {
	if limit <= 0 {
		limit = s.cfg.SweepLimit
	}
	statuses, err := s.store.ListBelowCutoff(ctx, mediaType, limit)
	if err != nil {
		return err
	}

	now := time.Now()
	var eligible []*database.MediaQualityStatus
	for _, status := range statuses {
		if status.UpgradePaused || status.SearchStatus == database.SearchSearching {
			continue
		}
		if status.SearchStatus == database.SearchPendingRetry &&
			status.NextSearchAt != nil && status.NextSearchAt.After(now) {
			continue
		}
		eligible = append(eligible, status)
	}
	if len(eligible) == 0 {
		return nil
	}

	s.logger.Info().Int("items", len(eligible)).Msg("starting upgrade sweep")

	sem := make(chan struct{}, s.cfg.SweepWorkers)
	var wg sync.WaitGroup
	for _, status := range eligible {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(st *database.MediaQualityStatus) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := s.SearchUpgrade(ctx, st.MediaType, st.MediaID); err != nil {
				s.logger.Warn().Err(err).
					Int64("mediaId", st.MediaID).
					Str("mediaType", string(st.MediaType)).
					Msg("upgrade search failed")
			}
		}(status)
	}
	wg.Wait()
	return ctx.Err()
}

// Pause suspends or resumes upgrade searches for one item.
func (s *Service) Pause(ctx context.Context, mediaType database.MediaType, mediaID int64, paused bool) error {
	return s.store.SetUpgradePaused(ctx, mediaType, mediaID, paused)
}

// ResetSearch clears an item's retry state back to idle.
func (s *Service) ResetSearch(ctx context.Context, mediaType database.MediaType, mediaID int64) error {
	return s.store.UpdateSearchState(ctx, mediaType, mediaID, database.SearchIdle, 0, nil)
}

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
