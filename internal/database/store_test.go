package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windrose/windrose/internal/database"
	"github.com/windrose/windrose/internal/quality"
	"github.com/windrose/windrose/internal/testutil"
)

func TestLibraryCRUD(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	lib := &database.Library{Name: "Movies", Path: "/media/movies", Type: database.LibraryMovies}
	require.NoError(t, store.CreateLibrary(ctx, lib))
	require.NotZero(t, lib.ID)

	got, err := store.GetLibrary(ctx, lib.ID)
	require.NoError(t, err)
	assert.Equal(t, "Movies", got.Name)
	assert.Equal(t, database.LibraryMovies, got.Type)

	byType, err := store.GetLibraryByType(ctx, database.LibraryMovies)
	require.NoError(t, err)
	assert.Equal(t, lib.ID, byType.ID)

	_, err = store.GetLibraryByType(ctx, database.LibraryTV)
	assert.ErrorIs(t, err, database.ErrLibraryNotFound)

	require.NoError(t, store.DeleteLibrary(ctx, lib.ID))
	_, err = store.GetLibrary(ctx, lib.ID)
	assert.ErrorIs(t, err, database.ErrLibraryNotFound)
}

func TestMovieLifecycle(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	lib := &database.Library{Name: "Movies", Path: "/media/movies", Type: database.LibraryMovies}
	require.NoError(t, store.CreateLibrary(ctx, lib))

	movie := &database.Movie{
		LibraryID:       lib.ID,
		Title:           "Inception",
		Year:            2010,
		Path:            "/media/movies/Inception (2010)/Inception (2010).mkv",
		Size:            12_000_000_000,
		MatchConfidence: 1.0,
	}
	require.NoError(t, store.CreateMovie(ctx, movie))

	byPath, err := store.GetMovieByPath(ctx, movie.Path)
	require.NoError(t, err)
	assert.Equal(t, movie.ID, byPath.ID)
	assert.Nil(t, byPath.MissingSince)

	// Duplicate path is rejected by the schema
	dup := &database.Movie{LibraryID: lib.ID, Title: "Inception", Path: movie.Path}
	assert.Error(t, store.CreateMovie(ctx, dup))

	// Missing lifecycle: stamp, reappear, stamp old, delete past grace
	require.NoError(t, store.MarkMovieMissing(ctx, movie.ID, time.Now()))
	got, err := store.GetMovie(ctx, movie.ID)
	require.NoError(t, err)
	require.NotNil(t, got.MissingSince)

	require.NoError(t, store.ClearMovieMissing(ctx, movie.ID))
	got, err = store.GetMovie(ctx, movie.ID)
	require.NoError(t, err)
	assert.Nil(t, got.MissingSince)

	require.NoError(t, store.MarkMovieMissing(ctx, movie.ID, time.Now().Add(-48*time.Hour)))
	deleted, err := store.DeleteMissingMovies(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []int64{movie.ID}, deleted)

	_, err = store.GetMovie(ctx, movie.ID)
	assert.ErrorIs(t, err, database.ErrMovieNotFound)
}

func TestMissingWithinGraceSurvives(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	lib := &database.Library{Name: "Movies", Path: "/media/movies", Type: database.LibraryMovies}
	require.NoError(t, store.CreateLibrary(ctx, lib))
	movie := &database.Movie{LibraryID: lib.ID, Title: "Heat", Year: 1995, Path: "/media/movies/Heat (1995).mkv"}
	require.NoError(t, store.CreateMovie(ctx, movie))

	require.NoError(t, store.MarkMovieMissing(ctx, movie.ID, time.Now().Add(-1*time.Hour)))
	deleted, err := store.DeleteMissingMovies(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	_, err = store.GetMovie(ctx, movie.ID)
	assert.NoError(t, err)
}

func TestEpisodeOverlapInvariant(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	lib := &database.Library{Name: "TV", Path: "/media/tv", Type: database.LibraryTV}
	require.NoError(t, store.CreateLibrary(ctx, lib))
	show := &database.Show{LibraryID: lib.ID, Title: "The Expanse", Path: "/media/tv/The Expanse", MatchConfidence: 1.0}
	require.NoError(t, store.CreateShow(ctx, show))
	season, err := store.GetOrCreateSeason(ctx, show.ID, 3)
	require.NoError(t, err)

	multi := &database.Episode{
		SeasonID:      season.ID,
		EpisodeNumber: 4,
		EpisodeEnd:    5,
		Path:          "/media/tv/The Expanse/Season 03/The Expanse - S03E04-E05.mkv",
	}
	require.NoError(t, store.CreateEpisode(ctx, multi))

	// Single episode inside the covered range must be rejected
	inside := &database.Episode{
		SeasonID:      season.ID,
		EpisodeNumber: 5,
		Path:          "/media/tv/The Expanse/Season 03/The Expanse - S03E05.mkv",
	}
	assert.ErrorIs(t, store.CreateEpisode(ctx, inside), database.ErrEpisodeOverlap)

	// Adjacent episode is fine
	next := &database.Episode{
		SeasonID:      season.ID,
		EpisodeNumber: 6,
		Path:          "/media/tv/The Expanse/Season 03/The Expanse - S03E06.mkv",
	}
	require.NoError(t, store.CreateEpisode(ctx, next))

	// Season uniqueness: same (show, number) returns the existing row
	again, err := store.GetOrCreateSeason(ctx, show.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, season.ID, again.ID)

	eps, err := store.ListEpisodesByShow(ctx, show.ID)
	require.NoError(t, err)
	require.Len(t, eps, 2)
	assert.Equal(t, 5, eps[0].EpisodeEnd)
}

func TestQualityStatusUpsertAndCutoff(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	status := &database.MediaQualityStatus{
		MediaID:           1,
		MediaType:         database.MediaTypeMovie,
		CurrentResolution: "1080p",
		CurrentSource:     "webdl",
		CurrentScore:      40000,
		CutoffScore:       100000,
	}
	require.NoError(t, store.UpsertQualityStatus(ctx, status))

	got, err := store.GetQualityStatus(ctx, database.MediaTypeMovie, 1)
	require.NoError(t, err)
	assert.False(t, got.TargetMet)
	assert.Equal(t, database.SearchIdle, got.SearchStatus)

	// Upgrade lands: score now exceeds cutoff, targetMet derives true
	status.CurrentResolution = "2160p"
	status.CurrentSource = "remux"
	status.CurrentScore = 100020
	require.NoError(t, store.UpsertQualityStatus(ctx, status))

	got, err = store.GetQualityStatus(ctx, database.MediaTypeMovie, 1)
	require.NoError(t, err)
	assert.True(t, got.TargetMet)

	below, err := store.ListBelowCutoff(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, below, "items at cutoff leave the upgrade list")
}

func TestListBelowCutoffOrdersByGap(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	small := &database.MediaQualityStatus{
		MediaID: 1, MediaType: database.MediaTypeMovie,
		CurrentScore: 90000, CutoffScore: 100000,
	}
	large := &database.MediaQualityStatus{
		MediaID: 2, MediaType: database.MediaTypeMovie,
		CurrentScore: 2000, CutoffScore: 100000,
	}
	require.NoError(t, store.UpsertQualityStatus(ctx, small))
	require.NoError(t, store.UpsertQualityStatus(ctx, large))

	below, err := store.ListBelowCutoff(ctx, database.MediaTypeMovie, 10)
	require.NoError(t, err)
	require.Len(t, below, 2)
	assert.Equal(t, int64(2), below[0].MediaID, "largest score gap first")
}

func TestSearchStateTransitions(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	status := &database.MediaQualityStatus{
		MediaID: 7, MediaType: database.MediaTypeEpisode,
		CurrentScore: 15000, CutoffScore: 40000,
	}
	require.NoError(t, store.UpsertQualityStatus(ctx, status))

	next := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)
	require.NoError(t, store.UpdateSearchState(ctx, database.MediaTypeEpisode, 7,
		database.SearchPendingRetry, 3, &next))

	got, err := store.GetQualityStatus(ctx, database.MediaTypeEpisode, 7)
	require.NoError(t, err)
	assert.Equal(t, database.SearchPendingRetry, got.SearchStatus)
	assert.Equal(t, 3, got.SearchAttempts)
	require.NotNil(t, got.NextSearchAt)

	require.NoError(t, store.SetUpgradePaused(ctx, database.MediaTypeEpisode, 7, true))
	got, err = store.GetQualityStatus(ctx, database.MediaTypeEpisode, 7)
	require.NoError(t, err)
	assert.True(t, got.UpgradePaused)
	assert.Equal(t, database.SearchPaused, got.SearchStatus)

	require.NoError(t, store.SetUpgradePaused(ctx, database.MediaTypeEpisode, 7, false))
	got, err = store.GetQualityStatus(ctx, database.MediaTypeEpisode, 7)
	require.NoError(t, err)
	assert.Equal(t, database.SearchIdle, got.SearchStatus)
}

func TestPresetSeedAndRoundtrip(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SeedBuiltInPresets(ctx))
	presets, err := store.ListPresets(ctx)
	require.NoError(t, err)
	assert.Len(t, presets, len(quality.BuiltInPresets()))

	// Seeding twice does not duplicate
	require.NoError(t, store.SeedBuiltInPresets(ctx))
	again, err := store.ListPresets(ctx)
	require.NoError(t, err)
	assert.Len(t, again, len(presets))

	def, err := store.GetDefaultPreset(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Balanced", def.Name)
	assert.Equal(t, []string{"bluray", "webdl", "webrip"}, def.Sources)
	assert.Equal(t, quality.CutoffStop, def.CutoffMetBehavior)

	// Flipping default clears the old one
	other, err := store.GetPreset(ctx, presets[0].ID)
	require.NoError(t, err)
	other.IsDefault = true
	require.NoError(t, store.UpdatePreset(ctx, other))

	def, err = store.GetDefaultPreset(ctx)
	require.NoError(t, err)
	assert.Equal(t, other.ID, def.ID)
}

func TestDownloadLifecycle(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	mediaID := int64(42)
	d := &database.Download{
		GUID:      "abc-123",
		MediaID:   &mediaID,
		MediaType: database.MediaTypeMovie,
		Title:     "Dune.Part.Two.2024.2160p.BluRay.REMUX-FraMeSToR",
		Size:      60_000_000_000,
		Seeders:   45,
	}
	require.NoError(t, store.CreateDownload(ctx, d))

	got, err := store.GetDownload(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, database.DownloadQueued, got.Status)
	require.NotNil(t, got.MediaID)
	assert.Equal(t, mediaID, *got.MediaID)

	active, err := store.ListActiveDownloadsForMedia(ctx, database.MediaTypeMovie, mediaID)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, store.UpdateDownloadStatus(ctx, d.ID, database.DownloadCompleted))
	completed, err := store.ListDownloadsByStatus(ctx, database.DownloadCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)

	require.NoError(t, store.SetDownloadImported(ctx, d.ID, "/media/movies/Dune Part Two (2024)/Dune Part Two (2024).mkv"))
	got, err = store.GetDownload(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, database.DownloadImported, got.Status)
	assert.NotEmpty(t, got.ImportedPath)

	active, err = store.ListActiveDownloadsForMedia(ctx, database.MediaTypeMovie, mediaID)
	require.NoError(t, err)
	assert.Empty(t, active, "imported downloads are terminal")
}

func TestNamingTemplateFallback(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	movie, err := store.GetNamingTemplate(ctx, "movie")
	require.NoError(t, err)
	assert.Equal(t, "{Title} ({Year})", movie.FolderTemplate)

	tv, err := store.GetNamingTemplate(ctx, "tv")
	require.NoError(t, err)
	assert.Contains(t, tv.FileTemplate, "S{Season:00}E{Episode:00}")

	custom := &database.NamingTemplate{Type: "movie", FolderTemplate: "{Title}", FileTemplate: "{Title} {Resolution}"}
	require.NoError(t, store.UpsertNamingTemplate(ctx, custom))
	movie, err = store.GetNamingTemplate(ctx, "movie")
	require.NoError(t, err)
	assert.Equal(t, "{Title} {Resolution}", movie.FileTemplate)
}

func TestSettingsReadThrough(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	v, err := store.GetSetting(ctx, "subtitles.autoDownload", "false")
	require.NoError(t, err)
	assert.Equal(t, "false", v)

	require.NoError(t, store.SetSetting(ctx, "subtitles.autoDownload", "true"))
	v, err = store.GetSetting(ctx, "subtitles.autoDownload", "false")
	require.NoError(t, err)
	assert.Equal(t, "true", v)
}

func TestChapterReplace(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	first := []database.Chapter{
		{ChapterIndex: 0, Title: "Opening", Start: 0, End: 10 * time.Minute},
		{ChapterIndex: 1, Title: "Act One", Start: 10 * time.Minute, End: 40 * time.Minute},
	}
	require.NoError(t, store.ReplaceChapters(ctx, database.MediaTypeMovie, 1, first))

	replacement := []database.Chapter{
		{ChapterIndex: 0, Title: "Prologue", Start: 0, End: 5 * time.Minute},
	}
	require.NoError(t, store.ReplaceChapters(ctx, database.MediaTypeMovie, 1, replacement))

	got, err := store.ListChapters(ctx, database.MediaTypeMovie, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Prologue", got[0].Title)
	assert.Equal(t, 5*time.Minute, got[0].End)
}

func TestScanRunHistory(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordScanRun(ctx, &database.ScanRun{LibraryID: 1, Added: 10, Skipped: 2}))
	require.NoError(t, store.RecordScanRun(ctx, &database.ScanRun{LibraryID: 1, Added: 1, Skipped: 11}))

	last, err := store.GetLastScanRun(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, last.Added)
	assert.Equal(t, 11, last.Skipped)

	_, err = store.GetLastScanRun(ctx, 99)
	assert.ErrorIs(t, err, database.ErrScanRunNotFound)
}
