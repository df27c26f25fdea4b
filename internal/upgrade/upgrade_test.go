package upgrade_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windrose/windrose/internal/database"
	"github.com/windrose/windrose/internal/indexer"
	"github.com/windrose/windrose/internal/parser"
	"github.com/windrose/windrose/internal/testutil"
	"github.com/windrose/windrose/internal/upgrade"
)

const upgradeFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <title>TestIndexer</title>
    <item>
      <title>Inception.2010.1080p.BluRay.x264-SPARKS</title>
      <guid>https://example.org/details/111</guid>
      <link>https://example.org/dl/111.torrent</link>
      <size>9663676416</size>
      <torznab:attr name="seeders" value="120"/>
    </item>
    <item>
      <title>Inception.2010.720p.HDTV.x264-LOL</title>
      <guid>https://example.org/details/333</guid>
      <link>https://example.org/dl/333.torrent</link>
      <size>1073741824</size>
      <torznab:attr name="seeders" value="80"/>
    </item>
  </channel>
</rss>`

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Empty</title></channel></rss>`

func feedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(t *testing.T, store *database.Store, cfg upgrade.Config) *upgrade.Service {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	agg := indexer.NewAggregator(store, indexer.NewRegistry(2*time.Second, logger), 2*time.Second, logger)
	return upgrade.NewService(store, agg, parser.DefaultGroupLists(), cfg, logger)
}

// seedBelowCutoff creates a movie stuck below its cutoff and returns it.
func seedBelowCutoff(t *testing.T, store *database.Store, title string, year int) *database.Movie {
	t.Helper()
	ctx := context.Background()

	lib := &database.Library{Name: "Movies " + title, Path: t.TempDir(), Type: database.LibraryMovies}
	require.NoError(t, store.CreateLibrary(ctx, lib))

	movie := &database.Movie{LibraryID: lib.ID, Title: title, Year: year, Path: lib.Path + "/" + title + ".mkv"}
	require.NoError(t, store.CreateMovie(ctx, movie))

	require.NoError(t, store.UpsertQualityStatus(ctx, &database.MediaQualityStatus{
		MediaID:           movie.ID,
		MediaType:         database.MediaTypeMovie,
		CurrentResolution: "720p",
		CurrentSource:     "webdl",
		CurrentScore:      20000,
		CutoffScore:       40000,
	}))
	return movie
}

func TestSearchUpgradeGrabsBestRelease(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()
	movie := seedBelowCutoff(t, store, "Inception", 2010)

	srv := feedServer(t, upgradeFeed)
	require.NoError(t, store.CreateIndexer(ctx, &database.Indexer{
		Name: "test", Type: database.IndexerTorznab, URL: srv.URL, APIKey: "k", Enabled: true,
	}))

	svc := newTestService(t, store, upgrade.Config{})
	outcome, err := svc.SearchUpgrade(ctx, database.MediaTypeMovie, movie.ID)
	require.NoError(t, err)

	require.True(t, outcome.Grabbed)
	assert.Equal(t, 2, outcome.Considered)
	require.NotNil(t, outcome.Download)
	assert.Equal(t, "Inception.2010.1080p.BluRay.x264-SPARKS", outcome.Download.Title)
	assert.Equal(t, database.DownloadQueued, outcome.Download.Status)
	assert.Equal(t, 120, outcome.Download.Seeders)

	status, err := store.GetQualityStatus(ctx, database.MediaTypeMovie, movie.ID)
	require.NoError(t, err)
	assert.Equal(t, database.SearchIdle, status.SearchStatus)
	assert.Equal(t, 0, status.SearchAttempts)
}

func TestSearchUpgradeNoCandidateSchedulesRetry(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()
	movie := seedBelowCutoff(t, store, "Obscure Film", 1998)

	srv := feedServer(t, emptyFeed)
	require.NoError(t, store.CreateIndexer(ctx, &database.Indexer{
		Name: "test", Type: database.IndexerTorznab, URL: srv.URL, APIKey: "k", Enabled: true,
	}))

	svc := newTestService(t, store, upgrade.Config{BackoffBase: 30 * time.Minute})
	outcome, err := svc.SearchUpgrade(ctx, database.MediaTypeMovie, movie.ID)
	require.NoError(t, err)

	assert.False(t, outcome.Grabbed)
	require.NotNil(t, outcome.NextSearch)

	status, err := store.GetQualityStatus(ctx, database.MediaTypeMovie, movie.ID)
	require.NoError(t, err)
	assert.Equal(t, database.SearchPendingRetry, status.SearchStatus)
	assert.Equal(t, 1, status.SearchAttempts)
	require.NotNil(t, status.NextSearchAt)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), *status.NextSearchAt, time.Minute)
}

func TestSearchUpgradeSkipsActiveDownload(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()
	movie := seedBelowCutoff(t, store, "Pending", 2020)

	require.NoError(t, store.CreateDownload(ctx, &database.Download{
		MediaID: &movie.ID, MediaType: database.MediaTypeMovie,
		Title: "Pending.2020.1080p.BluRay.x264-GRP", Status: database.DownloadDownloading,
	}))

	svc := newTestService(t, store, upgrade.Config{})
	outcome, err := svc.SearchUpgrade(ctx, database.MediaTypeMovie, movie.ID)
	require.NoError(t, err)
	assert.False(t, outcome.Grabbed)
	assert.Zero(t, outcome.Considered, "no indexer search while a grab is in flight")
}

func TestSearchUpgradePausedItemRefused(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()
	movie := seedBelowCutoff(t, store, "Paused", 2015)
	require.NoError(t, store.SetUpgradePaused(ctx, database.MediaTypeMovie, movie.ID, true))

	svc := newTestService(t, store, upgrade.Config{})
	_, err := svc.SearchUpgrade(ctx, database.MediaTypeMovie, movie.ID)
	require.ErrorIs(t, err, upgrade.ErrUpgradePaused)
}

func TestSweepSkipsPausedAndBackedOff(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()

	active := seedBelowCutoff(t, store, "Active", 2001)
	paused := seedBelowCutoff(t, store, "Paused", 2002)
	backedOff := seedBelowCutoff(t, store, "BackedOff", 2003)

	require.NoError(t, store.SetUpgradePaused(ctx, database.MediaTypeMovie, paused.ID, true))
	future := time.Now().Add(2 * time.Hour)
	require.NoError(t, store.UpdateSearchState(ctx, database.MediaTypeMovie, backedOff.ID,
		database.SearchPendingRetry, 2, &future))

	// No indexers configured: every searched item comes back empty and
	// lands in pending_retry
	svc := newTestService(t, store, upgrade.Config{SweepWorkers: 2})
	require.NoError(t, svc.Sweep(ctx, database.MediaTypeMovie, 0))

	status, err := store.GetQualityStatus(ctx, database.MediaTypeMovie, active.ID)
	require.NoError(t, err)
	assert.Equal(t, database.SearchPendingRetry, status.SearchStatus)
	assert.Equal(t, 1, status.SearchAttempts)

	status, err = store.GetQualityStatus(ctx, database.MediaTypeMovie, paused.ID)
	require.NoError(t, err)
	assert.Equal(t, database.SearchPaused, status.SearchStatus)
	assert.Equal(t, 0, status.SearchAttempts)

	status, err = store.GetQualityStatus(ctx, database.MediaTypeMovie, backedOff.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.SearchAttempts, "backed-off item untouched until its window elapses")
}

func TestListUpgradableAnnotatesTitles(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()
	movie := seedBelowCutoff(t, store, "Solaris", 1972)

	svc := newTestService(t, store, upgrade.Config{})
	items, err := svc.ListUpgradable(ctx, database.MediaTypeMovie, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, movie.ID, item.MediaID)
	assert.Equal(t, "Solaris", item.Title)
	assert.Equal(t, 1972, item.Year)
	assert.Equal(t, "720p", item.CurrentResolution)
	assert.Equal(t, 20000, item.CurrentScore)
	assert.Equal(t, 40000, item.CutoffScore)
}

func TestGetUpgradesGroupsEpisodesByShow(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()
	seedBelowCutoff(t, store, "Solaris", 1972)

	lib := &database.Library{Name: "TV", Path: t.TempDir(), Type: database.LibraryTV}
	require.NoError(t, store.CreateLibrary(ctx, lib))
	show := &database.Show{LibraryID: lib.ID, Title: "The Expanse", Year: 2015, Path: lib.Path + "/The Expanse"}
	require.NoError(t, store.CreateShow(ctx, show))
	season, err := store.GetOrCreateSeason(ctx, show.ID, 3)
	require.NoError(t, err)

	for _, num := range []int{4, 5} {
		episode := &database.Episode{SeasonID: season.ID, EpisodeNumber: num, Path: lib.Path + "/e" + string(rune('0'+num)) + ".mkv"}
		require.NoError(t, store.CreateEpisode(ctx, episode))
		require.NoError(t, store.UpsertQualityStatus(ctx, &database.MediaQualityStatus{
			MediaID:           episode.ID,
			MediaType:         database.MediaTypeEpisode,
			CurrentResolution: "720p",
			CurrentSource:     "hdtv",
			CurrentScore:      10000,
			CutoffScore:       40000,
		}))
	}

	svc := newTestService(t, store, upgrade.Config{})
	upgrades, err := svc.GetUpgrades(ctx)
	require.NoError(t, err)

	require.Len(t, upgrades.Movies, 1)
	assert.Equal(t, "Solaris", upgrades.Movies[0].Title)

	require.Len(t, upgrades.Shows, 1)
	group := upgrades.Shows[0]
	assert.Equal(t, "The Expanse", group.Title)
	require.Len(t, group.Episodes, 2)
	for _, ep := range group.Episodes {
		assert.Equal(t, 3, ep.Season)
	}
}

func TestResetSearch(t *testing.T) {
	store := testutil.NewTestStore(t)
	ctx := context.Background()
	movie := seedBelowCutoff(t, store, "Reset", 2010)

	next := time.Now().Add(time.Hour)
	require.NoError(t, store.UpdateSearchState(ctx, database.MediaTypeMovie, movie.ID,
		database.SearchPendingRetry, 4, &next))

	svc := newTestService(t, store, upgrade.Config{})
	require.NoError(t, svc.ResetSearch(ctx, database.MediaTypeMovie, movie.ID))

	status, err := store.GetQualityStatus(ctx, database.MediaTypeMovie, movie.ID)
	require.NoError(t, err)
	assert.Equal(t, database.SearchIdle, status.SearchStatus)
	assert.Equal(t, 0, status.SearchAttempts)
	assert.Nil(t, status.NextSearchAt)
}

func TestRetryDelay(t *testing.T) {
	base := 30 * time.Minute
	ceiling := 168 * time.Hour

	assert.Equal(t, 30*time.Minute, upgrade.RetryDelay(0, base, ceiling))
	assert.Equal(t, time.Hour, upgrade.RetryDelay(1, base, ceiling))
	assert.Equal(t, 4*time.Hour, upgrade.RetryDelay(3, base, ceiling))
	assert.Equal(t, ceiling, upgrade.RetryDelay(10, base, ceiling), "schedule caps at the ceiling")
	assert.Equal(t, ceiling, upgrade.RetryDelay(100, base, ceiling), "huge attempt counts never overflow")
}
