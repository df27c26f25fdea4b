package scanner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windrose/windrose/internal/database"
	"github.com/windrose/windrose/internal/parser"
	"github.com/windrose/windrose/internal/scanner"
	"github.com/windrose/windrose/internal/testutil"
)

func newTestScanner(t *testing.T, store *database.Store) *scanner.Service {
	t.Helper()
	svc := scanner.NewService(store, nil, nil, nil, parser.DefaultGroupLists(),
		scanner.Config{MissingGrace: 24 * time.Hour, SidecarWorkers: 1},
		testutil.NewTestLogger(t))
	t.Cleanup(svc.Close)
	return svc
}

func makeLibrary(t *testing.T, store *database.Store, typ database.LibraryType) *database.Library {
	t.Helper()
	lib := &database.Library{Name: string(typ), Path: t.TempDir(), Type: typ}
	require.NoError(t, store.CreateLibrary(context.Background(), lib))
	return lib
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("media"), 0o644))
}

func TestScanMovieLibrary(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := newTestScanner(t, store)
	ctx := context.Background()

	lib := makeLibrary(t, store, database.LibraryMovies)
	writeFile(t, filepath.Join(lib.Path, "Inception.2010.1080p.BluRay.x264-SPARKS.mkv"))
	writeFile(t, filepath.Join(lib.Path, "Inception.2010.sample.mkv"))
	writeFile(t, filepath.Join(lib.Path, "notes.txt"))

	run, err := svc.ScanLibrary(ctx, lib.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Added)
	assert.Equal(t, 0, run.Errors)

	// Organized into {Title} ({Year})/{Title} ({Year}).{ext}
	organized := filepath.Join(lib.Path, "Inception (2010)", "Inception (2010).mkv")
	assert.FileExists(t, organized)

	movie, err := store.GetMovieByPath(ctx, organized)
	require.NoError(t, err)
	assert.Equal(t, "Inception", movie.Title)
	assert.Equal(t, 2010, movie.Year)
	assert.False(t, movie.NeedsMatchReview)

	status, err := store.GetQualityStatus(ctx, database.MediaTypeMovie, movie.ID)
	require.NoError(t, err)
	assert.Equal(t, "1080p", status.CurrentResolution)
	assert.Equal(t, "bluray", status.CurrentSource)
	assert.Equal(t, 50003, status.CurrentScore)
	assert.Positive(t, status.CutoffScore)
}

func TestScanIsIdempotent(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := newTestScanner(t, store)
	ctx := context.Background()

	lib := makeLibrary(t, store, database.LibraryMovies)
	writeFile(t, filepath.Join(lib.Path, "Heat.1995.1080p.BluRay.x264-GECKOS.mkv"))

	first, err := svc.ScanLibrary(ctx, lib.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Added)

	second, err := svc.ScanLibrary(ctx, lib.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 1, second.Skipped)
}

func TestCleanupMissingAndReappear(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := newTestScanner(t, store)
	ctx := context.Background()

	lib := makeLibrary(t, store, database.LibraryMovies)
	path := filepath.Join(lib.Path, "Heat.1995.1080p.BluRay.x264-GECKOS.mkv")
	writeFile(t, path)

	_, err := svc.ScanLibrary(ctx, lib.ID)
	require.NoError(t, err)

	organized := filepath.Join(lib.Path, "Heat (1995)", "Heat (1995).mkv")
	movie, err := store.GetMovieByPath(ctx, organized)
	require.NoError(t, err)

	// File disappears: stamped missing but kept within grace
	require.NoError(t, os.Remove(organized))
	_, err = svc.ScanLibrary(ctx, lib.ID)
	require.NoError(t, err)

	got, err := store.GetMovie(ctx, movie.ID)
	require.NoError(t, err)
	require.NotNil(t, got.MissingSince)

	// File reappears: flag cleared
	writeFile(t, organized)
	_, err = svc.ScanLibrary(ctx, lib.ID)
	require.NoError(t, err)

	got, err = store.GetMovie(ctx, movie.ID)
	require.NoError(t, err)
	assert.Nil(t, got.MissingSince)
}

func TestCleanupDeletesPastGrace(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := newTestScanner(t, store)
	ctx := context.Background()

	lib := makeLibrary(t, store, database.LibraryMovies)
	movie := &database.Movie{
		LibraryID: lib.ID,
		Title:     "Gone",
		Year:      2001,
		Path:      filepath.Join(lib.Path, "Gone (2001)", "Gone (2001).mkv"),
	}
	require.NoError(t, store.CreateMovie(ctx, movie))
	require.NoError(t, store.MarkMovieMissing(ctx, movie.ID, time.Now().Add(-48*time.Hour)))

	_, err := svc.ScanLibrary(ctx, lib.ID)
	require.NoError(t, err)

	_, err = store.GetMovie(ctx, movie.ID)
	assert.ErrorIs(t, err, database.ErrMovieNotFound)
}

func TestScanTVLibrary(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := newTestScanner(t, store)
	ctx := context.Background()

	lib := makeLibrary(t, store, database.LibraryTV)
	showDir := filepath.Join(lib.Path, "The Expanse (2015)")
	writeFile(t, filepath.Join(showDir, "Season 03", "The.Expanse.S03E04.2160p.WEB-DL.DDP5.1.HDR.HEVC-NTb.mkv"))
	writeFile(t, filepath.Join(showDir, "Season 03", "The.Expanse.S03E05.2160p.WEB-DL.DDP5.1.HDR.HEVC-NTb.mkv"))

	run, err := svc.ScanLibrary(ctx, lib.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Added)

	show, err := store.GetShowByPath(ctx, showDir)
	require.NoError(t, err)
	assert.Equal(t, "The Expanse", show.Title)
	assert.Equal(t, 2015, show.Year)

	episodes, err := store.ListEpisodesByShow(ctx, show.ID)
	require.NoError(t, err)
	require.Len(t, episodes, 2)
	assert.Equal(t, 4, episodes[0].EpisodeNumber)
	assert.False(t, episodes[0].NeedsMatchReview)

	status, err := store.GetQualityStatus(ctx, database.MediaTypeEpisode, episodes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "2160p", status.CurrentResolution)
	assert.Equal(t, "webdl", status.CurrentSource)
}

func TestScanAnimeAbsoluteNeedsReview(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := newTestScanner(t, store)
	ctx := context.Background()

	lib := makeLibrary(t, store, database.LibraryTV)
	writeFile(t, filepath.Join(lib.Path, "[SubsPlease] Frieren - 28 (1080p) [ABCD1234].mkv"))

	run, err := svc.ScanLibrary(ctx, lib.ID)
	require.NoError(t, err)
	require.Equal(t, 1, run.Added)

	shows, err := store.ListShowsByLibrary(ctx, lib.ID)
	require.NoError(t, err)
	require.Len(t, shows, 1)

	episodes, err := store.ListEpisodesByShow(ctx, shows[0].ID)
	require.NoError(t, err)
	require.Len(t, episodes, 1)

	// Flat numbering lands in season 1 and stays flagged for review
	assert.Equal(t, 28, episodes[0].EpisodeNumber)
	assert.Equal(t, 28, episodes[0].AbsoluteNumber)
	assert.True(t, episodes[0].NeedsMatchReview)
}

func TestScanMultiEpisodeOverlapSkipped(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := newTestScanner(t, store)
	ctx := context.Background()

	lib := makeLibrary(t, store, database.LibraryTV)
	season := filepath.Join(lib.Path, "The Expanse (2015)", "Season 03")
	writeFile(t, filepath.Join(season, "The.Expanse.S03E04-E05.1080p.WEB-DL-NTb.mkv"))
	writeFile(t, filepath.Join(season, "The.Expanse.S03E05.1080p.WEB-DL-NTb.mkv"))

	run, err := svc.ScanLibrary(ctx, lib.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Added)
	assert.Equal(t, 1, run.Skipped, "single episode inside a multi-episode span is skipped")
	assert.Equal(t, 0, run.Errors)
}

func TestScanMusicLibrary(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := newTestScanner(t, store)
	ctx := context.Background()

	lib := makeLibrary(t, store, database.LibraryMusic)
	writeFile(t, filepath.Join(lib.Path, "Radiohead", "In Rainbows (2007)", "01 - 15 Step.flac"))
	writeFile(t, filepath.Join(lib.Path, "Radiohead", "In Rainbows (2007)", "02 - Bodysnatchers.flac"))

	run, err := svc.ScanLibrary(ctx, lib.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Added)

	tracks, err := store.ListTracksByLibrary(ctx, lib.ID)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, 1, tracks[0].TrackNumber)
	assert.Equal(t, "15 Step", tracks[0].Title)
}

func TestScanBookLibrary(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := newTestScanner(t, store)
	ctx := context.Background()

	lib := makeLibrary(t, store, database.LibraryBooks)
	writeFile(t, filepath.Join(lib.Path, "Ursula K. Le Guin", "The Dispossessed.epub"))

	run, err := svc.ScanLibrary(ctx, lib.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Added)

	books, err := store.ListBooksByLibrary(ctx, lib.ID)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Ursula K. Le Guin", books[0].Author)
	assert.Equal(t, "The Dispossessed", books[0].Title)
}

func TestScanTrustedGroupScoreBonus(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := newTestScanner(t, store)
	ctx := context.Background()

	lib := makeLibrary(t, store, database.LibraryMovies)
	writeFile(t, filepath.Join(lib.Path, "Heat.1995.1080p.BluRay.x264-CtrlHD.mkv"))

	_, err := svc.ScanLibrary(ctx, lib.ID)
	require.NoError(t, err)

	movies, err := store.ListMoviesByLibrary(ctx, lib.ID)
	require.NoError(t, err)
	require.Len(t, movies, 1)

	// Same release from an unlisted group stamps 50003; a trusted group
	// earns its reputation bonus in the stored score
	status, err := store.GetQualityStatus(ctx, database.MediaTypeMovie, movies[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 50008, status.CurrentScore)
}

func TestRescanQualityStatus(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := newTestScanner(t, store)
	ctx := context.Background()

	lib := makeLibrary(t, store, database.LibraryMovies)
	writeFile(t, filepath.Join(lib.Path, "Inception.2010.1080p.BluRay.x264-SPARKS.mkv"))

	_, err := svc.ScanLibrary(ctx, lib.ID)
	require.NoError(t, err)

	movies, err := store.ListMoviesByLibrary(ctx, lib.ID)
	require.NoError(t, err)
	require.Len(t, movies, 1)

	// Wipe the status, then rescan restores it
	require.NoError(t, store.DeleteQualityStatus(ctx, database.MediaTypeMovie, movies[0].ID))
	require.NoError(t, svc.RescanQualityStatus(ctx))

	status, err := store.GetQualityStatus(ctx, database.MediaTypeMovie, movies[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 50003, status.CurrentScore)
}

func TestScanRecordsRun(t *testing.T) {
	store := testutil.NewTestStore(t)
	svc := newTestScanner(t, store)
	ctx := context.Background()

	lib := makeLibrary(t, store, database.LibraryMovies)
	writeFile(t, filepath.Join(lib.Path, "Heat.1995.1080p.BluRay.x264-GECKOS.mkv"))

	_, err := svc.ScanLibrary(ctx, lib.ID)
	require.NoError(t, err)

	last, err := store.GetLastScanRun(ctx, lib.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, last.Added)
}
