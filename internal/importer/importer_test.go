package importer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windrose/windrose/internal/database"
	"github.com/windrose/windrose/internal/importer"
	"github.com/windrose/windrose/internal/parser"
	"github.com/windrose/windrose/internal/quality"
	"github.com/windrose/windrose/internal/testutil"
)

func newTestImporter(t *testing.T) (*importer.Service, *database.Store) {
	t.Helper()
	store := testutil.NewTestStore(t)
	return importer.NewService(store, parser.DefaultGroupLists(), testutil.NewTestLogger(t)), store
}

func makeMovieLibrary(t *testing.T, store *database.Store) *database.Library {
	t.Helper()
	lib := &database.Library{Name: "Movies", Path: t.TempDir(), Type: database.LibraryMovies}
	require.NoError(t, store.CreateLibrary(context.Background(), lib))
	return lib
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestImportCompletedMovie(t *testing.T) {
	svc, store := newTestImporter(t)
	ctx := context.Background()
	lib := makeMovieLibrary(t, store)

	movie := &database.Movie{
		LibraryID: lib.ID, Title: "Foo", Year: 2010,
		Path: filepath.Join(lib.Path, "Foo (2010)", "Foo.old.mkv"),
	}
	require.NoError(t, store.CreateMovie(ctx, movie))

	source := filepath.Join(t.TempDir(), "Foo.2010.1080p.BluRay.x264-GRP")
	mainFile := filepath.Join(source, "Foo.2010.1080p.BluRay.x264-GRP.mkv")
	writeFile(t, mainFile, "main feature content, the largest file")
	writeFile(t, filepath.Join(source, "foo-sample.mkv"), "sample")
	writeFile(t, filepath.Join(source, "Foo.2010.1080p.BluRay.x264-GRP.en.srt"), "subs")

	download := &database.Download{
		MediaID: &movie.ID, MediaType: database.MediaTypeMovie,
		Title: "Foo.2010.1080p.BluRay.x264-GRP", Status: database.DownloadCompleted,
		DownloadPath: source,
	}
	require.NoError(t, store.CreateDownload(ctx, download))

	require.NoError(t, svc.ProcessImport(ctx, download, source))

	dest := filepath.Join(lib.Path, "Foo (2010)", "Foo (2010).mkv")
	assert.FileExists(t, dest)
	assert.FileExists(t, filepath.Join(lib.Path, "Foo (2010)", "Foo (2010).en.srt"))
	assert.NoFileExists(t, mainFile)
	// The ignored sample stays behind, so the source dir survives the sweep
	assert.FileExists(t, filepath.Join(source, "foo-sample.mkv"))

	got, err := store.GetDownload(ctx, download.ID)
	require.NoError(t, err)
	assert.Equal(t, database.DownloadImported, got.Status)
	assert.Equal(t, dest, got.ImportedPath)

	updated, err := store.GetMovie(ctx, movie.ID)
	require.NoError(t, err)
	assert.Equal(t, dest, updated.Path)

	history, err := store.ListImportHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.Equal(t, dest, history[0].DestPath)
}

func TestImportStampsQualityStatus(t *testing.T) {
	svc, store := newTestImporter(t)
	ctx := context.Background()
	lib := makeMovieLibrary(t, store)

	movie := &database.Movie{LibraryID: lib.ID, Title: "Inception", Year: 2010, Path: filepath.Join(lib.Path, "old.mkv")}
	require.NoError(t, store.CreateMovie(ctx, movie))

	source := filepath.Join(t.TempDir(), "grab")
	writeFile(t, filepath.Join(source, "Inception.2010.2160p.Remux.HEVC-GRP.mkv"), "remux payload")

	download := &database.Download{MediaID: &movie.ID, MediaType: database.MediaTypeMovie, Title: "Inception remux"}
	require.NoError(t, store.CreateDownload(ctx, download))

	require.NoError(t, svc.ProcessImport(ctx, download, source))

	status, err := store.GetQualityStatus(ctx, database.MediaTypeMovie, movie.ID)
	require.NoError(t, err)
	assert.Equal(t, "2160p", status.CurrentResolution)
	assert.Equal(t, "remux", status.CurrentSource)
	assert.True(t, status.TargetMet, "remux import should satisfy the cutoff")
}

func TestImportStampsTrustedGroupBonus(t *testing.T) {
	svc, store := newTestImporter(t)
	ctx := context.Background()
	lib := makeMovieLibrary(t, store)

	movie := &database.Movie{LibraryID: lib.ID, Title: "Dune", Year: 2021, Path: filepath.Join(lib.Path, "old.mkv")}
	require.NoError(t, store.CreateMovie(ctx, movie))

	name := "Dune.2021.1080p.BluRay.x264-NTb.mkv"
	source := filepath.Join(t.TempDir(), "grab")
	writeFile(t, filepath.Join(source, name), "payload")

	download := &database.Download{MediaID: &movie.ID, MediaType: database.MediaTypeMovie, Title: "Dune"}
	require.NoError(t, store.CreateDownload(ctx, download))

	require.NoError(t, svc.ProcessImport(ctx, download, source))

	status, err := store.GetQualityStatus(ctx, database.MediaTypeMovie, movie.ID)
	require.NoError(t, err)

	// Stored score must match what search-time ranking computes for the
	// same release, reputation bonus included
	parsed := parser.Parse(name)
	assert.Equal(t, quality.Score(parsed, nil, parser.DefaultGroupLists(), "movie"), status.CurrentScore)
	assert.Equal(t, quality.Score(parsed, nil, nil, "movie")+5, status.CurrentScore)
}

func TestImportCatalogConflictRestoresSource(t *testing.T) {
	svc, store := newTestImporter(t)
	ctx := context.Background()
	lib := makeMovieLibrary(t, store)

	dest := filepath.Join(lib.Path, "Foo (2010)", "Foo (2010).mkv")
	// Another movie row already owns the canonical path this import
	// resolves to, so the catalog update hits the unique path constraint
	squatter := &database.Movie{LibraryID: lib.ID, Title: "Foo Duplicate", Year: 2010, Path: dest}
	require.NoError(t, store.CreateMovie(ctx, squatter))

	movie := &database.Movie{LibraryID: lib.ID, Title: "Foo", Year: 2010, Path: filepath.Join(lib.Path, "other.mkv")}
	require.NoError(t, store.CreateMovie(ctx, movie))

	source := filepath.Join(t.TempDir(), "grab")
	mainFile := filepath.Join(source, "Foo.2010.1080p.BluRay.x264-GRP.mkv")
	writeFile(t, mainFile, "payload")

	download := &database.Download{MediaID: &movie.ID, MediaType: database.MediaTypeMovie, Title: "Foo"}
	require.NoError(t, store.CreateDownload(ctx, download))

	require.Error(t, svc.ProcessImport(ctx, download, source))

	assert.FileExists(t, mainFile, "failed import must put the main file back")
	assert.NoFileExists(t, dest)

	got, err := store.GetDownload(ctx, download.ID)
	require.NoError(t, err)
	assert.Equal(t, database.DownloadFailed, got.Status)

	unchanged, err := store.GetMovie(ctx, movie.ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(lib.Path, "other.mkv"), unchanged.Path)
}

func TestImportUpgradeReplacesOldFile(t *testing.T) {
	svc, store := newTestImporter(t)
	ctx := context.Background()
	lib := makeMovieLibrary(t, store)

	oldFile := filepath.Join(lib.Path, "Foo (2010)", "Foo (2010).mkv")
	writeFile(t, oldFile, "720p copy")
	movie := &database.Movie{LibraryID: lib.ID, Title: "Foo", Year: 2010, Path: oldFile}
	require.NoError(t, store.CreateMovie(ctx, movie))

	source := filepath.Join(t.TempDir(), "upgrade")
	writeFile(t, filepath.Join(source, "Foo.2010.2160p.BluRay.x265-GRP.mkv"), "much larger 2160p copy")

	download := &database.Download{MediaID: &movie.ID, MediaType: database.MediaTypeMovie, Title: "Foo upgrade"}
	require.NoError(t, store.CreateDownload(ctx, download))

	require.NoError(t, svc.ProcessImport(ctx, download, source))

	// Same canonical path: new content overwrote old, catalog still points
	// at exactly one file
	updated, err := store.GetMovie(ctx, movie.ID)
	require.NoError(t, err)
	assert.Equal(t, oldFile, updated.Path)
	content, err := os.ReadFile(oldFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "2160p")
}

func TestImportEpisode(t *testing.T) {
	svc, store := newTestImporter(t)
	ctx := context.Background()
	lib := &database.Library{Name: "TV", Path: t.TempDir(), Type: database.LibraryTV}
	require.NoError(t, store.CreateLibrary(ctx, lib))

	show := &database.Show{LibraryID: lib.ID, Title: "The Expanse", Year: 2015, Path: filepath.Join(lib.Path, "The Expanse")}
	require.NoError(t, store.CreateShow(ctx, show))
	season, err := store.GetOrCreateSeason(ctx, show.ID, 3)
	require.NoError(t, err)
	episode := &database.Episode{SeasonID: season.ID, EpisodeNumber: 4, Path: filepath.Join(lib.Path, "old.mkv")}
	require.NoError(t, store.CreateEpisode(ctx, episode))

	source := filepath.Join(t.TempDir(), "grab")
	writeFile(t, filepath.Join(source, "The.Expanse.S03E04.1080p.WEB-DL.x264-GRP.mkv"), "episode")

	download := &database.Download{MediaID: &episode.ID, MediaType: database.MediaTypeEpisode, Title: "The Expanse S03E04"}
	require.NoError(t, store.CreateDownload(ctx, download))

	require.NoError(t, svc.ProcessImport(ctx, download, source))

	dest := filepath.Join(lib.Path, "The Expanse", "Season 03", "The Expanse - S03E04.mkv")
	assert.FileExists(t, dest)

	updated, err := store.GetEpisode(ctx, episode.ID)
	require.NoError(t, err)
	assert.Equal(t, dest, updated.Path)
}

func TestImportUnmatchedParksContent(t *testing.T) {
	svc, store := newTestImporter(t)
	ctx := context.Background()
	lib := makeMovieLibrary(t, store)

	source := filepath.Join(t.TempDir(), "Mystery.Release.2024-GRP")
	writeFile(t, filepath.Join(source, "Mystery.Release.2024-GRP.mkv"), "unknown content")

	download := &database.Download{Title: "Mystery.Release.2024-GRP"}
	require.NoError(t, store.CreateDownload(ctx, download))

	require.NoError(t, svc.ProcessImport(ctx, download, source))

	parked := filepath.Join(lib.Path, "_Unmatched", "Mystery.Release.2024-GRP")
	assert.FileExists(t, filepath.Join(parked, "Mystery.Release.2024-GRP.mkv"))

	got, err := store.GetDownload(ctx, download.ID)
	require.NoError(t, err)
	assert.Equal(t, database.DownloadUnmatched, got.Status)
}

func TestImportFailurePreservesSource(t *testing.T) {
	svc, store := newTestImporter(t)
	ctx := context.Background()
	makeMovieLibrary(t, store)

	// Only a sample file: nothing importable
	source := filepath.Join(t.TempDir(), "bad-release")
	samplePath := filepath.Join(source, "movie-sample.mkv")
	writeFile(t, samplePath, "sample only")

	mediaID := int64(9999)
	download := &database.Download{MediaID: &mediaID, MediaType: database.MediaTypeMovie, Title: "bad release"}
	require.NoError(t, store.CreateDownload(ctx, download))

	err := svc.ProcessImport(ctx, download, source)
	require.ErrorIs(t, err, importer.ErrNoVideoFiles)

	assert.FileExists(t, samplePath, "failed import must never delete the source")

	got, dbErr := store.GetDownload(ctx, download.ID)
	require.NoError(t, dbErr)
	assert.Equal(t, database.DownloadFailed, got.Status)
	assert.NotEmpty(t, got.Error)

	history, dbErr := store.ListImportHistory(ctx, 10)
	require.NoError(t, dbErr)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
}

func TestImportMissingMediaRowFails(t *testing.T) {
	svc, store := newTestImporter(t)
	ctx := context.Background()
	makeMovieLibrary(t, store)

	source := filepath.Join(t.TempDir(), "grab")
	writeFile(t, filepath.Join(source, "Gone.2020.1080p.WEB-DL.x264-GRP.mkv"), "payload")

	mediaID := int64(424242)
	download := &database.Download{MediaID: &mediaID, MediaType: database.MediaTypeMovie, Title: "Gone"}
	require.NoError(t, store.CreateDownload(ctx, download))

	require.Error(t, svc.ProcessImport(ctx, download, source))
	assert.FileExists(t, filepath.Join(source, "Gone.2020.1080p.WEB-DL.x264-GRP.mkv"))
}

func TestRenderTemplate(t *testing.T) {
	values := importer.TemplateValues{
		Title: "Foo: Bar", Year: 2010, Season: 3, Episode: 4,
		EpisodeTitle: "Reload", Resolution: "1080p", Source: "bluray", Codec: "avc",
		AirDate: time.Date(2018, 4, 25, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"movie folder", "{Title} ({Year})", "Foo Bar (2010)"},
		{"zero padding", "S{Season:00}E{Episode:00}", "S03E04"},
		{"episode file", "{Title} - S{Season:00}E{Episode:00} - {EpisodeTitle}", "Foo Bar - S03E04 - Reload"},
		{"quality tokens", "{Title} [{Resolution} {Source} {Codec}]", "Foo Bar [1080p bluray avc]"},
		{"air date", "{Title} - {Air-Date}", "Foo Bar - 2018-04-25"},
		{"unknown token stays literal", "{Title} {Bogus}", "Foo Bar {Bogus}"},
		{"nested folder", "{Title}/Season {Season:00}", "Foo Bar/Season 03"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, importer.RenderTemplate(tt.template, values))
		})
	}
}

func TestRenderTemplateMultiEpisode(t *testing.T) {
	values := importer.TemplateValues{Title: "Show", Season: 1, Episode: 4, EpisodeEnd: 5}
	assert.Equal(t, "Show - S01E04-E05", importer.RenderTemplate("{Title} - S{Season:00}E{Episode:00}", values))
}

func TestRenderTemplateMissingYear(t *testing.T) {
	values := importer.TemplateValues{Title: "Undated"}
	assert.Equal(t, "Undated", importer.RenderTemplate("{Title} ({Year})", values))
}
