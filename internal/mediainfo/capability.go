package mediainfo

import "context"

// Prober extracts stream-level information from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

// SubtitleExtractor writes embedded subtitle tracks out as WebVTT files, one
// per track, annotated with language. Returns the written paths.
type SubtitleExtractor interface {
	ExtractSubtitles(ctx context.Context, videoPath, outputDir string) ([]string, error)
}

// SubFile is one subtitle file fetched from an external provider.
type SubFile struct {
	Language string
	Path     string
}

// SubtitleFetcher retrieves subtitles from an external provider. Optional;
// gated by the auto-download setting.
type SubtitleFetcher interface {
	FetchSubtitles(ctx context.Context, mediaKey string, languages []string) ([]SubFile, error)
}

// MovieMetadata is the enrichment payload for a movie.
type MovieMetadata struct {
	Title     string
	Year      int
	Overview  string
	Genres    []string
	PosterURL string
}

// ShowMetadata is the enrichment payload for a show.
type ShowMetadata struct {
	Title         string
	Year          int
	Overview      string
	Genres        []string
	PosterURL     string
	EpisodeTitles map[string]string // "SxxEyy" -> title
}

// MetadataService enriches catalog rows from an external metadata provider.
type MetadataService interface {
	FetchMovieMetadata(ctx context.Context, title string, year int) (*MovieMetadata, error)
	FetchShowMetadata(ctx context.Context, title string, year int) (*ShowMetadata, error)
}
