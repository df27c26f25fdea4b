package database

import "time"

// LibraryType classifies what a library root contains.
type LibraryType string

const (
	LibraryMovies LibraryType = "movies"
	LibraryTV     LibraryType = "tv"
	LibraryMusic  LibraryType = "music"
	LibraryBooks  LibraryType = "books"
)

// MediaType identifies which entity a quality status, chapter or download
// refers to.
type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeEpisode MediaType = "episode"
)

// Library declares a root directory the scanner walks.
type Library struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Path      string      `json:"path"`
	Type      LibraryType `json:"type"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Movie is one discovered file under a movies library, unique by path.
type Movie struct {
	ID               int64      `json:"id"`
	LibraryID        int64      `json:"libraryId"`
	Title            string     `json:"title"`
	Year             int        `json:"year"`
	Path             string     `json:"path"`
	Size             int64      `json:"size"`
	MissingSince     *time.Time `json:"missingSince,omitempty"`
	MatchConfidence  float64    `json:"matchConfidence"`
	NeedsMatchReview bool       `json:"needsMatchReview"`
	Overview         string     `json:"overview,omitempty"`
	Genres           string     `json:"genres,omitempty"`
	PosterURL        string     `json:"posterUrl,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Show is one detected show folder under a tv library.
type Show struct {
	ID               int64     `json:"id"`
	LibraryID        int64     `json:"libraryId"`
	Title            string    `json:"title"`
	Year             int       `json:"year"`
	Path             string    `json:"path"`
	MatchConfidence  float64   `json:"matchConfidence"`
	NeedsMatchReview bool      `json:"needsMatchReview"`
	Overview         string    `json:"overview,omitempty"`
	Genres           string    `json:"genres,omitempty"`
	PosterURL        string    `json:"posterUrl,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Season groups episodes; unique by (showId, seasonNumber).
type Season struct {
	ID           int64 `json:"id"`
	ShowID       int64 `json:"showId"`
	SeasonNumber int   `json:"seasonNumber"`
}

// Episode is one media file in a season. EpisodeEnd > EpisodeNumber marks a
// multi-episode file; AbsoluteNumber carries anime flat numbering.
type Episode struct {
	ID               int64      `json:"id"`
	SeasonID         int64      `json:"seasonId"`
	EpisodeNumber    int        `json:"episodeNumber"`
	EpisodeEnd       int        `json:"episodeEnd,omitempty"`
	AbsoluteNumber   int        `json:"absoluteNumber,omitempty"`
	Title            string     `json:"title,omitempty"`
	Path             string     `json:"path"`
	Size             int64      `json:"size"`
	MissingSince     *time.Time `json:"missingSince,omitempty"`
	MatchConfidence  float64    `json:"matchConfidence"`
	NeedsMatchReview bool       `json:"needsMatchReview"`
	AirDate          string     `json:"airDate,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Artist, Album, Track and Book are the music and book library leaves.
type Artist struct {
	ID        int64  `json:"id"`
	LibraryID int64  `json:"libraryId"`
	Name      string `json:"name"`
	Path      string `json:"path"`
}

type Album struct {
	ID       int64  `json:"id"`
	ArtistID int64  `json:"artistId"`
	Title    string `json:"title"`
	Year     int    `json:"year"`
	Path     string `json:"path"`
}

type Track struct {
	ID           int64      `json:"id"`
	AlbumID      int64      `json:"albumId"`
	TrackNumber  int        `json:"trackNumber"`
	Title        string     `json:"title"`
	Path         string     `json:"path"`
	Size         int64      `json:"size"`
	MissingSince *time.Time `json:"missingSince,omitempty"`
}

type Book struct {
	ID           int64      `json:"id"`
	LibraryID    int64      `json:"libraryId"`
	Title        string     `json:"title"`
	Author       string     `json:"author,omitempty"`
	Year         int        `json:"year"`
	Path         string     `json:"path"`
	Size         int64      `json:"size"`
	MissingSince *time.Time `json:"missingSince,omitempty"`
}

// SearchStatus is the upgrade search state machine for one media item.
type SearchStatus string

const (
	SearchIdle         SearchStatus = "idle"
	SearchSearching    SearchStatus = "searching"
	SearchPendingRetry SearchStatus = "pending_retry"
	SearchPaused       SearchStatus = "paused"
)

// MediaQualityStatus stamps each Movie or Episode with its current quality
// and upgrade-search state. Exactly one per item.
type MediaQualityStatus struct {
	ID                int64     `json:"id"`
	MediaID           int64     `json:"mediaId"`
	MediaType         MediaType `json:"mediaType"`
	CurrentResolution string    `json:"currentResolution"`
	CurrentSource     string    `json:"currentSource"`
	CurrentHDR        string    `json:"currentHdr,omitempty"`
	CurrentAudio      string    `json:"currentAudio,omitempty"`
	CurrentEdition    string    `json:"currentEdition,omitempty"`
	CurrentScore      int       `json:"currentScore"`
	CutoffScore       int       `json:"cutoffScore"`
	TargetMet         bool      `json:"targetMet"`
	UpgradeAvailable  bool      `json:"upgradeAvailable"`

	SearchStatus   SearchStatus `json:"searchStatus"`
	SearchAttempts int          `json:"searchAttempts"`
	NextSearchAt   *time.Time   `json:"nextSearchAt,omitempty"`
	UpgradePaused  bool         `json:"upgradePaused"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// IndexerType identifies the wire protocol an indexer speaks.
type IndexerType string

const (
	IndexerTorznab  IndexerType = "torznab"
	IndexerNewznab  IndexerType = "newznab"
	IndexerProwlarr IndexerType = "prowlarr"
)

// Indexer is one configured release source.
type Indexer struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Type       IndexerType `json:"type"`
	URL        string      `json:"url"`
	APIKey     string      `json:"apiKey,omitempty"`
	Categories string      `json:"categories,omitempty"` // comma-separated ids
	Priority   int         `json:"priority"`
	Enabled    bool        `json:"enabled"`
}

// DownloadStatus is the download lifecycle.
type DownloadStatus string

const (
	DownloadQueued      DownloadStatus = "queued"
	DownloadDownloading DownloadStatus = "downloading"
	DownloadCompleted   DownloadStatus = "completed"
	DownloadImporting   DownloadStatus = "importing"
	DownloadImported    DownloadStatus = "imported"
	DownloadUnmatched   DownloadStatus = "unmatched"
	DownloadFailed      DownloadStatus = "failed"
)

// Download is one acquisition, linked to a media item when known.
type Download struct {
	ID           int64          `json:"id"`
	GUID         string         `json:"guid,omitempty"`
	MediaID      *int64         `json:"mediaId,omitempty"`
	MediaType    MediaType      `json:"mediaType,omitempty"`
	Title        string         `json:"title"`
	Status       DownloadStatus `json:"status"`
	DownloadPath string         `json:"downloadPath,omitempty"`
	ImportedPath string         `json:"importedPath,omitempty"`
	Error        string         `json:"error,omitempty"`
	Size         int64          `json:"size,omitempty"`
	Seeders      int            `json:"seeders,omitempty"`
	IndexerID    *int64         `json:"indexerId,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// ImportHistory is the write-mostly audit trail of import attempts.
type ImportHistory struct {
	ID         int64     `json:"id"`
	DownloadID *int64    `json:"downloadId,omitempty"`
	SourcePath string    `json:"sourcePath"`
	DestPath   string    `json:"destPath,omitempty"`
	MediaID    *int64    `json:"mediaId,omitempty"`
	MediaType  MediaType `json:"mediaType,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Chapter is one chapter marker extracted from a media file.
type Chapter struct {
	ID           int64         `json:"id"`
	MediaType    MediaType     `json:"mediaType"`
	MediaID      int64         `json:"mediaId"`
	ChapterIndex int           `json:"chapterIndex"`
	Title        string        `json:"title,omitempty"`
	Start        time.Duration `json:"start"`
	End          time.Duration `json:"end"`
}

// NamingTemplate controls destination paths for imports of one media type.
type NamingTemplate struct {
	ID             int64  `json:"id"`
	Type           string `json:"type"` // "movie" or "tv"
	FolderTemplate string `json:"folderTemplate"`
	FileTemplate   string `json:"fileTemplate"`
}

// ScanRun records the outcome of one library scan.
type ScanRun struct {
	ID        int64     `json:"id"`
	LibraryID int64     `json:"libraryId"`
	Added     int       `json:"added"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
	ScannedAt time.Time `json:"scannedAt"`
}
