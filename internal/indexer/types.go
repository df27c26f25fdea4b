// Package indexer provides search clients for Torznab, Newznab and Prowlarr
// endpoints and an aggregator that fans a query out across all enabled
// indexers.
package indexer

import (
	"context"
	"time"
)

// Search types, matching the newznab query grammar's t parameter.
const (
	TypeSearch = "search"
	TypeMovie  = "movie"
	TypeTV     = "tvsearch"
	TypeMusic  = "music"
	TypeBook   = "book"
)

// SearchParams describes one query against an indexer.
type SearchParams struct {
	Query      string
	Type       string // search, movie, tvsearch, music, book
	Categories []int
	IMDBID     string // with or without the tt prefix
	TVDBID     int
	TMDBID     int
	Season     int
	Episode    int
	Limit      int
	Offset     int
}

// SearchResult is one normalized release entry from any indexer protocol.
type SearchResult struct {
	IndexerID   int64
	IndexerName string
	IndexerType string

	Title       string
	GUID        string
	Link        string // download URL (.torrent or .nzb)
	MagnetLink  string
	InfoURL     string
	Size        int64
	Seeders     int
	Leechers    int
	PublishDate time.Time
	Categories  []int
	IMDBID      string
	TVDBID      int
}

// Capabilities reports what an indexer endpoint supports.
type Capabilities struct {
	ServerTitle   string
	ServerVersion string
	Search        SearchMode
	TVSearch      SearchMode
	MovieSearch   SearchMode
	MusicSearch   SearchMode
	BookSearch    SearchMode
	Categories    []Category
}

// SearchMode describes one search function of a caps response.
type SearchMode struct {
	Available       bool
	SupportedParams []string
}

// Category is one entry of a caps category tree.
type Category struct {
	ID   int
	Name string
}

// Supports reports whether the endpoint accepts the given search type.
func (c *Capabilities) Supports(searchType string) bool {
	switch searchType {
	case TypeMovie:
		return c.MovieSearch.Available
	case TypeTV:
		return c.TVSearch.Available
	case TypeMusic:
		return c.MusicSearch.Available
	case TypeBook:
		return c.BookSearch.Available
	default:
		return c.Search.Available
	}
}

// Client is the per-indexer protocol implementation.
type Client interface {
	Search(ctx context.Context, params SearchParams) ([]SearchResult, error)
	FetchRSS(ctx context.Context) ([]SearchResult, error)
	GetCapabilities(ctx context.Context) (*Capabilities, error)
	TestConnection(ctx context.Context) error
	Type() string
}
