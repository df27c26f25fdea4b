package indexer

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"
)

const (
	maxFeedSize    = 10 * 1024 * 1024
	fetchAttempts  = 3
	fetchBaseDelay = 500 * time.Millisecond
)

// NabClient speaks the newznab query grammar shared by Torznab and Newznab
// endpoints. The two protocols differ only in transport payloads (.torrent
// vs .nzb) and which feed attributes are populated.
type NabClient struct {
	indexerID   int64
	name        string
	indexerType string // torznab or newznab
	baseURL     string
	apiKey      string
	client      *http.Client
	logger      zerolog.Logger
}

// NewTorznab creates a client for a Torznab endpoint.
func NewTorznab(id int64, name, baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *NabClient {
	return newNab(id, name, "torznab", baseURL, apiKey, timeout, logger)
}

// NewNewznab creates a client for a Newznab endpoint.
func NewNewznab(id int64, name, baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *NabClient {
	return newNab(id, name, "newznab", baseURL, apiKey, timeout, logger)
}

func newNab(id int64, name, indexerType, baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *NabClient {
	return &NabClient{
		indexerID:   id,
		name:        name,
		indexerType: indexerType,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		client:      &http.Client{Timeout: timeout},
		logger: logger.With().
			Str("component", "indexer").
			Str("indexer", name).
			Logger(),
	}
}

func (c *NabClient) Type() string { return c.indexerType }

// Search translates params into the t/q/cat query grammar and parses the
// XML response.
func (c *NabClient) Search(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("t", searchFunction(params.Type))
	q.Set("apikey", c.apiKey)
	if params.Query != "" {
		q.Set("q", params.Query)
	}
	if len(params.Categories) > 0 {
		cats := make([]string, len(params.Categories))
		for i, cat := range params.Categories {
			cats[i] = strconv.Itoa(cat)
		}
		q.Set("cat", strings.Join(cats, ","))
	}
	if params.IMDBID != "" {
		q.Set("imdbid", strings.TrimPrefix(params.IMDBID, "tt"))
	}
	if params.TVDBID > 0 {
		q.Set("tvdbid", strconv.Itoa(params.TVDBID))
	}
	if params.TMDBID > 0 {
		q.Set("tmdbid", strconv.Itoa(params.TMDBID))
	}
	if params.Season > 0 {
		q.Set("season", strconv.Itoa(params.Season))
	}
	if params.Episode > 0 {
		q.Set("ep", strconv.Itoa(params.Episode))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}

	body, err := c.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	return c.parseFeed(body)
}

// FetchRSS pulls the indexer's latest-releases feed (an unqualified search).
func (c *NabClient) FetchRSS(ctx context.Context) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("t", "search")
	q.Set("apikey", c.apiKey)

	body, err := c.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	return c.parseFeed(body)
}

// GetCapabilities queries t=caps.
func (c *NabClient) GetCapabilities(ctx context.Context) (*Capabilities, error) {
	q := url.Values{}
	q.Set("t", "caps")
	q.Set("apikey", c.apiKey)

	body, err := c.fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	var caps capsResponse
	if err := xml.Unmarshal(body, &caps); err != nil {
		return nil, fmt.Errorf("parse caps response: %w", err)
	}

	result := &Capabilities{
		ServerTitle:   caps.Server.Title,
		ServerVersion: caps.Server.Version,
		Search:        caps.Searching.Search.toMode(),
		TVSearch:      caps.Searching.TVSearch.toMode(),
		MovieSearch:   caps.Searching.MovieSearch.toMode(),
		MusicSearch:   caps.Searching.MusicSearch.toMode(),
		BookSearch:    caps.Searching.BookSearch.toMode(),
	}
	for _, cat := range caps.Categories.Categories {
		result.Categories = append(result.Categories, Category{ID: cat.ID, Name: cat.Name})
		for _, sub := range cat.Subcategories {
			result.Categories = append(result.Categories, Category{ID: sub.ID, Name: sub.Name})
		}
	}
	return result, nil
}

// TestConnection verifies the endpoint answers a caps query.
func (c *NabClient) TestConnection(ctx context.Context) error {
	if _, err := c.GetCapabilities(ctx); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// fetch GETs {base}/api?{query} with bounded retries. Client errors are not
// retried; network failures and 5xx responses are.
func (c *NabClient) fetch(ctx context.Context, query url.Values) ([]byte, error) {
	reqURL := c.baseURL + "/api?" + query.Encode()

	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 {
				return fmt.Errorf("HTTP %d from %s", resp.StatusCode, c.name)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("HTTP %d from %s", resp.StatusCode, c.name))
			}

			body, err = io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			return nil
		},
		retry.Attempts(fetchAttempts),
		retry.Delay(fetchBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	// Indexers report API-level failures as 200 with an <error> document
	var apiErr nabError
	if xml.Unmarshal(body, &apiErr) == nil && apiErr.XMLName.Local == "error" {
		return nil, fmt.Errorf("indexer error %s: %s", apiErr.Code, apiErr.Description)
	}

	return body, nil
}

func (c *NabClient) parseFeed(data []byte) ([]SearchResult, error) {
	var feed nabFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	results := make([]SearchResult, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		r := SearchResult{
			IndexerID:   c.indexerID,
			IndexerName: c.name,
			IndexerType: c.indexerType,
			Title:       item.Title,
			GUID:        item.GUID,
			Link:        item.Link,
			InfoURL:     item.Comments,
			Size:        item.Size,
			PublishDate: parseFeedDate(item.PubDate),
		}
		if r.Link == "" {
			r.Link = item.Enclosure.URL
		}
		if r.Size == 0 {
			r.Size = item.Enclosure.Length
		}
		if r.GUID == "" {
			r.GUID = r.Link
		}

		for _, attr := range item.Attrs {
			switch attr.Name {
			case "seeders":
				r.Seeders, _ = strconv.Atoi(attr.Value)
			case "peers", "leechers":
				r.Leechers, _ = strconv.Atoi(attr.Value)
			case "size":
				if r.Size == 0 {
					r.Size, _ = strconv.ParseInt(attr.Value, 10, 64)
				}
			case "magneturl":
				r.MagnetLink = attr.Value
			case "imdbid", "imdb":
				if attr.Value != "" {
					r.IMDBID = "tt" + strings.TrimPrefix(attr.Value, "tt")
				}
			case "tvdbid":
				r.TVDBID, _ = strconv.Atoi(attr.Value)
			case "category":
				if cat, err := strconv.Atoi(attr.Value); err == nil {
					r.Categories = append(r.Categories, cat)
				}
			}
		}

		if r.Link == "" && r.MagnetLink == "" {
			continue
		}
		results = append(results, r)
	}

	return results, nil
}

// searchFunction maps a search type onto the grammar's t parameter.
func searchFunction(searchType string) string {
	switch searchType {
	case TypeMovie, TypeTV, TypeMusic, TypeBook:
		return searchType
	default:
		return TypeSearch
	}
}

func parseFeedDate(s string) time.Time {
	for _, layout := range []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Feed document structures. The attr elements carry the torznab/newznab
// namespace but encoding/xml matches them by local name.

type nabFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel nabChannel `xml:"channel"`
}

type nabChannel struct {
	Title string    `xml:"title"`
	Items []nabItem `xml:"item"`
}

type nabItem struct {
	Title     string       `xml:"title"`
	GUID      string       `xml:"guid"`
	Link      string       `xml:"link"`
	Comments  string       `xml:"comments"`
	PubDate   string       `xml:"pubDate"`
	Size      int64        `xml:"size"`
	Enclosure nabEnclosure `xml:"enclosure"`
	Attrs     []nabAttr    `xml:"attr"`
}

type nabEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type nabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type nabError struct {
	XMLName     xml.Name `xml:"error"`
	Code        string   `xml:"code,attr"`
	Description string   `xml:"description,attr"`
}

// Caps document structures.

type capsResponse struct {
	XMLName    xml.Name       `xml:"caps"`
	Server     capsServer     `xml:"server"`
	Searching  capsSearching  `xml:"searching"`
	Categories capsCategories `xml:"categories"`
}

type capsServer struct {
	Title   string `xml:"title,attr"`
	Version string `xml:"version,attr"`
}

type capsSearching struct {
	Search      capsSearchMode `xml:"search"`
	TVSearch    capsSearchMode `xml:"tv-search"`
	MovieSearch capsSearchMode `xml:"movie-search"`
	MusicSearch capsSearchMode `xml:"music-search"`
	BookSearch  capsSearchMode `xml:"book-search"`
}

type capsSearchMode struct {
	Available       string `xml:"available,attr"`
	SupportedParams string `xml:"supportedParams,attr"`
}

func (m capsSearchMode) toMode() SearchMode {
	mode := SearchMode{Available: m.Available == "yes"}
	if m.SupportedParams != "" {
		mode.SupportedParams = strings.Split(m.SupportedParams, ",")
	}
	return mode
}

type capsCategories struct {
	Categories []capsCategory `xml:"category"`
}

type capsCategory struct {
	ID            int            `xml:"id,attr"`
	Name          string         `xml:"name,attr"`
	Subcategories []capsCategory `xml:"subcat"`
}
