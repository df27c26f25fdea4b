package indexer

import (
	"context"
	"encoding/json"
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

const prowlarrAPIKeyHeader = "X-Api-Key"

// ProwlarrClient searches through a Prowlarr server, which proxies its own
// configured indexers behind a single JSON API.
type ProwlarrClient struct {
	indexerID int64
	name      string
	baseURL   string
	apiKey    string
	client    *http.Client
	logger    zerolog.Logger
}

// NewProwlarr creates a client for a Prowlarr server.
func NewProwlarr(id int64, name, baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *ProwlarrClient {
	return &ProwlarrClient{
		indexerID: id,
		name:      name,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    apiKey,
		client:    &http.Client{Timeout: timeout},
		logger: logger.With().
			Str("component", "indexer").
			Str("indexer", name).
			Logger(),
	}
}

func (c *ProwlarrClient) Type() string { return "prowlarr" }

type prowlarrResult struct {
	GUID        string             `json:"guid"`
	Title       string             `json:"title"`
	DownloadURL string             `json:"downloadUrl"`
	MagnetURL   string             `json:"magnetUrl"`
	InfoURL     string             `json:"infoUrl"`
	Size        int64              `json:"size"`
	Seeders     int                `json:"seeders"`
	Leechers    int                `json:"leechers"`
	PublishDate time.Time          `json:"publishDate"`
	IMDBID      int                `json:"imdbId"`
	TVDBID      int                `json:"tvdbId"`
	Categories  []prowlarrCategory `json:"categories"`
}

type prowlarrCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Search queries /api/v1/search with the normalized params.
func (c *ProwlarrClient) Search(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("query", c.buildQuery(params))
	q.Set("type", searchFunction(params.Type))
	for _, cat := range params.Categories {
		q.Add("categories", strconv.Itoa(cat))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}

	var raw []prowlarrResult
	if err := c.getJSON(ctx, "/api/v1/search?"+q.Encode(), &raw); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(raw))
	for _, item := range raw {
		r := SearchResult{
			IndexerID:   c.indexerID,
			IndexerName: c.name,
			IndexerType: "prowlarr",
			Title:       item.Title,
			GUID:        item.GUID,
			Link:        item.DownloadURL,
			MagnetLink:  item.MagnetURL,
			InfoURL:     item.InfoURL,
			Size:        item.Size,
			Seeders:     item.Seeders,
			Leechers:    item.Leechers,
			PublishDate: item.PublishDate,
			TVDBID:      item.TVDBID,
		}
		if item.IMDBID > 0 {
			r.IMDBID = fmt.Sprintf("tt%07d", item.IMDBID)
		}
		for _, cat := range item.Categories {
			r.Categories = append(r.Categories, cat.ID)
		}
		if r.GUID == "" {
			r.GUID = r.Link
		}
		if r.Link == "" && r.MagnetLink == "" {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// buildQuery folds ID hints Prowlarr accepts inline ({ImdbId:tt...}) into
// the query string when no free-text query is given.
func (c *ProwlarrClient) buildQuery(params SearchParams) string {
	if params.Query != "" {
		return params.Query
	}
	switch {
	case params.IMDBID != "":
		return "{ImdbId:tt" + strings.TrimPrefix(params.IMDBID, "tt") + "}"
	case params.TVDBID > 0:
		return "{TvdbId:" + strconv.Itoa(params.TVDBID) + "}"
	case params.TMDBID > 0:
		return "{TmdbId:" + strconv.Itoa(params.TMDBID) + "}"
	}
	return ""
}

// FetchRSS returns the most recent releases across all Prowlarr indexers.
func (c *ProwlarrClient) FetchRSS(ctx context.Context) ([]SearchResult, error) {
	return c.Search(ctx, SearchParams{Type: TypeSearch, Limit: 100})
}

// GetCapabilities reports the fixed feature set of the Prowlarr proxy API.
func (c *ProwlarrClient) GetCapabilities(ctx context.Context) (*Capabilities, error) {
	var status struct {
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, "/api/v1/system/status", &status); err != nil {
		return nil, fmt.Errorf("fetch capabilities: %w", err)
	}

	return &Capabilities{
		ServerTitle:   "Prowlarr",
		ServerVersion: status.Version,
		Search:        SearchMode{Available: true, SupportedParams: []string{"q"}},
		TVSearch:      SearchMode{Available: true, SupportedParams: []string{"q", "season", "ep", "tvdbid"}},
		MovieSearch:   SearchMode{Available: true, SupportedParams: []string{"q", "imdbid", "tmdbid"}},
		MusicSearch:   SearchMode{Available: true, SupportedParams: []string{"q"}},
		BookSearch:    SearchMode{Available: true, SupportedParams: []string{"q"}},
	}, nil
}

// TestConnection verifies connectivity via the system status endpoint.
func (c *ProwlarrClient) TestConnection(ctx context.Context) error {
	var status struct {
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, "/api/v1/system/status", &status); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	c.logger.Debug().Str("version", status.Version).Msg("connection test successful")
	return nil
}

func (c *ProwlarrClient) getJSON(ctx context.Context, path string, result any) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set(prowlarrAPIKeyHeader, c.apiKey)

			resp, err := c.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 {
				return fmt.Errorf("HTTP %d from %s", resp.StatusCode, c.name)
			}
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return retry.Unrecoverable(
					fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, c.name, string(body)))
			}

			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
			}
			return nil
		},
		retry.Attempts(fetchAttempts),
		retry.Delay(fetchBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}
