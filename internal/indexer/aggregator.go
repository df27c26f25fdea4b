package indexer

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/windrose/windrose/internal/database"
)

// Aggregator fans a search out to every enabled indexer in parallel and
// merges the responses into one ordered list.
type Aggregator struct {
	store    *database.Store
	registry *Registry
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewAggregator creates the search aggregator. timeout bounds each
// individual indexer search; a slow or failing indexer never fails the
// aggregate.
func NewAggregator(store *database.Store, registry *Registry, timeout time.Duration, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		store:    store,
		registry: registry,
		timeout:  timeout,
		logger:   logger.With().Str("component", "search").Logger(),
	}
}

type indexerResult struct {
	indexerID   int64
	indexerName string
	results     []SearchResult
	err         error
}

// Search queries all enabled indexers concurrently. Per-indexer failures are
// logged and their results dropped. Results come back stamped with their
// source indexer, deduplicated by GUID, ordered by seeders descending then
// size descending.
func (a *Aggregator) Search(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	indexers, err := a.store.ListEnabledIndexers(ctx)
	if err != nil {
		return nil, err
	}
	if len(indexers) == 0 {
		a.logger.Debug().Msg("no enabled indexers")
		return []SearchResult{}, nil
	}

	a.logger.Info().
		Int("indexerCount", len(indexers)).
		Str("query", params.Query).
		Str("type", params.Type).
		Msg("starting search across indexers")

	resultsChan := make(chan indexerResult, len(indexers))
	var wg sync.WaitGroup
	for _, ind := range indexers {
		wg.Add(1)
		go func(ind *database.Indexer) {
			defer wg.Done()
			resultsChan <- a.searchOne(ctx, ind, params)
		}(ind)
	}
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	merged := a.collect(resultsChan)
	a.logger.Info().
		Int("results", len(merged)).
		Str("query", params.Query).
		Msg("search completed")
	return merged, nil
}

// FetchRSS pulls the latest-release feeds from all enabled indexers.
func (a *Aggregator) FetchRSS(ctx context.Context) ([]SearchResult, error) {
	indexers, err := a.store.ListEnabledIndexers(ctx)
	if err != nil {
		return nil, err
	}

	resultsChan := make(chan indexerResult, len(indexers))
	var wg sync.WaitGroup
	for _, ind := range indexers {
		wg.Add(1)
		go func(ind *database.Indexer) {
			defer wg.Done()
			resultsChan <- a.fetchOne(ctx, ind)
		}(ind)
	}
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	return a.collect(resultsChan), nil
}

// TestIndexer checks connectivity for one configured indexer.
func (a *Aggregator) TestIndexer(ctx context.Context, indexerID int64) error {
	ind, err := a.store.GetIndexer(ctx, indexerID)
	if err != nil {
		return err
	}
	client, err := a.registry.ClientFor(ind)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return client.TestConnection(ctx)
}

func (a *Aggregator) searchOne(ctx context.Context, ind *database.Indexer, params SearchParams) indexerResult {
	res := indexerResult{indexerID: ind.ID, indexerName: ind.Name}

	client, err := a.registry.ClientFor(ind)
	if err != nil {
		res.err = err
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	res.results, res.err = client.Search(ctx, params)
	if res.err == nil {
		a.logger.Debug().
			Str("indexer", ind.Name).
			Int("results", len(res.results)).
			Dur("elapsed", time.Since(start)).
			Msg("indexer search completed")
	}
	return res
}

func (a *Aggregator) fetchOne(ctx context.Context, ind *database.Indexer) indexerResult {
	res := indexerResult{indexerID: ind.ID, indexerName: ind.Name}

	client, err := a.registry.ClientFor(ind)
	if err != nil {
		res.err = err
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	res.results, res.err = client.FetchRSS(ctx)
	return res
}

// collect drains the per-indexer channel, logging failures, then
// deduplicates and orders the merged set.
func (a *Aggregator) collect(results <-chan indexerResult) []SearchResult {
	merged := make([]SearchResult, 0)
	for res := range results {
		if res.err != nil {
			a.logger.Warn().
				Err(res.err).
				Int64("indexerId", res.indexerID).
				Str("indexer", res.indexerName).
				Msg("indexer failed, dropping its results")
			continue
		}
		merged = append(merged, res.results...)
	}

	merged = dedupeByGUID(merged)
	sortResults(merged)
	return merged
}

// dedupeByGUID keeps the entry with the most seeders for each GUID.
func dedupeByGUID(results []SearchResult) []SearchResult {
	if len(results) == 0 {
		return results
	}
	seen := make(map[string]int, len(results))
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		key := strings.ToLower(strings.TrimSpace(r.GUID))
		if idx, ok := seen[key]; ok {
			if r.Seeders > out[idx].Seeders {
				out[idx] = r
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, r)
	}
	return out
}

// sortResults orders by seeders descending, then size descending. Consumers
// that care about quality re-rank against a preset afterwards.
func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Seeders != results[j].Seeders {
			return results[i].Seeders > results[j].Seeders
		}
		return results[i].Size > results[j].Size
	})
}
