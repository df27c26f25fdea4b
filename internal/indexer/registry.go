package indexer

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/windrose/windrose/internal/database"
)

// Registry builds and caches protocol clients for configured indexers.
type Registry struct {
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	clients map[int64]Client
}

// NewRegistry creates a client registry. timeout bounds each HTTP request a
// client makes.
func NewRegistry(timeout time.Duration, logger zerolog.Logger) *Registry {
	return &Registry{
		timeout: timeout,
		logger:  logger,
		clients: make(map[int64]Client),
	}
}

// ClientFor returns the cached client for an indexer, building one on first
// use.
func (r *Registry) ClientFor(ind *database.Indexer) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[ind.ID]; ok {
		return client, nil
	}

	client, err := r.build(ind)
	if err != nil {
		return nil, err
	}
	r.clients[ind.ID] = client
	return client, nil
}

// Invalidate drops the cached client for an indexer, forcing a rebuild after
// its configuration changes.
func (r *Registry) Invalidate(indexerID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, indexerID)
}

func (r *Registry) build(ind *database.Indexer) (Client, error) {
	switch ind.Type {
	case database.IndexerTorznab:
		return NewTorznab(ind.ID, ind.Name, ind.URL, ind.APIKey, r.timeout, r.logger), nil
	case database.IndexerNewznab:
		return NewNewznab(ind.ID, ind.Name, ind.URL, ind.APIKey, r.timeout, r.logger), nil
	case database.IndexerProwlarr:
		return NewProwlarr(ind.ID, ind.Name, ind.URL, ind.APIKey, r.timeout, r.logger), nil
	default:
		return nil, fmt.Errorf("unknown indexer type %q", ind.Type)
	}
}
