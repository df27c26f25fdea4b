package mediainfo

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Service wraps a Prober with a result cache. Entries are invalidated by TTL
// and whenever the file's size or mtime changes, so a re-encoded file is
// always re-probed.
type Service struct {
	prober Prober
	ttl    time.Duration
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[string]*cacheEntry
}

type cacheEntry struct {
	result   *ProbeResult
	cachedAt time.Time
	size     int64
	modTime  time.Time
}

// NewService creates a caching probe service. A one-hour TTL fits the scanner
// pattern of stamping quality then immediately extracting chapters from the
// same file.
func NewService(prober Prober, logger zerolog.Logger) *Service {
	return &Service{
		prober: prober,
		ttl:    time.Hour,
		logger: logger.With().Str("component", "mediainfo").Logger(),
		cache:  make(map[string]*cacheEntry),
	}
}

// Probe returns stream information for path, from cache when valid.
func (s *Service) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if result := s.getCached(path); result != nil {
		return result, nil
	}

	result, err := s.prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	s.setCached(path, result)
	return result, nil
}

// InvalidateAll drops every cached entry. Used by forced quality redetection.
func (s *Service) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cacheEntry)
}

func (s *Service) getCached(path string) *ProbeResult {
	s.mu.RLock()
	entry, ok := s.cache[path]
	s.mu.RUnlock()
	if !ok || time.Since(entry.cachedAt) > s.ttl {
		return nil
	}

	stat, err := os.Stat(path)
	if err != nil || stat.Size() != entry.size || !stat.ModTime().Equal(entry.modTime) {
		return nil
	}
	return entry.result
}

func (s *Service) setCached(path string, result *ProbeResult) {
	stat, err := os.Stat(path)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[path] = &cacheEntry{
		result:   result,
		cachedAt: time.Now(),
		size:     stat.Size(),
		modTime:  stat.ModTime(),
	}
}
