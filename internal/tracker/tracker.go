// Package tracker watches the download queue and hands completed downloads
// to the importer.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/windrose/windrose/internal/database"
	"github.com/windrose/windrose/internal/importer"
)

const defaultPollInterval = 10 * time.Second

var errNoDownloadPath = errors.New("completed download has no download path")

// Service polls for completed downloads and imports each one on its own
// goroutine. An in-flight set keeps a slow import from being picked up by
// the next tick.
type Service struct {
	store    *database.Store
	importer *importer.Service
	interval time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	inFlight map[int64]struct{}

	stopCh chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewService creates a download tracker. interval <= 0 uses the default.
func NewService(store *database.Store, imp *importer.Service, interval time.Duration, logger zerolog.Logger) *Service {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Service{
		store:    store,
		importer: imp,
		interval: interval,
		logger:   logger.With().Str("component", "tracker").Logger(),
		inFlight: make(map[int64]struct{}),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the polling loop. It returns immediately.
func (s *Service) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info().Dur("interval", s.interval).Msg("download tracker started")
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.Poll(ctx)
			}
		}
	}()
}

// Stop halts the polling loop and waits for in-flight imports to finish.
func (s *Service) Stop() {
	close(s.stopCh)
	<-s.done
	s.wg.Wait()
	s.logger.Info().Msg("download tracker stopped")
}

// Poll runs one pass: every completed download not already being imported
// gets an import goroutine.
func (s *Service) Poll(ctx context.Context) {
	downloads, err := s.store.ListDownloadsByStatus(ctx, database.DownloadCompleted)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to list completed downloads")
		return
	}

	for _, download := range downloads {
		if !s.claim(download.ID) {
			continue
		}
		s.wg.Add(1)
		go func(d *database.Download) {
			defer s.wg.Done()
			defer s.release(d.ID)
			s.importOne(ctx, d)
		}(download)
	}
}

func (s *Service) importOne(ctx context.Context, download *database.Download) {
	if download.DownloadPath == "" {
		s.logger.Warn().Int64("downloadId", download.ID).Msg("completed download has no path")
		if err := s.store.SetDownloadFailed(ctx, download.ID, errNoDownloadPath); err != nil {
			s.logger.Error().Err(err).Int64("downloadId", download.ID).Msg("failed to mark download failed")
		}
		return
	}

	if err := s.importer.ProcessImport(ctx, download, download.DownloadPath); err != nil {
		s.logger.Warn().Err(err).
			Int64("downloadId", download.ID).
			Str("title", download.Title).
			Msg("import failed")
	}
}

func (s *Service) claim(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Service) release(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}
