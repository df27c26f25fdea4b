package scanner

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

type sidecarJob struct {
	name string
	run  func(ctx context.Context) error
}

// sidecarPool runs post-scan side-effects (subtitle extraction, chapter
// extraction, external subtitle fetch) on a bounded set of workers so they
// never block scanner progress.
type sidecarPool struct {
	jobs   chan sidecarJob
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

func newSidecarPool(workers int, logger zerolog.Logger) *sidecarPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &sidecarPool{
		jobs:   make(chan sidecarJob, 256),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "sidecars").Logger(),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *sidecarPool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		if p.ctx.Err() != nil {
			return
		}
		if err := job.run(p.ctx); err != nil {
			p.logger.Warn().Err(err).Str("job", job.name).Msg("sidecar job failed")
		}
	}
}

// submit enqueues a job. When the queue is full the job is dropped rather
// than stalling the scanner; the next scan picks the work up again.
func (p *sidecarPool) submit(name string, run func(ctx context.Context) error) {
	select {
	case p.jobs <- sidecarJob{name: name, run: run}:
	default:
		p.logger.Warn().Str("job", name).Msg("sidecar queue full, dropping job")
	}
}

// pending reports the number of queued jobs.
func (p *sidecarPool) pending() int {
	return len(p.jobs)
}

// close drains queued jobs and stops the workers.
func (p *sidecarPool) close() {
	close(p.jobs)
	p.wg.Wait()
	p.cancel()
}
