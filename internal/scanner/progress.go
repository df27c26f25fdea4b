package scanner

import "sync"

// Scan phases.
const (
	PhaseCounting   = "counting"
	PhaseScanning   = "scanning"
	PhaseExtracting = "extracting"
)

// ProgressSnapshot is a point-in-time view of a running scan.
type ProgressSnapshot struct {
	Scanning bool   `json:"scanning"`
	Library  string `json:"library,omitempty"`
	Phase    string `json:"phase,omitempty"`
	Current  int    `json:"current"`
	Total    int    `json:"total"`
}

// progressTracker holds scan progress readable by observers while a scan
// runs.
type progressTracker struct {
	mu       sync.RWMutex
	snapshot ProgressSnapshot
}

func (p *progressTracker) start(library string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = ProgressSnapshot{Scanning: true, Library: library, Phase: PhaseCounting}
}

func (p *progressTracker) setPhase(phase string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot.Phase = phase
	p.snapshot.Current = 0
	p.snapshot.Total = total
}

func (p *progressTracker) advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot.Current++
}

func (p *progressTracker) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = ProgressSnapshot{}
}

func (p *progressTracker) get() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}
