package engine

import (
	"sync"
	"sync/atomic"
)

// progressTracker holds the shared, mutable run counters. Readers (status
// polling, an event stream) observe approximate but monotonically
// non-decreasing values within a phase.
type progressTracker struct {
	phase          atomic.Int64 // Phase
	filesProcessed atomic.Int64
	bytesProcessed atomic.Int64
	totalFiles     atomic.Int64
	totalBytes     atomic.Int64
	state          atomic.Int64 // RunState

	mu          sync.RWMutex
	currentFile string
}

func newProgressTracker() *progressTracker {
	return &progressTracker{}
}

func (p *progressTracker) setPhase(ph Phase) {
	p.phase.Store(int64(ph))
}

func (p *progressTracker) setState(s RunState) {
	p.state.Store(int64(s))
}

func (p *progressTracker) setTotals(files, bytes int64) {
	p.totalFiles.Store(files)
	p.totalBytes.Store(bytes)
}

func (p *progressTracker) addFiles(n int64) {
	p.filesProcessed.Add(n)
}

func (p *progressTracker) addBytes(n int64) {
	p.bytesProcessed.Add(n)
}

func (p *progressTracker) setCurrentFile(path string) {
	p.mu.Lock()
	p.currentFile = path
	p.mu.Unlock()
}

func (p *progressTracker) snapshot() Status {
	p.mu.RLock()
	current := p.currentFile
	p.mu.RUnlock()

	total := p.totalFiles.Load()
	processed := p.filesProcessed.Load()

	var pct float64
	if total > 0 {
		pct = float64(processed) / float64(total) * 100.0
	}

	return Status{
		Phase:          Phase(p.phase.Load()),
		FilesProcessed: processed,
		TotalFiles:     total,
		BytesProcessed: p.bytesProcessed.Load(),
		TotalBytes:     p.totalBytes.Load(),
		CurrentFile:    current,
		Percentage:     pct,
		State:          RunState(p.state.Load()),
	}
}

func (p *progressTracker) reset() {
	p.phase.Store(int64(PhaseIdle))
	p.filesProcessed.Store(0)
	p.bytesProcessed.Store(0)
	p.totalFiles.Store(0)
	p.totalBytes.Store(0)
	p.setCurrentFile("")
}
