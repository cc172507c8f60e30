package engine

import (
	"fmt"
	"os"
	"sync"

	"rustyhashbackup/internal/digest"
	"rustyhashbackup/internal/discovery"
)

// Engine drives the three-phase discovery/preparation/replication pipeline
// over a Catalog. It reaches the catalog, logging, time, and run IDs only
// through the Catalog, Logger, Clock, and IDGenerator interfaces — never a
// concrete SQL driver — so tests can run it against a fake catalog. Files
// are read and written directly through the os package.
type Engine struct {
	catalog Catalog
	logger  Logger
	clock   Clock
	ids     IDGenerator
	cfg     RunConfig
	pool    *runPool

	mu       sync.Mutex
	stop     stopFlag
	progress *progressTracker
	history  *historyBuffer
	running  bool
}

// New builds an Engine ready to run against the given catalog and
// configuration.
func New(catalog Catalog, logger Logger, clock Clock, ids IDGenerator, cfg RunConfig) *Engine {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}
	return &Engine{
		catalog:  catalog,
		logger:   logger,
		clock:    clock,
		ids:      ids,
		cfg:      cfg,
		pool:     newRunPool(cfg.MaxThreads),
		progress: newProgressTracker(),
		history:  newHistoryBuffer(),
	}
}

// Status returns a point-in-time snapshot of the current or most recent
// run's progress.
func (e *Engine) Status() Status {
	return e.progress.snapshot()
}

// History returns up to limit of the most recent run summaries, newest
// first. limit<=0 returns all retained entries.
func (e *Engine) History(limit int) []RunSummary {
	return e.history.list(limit)
}

// RequestStop asks the current run to stop at the next cooperative
// checkpoint. It is a no-op if no run is in progress. Status() reports
// Stopping from the moment this is called until the run reaches its
// terminal state.
func (e *Engine) RequestStop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.stop.request()
	e.progress.setState(StateStopping)
}

// Close releases the engine's catalog connection and worker pool.
func (e *Engine) Close() error {
	e.pool.closeAndWait()
	return e.catalog.Close()
}

// ErrAlreadyRunning is returned by Run when a run is already in progress.
var ErrAlreadyRunning = fmt.Errorf("a run is already in progress")

// Run executes one full discovery/preparation/replication pass and returns
// its summary. Only one run may be in progress at a time.
func (e *Engine) Run(dry DryRunMode) (RunSummary, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return RunSummary{}, ErrAlreadyRunning
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	runID := e.ids.New()
	started := e.clock.Now()
	e.stop.reset()
	e.progress.reset()
	e.progress.setState(StateRunning)

	summary := RunSummary{RunID: runID, StartedAt: started, DryRun: dry}
	e.logger.Info("run started", "run_id", runID, "dry_run", dry.String())

	discovered, err := e.discover()
	if err != nil {
		summary.State = StateFailed
		summary.Error = err.Error()
		summary.CompletedAt = e.clock.Now()
		e.finish(summary)
		e.logger.Error("discovery failed", "run_id", runID, "error", err)
		return summary, err
	}

	prepared, prepErrs := e.prepare(discovered, dry)
	for _, pe := range prepErrs {
		e.logger.Warn("preparation error", "run_id", runID, "error", pe)
	}

	failures := e.replicate(prepared, dry)
	summary.Failures = int64(len(prepErrs) + failures)

	final := e.progress.snapshot()
	summary.FilesProcessed = final.FilesProcessed
	summary.BytesProcessed = final.BytesProcessed
	summary.CompletedAt = e.clock.Now()

	if e.stop.wasObserved() {
		summary.State = StateCancelled
	} else {
		summary.State = StateCompleted
	}

	e.finish(summary)
	e.logger.Info("run finished", "run_id", runID, "state", summary.State.String(),
		"files_processed", summary.FilesProcessed, "failures", summary.Failures)
	return summary, nil
}

func (e *Engine) finish(summary RunSummary) {
	e.progress.setState(summary.State)
	e.history.append(summary)
}

func (e *Engine) discover() (discovery.Result, error) {
	e.progress.setPhase(PhaseDiscovery)

	sources := make([]discovery.Source, 0, len(e.cfg.SourceRoots))
	for _, s := range e.cfg.SourceRoots {
		sources = append(sources, discovery.Source{
			ParentDirectory: s.ParentDirectory,
			MaxDepth:        s.MaxDepth,
			HasMaxDepth:     s.HasMaxDepth,
			SkipDirs:        s.SkipDirs,
		})
	}

	return discovery.Discover(sources, discoveryLoggerAdapter{e.logger})
}

type discoveryLoggerAdapter struct{ l Logger }

func (a discoveryLoggerAdapter) Warn(msg string, args ...any) { a.l.Warn(msg, args...) }

func (e *Engine) stat(path string) (size, mtime int64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	return info.Size(), info.ModTime().Unix(), nil
}

func (e *Engine) digest(path string) (string, error) {
	d, err := digest.Hash(path, e.cfg.MaxHashBytes)
	if err != nil {
		return "", &DigestError{Path: path, Cause: err}
	}
	return d, nil
}

// prepare runs Preparation (§4.E) over every discovered file across the
// worker pool, draining completely before Replication starts. A
// cancellation check happens before each file; on cancel, workers stop
// picking up new files but any copy already in flight is not affected
// since Preparation never copies.
func (e *Engine) prepare(discovered discovery.Result, dry DryRunMode) ([]PreparedBackup, []error) {
	e.progress.setPhase(PhasePreparation)

	var total int64
	for _, files := range discovered {
		total += int64(len(files))
	}
	e.progress.setTotals(total, 0)

	var mu sync.Mutex
	var prepared []PreparedBackup
	var errs []error
	var wg sync.WaitGroup

	for sourceRoot, files := range discovered {
		for _, path := range files {
			wg.Add(1)
			sourceRoot, path := sourceRoot, path
			e.pool.submit(func() {
				defer wg.Done()

				if e.stop.check() {
					return
				}

				p, err := e.prepareFile(path, sourceRoot, e.cfg.Destinations, dry)

				mu.Lock()
				if err != nil {
					errs = append(errs, err)
				} else {
					prepared = append(prepared, p)
				}
				mu.Unlock()

				e.progress.addFiles(1)
				e.progress.setCurrentFile(path)
			})
		}
	}

	wg.Wait()
	return prepared, errs
}

// replicate runs Replication (§4.F) over every PreparedBackup × destination
// pair across the worker pool. It returns the count of (source,
// destination) pairs that failed verification or copy; individual
// failures do not abort the run.
func (e *Engine) replicate(prepared []PreparedBackup, dry DryRunMode) int {
	e.progress.setPhase(PhaseReplication)

	var total int64
	for _, p := range prepared {
		total += int64(len(p.DestinationPaths))
	}
	e.progress.setTotals(total, 0)

	var mu sync.Mutex
	var failures int
	var wg sync.WaitGroup

	for _, p := range prepared {
		for _, destPath := range p.DestinationPaths {
			wg.Add(1)
			p, destPath := p, destPath
			e.pool.submit(func() {
				defer wg.Done()

				if e.stop.check() {
					return
				}

				copied, bytesCopied, err := e.replicateUnit(p, destPath, dry)
				if err != nil {
					e.logger.Warn("replication error", "source", p.SourcePath, "destination", destPath, "error", err)
					mu.Lock()
					failures++
					mu.Unlock()
				}

				if copied {
					e.progress.addBytes(bytesCopied)
				}
				e.progress.addFiles(1)
				e.progress.setCurrentFile(destPath)
			})
		}
	}

	wg.Wait()
	return failures
}
