// Package engine implements the three-phase backup pipeline: discovery,
// preparation, and replication. It reaches the catalog only through the
// Catalog interface, never through a concrete SQL driver; hashing and
// directory walking come from the digest and discovery packages.
package engine

import "time"

// SourceFile is the catalog's record of a single file observed under a
// source root, keyed by (FileName, FilePath).
type SourceFile struct {
	ID           int64
	FileName     string
	FilePath     string
	Hash         string
	FileSize     int64
	LastModified int64 // whole seconds since the epoch
}

// BackupFile is the catalog's record of a file copied to a destination,
// keyed by (FileName, FilePath) at that destination.
type BackupFile struct {
	ID           int64
	SourceID     int64
	FileName     string
	FilePath     string
	LastModified int64
}

// PreparedBackup is Preparation's transient output, consumed by Replication.
// It is never persisted.
type PreparedBackup struct {
	SourceID             int64
	SourcePath           string
	FileName             string
	Digest               string
	FileSize             int64
	LastModified         int64
	ModifiedSinceCatalog bool
	DestinationPaths     []string
}

// RunSummary describes one completed, failed, or cancelled run for the
// history buffer and the control interface.
type RunSummary struct {
	RunID          string
	StartedAt      time.Time
	CompletedAt    time.Time
	State          RunState
	FilesProcessed int64
	BytesProcessed int64
	Failures       int64
	DryRun         DryRunMode
	Error          string
}

// Status is the snapshot returned by the control interface's get_status().
type Status struct {
	Phase          Phase
	FilesProcessed int64
	TotalFiles     int64
	BytesProcessed int64
	TotalBytes     int64
	CurrentFile    string
	Percentage     float64
	State          RunState
}

// Phase identifies which stage of the pipeline is currently executing.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDiscovery
	PhasePreparation
	PhaseReplication
)

func (p Phase) String() string {
	switch p {
	case PhaseDiscovery:
		return "discovery"
	case PhasePreparation:
		return "preparation"
	case PhaseReplication:
		return "replication"
	default:
		return "idle"
	}
}

// RunState is the run's position in the Idle → Running → {Stopping} →
// terminal state machine.
type RunState int

const (
	StateIdle RunState = iota
	StateRunning
	StateStopping
	StateCompleted
	StateFailed
	StateCancelled
)

func (s RunState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// DryRunMode controls whether hashing, catalog mutation, and file copying
// actually happen during a run.
type DryRunMode int

const (
	// DryRunOff performs every step for real.
	DryRunOff DryRunMode = iota
	// DryRunQuick skips hashing, copying, and catalog writes.
	DryRunQuick
	// DryRunFull hashes but skips copying and catalog writes.
	DryRunFull
)

func (m DryRunMode) ShouldHash() bool {
	return m != DryRunQuick
}

func (m DryRunMode) ShouldUpdateCatalog() bool {
	return m == DryRunOff
}

func (m DryRunMode) ShouldCopyFiles() bool {
	return m == DryRunOff
}

func (m DryRunMode) String() string {
	switch m {
	case DryRunQuick:
		return "dry-run-quick"
	case DryRunFull:
		return "dry-run-full"
	default:
		return "off"
	}
}
