package engine

// RunConfig carries the subset of the configuration document the engine
// needs to execute a run. Conversion from the on-disk document lives in
// the wiring layer so this package never imports internal/config.
type RunConfig struct {
	SourceRoots                      []SourceRoot
	Destinations                     []string
	MaxHashBytes                     int64
	SkipSourceHashCheckIfNewer       bool
	ForceOverwriteBackup             bool
	OverwriteBackupIfExistingIsNewer bool
	MaxThreads                       int
}

// SourceRoot is the engine-facing view of a configured source entry.
type SourceRoot struct {
	ParentDirectory string
	MaxDepth        int
	HasMaxDepth     bool
	SkipDirs        []string
}
