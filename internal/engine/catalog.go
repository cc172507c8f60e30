package engine

// Catalog provides the embedded relational store operations Preparation and
// Replication depend on. Implementations (internal/catalog) are responsible
// for connection pooling, pragma configuration, and schema migration; the
// engine itself never issues SQL.
type Catalog interface {
	// GetSourceByPath returns the SourceFile row for (name, path), or nil if
	// none exists.
	GetSourceByPath(name, path string) (*SourceFile, error)

	// UpsertSource inserts or updates the SourceFile row for (name, path),
	// returning the row with its identifier populated.
	UpsertSource(name, path, digest string, size, mtime int64) (*SourceFile, error)

	// GetBackupForSource returns the BackupFile row for (sourceID, name,
	// path), or nil if none exists.
	GetBackupForSource(sourceID int64, name, path string) (*BackupFile, error)

	// UpsertBackup inserts or updates the BackupFile row for (name, path),
	// linking it to sourceID.
	UpsertBackup(sourceID int64, name, path string, mtime int64) (*BackupFile, error)

	// Close releases the underlying connection pool.
	Close() error
}
