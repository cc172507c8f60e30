// Package catalog implements engine.Catalog against an embedded SQLite
// database. Upsert semantics on the unique (file_name, file_path) indexes
// are the sole concurrency-correctness mechanism; there is no
// application-level row locking.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"rustyhashbackup/internal/catalog/migrations"
	"rustyhashbackup/internal/engine"
)

// SQLite implements engine.Catalog on top of database/sql + go-sqlite3.
type SQLite struct {
	db   *sql.DB
	path string
}

// Open connects to path (or engine's in-memory sentinel), applies the
// pragma sequence, sizes the connection pool at physicalCPUs+7 (mirrored
// from the original's r2d2 pool sizing), and runs pending migrations.
//
// A plain ":memory:" DSN gives go-sqlite3 a fresh, independent database per
// pooled connection, so concurrent workers would each see their own empty
// catalog. The original implementation's pool avoids this by opening
// "file::memory:?cache=shared" (sqlite.rs); dsn mirrors that here so the
// in-memory pool shares one database the way the file-backed pool shares
// one file.
func Open(path string) (*SQLite, error) {
	inMemory := path == "" || path == ":memory:"

	dsn := path
	if inMemory {
		dsn = "file::memory:?cache=shared"
	}
	// go-sqlite3 applies these DSN parameters to every connection it opens,
	// so each pooled connection gets the per-connection pragmas, not just
	// the one that runs the Exec loop below.
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=1"
	if !inMemory {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &engine.CatalogError{Operation: "open", Cause: err}
	}

	for _, pragma := range pragmas(inMemory) {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, &engine.CatalogError{Operation: "pragma " + pragma, Cause: err}
		}
	}

	poolSize := physicalCPUs() + 7
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, &engine.CatalogError{Operation: "migrate", Cause: err}
	}

	return &SQLite{db: db, path: path}, nil
}

func pragmas(inMemory bool) []string {
	p := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	if !inMemory {
		p = append(p, "PRAGMA journal_mode = WAL")
	}
	return p
}

// physicalCPUs approximates physical core count. Go's scheduler exposes
// only logical CPUs; runtime.NumCPU is the closest stand-in without a
// third-party CPU-topology dependency in the pack.
func physicalCPUs() int {
	return runtime.NumCPU()
}

func (s *SQLite) GetSourceByPath(name, path string) (*engine.SourceFile, error) {
	row := s.db.QueryRow(
		`SELECT id, file_name, file_path, hash, file_size, last_modified
		   FROM source_files WHERE file_name = ? AND file_path = ?`,
		name, path,
	)
	sf := &engine.SourceFile{}
	err := row.Scan(&sf.ID, &sf.FileName, &sf.FilePath, &sf.Hash, &sf.FileSize, &sf.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &engine.CatalogError{Operation: "GetSourceByPath", Cause: err}
	}
	return sf, nil
}

// UpsertSource inserts or updates the source_files row for (name, path),
// keyed on the unique (file_name, file_path) index.
func (s *SQLite) UpsertSource(name, path, digest string, size, mtime int64) (*engine.SourceFile, error) {
	_, err := s.db.Exec(
		`INSERT INTO source_files (file_name, file_path, hash, file_size, last_modified)
		   VALUES (?, ?, ?, ?, ?)
		   ON CONFLICT (file_name, file_path) DO UPDATE SET
		     hash = excluded.hash,
		     file_size = excluded.file_size,
		     last_modified = excluded.last_modified`,
		name, path, digest, size, mtime,
	)
	if err != nil {
		return nil, &engine.CatalogError{Operation: "UpsertSource", Cause: err}
	}
	return s.GetSourceByPath(name, path)
}

func (s *SQLite) GetBackupForSource(sourceID int64, name, path string) (*engine.BackupFile, error) {
	row := s.db.QueryRow(
		`SELECT id, source_id, file_name, file_path, last_modified
		   FROM backup_files WHERE source_id = ? AND file_name = ? AND file_path = ?`,
		sourceID, name, path,
	)
	bf := &engine.BackupFile{}
	err := row.Scan(&bf.ID, &bf.SourceID, &bf.FileName, &bf.FilePath, &bf.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &engine.CatalogError{Operation: "GetBackupForSource", Cause: err}
	}
	return bf, nil
}

// UpsertBackup inserts or updates the backup_files row for (name, path).
// The unique index is on (file_name, file_path) rather than
// (source_id, file_name, file_path) so that a destination file reassigned
// to a different source still upserts cleanly instead of violating a
// uniqueness constraint scoped too narrowly.
func (s *SQLite) UpsertBackup(sourceID int64, name, path string, mtime int64) (*engine.BackupFile, error) {
	_, err := s.db.Exec(
		`INSERT INTO backup_files (source_id, file_name, file_path, last_modified)
		   VALUES (?, ?, ?, ?)
		   ON CONFLICT (file_name, file_path) DO UPDATE SET
		     source_id = excluded.source_id,
		     last_modified = excluded.last_modified`,
		sourceID, name, path, mtime,
	)
	if err != nil {
		return nil, &engine.CatalogError{Operation: "UpsertBackup", Cause: err}
	}

	row := s.db.QueryRow(
		`SELECT id, source_id, file_name, file_path, last_modified
		   FROM backup_files WHERE file_name = ? AND file_path = ?`,
		name, path,
	)
	bf := &engine.BackupFile{}
	if err := row.Scan(&bf.ID, &bf.SourceID, &bf.FileName, &bf.FilePath, &bf.LastModified); err != nil {
		return nil, &engine.CatalogError{Operation: "UpsertBackup", Cause: err}
	}
	return bf, nil
}

// Path returns the database file path, or the in-memory sentinel.
func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing catalog: %w", err)
	}
	return nil
}

var _ engine.Catalog = (*SQLite)(nil)
