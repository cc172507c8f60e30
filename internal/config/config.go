// Package config decodes and validates the engine's declarative JSON
// configuration. Unknown keys are ignored; every path is canonicalized at
// load time.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// InMemorySentinel is the database_file value that selects an in-memory
// catalog instead of a file-backed one.
const InMemorySentinel = ":memory:"

// SourceEntry describes one configured source root.
type SourceEntry struct {
	ParentDirectory string   `json:"parent_directory"`
	MaxDepth        *int     `json:"max_depth,omitempty"`
	SkipDirs        []string `json:"skip_dirs,omitempty"`
}

// Config is the root configuration document.
type Config struct {
	DatabaseFile                     string        `json:"database_file"`
	BackupSources                    []SourceEntry `json:"backup_sources"`
	BackupDestinations               []string      `json:"backup_destinations"`
	MaxMebibytesForHash              int           `json:"max_mebibytes_for_hash"`
	SkipSourceHashCheckIfNewer       bool          `json:"skip_source_hash_check_if_newer"`
	ForceOverwriteBackup             bool          `json:"force_overwrite_backup"`
	OverwriteBackupIfExistingIsNewer bool          `json:"overwrite_backup_if_existing_is_newer"`
	MaxThreads                       int           `json:"max_threads"`
	Schedule                         string        `json:"schedule,omitempty"`
	RunOnStartup                     bool          `json:"run_on_startup,omitempty"`
}

// Default returns a Config with the documented defaults applied (1 MiB hash
// budget, one worker per logical CPU as reported by runtime.NumCPU; physical
// cores are not counted separately).
func Default() *Config {
	return &Config{
		MaxMebibytesForHash: 1,
		MaxThreads:          runtime.NumCPU(),
	}
}

// Manager reads and writes Config documents.
type Manager struct{}

// Read decodes a Config from r, starting from Default() so a partial
// document still yields sane values for omitted keys.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := json.NewDecoder(r)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Write encodes cfg to w as indented JSON.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// ReadFromFile reads and canonicalizes a Config from the given path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %s: %w", path, err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	if err := cfg.canonicalize("."); err != nil {
		return nil, err
	}

	return cfg, nil
}

// canonicalize resolves every relative path in cfg against base (the
// working directory, for paths given relative to it).
func (c *Config) canonicalize(base string) error {
	if c.DatabaseFile != InMemorySentinel && c.DatabaseFile != "" {
		abs, err := resolveAbs(base, c.DatabaseFile)
		if err != nil {
			return fmt.Errorf("canonicalizing database_file: %w", err)
		}
		c.DatabaseFile = abs
	}

	for i := range c.BackupSources {
		abs, err := resolveAbs(base, c.BackupSources[i].ParentDirectory)
		if err != nil {
			return fmt.Errorf("canonicalizing backup_sources[%d].parent_directory: %w", i, err)
		}
		c.BackupSources[i].ParentDirectory = abs
	}

	for i := range c.BackupDestinations {
		abs, err := resolveAbs(base, c.BackupDestinations[i])
		if err != nil {
			return fmt.Errorf("canonicalizing backup_destinations[%d]: %w", i, err)
		}
		c.BackupDestinations[i] = abs
	}

	return nil
}

func resolveAbs(base, path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	return filepath.Abs(filepath.Join(base, path))
}

// ResolvePath implements the first-match-wins config location lookup from
// §6: --config flag, then RUSTYHASHBACKUP_CONFIG env var, then ./config.json.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("RUSTYHASHBACKUP_CONFIG"); env != "" {
		return env
	}
	return "config.json"
}
