package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	depth := 3
	original := &Config{
		DatabaseFile: "/var/lib/rustyhashbackup/catalog.db",
		BackupSources: []SourceEntry{
			{ParentDirectory: "/home/user/docs", MaxDepth: &depth, SkipDirs: []string{".git", "node_modules"}},
		},
		BackupDestinations:         []string{"/mnt/backup"},
		MaxMebibytesForHash:        4,
		SkipSourceHashCheckIfNewer: true,
		ForceOverwriteBackup:       false,
		MaxThreads:                 8,
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.DatabaseFile != original.DatabaseFile {
		t.Errorf("DatabaseFile = %q, want %q", got.DatabaseFile, original.DatabaseFile)
	}
	if len(got.BackupSources) != 1 {
		t.Fatalf("len(BackupSources) = %d, want 1", len(got.BackupSources))
	}
	if got.BackupSources[0].ParentDirectory != "/home/user/docs" {
		t.Errorf("ParentDirectory = %q, want /home/user/docs", got.BackupSources[0].ParentDirectory)
	}
	if got.BackupSources[0].MaxDepth == nil || *got.BackupSources[0].MaxDepth != 3 {
		t.Errorf("MaxDepth = %v, want 3", got.BackupSources[0].MaxDepth)
	}
	if got.MaxMebibytesForHash != 4 {
		t.Errorf("MaxMebibytesForHash = %d, want 4", got.MaxMebibytesForHash)
	}
	if !got.SkipSourceHashCheckIfNewer {
		t.Error("SkipSourceHashCheckIfNewer = false, want true")
	}
	if got.MaxThreads != 8 {
		t.Errorf("MaxThreads = %d, want 8", got.MaxThreads)
	}
}

func TestManager_Read_UnknownKeysIgnored(t *testing.T) {
	m := &Manager{}
	r := bytes.NewBufferString(`{"database_file": ":memory:", "totally_unknown_field": 123}`)

	cfg, err := m.Read(r)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.DatabaseFile != ":memory:" {
		t.Errorf("DatabaseFile = %q, want :memory:", cfg.DatabaseFile)
	}
}

func TestManager_Read_DefaultsAppliedForOmittedKeys(t *testing.T) {
	m := &Manager{}
	r := bytes.NewBufferString(`{"database_file": ":memory:"}`)

	cfg, err := m.Read(r)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.MaxMebibytesForHash != 1 {
		t.Errorf("MaxMebibytesForHash = %d, want default 1", cfg.MaxMebibytesForHash)
	}
	if cfg.MaxThreads <= 0 {
		t.Errorf("MaxThreads = %d, want positive default", cfg.MaxThreads)
	}
}

func TestReadFromFile_CanonicalizesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	if err := os.Mkdir(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}

	configPath := filepath.Join(dir, "config.json")
	body := `{
		"database_file": "catalog.db",
		"backup_sources": [{"parent_directory": "src"}],
		"backup_destinations": ["dst"],
		"max_mebibytes_for_hash": 1,
		"max_threads": 2
	}`
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadFromFile(configPath)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}

	if !filepath.IsAbs(cfg.DatabaseFile) {
		t.Errorf("DatabaseFile = %q, want absolute path", cfg.DatabaseFile)
	}
	if !filepath.IsAbs(cfg.BackupSources[0].ParentDirectory) {
		t.Errorf("ParentDirectory = %q, want absolute path", cfg.BackupSources[0].ParentDirectory)
	}
	if !filepath.IsAbs(cfg.BackupDestinations[0]) {
		t.Errorf("BackupDestinations[0] = %q, want absolute path", cfg.BackupDestinations[0])
	}
}

func TestReadFromFile_InMemorySentinelNotCanonicalized(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(configPath, []byte(`{"database_file": ":memory:"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadFromFile(configPath)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if cfg.DatabaseFile != InMemorySentinel {
		t.Errorf("DatabaseFile = %q, want %q", cfg.DatabaseFile, InMemorySentinel)
	}
}

func TestResolvePath(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		if got := ResolvePath("/explicit/path.json"); got != "/explicit/path.json" {
			t.Errorf("ResolvePath() = %q, want /explicit/path.json", got)
		}
	})

	t.Run("env var used when flag empty", func(t *testing.T) {
		t.Setenv("RUSTYHASHBACKUP_CONFIG", "/env/path.json")
		if got := ResolvePath(""); got != "/env/path.json" {
			t.Errorf("ResolvePath() = %q, want /env/path.json", got)
		}
	})

	t.Run("default when neither set", func(t *testing.T) {
		t.Setenv("RUSTYHASHBACKUP_CONFIG", "")
		if got := ResolvePath(""); got != "config.json" {
			t.Errorf("ResolvePath() = %q, want config.json", got)
		}
	})
}
