package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

type collectingLogger struct {
	warnings []string
}

func (l *collectingLogger) Warn(msg string, args ...any) {
	l.warnings = append(l.warnings, msg)
}

func mkFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover_FindsFilesUnderRoot(t *testing.T) {
	root := t.TempDir()
	mkFile(t, filepath.Join(root, "a.txt"))
	mkFile(t, filepath.Join(root, "sub", "b.txt"))

	result, err := Discover([]Source{{ParentDirectory: root}}, &collectingLogger{})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	files := result[root]
	sort.Strings(files)
	want := []string{filepath.Join(root, "a.txt"), filepath.Join(root, "sub", "b.txt")}
	sort.Strings(want)

	if len(files) != len(want) {
		t.Fatalf("Discover() found %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}
}

func TestDiscover_PrunesSkipDirs(t *testing.T) {
	root := t.TempDir()
	mkFile(t, filepath.Join(root, "keep.txt"))
	mkFile(t, filepath.Join(root, "node_modules", "dep.js"))

	result, err := Discover([]Source{{ParentDirectory: root, SkipDirs: []string{"node_modules"}}}, &collectingLogger{})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	for _, f := range result[root] {
		if filepath.Base(filepath.Dir(f)) == "node_modules" {
			t.Errorf("Discover() descended into skipped directory: %s", f)
		}
	}
	if len(result[root]) != 1 {
		t.Errorf("Discover() found %d files, want 1: %v", len(result[root]), result[root])
	}
}

func TestDiscover_PrunesByMaxDepth(t *testing.T) {
	root := t.TempDir()
	mkFile(t, filepath.Join(root, "depth0.txt"))
	mkFile(t, filepath.Join(root, "a", "depth1.txt"))
	mkFile(t, filepath.Join(root, "a", "b", "depth2.txt"))

	result, err := Discover([]Source{{ParentDirectory: root, MaxDepth: 1, HasMaxDepth: true}}, &collectingLogger{})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	for _, f := range result[root] {
		if filepath.Base(f) == "depth2.txt" {
			t.Errorf("Discover() included file beyond max_depth: %s", f)
		}
	}
	if len(result[root]) != 2 {
		t.Errorf("Discover() found %d files, want 2: %v", len(result[root]), result[root])
	}
}

func TestDiscover_SkipsUnreadableSubtreeWithWarning(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root; permission denial is not enforced")
	}

	root := t.TempDir()
	mkFile(t, filepath.Join(root, "readable.txt"))

	blocked := filepath.Join(root, "blocked")
	mkFile(t, filepath.Join(blocked, "secret.txt"))
	if err := os.Chmod(blocked, 0o000); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(blocked, 0o755)

	logger := &collectingLogger{}
	result, err := Discover([]Source{{ParentDirectory: root}}, logger)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	found := false
	for _, f := range result[root] {
		if filepath.Base(f) == "readable.txt" {
			found = true
		}
	}
	if !found {
		t.Error("Discover() did not find readable.txt despite unreadable sibling subtree")
	}
	if len(logger.warnings) == 0 {
		t.Error("Discover() did not warn about the unreadable subtree")
	}
}

func TestDiscover_DoesNotChaseSymlinkedDirectories(t *testing.T) {
	root := t.TempDir()
	target := t.TempDir()
	mkFile(t, filepath.Join(target, "outside.txt"))

	if err := os.Symlink(target, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	result, err := Discover([]Source{{ParentDirectory: root}}, &collectingLogger{})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	for _, f := range result[root] {
		if filepath.Base(f) == "outside.txt" {
			t.Error("Discover() followed a symlinked directory across roots")
		}
	}
}

func TestDepthOf(t *testing.T) {
	root := "/a"
	cases := map[string]int{
		"/a":       0,
		"/a/b":     1,
		"/a/b/c":   2,
		"/a/b/c/d": 3,
	}
	for path, want := range cases {
		if got := depthOf(root, path); got != want {
			t.Errorf("depthOf(%q, %q) = %d, want %d", root, path, got, want)
		}
	}
}
