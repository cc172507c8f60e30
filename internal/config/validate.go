package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// FieldError names the offending configuration key and carries a
// platform-appropriate remediation hint. It satisfies the ConfigError shape
// from the engine's error taxonomy without engine importing config.
type FieldError struct {
	Field string
	Hint  string
	Cause error
}

func (e *FieldError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Field, e.Cause, e.Hint)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Cause)
}

func (e *FieldError) Unwrap() error { return e.Cause }

// Validate enforces the structural and filesystem preconditions from §4.A:
// readable source directories, writable destination parents, positive
// thread/hash-budget counts, and non-overlapping sources/destinations.
func (c *Config) Validate() error {
	if c.MaxThreads <= 0 {
		return &FieldError{
			Field: "max_threads",
			Cause: fmt.Errorf("must be positive"),
			Hint:  "set max_threads to a positive integer, e.g. the physical CPU count",
		}
	}

	if c.MaxMebibytesForHash <= 0 {
		return &FieldError{
			Field: "max_mebibytes_for_hash",
			Cause: fmt.Errorf("must be positive"),
			Hint:  "set max_mebibytes_for_hash to a positive integer, e.g. 1",
		}
	}

	for i, src := range c.BackupSources {
		info, err := os.Stat(src.ParentDirectory)
		if err != nil {
			return &FieldError{
				Field: fmt.Sprintf("backup_sources[%d].parent_directory", i),
				Cause: err,
				Hint:  remediateUnreadable(src.ParentDirectory),
			}
		}
		if !info.IsDir() {
			return &FieldError{
				Field: fmt.Sprintf("backup_sources[%d].parent_directory", i),
				Cause: fmt.Errorf("%s is not a directory", src.ParentDirectory),
			}
		}
		dir, err := os.Open(src.ParentDirectory)
		if err != nil {
			return &FieldError{
				Field: fmt.Sprintf("backup_sources[%d].parent_directory", i),
				Cause: err,
				Hint:  remediateUnreadable(src.ParentDirectory),
			}
		}
		dir.Close()
	}

	for i, dest := range c.BackupDestinations {
		parent := filepath.Dir(dest)
		if err := checkWritableParent(parent); err != nil {
			return &FieldError{
				Field: fmt.Sprintf("backup_destinations[%d]", i),
				Cause: err,
				Hint:  remediateNotWritable(parent),
			}
		}
	}

	if err := checkNoOverlap(c.BackupSources, c.BackupDestinations); err != nil {
		return err
	}

	if c.Schedule != "" {
		if err := validateSchedule(c.Schedule); err != nil {
			return &FieldError{
				Field: "schedule",
				Cause: err,
				Hint:  "use a 5 or 6 field cron expression, e.g. \"0 2 * * *\" for daily at 2am",
			}
		}
	}

	return nil
}

// cronFieldPattern matches one field of a cron expression: a step or range
// over digits, or the "*" wildcard, with optional comma-separated lists.
var cronFieldPattern = regexp.MustCompile(`^(\*|[0-9]+(-[0-9]+)?)(/[0-9]+)?(,(\*|[0-9]+(-[0-9]+)?)(/[0-9]+)?)*$`)

// validateSchedule checks the syntactic shape of a cron expression: 5
// fields (minute hour day month weekday) or 6 (with a leading seconds
// field, matching the original implementation's cron crate), each
// matching cronFieldPattern. It does not validate field ranges against
// the field's calendar bounds (e.g. "60" in the minute field), only the
// expression's structure.
func validateSchedule(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != 5 && len(fields) != 6 {
		return fmt.Errorf("%q has %d fields, want 5 or 6", expr, len(fields))
	}
	for _, f := range fields {
		if !cronFieldPattern.MatchString(f) {
			return fmt.Errorf("%q is not a valid cron field in %q", f, expr)
		}
	}
	return nil
}

func checkWritableParent(parent string) error {
	info, err := os.Stat(parent)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", parent)
	}
	probe := filepath.Join(parent, ".rustyhashbackup-writable-check")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", parent, err)
	}
	f.Close()
	os.Remove(probe)
	return nil
}

func checkNoOverlap(sources []SourceEntry, destinations []string) error {
	for _, src := range sources {
		for i, dest := range destinations {
			if pathsOverlap(src.ParentDirectory, dest) {
				return &FieldError{
					Field: fmt.Sprintf("backup_destinations[%d]", i),
					Cause: fmt.Errorf("%s overlaps source root %s", dest, src.ParentDirectory),
				}
			}
		}
	}
	return nil
}

func pathsOverlap(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	sep := string(filepath.Separator)
	return a == b || strings.HasPrefix(a+sep, b+sep) || strings.HasPrefix(b+sep, a+sep)
}

// remediateUnreadable and remediateNotWritable mirror the teacher's
// runtime.GOOS-branching default hints (see
// other_examples/PaulSchiretz-pgl-backup__config.go), naming the
// platform-appropriate tool to fix permissions.
func remediateUnreadable(path string) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("verify %s exists and is readable; check permissions with icacls %q", path, path)
	}
	return fmt.Sprintf("verify %s exists and is readable; check permissions with ls -la %q", path, path)
}

func remediateNotWritable(path string) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("grant write access with icacls %q /grant Users:W", path)
	}
	return fmt.Sprintf("grant write access with chmod u+w %q or chown", path)
}
