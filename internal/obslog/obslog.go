// Package obslog provides the run-scoped structured logger: a tab-delimited
// slog.Handler writing to both a log file and stderr, adapted to the
// engine's minimal Logger interface.
package obslog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// handler formats records as <timestamp>\t<level>\t<runID>\t<message>\t<key=value ...>.
type handler struct {
	w     io.Writer
	runID string
	attrs []slog.Attr
	level slog.Leveler
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")

	if _, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.runID, r.Message); err != nil {
		return err
	}

	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}

	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})

	_, err := fmt.Fprintln(h.w)
	return err
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{
		w:     h.w,
		runID: h.runID,
		level: h.level,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *handler) WithGroup(string) slog.Handler { return h }

// ParseLevel maps the --log-level flag's values to slog levels. "trace" maps
// to Debug, the most verbose level the engine logs at. An unknown name
// defaults to Info.
func ParseLevel(name string) slog.Level {
	switch name {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a structured logger that writes to both logDir/run.log and
// stderr, gated at level. It returns the slog.Logger and the open log file
// so the caller can close it when the run ends.
func New(logDir, runID string, level slog.Level) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "run.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	w := io.MultiWriter(f, os.Stderr)
	h := &handler{w: w, runID: runID, level: level}
	return slog.New(h), f, nil
}

// Quiet writes only to logDir/run.log, never stderr, for --quiet runs.
func Quiet(logDir, runID string, level slog.Level) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "run.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	h := &handler{w: f, runID: runID, level: level}
	return slog.New(h), f, nil
}

// Adapter wraps *slog.Logger to satisfy engine.Logger.
type Adapter struct {
	L *slog.Logger
}

func (a *Adapter) Debug(msg string, args ...any) { a.L.Debug(msg, args...) }
func (a *Adapter) Info(msg string, args ...any)  { a.L.Info(msg, args...) }
func (a *Adapter) Warn(msg string, args ...any)  { a.L.Warn(msg, args...) }
func (a *Adapter) Error(msg string, args ...any) { a.L.Error(msg, args...) }
