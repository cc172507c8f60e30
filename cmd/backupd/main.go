// Command backupd is the single-shot driver that loads a configuration
// document, opens the catalog, and runs one discovery/preparation/
// replication pass.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"rustyhashbackup/internal/catalog"
	"rustyhashbackup/internal/config"
	"rustyhashbackup/internal/digest"
	"rustyhashbackup/internal/engine"
	"rustyhashbackup/internal/obslog"
)

var (
	flagConfig     string
	flagDryRun     bool
	flagDryRunFull bool
	flagValidate   bool
	flagOnce       bool
	flagQuiet      bool
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "backupd",
	Short: "Catalog-backed, hash-based incremental file backup engine",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "config file path")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "quick dry-run: skip hashing, copying, and catalog writes")
	rootCmd.Flags().BoolVar(&flagDryRunFull, "dry-run-full", false, "full dry-run: hash but skip copying and catalog writes")
	rootCmd.Flags().BoolVar(&flagValidate, "validate-only", false, "load and validate config, then exit")
	// backupd performs exactly one pass per invocation and has no internal
	// scheduler; --once is accepted for command-line compatibility with
	// wrapper scripts that pass it unconditionally, but does not change
	// behavior here.
	rootCmd.Flags().BoolVar(&flagOnce, "once", false, "ignore any configured schedule")
	rootCmd.Flags().BoolVar(&flagQuiet, "quiet", false, "suppress progress indicators")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "trace|debug|info|warn|error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if flagDryRun && flagDryRunFull {
		return fmt.Errorf("--dry-run and --dry-run-full are mutually exclusive")
	}

	cfgPath := config.ResolvePath(flagConfig)
	cfg, err := config.ReadFromFile(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", cfgPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	if flagValidate {
		fmt.Printf("config at %s is valid\n", cfgPath)
		return nil
	}

	level := obslog.ParseLevel(flagLogLevel)
	logDir := logDirFor(cfg.DatabaseFile)

	newLogger := obslog.New
	if flagQuiet {
		newLogger = obslog.Quiet
	}
	slogOut, logFile, err := newLogger(logDir, "backupd", level)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logFile.Close()
	logger := &obslog.Adapter{L: slogOut}

	cat, err := catalog.Open(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}

	e := engine.New(cat, logger, engine.RealClock{}, engine.UUIDGenerator{}, toRunConfig(cfg))
	defer e.Close()

	dry := engine.DryRunOff
	switch {
	case flagDryRun:
		dry = engine.DryRunQuick
	case flagDryRunFull:
		dry = engine.DryRunFull
	}

	summary, err := e.Run(dry)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	fmt.Printf("run %s: %s — %d file(s) processed, %d byte(s), %d failure(s)\n",
		summary.RunID, summary.State, summary.FilesProcessed, summary.BytesProcessed, summary.Failures)

	if summary.State == engine.StateFailed {
		return fmt.Errorf("run ended in failed state: %s", summary.Error)
	}
	return nil
}

func logDirFor(databaseFile string) string {
	if databaseFile == config.InMemorySentinel || databaseFile == "" {
		return "."
	}
	return filepath.Dir(databaseFile)
}

func toRunConfig(cfg *config.Config) engine.RunConfig {
	roots := make([]engine.SourceRoot, 0, len(cfg.BackupSources))
	for _, s := range cfg.BackupSources {
		root := engine.SourceRoot{
			ParentDirectory: s.ParentDirectory,
			SkipDirs:        s.SkipDirs,
		}
		if s.MaxDepth != nil {
			root.MaxDepth = *s.MaxDepth
			root.HasMaxDepth = true
		}
		roots = append(roots, root)
	}

	return engine.RunConfig{
		SourceRoots:                      roots,
		Destinations:                     cfg.BackupDestinations,
		MaxHashBytes:                     digest.HashBudgetBytes(cfg.MaxMebibytesForHash),
		SkipSourceHashCheckIfNewer:       cfg.SkipSourceHashCheckIfNewer,
		ForceOverwriteBackup:             cfg.ForceOverwriteBackup,
		OverwriteBackupIfExistingIsNewer: cfg.OverwriteBackupIfExistingIsNewer,
		MaxThreads:                       cfg.MaxThreads,
	}
}
