package engine

import (
	"io"
	"os"
	"path/filepath"
)

// replicateUnit implements §4.F for one (PreparedBackup, destination) pair:
// decide whether a copy is required, perform it atomically, verify it, and
// record the outcome in the catalog. Grounded on is_backup_required /
// existing_file_needs_updated / backup_file from the original
// implementation's backup service.
func (e *Engine) replicateUnit(p PreparedBackup, destPath string, dry DryRunMode) (copied bool, bytesCopied int64, err error) {
	required, err := e.isBackupRequired(p, destPath)
	if err != nil {
		return false, 0, err
	}
	if !required {
		return false, 0, nil
	}

	if !dry.ShouldCopyFiles() {
		e.logger.Info("would copy", "source", p.SourcePath, "destination", destPath)
		return true, p.FileSize, nil
	}

	if err := e.copyFile(p.SourcePath, destPath); err != nil {
		return false, 0, err
	}

	destDigest, err := e.digest(destPath)
	if err != nil {
		return false, 0, err
	}

	if destDigest != p.Digest {
		os.Remove(destPath)
		return false, 0, &VerificationError{
			SourcePath:      p.SourcePath,
			DestinationPath: destPath,
			SourceHash:      p.Digest,
			DestinationHash: destDigest,
		}
	}

	mtime, err := destMtime(destPath)
	if err != nil {
		return false, 0, &IoError{Kind: IOKindMetadata, Path: destPath, Cause: err}
	}

	if _, err := e.catalog.UpsertBackup(p.SourceID, filepath.Base(destPath), filepath.Dir(destPath), mtime); err != nil {
		return false, 0, &CatalogError{Operation: "UpsertBackup", Cause: err}
	}

	return true, p.FileSize, nil
}

// isBackupRequired implements the §4.F decision table. Grounded on
// is_backup_required / existing_file_needs_updated from the original
// implementation's backup service: the normal path (the destination's
// mtime has not regressed below the recorded value) re-hashes the
// destination's actual bytes and compares against the source's current
// digest, so tampering that leaves the mtime untouched or advances it is
// still caught, and a source-side content change is still caught even
// though the destination itself hasn't been touched.
// overwrite_backup_if_existing_is_newer only gates the opposite case,
// where the destination's mtime has regressed below the recorded value.
func (e *Engine) isBackupRequired(p PreparedBackup, destPath string) (bool, error) {
	info, statErr := os.Stat(destPath)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return true, nil
		}
		return false, &IoError{Kind: IOKindMetadata, Path: destPath, Cause: statErr}
	}

	if e.cfg.ForceOverwriteBackup {
		return true, nil
	}

	backup, err := e.catalog.GetBackupForSource(p.SourceID, filepath.Base(destPath), filepath.Dir(destPath))
	if err != nil {
		return false, &CatalogError{Operation: "GetBackupForSource", Cause: err}
	}
	if backup == nil {
		// Unknown, reclaimable: the destination file was not produced by
		// this engine's bookkeeping. Treat it as requiring replacement.
		return true, nil
	}

	currentMtime := info.ModTime().Unix()
	if backup.LastModified > currentMtime {
		// The destination's mtime has regressed below the recorded value.
		return e.cfg.OverwriteBackupIfExistingIsNewer, nil
	}

	if info.Size() != p.FileSize {
		return true, nil
	}

	destDigest, err := e.digest(destPath)
	if err != nil {
		return false, err
	}

	return destDigest != p.Digest, nil
}

// copyFile streams source into a temporary sibling of destPath and renames
// it into place, preserving the source's mtime. The rename is atomic within
// the same filesystem.
func (e *Engine) copyFile(sourcePath, destPath string) error {
	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return &IoError{Kind: IOKindWrite, Path: destDir, Cause: err}
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return &IoError{Kind: IOKindRead, Path: sourcePath, Cause: err}
	}
	defer src.Close()

	tmp, err := os.CreateTemp(destDir, ".rustyhashbackup-tmp-*")
	if err != nil {
		return &IoError{Kind: IOKindWrite, Path: destDir, Cause: err}
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IoError{Kind: IOKindWrite, Path: tmpPath, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &IoError{Kind: IOKindWrite, Path: tmpPath, Cause: err}
	}

	srcInfo, err := src.Stat()
	if err != nil {
		os.Remove(tmpPath)
		return &IoError{Kind: IOKindMetadata, Path: sourcePath, Cause: err}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return &IoError{Kind: IOKindRename, Path: destPath, Cause: err}
	}

	modTime := srcInfo.ModTime()
	if err := os.Chtimes(destPath, modTime, modTime); err != nil {
		return &IoError{Kind: IOKindWrite, Path: destPath, Cause: err}
	}

	return nil
}

func destMtime(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.ModTime().Unix(), nil
}
