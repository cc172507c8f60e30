package engine

import (
	"path/filepath"
)

// prepareFile implements §4.E for a single source path: look up the
// catalog row by (basename, dirname), decide whether the file is new,
// unchanged, or modified, and emit the PreparedBackup that Replication
// will consume. Grounded on prepare_single_candidate/get_is_source_file_updated
// from the original implementation's backup service.
func (e *Engine) prepareFile(path string, sourceRoot string, destinations []string, dry DryRunMode) (PreparedBackup, error) {
	name := filepath.Base(path)
	dir := filepath.Dir(path)

	size, mtime, err := e.stat(path)
	if err != nil {
		return PreparedBackup{}, &IoError{Kind: IOKindMetadata, Path: path, Cause: err}
	}

	existing, err := e.catalog.GetSourceByPath(name, dir)
	if err != nil {
		return PreparedBackup{}, &CatalogError{Operation: "GetSourceByPath", Cause: err}
	}

	var digest string
	var sourceID int64
	var modified bool

	switch {
	case existing == nil:
		digest, sourceID, err = e.newSource(name, dir, path, size, mtime, dry)
		modified = true

	case existing.FileSize == size && existing.LastModified == mtime:
		digest, sourceID, modified = existing.Hash, existing.ID, false

	case existing.LastModified > mtime:
		// Source file's mtime is older than the catalog's; trust the catalog.
		digest, sourceID, modified = existing.Hash, existing.ID, false

	case e.cfg.SkipSourceHashCheckIfNewer && existing.FileSize == size && existing.LastModified < mtime:
		digest, sourceID, modified = existing.Hash, existing.ID, false

	default:
		digest, sourceID, modified, err = e.rehashSource(existing, name, dir, path, size, mtime, dry)
	}

	if err != nil {
		return PreparedBackup{}, err
	}

	destPaths := make([]string, 0, len(destinations))
	for _, d := range destinations {
		destPaths = append(destPaths, destinationPath(d, sourceRoot, path))
	}

	return PreparedBackup{
		SourceID:             sourceID,
		SourcePath:           path,
		FileName:             name,
		Digest:               digest,
		FileSize:             size,
		LastModified:         mtime,
		ModifiedSinceCatalog: modified,
		DestinationPaths:     destPaths,
	}, nil
}

func (e *Engine) newSource(name, dir, path string, size, mtime int64, dry DryRunMode) (digest string, sourceID int64, err error) {
	if dry.ShouldHash() {
		digest, err = e.digest(path)
		if err != nil {
			return "", 0, err
		}
	} else {
		digest = "dry-run-quick-no-hash"
	}

	if !dry.ShouldUpdateCatalog() {
		return digest, 0, nil
	}

	sf, err := e.catalog.UpsertSource(name, dir, digest, size, mtime)
	if err != nil {
		return "", 0, &CatalogError{Operation: "UpsertSource", Cause: err}
	}
	return digest, sf.ID, nil
}

func (e *Engine) rehashSource(existing *SourceFile, name, dir, path string, size, mtime int64, dry DryRunMode) (digest string, sourceID int64, modified bool, err error) {
	if !dry.ShouldHash() {
		return existing.Hash, existing.ID, true, nil
	}

	digest, err = e.digest(path)
	if err != nil {
		return "", 0, false, err
	}

	if digest == existing.Hash && size == existing.FileSize {
		if dry.ShouldUpdateCatalog() {
			if _, err := e.catalog.UpsertSource(name, dir, digest, size, mtime); err != nil {
				return "", 0, false, &CatalogError{Operation: "UpsertSource", Cause: err}
			}
		}
		return digest, existing.ID, false, nil
	}

	if !dry.ShouldUpdateCatalog() {
		return digest, existing.ID, true, nil
	}

	sf, err := e.catalog.UpsertSource(name, dir, digest, size, mtime)
	if err != nil {
		return "", 0, false, &CatalogError{Operation: "UpsertSource", Cause: err}
	}
	return digest, sf.ID, true, nil
}

// destinationPath computes d/relative_path(path, sourceRoot) — the
// source-root prefix stripped and the tail appended under the destination.
func destinationPath(destination, sourceRoot, path string) string {
	rel, err := filepath.Rel(sourceRoot, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return filepath.Join(destination, rel)
}
