// Package digest computes a deterministic, bounded-length content digest
// used by the backup engine to detect file changes.
package digest

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// readBufferSize is the chunk size streamed into the hasher. Memory usage
// is O(this), never O(file size).
const readBufferSize = 8 * 1024

// MiB is the unit max_mebibytes_for_hash is expressed in.
const MiB = 1024 * 1024

// Hash returns the lowercase hex-encoded BLAKE2b-512 digest of the leading
// maxBytes of the file at path. Reading stops at EOF or once maxBytes bytes
// have been fed to the hasher, whichever comes first. maxBytes <= 0 means no
// limit.
func Hash(path string, maxBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h, err := blake2b.New512(nil)
	if err != nil {
		return "", fmt.Errorf("initializing hasher: %w", err)
	}

	buf := make([]byte, readBufferSize)
	var fed int64

	for {
		if maxBytes > 0 && fed >= maxBytes {
			break
		}

		n := len(buf)
		if maxBytes > 0 {
			remaining := maxBytes - fed
			if remaining < int64(n) {
				n = int(remaining)
			}
		}

		read, err := f.Read(buf[:n])
		if read > 0 {
			h.Write(buf[:read])
			fed += int64(read)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		if read == 0 {
			break
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBudgetBytes converts a max_mebibytes_for_hash config value into a byte
// budget.
func HashBudgetBytes(maxMebibytes int) int64 {
	return int64(maxMebibytes) * MiB
}
