package digest

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/blake2b"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHash_MatchesBlake2bOfWholeFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", []byte("hello"))

	got, err := Hash(path, 0)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	h, _ := blake2b.New512(nil)
	h.Write([]byte("hello"))
	want := hex.EncodeToString(h.Sum(nil))

	if got != want {
		t.Errorf("Hash() = %s, want %s", got, want)
	}
}

func TestHash_IsStableAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", []byte("stable content"))

	first, err := Hash(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Hash(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("Hash() not stable: %s != %s", first, second)
	}
}

func TestHash_OutputIs128CharLowercaseHex(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", []byte("x"))

	got, err := Hash(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 128 {
		t.Errorf("len(Hash()) = %d, want 128", len(got))
	}
	for _, r := range got {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Fatalf("Hash() contains non-lowercase-hex rune %q: %s", r, got)
		}
	}
}

func TestHash_RespectsByteBudget(t *testing.T) {
	dir := t.TempDir()

	prefix := bytes.Repeat([]byte("A"), 1024)
	full := append(append([]byte{}, prefix...), []byte("tail-that-differs")...)
	other := append(append([]byte{}, prefix...), []byte("a-completely-different-tail")...)

	pathA := writeFile(t, dir, "a.bin", full)
	pathB := writeFile(t, dir, "b.bin", other)

	hashA, err := Hash(pathA, 1024)
	if err != nil {
		t.Fatal(err)
	}
	hashB, err := Hash(pathB, 1024)
	if err != nil {
		t.Fatal(err)
	}

	if hashA != hashB {
		t.Errorf("Hash() with 1024-byte budget should ignore differing tails: %s != %s", hashA, hashB)
	}

	fullHashA, err := Hash(pathA, 0)
	if err != nil {
		t.Fatal(err)
	}
	fullHashB, err := Hash(pathB, 0)
	if err != nil {
		t.Fatal(err)
	}
	if fullHashA == fullHashB {
		t.Error("full-file hashes should differ since tails differ")
	}
}

func TestHashBudgetBytes(t *testing.T) {
	if got := HashBudgetBytes(1); got != MiB {
		t.Errorf("HashBudgetBytes(1) = %d, want %d", got, MiB)
	}
	if got := HashBudgetBytes(5); got != 5*MiB {
		t.Errorf("HashBudgetBytes(5) = %d, want %d", got, 5*MiB)
	}
}

