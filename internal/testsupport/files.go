package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// Payload returns size bytes of deterministic, non-repeating-per-offset
// content so truncation or reordering shows up in comparisons.
func Payload(size int) []byte {
	if size < 0 {
		size = 0
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte((i*31 + i/251) % 251)
	}
	return buf
}

// WriteFile fills the target path with the requested number of bytes using
// Payload. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) []byte {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := Payload(int(size))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return data
}
