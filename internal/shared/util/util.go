package util

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// NormalizeDottedName trims whitespace and stray separators from a dotted
// module name or pattern.
func NormalizeDottedName(s string) string {
	return strings.Trim(strings.TrimSpace(s), ".")
}

// HasNamePrefix reports whether name equals prefix or lies inside it, so
// "a.b.c" is under "a.b" but "a.bc" is not.
func HasNamePrefix(name, prefix string) bool {
	name = NormalizeDottedName(name)
	prefix = NormalizeDottedName(prefix)
	if name == "" || prefix == "" {
		return name == prefix
	}
	return name == prefix || strings.HasPrefix(name, prefix+".")
}

// SortedStringKeys returns the map's keys in sorted order.
func SortedStringKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// WriteFileWithDirs creates parent directories (0755) and writes the file with perm.
func WriteFileWithDirs(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, perm)
}

// HeapAllocMB returns the current heap allocation in MB.
func HeapAllocMB() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc / 1024 / 1024
}
