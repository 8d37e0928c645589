package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeDottedName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty", input: "", expected: ""},
		{name: "Trim", input: "  pkg.sub  ", expected: "pkg.sub"},
		{name: "Dots", input: ".pkg.sub.", expected: "pkg.sub"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeDottedName(tc.input); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestHasNamePrefix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		input  string
		prefix string
		want   bool
	}{
		{name: "Equal", input: "a.b", prefix: "a.b", want: true},
		{name: "Child", input: "a.b.c", prefix: "a.b", want: true},
		{name: "SiblingWithSharedStem", input: "a.bc", prefix: "a.b", want: false},
		{name: "Parent", input: "a", prefix: "a.b", want: false},
		{name: "BothEmpty", input: "", prefix: "", want: true},
		{name: "EmptyPrefix", input: "a", prefix: "", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := HasNamePrefix(tc.input, tc.prefix); got != tc.want {
				t.Fatalf("HasNamePrefix(%q, %q) = %v, want %v", tc.input, tc.prefix, got, tc.want)
			}
		})
	}
}

func TestSortedStringKeys(t *testing.T) {
	got := SortedStringKeys(map[string]int{"c": 1, "a": 2, "b": 3})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestWriteFileWithDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "out.csv")
	if err := WriteFileWithDirs(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "x" {
		t.Fatalf("unexpected content %q", data)
	}
}
