package formats

import (
	"testing"

	"depmatrix/internal/engine/matrix"
)

func TestNodeLabel(t *testing.T) {
	t.Parallel()

	node := &matrix.Node{Name: "pkg.a", Cardinal: matrix.Cardinal{Imports: 4, Exports: 3}}
	got := nodeLabel("pkg.a", node)
	expected := "pkg.a\\n(in=3 out=4)"
	if got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}

	if got := nodeLabel("pkg.b", nil); got != "pkg.b" {
		t.Fatalf("expected bare name, got %q", got)
	}
}

func TestSanitizeID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty", input: "", expected: "m"},
		{name: "Alpha", input: "foo", expected: "foo"},
		{name: "DigitsFirst", input: "1mod", expected: "m_1mod"},
		{name: "Symbols", input: "a/b:c", expected: "a_b_c"},
		{name: "Dotted", input: "internal.__init__", expected: "internal___init__"},
		{name: "OnlySymbols", input: "!!", expected: "__"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := sanitizeID(tc.input); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestMakeIDs(t *testing.T) {
	t.Parallel()

	names := []string{"a-b", "a_b", "c"}
	got := makeIDs(names)
	if got["a-b"] != "a_b" {
		t.Fatalf("expected a-b to map to a_b, got %q", got["a-b"])
	}
	if got["a_b"] != "a_b_2" {
		t.Fatalf("expected a_b to map to a_b_2, got %q", got["a_b"])
	}
	if got["c"] != "c" {
		t.Fatalf("expected c to map to c, got %q", got["c"])
	}
}

func TestEscapeLabel(t *testing.T) {
	t.Parallel()

	got := escapeLabel("a\"b\"c")
	if got != "a'b'c" {
		t.Fatalf("expected %q, got %q", "a'b'c", got)
	}
}

func TestEscapeCell(t *testing.T) {
	t.Parallel()

	if got := escapeCell("a|b\nc"); got != "a\\|b c" {
		t.Fatalf("unexpected escape %q", got)
	}
}
