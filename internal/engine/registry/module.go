package registry

import "strings"

// InitSegment is the reserved last component naming a package's own module.
const InitSegment = "__init__"

// Group is a named collection of package roots. Index is its position in the
// configured group list.
type Group struct {
	Index int      `json:"index"`
	Name  string   `json:"name"`
	Roots []string `json:"-"`
}

// GroupRef identifies the group a module or matrix node belongs to.
type GroupRef struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

type Module struct {
	Name  string   `json:"name"`
	Path  string   `json:"path"`
	Group GroupRef `json:"group"`
	Depth int      `json:"depth"`
}

// IsPackageSelf reports whether the module is a package's own __init__ module.
func (m Module) IsPackageSelf() bool {
	return strings.HasSuffix(m.Name, "."+InitSegment) || m.Name == InitSegment
}

// Depth counts the dot-separated components of a module name.
func Depth(name string) int {
	if name == "" {
		return 0
	}
	return strings.Count(name, ".") + 1
}

// Truncate keeps the first depth components of name. Names that are already
// that shallow are returned unchanged.
func Truncate(name string, depth int) string {
	if depth <= 0 {
		return name
	}
	idx := 0
	for i := 0; i < depth; i++ {
		next := strings.IndexByte(name[idx:], '.')
		if next < 0 {
			return name
		}
		idx += next + 1
	}
	return name[:idx-1]
}

// Basename returns the last component of a dotted name.
func Basename(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// PackageSelf returns the package-self module name for pkg.
func PackageSelf(pkg string) string {
	return pkg + "." + InitSegment
}
