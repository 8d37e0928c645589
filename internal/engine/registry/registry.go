package registry

import (
	"sort"
	"strings"

	"depmatrix/internal/core/errors"
)

// Registry is the frozen set of discovered modules. It is safe for
// concurrent reads once built.
type Registry struct {
	spec     Spec
	modules  []Module
	index    map[string]int
	maxDepth int
}

// New validates the discovered modules against spec and freezes them. Modules
// are ordered by group index, then name; depth is recomputed from the name.
func New(spec Spec, modules []Module) (*Registry, error) {
	if spec.IsZero() {
		return nil, errors.New(errors.CodeInvalidInput, "registry requires a package spec")
	}

	groups := spec.groups
	out := make([]Module, 0, len(modules))
	seen := make(map[string]bool, len(modules))
	for _, m := range modules {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return nil, errors.New(errors.CodeInvalidInput, "module name must not be empty")
		}
		for _, part := range strings.Split(name, ".") {
			if !isIdentifier(part) {
				return nil, errors.Newf(errors.CodeInvalidInput, "module name %q is not a dotted identifier", name)
			}
		}
		if seen[name] {
			return nil, errors.Newf(errors.CodeInvalidInput, "duplicate module %q", name)
		}
		seen[name] = true

		if m.Group.Index < 0 || m.Group.Index >= len(groups) {
			return nil, errors.Newf(errors.CodeInvalidInput, "module %q references unknown group index %d", name, m.Group.Index)
		}
		if groups[m.Group.Index].Name != m.Group.Name {
			return nil, errors.Newf(errors.CodeInvalidInput, "module %q group name %q does not match group %d (%q)",
				name, m.Group.Name, m.Group.Index, groups[m.Group.Index].Name)
		}
		if !underRoot(name, groups[m.Group.Index].Roots) {
			return nil, errors.Newf(errors.CodeInvalidInput, "module %q is outside the roots of group %q", name, m.Group.Name)
		}

		m.Name = name
		m.Depth = Depth(name)
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Group.Index != out[j].Group.Index {
			return out[i].Group.Index < out[j].Group.Index
		}
		return out[i].Name < out[j].Name
	})

	r := &Registry{
		spec:    spec,
		modules: out,
		index:   make(map[string]int, len(out)),
	}
	for i, m := range out {
		r.index[m.Name] = i
		if m.Depth > r.maxDepth {
			r.maxDepth = m.Depth
		}
	}
	return r, nil
}

func underRoot(name string, roots []string) bool {
	for _, root := range roots {
		if name == root || strings.HasPrefix(name, root+".") {
			return true
		}
	}
	return false
}

func (r *Registry) Spec() Spec { return r.spec }

// Modules returns a copy of the frozen module list.
func (r *Registry) Modules() []Module {
	return append([]Module(nil), r.modules...)
}

func (r *Registry) Len() int { return len(r.modules) }

func (r *Registry) MaxDepth() int { return r.maxDepth }

// Lookup returns the module called name and its registry index.
func (r *Registry) Lookup(name string) (Module, int, bool) {
	i, ok := r.index[name]
	if !ok {
		return Module{}, -1, false
	}
	return r.modules[i], i, true
}

func (r *Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// At returns the module at registry index i.
func (r *Registry) At(i int) Module { return r.modules[i] }

// ClampDepth maps a requested depth onto 1..MaxDepth: zero and anything at or
// beyond MaxDepth select MaxDepth, negative values count back from the end.
func (r *Registry) ClampDepth(depth int) int {
	return ClampDepth(depth, r.maxDepth)
}

func ClampDepth(depth, maxDepth int) int {
	if maxDepth <= 0 {
		return 0
	}
	switch {
	case depth == 0, depth >= maxDepth:
		return maxDepth
	case depth < 0:
		d := maxDepth + 1 + depth
		if d < 1 {
			return 1
		}
		return d
	default:
		return depth
	}
}
