package registry

import (
	"fmt"
	"strings"

	"depmatrix/internal/core/errors"
)

// SpecKind tags which shape a package specification was given in.
type SpecKind int

const (
	SpecSingle SpecKind = iota
	SpecGrouped
)

func (k SpecKind) String() string {
	switch k {
	case SpecSingle:
		return "single"
	case SpecGrouped:
		return "grouped"
	default:
		return fmt.Sprintf("SpecKind(%d)", int(k))
	}
}

// GroupSpec is one (group name, package roots) entry of a grouped specification.
type GroupSpec struct {
	Name  string
	Roots []string
}

// Spec lists the package roots to analyze, organized in groups. Build one with
// Single or Grouped; the zero value is not valid.
type Spec struct {
	kind   SpecKind
	groups []Group
}

// Single specifies one root package in the implicit, unnamed group.
func Single(name string) (Spec, error) {
	if err := validateRoot(name); err != nil {
		return Spec{}, err
	}
	return Spec{
		kind:   SpecSingle,
		groups: []Group{{Index: 0, Name: "", Roots: []string{strings.TrimSpace(name)}}},
	}, nil
}

// Grouped specifies one or more named groups of package roots. A root may
// appear only once across all groups.
func Grouped(groups ...GroupSpec) (Spec, error) {
	if len(groups) == 0 {
		return Spec{}, errors.New(errors.CodeInvalidInput, "grouped spec requires at least one group")
	}

	seen := make(map[string]string)
	out := make([]Group, 0, len(groups))
	for i, g := range groups {
		if len(g.Roots) == 0 {
			return Spec{}, errors.Newf(errors.CodeInvalidInput, "group %d (%q) has no package roots", i, g.Name)
		}
		roots := make([]string, 0, len(g.Roots))
		for _, root := range g.Roots {
			if err := validateRoot(root); err != nil {
				return Spec{}, errors.AddContext(err, "group", g.Name)
			}
			root = strings.TrimSpace(root)
			if prev, dup := seen[root]; dup {
				return Spec{}, errors.Newf(errors.CodeInvalidInput, "package root %q listed in groups %q and %q", root, prev, g.Name)
			}
			seen[root] = g.Name
			roots = append(roots, root)
		}
		out = append(out, Group{Index: i, Name: g.Name, Roots: roots})
	}
	return Spec{kind: SpecGrouped, groups: out}, nil
}

func (s Spec) Kind() SpecKind { return s.kind }

// Groups returns a copy of the validated groups in configuration order.
func (s Spec) Groups() []Group {
	out := make([]Group, len(s.groups))
	for i, g := range s.groups {
		out[i] = Group{Index: g.Index, Name: g.Name, Roots: append([]string(nil), g.Roots...)}
	}
	return out
}

// Roots returns every package root across groups, in configuration order.
func (s Spec) Roots() []string {
	var out []string
	for _, g := range s.groups {
		out = append(out, g.Roots...)
	}
	return out
}

func (s Spec) IsZero() bool { return len(s.groups) == 0 }

func validateRoot(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New(errors.CodeInvalidInput, "package root must not be empty")
	}
	for _, part := range strings.Split(name, ".") {
		if !isIdentifier(part) {
			return errors.Newf(errors.CodeInvalidInput, "package root %q is not a dotted identifier", name)
		}
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
