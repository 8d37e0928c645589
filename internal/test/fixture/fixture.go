// Package fixture provides a small, fully known Python package tree used by
// engine tests: one root package "internal" with two subpackages.
package fixture

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"depmatrix/internal/engine/registry"
	"depmatrix/internal/engine/resolver"
)

const Root = "internal"

// ModuleNames lists the nine modules of the tree in registry order.
var ModuleNames = []string{
	"internal.__init__",
	"internal.submodule1.__init__",
	"internal.submodule1.submoduleA.__init__",
	"internal.submodule1.submoduleA.test",
	"internal.submodule1.test",
	"internal.submodule2.__init__",
	"internal.submodule2.test",
	"internal.submodule2.test2",
	"internal.test",
}

// Sources maps each module's relative path to its Python source. The
// statements mirror Statements exactly.
var Sources = map[string]string{
	"internal/__init__.py":            "",
	"internal/submodule1/__init__.py": "",
	"internal/submodule1/submoduleA/__init__.py": "",
	"internal/submodule1/submoduleA/test.py": `from internal.test import (someclass, classA, classB, classC,
                           classD, classE, classF, classG, classH)
`,
	"internal/submodule1/test.py": `from internal.submodule1.submoduleA import test, othertest
from internal.submodule1.submoduleA.test import Test1
from internal import test
`,
	"internal/submodule2/__init__.py": "",
	"internal/submodule2/test.py": `import external.exists
from internal.submodule2.test2 import someclass
from internal.submodule1.submoduleA import othertest
`,
	"internal/submodule2/test2.py": "",
	"internal/test.py": `from internal import submodule2
from internal.submodule1 import submoduleA
from internal.submodule1.submoduleA import test


def later():
    from internal.submodule2 import doesnotexists
    return doesnotexists
`,
}

// Statements is the parsed form of Sources: ten internal imports and one
// import of a package outside the tree.
func Statements() []resolver.RawImport {
	return []resolver.RawImport{
		{By: "internal.submodule1.submoduleA.test", From: "internal.test", Names: []string{
			"someclass", "classA", "classB", "classC", "classD", "classE", "classF", "classG", "classH",
		}},
		{By: "internal.submodule1.test", From: "internal.submodule1.submoduleA", Names: []string{"test", "othertest"}},
		{By: "internal.submodule1.test", From: "internal.submodule1.submoduleA.test", Names: []string{"Test1"}},
		{By: "internal.submodule1.test", From: "internal", Names: []string{"test"}},
		{By: "internal.submodule2.test", From: "external.exists", Names: []string{"exists"}, Plain: true},
		{By: "internal.submodule2.test", From: "internal.submodule2.test2", Names: []string{"someclass"}},
		{By: "internal.submodule2.test", From: "internal.submodule1.submoduleA", Names: []string{"othertest"}},
		{By: "internal.test", From: "internal", Names: []string{"submodule2"}},
		{By: "internal.test", From: "internal.submodule1", Names: []string{"submoduleA"}},
		{By: "internal.test", From: "internal.submodule1.submoduleA", Names: []string{"test"}},
		{By: "internal.test", From: "internal.submodule2", Names: []string{"doesnotexists"}},
	}
}

// Modules returns the tree's modules assigned to group 0 named group.
func Modules(group string) []registry.Module {
	out := make([]registry.Module, 0, len(ModuleNames))
	for _, name := range ModuleNames {
		out = append(out, registry.Module{
			Name:  name,
			Path:  modulePath(name),
			Group: registry.GroupRef{Index: 0, Name: group},
			Depth: registry.Depth(name),
		})
	}
	return out
}

func modulePath(name string) string {
	for p := range Sources {
		if moduleNameFor(p) == name {
			return p
		}
	}
	return ""
}

func moduleNameFor(p string) string {
	return strings.ReplaceAll(strings.TrimSuffix(p, ".py"), "/", ".")
}

// Registry builds the frozen registry for spec, whose single group must be
// called group.
func Registry(spec registry.Spec, group string) (*registry.Registry, error) {
	return registry.New(spec, Modules(group))
}

// Source is an in-memory module and import source for the builder.
type Source struct {
	Group      string
	Statements []resolver.RawImport
}

func NewSource(group string) *Source {
	return &Source{Group: group, Statements: Statements()}
}

func (s *Source) Discover(ctx context.Context, spec registry.Spec) ([]registry.Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, root := range spec.Roots() {
		if root == Root {
			return Modules(s.Group), nil
		}
	}
	return nil, nil
}

func (s *Source) ParseImports(ctx context.Context, m registry.Module) ([]resolver.RawImport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []resolver.RawImport
	for _, st := range s.Statements {
		if st.By == m.Name {
			out = append(out, st)
		}
	}
	return out, nil
}

// WriteTree materialises Sources below dir.
func WriteTree(dir string) error {
	for rel, content := range Sources {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}
