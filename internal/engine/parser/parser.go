// Package parser extracts import statements from Python modules.
package parser

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"depmatrix/internal/core/errors"
	"depmatrix/internal/engine/registry"
	"depmatrix/internal/engine/resolver"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

type Options struct {
	Logger *slog.Logger
}

// ImportParser reads module files and turns their imports into raw import
// statements. It is safe for concurrent use.
type ImportParser struct {
	pool      *ParserPool
	extractor *PythonExtractor
	logger    *slog.Logger
}

func New(opts Options) *ImportParser {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportParser{
		pool:      NewParserPool(sitter.NewLanguage(tree_sitter_python.Language())),
		extractor: &PythonExtractor{},
		logger:    logger,
	}
}

// ParseImports reads m.Path and returns its statements attributed to m.Name.
func (p *ImportParser) ParseImports(ctx context.Context, m registry.Module) ([]resolver.RawImport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(m.Path)
	if err != nil {
		de := &errors.DomainError{Code: errors.CodeNotFound, Message: "read module source", Err: err}
		return nil, de.WithContext(errors.CtxPath, m.Path).WithContext(errors.CtxModule, m.Name)
	}
	return p.Parse(m.Name, content)
}

// Parse extracts the statements of module from source. Relative imports
// are made absolute; those reaching above the top-level package are dropped.
func (p *ImportParser) Parse(module string, source []byte) ([]resolver.RawImport, error) {
	sp := p.pool.Get()
	defer p.pool.Put(sp)

	tree := sp.Parse(source, nil)
	if tree == nil {
		de := &errors.DomainError{Code: errors.CodeInternal, Message: "parse failed"}
		return nil, de.WithContext(errors.CtxModule, module)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		p.logger.Debug("source has syntax errors, extracting what parsed", "module", module)
	}

	var out []resolver.RawImport
	for _, st := range p.extractor.Extract(root, source, module) {
		from, ok := absolute(module, st)
		if !ok {
			p.logger.Debug("dropping relative import beyond top-level package",
				"module", module, "line", st.Line, "level", st.Level)
			continue
		}
		out = append(out, resolver.RawImport{
			By:    module,
			From:  from,
			Names: st.Names,
			Plain: st.Plain,
		})
	}
	return out, nil
}

// absolute resolves the module a statement imports from. A level-1 import
// is relative to the importing module's package.
func absolute(module string, st Statement) (string, bool) {
	if st.Level == 0 {
		return st.Module, st.Module != ""
	}
	parts := strings.Split(module, ".")
	pkg := parts[:len(parts)-1]
	up := st.Level - 1
	if up >= len(pkg) {
		return "", false
	}
	base := append([]string(nil), pkg[:len(pkg)-up]...)
	if st.Module != "" {
		base = append(base, st.Module)
	}
	return strings.Join(base, "."), true
}
