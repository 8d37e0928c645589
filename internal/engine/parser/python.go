package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// PythonExtractor collects import statements anywhere in a module,
// including those nested in functions and conditionals.
type PythonExtractor struct{}

func (e *PythonExtractor) Extract(root *sitter.Node, source []byte, module string) []Statement {
	ctx := &ExtractionContext{Source: source, Module: module}
	engine := NewExtractorEngine(map[string]NodeHandler{
		"import_statement":        e.extractImport,
		"import_from_statement":   e.extractFromImport,
		"future_import_statement": skip,
	})
	engine.Walk(ctx, root)
	return ctx.Out
}

func skip(*ExtractionContext, *sitter.Node) bool { return true }

// extractImport handles "import a.b, c as d". Each dotted name is its own
// plain statement.
func (e *PythonExtractor) extractImport(ctx *ExtractionContext, node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		var module string
		switch child.Kind() {
		case "dotted_name":
			module = ctx.Text(child)
		case "aliased_import":
			module = ctx.Text(child.ChildByFieldName("name"))
		default:
			continue
		}
		module = compact(module)
		ctx.Out = append(ctx.Out, Statement{
			Module: module,
			Names:  []string{lastSegment(module)},
			Plain:  true,
			Line:   ctx.Line(child),
		})
	}
	return true
}

// extractFromImport handles "from <module> import <names>", including
// relative modules, parenthesized lists and the wildcard.
func (e *PythonExtractor) extractFromImport(ctx *ExtractionContext, node *sitter.Node) bool {
	st := Statement{Line: ctx.Line(node)}
	afterImport := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "import":
			afterImport = true
		case "relative_import":
			text := compact(ctx.Text(child))
			module := strings.TrimLeft(text, ".")
			st.Level = len(text) - len(module)
			st.Module = module
		case "dotted_name":
			if afterImport {
				st.Names = append(st.Names, compact(ctx.Text(child)))
			} else {
				st.Module = compact(ctx.Text(child))
			}
		case "aliased_import":
			st.Names = append(st.Names, compact(ctx.Text(child.ChildByFieldName("name"))))
		case "wildcard_import":
			st.Names = append(st.Names, "*")
		}
	}
	if len(st.Names) > 0 {
		ctx.Out = append(ctx.Out, st)
	}
	return true
}

// compact drops whitespace, line continuations and comments can leave
// inside dotted names.
func compact(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\\", " ")), "")
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
