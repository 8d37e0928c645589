package formats

import (
	"fmt"
	"strings"

	"depmatrix/internal/engine/analysis"
	"depmatrix/internal/engine/matrix"
)

// DOTGenerator renders a matrix as a weighted Graphviz digraph. Edges
// inside a dependency cycle are drawn in red.
type DOTGenerator struct {
	// SelfLoops includes diagonal cells as looping edges.
	SelfLoops bool
}

func NewDOTGenerator() *DOTGenerator {
	return &DOTGenerator{}
}

func (g *DOTGenerator) Generate(m *matrix.Matrix) (string, error) {
	if m == nil {
		return "", fmt.Errorf("matrix is required")
	}

	ids := makeIDs(m.Keys)
	component := make(map[string]int)
	for i, cycle := range analysis.Cycles(m) {
		for _, name := range cycle {
			component[name] = i + 1
		}
	}

	var b strings.Builder
	b.WriteString("digraph depmatrix {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n")
	fmt.Fprintf(&b, "  label=\"depth %d\";\n", m.Depth)

	g.writeNodes(&b, m, ids, component)

	maxWeight := 1
	for _, d := range m.Dependencies {
		maxWeight = max(maxWeight, d.Cardinal)
	}
	for _, d := range m.Dependencies {
		if d.SourceName == d.TargetName && !g.SelfLoops {
			continue
		}
		attrs := []string{
			fmt.Sprintf("label=\"%d\"", d.Cardinal),
			fmt.Sprintf("penwidth=%.2f", 1+3*float64(d.Cardinal)/float64(maxWeight)),
		}
		if c, ok := component[d.SourceName]; ok && c == component[d.TargetName] && d.SourceName != d.TargetName {
			attrs = append(attrs, "color=\"#d62728\"", "fontcolor=\"#d62728\"")
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", ids[d.SourceName], ids[d.TargetName], strings.Join(attrs, ", "))
	}
	b.WriteString("}\n")
	return b.String(), nil
}

// writeNodes clusters nodes by group when more than one group is present.
func (g *DOTGenerator) writeNodes(b *strings.Builder, m *matrix.Matrix, ids map[string]string, component map[string]int) {
	var order []string
	members := make(map[string][]string)
	for i, name := range m.Keys {
		group := ""
		if i < len(m.Groups) {
			group = m.Groups[i]
		}
		if _, ok := members[group]; !ok {
			order = append(order, group)
		}
		members[group] = append(members[group], name)
	}

	writeNode := func(indent, name string) {
		style := ""
		if _, ok := component[name]; ok {
			style = ", color=\"#d62728\""
		}
		fmt.Fprintf(b, "%s%s [label=\"%s\"%s];\n", indent, ids[name], escapeLabel(nodeLabel(name, m.Nodes[name])), style)
	}

	if len(order) <= 1 {
		for _, name := range m.Keys {
			writeNode("  ", name)
		}
		return
	}
	for i, group := range order {
		fmt.Fprintf(b, "  subgraph cluster_%d {\n", i)
		fmt.Fprintf(b, "    label=\"%s\";\n", escapeLabel(group))
		for _, name := range members[group] {
			writeNode("    ", name)
		}
		b.WriteString("  }\n")
	}
}
