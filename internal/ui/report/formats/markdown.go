package formats

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"depmatrix/internal/engine/analysis"
	"depmatrix/internal/engine/matrix"
)

type MarkdownReportOptions struct {
	ProjectName         string
	Version             string
	GeneratedAt         time.Time
	TableOfContents     bool
	CollapsibleSections bool
	// Report adds the analysis sections when set.
	Report *analysis.Report
	// IncludeDOT embeds the rendered digraph in a dot code block.
	IncludeDOT bool
}

type MarkdownGenerator struct{}

func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{}
}

func (g *MarkdownGenerator) Generate(m *matrix.Matrix, opts MarkdownReportOptions) (string, error) {
	if m == nil {
		return "", fmt.Errorf("matrix is required")
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now().UTC()
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("title: Dependency Matrix Report\n")
	b.WriteString("project: " + nonEmpty(opts.ProjectName, "unknown") + "\n")
	b.WriteString("generated_at: " + opts.GeneratedAt.UTC().Format(time.RFC3339) + "\n")
	b.WriteString("version: " + nonEmpty(opts.Version, "unknown") + "\n")
	b.WriteString("---\n\n")

	b.WriteString("# Dependency Matrix\n\n")
	if opts.TableOfContents {
		b.WriteString("## Table of Contents\n")
		b.WriteString("- [Summary](#summary)\n")
		b.WriteString("- [Matrix](#matrix)\n")
		if opts.Report != nil {
			b.WriteString("- [Circular Dependencies](#circular-dependencies)\n")
			b.WriteString("- [Architecture Violations](#architecture-violations)\n")
			b.WriteString("- [God Modules](#god-modules)\n")
		}
		if opts.IncludeDOT {
			b.WriteString("- [Dependency Diagram](#dependency-diagram)\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Summary\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| --- | --- |\n")
	fmt.Fprintf(&b, "| Depth | %d |\n", m.Depth)
	fmt.Fprintf(&b, "| Nodes | %d |\n", m.Size())
	fmt.Fprintf(&b, "| Dependencies | %d |\n", len(m.Dependencies))
	fmt.Fprintf(&b, "| Total Coupling | %d |\n", m.Total())
	if opts.Report != nil {
		fmt.Fprintf(&b, "| Circular Dependencies | %d |\n", len(opts.Report.Cycles))
		fmt.Fprintf(&b, "| Architecture Violations | %d |\n", len(opts.Report.Violations))
		fmt.Fprintf(&b, "| God Modules | %d |\n", len(opts.Report.GodModules))
	}
	b.WriteString("\n")

	g.writeMatrix(&b, m, opts.CollapsibleSections)
	if opts.Report != nil {
		g.writeCycles(&b, opts.Report.Cycles, opts.CollapsibleSections)
		g.writeViolations(&b, opts.Report.Violations, opts.CollapsibleSections)
		g.writeGodModules(&b, opts.Report.GodModules, opts.CollapsibleSections)
	}

	if opts.IncludeDOT {
		dot, err := NewDOTGenerator().Generate(m)
		if err != nil {
			return "", err
		}
		b.WriteString("## Dependency Diagram\n")
		b.WriteString("```dot\n")
		b.WriteString(strings.TrimSpace(dot))
		b.WriteString("\n```\n")
	}

	return b.String(), nil
}

// writeMatrix prints rows as numbered nodes; column headers refer back to
// the row numbers. Zero cells are left blank.
func (g *MarkdownGenerator) writeMatrix(b *strings.Builder, m *matrix.Matrix, collapsible bool) {
	b.WriteString("## Matrix\n")
	g.writeMatrixTable(b, m, collapsible)
}

// Table renders only the matrix table, for embedding in other documents.
func (g *MarkdownGenerator) Table(m *matrix.Matrix) (string, error) {
	if m == nil {
		return "", fmt.Errorf("matrix is required")
	}
	var b strings.Builder
	g.writeMatrixTable(&b, m, false)
	return b.String(), nil
}

func (g *MarkdownGenerator) writeMatrixTable(b *strings.Builder, m *matrix.Matrix, collapsible bool) {
	if m.Size() == 0 {
		b.WriteString("No modules.\n\n")
		return
	}

	header := []string{"| # | Module |"}
	sep := "| --- | --- |"
	for i := range m.Keys {
		header[0] += " " + strconv.Itoa(i+1) + " |"
		sep += " ---: |"
	}
	header[0] += " Imports |\n"
	header = append(header, sep+" ---: |\n")

	rows := make([]string, 0, m.Size())
	for i, name := range m.Keys {
		var row strings.Builder
		fmt.Fprintf(&row, "| %d | `%s` |", i+1, escapeCell(name))
		for _, v := range m.Cells[i] {
			if v == 0 {
				row.WriteString("  |")
				continue
			}
			fmt.Fprintf(&row, " %d |", v)
		}
		imports := 0
		if node := m.Nodes[name]; node != nil {
			imports = node.Cardinal.Imports
		}
		fmt.Fprintf(&row, " %d |\n", imports)
		rows = append(rows, row.String())
	}
	g.writeTableWithCollapse(b, "Matrix rows", collapsible, len(rows) > 20, header, rows)
}

func (g *MarkdownGenerator) writeCycles(b *strings.Builder, cycles [][]string, collapsible bool) {
	b.WriteString("## Circular Dependencies\n")
	if len(cycles) == 0 {
		b.WriteString("No circular dependencies detected.\n\n")
		return
	}
	rows := make([]string, 0, len(cycles))
	for i, cycle := range cycles {
		rows = append(rows, fmt.Sprintf("| %d | `%s` | %d |\n", i+1, strings.Join(cycle, "`, `"), len(cycle)))
	}
	g.writeTableWithCollapse(
		b,
		"Cycle details",
		collapsible,
		len(rows) > 10,
		[]string{"| # | Members | Size |\n", "| --- | --- | --- |\n"},
		rows,
	)
}

func (g *MarkdownGenerator) writeViolations(b *strings.Builder, rows []analysis.Violation, collapsible bool) {
	b.WriteString("## Architecture Violations\n")
	if len(rows) == 0 {
		b.WriteString("No architecture violations detected.\n\n")
		return
	}
	rendered := make([]string, 0, len(rows))
	for _, row := range rows {
		rendered = append(rendered, fmt.Sprintf(
			"| `%s` | `%s` | `%s` | `%s` | `%s` | %d |\n",
			row.Rule,
			row.FromLayer,
			row.ToLayer,
			row.FromNode,
			row.ToNode,
			row.Cardinal,
		))
	}
	g.writeTableWithCollapse(
		b,
		"Violation details",
		collapsible,
		len(rendered) > 10,
		[]string{"| Rule | From Layer | To Layer | From | To | Coupling |\n", "| --- | --- | --- | --- | --- | --- |\n"},
		rendered,
	)
}

func (g *MarkdownGenerator) writeGodModules(b *strings.Builder, rows []analysis.GodModule, collapsible bool) {
	b.WriteString("## God Modules\n")
	if len(rows) == 0 {
		b.WriteString("No god modules detected.\n\n")
		return
	}
	rendered := make([]string, 0, len(rows))
	for _, row := range rows {
		rendered = append(rendered, fmt.Sprintf("| `%s` | %d | %d | %d |\n", row.Name, row.Metrics.Score, row.Metrics.FanIn, row.Metrics.FanOut))
	}
	g.writeTableWithCollapse(
		b,
		"God module details",
		collapsible,
		len(rendered) > 10,
		[]string{"| Module | Score | Fan-in | Fan-out |\n", "| --- | --- | --- | --- |\n"},
		rendered,
	)
}

func (g *MarkdownGenerator) writeTableWithCollapse(
	b *strings.Builder,
	summary string,
	collapsible bool,
	collapse bool,
	header []string,
	rows []string,
) {
	if collapsible && collapse {
		b.WriteString("<details>\n")
		b.WriteString("<summary>")
		b.WriteString(summary)
		b.WriteString("</summary>\n\n")
	}
	for _, line := range header {
		b.WriteString(line)
	}
	for _, line := range rows {
		b.WriteString(line)
	}
	b.WriteString("\n")
	if collapsible && collapse {
		b.WriteString("</details>\n\n")
	}
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
