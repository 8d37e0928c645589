package app

import (
	"strings"

	"depmatrix/internal/core/errors"
	"depmatrix/internal/engine/analysis"
	"depmatrix/internal/engine/matrix"
	"depmatrix/internal/shared/util"
	"depmatrix/internal/shared/version"
	"depmatrix/internal/ui/report"
	"depmatrix/internal/ui/report/formats"
)

const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatDOT      = "dot"
	FormatMarkdown = "markdown"
)

// RenderRequest selects the serialization of one matrix. Report is only
// used by the markdown format.
type RenderRequest struct {
	Format string
	Report *analysis.Report
}

// Render serializes m in the requested format.
func (a *App) Render(m *matrix.Matrix, req RenderRequest) ([]byte, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = a.Config.Output.Format
	}
	switch format {
	case FormatCSV:
		return []byte(m.CSV()), nil
	case FormatJSON:
		var b strings.Builder
		if err := m.WriteJSON(&b); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "encode matrix")
		}
		return []byte(b.String()), nil
	case FormatDOT:
		out, err := formats.NewDOTGenerator().Generate(m)
		if err != nil {
			return nil, err
		}
		return []byte(out), nil
	case FormatMarkdown:
		out, err := formats.NewMarkdownGenerator().Generate(m, formats.MarkdownReportOptions{
			ProjectName:         a.Config.History.Project,
			Version:             version.Version,
			TableOfContents:     req.Report != nil,
			CollapsibleSections: true,
			Report:              req.Report,
		})
		if err != nil {
			return nil, err
		}
		return []byte(out), nil
	default:
		return nil, errors.Newf(errors.CodeNotSupported, "unsupported output format %q", req.Format)
	}
}

// WriteOutput renders m and writes it to path, creating parent directories.
func (a *App) WriteOutput(m *matrix.Matrix, req RenderRequest, path string) error {
	data, err := a.Render(m, req)
	if err != nil {
		return err
	}
	if err := util.WriteFileWithDirs(path, data, 0o644); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write output"), errors.CtxPath, path)
	}
	return nil
}

// InjectMarkdown replaces the block between depmatrix markers in file with
// the markdown matrix table.
func (a *App) InjectMarkdown(m *matrix.Matrix, file, marker string) error {
	block, err := report.MatrixBlock(marker, m)
	if err != nil {
		return err
	}
	return report.Inject(file, block)
}
