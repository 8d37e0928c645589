package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"depmatrix/internal/core/errors"
	"depmatrix/internal/engine/matrix"
	"depmatrix/internal/ui/report/formats"
)

// Block is generated content for the region of a markdown document
// delimited by the depmatrix:MARKER start and end comments.
type Block struct {
	Marker string
	Body   string
}

// Markers returns the start and end comments for marker.
func Markers(marker string) (string, string) {
	return fmt.Sprintf("<!-- depmatrix:%s:start -->", marker), fmt.Sprintf("<!-- depmatrix:%s:end -->", marker)
}

// MatrixBlock renders m as a captioned markdown table.
func MatrixBlock(marker string, m *matrix.Matrix) (Block, error) {
	table, err := formats.NewMarkdownGenerator().Table(m)
	if err != nil {
		return Block{}, err
	}
	caption := fmt.Sprintf("_Depth %d: %d modules, total coupling %d._\n\n", m.Depth, m.Size(), m.Total())
	return Block{Marker: marker, Body: caption + table}, nil
}

// Replace swaps the body of b's region in content. Each marker must occur
// exactly once, start before end. The document's line ending is kept.
func Replace(content string, b Block) (string, error) {
	marker := strings.TrimSpace(b.Marker)
	if marker == "" {
		return "", errors.New(errors.CodeInvalidInput, "markdown marker must not be empty")
	}
	start, end := Markers(marker)

	startIdx := strings.Index(content, start)
	endIdx := strings.Index(content, end)
	switch {
	case strings.Count(content, start) != 1 || strings.Count(content, end) != 1:
		de := &errors.DomainError{Code: errors.CodeInvalidInput, Message: "marker must appear exactly once for start and end"}
		return "", de.WithContext("marker", marker)
	case endIdx < startIdx:
		de := &errors.DomainError{Code: errors.CodeInvalidInput, Message: "end marker precedes start marker"}
		return "", de.WithContext("marker", marker)
	}

	nl := "\n"
	if strings.Contains(content, "\r\n") {
		nl = "\r\n"
	}
	body := strings.TrimRight(b.Body, "\r\n")
	if nl == "\r\n" {
		body = strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n")
	}
	head := content[:startIdx+len(start)]
	return head + nl + body + nl + content[endIdx:], nil
}

// Inject rewrites the file at path with every block replaced. The file is
// untouched unless all blocks apply; the new content is renamed into place.
func Inject(path string, blocks ...Block) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read markdown file"), errors.CtxPath, path)
	}
	content := string(data)
	for _, b := range blocks {
		if content, err = Replace(content, b); err != nil {
			return errors.AddContext(err, errors.CtxPath, path)
		}
	}
	return writeAtomic(path, content)
}

func writeAtomic(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".depmatrix-inject-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", path, err)
	}
	name := tmp.Name()
	_, err = tmp.WriteString(content)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(name, path)
	}
	if err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("replace markdown file %q: %w", path, err)
	}
	return nil
}
