package matrix

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"depmatrix/internal/core/errors"
)

// CSV renders the matrix with a header row of keys and one row per key.
// Records are CRLF separated with no trailing terminator.
func (m *Matrix) CSV() string {
	out, _ := m.encodeCSV()
	return out
}

func (m *Matrix) encodeCSV() (string, error) {
	if len(m.Keys) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	records := make([][]string, 0, len(m.Keys)+1)
	records = append(records, append([]string{""}, m.Keys...))
	for i, key := range m.Keys {
		record := make([]string, 0, len(m.Keys)+1)
		record = append(record, key)
		for _, v := range m.Cells[i] {
			record = append(record, strconv.Itoa(v))
		}
		records = append(records, record)
	}
	for _, record := range records {
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\r\n"), nil
}

func (m *Matrix) WriteCSV(w io.Writer) error {
	out, err := m.encodeCSV()
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "encode csv")
	}
	if _, err := io.WriteString(w, out); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "write csv")
	}
	return nil
}

type wireMatrix struct {
	Depth        int              `json:"depth"`
	Size         int              `json:"size"`
	Keys         []string         `json:"keys"`
	Groups       []string         `json:"groups"`
	Modules      map[string]*Node `json:"modules"`
	Dependencies []Dependency     `json:"dependencies"`
	Matrix       [][]int          `json:"matrix"`
}

func (m *Matrix) MarshalJSON() ([]byte, error) {
	deps := m.Dependencies
	if deps == nil {
		deps = []Dependency{}
	}
	return json.Marshal(wireMatrix{
		Depth:        m.Depth,
		Size:         m.Size(),
		Keys:         m.Keys,
		Groups:       m.Groups,
		Modules:      m.Nodes,
		Dependencies: deps,
		Matrix:       m.Cells,
	})
}

// WriteJSON writes the indented JSON document.
func (m *Matrix) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "encode matrix")
	}
	return nil
}

// Decode parses a document produced by MarshalJSON and checks that its
// parts agree with each other.
func Decode(data []byte) (*Matrix, error) {
	var wire wireMatrix
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "decode matrix")
	}
	n := len(wire.Keys)
	if wire.Size != n {
		return nil, errors.Newf(errors.CodeInvalidInput, "size %d does not match %d keys", wire.Size, n)
	}
	if len(wire.Groups) != n || len(wire.Matrix) != n {
		return nil, errors.New(errors.CodeInvalidInput, "groups and matrix must have one entry per key")
	}
	for i, row := range wire.Matrix {
		if len(row) != n {
			return nil, errors.Newf(errors.CodeInvalidInput, "matrix row %d has %d cells, want %d", i, len(row), n)
		}
	}
	for _, d := range wire.Dependencies {
		if d.SourceIndex < 0 || d.SourceIndex >= n || d.TargetIndex < 0 || d.TargetIndex >= n {
			return nil, errors.Newf(errors.CodeInvalidInput, "dependency %s -> %s is out of range", d.SourceName, d.TargetName)
		}
		if wire.Keys[d.SourceIndex] != d.SourceName || wire.Keys[d.TargetIndex] != d.TargetName {
			return nil, errors.Newf(errors.CodeInvalidInput, "dependency %s -> %s does not match its indexes", d.SourceName, d.TargetName)
		}
		if wire.Matrix[d.SourceIndex][d.TargetIndex] != d.Cardinal {
			return nil, errors.Newf(errors.CodeInvalidInput, "dependency %s -> %s disagrees with its cell", d.SourceName, d.TargetName)
		}
	}

	seen := make(map[string]bool, n)
	for _, key := range wire.Keys {
		if seen[key] {
			de := &errors.DomainError{Code: errors.CodeInvalidInput, Message: "duplicate key"}
			return nil, de.WithContext(errors.CtxModule, key)
		}
		seen[key] = true
	}

	nodes := make(map[string]*Node, n)
	needOrders := false
	for i, key := range wire.Keys {
		node, ok := wire.Modules[key]
		if !ok || node == nil {
			node = &Node{Name: key}
			node.Group.Name = wire.Groups[i]
			needOrders = true
		}
		if len(node.Order) != len(Criteria) {
			needOrders = true
		}
		nodes[key] = node
	}

	m := &Matrix{
		Depth:        wire.Depth,
		Keys:         wire.Keys,
		Groups:       wire.Groups,
		Nodes:        nodes,
		Dependencies: wire.Dependencies,
		Cells:        wire.Matrix,
	}
	if needOrders {
		m.recountCardinals()
		m.ComputeOrders()
	}
	return m, nil
}

func (m *Matrix) recountCardinals() {
	for _, node := range m.Nodes {
		node.Cardinal = Cardinal{}
	}
	for i, src := range m.Keys {
		for j, tgt := range m.Keys {
			m.Nodes[src].Cardinal.Imports += m.Cells[i][j]
			m.Nodes[tgt].Cardinal.Exports += m.Cells[i][j]
		}
	}
}
