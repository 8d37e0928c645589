package matrix

import (
	"fmt"
	"sort"
	"strings"

	"depmatrix/internal/core/errors"
)

// Criterion names a node ordering.
type Criterion string

const (
	ByGroup        Criterion = "group"
	ByName         Criterion = "name"
	ByExport       Criterion = "export"
	ByImport       Criterion = "import"
	ByImportExport Criterion = "import+export"
	BySimilarity   Criterion = "similarity"
)

// Criteria lists every supported criterion.
var Criteria = []Criterion{ByGroup, ByName, ByExport, ByImport, ByImportExport, BySimilarity}

// ParseCriterion maps user input onto a Criterion. Matching ignores case.
func ParseCriterion(s string) (Criterion, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Criteria {
		if string(c) == s {
			return c, nil
		}
	}
	return "", errors.Newf(errors.CodeInvalidInput, "unknown sort criterion %q", s)
}

// ComputeOrders ranks every node under every criterion. The result depends
// only on node data, never on the current presentation order.
func (m *Matrix) ComputeOrders() {
	n := len(m.Keys)
	for _, c := range Criteria {
		for i, name := range m.ascending(c) {
			node := m.Nodes[name]
			if node.Order == nil {
				node.Order = make(map[Criterion]Rank, len(Criteria))
			}
			node.Order[c] = Rank{Asc: i, Desc: n - 1 - i}
		}
	}
}

// Ordered returns the node names as they would appear after Sort(c, reverse).
func (m *Matrix) Ordered(c Criterion, reverse bool) ([]string, error) {
	if !validCriterion(c) {
		return nil, errors.Newf(errors.CodeInvalidInput, "unknown sort criterion %q", c)
	}
	names := append([]string(nil), m.Keys...)
	rank := func(name string) int {
		r := m.Nodes[name].Order[c]
		if reverse {
			return r.Desc
		}
		return r.Asc
	}
	sort.Slice(names, func(i, j int) bool { return rank(names[i]) < rank(names[j]) })
	return names, nil
}

// Sort reorders keys, groups, cells and dependency indexes in place.
func (m *Matrix) Sort(c Criterion, reverse bool) error {
	for _, node := range m.Nodes {
		if _, ok := node.Order[c]; !ok {
			m.ComputeOrders()
			break
		}
	}
	names, err := m.Ordered(c, reverse)
	if err != nil {
		return err
	}

	old := make(map[string]int, len(m.Keys))
	for i, k := range m.Keys {
		old[k] = i
	}
	perm := make([]int, len(names))
	remap := make([]int, len(names))
	for i, name := range names {
		perm[i] = old[name]
		remap[old[name]] = i
	}

	groups := make([]string, len(names))
	cells := newCells(len(names))
	for i := range names {
		groups[i] = m.Groups[perm[i]]
		for j := range names {
			cells[i][j] = m.Cells[perm[i]][perm[j]]
		}
	}
	for i := range m.Dependencies {
		d := &m.Dependencies[i]
		d.SourceIndex = remap[d.SourceIndex]
		d.TargetIndex = remap[d.TargetIndex]
	}
	m.Keys = names
	m.Groups = groups
	m.Cells = cells
	return nil
}

func validCriterion(c Criterion) bool {
	for _, known := range Criteria {
		if known == c {
			return true
		}
	}
	return false
}

// ascending returns node names under the ascending comparator of c. Ties
// always fall back to the name.
func (m *Matrix) ascending(c Criterion) []string {
	names := make([]string, 0, len(m.Nodes))
	for name := range m.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	var weight func(*Node) int
	switch c {
	case ByName:
		return names
	case ByGroup:
		sort.SliceStable(names, func(i, j int) bool {
			return m.Nodes[names[i]].Group.Index < m.Nodes[names[j]].Group.Index
		})
		return names
	case ByExport:
		weight = func(n *Node) int { return n.Cardinal.Exports }
	case ByImport:
		weight = func(n *Node) int { return n.Cardinal.Imports }
	case ByImportExport:
		weight = func(n *Node) int { return n.Cardinal.Imports + n.Cardinal.Exports }
	case BySimilarity:
		return m.similarityChain(names)
	default:
		panic(fmt.Sprintf("matrix: unhandled criterion %q", c))
	}
	sort.SliceStable(names, func(i, j int) bool {
		return weight(m.Nodes[names[i]]) < weight(m.Nodes[names[j]])
	})
	return names
}
