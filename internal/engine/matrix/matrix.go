// Package matrix rolls resolved module edges up into design-structure
// matrices, one per truncation depth, and ranks their nodes.
package matrix

import (
	"sort"

	"depmatrix/internal/engine/registry"
	"depmatrix/internal/engine/resolver"
)

// Cardinal totals the weight of a node's outgoing (Imports) and incoming
// (Exports) dependencies, self-loops included.
type Cardinal struct {
	Imports int `json:"imports"`
	Exports int `json:"exports"`
}

// Rank is a node's 0-based position under the ascending and descending
// comparator of one criterion.
type Rank struct {
	Asc  int `json:"asc"`
	Desc int `json:"desc"`
}

type Node struct {
	Name     string             `json:"name"`
	Group    registry.GroupRef  `json:"group"`
	Cardinal Cardinal           `json:"cardinal"`
	Order    map[Criterion]Rank `json:"order"`
}

// Dependency is an edge between two matrix nodes. Its indexes refer to the
// matrix's current Keys.
type Dependency = resolver.Edge

// Matrix is the dependency matrix at one depth. Keys, Groups, Cells and the
// dependency indexes always agree; only Sort changes their order.
type Matrix struct {
	Depth        int
	Keys         []string
	Groups       []string
	Nodes        map[string]*Node
	Dependencies []Dependency
	Cells        [][]int
}

func (m *Matrix) Size() int { return len(m.Keys) }

// Index returns the current position of the node called name.
func (m *Matrix) Index(name string) (int, bool) {
	for i, k := range m.Keys {
		if k == name {
			return i, true
		}
	}
	return -1, false
}

// Cell returns the coupling from source to target, by node name.
func (m *Matrix) Cell(source, target string) int {
	i, ok := m.Index(source)
	if !ok {
		return 0
	}
	j, ok := m.Index(target)
	if !ok {
		return 0
	}
	return m.Cells[i][j]
}

// Total sums the cardinal of every dependency.
func (m *Matrix) Total() int {
	total := 0
	for _, d := range m.Dependencies {
		total += d.Cardinal
	}
	return total
}

// Aggregate builds the matrix at depth from the registry and its resolved
// edges. Depth is clamped the same way Registry.ClampDepth does.
func Aggregate(reg *registry.Registry, edges []resolver.Edge, depth int) *Matrix {
	depth = reg.ClampDepth(depth)

	nodes := make(map[string]*Node)
	for _, mod := range reg.Modules() {
		key := registry.Truncate(mod.Name, depth)
		if _, ok := nodes[key]; ok {
			continue
		}
		nodes[key] = &Node{Name: key, Group: mod.Group}
	}

	keys := make([]string, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	index := make(map[string]int, len(keys))
	groups := make([]string, len(keys))
	for i, k := range keys {
		index[k] = i
		groups[i] = nodes[k].Group.Name
	}

	type pairKey struct{ source, target int }
	merged := make(map[pairKey]*Dependency)
	for _, e := range edges {
		src := registry.Truncate(e.SourceName, depth)
		tgt := registry.Truncate(e.TargetName, depth)
		key := pairKey{index[src], index[tgt]}
		d, ok := merged[key]
		if !ok {
			d = &Dependency{
				SourceIndex: key.source,
				SourceName:  src,
				TargetIndex: key.target,
				TargetName:  tgt,
			}
			merged[key] = d
		}
		d.Cardinal += e.Cardinal
		d.Imports = append(d.Imports, e.Clone().Imports...)
	}

	deps := make([]Dependency, 0, len(merged))
	for _, d := range merged {
		deps = append(deps, *d)
	}
	sortDependencies(deps)

	cells := newCells(len(keys))
	for _, d := range deps {
		cells[d.SourceIndex][d.TargetIndex] = d.Cardinal
		nodes[d.SourceName].Cardinal.Imports += d.Cardinal
		nodes[d.TargetName].Cardinal.Exports += d.Cardinal
	}

	m := &Matrix{
		Depth:        depth,
		Keys:         keys,
		Groups:       groups,
		Nodes:        nodes,
		Dependencies: deps,
		Cells:        cells,
	}
	m.ComputeOrders()
	return m
}

func sortDependencies(deps []Dependency) {
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].SourceName != deps[j].SourceName {
			return deps[i].SourceName < deps[j].SourceName
		}
		return deps[i].TargetName < deps[j].TargetName
	})
}

func newCells(n int) [][]int {
	cells := make([][]int, n)
	for i := range cells {
		cells[i] = make([]int, n)
	}
	return cells
}

// Clone returns a deep copy that can be sorted without affecting m.
func (m *Matrix) Clone() *Matrix {
	out := &Matrix{
		Depth:        m.Depth,
		Keys:         append([]string(nil), m.Keys...),
		Groups:       append([]string(nil), m.Groups...),
		Nodes:        make(map[string]*Node, len(m.Nodes)),
		Dependencies: resolver.CloneEdges(m.Dependencies),
		Cells:        newCells(len(m.Cells)),
	}
	for i, row := range m.Cells {
		copy(out.Cells[i], row)
	}
	for name, n := range m.Nodes {
		cp := *n
		cp.Order = make(map[Criterion]Rank, len(n.Order))
		for c, r := range n.Order {
			cp.Order[c] = r
		}
		out.Nodes[name] = &cp
	}
	return out
}
