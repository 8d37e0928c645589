package matrix

// ratio is a non-negative fraction compared exactly.
type ratio struct{ num, den int64 }

func (a ratio) greater(b ratio) bool { return a.num*b.den > b.num*a.den }

// profile is a node's row followed by its column, keyed by name-sorted
// position so that it does not depend on the presentation order.
type profile struct {
	entries map[int]int64
	sum     int64
}

func (m *Matrix) profiles(names []string) map[string]profile {
	n := len(names)
	canon := make(map[string]int, n)
	for i, name := range names {
		canon[name] = i
	}
	out := make(map[string]profile, n)
	for _, name := range names {
		out[name] = profile{entries: make(map[int]int64)}
	}
	for i, src := range m.Keys {
		for j, tgt := range m.Keys {
			w := int64(m.Cells[i][j])
			if w == 0 {
				continue
			}
			row := out[src]
			row.entries[canon[tgt]] += w
			row.sum += w
			out[src] = row

			col := out[tgt]
			col.entries[n+canon[src]] += w
			col.sum += w
			out[tgt] = col
		}
	}
	return out
}

// jaccard is the weighted Jaccard index of two profiles. Two empty profiles
// are identical.
func jaccard(a, b profile) ratio {
	if len(b.entries) < len(a.entries) {
		a, b = b, a
	}
	var shared int64
	for k, wa := range a.entries {
		if wb, ok := b.entries[k]; ok {
			shared += min(wa, wb)
		}
	}
	union := a.sum + b.sum - shared
	if union == 0 {
		return ratio{1, 1}
	}
	return ratio{shared, union}
}

// similarityChain orders nodes as a greedy nearest-neighbour walk. It starts
// at the node with the largest import+export total and then repeatedly takes
// the unvisited node most similar to the last one placed. names must be
// sorted; it breaks every tie.
func (m *Matrix) similarityChain(names []string) []string {
	if len(names) == 0 {
		return names
	}
	profiles := m.profiles(names)

	seed := 0
	best := -1
	for i, name := range names {
		c := m.Nodes[name].Cardinal
		if total := c.Imports + c.Exports; total > best {
			best, seed = total, i
		}
	}

	visited := make([]bool, len(names))
	order := make([]string, 0, len(names))
	current := seed
	for {
		visited[current] = true
		order = append(order, names[current])
		if len(order) == len(names) {
			return order
		}
		next := -1
		var nextSim ratio
		for i, name := range names {
			if visited[i] {
				continue
			}
			sim := jaccard(profiles[names[current]], profiles[name])
			if next < 0 || sim.greater(nextSim) {
				next, nextSim = i, sim
			}
		}
		current = next
	}
}
