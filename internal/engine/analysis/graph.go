// Package analysis reports architectural problems visible in a dependency
// matrix: circular coupling, layer violations and god modules.
package analysis

import (
	"sort"

	"depmatrix/internal/engine/matrix"
)

// Metrics describes one node's position in the dependency graph. Fan counts
// are distinct neighbours, self-loops excluded. Depth is the longest chain
// of component-to-component edges below the node.
type Metrics struct {
	FanIn  int `json:"fan_in"`
	FanOut int `json:"fan_out"`
	Depth  int `json:"depth"`
	Score  int `json:"score"`
}

// adjacency lists each node's distinct non-self targets, sorted.
func adjacency(m *matrix.Matrix) (nodes []string, adj map[string][]string) {
	nodes = append([]string(nil), m.Keys...)
	sort.Strings(nodes)
	adj = make(map[string][]string, len(nodes))
	for i, src := range m.Keys {
		for j, tgt := range m.Keys {
			if i != j && m.Cells[i][j] > 0 {
				adj[src] = append(adj[src], tgt)
			}
		}
	}
	for _, targets := range adj {
		sort.Strings(targets)
	}
	return nodes, adj
}

// ComputeMetrics returns fan-in, fan-out, depth and importance score for
// every node of m.
func ComputeMetrics(m *matrix.Matrix) map[string]Metrics {
	nodes, adj := adjacency(m)

	fanIn := make(map[string]int, len(nodes))
	for _, from := range nodes {
		for _, to := range adj[from] {
			fanIn[to]++
		}
	}

	componentOf, components := stronglyConnectedComponents(nodes, adj)
	componentEdges := make(map[int]map[int]bool, len(components))
	for _, from := range nodes {
		fromComp := componentOf[from]
		for _, to := range adj[from] {
			toComp := componentOf[to]
			if fromComp == toComp {
				continue
			}
			if componentEdges[fromComp] == nil {
				componentEdges[fromComp] = make(map[int]bool)
			}
			componentEdges[fromComp][toComp] = true
		}
	}

	depthByComp := make(map[int]int, len(components))
	var computeDepth func(int) int
	computeDepth = func(comp int) int {
		if depth, ok := depthByComp[comp]; ok {
			return depth
		}
		maxDepth := 0
		for next := range componentEdges[comp] {
			if candidate := 1 + computeDepth(next); candidate > maxDepth {
				maxDepth = candidate
			}
		}
		depthByComp[comp] = maxDepth
		return maxDepth
	}

	metrics := make(map[string]Metrics, len(nodes))
	for _, name := range nodes {
		fi, fo := fanIn[name], len(adj[name])
		metrics[name] = Metrics{
			FanIn:  fi,
			FanOut: fo,
			Depth:  computeDepth(componentOf[name]),
			Score:  ImportanceScore(fi, fo),
		}
	}
	return metrics
}

// stronglyConnectedComponents is Tarjan's algorithm. Components have their
// members sorted.
func stronglyConnectedComponents(nodes []string, adj map[string][]string) (map[string]int, [][]string) {
	index := 0
	stack := make([]string, 0, len(nodes))
	onStack := make(map[string]bool, len(nodes))
	indexByNode := make(map[string]int, len(nodes))
	lowLink := make(map[string]int, len(nodes))
	componentOf := make(map[string]int, len(nodes))
	components := make([][]string, 0)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indexByNode[v] = index
		lowLink[v] = index
		index++

		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if _, seen := indexByNode[w]; !seen {
				strongConnect(w)
				if lowLink[w] < lowLink[v] {
					lowLink[v] = lowLink[w]
				}
			} else if onStack[w] && indexByNode[w] < lowLink[v] {
				lowLink[v] = indexByNode[w]
			}
		}

		if lowLink[v] != indexByNode[v] {
			return
		}

		component := make([]string, 0)
		for {
			last := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[last] = false
			component = append(component, last)
			if last == v {
				break
			}
		}
		sort.Strings(component)
		compID := len(components)
		components = append(components, component)
		for _, n := range component {
			componentOf[n] = compID
		}
	}

	for _, node := range nodes {
		if _, seen := indexByNode[node]; !seen {
			strongConnect(node)
		}
	}
	return componentOf, components
}

// Cycles returns every group of nodes that import each other in a loop.
// Self-loops are intra-node coupling and never count.
func Cycles(m *matrix.Matrix) [][]string {
	nodes, adj := adjacency(m)
	_, components := stronglyConnectedComponents(nodes, adj)

	cycles := make([][]string, 0)
	for _, c := range components {
		if len(c) > 1 {
			cycles = append(cycles, c)
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

// ImportChain returns the shortest path of imports from one node to
// another, preferring lexically smaller neighbours.
func ImportChain(m *matrix.Matrix, from, to string) ([]string, bool) {
	if _, ok := m.Nodes[from]; !ok {
		return nil, false
	}
	if _, ok := m.Nodes[to]; !ok {
		return nil, false
	}
	if from == to {
		return []string{from}, true
	}

	_, adj := adjacency(m)
	queue := []string{from}
	visited := map[string]bool{from: true}
	prev := make(map[string]string)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		for _, next := range adj[curr] {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = curr

			if next == to {
				path := []string{to}
				for node := to; node != from; node = prev[node] {
					path = append(path, prev[node])
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}
