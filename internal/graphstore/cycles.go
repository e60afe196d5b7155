package graphstore

import "sort"

// findCycles runs a depth-first search over the adjacency list and reports
// each cycle once, as the node sequence along the back edge.
func findCycles(adj map[string][]string) [][]string {
	const (
		white = 0 // Unvisited
		gray  = 1 // On the current DFS path
		black = 2 // Fully explored
	)

	color := make(map[string]int, len(adj))
	var path []string
	onPath := make(map[string]int) // Node -> index in path
	var cycles [][]string

	var visit func(node string)
	visit = func(node string) {
		color[node] = gray
		onPath[node] = len(path)
		path = append(path, node)

		for _, next := range adj[node] {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				// Back edge: the cycle is the path slice from next onward
				start := onPath[next]
				cycle := make([]string, len(path)-start)
				copy(cycle, path[start:])
				cycles = append(cycles, cycle)
			}
		}

		path = path[:len(path)-1]
		delete(onPath, node)
		color[node] = black
	}

	// Deterministic iteration order for stable output
	roots := make([]string, 0, len(adj))
	for node := range adj {
		roots = append(roots, node)
	}
	sort.Strings(roots)

	for _, node := range roots {
		if color[node] == white {
			visit(node)
		}
	}
	return cycles
}
