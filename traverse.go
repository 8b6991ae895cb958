package reflex

// adjacency lists the targets of every node, in edge order, skipping edges
// whose endpoints are not nodes of g and repeated source/target pairs.
// keep filters edges by endpoint.
func adjacency(g Graph, keep func(src, dst Node) bool) map[string][]string {
	byID := g.NodeByID()
	adj := make(map[string][]string)
	seen := make(map[[2]string]bool)
	for _, e := range g.Edges {
		src, okS := byID[e.Source]
		dst, okT := byID[e.Target]
		if !okS || !okT {
			continue
		}
		if keep != nil && !keep(src, dst) {
			continue
		}
		pair := [2]string{e.Source, e.Target}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		adj[e.Source] = append(adj[e.Source], e.Target)
	}
	return adj
}

// findCycle runs a depth-first search from every unvisited node and returns
// the first cycle found as a path whose last element repeats an earlier one.
// It returns nil for an acyclic graph.
func findCycle(g Graph) []string {
	adj := adjacency(g, nil)

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(g.Nodes))

	type frame struct {
		id   string
		next int
	}

	for _, root := range g.Nodes {
		if state[root.ID] != unvisited {
			continue
		}
		stack := []frame{{id: root.ID}}
		state[root.ID] = visiting
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := adj[top.id]
			if top.next >= len(children) {
				state[top.id] = visited
				stack = stack[:len(stack)-1]
				continue
			}
			child := children[top.next]
			top.next++
			switch state[child] {
			case visiting:
				path := make([]string, 0, len(stack)+1)
				start := 0
				for i, f := range stack {
					if f.id == child {
						start = i
						break
					}
				}
				for _, f := range stack[start:] {
					path = append(path, f.id)
				}
				return append(path, child)
			case unvisited:
				state[child] = visiting
				stack = append(stack, frame{id: child})
			}
		}
	}
	return nil
}

// chainsFrom enumerates every maximal path that starts at root and follows
// adj. A node already on the current path ends that branch, so malformed
// cycles terminate.
func chainsFrom(root string, adj map[string][]string) [][]string {
	var chains [][]string
	stack := [][]string{{root}}
	for len(stack) > 0 {
		path := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var next []string
		for _, c := range adj[path[len(path)-1]] {
			if !contains(path, c) {
				next = append(next, c)
			}
		}
		if len(next) == 0 {
			chains = append(chains, path)
			continue
		}
		// Push in reverse so the first child is walked first.
		for i := len(next) - 1; i >= 0; i-- {
			p := make([]string, len(path), len(path)+1)
			copy(p, path)
			stack = append(stack, append(p, next[i]))
		}
	}
	return chains
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
