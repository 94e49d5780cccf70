package graph

// Visit is a node reached by a traversal and its hop distance from the
// nearest seed.
type Visit struct {
	Handle Handle
	Depth  int
}

// Subgraph is the induced result of a bounded traversal.
type Subgraph struct {
	Nodes     []Visit
	Edges     []Edge
	Truncated bool // the node cap stopped the walk early
}

// Traverse walks breadth-first from seeds, following edges in both
// directions, up to maxDepth hops and at most maxNodes visited nodes.
// Each node is visited once; the graph may contain cycles. The returned
// edges are every edge between visited nodes, in dataset order.
func (ix *Index) Traverse(seeds []Handle, maxDepth, maxNodes int) Subgraph {
	var sg Subgraph
	if maxNodes <= 0 || len(seeds) == 0 {
		return sg
	}

	visited := make(map[Handle]int, maxNodes)
	queue := make([]Handle, 0, len(seeds))
	for _, s := range seeds {
		if s < 0 || int(s) >= len(ix.nodes) {
			continue
		}
		if _, ok := visited[s]; ok {
			continue
		}
		if len(sg.Nodes) == maxNodes {
			sg.Truncated = true
			break
		}
		visited[s] = 0
		sg.Nodes = append(sg.Nodes, Visit{Handle: s})
		queue = append(queue, s)
	}

	for depth := 0; depth < maxDepth && len(queue) > 0 && !sg.Truncated; depth++ {
		var next []Handle
		for _, h := range queue {
			for _, n := range ix.Neighbors(h, "", Both) {
				if _, ok := visited[n]; ok {
					continue
				}
				if len(sg.Nodes) == maxNodes {
					sg.Truncated = true
					break
				}
				visited[n] = depth + 1
				sg.Nodes = append(sg.Nodes, Visit{Handle: n, Depth: depth + 1})
				next = append(next, n)
			}
			if sg.Truncated {
				break
			}
		}
		queue = next
	}

	for _, e := range ix.edges {
		_, okS := visited[e.Source]
		_, okT := visited[e.Target]
		if okS && okT {
			sg.Edges = append(sg.Edges, e)
		}
	}
	return sg
}
