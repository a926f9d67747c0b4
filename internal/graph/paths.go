package graph

import "sort"

// EdgeFilter restricts traversal to edges the caller believes can carry
// the payment. It is consulted per directed use of an edge.
type EdgeFilter func(from, to string) bool

// ShortestPath returns a fewest-hops path from src to dst honoring the
// edge filter and the excluded node set, or nil if none exists. Ties
// break deterministically via sorted neighbor order.
func (g *HopGraph) ShortestPath(src, dst string, filter EdgeFilter, exclude map[string]bool) []string {
	if !g.HasNode(src) || !g.HasNode(dst) || exclude[src] || exclude[dst] {
		return nil
	}
	if src == dst {
		return []string{src}
	}
	parent := map[string]string{src: ""}
	frontier := []string{src}
	for len(frontier) > 0 {
		n := frontier[0]
		frontier = frontier[1:]
		for _, peer := range g.Neighbors(n) {
			if exclude[peer] {
				continue
			}
			if _, seen := parent[peer]; seen {
				continue
			}
			if filter != nil && !filter(n, peer) {
				continue
			}
			parent[peer] = n
			if peer == dst {
				var path []string
				for at := dst; at != ""; at = parent[at] {
					path = append(path, at)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path
			}
			frontier = append(frontier, peer)
		}
	}
	return nil
}

// SimplePaths returns up to limit loop-free paths from src to dst in
// order of increasing hop count, honoring the edge filter and the
// excluded node set. Paths are found with Yen's algorithm over
// fewest-hops shortest paths.
func (g *HopGraph) SimplePaths(src, dst string, filter EdgeFilter, exclude map[string]bool, limit int) [][]string {
	first := g.ShortestPath(src, dst, filter, exclude)
	if first == nil || limit < 1 {
		return nil
	}
	paths := [][]string{first}
	var candidates [][]string
	for len(paths) < limit {
		prev := paths[len(paths)-1]
		for i := 0; i < len(prev)-1; i++ {
			spurNode := prev[i]
			rootPath := prev[:i+1]

			// Ban the outgoing edges that previously found paths with
			// the same root take from the spur node.
			banned := make(map[[2]string]bool)
			for _, p := range paths {
				if len(p) > i+1 && samePrefix(p, rootPath) {
					banned[[2]string{p[i], p[i+1]}] = true
				}
			}
			spurExclude := make(map[string]bool, len(exclude)+i)
			for n := range exclude {
				spurExclude[n] = true
			}
			for _, n := range rootPath[:i] {
				spurExclude[n] = true
			}
			spurFilter := func(from, to string) bool {
				if banned[[2]string{from, to}] {
					return false
				}
				return filter == nil || filter(from, to)
			}
			spurPath := g.ShortestPath(spurNode, dst, spurFilter, spurExclude)
			if spurPath == nil {
				continue
			}
			candidate := make([]string, 0, i+len(spurPath))
			candidate = append(candidate, rootPath[:i]...)
			candidate = append(candidate, spurPath...)
			if !containsPath(paths, candidate) && !containsPath(candidates, candidate) {
				candidates = append(candidates, candidate)
			}
		}
		if len(candidates) == 0 {
			break
		}
		sort.Slice(candidates, func(a, b int) bool {
			if len(candidates[a]) != len(candidates[b]) {
				return len(candidates[a]) < len(candidates[b])
			}
			return lessPath(candidates[a], candidates[b])
		})
		paths = append(paths, candidates[0])
		candidates = candidates[1:]
	}
	return paths
}

func samePrefix(path, prefix []string) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}

func containsPath(paths [][]string, p []string) bool {
	for _, q := range paths {
		if len(q) != len(p) {
			continue
		}
		same := true
		for i := range q {
			if q[i] != p[i] {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

func lessPath(a, b []string) bool {
	for i := range a {
		if i >= len(b) {
			return false
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
