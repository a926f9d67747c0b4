package graph

import (
	"fmt"
	"math/rand"
	"sort"

	"channelprober/internal/probing"
)

// HopGraph is an undirected graph of nodes connected by hops. Parallel
// channels between the same pair of nodes are folded into one hop, so
// at most one edge exists per node pair.
type HopGraph struct {
	adjacency map[string]map[string]*probing.Hop
}

// NewHopGraph returns an empty graph.
func NewHopGraph() *HopGraph {
	return &HopGraph{adjacency: make(map[string]map[string]*probing.Hop)}
}

// BuildHopGraph groups channels by node pair, builds one hop per pair
// with random balances, and keeps only the largest connected component.
func BuildHopGraph(channels []Channel, rnd *rand.Rand) (*HopGraph, error) {
	type pair struct{ a, b string }
	grouped := make(map[pair][]Channel)
	var order []pair
	for _, ch := range channels {
		if ch.Source >= ch.Destination {
			return nil, fmt.Errorf("channel %s endpoints out of order: %s >= %s", ch.ID, ch.Source, ch.Destination)
		}
		key := pair{ch.Source, ch.Destination}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], ch)
	}
	g := NewHopGraph()
	for _, key := range order {
		group := grouped[key]
		capacities := make([]int64, len(group))
		var enabledDir0, enabledDir1 []int
		for i, ch := range group {
			capacities[i] = ch.Capacity
			if ch.Dir0Enabled {
				enabledDir0 = append(enabledDir0, i)
			}
			if ch.Dir1Enabled {
				enabledDir1 = append(enabledDir1, i)
			}
		}
		hop, err := probing.NewHop(probing.HopConfig{
			Capacities:  capacities,
			EnabledDir0: enabledDir0,
			EnabledDir1: enabledDir1,
			Rand:        rnd,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build hop %s-%s: %w", key.a, key.b, err)
		}
		g.setHop(key.a, key.b, hop)
	}
	return g.largestComponent(), nil
}

func (g *HopGraph) addNode(n string) {
	if _, ok := g.adjacency[n]; !ok {
		g.adjacency[n] = make(map[string]*probing.Hop)
	}
}

func (g *HopGraph) setHop(a, b string, hop *probing.Hop) {
	g.addNode(a)
	g.addNode(b)
	g.adjacency[a][b] = hop
	g.adjacency[b][a] = hop
}

// HasNode reports whether the node is present.
func (g *HopGraph) HasNode(n string) bool {
	_, ok := g.adjacency[n]
	return ok
}

// Hop returns the hop between two nodes, if any.
func (g *HopGraph) Hop(a, b string) (*probing.Hop, bool) {
	peers, ok := g.adjacency[a]
	if !ok {
		return nil, false
	}
	hop, ok := peers[b]
	return hop, ok
}

// Nodes returns all node IDs in sorted order.
func (g *HopGraph) Nodes() []string {
	nodes := make([]string, 0, len(g.adjacency))
	for n := range g.adjacency {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

// Neighbors returns the peers of a node in sorted order, keeping
// traversal deterministic.
func (g *HopGraph) Neighbors(n string) []string {
	peers := make([]string, 0, len(g.adjacency[n]))
	for p := range g.adjacency[n] {
		peers = append(peers, p)
	}
	sort.Strings(peers)
	return peers
}

// Edges returns every hop's node pair, each with the lower node first,
// in sorted order.
func (g *HopGraph) Edges() [][2]string {
	var edges [][2]string
	for _, a := range g.Nodes() {
		for _, b := range g.Neighbors(a) {
			if a < b {
				edges = append(edges, [2]string{a, b})
			}
		}
	}
	return edges
}

// Hops returns all hops in edge order.
func (g *HopGraph) Hops() []*probing.Hop {
	edges := g.Edges()
	hops := make([]*probing.Hop, len(edges))
	for i, e := range edges {
		hops[i], _ = g.Hop(e[0], e[1])
	}
	return hops
}

// DirectionBetween returns the hop direction of a payment flowing from
// one node to the other. Dir0 always runs from the lexicographically
// lower node ID to the higher one.
func DirectionBetween(from, to string) probing.Direction {
	if from < to {
		return probing.Dir0
	}
	return probing.Dir1
}

// OpenChannel adds a channel from first to second with the whole
// capacity on first's side, enabled only in the direction first can
// send. If a hop already exists between the two nodes, the channel is
// appended to it, preserving the existing channels' true balances.
func (g *HopGraph) OpenChannel(first, second string, capacity int64) error {
	if first == second {
		return fmt.Errorf("cannot open a channel from %s to itself", first)
	}
	dir := DirectionBetween(first, second)
	// Balances are stored in dir0 convention: the lower node's side.
	balance := capacity
	if dir == probing.Dir1 {
		balance = 0
	}

	var capacities, balances []int64
	var enabledDir0, enabledDir1 []int
	if existing, ok := g.Hop(first, second); ok {
		capacities = existing.Capacities()
		balances = existing.Balances()
		enabledDir0 = existing.EnabledChannels(probing.Dir0)
		enabledDir1 = existing.EnabledChannels(probing.Dir1)
	}
	idx := len(capacities)
	capacities = append(capacities, capacity)
	balances = append(balances, balance)
	if dir == probing.Dir0 {
		enabledDir0 = append(enabledDir0, idx)
	} else {
		enabledDir1 = append(enabledDir1, idx)
	}
	hop, err := probing.NewHop(probing.HopConfig{
		Capacities:  capacities,
		EnabledDir0: enabledDir0,
		EnabledDir1: enabledDir1,
		Balances:    balances,
	})
	if err != nil {
		return fmt.Errorf("failed to open channel %s-%s: %w", first, second, err)
	}
	a, b := first, second
	if a > b {
		a, b = b, a
	}
	g.setHop(a, b, hop)
	return nil
}

// ResetAllEstimates resets the probing estimates of every hop.
func (g *HopGraph) ResetAllEstimates() {
	for _, hop := range g.Hops() {
		hop.ResetEstimates()
	}
}

// TargetHopsWithChannels returns up to limit node pairs whose hop has
// exactly numChannels channels and can forward in at least one
// direction, shuffled with the given source.
func (g *HopGraph) TargetHopsWithChannels(limit, numChannels int, rnd *rand.Rand) [][2]string {
	var candidates [][2]string
	for _, e := range g.Edges() {
		hop, _ := g.Hop(e[0], e[1])
		if hop.N() == numChannels && (hop.CanForward(probing.Dir0) || hop.CanForward(probing.Dir1)) {
			candidates = append(candidates, e)
		}
	}
	rnd.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// largestComponent returns the subgraph induced by the largest
// connected component. Ties break toward the component containing the
// smallest node ID.
func (g *HopGraph) largestComponent() *HopGraph {
	visited := make(map[string]bool, len(g.adjacency))
	var best []string
	for _, start := range g.Nodes() {
		if visited[start] {
			continue
		}
		component := []string{start}
		visited[start] = true
		for frontier := []string{start}; len(frontier) > 0; {
			n := frontier[0]
			frontier = frontier[1:]
			for _, peer := range g.Neighbors(n) {
				if !visited[peer] {
					visited[peer] = true
					component = append(component, peer)
					frontier = append(frontier, peer)
				}
			}
		}
		if len(component) > len(best) {
			best = component
		}
	}
	keep := make(map[string]bool, len(best))
	for _, n := range best {
		keep[n] = true
	}
	sub := NewHopGraph()
	for _, e := range g.Edges() {
		if keep[e[0]] && keep[e[1]] {
			hop, _ := g.Hop(e[0], e[1])
			sub.setHop(e[0], e[1], hop)
		}
	}
	for n := range keep {
		sub.addNode(n)
	}
	return sub
}
