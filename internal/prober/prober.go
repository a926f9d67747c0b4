// Package prober runs remote balance probing over a hop graph: probes
// are routed from the attacker's node through intermediary hops, so a
// failed intermediary hides information about the target.
package prober

import (
	"context"
	"fmt"
	"math/rand"

	"golang.org/x/time/rate"

	"channelprober/internal/graph"
	"channelprober/internal/probing"
)

const (
	defaultMaxFailedProbesPerHop = 20
	defaultBestDirectionChance   = 0.5
)

// Config describes the attacker node and its probing discipline.
type Config struct {
	// NodeID is the attacker's node. It must not already exist in the
	// graph.
	NodeID string

	// EntryNodes are the nodes the attacker opens channels to. Probes
	// enter the network through these channels.
	EntryNodes []string

	// EntryChannelCapacity is the capacity of each entry channel. All
	// of it sits on the attacker's side, so the attacker can always
	// push up to this amount.
	EntryChannelCapacity int64

	// MaxFailedProbesPerHop bounds the probes spent on a single target
	// before giving up on reaching it. Defaults to 20.
	MaxFailedProbesPerHop int

	// BestDirectionChance biases the coin flip between the preferred
	// and the alternative direction when both remain viable.
	// Defaults to 0.5.
	BestDirectionChance float64

	// Rate limits probe payments per second. Zero means unlimited.
	Rate  rate.Limit
	Burst int

	// Rand drives direction coin flips. Required.
	Rand *rand.Rand
}

// Prober issues probes from a dedicated node against target hops,
// updating every hop along each route.
type Prober struct {
	graph           *graph.HopGraph
	nodeID          string
	limiter         *rate.Limiter
	maxFailedProbes int
	bestDirChance   float64
	rnd             *rand.Rand
}

// New attaches an attacker node to the graph via entry channels and
// returns a prober operating on it. The graph is modified in place.
func New(g *graph.HopGraph, cfg Config) (*Prober, error) {
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("prober node ID must be set")
	}
	if g.HasNode(cfg.NodeID) {
		return nil, fmt.Errorf("node %s already exists in the graph", cfg.NodeID)
	}
	if len(cfg.EntryNodes) == 0 {
		return nil, fmt.Errorf("at least one entry node is required")
	}
	if cfg.EntryChannelCapacity <= 0 {
		return nil, fmt.Errorf("entry channel capacity must be positive, got %d", cfg.EntryChannelCapacity)
	}
	if cfg.Rand == nil {
		return nil, fmt.Errorf("random source must be set")
	}
	for _, entry := range cfg.EntryNodes {
		if !g.HasNode(entry) {
			return nil, fmt.Errorf("entry node %s not in the graph", entry)
		}
		if err := g.OpenChannel(cfg.NodeID, entry, cfg.EntryChannelCapacity); err != nil {
			return nil, err
		}
	}
	maxFailed := cfg.MaxFailedProbesPerHop
	if maxFailed == 0 {
		maxFailed = defaultMaxFailedProbesPerHop
	}
	chance := cfg.BestDirectionChance
	if chance == 0 {
		chance = defaultBestDirectionChance
	}
	limit := cfg.Rate
	if limit == 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst == 0 {
		burst = 1
	}
	return &Prober{
		graph:           g,
		nodeID:          cfg.NodeID,
		limiter:         rate.NewLimiter(limit, burst),
		maxFailedProbes: maxFailed,
		bestDirChance:   chance,
		rnd:             cfg.Rand,
	}, nil
}

// NodeID returns the attacker's node ID.
func (p *Prober) NodeID() string {
	return p.nodeID
}

// routeForAmount finds a fewest-hops route from the attacker to the
// first node of the ordered target pair, over edges whose current upper
// bound admits the amount, then extends it across the target hop. The
// second target node is excluded from the route body so the target hop
// is always the last hop. Returns nil when no route exists.
func (p *Prober) routeForAmount(orderedTarget [2]string, amount int64) []string {
	filter := func(from, to string) bool {
		hop, ok := p.graph.Hop(from, to)
		if !ok {
			return false
		}
		dir := graph.DirectionBetween(from, to)
		return hop.CanForward(dir) && amount < hop.ForwardUpperBound(dir)
	}
	exclude := map[string]bool{orderedTarget[1]: true}
	path := p.graph.ShortestPath(p.nodeID, orderedTarget[0], filter, exclude)
	if path == nil {
		return nil
	}
	return append(path, orderedTarget[1])
}

// sendProbe issues one probe payment along the path. Every hop on the
// path observes the probe; a failing intermediary stops propagation.
// Returns whether the probe reached the target hop (the last hop of the
// path), regardless of passing there.
func (p *Prober) sendProbe(ctx context.Context, path []string, amount int64) (bool, error) {
	if path[0] != p.nodeID {
		panic(fmt.Sprintf("probe path must start at %s, got %s", p.nodeID, path[0]))
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return false, err
	}
	reachedTarget := false
	for i := 0; i+1 < len(path); i++ {
		n1, n2 := path[i], path[i+1]
		reachedTarget = n2 == path[len(path)-1]
		hop, ok := p.graph.Hop(n1, n2)
		if !ok {
			panic(fmt.Sprintf("route uses nonexistent hop %s-%s", n1, n2))
		}
		if !hop.Probe(graph.DirectionBetween(n1, n2), amount) {
			break
		}
	}
	return reachedTarget, nil
}

// ProbeHop probes one target hop until it is resolved as far as routing
// allows: first without jamming, then channel by channel if jamming is
// enabled. Returns the number of probe payments sent (jams counted as
// payments).
func (p *Prober) ProbeHop(ctx context.Context, target [2]string, naive, jamming bool) (int, error) {
	targetHop, ok := p.graph.Hop(target[0], target[1])
	if !ok {
		return 0, fmt.Errorf("no hop between %s and %s", target[0], target[1])
	}
	// Amounts known to be unroutable per direction; retrying them is
	// pointless until the bounds move.
	knownFailed := map[probing.Direction]int64{}

	probeInDirection := func(dir probing.Direction, jam bool) (madeProbe, reachedTarget bool, err error) {
		worth := targetHop.WorthProbingDirection(dir)
		if jam {
			worth = targetHop.WorthProbing()
		}
		if !worth {
			return false, false, nil
		}
		amount := targetHop.NextAmount(dir, naive, jam)
		if failed, ok := knownFailed[dir]; ok && amount >= failed {
			return false, false, nil
		}
		ordered := target
		if graph.DirectionBetween(target[0], target[1]) != dir {
			ordered = [2]string{target[1], target[0]}
		}
		path := p.routeForAmount(ordered, amount)
		if path == nil {
			knownFailed[dir] = amount
			return false, false, nil
		}
		reached, err := p.sendProbe(ctx, path, amount)
		if err != nil {
			return false, false, err
		}
		return true, reached, nil
	}

	chooseAndProbe := func(jam bool) (int, bool, error) {
		bestDir, ok := targetHop.NextDirection(naive, jam)
		if !ok {
			return 0, false, nil
		}
		altDir := bestDir.Opposite()
		altViable := targetHop.WorthProbingDirection(altDir)
		if jam {
			altViable = targetHop.CanForward(altDir)
		}
		madeProbe, reachedTarget := false, false
		didProbes, firstAttempt := 0, true
		dir := bestDir
		for !reachedTarget && didProbes < p.maxFailedProbes {
			if firstAttempt {
				dir = bestDir
				firstAttempt = false
			} else if !altViable {
				if !madeProbe {
					// The only direction yielded no probe; nothing
					// left to try.
					break
				}
				dir = bestDir
			} else if !madeProbe {
				if dir == bestDir {
					dir = altDir
				} else {
					break
				}
			} else if p.rnd.Float64() < p.bestDirChance {
				dir = bestDir
			} else {
				dir = altDir
			}
			var err error
			madeProbe, reachedTarget, err = probeInDirection(dir, jam)
			if err != nil {
				return didProbes, false, err
			}
			if madeProbe {
				didProbes++
			}
		}
		return didProbes, reachedTarget, nil
	}

	totalProbes := 0
	for targetHop.WorthProbingH() || targetHop.WorthProbingG() {
		probes, reached, err := chooseAndProbe(false)
		totalProbes += probes
		if err != nil {
			return totalProbes, err
		}
		if !reached {
			break
		}
	}
	if jamming {
		for i := 0; i < targetHop.N(); i++ {
			targetHop.Unjam(i, probing.Dir0)
			targetHop.Unjam(i, probing.Dir1)
			totalProbes += targetHop.JamAllExceptInDirection(i, probing.Dir0)
			totalProbes += targetHop.JamAllExceptInDirection(i, probing.Dir1)
			for targetHop.WorthProbingChannel(i) {
				probes, reached, err := chooseAndProbe(true)
				totalProbes += probes
				if err != nil {
					targetHop.UnjamAll()
					return totalProbes, err
				}
				if !reached {
					break
				}
			}
		}
		targetHop.UnjamAll()
	}
	return totalProbes, nil
}

// Result aggregates a probing run over a set of target hops.
type Result struct {
	// GainRatio is the share of the targets' initial uncertainty
	// resolved, in [0, 1].
	GainRatio float64

	// ProbingSpeed is bits resolved per probe payment sent.
	ProbingSpeed float64

	TotalProbes  int
	InitialBits  float64
	ResolvedBits float64
}

// ProbeHops resets all hop estimates and probes every target hop in
// turn.
func (p *Prober) ProbeHops(ctx context.Context, targets [][2]string, naive, jamming bool) (Result, error) {
	p.graph.ResetAllEstimates()
	var res Result
	res.InitialBits = p.uncertaintyForHops(targets)
	for _, target := range targets {
		probes, err := p.ProbeHop(ctx, target, naive, jamming)
		res.TotalProbes += probes
		if err != nil {
			return res, err
		}
	}
	res.ResolvedBits = res.InitialBits - p.uncertaintyForHops(targets)
	if res.TotalProbes > 0 {
		res.ProbingSpeed = res.ResolvedBits / float64(res.TotalProbes)
	}
	if res.InitialBits > 0 {
		res.GainRatio = res.ResolvedBits / res.InitialBits
	}
	return res, nil
}

func (p *Prober) uncertaintyForHops(targets [][2]string) float64 {
	var total float64
	for _, target := range targets {
		if hop, ok := p.graph.Hop(target[0], target[1]); ok {
			total += hop.Uncertainty()
		}
	}
	return total
}
