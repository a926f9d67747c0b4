package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strings"

	"channelprober/internal/graph"
	"channelprober/internal/prober"
)

func main() {
	snapshotPath := flag.String("snapshot", "data/listchannels.json", "path to a listchannels snapshot")
	probeTargets := flag.Int("probe", 0, "probe this many random target hops through the network (0 = analysis only)")
	targetChannels := flag.Int("target-channels", 1, "number of channels in target hops")
	entryNodes := flag.Int("entry-nodes", 3, "entry channels opened by the prober")
	entryCapacity := flag.Int64("entry-capacity", 100_000_000, "capacity of each entry channel in satoshis")
	jamming := flag.Bool("jamming", false, "enable jamming-enhanced probing")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	channels, err := graph.ParseSnapshotFile(*snapshotPath)
	if err != nil {
		log.Fatalf("Failed to parse snapshot: %v", err)
	}
	fmt.Printf("Snapshot contains %d channels\n", len(channels))

	rnd := rand.New(rand.NewSource(*seed))
	g, err := graph.BuildHopGraph(channels, rnd)
	if err != nil {
		log.Fatalf("Failed to build hop graph: %v", err)
	}
	fmt.Printf("Largest component: %d nodes, %d hops\n\n", len(g.Nodes()), len(g.Edges()))

	analyzeComposition(g)

	if *probeTargets > 0 {
		runProbing(g, rnd, *probeTargets, *targetChannels, *entryNodes, *entryCapacity, *jamming)
	}
}

// analyzeComposition reports how hops are composed of parallel channels
// and where the capacity sits.
func analyzeComposition(g *graph.HopGraph) {
	hops := g.Hops()
	if len(hops) == 0 {
		fmt.Println("Graph has no hops")
		return
	}
	maxChannels := 0
	var totalCapacity int64
	for _, hop := range hops {
		if hop.N() > maxChannels {
			maxChannels = hop.N()
		}
		totalCapacity += hop.TotalCapacity()
	}

	share := func(minN, maxN int) (hopShare, capacityShare float64) {
		count := 0
		var capacity int64
		for _, hop := range hops {
			if minN <= hop.N() && hop.N() <= maxN {
				count++
				capacity += hop.TotalCapacity()
			}
		}
		return float64(count) / float64(len(hops)), float64(capacity) / float64(totalCapacity)
	}

	fmt.Printf("Maximal number of channels in a hop: %d\n\n", maxChannels)
	fmt.Printf("%-22s %12s %16s\n", "hop composition", "share", "capacity share")
	fmt.Println(strings.Repeat("-", 52))
	for n := 1; n <= 5; n++ {
		hopShare, capacityShare := share(n, n)
		fmt.Printf("%-22s %11.1f%% %15.1f%%\n",
			fmt.Sprintf("%d-channel hops", n), 100*hopShare, 100*capacityShare)
	}
	hopShare, capacityShare := share(1, 5)
	fmt.Printf("%-22s %11.1f%% %15.1f%%\n", "<= 5-channel hops", 100*hopShare, 100*capacityShare)
	hopShare, capacityShare = share(1, 10)
	fmt.Printf("%-22s %11.1f%% %15.1f%%\n", "<= 10-channel hops", 100*hopShare, 100*capacityShare)
}

func runProbing(g *graph.HopGraph, rnd *rand.Rand, numTargets, targetChannels, numEntry int, entryCapacity int64, jamming bool) {
	nodes := g.Nodes()
	if len(nodes) < numEntry {
		log.Fatalf("Graph has %d nodes, need at least %d entry nodes", len(nodes), numEntry)
	}
	entries := make([]string, 0, numEntry)
	for _, i := range rnd.Perm(len(nodes))[:numEntry] {
		entries = append(entries, nodes[i])
	}

	p, err := prober.New(g, prober.Config{
		NodeID:               "prober",
		EntryNodes:           entries,
		EntryChannelCapacity: entryCapacity,
		Rand:                 rnd,
	})
	if err != nil {
		log.Fatalf("Failed to create prober: %v", err)
	}

	targets := g.TargetHopsWithChannels(numTargets, targetChannels, rnd)
	if len(targets) == 0 {
		log.Fatalf("No target hops with %d channels", targetChannels)
	}
	fmt.Printf("\nProbing %d target hops with %d channels\n", len(targets), targetChannels)

	for _, naive := range []bool{true, false} {
		res, err := p.ProbeHops(context.Background(), targets, naive, jamming)
		if err != nil {
			log.Fatalf("Probing failed: %v", err)
		}
		method := "optimal"
		if naive {
			method = "naive"
		}
		fmt.Printf("  %-8s gain %.3f, speed %.3f bits/probe, %d probes\n",
			method, res.GainRatio, res.ProbingSpeed, res.TotalProbes)
	}
}
