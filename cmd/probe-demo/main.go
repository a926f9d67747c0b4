package main

import (
	"fmt"
	"log"
	"math/rand"

	"channelprober/internal/probing"
)

func main() {
	// A two-channel hop with both channels enabled in both directions.
	hop, err := probing.NewHop(probing.HopConfig{
		Capacities:  []int64{1 << 20, 1 << 15},
		EnabledDir0: []int{0, 1},
		EnabledDir1: []int{0, 1},
		Rand:        rand.New(rand.NewSource(42)),
	})
	if err != nil {
		log.Fatalf("Failed to create hop: %v", err)
	}

	fmt.Printf("Initial uncertainty: %.2f bits\n\n", hop.Uncertainty())

	probes := 0
	for {
		dir, ok := hop.NextDirection(false, false)
		if !ok {
			break
		}
		amount := hop.NextAmount(dir, false, false)
		passed := hop.Probe(dir, amount)
		probes++
		outcome := "failed"
		if passed {
			outcome = "passed"
		}
		fmt.Printf("probe %2d: %d sat in %v %s, %.2f bits left\n",
			probes, amount, dir, outcome, hop.Uncertainty())
	}

	fmt.Printf("\nResolved after %d probes\n", probes)
	fmt.Printf("True balances: %v\n", hop.Balances())
	fmt.Println(hop)
}
