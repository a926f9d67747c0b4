// Package synthetic generates random hops for simulated probing runs.
package synthetic

import (
	"fmt"
	"math/rand"

	"channelprober/internal/probing"
)

// Config bounds the shape of generated hops.
type Config struct {
	// MinChannels and MaxChannels bound the number of parallel channels,
	// both inclusive.
	MinChannels int
	MaxChannels int

	// MinCapacity and MaxCapacity bound each channel's capacity, both
	// inclusive.
	MinCapacity int64
	MaxCapacity int64

	// ProbabilityBidirectional is the chance that a channel is enabled
	// in both directions. A channel that is not bidirectional is enabled
	// in exactly one direction, chosen uniformly.
	ProbabilityBidirectional float64

	// Rand drives all random choices. Callers seed it for reproducible
	// experiments.
	Rand *rand.Rand
}

func (c Config) validate() error {
	if c.MinChannels < 1 || c.MaxChannels < c.MinChannels {
		return fmt.Errorf("invalid channel count range [%d, %d]", c.MinChannels, c.MaxChannels)
	}
	if c.MinCapacity < 1 || c.MaxCapacity < c.MinCapacity {
		return fmt.Errorf("invalid capacity range [%d, %d]", c.MinCapacity, c.MaxCapacity)
	}
	if c.ProbabilityBidirectional < 0 || c.ProbabilityBidirectional > 1 {
		return fmt.Errorf("probability of bidirectional channel must be in [0, 1], got %f", c.ProbabilityBidirectional)
	}
	if c.Rand == nil {
		return fmt.Errorf("random source must be set")
	}
	return nil
}

// GenerateHop generates one random hop within the configured bounds,
// with random balances. Every channel is enabled in at least one
// direction, so the hop is always probeable.
func GenerateHop(cfg Config) (*probing.Hop, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	n := cfg.MinChannels + cfg.Rand.Intn(cfg.MaxChannels-cfg.MinChannels+1)
	capacities := make([]int64, n)
	for i := range capacities {
		capacities[i] = cfg.MinCapacity + cfg.Rand.Int63n(cfg.MaxCapacity-cfg.MinCapacity+1)
	}
	var enabledDir0, enabledDir1 []int
	for i := 0; i < n; i++ {
		if cfg.Rand.Float64() < cfg.ProbabilityBidirectional {
			enabledDir0 = append(enabledDir0, i)
			enabledDir1 = append(enabledDir1, i)
		} else if cfg.Rand.Float64() < 0.5 {
			enabledDir0 = append(enabledDir0, i)
		} else {
			enabledDir1 = append(enabledDir1, i)
		}
	}
	return probing.NewHop(probing.HopConfig{
		Capacities:  capacities,
		EnabledDir0: enabledDir0,
		EnabledDir1: enabledDir1,
		Rand:        cfg.Rand,
	})
}

// GenerateHops generates count random hops.
func GenerateHops(count int, cfg Config) ([]*probing.Hop, error) {
	hops := make([]*probing.Hop, 0, count)
	for len(hops) < count {
		hop, err := GenerateHop(cfg)
		if err != nil {
			return nil, err
		}
		hops = append(hops, hop)
	}
	return hops, nil
}
