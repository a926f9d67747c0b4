package experiment

import "fmt"

// Capacities used by the canned two-channel scenarios.
const (
	CapacityBig   = 1 << 20
	CapacitySmall = 1 << 15
)

// Synthetic hop capacities in satoshis.
const (
	satoshisPerBitcoin   = 100_000_000
	minSyntheticCapacity = satoshisPerBitcoin / 100
	maxSyntheticCapacity = 10 * satoshisPerBitcoin
)

// ChannelCountSweep measures gain and speed against the number of
// parallel channels in the target hops, from 1 to maxChannels.
func ChannelCountSweep(maxChannels, numHops, runs int, jamming bool, seed int64) []Scenario {
	scenarios := make([]Scenario, 0, maxChannels)
	for n := 1; n <= maxChannels; n++ {
		scenarios = append(scenarios, Scenario{
			Name:                     fmt.Sprintf("channels-%d", n),
			NumHops:                  numHops,
			NumChannels:              n,
			MinCapacity:              minSyntheticCapacity,
			MaxCapacity:              maxSyntheticCapacity,
			ProbabilityBidirectional: 1,
			Jamming:                  jamming,
			Runs:                     runs,
			Seed:                     seed + int64(n),
		})
	}
	return scenarios
}

// TwoChannelConfigurations measures how the enabled-direction pattern of
// a two-channel hop affects probing. The pattern X_Y means X channels
// enabled in dir0 and Y in dir1; the big-small and small-big variants
// pair a large channel with a small one in either order.
func TwoChannelConfigurations(numHops, runs int, seed int64) []Scenario {
	bigBig := []int64{CapacityBig, CapacityBig}
	bigSmall := []int64{CapacityBig, CapacitySmall}
	smallBig := []int64{CapacitySmall, CapacityBig}

	both := []int{0, 1}
	first := []int{0}
	second := []int{1}
	none := []int{}

	type shape struct {
		name       string
		capacities []int64
		dir0, dir1 []int
	}
	shapes := []shape{
		{"2_2", bigBig, both, both},
		{"2_2_big_small", bigSmall, both, both},
		{"2_2_small_big", smallBig, both, both},
		{"1_1", bigBig, first, second},
		{"1_1_big_small", bigSmall, first, second},
		{"1_1_small_big", smallBig, first, second},
		{"2_1", bigBig, both, first},
		{"2_1_big_small", bigSmall, both, first},
		{"2_1_small_big", smallBig, both, first},
		{"2_0", bigBig, both, none},
		{"2_0_big_small", bigSmall, both, none},
		{"2_0_small_big", smallBig, both, none},
	}
	scenarios := make([]Scenario, 0, len(shapes))
	for i, sh := range shapes {
		scenarios = append(scenarios, Scenario{
			Name:    sh.name,
			NumHops: numHops,
			Template: &HopTemplate{
				Capacities:  sh.capacities,
				EnabledDir0: sh.dir0,
				EnabledDir1: sh.dir1,
			},
			Runs: runs,
			Seed: seed + int64(i),
		})
	}
	return scenarios
}

// CapacityRatioSweep measures two-channel bidirectional hops where the
// larger channel is ratio times the smaller, for ratios 1 to maxRatio.
func CapacityRatioSweep(maxRatio, numHops, runs int, seed int64) []Scenario {
	const shortSide = 1 << 20
	scenarios := make([]Scenario, 0, maxRatio)
	for ratio := 1; ratio <= maxRatio; ratio++ {
		scenarios = append(scenarios, Scenario{
			Name:    fmt.Sprintf("ratio-%d", ratio),
			NumHops: numHops,
			Template: &HopTemplate{
				Capacities:  []int64{shortSide, int64(ratio) * shortSide},
				EnabledDir0: []int{0, 1},
				EnabledDir1: []int{0, 1},
			},
			Runs: runs,
			Seed: seed + int64(ratio),
		})
	}
	return scenarios
}
