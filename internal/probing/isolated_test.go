package probing

import (
	"math/rand"
	"testing"
)

func TestProbeHopsIsolated_FullResolutionSingleChannel(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))
	hops := make([]*Hop, 0, 10)
	for i := 0; i < 10; i++ {
		hop, err := NewHop(HopConfig{
			Capacities:  []int64{1 << 16},
			EnabledDir0: []int{0},
			EnabledDir1: []int{0},
			Rand:        rnd,
		})
		if err != nil {
			t.Fatalf("NewHop failed: %v", err)
		}
		hops = append(hops, hop)
	}

	res := ProbeHopsIsolated(hops, false, false)
	if res.GainRatio < 0.999 {
		t.Errorf("single-channel hops must resolve fully, gain ratio %f", res.GainRatio)
	}
	if res.TotalJams != 0 {
		t.Errorf("expected no jams without jamming, got %d", res.TotalJams)
	}
	if res.ProbingSpeed <= 0 {
		t.Errorf("expected positive probing speed, got %f", res.ProbingSpeed)
	}
	if res.ResolvedBits > res.InitialBits {
		t.Errorf("resolved %f bits out of %f", res.ResolvedBits, res.InitialBits)
	}
}

func TestProbeHopsIsolated_JammingBeatsPlainGain(t *testing.T) {
	build := func() []*Hop {
		rnd := rand.New(rand.NewSource(17))
		hops := make([]*Hop, 0, 5)
		for i := 0; i < 5; i++ {
			hop, err := NewHop(HopConfig{
				Capacities:  []int64{1 << 18, 1 << 18},
				EnabledDir0: []int{0, 1},
				EnabledDir1: []int{0, 1},
				Rand:        rnd,
			})
			if err != nil {
				t.Fatalf("NewHop failed: %v", err)
			}
			hops = append(hops, hop)
		}
		return hops
	}

	plain := ProbeHopsIsolated(build(), false, false)
	jamming := ProbeHopsIsolated(build(), false, true)

	if jamming.GainRatio < 0.999 {
		t.Errorf("jamming-enhanced probing must resolve fully, gain ratio %f", jamming.GainRatio)
	}
	if plain.GainRatio >= jamming.GainRatio {
		t.Errorf("plain probing of 2-channel hops must gain less than jamming: %f >= %f",
			plain.GainRatio, jamming.GainRatio)
	}
	if jamming.TotalJams == 0 {
		t.Error("jamming run must report jams")
	}
}

func TestProbeHopsIsolated_ResetsBeforeProbing(t *testing.T) {
	hop, err := NewHop(HopConfig{
		Capacities:  []int64{1 << 12},
		EnabledDir0: []int{0},
		EnabledDir1: []int{0},
		Balances:    []int64{2000},
	})
	if err != nil {
		t.Fatalf("NewHop failed: %v", err)
	}

	first := ProbeHopsIsolated([]*Hop{hop}, true, false)
	second := ProbeHopsIsolated([]*Hop{hop}, true, false)

	if first.TotalProbes != second.TotalProbes {
		t.Errorf("repeated runs on a reset hop must probe identically: %d vs %d",
			first.TotalProbes, second.TotalProbes)
	}
	if second.InitialBits != first.InitialBits {
		t.Errorf("reset must restore initial uncertainty: %f vs %f",
			second.InitialBits, first.InitialBits)
	}
}

func TestProbeSingleHop_DisabledDirectionOnly(t *testing.T) {
	hop, err := NewHop(HopConfig{
		Capacities:  []int64{1 << 10, 1 << 10},
		EnabledDir0: []int{0, 1},
		Balances:    []int64{100, 900},
	})
	if err != nil {
		t.Fatalf("NewHop failed: %v", err)
	}

	gain, probes, _ := ProbeSingleHop(hop, false, false)
	if probes == 0 {
		t.Fatal("expected probes in the enabled direction")
	}
	if gain <= 0 {
		t.Errorf("expected positive gain, got %f", gain)
	}
	// h is resolved even though dir1 is unreachable.
	if hop.WorthProbingH() {
		t.Error("dir0 must be exhausted after probing")
	}
}
