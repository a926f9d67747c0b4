package probing

import (
	"math"
	"math/rand"
	"testing"
)

func mustHop(t *testing.T, cfg HopConfig) *Hop {
	t.Helper()
	hop, err := NewHop(cfg)
	if err != nil {
		t.Fatalf("NewHop failed: %v", err)
	}
	return hop
}

func TestNewHop_Validation(t *testing.T) {
	cases := []struct {
		name string
		cfg  HopConfig
	}{
		{"no channels", HopConfig{}},
		{"non-positive capacity", HopConfig{Capacities: []int64{100, 0}}},
		{"enabled index out of range", HopConfig{Capacities: []int64{100}, EnabledDir0: []int{1}}},
		{"negative enabled index", HopConfig{Capacities: []int64{100}, EnabledDir1: []int{-1}}},
		{"duplicate enabled index", HopConfig{Capacities: []int64{100, 200}, EnabledDir0: []int{0, 0}}},
		{"wrong balance count", HopConfig{Capacities: []int64{100}, Balances: []int64{1, 2}}},
		{"balance above capacity", HopConfig{Capacities: []int64{100}, Balances: []int64{101}}},
		{"negative balance", HopConfig{Capacities: []int64{100}, Balances: []int64{-1}}},
		{"negative granularity", HopConfig{Capacities: []int64{100}, Granularity: -2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewHop(tc.cfg); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestHop_InitialUncertainty(t *testing.T) {
	hop := mustHop(t, HopConfig{
		Capacities:  []int64{1024},
		EnabledDir0: []int{0},
		Balances:    []int64{0},
	})

	// 1025 possible balances, a hair over 10 bits.
	want := math.Log2(1025)
	if got := hop.Uncertainty(); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected uncertainty %f, got %f", want, got)
	}
	if !hop.WorthProbingH() {
		t.Error("dir0 should be worth probing")
	}
	if hop.WorthProbingG() {
		t.Error("dir1 is disabled, not worth probing")
	}
}

func TestHop_GranularityReducesUncertainty(t *testing.T) {
	fine := mustHop(t, HopConfig{
		Capacities: []int64{1024}, EnabledDir0: []int{0}, Balances: []int64{0},
	})
	coarse := mustHop(t, HopConfig{
		Capacities: []int64{1024}, EnabledDir0: []int{0}, Balances: []int64{0},
		Granularity: 1024,
	})
	if coarse.Uncertainty() >= fine.Uncertainty() {
		t.Errorf("coarse granularity must reduce uncertainty: %f >= %f",
			coarse.Uncertainty(), fine.Uncertainty())
	}
	if coarse.Uncertainty() < 0 {
		t.Error("uncertainty must never be negative")
	}
}

// A one-channel hop with capacity 2^10 resolves in exactly 10 probes,
// one per bit, for any balance below 2^9 boundary behavior included.
func TestHop_SingleChannelProbeCount(t *testing.T) {
	for _, balance := range []int64{0, 511} {
		for _, naive := range []bool{true, false} {
			hop := mustHop(t, HopConfig{
				Capacities:  []int64{1024},
				EnabledDir0: []int{0},
				Balances:    []int64{balance},
			})
			probes := ProbeHopWithoutJamming(hop, naive)
			if probes != 10 {
				t.Errorf("balance %d naive=%v: expected 10 probes, got %d", balance, naive, probes)
			}
			if hop.Uncertainty() != 0 {
				t.Errorf("balance %d naive=%v: expected full resolution, got %f bits left",
					balance, naive, hop.Uncertainty())
			}
			lo, hi := hop.BalanceBounds(0)
			if lo != balance-1 || hi != balance {
				t.Errorf("balance %d naive=%v: expected bounds (%d, %d], got (%d, %d]",
					balance, naive, balance-1, balance, lo, hi)
			}
		}
	}
}

func TestHop_BidirectionalSingleChannelPinsBalance(t *testing.T) {
	const balance = 12345
	hop := mustHop(t, HopConfig{
		Capacities:  []int64{1 << 16},
		EnabledDir0: []int{0},
		EnabledDir1: []int{0},
		Balances:    []int64{balance},
	})
	ProbeHopWithoutJamming(hop, false)

	if hop.Uncertainty() != 0 {
		t.Fatalf("expected full resolution, %f bits left", hop.Uncertainty())
	}
	lo, hi := hop.BalanceBounds(0)
	if lo != balance-1 || hi != balance {
		t.Errorf("expected bounds (%d, %d], got (%d, %d]", balance-1, balance, lo, hi)
	}
}

func TestHop_ProbeOutsideWindowIsNoOp(t *testing.T) {
	hop := mustHop(t, HopConfig{
		Capacities:  []int64{1000},
		EnabledDir0: []int{0},
		Balances:    []int64{600},
	})

	if !hop.Probe(Dir0, 500) {
		t.Fatal("probe of 500 should pass with balance 600")
	}
	before := hop.RegionSize()

	// Above the upper bound and below the lower bound: no information.
	hop.Probe(Dir0, 2000)
	hop.Probe(Dir0, 300)

	if after := hop.RegionSize(); after.Cmp(before) != 0 {
		t.Errorf("out-of-window probes changed region size: %s -> %s", before, after)
	}
}

func TestHop_NextDirectionDisabledHop(t *testing.T) {
	hop := mustHop(t, HopConfig{
		Capacities: []int64{1000},
		Balances:   []int64{300},
	})
	if _, ok := hop.NextDirection(false, false); ok {
		t.Error("hop disabled in both directions must yield no direction")
	}
	if hop.WorthProbingH() || hop.WorthProbingG() {
		t.Error("disabled hop is not worth probing")
	}
}

func TestHop_ResetEstimatesRestoresUncertainty(t *testing.T) {
	hop := mustHop(t, HopConfig{
		Capacities:  []int64{1 << 12},
		EnabledDir0: []int{0},
		EnabledDir1: []int{0},
		Balances:    []int64{1000},
	})
	initial := hop.Uncertainty()
	ProbeHopWithoutJamming(hop, true)
	if hop.Uncertainty() != 0 {
		t.Fatal("expected full resolution")
	}
	hop.ResetEstimates()
	if got := hop.Uncertainty(); got != initial {
		t.Errorf("expected uncertainty restored to %f, got %f", initial, got)
	}
}

func TestHop_JammingUpdatesOnlyUnjammedChannel(t *testing.T) {
	hop := mustHop(t, HopConfig{
		Capacities:  []int64{1 << 20, 1 << 20},
		EnabledDir0: []int{0, 1},
		EnabledDir1: []int{0, 1},
		Balances:    []int64{500_000, 700_000},
	})
	hop.Jam(1, Dir0)
	hop.Jam(1, Dir1)

	hBefore := hop.ForwardUpperBound(Dir0)
	gBefore := hop.ForwardUpperBound(Dir1)
	lo1Before, hi1Before := hop.BalanceBounds(1)

	hop.Probe(Dir0, 400_000) // passes through channel 0

	if lo, _ := hop.BalanceBounds(0); lo != 399_999 {
		t.Errorf("expected channel 0 lower bound 399999, got %d", lo)
	}
	if lo, hi := hop.BalanceBounds(1); lo != lo1Before || hi != hi1Before {
		t.Error("jammed channel bounds must not move")
	}
	if hop.ForwardUpperBound(Dir0) != hBefore || hop.ForwardUpperBound(Dir1) != gBefore {
		t.Error("hop-level bounds must not move in jamming mode")
	}
	hop.UnjamAll()
}

func TestHop_JamAccounting(t *testing.T) {
	hop := mustHop(t, HopConfig{
		Capacities:  []int64{100, 100, 100},
		EnabledDir0: []int{0, 1, 2},
		EnabledDir1: []int{0, 2},
		Balances:    []int64{10, 20, 30},
	})
	if jams := hop.JamAllExceptInDirection(0, Dir0); jams != 2 {
		t.Errorf("expected 2 jams in dir0, got %d", jams)
	}
	// Jamming the same channels again changes nothing.
	if jams := hop.JamAllExceptInDirection(0, Dir0); jams != 0 {
		t.Errorf("expected 0 repeat jams, got %d", jams)
	}
	if jams := hop.JamAllExceptInDirection(0, Dir1); jams != 1 {
		t.Errorf("expected 1 jam in dir1, got %d", jams)
	}
	if !hop.CanForward(Dir0) {
		t.Error("channel 0 must remain available in dir0")
	}
	hop.Unjam(1, Dir0)
	if jams := hop.JamAllExceptInDirection(0, Dir0); jams != 1 {
		t.Errorf("expected to re-jam channel 1, got %d jams", jams)
	}
	hop.UnjamAll()
	if !hop.CanForward(Dir1) {
		t.Error("all channels must be available after UnjamAll")
	}
}

// Probing must keep all invariants and never grow the region,
// whatever the hop shape.
func TestHop_InvariantsHoldThroughoutProbing(t *testing.T) {
	rnd := rand.New(rand.NewSource(99))
	for trial := 0; trial < 30; trial++ {
		n := 1 + rnd.Intn(3)
		capacities := make([]int64, n)
		var enabledDir0, enabledDir1 []int
		for i := range capacities {
			capacities[i] = 1 + rnd.Int63n(1<<16)
			if rnd.Intn(4) > 0 {
				enabledDir0 = append(enabledDir0, i)
			}
			if rnd.Intn(4) > 0 {
				enabledDir1 = append(enabledDir1, i)
			}
		}
		hop, err := NewHop(HopConfig{
			Capacities:  capacities,
			EnabledDir0: enabledDir0,
			EnabledDir1: enabledDir1,
			Rand:        rnd,
		})
		if err != nil {
			t.Fatalf("trial %d: NewHop failed: %v", trial, err)
		}

		prev := hop.RegionSize()
		for hop.WorthProbingH() || hop.WorthProbingG() {
			dir, ok := hop.NextDirection(false, false)
			if !ok {
				break
			}
			hop.Probe(dir, hop.NextAmount(dir, false, false))
			if err := hop.CheckInvariants(); err != nil {
				t.Fatalf("trial %d: invariant violated: %v", trial, err)
			}
			cur := hop.RegionSize()
			if cur.Cmp(prev) > 0 {
				t.Fatalf("trial %d: region grew from %s to %s", trial, prev, cur)
			}
			prev = cur
		}
	}
}

func TestHop_TwoChannelJammingResolvesBalances(t *testing.T) {
	balances := []int64{123_456, 7_890}
	for _, naive := range []bool{true, false} {
		hop := mustHop(t, HopConfig{
			Capacities:  []int64{1 << 20, 1 << 15},
			EnabledDir0: []int{0, 1},
			EnabledDir1: []int{0, 1},
			Balances:    balances,
		})
		gain, probes, jams := ProbeSingleHop(hop, naive, true)
		if hop.Uncertainty() != 0 {
			t.Fatalf("naive=%v: expected full resolution, %f bits left", naive, hop.Uncertainty())
		}
		if gain <= 0 || probes <= 0 || jams <= 0 {
			t.Errorf("naive=%v: expected positive gain/probes/jams, got %f/%d/%d",
				naive, gain, probes, jams)
		}
		for i, b := range balances {
			lo, hi := hop.BalanceBounds(i)
			if lo != b-1 || hi != b {
				t.Errorf("naive=%v: channel %d expected bounds (%d, %d], got (%d, %d]",
					naive, i, b-1, b, lo, hi)
			}
		}
	}
}

// Without jamming, a multi-channel hop can only be resolved to its
// directional bounds; the strategies must agree on the achieved gain,
// and the optimal strategy must get there in fewer probes overall.
func TestHop_StrategiesAgreeOnGain(t *testing.T) {
	var totalNaiveGain, totalOptimalGain float64
	var totalNaiveProbes, totalOptimalProbes int
	for trial := 0; trial < 40; trial++ {
		seed := int64(1000 + trial)
		build := func() *Hop {
			return mustHop(t, HopConfig{
				Capacities:  []int64{1 << 20, 1 << 20},
				EnabledDir0: []int{0, 1},
				EnabledDir1: []int{0, 1},
				Rand:        rand.New(rand.NewSource(seed)),
			})
		}
		naiveHop, optimalHop := build(), build()
		gainNaive, probesNaive, _ := ProbeSingleHop(naiveHop, true, false)
		gainOptimal, probesOptimal, _ := ProbeSingleHop(optimalHop, false, false)
		if gainOptimal <= 0 {
			t.Fatalf("trial %d: no gain from optimal probing", trial)
		}
		totalNaiveGain += gainNaive
		totalOptimalGain += gainOptimal
		totalNaiveProbes += probesNaive
		totalOptimalProbes += probesOptimal
	}

	diff := math.Abs(totalNaiveGain-totalOptimalGain) / totalOptimalGain
	if diff > 0.05 {
		t.Errorf("gains diverge by %.1f%%: naive %f vs optimal %f",
			100*diff, totalNaiveGain, totalOptimalGain)
	}
	if totalOptimalProbes >= totalNaiveProbes {
		t.Errorf("optimal probing must need fewer probes for the same gain: %d >= %d",
			totalOptimalProbes, totalNaiveProbes)
	}
}

func TestHop_ProbePanicsOnNonPositiveAmount(t *testing.T) {
	hop := mustHop(t, HopConfig{
		Capacities:  []int64{100},
		EnabledDir0: []int{0},
		Balances:    []int64{50},
	})
	defer func() {
		if recover() == nil {
			t.Error("expected panic on non-positive amount")
		}
	}()
	hop.Probe(Dir0, 0)
}

func TestHop_ProbePanicsWithoutAvailableChannels(t *testing.T) {
	hop := mustHop(t, HopConfig{
		Capacities:  []int64{100},
		EnabledDir0: []int{0},
		Balances:    []int64{50},
	})
	defer func() {
		if recover() == nil {
			t.Error("expected panic when probing a direction with no channels")
		}
	}()
	hop.Probe(Dir1, 10)
}
