package probing

// This file drives probing of hops in isolation: the attacker is assumed
// to have a direct channel to both endpoints, so every probe reaches the
// target hop directly and every result is fully informative.

// ProbeHopWithoutJamming probes the hop until neither direction is worth
// probing, choosing direction and amount per the configured strategy.
// Returns the number of probes sent.
func ProbeHopWithoutJamming(hop *Hop, naive bool) int {
	probes := 0
	for hop.WorthProbingH() || hop.WorthProbingG() {
		dir, ok := hop.NextDirection(naive, false)
		if !ok {
			break
		}
		amount := hop.NextAmount(dir, naive, false)
		hop.Probe(dir, amount)
		probes++
	}
	return probes
}

// JamAndProbeSingleChannel probes channel i of a hop on which all other
// channels are already jammed, until i's balance bounds cannot be
// tightened further. Returns the number of probes sent.
func JamAndProbeSingleChannel(hop *Hop, naive bool, i int) int {
	probes := 0
	for hop.WorthProbingChannel(i) {
		dir, ok := hop.NextDirection(naive, true)
		if !ok {
			break
		}
		amount := hop.NextAmount(dir, naive, true)
		hop.Probe(dir, amount)
		probes++
	}
	return probes
}

// ProbeSingleHop fully probes one hop: first without jamming, then, if
// jamming is enabled, channel by channel with all other channels jammed
// in both directions. Returns the information gain in bits along with
// the probe and jam counts. The hop is left unjammed.
func ProbeSingleHop(hop *Hop, naive, jamming bool) (gain float64, probes, jams int) {
	initial := hop.Uncertainty()
	probes = ProbeHopWithoutJamming(hop, naive)
	if jamming {
		for i := 0; i < hop.N(); i++ {
			hop.Unjam(i, Dir0)
			hop.Unjam(i, Dir1)
			jams += hop.JamAllExceptInDirection(i, Dir0)
			jams += hop.JamAllExceptInDirection(i, Dir1)
			probes += JamAndProbeSingleChannel(hop, naive, i)
		}
	}
	hop.UnjamAll()
	gain = initial - hop.Uncertainty()
	return gain, probes, jams
}

// BatchResult aggregates an isolated probing run over a set of hops.
type BatchResult struct {
	// GainRatio is the share of initial uncertainty resolved, in [0, 1].
	GainRatio float64

	// ProbingSpeed is bits of information per message sent, where jams
	// count as messages (they are payments too).
	ProbingSpeed float64

	TotalProbes  int
	TotalJams    int
	InitialBits  float64
	ResolvedBits float64
}

// ProbeHopsIsolated resets and fully probes every hop in the list and
// returns the aggregate gain and speed.
func ProbeHopsIsolated(hops []*Hop, naive, jamming bool) BatchResult {
	for _, hop := range hops {
		hop.ResetEstimates()
	}
	var initial float64
	for _, hop := range hops {
		initial += hop.Uncertainty()
	}
	var res BatchResult
	for _, hop := range hops {
		_, probes, jams := ProbeSingleHop(hop, naive, jamming)
		res.TotalProbes += probes
		res.TotalJams += jams
	}
	var final float64
	for _, hop := range hops {
		final += hop.Uncertainty()
	}
	res.InitialBits = initial
	res.ResolvedBits = initial - final
	messages := res.TotalProbes + res.TotalJams
	if messages > 0 {
		res.ProbingSpeed = res.ResolvedBits / float64(messages)
	}
	if initial > 0 {
		res.GainRatio = res.ResolvedBits / initial
	}
	return res
}
