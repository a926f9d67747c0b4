package probing

import (
	"fmt"
	"log"
	"math"
	"math/big"
	"math/rand"
	"sort"
	"strings"
)

// thresholdAreaDifference is the relative tolerance used when comparing
// the two directions' hypothetical post-probe region sizes. If the sizes
// are within this fraction of the half-region target of each other, the
// smaller amount wins (it is more likely to pass).
const thresholdAreaDifference = 0.1

// maxCornerScanPoints caps the candidate grid scanned when the region
// has collapsed. Collapsed regions span a handful of points; anything
// larger indicates a coarse granularity, where pinning is skipped.
const maxCornerScanPoints = 1 << 20

// HopConfig describes a hop to construct.
type HopConfig struct {
	// Capacities holds one positive capacity per parallel channel.
	Capacities []int64

	// EnabledDir0 and EnabledDir1 list the channel indices that may
	// forward in each direction. Indices must be in range and unique.
	EnabledDir0 []int
	EnabledDir1 []int

	// Balances optionally fixes the hidden per-channel balances.
	// When nil, balances are drawn uniformly from [0, capacity).
	Balances []int64

	// Granularity is the number of region points treated as a single
	// indistinguishable outcome. Defaults to 1.
	Granularity int64

	// Rand is the source used to draw balances. Defaults to the shared
	// math/rand source.
	Rand *rand.Rand
}

// Hop models a connection between two nodes backed by parallel channels.
// It owns both the hidden ground truth (balances) and the attacker's
// current knowledge about it (directional and per-channel bounds, plus
// the derived admissible region).
//
// The attacker-facing invariants after every mutation:
//
//	h_l < h <= h_u  and  g_l < g <= g_u
//	-1 <= b_l[i] <= b_u[i] <= capacity[i] for every channel
//	the true balance vector lies inside R_h_u, R_g_u and R_b,
//	and outside R_h_l and R_g_l
//
// A violation is a bookkeeping defect, never a runtime condition, and
// panics. CheckInvariants exposes the same verification pass to tests.
type Hop struct {
	n           int
	capacities  []int64
	enabled     [2][]int
	jammed      [2]map[int]bool
	balances    []int64
	h           int64
	g           int64
	granularity int64

	// Estimate state. Lower bounds are strict, upper bounds inclusive.
	hL, hU int64
	gL, gU int64
	bL, bU []int64

	// Widest reachable bound per direction, fixed by ResetEstimates.
	maxCap [2]int64

	view derivedView
}

// derivedView is the value bundle recomputed wholesale after every
// mutation. Nothing patches it incrementally.
type derivedView struct {
	rHL, rHU    Rectangle
	rGL, rGU    Rectangle
	rB          Rectangle
	regionSize  *big.Int
	uncertainty float64
}

// NewHop validates the configuration, fixes the ground truth and resets
// all estimates to their widest values.
func NewHop(cfg HopConfig) (*Hop, error) {
	n := len(cfg.Capacities)
	if n == 0 {
		return nil, fmt.Errorf("hop must have at least one channel")
	}
	for i, c := range cfg.Capacities {
		if c <= 0 {
			return nil, fmt.Errorf("channel %d has non-positive capacity %d", i, c)
		}
	}
	enabled0, err := validateChannelSet(cfg.EnabledDir0, n, "dir0")
	if err != nil {
		return nil, err
	}
	enabled1, err := validateChannelSet(cfg.EnabledDir1, n, "dir1")
	if err != nil {
		return nil, err
	}
	granularity := cfg.Granularity
	if granularity == 0 {
		granularity = 1
	}
	if granularity < 0 {
		return nil, fmt.Errorf("granularity must be positive, got %d", granularity)
	}

	capacities := make([]int64, n)
	copy(capacities, cfg.Capacities)

	balances := make([]int64, n)
	if cfg.Balances != nil {
		if len(cfg.Balances) != n {
			return nil, fmt.Errorf("got %d balances for %d channels", len(cfg.Balances), n)
		}
		for i, b := range cfg.Balances {
			if b < 0 || b > capacities[i] {
				return nil, fmt.Errorf("balance %d of channel %d outside [0, %d]", b, i, capacities[i])
			}
		}
		copy(balances, cfg.Balances)
	} else {
		for i := range balances {
			if cfg.Rand != nil {
				balances[i] = cfg.Rand.Int63n(capacities[i])
			} else {
				balances[i] = rand.Int63n(capacities[i])
			}
		}
	}

	h := &Hop{
		n:           n,
		capacities:  capacities,
		balances:    balances,
		granularity: granularity,
		bL:          make([]int64, n),
		bU:          make([]int64, n),
	}
	h.enabled[Dir0] = enabled0
	h.enabled[Dir1] = enabled1
	h.jammed[Dir0] = make(map[int]bool)
	h.jammed[Dir1] = make(map[int]bool)

	// True forwardable amounts assume all channels unjammed.
	if len(enabled0) > 0 {
		for _, i := range enabled0 {
			h.h = max64(h.h, balances[i])
		}
	}
	if len(enabled1) > 0 {
		for _, i := range enabled1 {
			h.g = max64(h.g, capacities[i]-balances[i])
		}
	}

	h.ResetEstimates()
	return h, nil
}

func validateChannelSet(indices []int, n int, label string) ([]int, error) {
	out := make([]int, 0, len(indices))
	seen := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("enabled %s channel index %d out of range [0, %d)", label, i, n)
		}
		if seen[i] {
			return nil, fmt.Errorf("duplicate enabled %s channel index %d", label, i)
		}
		seen[i] = true
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

// N returns the number of parallel channels.
func (h *Hop) N() int {
	return h.n
}

// Capacities returns a copy of the per-channel capacities.
func (h *Hop) Capacities() []int64 {
	out := make([]int64, h.n)
	copy(out, h.capacities)
	return out
}

// TotalCapacity returns the sum of all channel capacities.
func (h *Hop) TotalCapacity() int64 {
	var total int64
	for _, c := range h.capacities {
		total += c
	}
	return total
}

// Balances returns a copy of the hidden ground-truth balances. It exists
// for simulation plumbing (merging channels, reporting); estimation
// logic must never consult it.
func (h *Hop) Balances() []int64 {
	out := make([]int64, h.n)
	copy(out, h.balances)
	return out
}

// EnabledChannels returns a copy of the channel indices enabled in dir.
func (h *Hop) EnabledChannels(dir Direction) []int {
	out := make([]int, len(h.enabled[dir]))
	copy(out, h.enabled[dir])
	return out
}

// Uncertainty returns the remaining uncertainty about the balances, in
// bits, relative to the configured granularity.
func (h *Hop) Uncertainty() float64 {
	return h.view.uncertainty
}

// RegionSize returns the exact number of balance vectors compatible with
// all probe results so far.
func (h *Hop) RegionSize() *big.Int {
	return new(big.Int).Set(h.view.regionSize)
}

// ForwardUpperBound returns the current inclusive upper bound on the
// forwardable amount in dir (h_u or g_u).
func (h *Hop) ForwardUpperBound(dir Direction) int64 {
	if dir == Dir0 {
		return h.hU
	}
	return h.gU
}

// BalanceBounds returns the current strict lower and inclusive upper
// bound on channel i's balance.
func (h *Hop) BalanceBounds(i int) (int64, int64) {
	return h.bL[i], h.bU[i]
}

// CanForward reports whether at least one channel is enabled and not
// jammed in the given direction.
func (h *Hop) CanForward(dir Direction) bool {
	for _, i := range h.enabled[dir] {
		if !h.jammed[dir][i] {
			return true
		}
	}
	return false
}

// Jam blocks a channel in one direction. Returns 1 if the channel state
// changed and 0 if it was already jammed, so callers can account jams as
// payments.
func (h *Hop) Jam(channel int, dir Direction) int {
	if h.jammed[dir][channel] {
		return 0
	}
	h.jammed[dir][channel] = true
	return 1
}

// JamAllExceptInDirection jams every enabled channel in dir other than
// the given one, isolating it for per-channel probing. Returns the
// number of state changes.
func (h *Hop) JamAllExceptInDirection(channel int, dir Direction) int {
	jams := 0
	for _, i := range h.enabled[dir] {
		if i != channel {
			jams += h.Jam(i, dir)
		}
	}
	return jams
}

// Unjam unblocks a channel in one direction. Idempotent.
func (h *Hop) Unjam(channel int, dir Direction) {
	delete(h.jammed[dir], channel)
}

// UnjamAll removes all jams in both directions.
func (h *Hop) UnjamAll() {
	h.jammed[Dir0] = make(map[int]bool)
	h.jammed[Dir1] = make(map[int]bool)
}

func (h *Hop) jammingActive() bool {
	return len(h.jammed[Dir0]) > 0 || len(h.jammed[Dir1]) > 0
}

// availableChannels returns the enabled channels in dir that are not
// currently jammed, in index order.
func (h *Hop) availableChannels(dir Direction) []int {
	out := make([]int, 0, len(h.enabled[dir]))
	for _, i := range h.enabled[dir] {
		if !h.jammed[dir][i] {
			out = append(out, i)
		}
	}
	return out
}

func (h *Hop) isEnabled(dir Direction, channel int) bool {
	for _, i := range h.enabled[dir] {
		if i == channel {
			return true
		}
	}
	return false
}

// ResetEstimates restores all bound state to its widest initial values
// without touching capacities, balances, enabled sets or jams. It must
// be called before every independent probing run on a reused hop.
func (h *Hop) ResetEstimates() {
	h.hL, h.gL = -1, -1
	h.maxCap[Dir0] = h.widestBound(Dir0)
	h.maxCap[Dir1] = h.widestBound(Dir1)
	h.hU = h.maxCap[Dir0]
	h.gU = h.maxCap[Dir1]
	for i := 0; i < h.n; i++ {
		h.bL[i] = -1
		h.bU[i] = h.capacities[i]
	}
	h.recomputeDerived()
}

// widestBound returns the largest capacity among channels enabled in
// dir, falling back to the overall maximum when the direction cannot
// forward at all (the bound pair must still admit the true value 0).
func (h *Hop) widestBound(dir Direction) int64 {
	var widest int64
	if h.CanForward(dir) {
		for _, i := range h.enabled[dir] {
			widest = max64(widest, h.capacities[i])
		}
		return widest
	}
	for _, c := range h.capacities {
		widest = max64(widest, c)
	}
	return widest
}

// effectiveVertex computes the free vertex of the probing rectangle for
// a directional bound. A channel's coordinate follows the bound only if
// the bound can constrain that channel: the channel is enabled in the
// probed direction (or the hop has a single channel, or the bound is
// negative) and the bound does not exceed the channel's capacity.
// Otherwise the coordinate is the full capacity, a no-op constraint
// along that axis. Jamming is intentionally ignored here: h and g are
// permanent hop properties assuming all channels unjammed.
func (h *Hop) effectiveVertex(dir Direction, bound int64) []int64 {
	vertex := make([]int64, h.n)
	for i := 0; i < h.n; i++ {
		eff := h.capacities[i]
		if (h.isEnabled(dir, i) || h.n == 1 || bound < 0) && bound <= h.capacities[i] {
			eff = bound
		}
		if dir == Dir0 {
			vertex[i] = eff
		} else {
			vertex[i] = h.capacities[i] - eff
		}
	}
	return vertex
}

// recomputeDerived rebuilds the derived view from the current bounds and
// verifies all invariants. Called at the end of every mutation.
func (h *Hop) recomputeDerived() {
	rB := NewRectangle(plusOne(h.bL), h.bU)
	view := derivedView{
		rHL: NewProbingRectangle(h, Dir0, h.hL),
		rHU: NewProbingRectangle(h, Dir0, h.hU),
		rGL: NewProbingRectangle(h, Dir1, h.gL),
		rGU: NewProbingRectangle(h, Dir1, h.gU),
		rB:  rB,
	}
	view.regionSize = regionSize(view.rHL, view.rHU, view.rGL, view.rGU, view.rB)
	view.uncertainty = uncertaintyBits(view.regionSize, h.granularity)
	h.view = view
	if err := h.CheckInvariants(); err != nil {
		panic(fmt.Sprintf("hop bookkeeping is inconsistent: %v\n%s", err, h))
	}
}

// CheckInvariants verifies every correctness invariant of the current
// state. A non-nil error always indicates a defect in the bound-update
// logic or an inconsistent construction; internal callers panic on it.
func (h *Hop) CheckInvariants() error {
	if h.hL < -1 || h.hL > h.hU || h.hU > h.maxCap[Dir0] {
		return fmt.Errorf("dir0 bounds out of order: h_l=%d h_u=%d max=%d", h.hL, h.hU, h.maxCap[Dir0])
	}
	if h.gL < -1 || h.gL > h.gU || h.gU > h.maxCap[Dir1] {
		return fmt.Errorf("dir1 bounds out of order: g_l=%d g_u=%d max=%d", h.gL, h.gU, h.maxCap[Dir1])
	}
	if !(h.hL < h.h && h.h <= h.hU) {
		return fmt.Errorf("true h=%d escaped bounds (%d, %d]", h.h, h.hL, h.hU)
	}
	if !(h.gL < h.g && h.g <= h.gU) {
		return fmt.Errorf("true g=%d escaped bounds (%d, %d]", h.g, h.gL, h.gU)
	}
	for i := 0; i < h.n; i++ {
		if h.bL[i] < -1 || h.bL[i] > h.bU[i] || h.bU[i] > h.capacities[i] {
			return fmt.Errorf("channel %d balance bounds out of order: b_l=%d b_u=%d capacity=%d",
				i, h.bL[i], h.bU[i], h.capacities[i])
		}
	}
	if !h.view.rHU.Contains(h.balances) {
		return fmt.Errorf("true balances outside R_h_u")
	}
	if !h.view.rGU.Contains(h.balances) {
		return fmt.Errorf("true balances outside R_g_u")
	}
	if !h.view.rB.Contains(h.balances) {
		return fmt.Errorf("true balances outside R_b")
	}
	if h.view.rHL.Contains(h.balances) {
		return fmt.Errorf("true balances inside R_h_l")
	}
	if h.view.rGL.Contains(h.balances) {
		return fmt.Errorf("true balances inside R_g_l")
	}
	return nil
}

// regionSize counts the balance vectors that belong to R_h_u and R_g_u,
// but to neither R_h_l nor R_g_l, all within R_b, via inclusion and
// exclusion over the four corner intersections. The same computation
// serves the actual region and hypothetical regions during the search
// for the optimal amount.
func regionSize(rHL, rHU, rGL, rGU, rB Rectangle) *big.Int {
	rUU := rHU.Intersect(rGU).Intersect(rB)
	rUL := rHU.Intersect(rGL).Intersect(rB)
	rLU := rHL.Intersect(rGU).Intersect(rB)
	rLL := rHL.Intersect(rGL).Intersect(rB)
	if !rLL.IsInside(rUU) {
		panic(fmt.Sprintf("contradictory bounds: %v escapes %v", rLL, rUU))
	}
	size := rUU.Volume()
	size.Sub(size, rUL.Volume())
	size.Sub(size, rLU.Volume())
	size.Add(size, rLL.Volume())
	if size.Sign() < 0 {
		panic(fmt.Sprintf("negative region size %s", size))
	}
	return size
}

// uncertaintyBits converts a region size to bits of uncertainty relative
// to the granularity, clamped at zero.
func uncertaintyBits(size *big.Int, granularity int64) float64 {
	if size.Sign() <= 0 {
		return 0
	}
	u := log2Big(size) - math.Log2(float64(granularity))
	if u < 0 {
		return 0
	}
	return u
}

// log2Big computes log2 of a positive big integer without overflowing
// float64 conversion.
func log2Big(v *big.Int) float64 {
	bits := v.BitLen()
	if bits <= 62 {
		return math.Log2(float64(v.Int64()))
	}
	shift := uint(bits - 53)
	top := new(big.Int).Rsh(v, shift)
	return math.Log2(float64(top.Int64())) + float64(shift)
}

func plusOne(v []int64) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = x + 1
	}
	return out
}

// expectedRegionAfterFailure computes the hypothetical region size if a
// probe of the given amount were sent in dir and failed (the area under
// the cut). Splitting the region for failure automatically splits it for
// success, so the pass case needs no separate treatment.
func (h *Hop) expectedRegionAfterFailure(dir Direction, amount int64) *big.Int {
	newBL := make([]int64, h.n)
	newBU := make([]int64, h.n)
	copy(newBU, h.capacities)
	available := h.availableChannels(dir)
	jamming := h.jammingActive()

	rHU := h.view.rHU
	rGU := h.view.rGU
	if dir == Dir0 {
		if !jamming {
			rHU = NewProbingRectangle(h, Dir0, amount-1)
		}
		for _, i := range available {
			newBU[i] = min64(newBU[i], amount-1)
		}
	} else {
		if !jamming {
			rGU = NewProbingRectangle(h, Dir1, amount-1)
		}
		if len(available) == 1 {
			i := available[0]
			newBL[i] = max64(newBL[i], h.capacities[i]-amount)
		}
	}
	rB := NewRectangle(newBL, newBU)
	return regionSize(h.view.rHL, rHU, h.view.rGL, rGU, rB)
}

// WorthProbingH reports whether dir0 still admits a productive probe.
func (h *Hop) WorthProbingH() bool {
	return h.CanForward(Dir0) && h.hU-h.hL > 1
}

// WorthProbingG reports whether dir1 still admits a productive probe.
func (h *Hop) WorthProbingG() bool {
	return h.CanForward(Dir1) && h.gU-h.gL > 1
}

// WorthProbingDirection dispatches to WorthProbingH or WorthProbingG.
func (h *Hop) WorthProbingDirection(dir Direction) bool {
	if dir == Dir0 {
		return h.WorthProbingH()
	}
	return h.WorthProbingG()
}

// WorthProbingChannel reports whether channel i's balance bounds can
// still be tightened and the hop can forward in at least one direction.
func (h *Hop) WorthProbingChannel(i int) bool {
	return h.bU[i]-h.bL[i] > 1 && (h.CanForward(Dir0) || h.CanForward(Dir1))
}

// WorthProbing reports whether any uncertainty remains.
func (h *Hop) WorthProbing() bool {
	return h.view.uncertainty > 0
}

// halfRegion returns max(1, regionSize/2), the bisection target.
func (h *Hop) halfRegion() *big.Int {
	half := new(big.Int).Rsh(h.view.regionSize, 1)
	if half.Sign() == 0 {
		half.SetInt64(1)
	}
	return half
}

// NextAmount returns the probe amount for dir. In naive mode the current
// bound interval is bisected arithmetically. In optimal mode a binary
// search finds the amount whose hypothetical failed-probe region is as
// close as possible to half of the current region, maximizing expected
// information regardless of the outcome. In jamming mode the interval
// comes from the single unjammed channel's balance bounds and the search
// is skipped (one channel has a single cut point per probe).
func (h *Hop) NextAmount(dir Direction, naive, jamming bool) int64 {
	var aLow, aHigh int64
	if !jamming {
		if dir == Dir0 {
			aLow, aHigh = h.hL+1, h.hU
		} else {
			aLow, aHigh = h.gL+1, h.gU
		}
	} else {
		available := h.availableChannels(dir)
		if len(available) != 1 {
			panic(fmt.Sprintf("jamming-enhanced probing requires exactly one unjammed channel in %v, have %d", dir, len(available)))
		}
		i := available[0]
		if dir == Dir0 {
			aLow, aHigh = h.bL[i]+1, h.bU[i]
		} else {
			aLow, aHigh = h.capacities[i]-h.bU[i], h.capacities[i]-h.bL[i]-1
		}
	}
	amount := (aLow + aHigh + 1) / 2
	if !naive && !jamming {
		target := h.halfRegion()
		for {
			underCut := h.expectedRegionAfterFailure(dir, amount)
			if underCut.Cmp(target) < 0 {
				aLow = amount
			} else {
				aHigh = amount
			}
			next := (aLow + aHigh + 1) / 2
			if next == amount {
				break
			}
			amount = next
		}
	}
	if amount <= 0 {
		panic(fmt.Sprintf("computed non-positive probe amount %d for %v", amount, dir))
	}
	return amount
}

// NextDirection chooses the direction of the next probe. A direction is
// considered only if it is worth probing (without jamming) or can
// forward at all (with jamming). With both directions in play, the
// amounts are compared: if the two hypothetical post-probe regions are
// within thresholdAreaDifference of each other relative to the
// half-region target, the smaller amount wins; otherwise the direction
// whose region lands closer to the target wins. The second return value
// is false when neither direction qualifies.
func (h *Hop) NextDirection(naive, jamming bool) (Direction, bool) {
	considerDir0 := (jamming && h.CanForward(Dir0)) || (!jamming && h.WorthProbingH())
	considerDir1 := (jamming && h.CanForward(Dir1)) || (!jamming && h.WorthProbingG())
	switch {
	case !considerDir0 && !considerDir1:
		return Dir0, false
	case !considerDir0:
		return Dir1, true
	case !considerDir1:
		return Dir0, true
	}
	amountDir0 := h.NextAmount(Dir0, naive, jamming)
	amountDir1 := h.NextAmount(Dir1, naive, jamming)
	if naive {
		if amountDir0 < amountDir1 {
			return Dir0, true
		}
		return Dir1, true
	}
	target := h.halfRegion()
	underCutDir0 := h.expectedRegionAfterFailure(Dir0, amountDir0)
	underCutDir1 := h.expectedRegionAfterFailure(Dir1, amountDir1)
	diff := new(big.Int).Sub(underCutDir0, underCutDir1)
	diff.Abs(diff)
	// diff/target < threshold, in integer arithmetic.
	scaled := new(big.Int).Mul(diff, big.NewInt(int64(1/thresholdAreaDifference)))
	if scaled.Cmp(target) < 0 {
		if amountDir0 < amountDir1 {
			return Dir0, true
		}
		return Dir1, true
	}
	missDir0 := new(big.Int).Sub(underCutDir0, target)
	missDir0.Abs(missDir0)
	missDir1 := new(big.Int).Sub(underCutDir1, target)
	missDir1.Abs(missDir1)
	if missDir0.Cmp(missDir1) < 0 {
		return Dir0, true
	}
	return Dir1, true
}

// maxForwardable returns the true amount forwardable in dir through the
// given channels: the largest sender-side balance.
func (h *Hop) maxForwardable(dir Direction, channels []int) int64 {
	var best int64
	for _, i := range channels {
		if dir == Dir0 {
			best = max64(best, h.balances[i])
		} else {
			best = max64(best, h.capacities[i]-h.balances[i])
		}
	}
	return best
}

// Probe sends a test payment of the given amount in dir and updates the
// bounds from the pass/fail outcome. The outcome is deterministic ground
// truth: the probe passes iff some unjammed enabled channel can forward
// the amount. Returns whether the probe passed.
//
// Outside jamming mode, hop-level bounds move only when the amount falls
// inside the currently tracked window (intermediary hops on a route see
// amounts outside their window; those probes carry no information).
// In jamming mode only the single unjammed channel's balance bounds
// move.
func (h *Hop) Probe(dir Direction, amount int64) bool {
	if amount <= 0 {
		panic(fmt.Sprintf("probe amount must be positive, got %d", amount))
	}
	available := h.availableChannels(dir)
	if len(available) == 0 {
		panic(fmt.Sprintf("cannot probe %v: no unjammed enabled channels", dir))
	}
	jamming := h.jammingActive()
	if jamming {
		if len(h.availableChannels(Dir0)) > 1 || len(h.availableChannels(Dir1)) > 1 {
			panic("jamming mode supports at most one unjammed channel per direction")
		}
	}

	passed := amount <= h.maxForwardable(dir, available)
	if dir == Dir0 {
		withinWindow := h.hL < amount && amount <= h.hU
		if passed {
			if withinWindow && !jamming {
				h.hL = amount - 1
				if len(h.enabled[Dir0]) == 1 {
					only := h.enabled[Dir0][0]
					h.bL[only] = max64(h.bL[only], h.hL)
				}
				if len(h.enabled[Dir1]) > 0 {
					var reachable int64 = math.MinInt64
					for _, i := range h.enabled[Dir1] {
						reachable = max64(reachable, h.capacities[i]-h.bL[i])
					}
					h.gU = min64(h.gU, reachable)
				}
			}
			if jamming {
				i := available[0]
				h.bL[i] = max64(h.bL[i], amount-1)
			}
		} else {
			if withinWindow && !jamming {
				h.hU = amount - 1
				for _, i := range h.enabled[Dir0] {
					h.bU[i] = min64(h.bU[i], h.hU)
				}
				if len(h.enabled[Dir1]) > 0 {
					var floor int64 = math.MaxInt64
					for _, i := range h.enabled[Dir1] {
						floor = min64(floor, h.capacities[i]-h.bU[i]-1)
					}
					h.gL = max64(h.gL, floor)
				}
			}
			if jamming {
				i := available[0]
				h.bU[i] = min64(h.bU[i], amount-1)
			}
		}
	} else {
		withinWindow := h.gL < amount && amount <= h.gU
		if passed {
			if withinWindow && !jamming {
				h.gL = amount - 1
				if len(h.enabled[Dir1]) == 1 {
					only := h.enabled[Dir1][0]
					h.bU[only] = min64(h.bU[only], h.capacities[only]-h.gL-1)
				}
				if len(h.enabled[Dir0]) > 0 {
					var reachable int64 = math.MinInt64
					for _, i := range h.enabled[Dir0] {
						reachable = max64(reachable, h.bU[i])
					}
					h.hU = min64(h.hU, reachable)
				}
			}
			if jamming {
				i := available[0]
				h.bU[i] = min64(h.bU[i], h.capacities[i]-amount)
			}
		} else {
			if withinWindow && !jamming {
				h.gU = amount - 1
				for _, i := range h.enabled[Dir1] {
					h.bL[i] = max64(h.bL[i], h.capacities[i]-h.gU-1)
				}
				if len(h.enabled[Dir0]) > 0 {
					var floor int64 = math.MaxInt64
					for _, i := range h.enabled[Dir0] {
						floor = min64(floor, h.bL[i])
					}
					h.hL = max64(h.hL, floor)
				}
			}
			if jamming {
				i := available[0]
				h.bL[i] = max64(h.bL[i], h.capacities[i]-amount)
			}
		}
	}

	h.recomputeDerived()
	if h.view.uncertainty == 0 {
		h.collapseToCorner()
		h.recomputeDerived()
	}
	return passed
}

// collapseToCorner pins all bounds to the single remaining corner point
// once uncertainty hits zero, closing residual slack the volume test
// leaves open. If more than one corner survives, the volume test and the
// corner enumeration disagree on an edge case; probing just continues.
func (h *Hop) collapseToCorner() {
	points := h.cornerCandidates(2)
	if len(points) != 1 {
		if len(points) > 1 {
			log.Printf("probing: region resolved but %d corner points remain viable, continuing", len(points))
		}
		return
	}
	p := points[0]
	for i := 0; i < h.n; i++ {
		if h.WorthProbingChannel(i) {
			h.bL[i] = p[i] - 1
			h.bU[i] = p[i]
		}
	}
	if len(h.enabled[Dir0]) > 0 {
		lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
		for _, i := range h.enabled[Dir0] {
			lo = min64(lo, p[i])
			hi = max64(hi, p[i])
		}
		h.hL = max64(h.hL, lo-1)
		h.hU = min64(h.hU, hi)
	}
	if len(h.enabled[Dir1]) > 0 {
		lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
		for _, i := range h.enabled[Dir1] {
			lo = min64(lo, h.capacities[i]-p[i])
			hi = max64(hi, h.capacities[i]-p[i])
		}
		h.gL = max64(h.gL, lo-1)
		h.gU = min64(h.gU, hi)
	}
}

// cornerCandidates enumerates grid points of the bounding intersection
// that are excluded by neither lower-bound rectangle, stopping after
// limit hits. Enumeration is skipped when the grid exceeds the scan
// cap (possible with coarse granularity).
func (h *Hop) cornerCandidates(limit int) [][]int64 {
	rUU := h.view.rHU.Intersect(h.view.rGU).Intersect(h.view.rB)
	rUL := h.view.rHU.Intersect(h.view.rGL).Intersect(h.view.rB)
	rLU := h.view.rHL.Intersect(h.view.rGU).Intersect(h.view.rB)
	if rUU.IsEmpty() {
		return nil
	}
	if rUU.Volume().Cmp(big.NewInt(maxCornerScanPoints)) > 0 {
		log.Printf("probing: candidate grid too large to scan, skipping corner pinning")
		return nil
	}
	point := make([]int64, len(rUU.lower))
	copy(point, rUU.lower)
	var points [][]int64
	for {
		if !rUL.Contains(point) && !rLU.Contains(point) {
			hit := make([]int64, len(point))
			copy(hit, point)
			points = append(points, hit)
			if len(points) >= limit {
				return points
			}
		}
		i := 0
		for ; i < len(point); i++ {
			if point[i] < rUU.upper[i] {
				point[i]++
				break
			}
			point[i] = rUU.lower[i]
		}
		if i == len(point) {
			return points
		}
	}
}

func (h *Hop) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "hop with %d channels, capacities %v\n", h.n, h.capacities)
	fmt.Fprintf(&b, "  enabled dir0 %v, dir1 %v\n", h.enabled[Dir0], h.enabled[Dir1])
	fmt.Fprintf(&b, "  jammed dir0 %d, dir1 %d\n", len(h.jammed[Dir0]), len(h.jammed[Dir1]))
	fmt.Fprintf(&b, "  h in (%d, %d], g in (%d, %d]\n", h.hL, h.hU, h.gL, h.gU)
	for i := 0; i < h.n; i++ {
		fmt.Fprintf(&b, "  balance %d in (%d, %d]\n", i, h.bL[i], h.bU[i])
	}
	fmt.Fprintf(&b, "  region size %s, uncertainty %.2f bits", h.view.regionSize, h.view.uncertainty)
	return b.String()
}
