// Package analysis provides statistical summaries of probing outcomes.
package analysis

import (
	"math"
	"sort"
)

// Summary contains a statistical summary of a sample.
type Summary struct {
	Count  int
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
	P25    float64
	P75    float64
	P95    float64
}

// Summarize computes a summary of the sample. The input is not
// modified.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	summary := Summary{
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: percentile(sorted, 50),
		P25:    percentile(sorted, 25),
		P75:    percentile(sorted, 75),
		P95:    percentile(sorted, 95),
	}

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	summary.Mean = sum / float64(len(sorted))

	var variance float64
	for _, v := range sorted {
		diff := v - summary.Mean
		variance += diff * diff
	}
	summary.StdDev = math.Sqrt(variance / float64(len(sorted)))

	return summary
}

// RelativeAdvantage returns (optimal - naive) / naive, the speedup of
// the optimal strategy over the naive one. Returns 0 when naive is 0.
func RelativeAdvantage(naive, optimal float64) float64 {
	if naive == 0 {
		return 0
	}
	return (optimal - naive) / naive
}

// percentile interpolates linearly between the two nearest ranks of an
// already sorted sample.
func percentile(sortedData []float64, p float64) float64 {
	if len(sortedData) == 0 {
		return 0
	}
	index := (p / 100.0) * float64(len(sortedData)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sortedData[lower]
	}

	weight := index - float64(lower)
	return sortedData[lower]*(1-weight) + sortedData[upper]*weight
}
