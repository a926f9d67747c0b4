package analysis

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSummarize_KnownSample(t *testing.T) {
	values := []float64{4, 1, 3, 2, 5}
	s := Summarize(values)

	if s.Count != 5 {
		t.Errorf("expected count 5, got %d", s.Count)
	}
	if !almostEqual(s.Mean, 3) {
		t.Errorf("expected mean 3, got %f", s.Mean)
	}
	if !almostEqual(s.Median, 3) {
		t.Errorf("expected median 3, got %f", s.Median)
	}
	if s.Min != 1 || s.Max != 5 {
		t.Errorf("expected min 1 and max 5, got %f and %f", s.Min, s.Max)
	}
	if !almostEqual(s.P25, 2) || !almostEqual(s.P75, 4) {
		t.Errorf("expected quartiles 2 and 4, got %f and %f", s.P25, s.P75)
	}
	// Population standard deviation of 1..5 is sqrt(2).
	if !almostEqual(s.StdDev, math.Sqrt2) {
		t.Errorf("expected stddev sqrt(2), got %f", s.StdDev)
	}
}

func TestSummarize_DoesNotModifyInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Summarize(values)
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Errorf("input was reordered: %v", values)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.Count != 0 || s.Mean != 0 || s.StdDev != 0 {
		t.Errorf("empty sample must yield a zero summary, got %+v", s)
	}
}

func TestSummarize_SingleValue(t *testing.T) {
	s := Summarize([]float64{7})
	if s.Mean != 7 || s.Median != 7 || s.Min != 7 || s.Max != 7 || s.P95 != 7 {
		t.Errorf("single-value summary must repeat the value, got %+v", s)
	}
	if s.StdDev != 0 {
		t.Errorf("expected zero stddev, got %f", s.StdDev)
	}
}

func TestSummarize_PercentileInterpolation(t *testing.T) {
	// With 2 values the median falls exactly between them.
	s := Summarize([]float64{10, 20})
	if !almostEqual(s.Median, 15) {
		t.Errorf("expected interpolated median 15, got %f", s.Median)
	}
	if !almostEqual(s.P25, 12.5) {
		t.Errorf("expected P25 12.5, got %f", s.P25)
	}
	if !almostEqual(s.P95, 19.5) {
		t.Errorf("expected P95 19.5, got %f", s.P95)
	}
}

func TestRelativeAdvantage(t *testing.T) {
	if got := RelativeAdvantage(2, 3); !almostEqual(got, 0.5) {
		t.Errorf("expected 0.5, got %f", got)
	}
	if got := RelativeAdvantage(4, 3); !almostEqual(got, -0.25) {
		t.Errorf("expected -0.25, got %f", got)
	}
	if got := RelativeAdvantage(0, 3); got != 0 {
		t.Errorf("expected 0 for zero baseline, got %f", got)
	}
}
