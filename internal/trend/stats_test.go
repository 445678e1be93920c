package trend

import (
	"math"
	"testing"
	"time"
)

const epsilon = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		input  []float64
		expect float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5.0}, 5.0},
		{"multiple", []float64{1, 2, 3, 4, 5}, 3.0},
		{"negative", []float64{-2, 0, 2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Mean(tt.input)
			if !approxEqual(got, tt.expect) {
				t.Errorf("Mean(%v) = %f, want %f", tt.input, got, tt.expect)
			}
		})
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		input  []float64
		expect float64
	}{
		{"empty", nil, 0},
		{"odd", []float64{3, 1, 2}, 2},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"single", []float64{9}, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Median(tt.input)
			if !approxEqual(got, tt.expect) {
				t.Errorf("Median(%v) = %f, want %f", tt.input, got, tt.expect)
			}
		})
	}
}

func TestMedian_DoesNotMutateInput(t *testing.T) {
	input := []float64{3, 1, 2}
	Median(input)
	if input[0] != 3 || input[1] != 1 || input[2] != 2 {
		t.Errorf("Median mutated its input: %v", input)
	}
}

func TestPercentile(t *testing.T) {
	ten := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		name   string
		input  []float64
		p      float64
		expect float64
	}{
		{"empty", nil, 95, 0},
		{"p50_of_ten", ten, 50, 5},
		{"p95_of_ten", ten, 95, 10},
		{"p100", ten, 100, 10},
		{"single", []float64{42}, 95, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.input, tt.p)
			if !approxEqual(got, tt.expect) {
				t.Errorf("Percentile(%v, %v) = %f, want %f", tt.input, tt.p, got, tt.expect)
			}
		})
	}
}

func TestStdDev(t *testing.T) {
	tests := []struct {
		name   string
		input  []float64
		expect float64
	}{
		{"empty", nil, 0},
		{"uniform", []float64{3, 3, 3}, 0},
		{"population", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StdDev(tt.input)
			if !approxEqual(got, tt.expect) {
				t.Errorf("StdDev(%v) = %f, want %f", tt.input, got, tt.expect)
			}
		})
	}
}

func TestSlope(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	hourly := func(n int) []time.Time {
		out := make([]time.Time, n)
		for i := range out {
			out[i] = base.Add(time.Duration(i) * time.Hour)
		}
		return out
	}

	t.Run("too_few_points", func(t *testing.T) {
		if got := Slope(hourly(1), []float64{1}); got != 0 {
			t.Errorf("Slope with one point = %f, want 0", got)
		}
	})

	t.Run("mismatched_lengths", func(t *testing.T) {
		if got := Slope(hourly(3), []float64{1, 2}); got != 0 {
			t.Errorf("Slope with mismatched inputs = %f, want 0", got)
		}
	})

	t.Run("coincident_timestamps", func(t *testing.T) {
		times := []time.Time{base, base, base}
		if got := Slope(times, []float64{1, 2, 3}); got != 0 {
			t.Errorf("Slope with equal timestamps = %f, want 0", got)
		}
	})

	t.Run("rising_line", func(t *testing.T) {
		// 0.1 score units per hour, exactly.
		got := Slope(hourly(5), []float64{0.5, 0.6, 0.7, 0.8, 0.9})
		if !approxEqual(got, 0.1) {
			t.Errorf("Slope = %f, want 0.1", got)
		}
	})

	t.Run("falling_line", func(t *testing.T) {
		got := Slope(hourly(3), []float64{0.9, 0.7, 0.5})
		if !approxEqual(got, -0.2) {
			t.Errorf("Slope = %f, want -0.2", got)
		}
	})

	t.Run("flat_line", func(t *testing.T) {
		if got := Slope(hourly(4), []float64{0.5, 0.5, 0.5, 0.5}); !approxEqual(got, 0) {
			t.Errorf("Slope of flat data = %f, want 0", got)
		}
	})
}
