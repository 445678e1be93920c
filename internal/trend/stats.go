package trend

import (
	"math"
	"sort"
	"time"
)

// Mean computes the arithmetic mean of a float64 slice.
// Returns 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median computes the median of a float64 slice without mutating it.
// Returns 0 for empty input.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Percentile computes the p-th percentile (0 < p <= 100) using the
// nearest-rank method. Returns 0 for empty input.
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	rank := int(math.Ceil(p/100*float64(n))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= n {
		rank = n - 1
	}
	return sorted[rank]
}

// StdDev computes the population standard deviation.
func StdDev(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	m := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n))
}

// Slope fits a least-squares line of value over time and returns its slope
// in value units per hour. Returns 0 when fewer than 2 points exist or all
// timestamps coincide.
func Slope(times []time.Time, values []float64) float64 {
	n := len(values)
	if n < 2 || len(times) != n {
		return 0
	}
	t0 := times[0]
	xs := make([]float64, n)
	for i, t := range times {
		xs[i] = t.Sub(t0).Hours()
	}
	mx := Mean(xs)
	my := Mean(values)
	var num, den float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		num += dx * (values[i] - my)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}
