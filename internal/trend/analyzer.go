// Package trend computes rolling performance statistics from the metrics
// store. Aggregates are derived on demand and never written back; the store
// records stay the single source of truth.
package trend

import (
	"fmt"
	"time"

	"github.com/pineapple-labs/mstyadmin/internal/metrics"
)

// DefaultMinSamples is the smallest sample count for which statistics are
// reported. Below it, Report.Insufficient is set instead of returning an
// error.
const DefaultMinSamples = 5

// Summary holds distribution statistics for one measured quantity.
type Summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	StdDev float64 `json:"std_dev"`
}

// Report is the derived performance aggregate for a model over a window.
type Report struct {
	Model       string         `json:"model"`
	Window      metrics.Window `json:"window"`
	SampleCount int            `json:"sample_count"`

	// Insufficient means fewer than the configured minimum samples fell in
	// the window. It is a valid outcome, not an error; the statistic fields
	// are zero and must not be interpreted.
	Insufficient bool `json:"insufficient"`

	Throughput Summary `json:"tokens_per_sec"`
	Latency    Summary `json:"latency_seconds"`
	ErrorRate  float64 `json:"error_rate"`

	// Quality trend, from calibration results in the same window.
	QualitySamples int     `json:"quality_samples"`
	MeanScore      float64 `json:"mean_score"`
	// ScoreSlope is the least-squares slope of score over time, in score
	// units per hour. Zero when quality samples are insufficient.
	ScoreSlope float64 `json:"score_slope"`
}

// Analyzer reads historical records and computes rolling statistics.
type Analyzer struct {
	store      *metrics.Store
	minSamples int
}

// NewAnalyzer creates an analyzer over the given store. minSamples <= 0
// selects DefaultMinSamples.
func NewAnalyzer(store *metrics.Store, minSamples int) *Analyzer {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &Analyzer{store: store, minSamples: minSamples}
}

// Trend computes throughput, latency, error rate, and quality trend for a
// model over the half-open window [w.Start, w.End). An empty model matches
// all models.
func (a *Analyzer) Trend(model string, w metrics.Window) (*Report, error) {
	invs, err := a.store.QueryInvocations(metrics.InvocationFilter{Model: model}, w)
	if err != nil {
		return nil, fmt.Errorf("trend query: %w", err)
	}

	rep := &Report{Model: model, Window: w, SampleCount: len(invs)}
	if len(invs) < a.minSamples {
		rep.Insufficient = true
		return rep, nil
	}

	var throughput, latency []float64
	failures := 0
	for _, inv := range invs {
		if !inv.Success {
			failures++
			continue
		}
		throughput = append(throughput, inv.TokensPerSec)
		latency = append(latency, inv.LatencySeconds)
	}
	rep.Throughput = summarize(throughput)
	rep.Latency = summarize(latency)
	rep.ErrorRate = float64(failures) / float64(len(invs))

	cals, err := a.store.QueryCalibrations(metrics.CalibrationFilter{Model: model}, w)
	if err != nil {
		return nil, fmt.Errorf("trend quality query: %w", err)
	}
	rep.QualitySamples = len(cals)
	if len(cals) >= a.minSamples {
		times := make([]time.Time, 0, len(cals))
		scores := make([]float64, 0, len(cals))
		for _, c := range cals {
			times = append(times, c.CreatedAt)
			scores = append(scores, c.Score)
		}
		rep.MeanScore = Mean(scores)
		rep.ScoreSlope = Slope(times, scores)
	}
	return rep, nil
}

func summarize(values []float64) Summary {
	return Summary{
		Mean:   Mean(values),
		Median: Median(values),
		P95:    Percentile(values, 95),
		StdDev: StdDev(values),
	}
}
