package trend

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pineapple-labs/mstyadmin/internal/metrics"
	"github.com/pineapple-labs/mstyadmin/internal/sidecar"
)

func openTestStore(t *testing.T) *metrics.Store {
	t.Helper()
	s, err := metrics.Open(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func appendInvocation(t *testing.T, s *metrics.Store, model string, at time.Time, tps float64, success bool) {
	t.Helper()
	rec := &metrics.InvocationRecord{
		Model:          model,
		PromptHash:     metrics.HashPrompt(fmt.Sprintf("prompt-%s", at)),
		StartedAt:      at,
		CompletedAt:    at.Add(2 * time.Second),
		TokensPerSec:   tps,
		LatencySeconds: 2,
		Success:        success,
		Source:         "calibration",
	}
	if !success {
		rec.ErrorKind = sidecar.ErrKindConnection
	}
	require.NoError(t, s.AppendInvocation(rec))
}

func appendScore(t *testing.T, s *metrics.Store, model string, at time.Time, score float64) {
	t.Helper()
	require.NoError(t, s.AppendCalibration(&metrics.CalibrationResult{
		RunID:     "run-1",
		TestID:    "test-1",
		Category:  "coding",
		Model:     model,
		Score:     score,
		Passed:    score >= 0.6,
		CreatedAt: at,
	}))
}

func TestTrend_InsufficientData(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		appendInvocation(t, s, "a", base.Add(time.Duration(i)*time.Minute), 20, true)
	}

	a := NewAnalyzer(s, 5)
	rep, err := a.Trend("a", metrics.Window{})
	require.NoError(t, err, "thin data is a valid outcome, not an error")
	assert.True(t, rep.Insufficient)
	assert.Equal(t, 3, rep.SampleCount)
	assert.Zero(t, rep.Throughput.Mean)
}

func TestTrend_Statistics(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// Eight successes at varying throughput plus two failures.
	speeds := []float64{10, 12, 14, 16, 18, 20, 22, 24}
	for i, tps := range speeds {
		appendInvocation(t, s, "a", base.Add(time.Duration(i)*time.Minute), tps, true)
	}
	appendInvocation(t, s, "a", base.Add(20*time.Minute), 0, false)
	appendInvocation(t, s, "a", base.Add(21*time.Minute), 0, false)

	a := NewAnalyzer(s, 5)
	rep, err := a.Trend("a", metrics.Window{})
	require.NoError(t, err)
	assert.False(t, rep.Insufficient)
	assert.Equal(t, 10, rep.SampleCount)
	assert.InDelta(t, 17.0, rep.Throughput.Mean, 1e-9)
	assert.InDelta(t, 17.0, rep.Throughput.Median, 1e-9)
	assert.InDelta(t, 0.2, rep.ErrorRate, 1e-9, "failures count toward error rate only")
	assert.InDelta(t, 2.0, rep.Latency.Mean, 1e-9)
}

func TestTrend_WindowPartition(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		appendInvocation(t, s, "a", base.Add(time.Duration(i)*time.Hour), 20, true)
	}

	a := NewAnalyzer(s, 5)
	first, err := a.Trend("a", metrics.Window{Start: base, End: base.Add(6 * time.Hour)})
	require.NoError(t, err)
	second, err := a.Trend("a", metrics.Window{Start: base.Add(6 * time.Hour), End: base.Add(12 * time.Hour)})
	require.NoError(t, err)

	// Adjacent half-open windows split the records with no overlap or gap.
	assert.Equal(t, 6, first.SampleCount)
	assert.Equal(t, 6, second.SampleCount)
}

func TestTrend_QualitySlope(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		appendInvocation(t, s, "a", base.Add(time.Duration(i)*time.Hour), 20, true)
		// Scores improve by 0.05 per hour.
		appendScore(t, s, "a", base.Add(time.Duration(i)*time.Hour), 0.5+0.05*float64(i))
	}

	a := NewAnalyzer(s, 5)
	rep, err := a.Trend("a", metrics.Window{})
	require.NoError(t, err)
	assert.Equal(t, 6, rep.QualitySamples)
	assert.InDelta(t, 0.625, rep.MeanScore, 1e-9)
	assert.InDelta(t, 0.05, rep.ScoreSlope, 1e-9)
}

func TestTrend_QualitySamplesBelowMinimum(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		appendInvocation(t, s, "a", base.Add(time.Duration(i)*time.Hour), 20, true)
	}
	appendScore(t, s, "a", base, 0.9)

	a := NewAnalyzer(s, 5)
	rep, err := a.Trend("a", metrics.Window{})
	require.NoError(t, err)
	assert.False(t, rep.Insufficient)
	assert.Equal(t, 1, rep.QualitySamples)
	assert.Zero(t, rep.ScoreSlope, "no slope from too few quality samples")
	assert.Zero(t, rep.MeanScore)
}
