package handoff

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pineapple-labs/mstyadmin/internal/metrics"
)

func openTestStore(t *testing.T) *metrics.Store {
	t.Helper()
	s, err := metrics.Open(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var calSeq int

func appendResult(t *testing.T, s *metrics.Store, category, model string, passed bool, at time.Time) {
	t.Helper()
	calSeq++
	require.NoError(t, s.AppendCalibration(&metrics.CalibrationResult{
		RunID:     "run-1",
		TestID:    fmt.Sprintf("test-%d", calSeq),
		Category:  category,
		Model:     model,
		Score:     0.7,
		Passed:    passed,
		CreatedAt: at,
	}))
}

func TestEvaluate_ActivatesAtThreshold(t *testing.T) {
	s := openTestStore(t)
	d := NewDetector(s, Options{FailureRate: 0.4, Window: 20, MinSamples: 5}, nil)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// Six results, three failed: 0.5 failure rate over enough samples.
	for i := 0; i < 6; i++ {
		appendResult(t, s, "coding", "a", i%2 == 0, base.Add(time.Duration(i)*time.Minute))
	}

	out, err := d.Evaluate("coding", "a")
	require.NoError(t, err)
	assert.Equal(t, ActionActive, out.Action)
	assert.InDelta(t, 0.5, out.FailureRate, 1e-9)
	assert.Equal(t, 6, out.SampleCount)
	require.NotNil(t, out.Trigger)
	assert.Equal(t, metrics.TriggerActive, out.Trigger.Status)
}

func TestEvaluate_BelowMinSamplesDoesNothing(t *testing.T) {
	s := openTestStore(t)
	d := NewDetector(s, Options{MinSamples: 5}, nil)
	base := time.Now().UTC()

	// Every result failed, but only four of them.
	for i := 0; i < 4; i++ {
		appendResult(t, s, "coding", "a", false, base.Add(time.Duration(i)*time.Second))
	}

	out, err := d.Evaluate("coding", "a")
	require.NoError(t, err)
	assert.Equal(t, ActionNone, out.Action)
	assert.Nil(t, out.Trigger)
}

func TestEvaluate_Idempotent(t *testing.T) {
	s := openTestStore(t)
	d := NewDetector(s, Options{}, nil)
	base := time.Now().UTC()
	for i := 0; i < 6; i++ {
		appendResult(t, s, "coding", "a", false, base.Add(time.Duration(i)*time.Second))
	}

	first, err := d.Evaluate("coding", "a")
	require.NoError(t, err)
	second, err := d.Evaluate("coding", "a")
	require.NoError(t, err)

	// Re-evaluating unchanged data refreshes the same trigger row.
	assert.Equal(t, ActionActive, first.Action)
	assert.Equal(t, ActionActive, second.Action)
	assert.Equal(t, first.Trigger.ID, second.Trigger.ID)
	assert.Equal(t, first.FailureRate, second.FailureRate)
	assert.True(t, second.Trigger.FirstSeen.Equal(first.Trigger.FirstSeen))
}

func TestEvaluate_ResolvesAfterRecovery(t *testing.T) {
	s := openTestStore(t)
	d := NewDetector(s, Options{FailureRate: 0.4, Window: 10, MinSamples: 5}, nil)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		appendResult(t, s, "coding", "a", false, base.Add(time.Duration(i)*time.Minute))
	}
	out, err := d.Evaluate("coding", "a")
	require.NoError(t, err)
	require.Equal(t, ActionActive, out.Action)

	// Ten clean results push the failures out of the 10-sample window.
	for i := 0; i < 10; i++ {
		appendResult(t, s, "coding", "a", true, base.Add(time.Duration(10+i)*time.Minute))
	}
	out, err = d.Evaluate("coding", "a")
	require.NoError(t, err)
	assert.Equal(t, ActionResolved, out.Action)
	require.NotNil(t, out.Trigger)
	assert.Equal(t, metrics.TriggerResolved, out.Trigger.Status)
	assert.Zero(t, out.Trigger.SampleCount)

	// Once resolved, further healthy evaluations change nothing.
	out, err = d.Evaluate("coding", "a")
	require.NoError(t, err)
	assert.Equal(t, ActionNone, out.Action)
}

func TestEvaluate_RecoveryNeedsHalfTheThreshold(t *testing.T) {
	s := openTestStore(t)
	d := NewDetector(s, Options{FailureRate: 0.4, Window: 10, MinSamples: 5}, nil)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		appendResult(t, s, "coding", "a", i%2 == 0, base.Add(time.Duration(i)*time.Minute))
	}
	out, err := d.Evaluate("coding", "a")
	require.NoError(t, err)
	require.Equal(t, ActionActive, out.Action)

	// Three failures in the latest ten is a 0.3 rate: below the activation
	// threshold but not below half of it, so the trigger stays active.
	for i := 0; i < 4; i++ {
		appendResult(t, s, "coding", "a", true, base.Add(time.Duration(20+i)*time.Minute))
	}
	out, err = d.Evaluate("coding", "a")
	require.NoError(t, err)
	assert.Equal(t, ActionNone, out.Action)
	require.NotNil(t, out.Trigger)
	assert.Equal(t, metrics.TriggerActive, out.Trigger.Status)
}

func TestScan_SweepsAllPairs(t *testing.T) {
	s := openTestStore(t)
	d := NewDetector(s, Options{FailureRate: 0.4, Window: 10, MinSamples: 5}, nil)
	base := time.Now().UTC()

	for i := 0; i < 6; i++ {
		appendResult(t, s, "coding", "weak", false, base.Add(time.Duration(i)*time.Second))
		appendResult(t, s, "writing", "strong", true, base.Add(time.Duration(i)*time.Second))
	}

	outcomes, err := d.Scan()
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "coding", outcomes[0].Category)
	assert.Equal(t, ActionActive, outcomes[0].Action)
	assert.Equal(t, "writing", outcomes[1].Category)
	assert.Equal(t, ActionNone, outcomes[1].Action)
}

func TestDetector_Defaults(t *testing.T) {
	d := NewDetector(nil, Options{}, nil)
	assert.Equal(t, DefaultFailureRate, d.failureRate)
	assert.Equal(t, DefaultWindow, d.window)
	assert.Equal(t, DefaultMinSamples, d.minSamples)
}
