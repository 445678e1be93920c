package compare

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pineapple-labs/mstyadmin/internal/metrics"
	"github.com/pineapple-labs/mstyadmin/internal/scoring"
	"github.com/pineapple-labs/mstyadmin/internal/sidecar"
)

const strongAnswer = "Cloud migration shifts capital costs to operating costs and buys elasticity. " +
	"However, it introduces new risks: vendor lock-in, egress fees, and a larger attack surface. " +
	"The benefit is faster provisioning and managed reliability; the trade-off is less control over the stack."

// fakeInvoker scripts per-model outcomes.
type fakeInvoker struct {
	scripts map[string]fakeOutcome
	calls   []string
}

type fakeOutcome struct {
	response string
	failKind sidecar.ErrorKind
	tps      float64
}

func (f *fakeInvoker) Generate(ctx context.Context, model, prompt string, opts *sidecar.Options) (*sidecar.Invocation, error) {
	f.calls = append(f.calls, model)
	now := time.Now()
	inv := &sidecar.Invocation{
		Model:       model,
		Prompt:      prompt,
		StartedAt:   now,
		CompletedAt: now.Add(time.Second),
	}
	out := f.scripts[model]
	if out.failKind != "" {
		inv.Success = false
		inv.ErrorKind = out.failKind
		inv.ErrorDetail = "simulated failure"
		return inv, errors.New("simulated failure")
	}
	inv.Success = true
	inv.Response = out.response
	inv.TokensPerSec = out.tps
	inv.CompletionTokens = 40
	return inv, nil
}

func openTestStore(t *testing.T) *metrics.Store {
	t.Helper()
	s, err := metrics.Open(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func threeModelInvoker() *fakeInvoker {
	return &fakeInvoker{scripts: map[string]fakeOutcome{
		"strong": {response: strongAnswer, tps: 25},
		"terse":  {response: "ok.", tps: 60},
		"broken": {failKind: sidecar.ErrKindConnection},
	}}
}

func TestCompare_FailedModelRankedLast(t *testing.T) {
	store := openTestStore(t)
	o := NewOrchestrator(threeModelInvoker(), scoring.NewEvaluator(0), store, time.Second, nil)

	run, err := o.Compare(context.Background(), "Analyse cloud migration trade-offs.",
		[]string{"strong", "terse", "broken"}, scoring.CategoryAnalysis, Weighting{})
	require.NoError(t, err)
	require.Len(t, run.Ranking, 3)

	last := run.Ranking[2]
	assert.Equal(t, "broken", last.Model)
	assert.Equal(t, 3, last.Rank)
	assert.False(t, last.Success)
	assert.Zero(t, last.Score)
	assert.Zero(t, last.RankScore)
	assert.Equal(t, string(sidecar.ErrKindConnection), last.ErrorKind)
	assert.NotEmpty(t, last.ErrorDetail)

	for i, e := range run.Ranking {
		assert.Equal(t, i+1, e.Rank)
	}
	assert.True(t, run.Ranking[0].Success)
	assert.GreaterOrEqual(t, run.Ranking[0].RankScore, run.Ranking[1].RankScore)
}

func TestCompare_RankingIndependentOfInputOrder(t *testing.T) {
	prompt := "Analyse cloud migration trade-offs."

	runA := func() *Run {
		o := NewOrchestrator(threeModelInvoker(), scoring.NewEvaluator(0), openTestStore(t), time.Second, nil)
		run, err := o.Compare(context.Background(), prompt,
			[]string{"strong", "terse", "broken"}, scoring.CategoryAnalysis, Weighting{})
		require.NoError(t, err)
		return run
	}()
	runB := func() *Run {
		o := NewOrchestrator(threeModelInvoker(), scoring.NewEvaluator(0), openTestStore(t), time.Second, nil)
		run, err := o.Compare(context.Background(), prompt,
			[]string{"broken", "terse", "strong"}, scoring.CategoryAnalysis, Weighting{})
		require.NoError(t, err)
		return run
	}()

	require.Len(t, runB.Ranking, len(runA.Ranking))
	for i := range runA.Ranking {
		assert.Equal(t, runA.Ranking[i].Model, runB.Ranking[i].Model)
		assert.InDelta(t, runA.Ranking[i].RankScore, runB.Ranking[i].RankScore, 1e-9)
	}
}

func TestCompare_InvocationOrderIsCanonical(t *testing.T) {
	store := openTestStore(t)
	inv := threeModelInvoker()
	o := NewOrchestrator(inv, scoring.NewEvaluator(0), store, time.Second, nil)

	_, err := o.Compare(context.Background(), "prompt text for comparison",
		[]string{"terse", "strong", "broken", "terse"}, "", Weighting{})
	require.NoError(t, err)
	assert.Equal(t, []string{"broken", "strong", "terse"}, inv.calls,
		"duplicates removed, then sorted before invoking")
}

func TestCompare_WeightingShiftsRanking(t *testing.T) {
	scripts := map[string]fakeOutcome{
		"smart": {response: strongAnswer, tps: 10},
		"fast":  {response: "A single short sentence answers this.", tps: 100},
	}

	qualityFirst := func() *Run {
		o := NewOrchestrator(&fakeInvoker{scripts: scripts}, scoring.NewEvaluator(0), openTestStore(t), time.Second, nil)
		run, err := o.Compare(context.Background(), "Analyse cloud migration trade-offs.",
			[]string{"smart", "fast"}, scoring.CategoryAnalysis, Weighting{Quality: 1, Speed: 0})
		require.NoError(t, err)
		return run
	}()
	speedFirst := func() *Run {
		o := NewOrchestrator(&fakeInvoker{scripts: scripts}, scoring.NewEvaluator(0), openTestStore(t), time.Second, nil)
		run, err := o.Compare(context.Background(), "Analyse cloud migration trade-offs.",
			[]string{"smart", "fast"}, scoring.CategoryAnalysis, Weighting{Quality: 0, Speed: 1})
		require.NoError(t, err)
		return run
	}()

	assert.Equal(t, "smart", qualityFirst.Ranking[0].Model)
	assert.Equal(t, "fast", speedFirst.Ranking[0].Model)
}

func TestCompare_PersistsAllEntries(t *testing.T) {
	store := openTestStore(t)
	o := NewOrchestrator(threeModelInvoker(), scoring.NewEvaluator(0), store, time.Second, nil)

	run, err := o.Compare(context.Background(), "Analyse cloud migration trade-offs.",
		[]string{"strong", "terse", "broken"}, scoring.CategoryAnalysis, Weighting{})
	require.NoError(t, err)

	invRecs, err := store.QueryInvocations(metrics.InvocationFilter{Source: "comparison"}, metrics.Window{})
	require.NoError(t, err)
	assert.Len(t, invRecs, 3, "failures are recorded alongside successes")

	cals, err := store.QueryCalibrations(metrics.CalibrationFilter{RunID: run.RunID}, metrics.Window{})
	require.NoError(t, err)
	require.Len(t, cals, 3)
	for _, c := range cals {
		assert.Equal(t, "comparison", c.TestID)
	}
}

func TestCompare_InputValidation(t *testing.T) {
	store := openTestStore(t)
	o := NewOrchestrator(threeModelInvoker(), scoring.NewEvaluator(0), store, time.Second, nil)
	ctx := context.Background()

	_, err := o.Compare(ctx, "", []string{"a", "b"}, "", Weighting{})
	require.Error(t, err, "prompt is required")

	_, err = o.Compare(ctx, "prompt", []string{"solo"}, "", Weighting{})
	require.Error(t, err, "two distinct models required")

	_, err = o.Compare(ctx, "prompt", []string{"dup", "dup", ""}, "", Weighting{})
	require.Error(t, err, "duplicates and blanks collapse below the minimum")
}

func TestWeighting_Normalized(t *testing.T) {
	w := Weighting{Quality: 3, Speed: 1}.normalized()
	assert.InDelta(t, 0.75, w.Quality, 1e-9)
	assert.InDelta(t, 0.25, w.Speed, 1e-9)

	def := Weighting{}.normalized()
	assert.InDelta(t, 0.7, def.Quality, 1e-9)
	assert.InDelta(t, 0.3, def.Speed, 1e-9)
}
