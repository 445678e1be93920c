// Package compare runs one prompt against several local models and ranks
// them by a configurable balance of response quality and generation speed.
package compare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pineapple-labs/mstyadmin/internal/metrics"
	"github.com/pineapple-labs/mstyadmin/internal/scoring"
	"github.com/pineapple-labs/mstyadmin/internal/sidecar"
)

// Invoker matches the sidecar client. Generate must return a non-nil
// Invocation even on failure.
type Invoker interface {
	Generate(ctx context.Context, model, prompt string, opts *sidecar.Options) (*sidecar.Invocation, error)
}

// Weighting balances quality against speed in the ranking. The two weights
// are normalized to sum to 1; a zero value selects the 0.7/0.3 default.
type Weighting struct {
	Quality float64 `json:"quality"`
	Speed   float64 `json:"speed"`
}

func (w Weighting) normalized() Weighting {
	if w.Quality <= 0 && w.Speed <= 0 {
		return Weighting{Quality: 0.7, Speed: 0.3}
	}
	total := w.Quality + w.Speed
	return Weighting{Quality: w.Quality / total, Speed: w.Speed / total}
}

// Entry is one model's outcome within a comparison run.
type Entry struct {
	Model          string  `json:"model"`
	Rank           int     `json:"rank"`
	RankScore      float64 `json:"rank_score"`
	Score          float64 `json:"score"`
	TokensPerSec   float64 `json:"tokens_per_sec"`
	LatencySeconds float64 `json:"latency_seconds"`
	Response       string  `json:"response,omitempty"`
	Success        bool    `json:"success"`
	ErrorKind      string  `json:"error_kind,omitempty"`
	ErrorDetail    string  `json:"error_detail,omitempty"`
	Recorded       bool    `json:"recorded"`
}

// Run is the result of one comparison: the ranking is best-first and always
// contains every requested model, including the ones that failed.
type Run struct {
	RunID     string           `json:"run_id"`
	Prompt    string           `json:"prompt"`
	Category  scoring.Category `json:"category"`
	Weighting Weighting        `json:"weighting"`
	Ranking   []Entry          `json:"ranking"`
	Timestamp time.Time        `json:"timestamp"`
}

// Orchestrator drives comparisons. Models are invoked sequentially: the
// shared local backend serializes requests, and parallel invocations would
// make the speed term meaningless.
type Orchestrator struct {
	invoker   Invoker
	evaluator *scoring.Evaluator
	store     *metrics.Store
	timeout   time.Duration
	logger    *slog.Logger
}

// NewOrchestrator wires an orchestrator. timeout <= 0 defaults to 10 seconds.
func NewOrchestrator(invoker Invoker, evaluator *scoring.Evaluator, store *metrics.Store, timeout time.Duration, logger *slog.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		invoker:   invoker,
		evaluator: evaluator,
		store:     store,
		timeout:   timeout,
		logger:    logger.With("component", "compare"),
	}
}

// Compare invokes each model on the prompt, scores the responses, and ranks.
// category may be empty for a generic prompt. Both ranking terms are
// normalized within this comparison set, so the result is self-contained and
// independent of the input model order.
func (o *Orchestrator) Compare(ctx context.Context, prompt string, models []string, category scoring.Category, weighting Weighting) (*Run, error) {
	if prompt == "" {
		return nil, errors.New("compare: prompt is required")
	}
	models = dedupe(models)
	if len(models) < 2 {
		return nil, fmt.Errorf("compare: need at least 2 distinct models, got %d", len(models))
	}
	if category == "" {
		category = scoring.CategoryGeneral
	}
	w := weighting.normalized()

	run := &Run{
		RunID:     uuid.NewString(),
		Prompt:    prompt,
		Category:  category,
		Weighting: w,
		Timestamp: time.Now().UTC(),
	}

	entries := make([]Entry, 0, len(models))
	for _, model := range models {
		entries = append(entries, o.invokeOne(ctx, run.RunID, model, prompt, category))
	}

	rank(entries, w)
	run.Ranking = entries

	o.logger.Info("comparison complete",
		"run_id", run.RunID, "models", len(models), "winner", entries[0].Model)
	return run, nil
}

func (o *Orchestrator) invokeOne(ctx context.Context, runID, model, prompt string, category scoring.Category) Entry {
	e := Entry{Model: model, Recorded: true}

	invCtx, cancel := context.WithTimeout(ctx, o.timeout)
	inv, invErr := o.invoker.Generate(invCtx, model, prompt, nil)
	cancel()

	e.TokensPerSec = inv.TokensPerSec
	e.LatencySeconds = inv.Latency().Seconds()
	e.Success = inv.Success
	if invErr != nil || !inv.Success {
		e.ErrorKind = string(inv.ErrorKind)
		e.ErrorDetail = inv.ErrorDetail
	} else {
		e.Response = inv.Response
		ev := o.evaluator.Evaluate(category, scoring.Hints{Prompt: prompt}, inv.Response, 0)
		e.Score = ev.Score
	}

	invRec := metrics.NewInvocationRecord(inv, "comparison")
	if err := o.store.AppendInvocation(invRec); err != nil && !errors.Is(err, metrics.ErrDuplicate) {
		e.Recorded = false
		o.logger.Warn("comparison invocation not persisted", "model", model, "err", err)
	}
	cal := &metrics.CalibrationResult{
		RunID:        runID,
		TestID:       "comparison",
		Category:     string(category),
		Model:        model,
		Score:        e.Score,
		Passed:       e.Success && e.Score >= scoring.DefaultPassThreshold,
		InvocationID: invRec.ID,
		ErrorKind:    e.ErrorKind,
	}
	if err := o.store.AppendCalibration(cal); err != nil {
		e.Recorded = false
		o.logger.Warn("comparison result not persisted", "model", model, "err", err)
	}
	return e
}

// rank computes normalized rank scores and sorts entries best-first. Failed
// models always sort after successful ones; ties break on model name so the
// ordering is deterministic for a given result set.
func rank(entries []Entry, w Weighting) {
	var maxScore, maxTPS float64
	for _, e := range entries {
		if e.Success {
			if e.Score > maxScore {
				maxScore = e.Score
			}
			if e.TokensPerSec > maxTPS {
				maxTPS = e.TokensPerSec
			}
		}
	}
	for i := range entries {
		e := &entries[i]
		if !e.Success {
			e.RankScore = 0
			continue
		}
		q, s := 0.0, 0.0
		if maxScore > 0 {
			q = e.Score / maxScore
		}
		if maxTPS > 0 {
			s = e.TokensPerSec / maxTPS
		}
		e.RankScore = w.Quality*q + w.Speed*s
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Success != b.Success {
			return a.Success
		}
		if a.RankScore != b.RankScore {
			return a.RankScore > b.RankScore
		}
		return a.Model < b.Model
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// dedupe removes repeated model IDs while keeping first-seen order, then
// sorts so the invocation order (and thus the persisted history) does not
// depend on how the caller listed the models.
func dedupe(models []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range models {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
