package calibrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pineapple-labs/mstyadmin/internal/metrics"
	"github.com/pineapple-labs/mstyadmin/internal/scoring"
	"github.com/pineapple-labs/mstyadmin/internal/sidecar"
)

// Status is the run state machine: PENDING → RUNNING → one of the terminal
// states.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	// StatusCompleted means every test case executed, pass or fail.
	StatusCompleted Status = "completed"
	// StatusPartial means results were computed but one or more could not be
	// durably recorded.
	StatusPartial Status = "partial"
	// StatusFailed means the inference service was unreachable before any
	// test could run.
	StatusFailed Status = "failed"
)

// Invoker is the slice of the sidecar client the runner needs. Generate must
// return a non-nil Invocation even on failure, with Success false and
// ErrorKind set, as the sidecar client does.
type Invoker interface {
	Generate(ctx context.Context, model, prompt string, opts *sidecar.Options) (*sidecar.Invocation, error)
	Ping(ctx context.Context) error
}

// TestResult is the per-case outcome surfaced to the caller. Recorded is
// false when the metrics store rejected the write; the in-memory result is
// still valid.
type TestResult struct {
	TestID         string  `json:"test_id"`
	Category       string  `json:"category"`
	Score          float64 `json:"score"`
	Passed         bool    `json:"passed"`
	ErrorKind      string  `json:"error_kind,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	TokensPerSec   float64 `json:"tokens_per_sec"`
	LatencySeconds float64 `json:"latency_seconds"`
	Recorded       bool    `json:"recorded"`
}

// CategorySummary aggregates results within one category.
type CategorySummary struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	AvgScore float64 `json:"avg_score"`
}

// RunSummary is the final report of one calibration run.
type RunSummary struct {
	RunID        string                     `json:"run_id"`
	Model        string                     `json:"model"`
	Suite        string                     `json:"suite"`
	Status       Status                     `json:"status"`
	Total        int                        `json:"total"`
	Passed       int                        `json:"passed"`
	AverageScore float64                    `json:"average_score"`
	ByCategory   map[string]CategorySummary `json:"by_category"`
	Results      []TestResult               `json:"results"`
	StartedAt    time.Time                  `json:"started_at"`
	CompletedAt  time.Time                  `json:"completed_at"`
	Error        string                     `json:"error,omitempty"`
}

// Request selects what to calibrate. A nil Suite runs the builtin suite; an
// empty Categories list runs every category.
type Request struct {
	Model      string
	Categories []scoring.Category
	Suite      *Suite
	// Timeout bounds each individual invocation. Zero selects the runner's
	// default.
	Timeout time.Duration
}

// Runner executes calibration runs. Invocations are strictly sequential: the
// local inference backend serializes requests on shared hardware, and
// parallel calls would distort the latency and throughput measurements.
type Runner struct {
	invoker   Invoker
	evaluator *scoring.Evaluator
	store     *metrics.Store
	timeout   time.Duration
	logger    *slog.Logger
}

// NewRunner wires a runner. timeout <= 0 defaults to 10 seconds.
func NewRunner(invoker Invoker, evaluator *scoring.Evaluator, store *metrics.Store, timeout time.Duration, logger *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		invoker:   invoker,
		evaluator: evaluator,
		store:     store,
		timeout:   timeout,
		logger:    logger.With("component", "calibrate"),
	}
}

// Run executes the requested suite against one model. Individual invocation
// failures are scored 0 and recorded; they never abort the run. A non-nil
// error is returned only for invalid requests.
func (r *Runner) Run(ctx context.Context, req Request) (*RunSummary, error) {
	if req.Model == "" {
		return nil, errors.New("calibrate: model is required")
	}
	suite := req.Suite
	if suite == nil {
		suite = BuiltinSuite()
	}
	cases := suite.Filter(req.Categories)
	if len(cases) == 0 {
		return nil, fmt.Errorf("calibrate: no test cases match categories %v", req.Categories)
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}

	sum := &RunSummary{
		RunID:      uuid.NewString(),
		Model:      req.Model,
		Suite:      suite.Name,
		Status:     StatusPending,
		Total:      len(cases),
		ByCategory: map[string]CategorySummary{},
		StartedAt:  time.Now().UTC(),
	}

	// Reachability gate: a dead service fails the run up front instead of
	// producing a full suite of connection errors.
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	err := r.invoker.Ping(pingCtx)
	cancel()
	if err != nil {
		sum.Status = StatusFailed
		sum.Error = err.Error()
		sum.CompletedAt = time.Now().UTC()
		r.logger.Warn("calibration run failed before start", "model", req.Model, "err", err)
		return sum, nil
	}

	sum.Status = StatusRunning
	r.logger.Info("calibration run started",
		"run_id", sum.RunID, "model", req.Model, "suite", suite.Name, "cases", len(cases))

	persistFailed := false
	var scoreSum float64

	for _, tc := range cases {
		res, recordedAll := r.runCase(ctx, sum.RunID, req.Model, tc, timeout)
		if !recordedAll {
			persistFailed = true
		}
		sum.Results = append(sum.Results, *res)
		scoreSum += res.Score
		if res.Passed {
			sum.Passed++
		}
		cs := sum.ByCategory[res.Category]
		cs.Total++
		if res.Passed {
			cs.Passed++
		}
		cs.AvgScore += res.Score // running sum, averaged below
		sum.ByCategory[res.Category] = cs
	}

	for cat, cs := range sum.ByCategory {
		if cs.Total > 0 {
			cs.AvgScore /= float64(cs.Total)
		}
		sum.ByCategory[cat] = cs
	}
	sum.AverageScore = scoreSum / float64(sum.Total)
	sum.CompletedAt = time.Now().UTC()
	if persistFailed {
		sum.Status = StatusPartial
	} else {
		sum.Status = StatusCompleted
	}

	r.logger.Info("calibration run finished",
		"run_id", sum.RunID, "status", string(sum.Status),
		"passed", sum.Passed, "total", sum.Total, "avg_score", sum.AverageScore)
	return sum, nil
}

// runCase executes one test case end to end. The second return value is
// false when any store append failed.
func (r *Runner) runCase(ctx context.Context, runID, model string, tc TestCase, timeout time.Duration) (*TestResult, bool) {
	res := &TestResult{
		TestID:   tc.ID,
		Category: string(tc.Category),
		Recorded: true,
	}

	invCtx, cancel := context.WithTimeout(ctx, timeout)
	inv, invErr := r.invoker.Generate(invCtx, model, tc.Prompt, nil)
	cancel()

	res.TokensPerSec = inv.TokensPerSec
	res.LatencySeconds = inv.Latency().Seconds()

	recordedAll := true
	invRec := metrics.NewInvocationRecord(inv, "calibration")
	if err := r.store.AppendInvocation(invRec); err != nil && !errors.Is(err, metrics.ErrDuplicate) {
		recordedAll = false
		res.Recorded = false
		r.logger.Warn("invocation record not persisted", "test", tc.ID, "err", err)
	}

	cal := &metrics.CalibrationResult{
		RunID:        runID,
		TestID:       tc.ID,
		Category:     string(tc.Category),
		Model:        model,
		InvocationID: invRec.ID,
	}

	if invErr != nil || !inv.Success {
		res.ErrorKind = string(inv.ErrorKind)
		res.Notes = inv.ErrorDetail
		cal.ErrorKind = string(inv.ErrorKind)
		cal.Notes = inv.ErrorDetail
	} else {
		hints := tc.Hints
		hints.Prompt = tc.Prompt
		ev := r.evaluator.Evaluate(tc.Category, hints, inv.Response, tc.Threshold)
		res.Score = ev.Score
		res.Passed = ev.Passed
		if len(ev.Notes) > 0 {
			res.Notes = ev.Notes[0]
			cal.Notes = ev.Notes[0]
		}
		cal.Score = ev.Score
		cal.Passed = ev.Passed
	}

	if err := r.store.AppendCalibration(cal); err != nil {
		recordedAll = false
		res.Recorded = false
		r.logger.Warn("calibration result not persisted", "test", tc.ID, "err", err)
	}
	return res, recordedAll
}
