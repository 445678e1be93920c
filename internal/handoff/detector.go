// Package handoff detects (category, model) pairs whose recent calibration
// failure rate says the work should be routed to a more capable system.
package handoff

import (
	"fmt"
	"log/slog"

	"github.com/pineapple-labs/mstyadmin/internal/metrics"
)

// Defaults for the detection thresholds. All are configurable; none of them
// is load-bearing beyond being a reasonable starting point.
const (
	DefaultFailureRate = 0.4
	DefaultWindow      = 20
	DefaultMinSamples  = 5
)

// Action says what an evaluation did to the trigger state.
type Action string

const (
	// ActionActive means an active trigger was created or refreshed.
	ActionActive Action = "active"
	// ActionResolved means a previously active trigger recovered.
	ActionResolved Action = "resolved"
	// ActionNone means the data did not justify changing anything.
	ActionNone Action = "none"
)

// Outcome reports one (category, model) evaluation.
type Outcome struct {
	Category    string                  `json:"category"`
	Model       string                  `json:"model"`
	FailureRate float64                 `json:"failure_rate"`
	SampleCount int                     `json:"sample_count"`
	Action      Action                  `json:"action"`
	Trigger     *metrics.HandoffTrigger `json:"trigger,omitempty"`
}

// Options tune the detector. Zero values select the defaults.
type Options struct {
	FailureRate float64
	Window      int
	MinSamples  int
}

// Detector evaluates calibration history against the failure-rate policy.
// Evaluations are idempotent: unchanged data yields unchanged trigger state.
type Detector struct {
	store       *metrics.Store
	failureRate float64
	window      int
	minSamples  int
	logger      *slog.Logger
}

// NewDetector creates a detector over the given store.
func NewDetector(store *metrics.Store, opts Options, logger *slog.Logger) *Detector {
	if opts.FailureRate <= 0 {
		opts.FailureRate = DefaultFailureRate
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = DefaultMinSamples
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		store:       store,
		failureRate: opts.FailureRate,
		window:      opts.Window,
		minSamples:  opts.MinSamples,
		logger:      logger.With("component", "handoff"),
	}
}

// Evaluate computes the failure rate over the most recent window of
// calibration results for (category, model) and upserts or resolves the
// corresponding trigger.
func (d *Detector) Evaluate(category, model string) (*Outcome, error) {
	recent, err := d.store.RecentCalibrations(category, model, d.window)
	if err != nil {
		return nil, fmt.Errorf("handoff evaluate: %w", err)
	}

	out := &Outcome{Category: category, Model: model, SampleCount: len(recent), Action: ActionNone}
	failed := 0
	for _, r := range recent {
		if !r.Passed {
			failed++
		}
	}
	if len(recent) > 0 {
		out.FailureRate = float64(failed) / float64(len(recent))
	}

	existing, err := d.store.Trigger(category, model)
	if err != nil {
		return nil, err
	}

	switch {
	case len(recent) >= d.minSamples && out.FailureRate >= d.failureRate:
		trig, err := d.store.UpsertTrigger(category, model, out.FailureRate, len(recent))
		if err != nil {
			return nil, err
		}
		out.Action = ActionActive
		out.Trigger = trig
		d.logger.Info("handoff trigger active",
			"category", category, "model", model,
			"failure_rate", out.FailureRate, "samples", len(recent))

	case existing != nil && existing.Status == metrics.TriggerActive &&
		len(recent) >= d.minSamples && out.FailureRate < d.failureRate/2:
		if err := d.store.ResolveTrigger(category, model); err != nil {
			return nil, err
		}
		out.Action = ActionResolved
		out.Trigger, err = d.store.Trigger(category, model)
		if err != nil {
			return nil, err
		}
		d.logger.Info("handoff trigger resolved",
			"category", category, "model", model, "failure_rate", out.FailureRate)

	default:
		out.Trigger = existing
	}
	return out, nil
}

// Scan evaluates every (category, model) pair with calibration history and
// returns the outcomes in deterministic order.
func (d *Detector) Scan() ([]Outcome, error) {
	pairs, err := d.store.CalibrationPairs()
	if err != nil {
		return nil, err
	}
	out := make([]Outcome, 0, len(pairs))
	for _, p := range pairs {
		o, err := d.Evaluate(p[0], p[1])
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}
