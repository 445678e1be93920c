// Package scoring is the heuristic quality evaluator. Evaluate is a pure
// function: the same category, hints, and response always produce the same
// score, with no clock, randomness, or network involved.
package scoring

import (
	"fmt"
	"strings"
)

// Category selects which structural signals apply to a response.
type Category string

const (
	CategoryReasoning Category = "reasoning"
	CategoryCoding    Category = "coding"
	CategoryWriting   Category = "writing"
	CategoryAnalysis  Category = "analysis"
	CategoryCreative  Category = "creative"
	// CategoryGeneral is used when no test case applies, e.g. ad-hoc
	// comparisons.
	CategoryGeneral Category = "general"
)

// Categories lists the calibration categories in suite order.
func Categories() []Category {
	return []Category{
		CategoryReasoning, CategoryCoding, CategoryWriting,
		CategoryAnalysis, CategoryCreative,
	}
}

// ParseCategory validates a category name. Empty input maps to
// CategoryGeneral.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CategoryGeneral, nil
	case CategoryReasoning, CategoryCoding, CategoryWriting,
		CategoryAnalysis, CategoryCreative, CategoryGeneral:
		return c, nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// Hints carry the expected content for a test case. All matching is
// case-insensitive. Prompt, when set, is used only to detect responses that
// merely echo the prompt back.
type Hints struct {
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty" mapstructure:"keywords"`
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty" mapstructure:"patterns"`
	Prompt   string   `yaml:"-" json:"-" mapstructure:"-"`
}

func (h Hints) empty() bool { return len(h.Keywords) == 0 && len(h.Patterns) == 0 }

// DefaultPassThreshold is applied when a test case does not set its own.
const DefaultPassThreshold = 0.6

// DefaultMaxResponseBytes is the length above which an observability note is
// emitted. Long responses still score normally.
const DefaultMaxResponseBytes = 16384

// Evaluation is the outcome of scoring one response.
type Evaluation struct {
	Score   float64            `json:"score"`
	Passed  bool               `json:"passed"`
	Signals map[string]float64 `json:"signals"`
	Notes   []string           `json:"notes,omitempty"`
}

// signal is one row of the weighted scoring table. Weights across the
// applicable rows are normalized so they always sum to 1.0; extract returns
// a value in [0,1].
type signal struct {
	name    string
	weight  float64
	extract func(in input) float64
	// applies reports whether the signal has enough information to be
	// meaningful for this input. Inapplicable signals drop out and the
	// remaining weights are renormalized.
	applies func(in input) bool
}

type input struct {
	category Category
	hints    Hints
	response string
	lower    string
}

// signalTable is the scoring rubric. Keeping it as data makes the weights
// test-visible and tunable without touching control flow.
var signalTable = []signal{
	{
		name:    "hint_coverage",
		weight:  0.35,
		extract: hintCoverage,
		applies: func(in input) bool { return !in.hints.empty() },
	},
	{
		name:    "structure",
		weight:  0.25,
		extract: structureSignal,
		applies: func(input) bool { return true },
	},
	{
		name:    "length",
		weight:  0.15,
		extract: lengthSignal,
		applies: func(input) bool { return true },
	},
	{
		name:    "coherence",
		weight:  0.25,
		extract: coherenceSignal,
		applies: func(input) bool { return true },
	},
}

// Evaluator scores responses against the signal table.
type Evaluator struct {
	maxResponseBytes int
}

// NewEvaluator creates an evaluator. maxResponseBytes <= 0 selects the
// default.
func NewEvaluator(maxResponseBytes int) *Evaluator {
	if maxResponseBytes <= 0 {
		maxResponseBytes = DefaultMaxResponseBytes
	}
	return &Evaluator{maxResponseBytes: maxResponseBytes}
}

// Evaluate scores a response in [0,1] and applies the pass threshold
// (threshold <= 0 selects DefaultPassThreshold). An empty or whitespace-only
// response scores 0 and fails regardless of the other signals.
func (e *Evaluator) Evaluate(category Category, hints Hints, response string, threshold float64) Evaluation {
	if threshold <= 0 {
		threshold = DefaultPassThreshold
	}

	ev := Evaluation{Signals: map[string]float64{}}

	if strings.TrimSpace(response) == "" {
		ev.Notes = append(ev.Notes, "empty response")
		return ev
	}
	if len(response) > e.maxResponseBytes {
		ev.Notes = append(ev.Notes, fmt.Sprintf("response length %d exceeds configured maximum %d", len(response), e.maxResponseBytes))
	}

	in := input{
		category: category,
		hints:    hints,
		response: response,
		lower:    strings.ToLower(response),
	}

	var weighted, totalWeight float64
	for _, sig := range signalTable {
		if !sig.applies(in) {
			continue
		}
		v := clamp01(sig.extract(in))
		ev.Signals[sig.name] = v
		weighted += sig.weight * v
		totalWeight += sig.weight
	}
	if totalWeight > 0 {
		ev.Score = clamp01(weighted / totalWeight)
	}
	ev.Passed = ev.Score >= threshold
	return ev
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
