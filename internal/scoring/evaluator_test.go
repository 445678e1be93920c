package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodCodingResponse = "Here is a Python solution:\n\n```python\ndef longest_palindrome(s):\n    best = \"\"\n    for i in range(len(s)):\n        for j in range(i, len(s)):\n            sub = s[i : j + 1]\n            if sub == sub[::-1] and len(sub) > len(best):\n                best = sub\n    return best\n```\n\nThe function checks every substring and keeps the longest palindromic one."

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input   string
		want    Category
		wantErr bool
	}{
		{"coding", CategoryCoding, false},
		{"  Reasoning ", CategoryReasoning, false},
		{"", CategoryGeneral, false},
		{"general", CategoryGeneral, false},
		{"poetry", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCategory(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_EmptyResponse(t *testing.T) {
	e := NewEvaluator(0)
	for _, response := range []string{"", "   ", "\n\t\n"} {
		ev := e.Evaluate(CategoryGeneral, Hints{}, response, 0)
		assert.Zero(t, ev.Score)
		assert.False(t, ev.Passed)
		require.Len(t, ev.Notes, 1)
		assert.Equal(t, "empty response", ev.Notes[0])
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	e := NewEvaluator(0)
	hints := Hints{Keywords: []string{"def", "return"}, Prompt: "Write a palindrome finder."}
	a := e.Evaluate(CategoryCoding, hints, goodCodingResponse, 0)
	b := e.Evaluate(CategoryCoding, hints, goodCodingResponse, 0)
	assert.Equal(t, a, b)
}

func TestEvaluate_ScoreInRange(t *testing.T) {
	e := NewEvaluator(0)
	responses := []string{
		"ok",
		goodCodingResponse,
		strings.Repeat("the same words again and again ", 100),
		"First, consider the total. Second, subtract. Therefore the ball costs $0.05.",
	}
	for _, cat := range append(Categories(), CategoryGeneral) {
		for _, r := range responses {
			ev := e.Evaluate(cat, Hints{Keywords: []string{"ball"}}, r, 0)
			assert.GreaterOrEqual(t, ev.Score, 0.0)
			assert.LessOrEqual(t, ev.Score, 1.0)
		}
	}
}

func TestEvaluate_GoodCodingResponsePasses(t *testing.T) {
	e := NewEvaluator(0)
	hints := Hints{Keywords: []string{"def", "palindrom", "return"}}
	ev := e.Evaluate(CategoryCoding, hints, goodCodingResponse, 0)
	assert.True(t, ev.Passed)
	assert.Greater(t, ev.Score, 0.9)
	assert.Equal(t, 1.0, ev.Signals["hint_coverage"])
	assert.Equal(t, 1.0, ev.Signals["structure"], "fenced code gets full structure credit")
}

func TestEvaluate_HintCoverageMovesScore(t *testing.T) {
	e := NewEvaluator(0)
	hints := Hints{Keywords: []string{"quantum", "entanglement"}}
	response := "This long answer talks about classical physics in several sentences. " +
		"It describes momentum and energy conservation in detail. It never mentions the expected terms."

	miss := e.Evaluate(CategoryGeneral, hints, response, 0)
	hit := e.Evaluate(CategoryGeneral, hints, response+" Quantum entanglement links particle states.", 0)

	assert.Zero(t, miss.Signals["hint_coverage"])
	assert.Equal(t, 1.0, hit.Signals["hint_coverage"])
	assert.Greater(t, hit.Score, miss.Score)
}

func TestEvaluate_NoHintsSignalDropsOut(t *testing.T) {
	e := NewEvaluator(0)
	ev := e.Evaluate(CategoryGeneral, Hints{}, goodCodingResponse, 0)
	_, present := ev.Signals["hint_coverage"]
	assert.False(t, present, "hint coverage must not apply without hints")
}

func TestEvaluate_InvalidPatternCountsAsMiss(t *testing.T) {
	e := NewEvaluator(0)
	hints := Hints{Patterns: []string{`[unclosed`, `ball`}}
	ev := e.Evaluate(CategoryGeneral, hints, "The ball costs five cents in this answer.", 0)
	assert.InDelta(t, 0.5, ev.Signals["hint_coverage"], 1e-9)
}

func TestEvaluate_ThresholdApplied(t *testing.T) {
	e := NewEvaluator(0)
	hints := Hints{Keywords: []string{"def", "palindrom", "return"}}

	strict := e.Evaluate(CategoryCoding, hints, goodCodingResponse, 0.99)
	lax := e.Evaluate(CategoryCoding, hints, goodCodingResponse, 0.1)
	assert.Equal(t, strict.Score, lax.Score, "threshold affects pass/fail only")
	assert.True(t, lax.Passed)
}

func TestEvaluate_PromptEchoPenalized(t *testing.T) {
	e := NewEvaluator(0)
	prompt := "Explain why the sky is blue using Rayleigh scattering in two sentences."

	echo := e.Evaluate(CategoryGeneral, Hints{Prompt: prompt}, prompt+" Sure.", 0)
	answer := e.Evaluate(CategoryGeneral, Hints{Prompt: prompt},
		"Sunlight scatters off air molecules, and shorter blue wavelengths scatter far more strongly. "+
			"That scattered blue light reaches your eyes from every direction of the sky.", 0)

	assert.Less(t, echo.Signals["coherence"], answer.Signals["coherence"])
}

func TestEvaluate_RepetitionPenalized(t *testing.T) {
	e := NewEvaluator(0)
	degenerate := strings.Repeat("same same same ", 40)
	ev := e.Evaluate(CategoryGeneral, Hints{}, degenerate, 0)
	assert.LessOrEqual(t, ev.Signals["coherence"], 0.6)
}

func TestEvaluate_OverlengthNoteOnly(t *testing.T) {
	e := NewEvaluator(100)
	long := strings.Repeat("A thoughtful sentence about the topic at hand. ", 10)
	ev := e.Evaluate(CategoryGeneral, Hints{}, long, 0)
	assert.Positive(t, ev.Score, "overlong responses still score")
	require.NotEmpty(t, ev.Notes)
	assert.Contains(t, ev.Notes[0], "exceeds configured maximum")
}
