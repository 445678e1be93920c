package scoring

import (
	"math"
	"regexp"
	"strings"
)

// hintCoverage is the fraction of expected keywords found plus expected
// patterns matched, case-insensitive. Invalid patterns count as unmatched
// rather than failing the evaluation.
func hintCoverage(in input) float64 {
	total := len(in.hints.Keywords) + len(in.hints.Patterns)
	if total == 0 {
		return 0
	}
	hits := 0
	for _, kw := range in.hints.Keywords {
		if strings.Contains(in.lower, strings.ToLower(kw)) {
			hits++
		}
	}
	for _, pat := range in.hints.Patterns {
		re, err := regexp.Compile("(?is)" + pat)
		if err != nil {
			continue
		}
		if re.MatchString(in.response) {
			hits++
		}
	}
	return float64(hits) / float64(total)
}

var (
	stepMarkerRe   = regexp.MustCompile(`(?im)^\s*(step\s+\d|\d+[.)]\s|first|second|then|finally|therefore)`)
	codeFenceRe    = regexp.MustCompile("(?s)```.*```")
	codeTokenRe    = regexp.MustCompile(`(?m)(\bdef\b|\bfunc\b|\breturn\b|\bclass\b|[{}();]|^\s{4,}\S)`)
	balanceTermRe  = regexp.MustCompile(`(?i)\b(however|on the other hand|whereas|in contrast|benefit|risk|advantage|disadvantage|trade-?off)\b`)
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	sentenceSplit  = regexp.MustCompile(`[.!?]+\s`)
)

// structureSignal checks for the shape a good response in this category
// tends to have: step markers for reasoning, code blocks for coding,
// balanced terms for analysis, sentence variety for creative, paragraph
// structure for writing and general prose.
func structureSignal(in input) float64 {
	switch in.category {
	case CategoryReasoning:
		return countScore(len(stepMarkerRe.FindAllString(in.response, -1)), 3)
	case CategoryCoding:
		if codeFenceRe.MatchString(in.response) {
			return 1
		}
		return countScore(len(codeTokenRe.FindAllString(in.response, -1)), 6)
	case CategoryAnalysis:
		return countScore(len(balanceTermRe.FindAllString(in.response, -1)), 4)
	case CategoryCreative:
		return sentenceVariety(in.response)
	default: // writing, general
		return proseShape(in.response)
	}
}

// lengthSignal rewards responses long enough to plausibly answer. Below 50
// characters it is heavily discounted; full credit arrives around 200.
func lengthSignal(in input) float64 {
	n := len(strings.TrimSpace(in.response))
	switch {
	case n < 50:
		return 0.3 * float64(n) / 50
	case n < 200:
		return 0.3 + 0.7*float64(n-50)/150
	default:
		return 1
	}
}

// coherenceSignal penalizes degenerate output: echoing the prompt back,
// heavy token repetition, and responses cut off mid-sentence.
func coherenceSignal(in input) float64 {
	v := 1.0
	if in.hints.Prompt != "" && echoesPrompt(in.lower, strings.ToLower(in.hints.Prompt)) {
		v -= 0.6
	}
	if r := uniqueWordRatio(in.lower); r < 0.3 {
		v -= 0.4
	} else if r < 0.5 {
		v -= 0.2
	}
	if looksTruncated(in.response) {
		v -= 0.2
	}
	return v
}

// echoesPrompt reports whether the response is mostly the prompt repeated.
func echoesPrompt(responseLower, promptLower string) bool {
	if len(promptLower) < 20 {
		return false
	}
	if !strings.Contains(responseLower, promptLower) {
		return false
	}
	return float64(len(promptLower)) > 0.6*float64(len(responseLower))
}

func uniqueWordRatio(lower string) float64 {
	words := strings.Fields(lower)
	if len(words) < 10 {
		return 1
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[w] = struct{}{}
	}
	return float64(len(seen)) / float64(len(words))
}

func looksTruncated(response string) bool {
	trimmed := strings.TrimRight(response, " \n\t")
	if trimmed == "" {
		return false
	}
	last := trimmed[len(trimmed)-1]
	switch last {
	case '.', '!', '?', '"', '\'', '`', ')', ']', '}', ':', ';':
		return false
	}
	// Single-line answers like "0.05" or haiku lines are fine; only flag
	// longer prose that stops mid-word.
	return len(trimmed) > 200
}

// sentenceVariety measures spread in sentence lengths, the cheap proxy for
// non-monotonous creative prose.
func sentenceVariety(response string) float64 {
	sentences := sentenceSplit.Split(response, -1)
	var lengths []float64
	for _, s := range sentences {
		if t := strings.TrimSpace(s); t != "" {
			lengths = append(lengths, float64(len(t)))
		}
	}
	if len(lengths) < 2 {
		return 0.5
	}
	mean := 0.0
	for _, l := range lengths {
		mean += l
	}
	mean /= float64(len(lengths))
	variance := 0.0
	for _, l := range lengths {
		d := l - mean
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(len(lengths)))
	if mean == 0 {
		return 0
	}
	// Coefficient of variation around 0.5 gets full credit.
	return clamp01(sd / mean * 2)
}

// proseShape checks for multiple sentences and, for longer responses,
// paragraph breaks.
func proseShape(response string) float64 {
	sentences := 0
	for _, s := range sentenceSplit.Split(response, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	v := countScore(sentences, 3)
	if len(response) > 600 && len(paragraphSplit.Split(response, -1)) < 2 {
		v *= 0.7
	}
	return v
}

// countScore maps an occurrence count onto [0,1] with full credit at want.
func countScore(got, want int) float64 {
	if want <= 0 {
		return 1
	}
	return clamp01(float64(got) / float64(want))
}
