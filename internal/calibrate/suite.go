// Package calibrate drives the standard test suite against local models and
// records scored results in the metrics store.
package calibrate

import (
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/pineapple-labs/mstyadmin/internal/scoring"
)

// TestCase is one calibration prompt. Cases are read-only at run time; a
// suite's declared order is the execution order, stable across runs.
type TestCase struct {
	ID        string           `yaml:"id"`
	Category  scoring.Category `yaml:"category"`
	Prompt    string           `yaml:"prompt"`
	Hints     scoring.Hints    `yaml:"-"`
	Threshold float64          `yaml:"threshold,omitempty"`

	// Expect is the raw hints block from a YAML suite file; it is decoded
	// into Hints on load so suite authors get keyword/pattern validation
	// errors at load time, not mid-run.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Suite is an ordered set of calibration test cases.
type Suite struct {
	Name  string     `yaml:"name"`
	Cases []TestCase `yaml:"cases"`
}

// LoadSuite reads a YAML suite file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse suite: %w", err)
	}
	if len(s.Cases) == 0 {
		return nil, fmt.Errorf("suite %q has no cases", path)
	}
	for i := range s.Cases {
		c := &s.Cases[i]
		if c.ID == "" {
			return nil, fmt.Errorf("suite case %d has no id", i)
		}
		if c.Prompt == "" {
			return nil, fmt.Errorf("suite case %q has no prompt", c.ID)
		}
		cat, err := scoring.ParseCategory(string(c.Category))
		if err != nil {
			return nil, fmt.Errorf("suite case %q: %w", c.ID, err)
		}
		c.Category = cat
		if c.Expect != nil {
			if err := mapstructure.Decode(c.Expect, &c.Hints); err != nil {
				return nil, fmt.Errorf("suite case %q expect block: %w", c.ID, err)
			}
		}
	}
	return &s, nil
}

// Filter returns the cases matching the requested categories, preserving
// suite order. An empty category list keeps everything.
func (s *Suite) Filter(categories []scoring.Category) []TestCase {
	if len(categories) == 0 {
		return s.Cases
	}
	want := map[scoring.Category]bool{}
	for _, c := range categories {
		want[c] = true
	}
	var out []TestCase
	for _, tc := range s.Cases {
		if want[tc.Category] {
			out = append(out, tc)
		}
	}
	return out
}

// BuiltinSuite is the standard calibration suite: two prompts per category.
// The prompts are fixed so score history stays comparable across runs.
func BuiltinSuite() *Suite {
	return &Suite{
		Name: "builtin",
		Cases: []TestCase{
			{
				ID:       "reasoning-bat-ball",
				Category: scoring.CategoryReasoning,
				Prompt:   "A bat and a ball cost $1.10 in total. The bat costs $1.00 more than the ball. How much does the ball cost? Explain your reasoning step by step.",
				Hints: scoring.Hints{
					Keywords: []string{"0.05", "cents"},
					Patterns: []string{`\$?\s*0?\.05|5\s*cents`},
				},
			},
			{
				ID:       "reasoning-widgets",
				Category: scoring.CategoryReasoning,
				Prompt:   "If it takes 5 machines 5 minutes to make 5 widgets, how long would it take 100 machines to make 100 widgets? Show your work.",
				Hints: scoring.Hints{
					Keywords: []string{"5 minutes"},
					Patterns: []string{`\b5\s*minutes\b`},
				},
			},
			{
				ID:       "coding-palindrome",
				Category: scoring.CategoryCoding,
				Prompt:   "Write a Python function that finds the longest palindromic substring in a given string. Include comments explaining your approach.",
				Hints: scoring.Hints{
					Keywords: []string{"def", "palindrom", "return"},
				},
			},
			{
				ID:       "coding-lru-cache",
				Category: scoring.CategoryCoding,
				Prompt:   "Implement a simple LRU cache in Python with O(1) get and put operations.",
				Hints: scoring.Hints{
					Keywords: []string{"class", "get", "put"},
					Patterns: []string{`O\(1\)|OrderedDict|dict`},
				},
			},
			{
				ID:       "writing-decline-email",
				Category: scoring.CategoryWriting,
				Prompt:   "Write a professional email declining a meeting invitation due to a scheduling conflict. Keep it concise and courteous.",
				Hints: scoring.Hints{
					Keywords: []string{"thank", "conflict", "schedul"},
				},
			},
			{
				ID:       "writing-renewables",
				Category: scoring.CategoryWriting,
				Prompt:   "Summarise the key benefits of renewable energy in 100 words or less, using British English spelling.",
				Hints: scoring.Hints{
					Keywords: []string{"renewable", "energy"},
				},
			},
			{
				ID:       "analysis-cloud-migration",
				Category: scoring.CategoryAnalysis,
				Prompt:   "What are the potential risks and benefits of a company moving from on-premises infrastructure to cloud computing? Provide a balanced analysis.",
				Hints: scoring.Hints{
					Keywords: []string{"risk", "benefit", "cloud", "cost"},
				},
			},
			{
				ID:       "analysis-architecture",
				Category: scoring.CategoryAnalysis,
				Prompt:   "Compare and contrast microservices and monolithic architecture. When would you recommend each approach?",
				Hints: scoring.Hints{
					Keywords: []string{"microservice", "monolith", "scal"},
				},
			},
			{
				ID:       "creative-story-opening",
				Category: scoring.CategoryCreative,
				Prompt:   "Write a short story opening (100 words) that hooks the reader immediately.",
			},
			{
				ID:       "creative-ai-haiku",
				Category: scoring.CategoryCreative,
				Prompt:   "Create a haiku about artificial intelligence.",
				Hints: scoring.Hints{
					Patterns: []string{`(?s)\S.*\n.*\S.*\n.*\S`},
				},
			},
		},
	}
}
