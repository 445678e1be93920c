package mcpserver

import (
	"context"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pineapple-labs/mstyadmin/internal/calibrate"
	"github.com/pineapple-labs/mstyadmin/internal/compare"
	"github.com/pineapple-labs/mstyadmin/internal/handoff"
	"github.com/pineapple-labs/mstyadmin/internal/metrics"
	"github.com/pineapple-labs/mstyadmin/internal/msty"
	"github.com/pineapple-labs/mstyadmin/internal/scoring"
	"github.com/pineapple-labs/mstyadmin/internal/trend"
)

// --- run_calibration_test ---

type runCalibrationInput struct {
	Model          string   `json:"model" jsonschema:"model identifier, e.g. qwen2.5:7b"`
	Categories     []string `json:"categories,omitempty" jsonschema:"category filter (reasoning, coding, writing, analysis, creative); empty runs all"`
	SuitePath      string   `json:"suite_path,omitempty" jsonschema:"path to a YAML suite file; empty uses the builtin suite"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" jsonschema:"per-invocation timeout; 0 uses the configured default"`
}

func (s *Server) handleRunCalibration(ctx context.Context, _ *sdkmcp.CallToolRequest, input runCalibrationInput) (*sdkmcp.CallToolResult, *calibrate.RunSummary, error) {
	req := calibrate.Request{Model: input.Model}
	for _, c := range input.Categories {
		cat, err := scoring.ParseCategory(c)
		if err != nil {
			return nil, nil, err
		}
		req.Categories = append(req.Categories, cat)
	}
	if input.SuitePath != "" {
		suite, err := calibrate.LoadSuite(input.SuitePath)
		if err != nil {
			return nil, nil, err
		}
		req.Suite = suite
	}
	if input.TimeoutSeconds > 0 {
		req.Timeout = time.Duration(input.TimeoutSeconds) * time.Second
	}
	sum, err := s.runner.Run(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	return nil, sum, nil
}

// --- evaluate_response_quality ---

type evaluateQualityInput struct {
	Category  string   `json:"category,omitempty" jsonschema:"scoring category; empty means general"`
	Response  string   `json:"response" jsonschema:"the model response text to score"`
	Prompt    string   `json:"prompt,omitempty" jsonschema:"original prompt, used for echo detection"`
	Keywords  []string `json:"keywords,omitempty" jsonschema:"expected keywords"`
	Patterns  []string `json:"patterns,omitempty" jsonschema:"expected regex patterns"`
	Threshold float64  `json:"threshold,omitempty" jsonschema:"pass threshold in [0,1]; 0 uses the default"`
}

func (s *Server) handleEvaluateQuality(_ context.Context, _ *sdkmcp.CallToolRequest, input evaluateQualityInput) (*sdkmcp.CallToolResult, *scoring.Evaluation, error) {
	cat, err := scoring.ParseCategory(input.Category)
	if err != nil {
		return nil, nil, err
	}
	ev := s.evaluator.Evaluate(cat, scoring.Hints{
		Keywords: input.Keywords,
		Patterns: input.Patterns,
		Prompt:   input.Prompt,
	}, input.Response, input.Threshold)
	return nil, &ev, nil
}

// --- compare_model_responses ---

type compareModelsInput struct {
	Prompt        string   `json:"prompt" jsonschema:"prompt to send to every model"`
	Models        []string `json:"models" jsonschema:"model identifiers to compare (at least 2)"`
	Category      string   `json:"category,omitempty" jsonschema:"scoring category; empty means general"`
	QualityWeight float64  `json:"quality_weight,omitempty" jsonschema:"ranking weight for quality; defaults to 0.7"`
	SpeedWeight   float64  `json:"speed_weight,omitempty" jsonschema:"ranking weight for speed; defaults to 0.3"`
}

func (s *Server) handleCompareModels(ctx context.Context, _ *sdkmcp.CallToolRequest, input compareModelsInput) (*sdkmcp.CallToolResult, *compare.Run, error) {
	cat, err := scoring.ParseCategory(input.Category)
	if err != nil {
		return nil, nil, err
	}
	run, err := s.comparer.Compare(ctx, input.Prompt, input.Models, cat, compare.Weighting{
		Quality: input.QualityWeight,
		Speed:   input.SpeedWeight,
	})
	if err != nil {
		return nil, nil, err
	}
	return nil, run, nil
}

// --- get_model_performance_metrics ---

type getMetricsInput struct {
	Model string `json:"model,omitempty" jsonschema:"model identifier; empty aggregates all models"`
	Days  int    `json:"days,omitempty" jsonschema:"look-back window in days; default 30. Ignored when start/end are set"`
	Start string `json:"start,omitempty" jsonschema:"window start, RFC3339, inclusive"`
	End   string `json:"end,omitempty" jsonschema:"window end, RFC3339, exclusive"`
}

func (s *Server) handleGetMetrics(_ context.Context, _ *sdkmcp.CallToolRequest, input getMetricsInput) (*sdkmcp.CallToolResult, *trend.Report, error) {
	w, err := parseWindow(input.Start, input.End, input.Days)
	if err != nil {
		return nil, nil, err
	}
	rep, err := s.analyzer.Trend(input.Model, w)
	if err != nil {
		return nil, nil, err
	}
	return nil, rep, nil
}

// --- get_calibration_history ---

type calibrationHistoryInput struct {
	Model    string `json:"model,omitempty" jsonschema:"model filter"`
	Category string `json:"category,omitempty" jsonschema:"category filter"`
	RunID    string `json:"run_id,omitempty" jsonschema:"restrict to one calibration run"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum results; default 50"`
}

type calibrationHistoryOutput struct {
	Results []metrics.CalibrationResult `json:"results"`
	Count   int                         `json:"count"`
}

func (s *Server) handleCalibrationHistory(_ context.Context, _ *sdkmcp.CallToolRequest, input calibrationHistoryInput) (*sdkmcp.CallToolResult, calibrationHistoryOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}
	results, err := s.store.QueryCalibrations(metrics.CalibrationFilter{
		Model:    input.Model,
		Category: input.Category,
		RunID:    input.RunID,
		Limit:    limit,
	}, metrics.Window{})
	if err != nil {
		return nil, calibrationHistoryOutput{}, err
	}
	return nil, calibrationHistoryOutput{Results: results, Count: len(results)}, nil
}

// --- identify_handoff_triggers ---

type identifyTriggersInput struct {
	Category        string `json:"category,omitempty" jsonschema:"evaluate only this category (requires model)"`
	Model           string `json:"model,omitempty" jsonschema:"evaluate only this model (requires category)"`
	IncludeResolved bool   `json:"include_resolved,omitempty" jsonschema:"also list resolved triggers"`
}

type identifyTriggersOutput struct {
	Outcomes []handoff.Outcome        `json:"outcomes"`
	Triggers []metrics.HandoffTrigger `json:"triggers"`
}

func (s *Server) handleIdentifyTriggers(_ context.Context, _ *sdkmcp.CallToolRequest, input identifyTriggersInput) (*sdkmcp.CallToolResult, identifyTriggersOutput, error) {
	var out identifyTriggersOutput
	if input.Category != "" || input.Model != "" {
		if input.Category == "" || input.Model == "" {
			return nil, out, fmt.Errorf("category and model must be provided together")
		}
		o, err := s.detector.Evaluate(input.Category, input.Model)
		if err != nil {
			return nil, out, err
		}
		out.Outcomes = []handoff.Outcome{*o}
	} else {
		outcomes, err := s.detector.Scan()
		if err != nil {
			return nil, out, err
		}
		out.Outcomes = outcomes
	}
	triggers, err := s.store.Triggers(input.IncludeResolved)
	if err != nil {
		return nil, out, err
	}
	out.Triggers = triggers
	return nil, out, nil
}

// --- detect_msty_installation ---

type emptyInput struct{}

func (s *Server) handleDetectInstallation(_ context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, msty.Installation, error) {
	return nil, msty.DetectInstallation(), nil
}

// --- read_msty_database ---

type readDatabaseInput struct {
	QueryType string `json:"query_type,omitempty" jsonschema:"stats, tables, conversations, personas, prompts, tools, or custom; default stats"`
	Table     string `json:"table,omitempty" jsonschema:"table name for query_type=custom"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum rows; default 50"`
}

type readDatabaseOutput struct {
	QueryType   string           `json:"query_type"`
	Database    string           `json:"database_path"`
	Stats       *msty.Stats      `json:"stats,omitempty"`
	Tables      []tableInfo      `json:"tables,omitempty"`
	Rows        []map[string]any `json:"rows,omitempty"`
	SourceTable string           `json:"source_table,omitempty"`
}

type tableInfo struct {
	Name     string `json:"name"`
	RowCount int    `json:"row_count"`
}

// familyTables maps friendly query types onto table-name substrings, because
// the administered app has renamed its tables across releases.
var familyTables = map[string][]string{
	"conversations": {"chat_session", "conversation"},
	"personas":      {"persona"},
	"prompts":       {"prompt"},
	"tools":         {"tool", "mcp"},
}

func (s *Server) handleReadDatabase(_ context.Context, _ *sdkmcp.CallToolRequest, input readDatabaseInput) (*sdkmcp.CallToolResult, readDatabaseOutput, error) {
	queryType := input.QueryType
	if queryType == "" {
		queryType = "stats"
	}
	out := readDatabaseOutput{QueryType: queryType}

	paths := msty.DefaultPaths()
	if paths.Database == "" {
		return nil, out, fmt.Errorf("application database not found; has the app been run at least once?")
	}
	out.Database = paths.Database

	db, err := msty.OpenReadOnly(paths.Database)
	if err != nil {
		return nil, out, err
	}
	defer db.Close()

	switch queryType {
	case "stats":
		out.Stats, err = db.CollectStats()
	case "tables":
		var tables []string
		tables, err = db.Tables()
		for _, t := range tables {
			n, countErr := db.RowCount(t)
			if countErr != nil {
				continue
			}
			out.Tables = append(out.Tables, tableInfo{Name: t, RowCount: n})
		}
	case "conversations", "personas", "prompts", "tools":
		var table string
		table, err = db.FindTable(familyTables[queryType]...)
		if err == nil && table == "" {
			err = fmt.Errorf("no %s table found", queryType)
		}
		if err == nil {
			out.SourceTable = table
			out.Rows, err = db.Rows(table, input.Limit)
		}
	case "custom":
		if input.Table == "" {
			err = fmt.Errorf("table is required for query_type=custom")
		} else {
			out.SourceTable = input.Table
			out.Rows, err = db.Rows(input.Table, input.Limit)
		}
	default:
		err = fmt.Errorf("unknown query_type %q", queryType)
	}
	if err != nil {
		return nil, out, err
	}
	return nil, out, nil
}

// --- analyse_msty_health ---

func (s *Server) handleHealth(_ context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, *msty.HealthReport, error) {
	return nil, msty.CheckHealth(), nil
}

// --- get_server_status ---

type serverStatusOutput struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	InferenceURL string   `json:"inference_url"`
	MetricsPath  string   `json:"metrics_path"`
	Tools        []string `json:"tools"`
}

func (s *Server) handleServerStatus(_ context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, serverStatusOutput, error) {
	return nil, serverStatusOutput{
		Name:         "msty-admin",
		Version:      Version,
		InferenceURL: s.settings.InferenceURL(),
		MetricsPath:  s.settings.MetricsPath(),
		Tools: []string{
			"run_calibration_test", "evaluate_response_quality",
			"compare_model_responses", "get_model_performance_metrics",
			"get_calibration_history", "identify_handoff_triggers",
			"detect_msty_installation", "read_msty_database",
			"analyse_msty_health", "get_server_status",
		},
	}, nil
}

// parseWindow builds a half-open [start, end) window from explicit RFC3339
// bounds or a days look-back.
func parseWindow(start, end string, days int) (metrics.Window, error) {
	var w metrics.Window
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return w, fmt.Errorf("invalid start: %w", err)
		}
		w.Start = t
	}
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return w, fmt.Errorf("invalid end: %w", err)
		}
		w.End = t
	}
	if w.Start.IsZero() && w.End.IsZero() {
		if days <= 0 {
			days = 30
		}
		w.Start = time.Now().UTC().AddDate(0, 0, -days)
	}
	return w, nil
}
