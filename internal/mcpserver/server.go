// Package mcpserver exposes the admin and analytics operations as MCP tools
// over stdio, for consumption by an assistant client.
package mcpserver

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pineapple-labs/mstyadmin/internal/calibrate"
	"github.com/pineapple-labs/mstyadmin/internal/compare"
	"github.com/pineapple-labs/mstyadmin/internal/config"
	"github.com/pineapple-labs/mstyadmin/internal/handoff"
	"github.com/pineapple-labs/mstyadmin/internal/metrics"
	"github.com/pineapple-labs/mstyadmin/internal/scoring"
	"github.com/pineapple-labs/mstyadmin/internal/trend"
)

// Version is stamped by the build; "dev" otherwise.
var Version = "dev"

// Server wires the analytics components behind the MCP tool surface. The
// metrics store is opened once at startup and closed at shutdown; every
// component receives it explicitly.
type Server struct {
	MCPServer *sdkmcp.Server

	settings  config.Settings
	store     *metrics.Store
	runner    *calibrate.Runner
	comparer  *compare.Orchestrator
	analyzer  *trend.Analyzer
	detector  *handoff.Detector
	evaluator *scoring.Evaluator
	logger    *slog.Logger
}

// Deps are the injected collaborators for NewServer.
type Deps struct {
	Settings  config.Settings
	Store     *metrics.Store
	Runner    *calibrate.Runner
	Comparer  *compare.Orchestrator
	Analyzer  *trend.Analyzer
	Detector  *handoff.Detector
	Evaluator *scoring.Evaluator
	Logger    *slog.Logger
}

// NewServer creates the MCP server and registers all tools.
func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	s := &Server{
		settings:  d.Settings,
		store:     d.Store,
		runner:    d.Runner,
		comparer:  d.Comparer,
		analyzer:  d.Analyzer,
		detector:  d.Detector,
		evaluator: d.Evaluator,
		logger:    d.Logger.With("component", "mcp"),
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "msty-admin", Version: Version},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves MCP over the given transport until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", "version", Version)
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_calibration_test",
		Description: "Run the calibration suite against a local model and record scored results. Returns a run summary with per-test detail.",
	}, s.handleRunCalibration)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "evaluate_response_quality",
		Description: "Score a model response with the heuristic quality evaluator. Deterministic; no model calls.",
	}, s.handleEvaluateQuality)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "compare_model_responses",
		Description: "Invoke several local models sequentially on one prompt and rank them by quality and speed. Failed models are included, ranked last.",
	}, s.handleCompareModels)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_model_performance_metrics",
		Description: "Compute throughput, latency, error rate, and quality trend for a model over a time window.",
	}, s.handleGetMetrics)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_calibration_history",
		Description: "List persisted calibration results, newest last, optionally filtered by model, category, or run.",
	}, s.handleCalibrationHistory)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "identify_handoff_triggers",
		Description: "Evaluate calibration history for model/category pairs whose failure rate warrants escalation to a more capable model.",
	}, s.handleIdentifyTriggers)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "detect_msty_installation",
		Description: "Detect the administered desktop installation: paths, version, running status.",
	}, s.handleDetectInstallation)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "read_msty_database",
		Description: "Read-only inspection of the administered application's database: stats, tables, or rows from one table. Credentials are redacted.",
	}, s.handleReadDatabase)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "analyse_msty_health",
		Description: "Run a health analysis of the installation: database integrity, storage, model cache, process status.",
	}, s.handleHealth)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_server_status",
		Description: "Report the admin server's own status and configuration.",
	}, s.handleServerStatus)
}
