package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/pineapple-labs/mstyadmin/internal/calibrate"
	"github.com/pineapple-labs/mstyadmin/internal/compare"
	"github.com/pineapple-labs/mstyadmin/internal/config"
	"github.com/pineapple-labs/mstyadmin/internal/handoff"
	"github.com/pineapple-labs/mstyadmin/internal/metrics"
	"github.com/pineapple-labs/mstyadmin/internal/scoring"
	"github.com/pineapple-labs/mstyadmin/internal/sidecar"
	"github.com/pineapple-labs/mstyadmin/internal/trend"
)

// components holds the wired analytics engine. The metrics store is opened
// once here and closed by Close; every component shares the same handle.
type components struct {
	settings  config.Settings
	store     *metrics.Store
	client    *sidecar.Client
	evaluator *scoring.Evaluator
	runner    *calibrate.Runner
	comparer  *compare.Orchestrator
	analyzer  *trend.Analyzer
	detector  *handoff.Detector
	logger    *slog.Logger
}

func buildComponents() (*components, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	store, err := metrics.Open(settings.MetricsPath())
	if err != nil {
		return nil, fmt.Errorf("open metrics store: %w", err)
	}

	logger := slog.Default()
	client := sidecar.NewClient(settings.InferenceURL(), settings.Timeout, logger)
	evaluator := scoring.NewEvaluator(settings.MaxResponseBytes)

	return &components{
		settings:  settings,
		store:     store,
		client:    client,
		evaluator: evaluator,
		runner:    calibrate.NewRunner(client, evaluator, store, settings.Timeout, logger),
		comparer:  compare.NewOrchestrator(client, evaluator, store, settings.Timeout, logger),
		analyzer:  trend.NewAnalyzer(store, settings.TrendMinSamples),
		detector: handoff.NewDetector(store, handoff.Options{
			FailureRate: settings.HandoffFailureRate,
			Window:      settings.HandoffWindow,
			MinSamples:  settings.HandoffMinSamples,
		}, logger),
		logger: logger,
	}, nil
}

func (c *components) Close() error {
	return c.store.Close()
}

// printJSON writes v to stdout as indented JSON. All subcommands report in
// JSON so output can be piped into jq or consumed by scripts.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
