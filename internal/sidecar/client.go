// Package sidecar talks to the local inference service that fronts the
// administered application's models. The service speaks the Ollama HTTP API;
// this client only uses the non-streaming generate endpoint because the
// analytics engine needs complete responses with final token counts.
package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// minLatency floors the latency used for the tokens/sec computation so a
// cached or trivially short response does not report absurd throughput.
const minLatency = 100 * time.Millisecond

// Client invokes named local models over the sidecar's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the inference service at baseURL.
// The timeout bounds each invocation; pass 0 to rely on context deadlines.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:11434"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "sidecar"),
	}
}

type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *Options `json:"options,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`

	PromptEvalCount int   `json:"prompt_eval_count,omitempty"`
	EvalCount       int   `json:"eval_count,omitempty"`
	EvalDuration    int64 `json:"eval_duration,omitempty"`
	TotalDuration   int64 `json:"total_duration,omitempty"`
}

// Generate sends one prompt to one model and waits for the full response.
// The returned Invocation is populated even when err is non-nil: Success is
// false and ErrorKind/ErrorDetail describe the failure, so the caller can
// record the attempt either way.
func (c *Client) Generate(ctx context.Context, model, prompt string, opts *Options) (*Invocation, error) {
	inv := &Invocation{
		Model:     model,
		Prompt:    prompt,
		StartedAt: time.Now(),
	}

	body, err := json.Marshal(generateRequest{Model: model, Prompt: prompt, Stream: false, Options: opts})
	if err != nil {
		return c.fail(inv, ErrKindBadResponse, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return c.fail(inv, ErrKindConnection, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(inv, classifyTransportError(err), fmt.Errorf("invoke %s: %w", model, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return c.fail(inv, ErrKindBadResponse, fmt.Errorf("invoke %s: status %d: %s", model, resp.StatusCode, bytes.TrimSpace(detail)))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return c.fail(inv, ErrKindBadResponse, fmt.Errorf("decode response: %w", err))
	}

	inv.CompletedAt = time.Now()
	inv.Response = gr.Response
	inv.PromptTokens = gr.PromptEvalCount
	inv.CompletionTokens = gr.EvalCount
	inv.TokensPerSec = tokensPerSecond(gr.EvalCount, gr.EvalDuration, inv.Latency())
	inv.Success = true

	c.logger.Debug("invocation complete",
		"model", model,
		"latency_ms", inv.Latency().Milliseconds(),
		"completion_tokens", inv.CompletionTokens,
		"tokens_per_sec", inv.TokensPerSec,
	)
	return inv, nil
}

// Ping reports whether the inference service is reachable at all. The
// calibration harness uses it to tell a dead service apart from individual
// model failures.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inference service unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) fail(inv *Invocation, kind ErrorKind, err error) (*Invocation, error) {
	inv.CompletedAt = time.Now()
	inv.Success = false
	inv.ErrorKind = kind
	inv.ErrorDetail = err.Error()
	c.logger.Debug("invocation failed", "model", inv.Model, "kind", string(kind), "err", err)
	return inv, err
}

// tokensPerSecond prefers the service-reported eval duration and falls back
// to wall-clock latency. Latency is floored at minLatency.
func tokensPerSecond(tokens int, evalDurationNs int64, latency time.Duration) float64 {
	if tokens <= 0 {
		return 0
	}
	d := time.Duration(evalDurationNs)
	if d <= 0 {
		d = latency
	}
	if d < minLatency {
		d = minLatency
	}
	return float64(tokens) / d.Seconds()
}

func classifyTransportError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}
	// http.Client wraps timeouts in a *url.Error with Timeout() true.
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return ErrKindTimeout
	}
	return ErrKindConnection
}
