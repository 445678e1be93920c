package sidecar

import "time"

// ErrorKind classifies why an invocation failed. The calibration harness and
// the comparison orchestrator record the kind instead of aborting, so a bad
// model never takes down a whole run.
type ErrorKind string

const (
	// ErrKindConnection means the inference service could not be reached.
	ErrKindConnection ErrorKind = "connection"
	// ErrKindTimeout means the bounded invocation deadline elapsed.
	ErrKindTimeout ErrorKind = "timeout"
	// ErrKindBadResponse means the service answered but the payload was not
	// usable (non-200 status, non-JSON body, empty completion envelope).
	ErrKindBadResponse ErrorKind = "bad_response"
)

// Invocation is the outcome of a single prompt/response exchange with the
// local inference service. It is produced for failures too, with Success
// false and ErrorKind set, so every attempt can be recorded.
type Invocation struct {
	Model            string
	Prompt           string
	Response         string
	StartedAt        time.Time
	CompletedAt      time.Time
	PromptTokens     int
	CompletionTokens int
	TokensPerSec     float64
	Success          bool
	ErrorKind        ErrorKind
	ErrorDetail      string
}

// Latency is the wall-clock duration of the exchange.
func (inv *Invocation) Latency() time.Duration {
	return inv.CompletedAt.Sub(inv.StartedAt)
}

// Options are generation parameters passed through to the model.
type Options struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}
