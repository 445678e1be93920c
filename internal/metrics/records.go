package metrics

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pineapple-labs/mstyadmin/internal/sidecar"
)

// InvocationRecord is one model call as persisted in the metrics store.
// Records are immutable once appended.
type InvocationRecord struct {
	ID               int64             `json:"id"`
	Model            string            `json:"model"`
	PromptHash       string            `json:"prompt_hash"`
	Response         string            `json:"response,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	CompletedAt      time.Time         `json:"completed_at"`
	PromptTokens     int               `json:"prompt_tokens"`
	CompletionTokens int               `json:"completion_tokens"`
	TokensPerSec     float64           `json:"tokens_per_sec"`
	LatencySeconds   float64           `json:"latency_seconds"`
	Success          bool              `json:"success"`
	ErrorKind        sidecar.ErrorKind `json:"error_kind,omitempty"`
	ErrorDetail      string            `json:"error_detail,omitempty"`
	// Source tags what produced the call: "calibration", "comparison", or
	// "adhoc".
	Source string `json:"source,omitempty"`
}

// CalibrationResult is one scored test execution. Append-only.
type CalibrationResult struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	TestID       string    `json:"test_id"`
	Category     string    `json:"category"`
	Model        string    `json:"model"`
	Score        float64   `json:"score"`
	Passed       bool      `json:"passed"`
	InvocationID int64     `json:"invocation_id,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TriggerStatus is the lifecycle state of a handoff trigger.
type TriggerStatus string

const (
	TriggerActive   TriggerStatus = "active"
	TriggerResolved TriggerStatus = "resolved"
)

// HandoffTrigger records that a (category, model) pair should route work to
// a more capable system. It is the only mutable record kind in the store.
type HandoffTrigger struct {
	ID          int64         `json:"id"`
	Category    string        `json:"category"`
	Model       string        `json:"model"`
	FailureRate float64       `json:"failure_rate"`
	SampleCount int           `json:"sample_count"`
	FirstSeen   time.Time     `json:"first_seen"`
	LastSeen    time.Time     `json:"last_seen"`
	Status      TriggerStatus `json:"status"`
}

// NewInvocationRecord converts a sidecar invocation into its persisted form.
// The prompt itself is not stored, only its hash; responses are kept verbatim
// for later inspection.
func NewInvocationRecord(inv *sidecar.Invocation, source string) *InvocationRecord {
	return &InvocationRecord{
		Model:            inv.Model,
		PromptHash:       HashPrompt(inv.Prompt),
		Response:         inv.Response,
		StartedAt:        inv.StartedAt,
		CompletedAt:      inv.CompletedAt,
		PromptTokens:     inv.PromptTokens,
		CompletionTokens: inv.CompletionTokens,
		TokensPerSec:     inv.TokensPerSec,
		LatencySeconds:   inv.Latency().Seconds(),
		Success:          inv.Success,
		ErrorKind:        inv.ErrorKind,
		ErrorDetail:      inv.ErrorDetail,
		Source:           source,
	}
}

// HashPrompt returns the hex SHA-256 of a prompt. Used for the store's
// duplicate-detection key and to avoid persisting prompt text.
func HashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
