// Package metrics is the append-only persistence layer for invocation
// outcomes, calibration results, and handoff triggers. It lives in its own
// SQLite database under the admin data directory, never inside the
// administered application's data store.
package metrics

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pineapple-labs/mstyadmin/internal/sidecar"
	_ "modernc.org/sqlite"
)

// ErrDuplicate is returned when an invocation with the same
// (model, prompt hash, start timestamp) already exists. Callers treat it as
// an absorbed no-op, not a failure.
var ErrDuplicate = errors.New("metrics: duplicate record")

// PersistenceError wraps storage failures (disk full, permissions, closed
// database). Callers must surface the computed result with recorded=false
// instead of aborting.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("metrics: %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// Window is a half-open time range [Start, End). A zero Start or End leaves
// that side unbounded, so adjacent windows partition the timeline.
type Window struct {
	Start time.Time
	End   time.Time
}

// InvocationFilter narrows QueryInvocations. Zero values match everything.
type InvocationFilter struct {
	Model  string
	Source string
}

// CalibrationFilter narrows QueryCalibrations. Zero values match everything.
type CalibrationFilter struct {
	Model    string
	Category string
	RunID    string
	Limit    int
}

// Store is the SQLite-backed metrics store. Appends are durable when the
// call returns (synchronous=FULL). A single Store is opened at process start
// and passed explicitly to every component that needs it.
type Store struct {
	db *sql.DB

	// Guards handoff trigger upserts, the one read-modify-write path.
	triggerMu sync.Mutex
}

// Open opens or creates the metrics database at path, creating the parent
// directory if needed, and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create metrics dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open metrics db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping metrics db: %w", err)
	}
	// Committed records must survive a crash immediately after append.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure metrics db: %w", err)
		}
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaV1); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	var v int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case v != schemaVersion:
		return fmt.Errorf("unsupported metrics schema version %d", v)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendInvocation durably writes one invocation record and fills in its ID.
// Returns ErrDuplicate when the (model, prompt hash, started-at) key already
// exists, or a *PersistenceError when storage is unwritable.
func (s *Store) AppendInvocation(rec *InvocationRecord) error {
	res, err := s.db.Exec(`
		INSERT INTO invocations
			(model, prompt_hash, response, started_at, completed_at,
			 prompt_tokens, completion_tokens, tokens_per_sec, latency_seconds,
			 success, error_kind, error_detail, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Model, rec.PromptHash, rec.Response,
		formatTime(rec.StartedAt), formatTime(rec.CompletedAt),
		rec.PromptTokens, rec.CompletionTokens, rec.TokensPerSec, rec.LatencySeconds,
		boolInt(rec.Success), string(rec.ErrorKind), rec.ErrorDetail, rec.Source,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return &PersistenceError{Op: "append invocation", Err: err}
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

// AppendCalibration durably writes one calibration result and fills in its ID.
func (s *Store) AppendCalibration(rec *CalibrationResult) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO calibrations
			(run_id, test_id, category, model, score, passed,
			 invocation_id, error_kind, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.TestID, rec.Category, rec.Model, rec.Score, boolInt(rec.Passed),
		rec.InvocationID, rec.ErrorKind, rec.Notes, formatTime(rec.CreatedAt),
	)
	if err != nil {
		return &PersistenceError{Op: "append calibration", Err: err}
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

// QueryInvocations returns matching records ordered ascending by start
// timestamp, ties broken by insertion order.
func (s *Store) QueryInvocations(f InvocationFilter, w Window) ([]InvocationRecord, error) {
	q := `SELECT id, model, prompt_hash, response, started_at, completed_at,
		prompt_tokens, completion_tokens, tokens_per_sec, latency_seconds,
		success, error_kind, error_detail, source
		FROM invocations WHERE 1=1`
	var args []any
	if f.Model != "" {
		q += " AND model = ?"
		args = append(args, f.Model)
	}
	if f.Source != "" {
		q += " AND source = ?"
		args = append(args, f.Source)
	}
	q, args = appendWindow(q, args, "started_at", w)
	q += " ORDER BY started_at ASC, id ASC"

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	var out []InvocationRecord
	for rows.Next() {
		var rec InvocationRecord
		var started, completed, kind string
		var success int
		if err := rows.Scan(&rec.ID, &rec.Model, &rec.PromptHash, &rec.Response,
			&started, &completed, &rec.PromptTokens, &rec.CompletionTokens,
			&rec.TokensPerSec, &rec.LatencySeconds, &success, &kind,
			&rec.ErrorDetail, &rec.Source); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		rec.StartedAt = parseTime(started)
		rec.CompletedAt = parseTime(completed)
		rec.Success = success != 0
		rec.ErrorKind = sidecar.ErrorKind(kind)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// QueryCalibrations returns matching results ordered ascending by creation
// timestamp, ties broken by insertion order.
func (s *Store) QueryCalibrations(f CalibrationFilter, w Window) ([]CalibrationResult, error) {
	q := `SELECT id, run_id, test_id, category, model, score, passed,
		invocation_id, error_kind, notes, created_at
		FROM calibrations WHERE 1=1`
	var args []any
	if f.Model != "" {
		q += " AND model = ?"
		args = append(args, f.Model)
	}
	if f.Category != "" {
		q += " AND category = ?"
		args = append(args, f.Category)
	}
	if f.RunID != "" {
		q += " AND run_id = ?"
		args = append(args, f.RunID)
	}
	q, args = appendWindow(q, args, "created_at", w)
	q += " ORDER BY created_at ASC, id ASC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return s.scanCalibrations(q, args)
}

// RecentCalibrations returns the newest n results for a (category, model)
// pair, in chronological order. Either filter may be empty.
func (s *Store) RecentCalibrations(category, model string, n int) ([]CalibrationResult, error) {
	q := `SELECT id, run_id, test_id, category, model, score, passed,
		invocation_id, error_kind, notes, created_at
		FROM calibrations WHERE 1=1`
	var args []any
	if category != "" {
		q += " AND category = ?"
		args = append(args, category)
	}
	if model != "" {
		q += " AND model = ?"
		args = append(args, model)
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, n)

	recs, err := s.scanCalibrations(q, args)
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

// CalibrationPairs returns the distinct (category, model) pairs present in
// the calibrations table, for detector sweeps.
func (s *Store) CalibrationPairs() ([][2]string, error) {
	rows, err := s.db.Query(
		"SELECT DISTINCT category, model FROM calibrations ORDER BY category, model")
	if err != nil {
		return nil, fmt.Errorf("query calibration pairs: %w", err)
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var category, model string
		if err := rows.Scan(&category, &model); err != nil {
			return nil, fmt.Errorf("scan calibration pair: %w", err)
		}
		out = append(out, [2]string{category, model})
	}
	return out, rows.Err()
}

func (s *Store) scanCalibrations(q string, args []any) ([]CalibrationResult, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query calibrations: %w", err)
	}
	defer rows.Close()

	var out []CalibrationResult
	for rows.Next() {
		var rec CalibrationResult
		var created string
		var passed int
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.TestID, &rec.Category,
			&rec.Model, &rec.Score, &passed, &rec.InvocationID,
			&rec.ErrorKind, &rec.Notes, &created); err != nil {
			return nil, fmt.Errorf("scan calibration: %w", err)
		}
		rec.Passed = passed != 0
		rec.CreatedAt = parseTime(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpsertTrigger creates or refreshes the trigger row for (category, model).
// Sample count and failure rate are overwritten; FirstSeen is preserved on
// update and the row is reactivated if it had been resolved.
func (s *Store) UpsertTrigger(category, model string, failureRate float64, sampleCount int) (*HandoffTrigger, error) {
	s.triggerMu.Lock()
	defer s.triggerMu.Unlock()

	now := time.Now().UTC()
	existing, err := s.getTrigger(category, model)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		res, err := s.db.Exec(`
			INSERT INTO handoff_triggers
				(category, model, failure_rate, sample_count, first_seen, last_seen, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			category, model, failureRate, sampleCount,
			formatTime(now), formatTime(now), string(TriggerActive),
		)
		if err != nil {
			return nil, &PersistenceError{Op: "insert trigger", Err: err}
		}
		id, _ := res.LastInsertId()
		return &HandoffTrigger{
			ID: id, Category: category, Model: model,
			FailureRate: failureRate, SampleCount: sampleCount,
			FirstSeen: now, LastSeen: now, Status: TriggerActive,
		}, nil
	}

	_, err = s.db.Exec(`
		UPDATE handoff_triggers
		SET failure_rate = ?, sample_count = ?, last_seen = ?, status = ?
		WHERE id = ?`,
		failureRate, sampleCount, formatTime(now), string(TriggerActive), existing.ID,
	)
	if err != nil {
		return nil, &PersistenceError{Op: "update trigger", Err: err}
	}
	existing.FailureRate = failureRate
	existing.SampleCount = sampleCount
	existing.LastSeen = now
	existing.Status = TriggerActive
	return existing, nil
}

// ResolveTrigger marks the trigger for (category, model) resolved and resets
// its sample count. Resolving a missing or already-resolved trigger is a
// no-op.
func (s *Store) ResolveTrigger(category, model string) error {
	s.triggerMu.Lock()
	defer s.triggerMu.Unlock()

	_, err := s.db.Exec(`
		UPDATE handoff_triggers
		SET status = ?, sample_count = 0, last_seen = ?
		WHERE category = ? AND model = ? AND status = ?`,
		string(TriggerResolved), formatTime(time.Now().UTC()),
		category, model, string(TriggerActive),
	)
	if err != nil {
		return &PersistenceError{Op: "resolve trigger", Err: err}
	}
	return nil
}

// Trigger returns the trigger row for (category, model), or nil when none
// exists.
func (s *Store) Trigger(category, model string) (*HandoffTrigger, error) {
	s.triggerMu.Lock()
	defer s.triggerMu.Unlock()
	return s.getTrigger(category, model)
}

// Triggers lists trigger rows, optionally including resolved ones, ordered by
// failure rate descending.
func (s *Store) Triggers(includeResolved bool) ([]HandoffTrigger, error) {
	q := `SELECT id, category, model, failure_rate, sample_count,
		first_seen, last_seen, status FROM handoff_triggers`
	if !includeResolved {
		q += " WHERE status = 'active'"
	}
	q += " ORDER BY failure_rate DESC, category ASC, model ASC"

	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("query triggers: %w", err)
	}
	defer rows.Close()

	var out []HandoffTrigger
	for rows.Next() {
		var t HandoffTrigger
		var first, last, status string
		if err := rows.Scan(&t.ID, &t.Category, &t.Model, &t.FailureRate,
			&t.SampleCount, &first, &last, &status); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		t.FirstSeen = parseTime(first)
		t.LastSeen = parseTime(last)
		t.Status = TriggerStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) getTrigger(category, model string) (*HandoffTrigger, error) {
	var t HandoffTrigger
	var first, last, status string
	err := s.db.QueryRow(`
		SELECT id, category, model, failure_rate, sample_count,
			first_seen, last_seen, status
		FROM handoff_triggers WHERE category = ? AND model = ?`,
		category, model,
	).Scan(&t.ID, &t.Category, &t.Model, &t.FailureRate, &t.SampleCount,
		&first, &last, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trigger: %w", err)
	}
	t.FirstSeen = parseTime(first)
	t.LastSeen = parseTime(last)
	t.Status = TriggerStatus(status)
	return &t, nil
}

func appendWindow(q string, args []any, column string, w Window) (string, []any) {
	if !w.Start.IsZero() {
		q += " AND " + column + " >= ?"
		args = append(args, formatTime(w.Start))
	}
	if !w.End.IsZero() {
		q += " AND " + column + " < ?"
		args = append(args, formatTime(w.End))
	}
	return q, args
}

// timeLayout is fixed-width: nanoseconds are always printed with all nine
// digits. Timestamps are TEXT columns compared lexicographically in SQL, and
// RFC3339Nano drops trailing zeros, which would sort "...00Z" after
// "...00.5Z" and corrupt window bounds and ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
