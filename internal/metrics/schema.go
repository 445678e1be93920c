package metrics

// Schema v1. Invocations and calibrations are append-only; the only table
// that is ever updated in place is handoff_triggers, whose rows are keyed by
// (category, model).
const schemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS invocations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	model TEXT NOT NULL,
	prompt_hash TEXT NOT NULL,
	response TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL,
	completed_at TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	tokens_per_sec REAL NOT NULL DEFAULT 0,
	latency_seconds REAL NOT NULL DEFAULT 0,
	success INTEGER NOT NULL DEFAULT 1,
	error_kind TEXT NOT NULL DEFAULT '',
	error_detail TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	UNIQUE(model, prompt_hash, started_at)
);

CREATE INDEX IF NOT EXISTS idx_invocations_model_time
	ON invocations(model, started_at);

CREATE TABLE IF NOT EXISTS calibrations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL DEFAULT '',
	test_id TEXT NOT NULL,
	category TEXT NOT NULL,
	model TEXT NOT NULL,
	score REAL NOT NULL DEFAULT 0,
	passed INTEGER NOT NULL DEFAULT 0,
	invocation_id INTEGER NOT NULL DEFAULT 0,
	error_kind TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calibrations_cat_model_time
	ON calibrations(category, model, created_at);

CREATE TABLE IF NOT EXISTS handoff_triggers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category TEXT NOT NULL,
	model TEXT NOT NULL,
	failure_rate REAL NOT NULL DEFAULT 0,
	sample_count INTEGER NOT NULL DEFAULT 0,
	first_seen TEXT NOT NULL,
	last_seen TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	UNIQUE(category, model)
);
`
