package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaFeedback = `
CREATE TABLE IF NOT EXISTS feedback (
    id TEXT PRIMARY KEY,
    entity TEXT NOT NULL,
    entity_ar TEXT,
    service_center TEXT,
    feedback_date TEXT,
    feedback_type TEXT,
    dislike_traits TEXT,
    dislike_comment TEXT,
    general_comment TEXT,
    sentiment TEXT,
    category TEXT,
    is_complaint INTEGER NOT NULL DEFAULT 0,
    severity TEXT,
    summary TEXT,
    violations TEXT,
    processed_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_entity ON feedback(entity);
CREATE INDEX IF NOT EXISTS idx_feedback_complaint ON feedback(is_complaint);
CREATE INDEX IF NOT EXISTS idx_feedback_processed ON feedback(processed_at);
`

const schemaCases = `
CREATE TABLE IF NOT EXISTS cases (
    id TEXT PRIMARY KEY,
    case_number TEXT NOT NULL UNIQUE,
    feedback_id TEXT NOT NULL UNIQUE,
    entity TEXT NOT NULL,
    violated_codes TEXT NOT NULL,
    violation_summary TEXT NOT NULL,
    notification_text TEXT,
    status TEXT NOT NULL,
    notified_at TIMESTAMP NOT NULL,
    deadline TIMESTAMP NOT NULL,
    evidence_text TEXT,
    evidence_files TEXT,
    evidence_submitted_at TIMESTAMP,
    reviewer_notes TEXT,
    resolved_at TIMESTAMP,
    history TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cases_entity ON cases(entity);
CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status);
`

// schemaCaseCounters backs the atomic case-number sequence. One row per
// calendar year; the sequence is bumped inside the case-insert transaction
// so concurrent creations can never collide.
const schemaCaseCounters = `
CREATE TABLE IF NOT EXISTS case_counters (
    year INTEGER PRIMARY KEY,
    next_seq INTEGER NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaFeedback,
		schemaCases,
		schemaCaseCounters,
	}
}
