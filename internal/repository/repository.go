// Package repository provides SQL-backed persistence for feedback records
// and compliance cases. A single implementation serves both SQLite
// (embedded, community tier) and PostgreSQL (pro tier) through database/sql.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opengov-labs/kestrel/internal/domain"
)

// envelopeVersion is the current schema version for JSON columns. Readers
// tolerate legacy bare arrays so older rows keep decoding after upgrades.
const envelopeVersion = 1

type violationsEnvelope struct {
	V          int                `json:"v"`
	Violations []domain.Violation `json:"violations"`
}

type historyEnvelope struct {
	V      int               `json:"v"`
	Events []json.RawMessage `json:"events"`
}

type filesEnvelope struct {
	V     int      `json:"v"`
	Files []string `json:"files"`
}

// SQLRepository implements domain.Repository over database/sql.
type SQLRepository struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// New creates a repository for the configured driver and runs migrations.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported repository driver: %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	r := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
		logger: slog.Default().With("component", "repository", "driver", cfg.Driver),
	}

	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return r, nil
}

func (r *SQLRepository) migrate() error {
	for _, stmt := range AllSchemas() {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind converts ? placeholders to $1..$n for postgres. SQLite accepts
// ? natively so queries pass through unchanged.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// --- Feedback ---

// SaveFeedback inserts a new feedback record. Classification fields are
// written if already present; most callers save raw records and classify
// later through SetClassification.
func (r *SQLRepository) SaveFeedback(ctx context.Context, f *domain.FeedbackRecord) error {
	traits, err := json.Marshal(f.DislikeTraits)
	if err != nil {
		return &domain.PersistenceError{Op: "save feedback", Err: err}
	}

	var (
		sentiment, category, severity, summary sql.NullString
		isComplaint                            bool
	)
	if f.Classification != nil {
		sentiment = nullString(string(f.Classification.Sentiment))
		category = nullString(f.Classification.Category)
		severity = nullString(string(f.Classification.Severity))
		summary = nullString(f.Classification.Summary)
		isComplaint = f.Classification.IsComplaint
	}

	query := r.rebind(`
		INSERT INTO feedback (
			id, entity, entity_ar, service_center, feedback_date, feedback_type,
			dislike_traits, dislike_comment, general_comment,
			sentiment, category, is_complaint, severity, summary,
			violations, processed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = r.db.ExecContext(ctx, query,
		f.ID, f.Entity, f.EntityAr, f.ServiceCenter, f.Date, f.Type,
		string(traits), f.DislikeText, f.GeneralText,
		sentiment, category, isComplaint, severity, summary,
		encodeViolations(f.Violations), nullTime(f.ProcessedAt), f.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return domain.Conflictf("feedback %s already exists", f.ID)
		}
		return &domain.PersistenceError{Op: "save feedback", Err: err}
	}
	return nil
}

// GetFeedback fetches a single feedback record by id.
func (r *SQLRepository) GetFeedback(ctx context.Context, id string) (*domain.FeedbackRecord, error) {
	query := r.rebind(selectFeedback + ` WHERE id = ?`)
	row := r.db.QueryRowContext(ctx, query, id)
	f, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "feedback", ID: id}
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get feedback", Err: err}
	}
	return f, nil
}

// ListEntities returns the distinct entity names present in feedback.
func (r *SQLRepository) ListEntities(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT entity FROM feedback ORDER BY entity`)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list entities", Err: err}
	}
	defer rows.Close()

	var entities []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, &domain.PersistenceError{Op: "list entities", Err: err}
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// SetClassification records analysis output for a feedback record exactly
// once. A second attempt returns a ConflictError so retried analysis runs
// can never overwrite an earlier verdict.
func (r *SQLRepository) SetClassification(ctx context.Context, id string, cls *domain.Classification, violations []domain.Violation, processedAt time.Time) error {
	query := r.rebind(`
		UPDATE feedback
		SET sentiment = ?, category = ?, is_complaint = ?, severity = ?, summary = ?,
		    violations = ?, processed_at = ?
		WHERE id = ? AND processed_at IS NULL`)

	res, err := r.db.ExecContext(ctx, query,
		string(cls.Sentiment), cls.Category, cls.IsComplaint,
		string(cls.Severity), cls.Summary,
		encodeViolations(violations), processedAt, id,
	)
	if err != nil {
		return &domain.PersistenceError{Op: "set classification", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.PersistenceError{Op: "set classification", Err: err}
	}
	if n == 0 {
		// Either the record is missing or it was already processed.
		exists, err := r.feedbackExists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return &domain.NotFoundError{Resource: "feedback", ID: id}
		}
		return domain.Conflictf("feedback %s already classified", id)
	}
	return nil
}

// DismissFeedback clears the complaint flag and violation candidates for a
// record a reviewer judged as not actionable.
func (r *SQLRepository) DismissFeedback(ctx context.Context, id string) error {
	query := r.rebind(`UPDATE feedback SET is_complaint = ?, violations = NULL WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, false, id)
	if err != nil {
		return &domain.PersistenceError{Op: "dismiss feedback", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.PersistenceError{Op: "dismiss feedback", Err: err}
	}
	if n == 0 {
		return &domain.NotFoundError{Resource: "feedback", ID: id}
	}
	return nil
}

// ListReviewQueue returns flagged complaints that carry violations and do
// not yet have a compliance case, newest first.
func (r *SQLRepository) ListReviewQueue(ctx context.Context) ([]*domain.FeedbackRecord, error) {
	query := selectFeedback + `
		WHERE is_complaint = true
		  AND violations IS NOT NULL AND violations != ''
		  AND id NOT IN (SELECT feedback_id FROM cases)
		ORDER BY created_at DESC`
	if r.driver == "sqlite" {
		query = strings.Replace(query, "is_complaint = true", "is_complaint = 1", 1)
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list review queue", Err: err}
	}
	defer rows.Close()
	return collectFeedback(rows)
}

// CountComplaintsByEntity counts classified complaints for an entity since
// the given time. Used by the velocity service for repeat-offender signals.
func (r *SQLRepository) CountComplaintsByEntity(ctx context.Context, entity string, since time.Time) (int64, error) {
	query := r.rebind(`
		SELECT COUNT(*) FROM feedback
		WHERE entity = ? AND is_complaint = ? AND processed_at >= ?`)

	var count int64
	err := r.db.QueryRowContext(ctx, query, entity, true, since).Scan(&count)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "count complaints", Err: err}
	}
	return count, nil
}

func (r *SQLRepository) feedbackExists(ctx context.Context, id string) (bool, error) {
	query := r.rebind(`SELECT 1 FROM feedback WHERE id = ?`)
	var one int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &domain.PersistenceError{Op: "check feedback", Err: err}
	}
	return true, nil
}

// --- Cases ---

// CreateCase inserts a new compliance case, allocating its case number from
// the per-year counter inside the same transaction. At most one case may
// exist per feedback record; a second attempt returns a ConflictError.
func (r *SQLRepository) CreateCase(ctx context.Context, c *domain.ComplianceCase) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.PersistenceError{Op: "create case", Err: err}
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, r.rebind(`SELECT 1 FROM cases WHERE feedback_id = ?`), c.FeedbackID).Scan(&one)
	if err == nil {
		return domain.Conflictf("case already exists for feedback %s", c.FeedbackID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return &domain.PersistenceError{Op: "create case", Err: err}
	}

	year := c.NotifiedAt.Year()
	var seq int
	err = tx.QueryRowContext(ctx, r.rebind(`
		INSERT INTO case_counters (year, next_seq) VALUES (?, 1)
		ON CONFLICT (year) DO UPDATE SET next_seq = case_counters.next_seq + 1
		RETURNING next_seq`), year).Scan(&seq)
	if err != nil {
		return &domain.PersistenceError{Op: "allocate case number", Err: err}
	}
	c.CaseNumber = fmt.Sprintf("CE-%d-%04d", year, seq)

	history, err := encodeHistory(c.History)
	if err != nil {
		return &domain.PersistenceError{Op: "create case", Err: err}
	}

	_, err = tx.ExecContext(ctx, r.rebind(`
		INSERT INTO cases (
			id, case_number, feedback_id, entity,
			violated_codes, violation_summary, notification_text,
			status, notified_at, deadline,
			evidence_text, evidence_files, evidence_submitted_at,
			reviewer_notes, resolved_at, history, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.CaseNumber, c.FeedbackID, c.Entity,
		encodeViolations(c.ViolatedCodes), c.ViolationSummary, c.NotificationText,
		string(c.Status), c.NotifiedAt, c.Deadline,
		c.EvidenceText, encodeFiles(c.EvidenceFiles), nullTime(c.EvidenceSubmittedAt),
		c.ReviewerNotes, nullTime(c.ResolvedAt), history, c.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return domain.Conflictf("case already exists for feedback %s", c.FeedbackID)
		}
		return &domain.PersistenceError{Op: "create case", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Op: "create case", Err: err}
	}
	return nil
}

// GetCase fetches a case by id.
func (r *SQLRepository) GetCase(ctx context.Context, id string) (*domain.ComplianceCase, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(selectCase+` WHERE id = ?`), id)
	c, err := r.scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "case", ID: id}
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get case", Err: err}
	}
	return c, nil
}

// GetCaseByFeedback fetches the case opened for a feedback record, if any.
func (r *SQLRepository) GetCaseByFeedback(ctx context.Context, feedbackID string) (*domain.ComplianceCase, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(selectCase+` WHERE feedback_id = ?`), feedbackID)
	c, err := r.scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "case", ID: feedbackID}
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get case by feedback", Err: err}
	}
	return c, nil
}

// ListCases returns cases newest first, optionally filtered by entity.
func (r *SQLRepository) ListCases(ctx context.Context, entity string) ([]*domain.ComplianceCase, error) {
	query := selectCase
	args := []any{}
	if entity != "" {
		query += ` WHERE entity = ?`
		args = append(args, entity)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list cases", Err: err}
	}
	defer rows.Close()

	var cases []*domain.ComplianceCase
	for rows.Next() {
		c, err := r.scanCase(rows)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "list cases", Err: err}
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// UpdateCaseCAS writes the full mutable state of a case, guarded by the
// expected current status. If another writer moved the case first the
// update affects zero rows and a ConflictError is returned.
func (r *SQLRepository) UpdateCaseCAS(ctx context.Context, c *domain.ComplianceCase, expect domain.CaseStatus) error {
	history, err := encodeHistory(c.History)
	if err != nil {
		return &domain.PersistenceError{Op: "update case", Err: err}
	}

	query := r.rebind(`
		UPDATE cases
		SET status = ?, notified_at = ?, deadline = ?,
		    evidence_text = ?, evidence_files = ?, evidence_submitted_at = ?,
		    reviewer_notes = ?, resolved_at = ?, history = ?
		WHERE id = ? AND status = ?`)

	res, err := r.db.ExecContext(ctx, query,
		string(c.Status), c.NotifiedAt, c.Deadline,
		c.EvidenceText, encodeFiles(c.EvidenceFiles), nullTime(c.EvidenceSubmittedAt),
		c.ReviewerNotes, nullTime(c.ResolvedAt), history,
		c.ID, string(expect),
	)
	if err != nil {
		return &domain.PersistenceError{Op: "update case", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.PersistenceError{Op: "update case", Err: err}
	}
	if n == 0 {
		current, getErr := r.GetCase(ctx, c.ID)
		if getErr != nil {
			return getErr
		}
		return domain.Conflictf("case %s changed concurrently (status %s, expected %s)",
			c.ID, current.Status, expect)
	}
	return nil
}

// --- Stats ---

// GetStats aggregates dashboard counters across feedback and cases.
func (r *SQLRepository) GetStats(ctx context.Context) (*domain.DashboardStats, error) {
	stats := &domain.DashboardStats{
		Sentiments:    make(map[string]int64),
		CasesByStatus: make(map[string]int64),
		CasesByEntity: make(map[string]int64),
	}

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&stats.TotalFeedback)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get stats", Err: err}
	}

	err = r.db.QueryRowContext(ctx, r.rebind(
		`SELECT COUNT(*) FROM feedback WHERE is_complaint = ?`), true).Scan(&stats.TotalComplaints)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get stats", Err: err}
	}

	err = r.db.QueryRowContext(ctx, r.rebind(
		`SELECT COUNT(*) FROM feedback WHERE is_complaint = ? AND violations IS NOT NULL AND violations != ''`),
		true).Scan(&stats.TotalWithViolations)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get stats", Err: err}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT sentiment, COUNT(*) FROM feedback WHERE sentiment IS NOT NULL GROUP BY sentiment`)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get stats", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var sentiment string
		var count int64
		if err := rows.Scan(&sentiment, &count); err != nil {
			return nil, &domain.PersistenceError{Op: "get stats", Err: err}
		}
		stats.Sentiments[sentiment] = count
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "get stats", Err: err}
	}

	statusRows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM cases GROUP BY status`)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get stats", Err: err}
	}
	defer statusRows.Close()
	for statusRows.Next() {
		var status string
		var count int64
		if err := statusRows.Scan(&status, &count); err != nil {
			return nil, &domain.PersistenceError{Op: "get stats", Err: err}
		}
		stats.CasesByStatus[status] = count
	}
	if err := statusRows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "get stats", Err: err}
	}

	entityRows, err := r.db.QueryContext(ctx, `SELECT entity, COUNT(*) FROM cases GROUP BY entity`)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get stats", Err: err}
	}
	defer entityRows.Close()
	for entityRows.Next() {
		var entity string
		var count int64
		if err := entityRows.Scan(&entity, &count); err != nil {
			return nil, &domain.PersistenceError{Op: "get stats", Err: err}
		}
		stats.CasesByEntity[entity] = count
	}
	if err := entityRows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "get stats", Err: err}
	}

	if stats.TotalComplaints > 0 {
		resolved := stats.CasesByStatus[string(domain.CaseCompliant)]
		stats.ComplianceRate = float64(resolved) / float64(stats.TotalComplaints) * 100
	}

	return stats, nil
}

// Ping verifies database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// --- Row scanning ---

const selectFeedback = `
	SELECT id, entity, entity_ar, service_center, feedback_date, feedback_type,
	       dislike_traits, dislike_comment, general_comment,
	       sentiment, category, is_complaint, severity, summary,
	       violations, processed_at, created_at
	FROM feedback`

const selectCase = `
	SELECT id, case_number, feedback_id, entity,
	       violated_codes, violation_summary, notification_text,
	       status, notified_at, deadline,
	       evidence_text, evidence_files, evidence_submitted_at,
	       reviewer_notes, resolved_at, history, created_at
	FROM cases`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeedback(row rowScanner) (*domain.FeedbackRecord, error) {
	var (
		f                                      domain.FeedbackRecord
		entityAr, serviceCenter, date, ftype   sql.NullString
		traits, dislikeText, generalText       sql.NullString
		sentiment, category, severity, summary sql.NullString
		isComplaint                            bool
		violations                             sql.NullString
		processedAt                            sql.NullTime
	)

	err := row.Scan(
		&f.ID, &f.Entity, &entityAr, &serviceCenter, &date, &ftype,
		&traits, &dislikeText, &generalText,
		&sentiment, &category, &isComplaint, &severity, &summary,
		&violations, &processedAt, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.EntityAr = entityAr.String
	f.ServiceCenter = serviceCenter.String
	f.Date = date.String
	f.Type = ftype.String
	f.DislikeText = dislikeText.String
	f.GeneralText = generalText.String

	if traits.Valid && traits.String != "" {
		if err := json.Unmarshal([]byte(traits.String), &f.DislikeTraits); err != nil {
			slog.Warn("skipping malformed dislike traits", "feedbackId", f.ID, "error", err)
		}
	}

	if processedAt.Valid {
		t := processedAt.Time
		f.ProcessedAt = &t
		f.Classification = &domain.Classification{
			Sentiment:   domain.Sentiment(sentiment.String),
			IsComplaint: isComplaint,
			Severity:    domain.Severity(severity.String),
			Category:    category.String,
			Summary:     summary.String,
		}
	}

	f.Violations = decodeViolations(f.ID, violations.String)
	return &f, nil
}

func collectFeedback(rows *sql.Rows) ([]*domain.FeedbackRecord, error) {
	var records []*domain.FeedbackRecord
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "scan feedback", Err: err}
		}
		records = append(records, f)
	}
	return records, rows.Err()
}

func (r *SQLRepository) scanCase(row rowScanner) (*domain.ComplianceCase, error) {
	var (
		c                              domain.ComplianceCase
		status                         string
		notificationText, evidenceText sql.NullString
		files, notes, history          sql.NullString
		violated                       sql.NullString
		evidenceAt, resolvedAt         sql.NullTime
	)

	err := row.Scan(
		&c.ID, &c.CaseNumber, &c.FeedbackID, &c.Entity,
		&violated, &c.ViolationSummary, &notificationText,
		&status, &c.NotifiedAt, &c.Deadline,
		&evidenceText, &files, &evidenceAt,
		&notes, &resolvedAt, &history, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = domain.CaseStatus(status)
	c.NotificationText = notificationText.String
	c.EvidenceText = evidenceText.String
	c.ReviewerNotes = notes.String
	c.ViolatedCodes = decodeViolations(c.ID, violated.String)
	c.EvidenceFiles = decodeFiles(c.ID, files.String)
	c.History = r.decodeHistory(c.ID, history.String)

	if evidenceAt.Valid {
		t := evidenceAt.Time
		c.EvidenceSubmittedAt = &t
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		c.ResolvedAt = &t
	}
	return &c, nil
}

// --- JSON envelopes ---

func encodeViolations(violations []domain.Violation) string {
	if len(violations) == 0 {
		return ""
	}
	data, err := json.Marshal(violationsEnvelope{V: envelopeVersion, Violations: violations})
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeViolations(id, raw string) []domain.Violation {
	if raw == "" {
		return nil
	}
	var env violationsEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err == nil && env.V > 0 {
		return env.Violations
	}
	// Legacy rows stored a bare array.
	var legacy []domain.Violation
	if err := json.Unmarshal([]byte(raw), &legacy); err == nil {
		return legacy
	}
	slog.Warn("skipping malformed violations column", "id", id)
	return nil
}

func encodeFiles(files []string) string {
	if len(files) == 0 {
		return ""
	}
	data, err := json.Marshal(filesEnvelope{V: envelopeVersion, Files: files})
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeFiles(id, raw string) []string {
	if raw == "" {
		return nil
	}
	var env filesEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err == nil && env.V > 0 {
		return env.Files
	}
	var legacy []string
	if err := json.Unmarshal([]byte(raw), &legacy); err == nil {
		return legacy
	}
	slog.Warn("skipping malformed evidence files column", "id", id)
	return nil
}

func encodeHistory(events []domain.HistoryEvent) (string, error) {
	raw := make([]json.RawMessage, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return "", err
		}
		raw = append(raw, data)
	}
	data, err := json.Marshal(historyEnvelope{V: envelopeVersion, Events: raw})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeHistory tolerates individual malformed entries: a bad event is
// skipped with a warning instead of failing the whole case read.
func (r *SQLRepository) decodeHistory(id, raw string) []domain.HistoryEvent {
	if raw == "" {
		return nil
	}

	var entries []json.RawMessage
	var env historyEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err == nil && env.V > 0 {
		entries = env.Events
	} else if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		r.logger.Warn("skipping malformed case history", "caseId", id)
		return nil
	}

	events := make([]domain.HistoryEvent, 0, len(entries))
	for i, entry := range entries {
		var ev domain.HistoryEvent
		if err := json.Unmarshal(entry, &ev); err != nil || ev.Type == "" {
			r.logger.Warn("skipping malformed history event", "caseId", id, "index", i)
			continue
		}
		events = append(events, ev)
	}
	return events
}

// --- helpers ---

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// isDuplicateKey matches unique constraint violations across both drivers.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
