package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opengov-labs/kestrel/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kestrel-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testFeedback(id, entity string) *domain.FeedbackRecord {
	return &domain.FeedbackRecord{
		ID:            id,
		Entity:        entity,
		EntityAr:      "الهيئة",
		ServiceCenter: "Main Center",
		Date:          "2026-08-15",
		Type:          "complaint",
		DislikeTraits: []string{"Waiting time"},
		DislikeText:   "Waited three hours and nobody helped me",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetFeedback", func(t *testing.T) {
		fb := testFeedback("fb-001", "Transport Authority")
		if err := repo.SaveFeedback(ctx, fb); err != nil {
			t.Fatalf("SaveFeedback failed: %v", err)
		}

		got, err := repo.GetFeedback(ctx, fb.ID)
		if err != nil {
			t.Fatalf("GetFeedback failed: %v", err)
		}
		if got.Entity != fb.Entity {
			t.Errorf("expected entity %s, got %s", fb.Entity, got.Entity)
		}
		if got.DislikeText != fb.DislikeText {
			t.Errorf("expected dislike text %q, got %q", fb.DislikeText, got.DislikeText)
		}
		if len(got.DislikeTraits) != 1 || got.DislikeTraits[0] != "Waiting time" {
			t.Errorf("unexpected traits: %v", got.DislikeTraits)
		}
		if got.Classification != nil {
			t.Error("expected unclassified record")
		}
	})

	t.Run("GetFeedbackNotFound", func(t *testing.T) {
		_, err := repo.GetFeedback(ctx, "missing")
		if !domain.IsNotFound(err) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("DuplicateFeedback", func(t *testing.T) {
		fb := testFeedback("fb-dup", "Transport Authority")
		if err := repo.SaveFeedback(ctx, fb); err != nil {
			t.Fatalf("SaveFeedback failed: %v", err)
		}
		err := repo.SaveFeedback(ctx, fb)
		if !domain.IsConflict(err) {
			t.Errorf("expected ConflictError, got %v", err)
		}
	})

	t.Run("SetClassificationOnce", func(t *testing.T) {
		fb := testFeedback("fb-002", "Health Authority")
		if err := repo.SaveFeedback(ctx, fb); err != nil {
			t.Fatalf("SaveFeedback failed: %v", err)
		}

		cls := &domain.Classification{
			Sentiment:   domain.SentimentNegative,
			IsComplaint: true,
			Severity:    domain.SeverityHigh,
			Category:    domain.CategoryServiceQuality,
			Summary:     "Long waiting time at the service center",
		}
		violations := []domain.Violation{
			{Code: "SD-1.2", Confidence: domain.ConfidenceHigh, Explanation: "Service delays reported"},
		}

		if err := repo.SetClassification(ctx, fb.ID, cls, violations, time.Now().UTC()); err != nil {
			t.Fatalf("SetClassification failed: %v", err)
		}

		got, err := repo.GetFeedback(ctx, fb.ID)
		if err != nil {
			t.Fatalf("GetFeedback failed: %v", err)
		}
		if got.Classification == nil {
			t.Fatal("expected classification to be set")
		}
		if got.Classification.Severity != domain.SeverityHigh {
			t.Errorf("expected severity high, got %s", got.Classification.Severity)
		}
		if len(got.Violations) != 1 || got.Violations[0].Code != "SD-1.2" {
			t.Errorf("unexpected violations: %v", got.Violations)
		}
		if got.ProcessedAt == nil {
			t.Error("expected processedAt to be set")
		}

		// Second write must fail.
		err = repo.SetClassification(ctx, fb.ID, cls, violations, time.Now().UTC())
		if !domain.IsConflict(err) {
			t.Errorf("expected ConflictError on second classification, got %v", err)
		}
	})

	t.Run("SetClassificationNotFound", func(t *testing.T) {
		cls := &domain.Classification{Sentiment: domain.SentimentNegative}
		err := repo.SetClassification(ctx, "missing", cls, nil, time.Now().UTC())
		if !domain.IsNotFound(err) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("DismissFeedback", func(t *testing.T) {
		fb := testFeedback("fb-003", "Health Authority")
		if err := repo.SaveFeedback(ctx, fb); err != nil {
			t.Fatalf("SaveFeedback failed: %v", err)
		}
		cls := &domain.Classification{
			Sentiment: domain.SentimentNegative, IsComplaint: true,
			Severity: domain.SeverityMedium, Category: domain.CategoryEmployeeConduct,
		}
		violations := []domain.Violation{{Code: "SC-2.1", Confidence: domain.ConfidenceMedium}}
		if err := repo.SetClassification(ctx, fb.ID, cls, violations, time.Now().UTC()); err != nil {
			t.Fatalf("SetClassification failed: %v", err)
		}

		if err := repo.DismissFeedback(ctx, fb.ID); err != nil {
			t.Fatalf("DismissFeedback failed: %v", err)
		}

		got, err := repo.GetFeedback(ctx, fb.ID)
		if err != nil {
			t.Fatalf("GetFeedback failed: %v", err)
		}
		if got.Classification != nil && got.Classification.IsComplaint {
			t.Error("expected complaint flag cleared")
		}
		if len(got.Violations) != 0 {
			t.Errorf("expected violations cleared, got %v", got.Violations)
		}
	})

	t.Run("ListEntities", func(t *testing.T) {
		entities, err := repo.ListEntities(ctx)
		if err != nil {
			t.Fatalf("ListEntities failed: %v", err)
		}
		if len(entities) < 2 {
			t.Errorf("expected at least 2 entities, got %v", entities)
		}
	})
}

func TestReviewQueue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	cls := &domain.Classification{
		Sentiment: domain.SentimentNegative, IsComplaint: true,
		Severity: domain.SeverityHigh, Category: domain.CategoryServiceQuality,
	}
	violations := []domain.Violation{{Code: "SD-1.2", Confidence: domain.ConfidenceHigh}}

	// Three flagged records: one stays open, one gets a case, one has no
	// violations at all.
	for _, id := range []string{"fb-q1", "fb-q2"} {
		fb := testFeedback(id, "Transport Authority")
		if err := repo.SaveFeedback(ctx, fb); err != nil {
			t.Fatalf("SaveFeedback failed: %v", err)
		}
		if err := repo.SetClassification(ctx, id, cls, violations, now); err != nil {
			t.Fatalf("SetClassification failed: %v", err)
		}
	}
	clean := testFeedback("fb-q3", "Transport Authority")
	if err := repo.SaveFeedback(ctx, clean); err != nil {
		t.Fatalf("SaveFeedback failed: %v", err)
	}
	if err := repo.SetClassification(ctx, "fb-q3", cls, nil, now); err != nil {
		t.Fatalf("SetClassification failed: %v", err)
	}

	c := &domain.ComplianceCase{
		ID:               uuid.NewString(),
		FeedbackID:       "fb-q2",
		Entity:           "Transport Authority",
		ViolatedCodes:    violations,
		ViolationSummary: "SD-1.2",
		Status:           domain.CaseNotified,
		NotifiedAt:       now,
		Deadline:         now.Add(domain.ResponseDeadline),
		CreatedAt:        now,
	}
	if err := repo.CreateCase(ctx, c); err != nil {
		t.Fatalf("CreateCase failed: %v", err)
	}

	queue, err := repo.ListReviewQueue(ctx)
	if err != nil {
		t.Fatalf("ListReviewQueue failed: %v", err)
	}
	if len(queue) != 1 {
		t.Fatalf("expected 1 queued record, got %d", len(queue))
	}
	if queue[0].ID != "fb-q1" {
		t.Errorf("expected fb-q1 in queue, got %s", queue[0].ID)
	}
}

func TestCountComplaintsByEntity(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	cls := &domain.Classification{
		Sentiment: domain.SentimentNegative, IsComplaint: true,
		Severity: domain.SeverityMedium, Category: domain.CategoryServiceQuality,
	}
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("fb-v%d", i)
		fb := testFeedback(id, "Water Authority")
		if err := repo.SaveFeedback(ctx, fb); err != nil {
			t.Fatalf("SaveFeedback failed: %v", err)
		}
		if err := repo.SetClassification(ctx, id, cls, nil, now); err != nil {
			t.Fatalf("SetClassification failed: %v", err)
		}
	}

	count, err := repo.CountComplaintsByEntity(ctx, "Water Authority", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountComplaintsByEntity failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 complaints, got %d", count)
	}

	count, err = repo.CountComplaintsByEntity(ctx, "Water Authority", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("CountComplaintsByEntity failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 complaints outside window, got %d", count)
	}
}

func TestCaseLifecyclePersistence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	fb := testFeedback("fb-case", "Transport Authority")
	if err := repo.SaveFeedback(ctx, fb); err != nil {
		t.Fatalf("SaveFeedback failed: %v", err)
	}

	newCase := func(id, feedbackID string) *domain.ComplianceCase {
		return &domain.ComplianceCase{
			ID:         id,
			FeedbackID: feedbackID,
			Entity:     "Transport Authority",
			ViolatedCodes: []domain.Violation{
				{Code: "SD-1.2", Confidence: domain.ConfidenceHigh, Explanation: "Service delays"},
			},
			ViolationSummary: "SD-1.2",
			Status:           domain.CaseNotified,
			NotifiedAt:       now,
			Deadline:         now.Add(domain.ResponseDeadline),
			CreatedAt:        now,
		}
	}

	t.Run("CreateAssignsCaseNumber", func(t *testing.T) {
		c := newCase("case-001", "fb-case")
		if err := repo.CreateCase(ctx, c); err != nil {
			t.Fatalf("CreateCase failed: %v", err)
		}
		want := fmt.Sprintf("CE-%d-0001", now.Year())
		if c.CaseNumber != want {
			t.Errorf("expected case number %s, got %s", want, c.CaseNumber)
		}
	})

	t.Run("DuplicateCaseForFeedback", func(t *testing.T) {
		c := newCase("case-002", "fb-case")
		err := repo.CreateCase(ctx, c)
		if !domain.IsConflict(err) {
			t.Errorf("expected ConflictError, got %v", err)
		}
	})

	t.Run("SequenceAdvances", func(t *testing.T) {
		fb2 := testFeedback("fb-case2", "Transport Authority")
		if err := repo.SaveFeedback(ctx, fb2); err != nil {
			t.Fatalf("SaveFeedback failed: %v", err)
		}
		c := newCase("case-003", "fb-case2")
		if err := repo.CreateCase(ctx, c); err != nil {
			t.Fatalf("CreateCase failed: %v", err)
		}
		want := fmt.Sprintf("CE-%d-0002", now.Year())
		if c.CaseNumber != want {
			t.Errorf("expected case number %s, got %s", want, c.CaseNumber)
		}
	})

	t.Run("GetCaseByFeedback", func(t *testing.T) {
		c, err := repo.GetCaseByFeedback(ctx, "fb-case")
		if err != nil {
			t.Fatalf("GetCaseByFeedback failed: %v", err)
		}
		if c.ID != "case-001" {
			t.Errorf("expected case-001, got %s", c.ID)
		}
	})

	t.Run("CASUpdate", func(t *testing.T) {
		c, err := repo.GetCase(ctx, "case-001")
		if err != nil {
			t.Fatalf("GetCase failed: %v", err)
		}

		submittedAt := now.Add(time.Hour)
		c.Status = domain.CaseEvidenceSubmitted
		c.NotifiedAt = now.Add(30 * time.Minute)
		c.Deadline = c.NotifiedAt.Add(domain.ResponseDeadline)
		c.EvidenceText = "Maintenance logs attached"
		c.EvidenceFiles = []string{"logs.pdf"}
		c.EvidenceSubmittedAt = &submittedAt
		c.History = append(c.History, domain.HistoryEvent{
			Type:      domain.EventEvidenceSubmitted,
			Timestamp: submittedAt,
			Text:      "Maintenance logs attached",
			Files:     []string{"logs.pdf"},
		})

		if err := repo.UpdateCaseCAS(ctx, c, domain.CaseNotified); err != nil {
			t.Fatalf("UpdateCaseCAS failed: %v", err)
		}

		got, err := repo.GetCase(ctx, "case-001")
		if err != nil {
			t.Fatalf("GetCase failed: %v", err)
		}
		if got.Status != domain.CaseEvidenceSubmitted {
			t.Errorf("expected status evidence_submitted, got %s", got.Status)
		}
		if len(got.History) != 1 || got.History[0].Type != domain.EventEvidenceSubmitted {
			t.Errorf("unexpected history: %+v", got.History)
		}
		if got.EvidenceSubmittedAt == nil {
			t.Error("expected evidenceSubmittedAt to be set")
		}
		if !got.NotifiedAt.Equal(c.NotifiedAt) {
			t.Errorf("notifiedAt not persisted: got %v, want %v", got.NotifiedAt, c.NotifiedAt)
		}
		if !got.Deadline.Equal(c.Deadline) {
			t.Errorf("deadline not persisted: got %v, want %v", got.Deadline, c.Deadline)
		}
	})

	t.Run("CASStaleExpectation", func(t *testing.T) {
		c, err := repo.GetCase(ctx, "case-001")
		if err != nil {
			t.Fatalf("GetCase failed: %v", err)
		}
		c.Status = domain.CaseCompliant
		err = repo.UpdateCaseCAS(ctx, c, domain.CaseNotified)
		if !domain.IsConflict(err) {
			t.Errorf("expected ConflictError on stale status, got %v", err)
		}
	})

	t.Run("ListCasesByEntity", func(t *testing.T) {
		cases, err := repo.ListCases(ctx, "Transport Authority")
		if err != nil {
			t.Fatalf("ListCases failed: %v", err)
		}
		if len(cases) != 2 {
			t.Errorf("expected 2 cases, got %d", len(cases))
		}

		all, err := repo.ListCases(ctx, "")
		if err != nil {
			t.Fatalf("ListCases failed: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 cases total, got %d", len(all))
		}

		none, err := repo.ListCases(ctx, "Unknown Entity")
		if err != nil {
			t.Fatalf("ListCases failed: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("expected no cases, got %d", len(none))
		}
	})
}

func TestEnvelopeDecoding(t *testing.T) {
	t.Run("LegacyBareArray", func(t *testing.T) {
		got := decodeViolations("x", `[{"code":"SD-1.2","confidence":"high"}]`)
		if len(got) != 1 || got[0].Code != "SD-1.2" {
			t.Errorf("unexpected decode: %v", got)
		}
	})

	t.Run("VersionedEnvelope", func(t *testing.T) {
		raw := encodeViolations([]domain.Violation{{Code: "SC-2.1", Confidence: domain.ConfidenceLow}})
		got := decodeViolations("x", raw)
		if len(got) != 1 || got[0].Code != "SC-2.1" {
			t.Errorf("unexpected round trip: %v", got)
		}
	})

	t.Run("MalformedReturnsNil", func(t *testing.T) {
		if got := decodeViolations("x", `{not json`); got != nil {
			t.Errorf("expected nil for malformed column, got %v", got)
		}
	})

	t.Run("HistorySkipsBadEvents", func(t *testing.T) {
		repo := &SQLRepository{logger: testLogger()}
		raw := `{"v":1,"events":[{"type":"evidence_submitted","timestamp":"2026-08-01T10:00:00Z"},{"bogus":true},{"type":"rejected","timestamp":"2026-08-05T10:00:00Z"}]}`
		events := repo.decodeHistory("case-x", raw)
		if len(events) != 2 {
			t.Fatalf("expected 2 valid events, got %d", len(events))
		}
		if events[0].Type != domain.EventEvidenceSubmitted || events[1].Type != domain.EventRejected {
			t.Errorf("unexpected events: %+v", events)
		}
	})
}

func TestGetStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	cls := &domain.Classification{
		Sentiment: domain.SentimentNegative, IsComplaint: true,
		Severity: domain.SeverityHigh, Category: domain.CategoryServiceQuality,
	}
	violations := []domain.Violation{{Code: "SD-1.2", Confidence: domain.ConfidenceHigh}}

	fb := testFeedback("fb-s1", "Transport Authority")
	if err := repo.SaveFeedback(ctx, fb); err != nil {
		t.Fatalf("SaveFeedback failed: %v", err)
	}
	if err := repo.SetClassification(ctx, "fb-s1", cls, violations, now); err != nil {
		t.Fatalf("SetClassification failed: %v", err)
	}

	c := &domain.ComplianceCase{
		ID: "case-s1", FeedbackID: "fb-s1", Entity: "Transport Authority",
		ViolatedCodes: violations, ViolationSummary: "SD-1.2",
		Status: domain.CaseNotified, NotifiedAt: now,
		Deadline: now.Add(domain.ResponseDeadline), CreatedAt: now,
	}
	if err := repo.CreateCase(ctx, c); err != nil {
		t.Fatalf("CreateCase failed: %v", err)
	}

	stats, err := repo.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalFeedback != 1 {
		t.Errorf("expected 1 feedback, got %d", stats.TotalFeedback)
	}
	if stats.TotalComplaints != 1 {
		t.Errorf("expected 1 complaint, got %d", stats.TotalComplaints)
	}
	if stats.TotalWithViolations != 1 {
		t.Errorf("expected 1 with violations, got %d", stats.TotalWithViolations)
	}
	if stats.CasesByStatus[string(domain.CaseNotified)] != 1 {
		t.Errorf("unexpected case stats: %v", stats.CasesByStatus)
	}
	if stats.Sentiments["negative"] != 1 {
		t.Errorf("unexpected sentiment stats: %v", stats.Sentiments)
	}
}
