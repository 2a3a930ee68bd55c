// Package lifecycle drives compliance cases through their state machine:
// notification, evidence rounds, reviewer verification and penalty.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opengov-labs/kestrel/internal/catalog"
	"github.com/opengov-labs/kestrel/internal/domain"
)

// defaultAcceptNotes is stored when a reviewer accepts without comment.
const defaultAcceptNotes = "Evidence accepted — case closed."

// transitions is the full state machine: any (status, action) pair absent
// from this table is rejected with a ConflictError. Evidence may be
// resubmitted from PENALTY so an entity that missed the deadline can still
// comply before the case is closed.
var transitions = map[domain.CaseStatus]map[domain.CaseAction]domain.CaseStatus{
	domain.CaseNotified: {
		domain.ActionSubmitEvidence: domain.CaseEvidenceSubmitted,
	},
	domain.CasePenalty: {
		domain.ActionSubmitEvidence: domain.CaseEvidenceSubmitted,
	},
	domain.CaseEvidenceSubmitted: {
		domain.ActionAccept: domain.CaseCompliant,
		domain.ActionReject: domain.CaseNotified,
	},
}

func nextStatus(current domain.CaseStatus, action domain.CaseAction) (domain.CaseStatus, error) {
	switch action {
	case domain.ActionSubmitEvidence, domain.ActionAccept, domain.ActionReject:
	default:
		return "", domain.Validationf("unrecognized case action: %q", action)
	}
	next, ok := transitions[current][action]
	if !ok {
		return "", domain.Conflictf("action %s not allowed from status %s", action, current)
	}
	return next, nil
}

// Service implements the case lifecycle over the repository. Every
// transition is a single compare-and-swap keyed on the current status, so
// concurrent transitions on the same case cannot both succeed.
type Service struct {
	repo    domain.Repository
	catalog *catalog.Catalog
	bus     domain.EventBus
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a lifecycle service. The bus is optional; when nil, case
// events are not published.
func New(repo domain.Repository, cat *catalog.Catalog, bus domain.EventBus) *Service {
	return &Service{
		repo:    repo,
		catalog: cat,
		bus:     bus,
		logger:  slog.Default().With("component", "lifecycle"),
		now:     time.Now,
	}
}

// CreateRequest escalates a flagged feedback record into a case. Summary
// and notification text default to generated values when empty.
type CreateRequest struct {
	FeedbackID       string `json:"feedbackId"`
	Summary          string `json:"summary,omitempty"`
	NotificationText string `json:"notificationText,omitempty"`
}

// EvidenceRequest is one evidence submission by the entity.
type EvidenceRequest struct {
	Text  string   `json:"text"`
	Files []string `json:"files,omitempty"`
}

// VerifyRequest is a reviewer verdict on submitted evidence.
type VerifyRequest struct {
	Action domain.CaseAction `json:"action"`
	Notes  string            `json:"notes,omitempty"`
}

// CaseDetail is the read model for a case: the stored case plus violated
// codes enriched from the live rule catalog, independent of the snapshot
// taken at creation time.
type CaseDetail struct {
	*domain.ComplianceCase
	Violations []domain.EnrichedViolation `json:"violations"`
	Round      int                        `json:"round"`
	Overdue    bool                       `json:"overdue"`
}

// Create opens a case for a flagged feedback record. The repository assigns
// the case number atomically and guarantees at most one case per record.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.ComplianceCase, error) {
	if strings.TrimSpace(req.FeedbackID) == "" {
		return nil, domain.Validationf("feedbackId is required")
	}

	fb, err := s.repo.GetFeedback(ctx, req.FeedbackID)
	if err != nil {
		return nil, err
	}
	if fb.Classification == nil || !fb.Classification.IsComplaint {
		return nil, domain.Validationf("feedback %s is not a flagged complaint", fb.ID)
	}
	if len(fb.Violations) == 0 {
		return nil, domain.Validationf("feedback %s has no detected violations", fb.ID)
	}

	now := s.now().UTC()
	codes := make([]string, 0, len(fb.Violations))
	for _, v := range fb.Violations {
		codes = append(codes, v.Code)
	}

	summary := req.Summary
	if summary == "" {
		summary = strings.Join(codes, ", ")
	}
	notification := req.NotificationText
	if notification == "" {
		notification = s.buildNotification(fb.Entity, codes, now.Add(domain.ResponseDeadline))
	}

	c := &domain.ComplianceCase{
		ID:               uuid.NewString(),
		FeedbackID:       fb.ID,
		Entity:           fb.Entity,
		ViolatedCodes:    fb.Violations,
		ViolationSummary: summary,
		NotificationText: notification,
		Status:           domain.CaseNotified,
		NotifiedAt:       now,
		Deadline:         now.Add(domain.ResponseDeadline),
		History:          []domain.HistoryEvent{},
		CreatedAt:        now,
	}

	if err := s.repo.CreateCase(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("case created",
		"caseId", c.ID, "caseNumber", c.CaseNumber,
		"feedbackId", c.FeedbackID, "entity", c.Entity,
		"violations", len(c.ViolatedCodes))

	s.publish(ctx, domain.TopicCaseCreated, map[string]any{
		"caseId":     c.ID,
		"caseNumber": c.CaseNumber,
		"feedbackId": c.FeedbackID,
		"entity":     c.Entity,
	})
	return c, nil
}

// SubmitEvidence records an evidence submission from the entity. Allowed
// from NOTIFIED and PENALTY; the case moves to EVIDENCE_SUBMITTED.
func (s *Service) SubmitEvidence(ctx context.Context, caseID string, req EvidenceRequest) (*domain.ComplianceCase, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, domain.Validationf("evidence text is required")
	}

	c, err := s.getPromoted(ctx, caseID)
	if err != nil {
		return nil, err
	}

	prev := c.Status
	next, err := nextStatus(prev, domain.ActionSubmitEvidence)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c.Status = next
	c.EvidenceText = req.Text
	c.EvidenceFiles = req.Files
	c.EvidenceSubmittedAt = &now
	c.History = append(c.History, domain.HistoryEvent{
		Type:      domain.EventEvidenceSubmitted,
		Timestamp: now,
		Text:      req.Text,
		Files:     req.Files,
	})

	if err := s.repo.UpdateCaseCAS(ctx, c, prev); err != nil {
		return nil, err
	}

	round := c.EvidenceRounds()
	s.logger.Info("evidence submitted", "caseId", c.ID, "round", round, "files", len(req.Files))
	s.publish(ctx, domain.TopicCaseEvidence, map[string]any{
		"caseId": c.ID,
		"entity": c.Entity,
		"round":  round,
	})
	return c, nil
}

// Verify applies a reviewer verdict. Both accept and reject require the
// case to be in EVIDENCE_SUBMITTED. Reject starts a fresh response cycle:
// the deadline is recomputed from the rejection time, not extended from the
// original notification.
func (s *Service) Verify(ctx context.Context, caseID string, req VerifyRequest) (*domain.ComplianceCase, error) {
	if req.Action == domain.ActionReject && strings.TrimSpace(req.Notes) == "" {
		return nil, domain.Validationf("rejection notes are required")
	}

	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	prev := c.Status
	next, err := nextStatus(prev, req.Action)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c.Status = next

	switch req.Action {
	case domain.ActionAccept:
		notes := req.Notes
		if notes == "" {
			notes = defaultAcceptNotes
		}
		c.ReviewerNotes = notes
		c.ResolvedAt = &now
		c.History = append(c.History, domain.HistoryEvent{
			Type:      domain.EventAccepted,
			Timestamp: now,
			Notes:     notes,
		})
	case domain.ActionReject:
		c.NotifiedAt = now
		c.Deadline = now.Add(domain.ResponseDeadline)
		c.EvidenceText = ""
		c.EvidenceFiles = nil
		c.EvidenceSubmittedAt = nil
		c.ReviewerNotes = req.Notes
		c.History = append(c.History, domain.HistoryEvent{
			Type:      domain.EventRejected,
			Timestamp: now,
			Notes:     req.Notes,
		})
	}

	if err := s.repo.UpdateCaseCAS(ctx, c, prev); err != nil {
		return nil, err
	}

	s.logger.Info("case verified", "caseId", c.ID, "action", req.Action, "status", c.Status)
	if c.Status.Terminal() {
		s.publish(ctx, domain.TopicCaseResolved, map[string]any{
			"caseId": c.ID,
			"entity": c.Entity,
			"status": string(c.Status),
		})
	}
	return c, nil
}

// Get returns a case enriched for the read surface. An overdue case still
// in NOTIFIED is promoted to PENALTY here, on read, rather than by a
// background sweep.
func (s *Service) Get(ctx context.Context, caseID string) (*CaseDetail, error) {
	c, err := s.getPromoted(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return s.detail(c), nil
}

// List returns cases for the read surface, optionally filtered by entity.
// Listing never mutates status; overdue cases are reported through the
// Overdue flag and promoted when read individually.
func (s *Service) List(ctx context.Context, entity string) ([]*CaseDetail, error) {
	cases, err := s.repo.ListCases(ctx, entity)
	if err != nil {
		return nil, err
	}
	details := make([]*CaseDetail, 0, len(cases))
	for _, c := range cases {
		details = append(details, s.detail(c))
	}
	return details, nil
}

// GetByFeedback returns the case opened for a feedback record, if any.
func (s *Service) GetByFeedback(ctx context.Context, feedbackID string) (*CaseDetail, error) {
	c, err := s.repo.GetCaseByFeedback(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	return s.detail(c), nil
}

func (s *Service) detail(c *domain.ComplianceCase) *CaseDetail {
	return &CaseDetail{
		ComplianceCase: c,
		Violations:     s.catalog.Enrich(c.ViolatedCodes),
		Round:          c.EvidenceRounds(),
		Overdue:        c.Status == domain.CasePenalty || c.Overdue(s.now().UTC()),
	}
}

// getPromoted loads a case and applies the lazy PENALTY transition when the
// response deadline has elapsed. A concurrent transition winning the CAS is
// not an error; the fresh row is re-read and returned.
func (s *Service) getPromoted(ctx context.Context, caseID string) (*domain.ComplianceCase, error) {
	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !c.Overdue(s.now().UTC()) {
		return c, nil
	}

	c.Status = domain.CasePenalty
	err = s.repo.UpdateCaseCAS(ctx, c, domain.CaseNotified)
	if err == nil {
		s.logger.Info("case moved to penalty", "caseId", c.ID, "deadline", c.Deadline)
		return c, nil
	}
	if domain.IsConflict(err) {
		return s.repo.GetCase(ctx, caseID)
	}
	return nil, err
}

func (s *Service) buildNotification(entity string, codes []string, deadline time.Time) string {
	return fmt.Sprintf(
		"Notice to %s: citizen feedback indicates potential non-compliance with %s. "+
			"Supporting evidence of corrective action must be submitted by %s.",
		entity, strings.Join(codes, ", "), deadline.Format("2 January 2006"))
}

func (s *Service) publish(ctx context.Context, topic string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, topic, data); err != nil {
		s.logger.Warn("failed to publish case event", "topic", topic, "error", err)
	}
}
