package domain

import "time"

// ResponseDeadline is the fixed policy window an entity has to respond to a
// notification or a rejection: 20 calendar days from the triggering event.
const ResponseDeadline = 20 * 24 * time.Hour

// CaseStatus is the lifecycle state of a compliance case.
type CaseStatus string

const (
	CaseNotified          CaseStatus = "notified"
	CaseEvidenceSubmitted CaseStatus = "evidence_submitted"
	CaseCompliant         CaseStatus = "compliant"
	CaseNonCompliant      CaseStatus = "non_compliant"
	CasePenalty           CaseStatus = "penalty"
)

// Terminal reports whether no further transitions are allowed from s.
func (s CaseStatus) Terminal() bool {
	return s == CaseCompliant || s == CaseNonCompliant
}

// CaseAction is a lifecycle transition requested by a caller.
type CaseAction string

const (
	ActionSubmitEvidence CaseAction = "submit_evidence"
	ActionAccept         CaseAction = "accept"
	ActionReject         CaseAction = "reject"
)

// HistoryEventType tags entries of a case's audit trail.
type HistoryEventType string

const (
	EventEvidenceSubmitted HistoryEventType = "evidence_submitted"
	EventRejected          HistoryEventType = "rejected"
	EventAccepted          HistoryEventType = "accepted"
)

// HistoryEvent is one entry of a case's append-only audit trail. Ordering
// reflects real event order and is never rewritten.
type HistoryEvent struct {
	Type      HistoryEventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Text      string           `json:"text,omitempty"`
	Files     []string         `json:"files,omitempty"`
	Notes     string           `json:"notes,omitempty"`
}

// ComplianceCase is a formal investigation opened against an entity once a
// reviewer escalates detected violations for a feedback record. At most one
// case exists per feedback record; cases are never deleted.
type ComplianceCase struct {
	ID         string `json:"id"`
	CaseNumber string `json:"caseNumber"` // CE-<year>-<sequence>
	FeedbackID string `json:"feedbackId"`
	Entity     string `json:"entity"`

	// Snapshot of violations at escalation time. May diverge from the
	// feedback record's live violation list.
	ViolatedCodes    []Violation `json:"violatedCodes"`
	ViolationSummary string      `json:"violationSummary"`
	NotificationText string      `json:"notificationText,omitempty"`

	Status     CaseStatus `json:"status"`
	NotifiedAt time.Time  `json:"notifiedAt"`
	Deadline   time.Time  `json:"deadline"`

	EvidenceText        string     `json:"evidenceText,omitempty"`
	EvidenceFiles       []string   `json:"evidenceFiles,omitempty"`
	EvidenceSubmittedAt *time.Time `json:"evidenceSubmittedAt,omitempty"`

	ReviewerNotes string     `json:"reviewerNotes,omitempty"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`

	History   []HistoryEvent `json:"history"`
	CreatedAt time.Time      `json:"createdAt"`
}

// EvidenceRounds returns the number of evidence submissions recorded so far.
// The round number of a given submission is the count of evidence_submitted
// events up to and including it.
func (c *ComplianceCase) EvidenceRounds() int {
	n := 0
	for _, ev := range c.History {
		if ev.Type == EventEvidenceSubmitted {
			n++
		}
	}
	return n
}

// Overdue reports whether the entity missed the response deadline: the case
// still awaits evidence and the deadline has passed.
func (c *ComplianceCase) Overdue(now time.Time) bool {
	return c.Status == CaseNotified && now.After(c.Deadline)
}
