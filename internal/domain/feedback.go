package domain

import "time"

// Sentiment of a feedback record as judged by classification.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Severity of a complaint.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityRank orders severities for review queues: critical first, then
// high, medium, low. Unknown severities sort last.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return 9
}

// Feedback categories produced by classification.
const (
	CategoryServiceQuality    = "service_quality"
	CategoryEmployeeConduct   = "employee_conduct"
	CategoryProcessComplexity = "process_complexity"
	CategoryAccessibility     = "accessibility"
	CategoryWaitingTime       = "waiting_time"
	CategoryCommunication     = "communication"
	CategoryFees              = "fees"
	CategoryDigitalExperience = "digital_experience"
	CategoryInfoClarity       = "information_clarity"
	CategoryComplaintHandling = "complaint_handling"
	CategoryOther             = "other"
)

// Classification is the output of the language-understanding step. It is
// written to a feedback record exactly once.
type Classification struct {
	Sentiment   Sentiment `json:"sentiment"`
	IsComplaint bool      `json:"isComplaint"`
	Severity    Severity  `json:"severity"`
	Category    string    `json:"category"`
	Summary     string    `json:"summary"`
}

// FeedbackRecord is a single citizen submission about a government service.
type FeedbackRecord struct {
	ID            string    `json:"id"`
	Entity        string    `json:"entity"`
	EntityAr      string    `json:"entityAr,omitempty"`
	ServiceCenter string    `json:"serviceCenter,omitempty"`
	Date          string    `json:"date,omitempty"` // YYYY-MM-DD
	Type          string    `json:"type,omitempty"` // complaint, compliment, suggestion
	DislikeTraits []string  `json:"dislikeTraits,omitempty"`
	DislikeText   string    `json:"dislikeText,omitempty"`
	GeneralText   string    `json:"generalText,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`

	// Set once by the analysis pipeline; cleared only by an explicit dismiss.
	Classification *Classification `json:"classification,omitempty"`
	Violations     []Violation     `json:"violations,omitempty"`
	ProcessedAt    *time.Time      `json:"processedAt,omitempty"`
}

// ComplaintText returns the text the pipeline classifies and matches against:
// the dislike comment when present, otherwise the general comment.
func (f *FeedbackRecord) ComplaintText() string {
	if f.DislikeText != "" {
		return f.DislikeText
	}
	return f.GeneralText
}

// Flagged reports whether the record sits in the reviewer queue: a confirmed
// complaint with at least one detected violation.
func (f *FeedbackRecord) Flagged() bool {
	return f.Classification != nil && f.Classification.IsComplaint && len(f.Violations) > 0
}
