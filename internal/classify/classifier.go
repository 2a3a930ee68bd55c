// Package classify produces the classification fields for incoming feedback.
package classify

import (
	"context"
	"regexp"
	"strings"

	"github.com/opengov-labs/kestrel/internal/domain"
)

// Input is the feedback context offered to a classifier.
type Input struct {
	FeedbackText  string
	Entity        string
	Channel       string
	DislikeTraits []string
	FeedbackType  string
}

// Classifier turns raw feedback into classification fields.
type Classifier interface {
	Classify(ctx context.Context, in Input) (*domain.Classification, error)
}

// traitCategories maps structured dislike traits to a complaint category.
var traitCategories = map[string]string{
	"Long waiting time":   domain.CategoryWaitingTime,
	"Unclear process":     domain.CategoryProcessComplexity,
	"Rude staff":          domain.CategoryEmployeeConduct,
	"Complex forms":       domain.CategoryProcessComplexity,
	"System downtime":     domain.CategoryDigitalExperience,
	"Missing information": domain.CategoryInfoClarity,
	"No follow-up":        domain.CategoryComplaintHandling,
	"Fees too high":       domain.CategoryFees,
}

// traitSeverities maps structured dislike traits to a base severity.
var traitSeverities = map[string]domain.Severity{
	"Rude staff":          domain.SeverityHigh,
	"System downtime":     domain.SeverityHigh,
	"No follow-up":        domain.SeverityHigh,
	"Complex forms":       domain.SeverityMedium,
	"Long waiting time":   domain.SeverityMedium,
	"Unclear process":     domain.SeverityMedium,
	"Missing information": domain.SeverityMedium,
	"Fees too high":       domain.SeverityMedium,
}

var categorySummaries = map[string]string{
	domain.CategoryServiceQuality:    "Citizen reported issues with overall service quality and delivery standards.",
	domain.CategoryEmployeeConduct:   "Citizen reported unprofessional or unhelpful behavior from service center staff.",
	domain.CategoryProcessComplexity: "Citizen found the service process overly complex and difficult to navigate.",
	domain.CategoryAccessibility:     "Citizen experienced accessibility barriers when trying to use the service.",
	domain.CategoryWaitingTime:       "Citizen experienced excessive waiting times at the service center.",
	domain.CategoryCommunication:     "Citizen reported lack of clear communication about service status or requirements.",
	domain.CategoryFees:              "Citizen expressed concern about the fees charged relative to the service provided.",
	domain.CategoryDigitalExperience: "Citizen encountered technical issues or poor usability in the digital service channel.",
	domain.CategoryInfoClarity:       "Citizen found the provided information insufficient or unclear.",
	domain.CategoryComplaintHandling: "Citizen reported that a previous complaint was not addressed or followed up on.",
	domain.CategoryOther:             "Citizen provided general feedback about the government service experience.",
}

// Negative and positive signal patterns cover both English and Arabic input.
var (
	negativePattern = regexp.MustCompile(`بطيئ|slow|wait|rude|complex|problem|issue|fail|error|bad|poor|unhelpful|reject|crash|لم أحصل|لا توجد|معقد|مرتفع|لم يكن`)
	positivePattern = regexp.MustCompile(`excellent|great|fast|ممتاز|رائع|سهل|محترف|سريع|good|helpful|professional`)
)

// Category inference patterns, checked in order when no traits are present.
var categoryPatterns = []struct {
	re       *regexp.Regexp
	category string
	severity domain.Severity
}{
	{regexp.MustCompile(`wait|بطيئ|انتظر`), domain.CategoryWaitingTime, domain.SeverityMedium},
	{regexp.MustCompile(`rude|unhelpful|لم يكن متعاون`), domain.CategoryEmployeeConduct, domain.SeverityHigh},
	{regexp.MustCompile(`complex|معقد|صعب`), domain.CategoryProcessComplexity, domain.SeverityMedium},
	{regexp.MustCompile(`fee|رسوم|مرتفع`), domain.CategoryFees, domain.SeverityMedium},
	{regexp.MustCompile(`system|crash|توقف|app|تطبيق`), domain.CategoryDigitalExperience, domain.SeverityHigh},
	{regexp.MustCompile(`information|معلومات|واضح`), domain.CategoryInfoClarity, domain.SeverityMedium},
}

// Heuristic is a deterministic rule-based classifier used when no external
// collaborator is configured. Same inputs always produce the same result.
type Heuristic struct{}

// NewHeuristic creates the deterministic classifier.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Classify derives sentiment, complaint status, severity, category and a
// one-line summary from the feedback type, structured traits and free text.
func (h *Heuristic) Classify(_ context.Context, in Input) (*domain.Classification, error) {
	text := strings.ToLower(in.FeedbackText)

	negative := in.FeedbackType == "complaint" ||
		len(in.DislikeTraits) > 0 ||
		negativePattern.MatchString(text)
	positive := in.FeedbackType == "compliment" || positivePattern.MatchString(text)

	isComplaint := negative && !positive

	sentiment := domain.SentimentNeutral
	if positive {
		sentiment = domain.SentimentPositive
	} else if isComplaint {
		sentiment = domain.SentimentNegative
	}

	category := domain.CategoryOther
	severity := domain.SeverityLow

	if len(in.DislikeTraits) > 0 {
		primary := in.DislikeTraits[0]
		category = domain.CategoryServiceQuality
		if c, ok := traitCategories[primary]; ok {
			category = c
		}
		severity = domain.SeverityMedium
		if s, ok := traitSeverities[primary]; ok {
			severity = s
		}
	} else if isComplaint {
		category = domain.CategoryServiceQuality
		severity = domain.SeverityMedium
		for _, p := range categoryPatterns {
			if p.re.MatchString(text) {
				category = p.category
				severity = p.severity
				break
			}
		}
	}

	// A pile of traits signals a broader failure than any single trait.
	if len(in.DislikeTraits) >= 3 {
		severity = domain.SeverityHigh
	}
	if len(in.DislikeTraits) >= 4 {
		severity = domain.SeverityCritical
	}

	summary := "Citizen provided neutral feedback about the service."
	switch {
	case isComplaint:
		summary = categorySummaries[category]
		if summary == "" {
			summary = categorySummaries[domain.CategoryOther]
		}
	case positive:
		summary = "Citizen expressed satisfaction with the government service experience."
	}

	if !isComplaint {
		severity = domain.SeverityLow
		category = domain.CategoryOther
	}

	return &domain.Classification{
		Sentiment:   sentiment,
		IsComplaint: isComplaint,
		Severity:    severity,
		Category:    category,
		Summary:     summary,
	}, nil
}
