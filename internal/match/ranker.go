// Package match narrows a complaint down to a bounded set of candidate rule
// violations and resolves them into a final, conservative violation list.
package match

import (
	"sort"
	"strings"

	"github.com/opengov-labs/kestrel/internal/catalog"
	"github.com/opengov-labs/kestrel/internal/domain"
)

// maxCandidates bounds the judgment surface offered to the resolver.
const maxCandidates = 20

// Scoring weights for candidate ranking.
const (
	keywordWeight = 3
	boostWeight   = 2
	impactWeight  = 1
)

// categoryBoosts maps a complaint category to terms that raise the score of
// rules mentioning them. Fixed lookup table; matching is case-insensitive
// substring matching.
var categoryBoosts = map[string][]string{
	domain.CategoryWaitingTime:       {"waiting", "time", "queue", "delay", "speed", "SLA"},
	domain.CategoryEmployeeConduct:   {"staff", "employee", "behavior", "conduct", "training", "professional"},
	domain.CategoryProcessComplexity: {"process", "journey", "simplif", "form", "step", "requirement"},
	domain.CategoryAccessibility:     {"accessibility", "WCAG", "disability", "language", "translation"},
	domain.CategoryCommunication:     {"communication", "notification", "update", "inform", "response"},
	domain.CategoryFees:              {"fee", "payment", "cost", "receipt", "charge", "refund"},
	domain.CategoryDigitalExperience: {"digital", "website", "app", "system", "online", "channel", "technical"},
	domain.CategoryInfoClarity:       {"information", "content", "clarity", "guide", "help", "FAQ"},
	domain.CategoryComplaintHandling: {"complaint", "feedback", "grievance", "escalation", "resolution", "follow"},
	domain.CategoryServiceQuality:    {"service", "quality", "standard", "performance", "monitoring"},
}

// Input carries the complaint context through ranking and resolution.
type Input struct {
	FeedbackID    string
	ComplaintText string
	Entity        string
	Channel       string
	DislikeTraits []string
	Category      string
	Severity      domain.Severity
}

// Ranker scores and shortlists candidate rules for a complaint.
type Ranker struct {
	catalog *catalog.Catalog
}

// NewRanker creates a ranker over the given catalog.
func NewRanker(cat *catalog.Catalog) *Ranker {
	return &Ranker{catalog: cat}
}

type scoredRule struct {
	rule  domain.Rule
	score int
}

// Rank returns up to maxCandidates rules ordered by descending relevance.
// Scoring is deterministic: keyword overlap with the complaint text weighs 3,
// category boost-term overlap with the rule text weighs 2, high impact adds 1.
// Zero-score rules are dropped; ties keep catalog order. Empty complaint
// input yields an empty list rather than invented matches.
func (r *Ranker) Rank(in Input) []domain.Rule {
	if strings.TrimSpace(in.ComplaintText) == "" && len(in.DislikeTraits) == 0 {
		return nil
	}

	parts := append([]string{in.ComplaintText, in.Category}, in.DislikeTraits...)
	text := strings.ToLower(strings.Join(parts, " "))

	boosts := categoryBoosts[in.Category]

	var scored []scoredRule
	for _, rule := range r.catalog.ListAll() {
		score := 0

		for _, kw := range rule.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				score += keywordWeight
			}
		}

		ruleText := strings.ToLower(strings.Join(append([]string{rule.Description, rule.Category}, rule.Keywords...), " "))
		for _, kw := range boosts {
			if strings.Contains(ruleText, strings.ToLower(kw)) {
				score += boostWeight
			}
		}

		if rule.ImpactLevel == domain.ImpactHigh {
			score += impactWeight
		}

		if score > 0 {
			scored = append(scored, scoredRule{rule: rule, score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > maxCandidates {
		scored = scored[:maxCandidates]
	}

	out := make([]domain.Rule, len(scored))
	for i, s := range scored {
		out[i] = s.rule
	}
	return out
}
