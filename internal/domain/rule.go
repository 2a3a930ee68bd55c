// Package domain defines the core interfaces and types for Kestrel.
package domain

// Rule is one requirement of the government-services compliance code.
// The rulebook is static per deployment; rules are loaded once and never
// mutated at runtime.
type Rule struct {
	Code           string        `json:"code"` // dotted identifier, e.g. "1.7.3"
	PillarID       int           `json:"pillar_id"`
	PillarName     string        `json:"pillar_name_en"`
	CategoryNumber string        `json:"category_number"`
	Category       string        `json:"category_en"`
	Description    string        `json:"description_en"`
	DescriptionAr  string        `json:"description_ar"`
	Requirements   []Requirement `json:"requirements"`
	ImpactLevel    string        `json:"impact_level"`
	Keywords       []string      `json:"keywords_en"`
}

// Requirement is a single monitored obligation under a rule.
type Requirement struct {
	Text       string `json:"text_en"`
	Monitoring string `json:"monitoring"`
}

// Impact levels.
const (
	ImpactLow  = "low"
	ImpactHigh = "high"
)

// RuleDocument is the on-disk shape of the rule catalog source.
type RuleDocument struct {
	Rules []Rule `json:"rules"`
}
