package domain

// Confidence expresses how strongly a violation is supported by the
// complaint evidence.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid reports whether c is one of the known confidence levels.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// Violation links a complaint to a rule code believed to be breached.
// The code is a soft reference: a code missing from the catalog is tolerated
// for display but is never fabricated by the resolver.
type Violation struct {
	Code        string     `json:"code"`
	Confidence  Confidence `json:"confidence"`
	Explanation string     `json:"explanation"`
}

// EnrichedViolation is a violation decorated with live catalog data for the
// read surface. Enrichment is independent of the snapshot stored on a case.
type EnrichedViolation struct {
	Violation
	Pillar          string `json:"pillar"`
	RuleCategory    string `json:"category"`
	RuleDescription string `json:"ruleDescription"`
}
