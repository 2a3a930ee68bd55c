package match

import (
	"fmt"
	"testing"

	"github.com/opengov-labs/kestrel/internal/catalog"
	"github.com/opengov-labs/kestrel/internal/domain"
)

func rankerCatalog() *catalog.Catalog {
	return catalog.NewFromRules([]domain.Rule{
		{
			Code:        "2.1.1",
			Category:    "Service Performance",
			Description: "Monitor and minimize customer waiting time at all centers",
			ImpactLevel: domain.ImpactHigh,
			Keywords:    []string{"waiting", "queue", "delay"},
		},
		{
			Code:        "2.3.1",
			Category:    "Experience Management",
			Description: "Professional staff interactions at every touchpoint",
			ImpactLevel: domain.ImpactLow,
			Keywords:    []string{"staff", "conduct", "professional"},
		},
		{
			Code:        "1.6.1",
			Category:    "Fees",
			Description: "Clarity of fees, payment, and receipts",
			ImpactLevel: domain.ImpactLow,
			Keywords:    []string{"fee", "payment", "receipt"},
		},
	})
}

func TestRankerRank(t *testing.T) {
	r := NewRanker(rankerCatalog())

	t.Run("KeywordMatchOutranksBoost", func(t *testing.T) {
		got := r.Rank(Input{
			FeedbackID:    "fb-1",
			ComplaintText: "I stood in the queue for three hours, a huge delay",
			Category:      domain.CategoryWaitingTime,
			Severity:      domain.SeverityMedium,
		})
		if len(got) == 0 {
			t.Fatal("expected candidates")
		}
		if got[0].Code != "2.1.1" {
			t.Errorf("top candidate = %s, want 2.1.1", got[0].Code)
		}
	})

	t.Run("TraitsContributeToMatching", func(t *testing.T) {
		got := r.Rank(Input{
			FeedbackID:    "fb-2",
			DislikeTraits: []string{"staff were not professional"},
			Category:      domain.CategoryEmployeeConduct,
			Severity:      domain.SeverityHigh,
		})
		found := false
		for _, rule := range got {
			if rule.Code == "2.3.1" {
				found = true
			}
		}
		if !found {
			t.Error("expected the conduct rule to match on traits alone")
		}
	})

	t.Run("UnrelatedRulesDropped", func(t *testing.T) {
		got := r.Rank(Input{
			FeedbackID:    "fb-3",
			ComplaintText: "the queue delay was unacceptable",
			Category:      domain.CategoryWaitingTime,
		})
		for _, rule := range got {
			if rule.Code == "1.6.1" {
				t.Error("fee rule should score zero for a waiting complaint")
			}
		}
	})

	t.Run("EmptyInputYieldsNothing", func(t *testing.T) {
		got := r.Rank(Input{FeedbackID: "fb-4", ComplaintText: "   "})
		if len(got) != 0 {
			t.Errorf("expected no candidates for empty input, got %d", len(got))
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		in := Input{
			FeedbackID:    "fb-5",
			ComplaintText: "waiting and the staff conduct was poor",
			Category:      domain.CategoryServiceQuality,
		}
		first := r.Rank(in)
		for i := 0; i < 5; i++ {
			again := r.Rank(in)
			if len(again) != len(first) {
				t.Fatal("ranking is not stable")
			}
			for j := range again {
				if again[j].Code != first[j].Code {
					t.Fatalf("order changed at %d: %s vs %s", j, again[j].Code, first[j].Code)
				}
			}
		}
	})
}

func TestRankerCapsCandidates(t *testing.T) {
	rules := make([]domain.Rule, 0, 30)
	for i := 0; i < 30; i++ {
		rules = append(rules, domain.Rule{
			Code:        fmt.Sprintf("9.%d.1", i),
			Description: "Monitor queue waiting time",
			Keywords:    []string{"waiting"},
		})
	}
	r := NewRanker(catalog.NewFromRules(rules))

	got := r.Rank(Input{
		FeedbackID:    "fb-cap",
		ComplaintText: "endless waiting",
		Category:      domain.CategoryWaitingTime,
	})
	if len(got) != maxCandidates {
		t.Errorf("candidate count = %d, want %d", len(got), maxCandidates)
	}
	// Ties keep catalog order.
	if got[0].Code != "9.0.1" {
		t.Errorf("tie-break lost catalog order, top = %s", got[0].Code)
	}
}
