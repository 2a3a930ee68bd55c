package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opengov-labs/kestrel/internal/domain"
)

const testDocument = `{
	"rules": [
		{
			"code": "1.7.1",
			"pillar_id": 1,
			"pillar_name_en": "Service Delivery",
			"category_en": "Digital Channels",
			"description_en": "Instant digital support within service channel",
			"impact_level": "high",
			"keywords_en": ["support", "digital", "channel"]
		},
		{
			"code": "2.3.1",
			"pillar_id": 2,
			"pillar_name_en": "Customer Experience",
			"category_en": "Experience Management",
			"description_en": "Professional staff interactions at all touchpoints",
			"impact_level": "low",
			"keywords_en": ["staff", "conduct"]
		}
	]
}`

func writeTestCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write catalog file: %v", err)
	}
	return path
}

func TestCatalogLoad(t *testing.T) {
	t.Run("LoadsDocument", func(t *testing.T) {
		cat := New(writeTestCatalog(t, testDocument))

		if err := cat.Load(); err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if cat.Len() != 2 {
			t.Errorf("Len() = %d, want 2", cat.Len())
		}

		rule, ok := cat.Get("1.7.1")
		if !ok {
			t.Fatal("expected rule 1.7.1 to be present")
		}
		if rule.PillarName != "Service Delivery" {
			t.Errorf("PillarName = %q", rule.PillarName)
		}
		if rule.ImpactLevel != domain.ImpactHigh {
			t.Errorf("ImpactLevel = %q", rule.ImpactLevel)
		}
	})

	t.Run("LazyOnFirstAccess", func(t *testing.T) {
		// Get without an explicit Load still reads the document.
		cat := New(writeTestCatalog(t, testDocument))
		if _, ok := cat.Get("2.3.1"); !ok {
			t.Error("expected lazy load on first Get")
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		cat := New("/nonexistent/rules.json")
		if err := cat.Load(); err == nil {
			t.Error("expected error for missing catalog file")
		}
		if cat.Len() != 0 {
			t.Errorf("Len() = %d after failed load, want 0", cat.Len())
		}
	})

	t.Run("MalformedDocument", func(t *testing.T) {
		cat := New(writeTestCatalog(t, "{not json"))
		if err := cat.Load(); err == nil {
			t.Error("expected error for malformed catalog")
		}
	})

	t.Run("LoadErrorIsSticky", func(t *testing.T) {
		path := writeTestCatalog(t, testDocument)
		cat := New(path)
		os.Remove(path)

		if err := cat.Load(); err == nil {
			t.Fatal("expected load error")
		}
		// Restoring the file after the first load must not change anything.
		if err := os.WriteFile(path, []byte(testDocument), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := cat.Load(); err == nil {
			t.Error("expected the first load error to persist")
		}
	})
}

func TestCatalogListAll(t *testing.T) {
	cat := New(writeTestCatalog(t, testDocument))

	rules := cat.ListAll()
	if len(rules) != 2 {
		t.Fatalf("ListAll() returned %d rules, want 2", len(rules))
	}
	// Catalog order follows document order.
	if rules[0].Code != "1.7.1" || rules[1].Code != "2.3.1" {
		t.Errorf("unexpected order: %s, %s", rules[0].Code, rules[1].Code)
	}
}

func TestCatalogEnrich(t *testing.T) {
	cat := NewFromRules([]domain.Rule{
		{
			Code:        "1.7.1",
			PillarName:  "Service Delivery",
			Category:    "Digital Channels",
			Description: "Instant digital support within service channel",
		},
	})

	violations := []domain.Violation{
		{Code: "1.7.1", Confidence: domain.ConfidenceHigh, Explanation: "no support offered"},
		{Code: "9.9.9", Confidence: domain.ConfidenceLow, Explanation: "stored against a retired code"},
	}

	enriched := cat.Enrich(violations)
	if len(enriched) != 2 {
		t.Fatalf("Enrich() returned %d entries, want 2", len(enriched))
	}

	known := enriched[0]
	if known.Pillar != "Service Delivery" || known.RuleCategory != "Digital Channels" {
		t.Errorf("known code not enriched: %+v", known)
	}
	if known.Explanation != "no support offered" {
		t.Error("enrichment must preserve the stored violation fields")
	}

	// Unknown codes keep their stored fields and get placeholders.
	unknown := enriched[1]
	if unknown.Pillar != "—" || unknown.RuleCategory != "—" {
		t.Errorf("unknown code placeholders = %q, %q", unknown.Pillar, unknown.RuleCategory)
	}
	if unknown.RuleDescription != "" {
		t.Errorf("unknown code should not invent a description, got %q", unknown.RuleDescription)
	}
}
