// Package catalog provides the process-wide registry of compliance rules.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/opengov-labs/kestrel/internal/domain"
)

// placeholder shown on the read surface for codes the catalog cannot resolve.
const unknownField = "—"

// Catalog is an immutable, read-only view of the compliance rulebook.
// The source document is read lazily on first access and cached for the
// lifetime of the process; the rulebook is static per deployment so there is
// no invalidation. Construct one at startup and inject it into components.
type Catalog struct {
	path string

	once    sync.Once
	loadErr error
	rules   []domain.Rule
	byCode  map[string]domain.Rule
}

// New creates a catalog backed by the JSON rulebook document at path.
func New(path string) *Catalog {
	return &Catalog{path: path}
}

// NewFromRules creates a catalog from an in-memory rule set. Used by tests
// and embedded deployments.
func NewFromRules(rules []domain.Rule) *Catalog {
	c := &Catalog{}
	c.once.Do(func() {})
	c.index(rules)
	return c
}

func (c *Catalog) index(rules []domain.Rule) {
	c.rules = rules
	c.byCode = make(map[string]domain.Rule, len(rules))
	for _, r := range rules {
		c.byCode[r.Code] = r
	}
}

func (c *Catalog) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		c.loadErr = fmt.Errorf("read rule catalog: %w", err)
		return
	}

	var doc domain.RuleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		c.loadErr = fmt.Errorf("parse rule catalog: %w", err)
		return
	}

	c.index(doc.Rules)
}

// Load forces the one-time read of the source document. Calling Load is
// optional; Get and ListAll trigger it on first use. Concurrent first-access
// callers share a single initialization.
func (c *Catalog) Load() error {
	c.once.Do(c.load)
	return c.loadErr
}

// Get returns the rule for a code, or false when the code is absent.
func (c *Catalog) Get(code string) (domain.Rule, bool) {
	c.once.Do(c.load)
	r, ok := c.byCode[code]
	return r, ok
}

// ListAll returns every rule in catalog order.
func (c *Catalog) ListAll() []domain.Rule {
	c.once.Do(c.load)
	return c.rules
}

// Len returns the number of loaded rules.
func (c *Catalog) Len() int {
	c.once.Do(c.load)
	return len(c.rules)
}

// Enrich decorates violations with live rule data for the read surface.
// Codes missing from the catalog are soft references: they keep their stored
// fields and get placeholder rule data.
func (c *Catalog) Enrich(violations []domain.Violation) []domain.EnrichedViolation {
	out := make([]domain.EnrichedViolation, 0, len(violations))
	for _, v := range violations {
		ev := domain.EnrichedViolation{
			Violation:    v,
			Pillar:       unknownField,
			RuleCategory: unknownField,
		}
		if r, ok := c.Get(v.Code); ok {
			ev.Pillar = r.PillarName
			ev.RuleCategory = r.Category
			ev.RuleDescription = r.Description
		}
		out = append(out, ev)
	}
	return out
}
