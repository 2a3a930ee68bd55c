// Package policy provides the CEL-based escalation policy engine.
// Policies are boolean expressions over a feedback record's classification
// output; the highest matching priority orders the reviewer queue within a
// severity band.
package policy

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opengov-labs/kestrel/internal/domain"
)

// Policy is one reviewer prioritization rule.
type Policy struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// CEL expression evaluating to bool
	Expression string `json:"expression"`

	// Priority assigned when the expression matches; highest match wins.
	Priority int `json:"priority"`

	// Whether the policy is active
	Enabled bool `json:"enabled"`
}

// CompiledPolicy holds a pre-compiled CEL program.
type CompiledPolicy struct {
	Policy  Policy
	Program cel.Program
}

// Engine evaluates escalation policies against classified feedback.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*CompiledPolicy
}

// NewEngine creates a policy engine with the classification variables bound.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("severity", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("sentiment", cel.StringType),
		cel.Variable("is_complaint", cel.BoolType),
		cel.Variable("violation_count", cel.IntType),
		cel.Variable("recent_complaints", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		compiled: make(map[string]*CompiledPolicy),
	}, nil
}

func (e *Engine) compile(p Policy) (*CompiledPolicy, error) {
	ast, issues := e.env.Compile(p.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile policy %s: %w", p.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy %s: expression must evaluate to bool, got %s", p.ID, ast.OutputType())
	}

	prog, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program policy %s: %w", p.ID, err)
	}

	return &CompiledPolicy{Policy: p, Program: prog}, nil
}

// LoadPolicy compiles and loads a single policy into the engine.
func (e *Engine) LoadPolicy(p Policy) error {
	compiled, err := e.compile(p)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled[p.ID] = compiled
	return nil
}

// LoadPolicies compiles and loads all enabled policies.
func (e *Engine) LoadPolicies(policies []Policy) error {
	for _, p := range policies {
		if p.Enabled {
			if err := e.LoadPolicy(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// PolicyCount returns the number of loaded policies.
func (e *Engine) PolicyCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Input holds the classified feedback context a policy evaluates against.
type Input struct {
	Classification   domain.Classification
	ViolationCount   int
	RecentComplaints int64
}

// Evaluate returns the highest priority among matching policies, or zero
// when none match. A policy that fails to evaluate is skipped; a broken
// policy must not block review.
func (e *Engine) Evaluate(in Input) int {
	e.mu.RLock()
	compiled := make([]*CompiledPolicy, 0, len(e.compiled))
	for _, p := range e.compiled {
		compiled = append(compiled, p)
	}
	e.mu.RUnlock()

	activation := map[string]any{
		"severity":          string(in.Classification.Severity),
		"category":          in.Classification.Category,
		"sentiment":         string(in.Classification.Sentiment),
		"is_complaint":      in.Classification.IsComplaint,
		"violation_count":   int64(in.ViolationCount),
		"recent_complaints": in.RecentComplaints,
	}

	best := 0
	for _, p := range compiled {
		out, _, err := p.Program.Eval(activation)
		if err != nil {
			slog.Debug("policy evaluation failed", "policy", p.Policy.ID, "error", err)
			continue
		}
		if out == types.True && p.Policy.Priority > best {
			best = p.Policy.Priority
		}
	}
	return best
}

// Defaults returns the built-in escalation policies.
func Defaults() []Policy {
	return []Policy{
		{
			ID:         "critical-severity",
			Name:       "Critical severity complaints",
			Expression: `is_complaint && severity == "critical"`,
			Priority:   100,
			Enabled:    true,
		},
		{
			ID:          "repeat-offender",
			Name:        "Entity with a complaint spike",
			Description: "Entities accumulating complaints in the recent window surface first.",
			Expression:  `is_complaint && recent_complaints >= 5`,
			Priority:    80,
			Enabled:     true,
		},
		{
			ID:         "conduct-high",
			Name:       "High-severity staff conduct",
			Expression: `category == "employee_conduct" && severity == "high"`,
			Priority:   60,
			Enabled:    true,
		},
		{
			ID:         "high-severity",
			Name:       "High severity complaints",
			Expression: `is_complaint && severity == "high"`,
			Priority:   50,
			Enabled:    true,
		},
		{
			ID:         "broad-violation",
			Name:       "Many rules implicated",
			Expression: `violation_count >= 3`,
			Priority:   40,
			Enabled:    true,
		},
	}
}
