package match

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/opengov-labs/kestrel/internal/domain"
)

// Judge is the external language-understanding collaborator. Given the
// complaint context and a candidate rule list it returns the rules it finds
// genuinely violated, in order. The contract is conservative: only rules with
// explicit textual evidence in the complaint, and an empty list is a valid
// and expected outcome.
type Judge interface {
	Judge(ctx context.Context, req *JudgeRequest) ([]domain.Violation, error)
}

// JudgeRequest is the input contract for the external collaborator.
type JudgeRequest struct {
	ComplaintText  string          `json:"complaintText"`
	Entity         string          `json:"entity"`
	Channel        string          `json:"channel,omitempty"`
	DislikeTraits  []string        `json:"traits,omitempty"`
	Category       string          `json:"category"`
	Severity       domain.Severity `json:"severity"`
	CandidateRules []CandidateRule `json:"candidateRules"`
}

// CandidateRule is the reduced rule view offered to the collaborator.
type CandidateRule struct {
	Code         string   `json:"code"`
	Category     string   `json:"category"`
	Description  string   `json:"description"`
	Impact       string   `json:"impact"`
	Requirements []string `json:"requirements"`
}

// Resolver turns shortlisted candidates into a final violation list, either
// through the external judge or the deterministic fallback policy.
type Resolver struct {
	ranker  *Ranker
	judge   Judge // nil selects the deterministic fallback
	timeout time.Duration
	bus     domain.EventBus // optional, for sanitization observability
}

// NewResolver creates a resolver. A nil judge selects the deterministic
// fallback policy; a nil bus disables sanitization events but the drops are
// still logged.
func NewResolver(ranker *Ranker, judge Judge, timeout time.Duration, bus domain.EventBus) *Resolver {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Resolver{
		ranker:  ranker,
		judge:   judge,
		timeout: timeout,
		bus:     bus,
	}
}

// Resolve ranks candidates for the complaint and resolves them into the
// final violation list. An empty candidate list short-circuits to an empty
// result for both strategies. Callers gate on classification before calling:
// matching runs only for complaints with severity above low.
func (r *Resolver) Resolve(ctx context.Context, in Input) ([]domain.Violation, error) {
	candidates := r.ranker.Rank(in)
	if len(candidates) == 0 {
		return []domain.Violation{}, nil
	}

	if r.judge == nil {
		return fallbackViolations(in.Category, in.Severity), nil
	}

	req := &JudgeRequest{
		ComplaintText:  in.ComplaintText,
		Entity:         in.Entity,
		Channel:        in.Channel,
		DislikeTraits:  in.DislikeTraits,
		Category:       in.Category,
		Severity:       in.Severity,
		CandidateRules: make([]CandidateRule, 0, len(candidates)),
	}
	allowed := make(map[string]bool, len(candidates))
	for _, rule := range candidates {
		allowed[rule.Code] = true
		cr := CandidateRule{
			Code:        rule.Code,
			Category:    rule.Category,
			Description: rule.Description,
			Impact:      rule.ImpactLevel,
		}
		for _, req := range rule.Requirements {
			cr.Requirements = append(cr.Requirements, req.Text)
		}
		req.CandidateRules = append(req.CandidateRules, cr)
	}

	judgeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.judge.Judge(judgeCtx, req)
	if err != nil {
		return nil, &domain.ExternalJudgeError{Op: "judge", Err: err}
	}

	return r.sanitize(ctx, in, raw, allowed), nil
}

// sanitize drops violations whose codes the collaborator was never offered,
// guarding against hallucinated references. Drops are logged and published
// for operator review rather than failing the whole request.
func (r *Resolver) sanitize(ctx context.Context, in Input, raw []domain.Violation, allowed map[string]bool) []domain.Violation {
	out := make([]domain.Violation, 0, len(raw))
	var dropped []string
	for _, v := range raw {
		if v.Code == "" || !allowed[v.Code] {
			dropped = append(dropped, v.Code)
			continue
		}
		if !v.Confidence.Valid() {
			v.Confidence = domain.ConfidenceLow
		}
		out = append(out, v)
	}

	if len(dropped) > 0 {
		slog.Warn("dropped judge violations outside candidate set",
			"feedback_id", in.FeedbackID,
			"dropped", dropped,
			"kept", len(out),
		)
		if r.bus != nil {
			payload, _ := json.Marshal(map[string]any{
				"feedbackId": in.FeedbackID,
				"dropped":    dropped,
				"kept":       len(out),
			})
			if err := r.bus.Publish(ctx, domain.TopicJudgeSanitized, payload); err != nil {
				slog.Warn("failed to publish sanitization event", "error", fmt.Sprint(err))
			}
		}
	}

	return out
}
